package fisher

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPaymentErrorIs(t *testing.T) {
	err := fmt.Errorf("confirm: %w", NewPaymentError(ErrCodePaymentExpired, "too old", nil))

	if !errors.Is(err, ErrPaymentExpired) {
		t.Error("Expected wrapped error to match ErrPaymentExpired")
	}
	if errors.Is(err, ErrNoPendingPayment) {
		t.Error("Expected wrapped error not to match ErrNoPendingPayment")
	}
	if CodeOf(err) != ErrCodePaymentExpired {
		t.Errorf("Expected code %s, got %s", ErrCodePaymentExpired, CodeOf(err))
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("Expected empty code for plain errors")
	}
	if !strings.HasPrefix(err.Error(), "confirm: payment_expired: too old") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestPaymentErrorKind(t *testing.T) {
	tests := map[string]ErrorKind{
		ErrCodeSelfPayment:         KindValidation,
		ErrCodeInvalidAmount:       KindValidation,
		ErrCodeMissingHandle:       KindValidation,
		ErrCodeMissingWallet:       KindValidation,
		ErrCodeInvalidWallet:       KindValidation,
		ErrCodeLedgerUnavailable:   KindLedger,
		ErrCodeSigningAborted:      KindSigning,
		ErrCodeSigningError:        KindSigning,
		ErrCodeSubmissionFailed:    KindSubmission,
		ErrCodeTransactionReverted: KindSubmission,
		ErrCodePaymentExpired:      KindState,
		ErrCodeNoPendingPayment:    KindState,
		ErrCodePaymentInFlight:     KindState,
		ErrCodeIdempotencyReused:   KindState,
	}
	for code, want := range tests {
		if got := NewPaymentError(code, "", nil).Kind(); got != want {
			t.Errorf("%s: expected kind %s, got %s", code, want, got)
		}
	}
}

func TestGeneratePaymentID(t *testing.T) {
	a, b := GeneratePaymentID(), GeneratePaymentID()
	if a == b {
		t.Error("Expected unique payment ids")
	}
	if !strings.HasPrefix(a, "pay_") || len(a) != 36 {
		t.Errorf("Unexpected payment id format %q", a)
	}
}
