package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	fisher "github.com/socialpay/fisher"
	"github.com/socialpay/fisher/extensions/idempotency"
)

type requestPaymentBody struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type setWalletBody struct {
	Address string `json:"address"`
}

// bindBody validates the raw body with validate and decodes it into dst.
// On failure it writes a 400 response and returns false.
func bindBody(c *gin.Context, validate func([]byte) ValidationResult, dst interface{}) bool {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fisher.NewPaymentError(ErrCodeInvalidRequest, err.Error(), nil)})
		return false
	}

	if result := validate(raw); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": fisher.NewPaymentError(ErrCodeInvalidRequest,
			"request body does not match schema", map[string]interface{}{"errors": result.Errors})})
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fisher.NewPaymentError(ErrCodeInvalidRequest, err.Error(), nil)})
		return false
	}
	return true
}

func (s *Server) setWallet(c *gin.Context) {
	var body setWalletBody
	if !bindBody(c, ValidateSetWalletBody, &body) {
		return
	}

	registration, err := s.service.SetWallet(c.Request.Context(), initiatorFrom(c), body.Address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, registration)
}

func (s *Server) requestPayment(c *gin.Context) {
	var body requestPaymentBody
	if !bindBody(c, ValidateRequestPaymentBody, &body) {
		return
	}

	result, err := s.service.RequestPayment(c.Request.Context(), initiatorFrom(c), body.Recipient, body.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) confirmPayment(c *gin.Context) {
	ctx := idempotency.ContextWithKey(c.Request.Context(), c.GetHeader(HeaderIdempotencyKey))
	outcome := s.service.ConfirmPayment(ctx, initiatorFrom(c))
	c.JSON(confirmStatusCode(outcome.Status), outcome)
}

func (s *Server) cancelPayment(c *gin.Context) {
	result := s.service.CancelPayment(c.Request.Context(), initiatorFrom(c))
	switch {
	case result.Status == fisher.CancelCancelled:
		c.JSON(http.StatusOK, result)
	case result.ErrorCode == fisher.ErrCodePaymentInFlight:
		c.JSON(http.StatusConflict, result)
	default:
		c.JSON(http.StatusNotFound, result)
	}
}

func (s *Server) pendingPayment(c *gin.Context) {
	payment, ok := s.service.Pending(initiatorFrom(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fisher.NewPaymentError(fisher.ErrCodeNoPendingPayment, "no pending payment", nil)})
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (s *Server) checkHandle(c *gin.Context) {
	info, err := s.service.CheckHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) balance(c *gin.Context) {
	info, err := s.service.Balance(c.Request.Context(), initiatorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func writeError(c *gin.Context, err error) {
	var paymentErr *fisher.PaymentError
	if !errors.As(err, &paymentErr) {
		paymentErr = fisher.NewPaymentError("internal_error", err.Error(), nil)
	}
	c.JSON(errorStatusCode(paymentErr.Code), gin.H{"error": paymentErr})
}

func errorStatusCode(code string) int {
	switch code {
	case fisher.ErrCodeSelfPayment, fisher.ErrCodeInvalidAmount, fisher.ErrCodeMissingHandle,
		fisher.ErrCodeMissingWallet, fisher.ErrCodeInvalidWallet, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case fisher.ErrCodeNoPendingPayment:
		return http.StatusNotFound
	case fisher.ErrCodePaymentExpired:
		return http.StatusGone
	case fisher.ErrCodePaymentInFlight:
		return http.StatusConflict
	case fisher.ErrCodeLedgerUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func confirmStatusCode(status fisher.ConfirmStatus) int {
	switch status {
	case fisher.ConfirmSettled:
		return http.StatusOK
	case fisher.ConfirmNoPendingPayment:
		return http.StatusNotFound
	case fisher.ConfirmExpired:
		return http.StatusGone
	case fisher.ConfirmKeyConflict:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
