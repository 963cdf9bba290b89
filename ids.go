package fisher

import (
	"strings"

	"github.com/google/uuid"
)

// GeneratePaymentID generates a unique payment identifier.
//
// The generated ID format is: "pay_" + UUID v4 without hyphens (32 hex chars)
// Example: "pay_7d5d747be160e280504c099d984bcfe0"
func GeneratePaymentID() string {
	return "pay_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
