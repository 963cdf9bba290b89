package evm

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var amountPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ParseAmount scales a plain decimal string such as "12.5" into token base units.
//
// The conversion is exact: more fractional digits than decimals is rejected
// (including trailing zeros), as are zero and values wider than 256 bits.
func ParseAmount(amount string, decimals int32) (*big.Int, error) {
	if !amountPattern.MatchString(amount) {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, amount)
	}
	if _, frac, ok := strings.Cut(amount, "."); ok && len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: at most %d decimal places allowed", ErrInvalidAmount, decimals)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	units := d.Shift(decimals).BigInt()
	if units.Sign() <= 0 {
		return nil, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if units.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, ErrInvalidUint256)
	}
	return units, nil
}

// FormatAmount renders base units as a decimal string without trailing zeros
func FormatAmount(units *big.Int, decimals int32) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -decimals).String()
}
