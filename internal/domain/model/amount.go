package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the decimals of the chain's native currency on both the
// EVM and Substrate sides.
const NativeDecimals = 18

// FormatUnits renders an integer amount scaled down by decimals.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// FormattedTotalSupply returns the human-readable supply for ERC20 tokens.
func (c *ContractTypeInfo) FormattedTotalSupply() (string, bool) {
	if c.Type != ContractTypeERC20 || c.TotalSupply == nil || c.Decimals == nil {
		return "", false
	}
	return FormatUnits(c.TotalSupply, *c.Decimals), true
}
