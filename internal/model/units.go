package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountDecimals 1 个单位 = 10^18 最小单位
const AmountDecimals = 18

// ParseUnits 将 "0.5" 这样的单位金额转换为最小单位整数
func ParseUnits(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	wei := d.Shift(AmountDecimals)
	if !wei.IsInteger() {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimals", s, AmountDecimals)
	}
	return wei, nil
}

// FormatUnits 将最小单位整数格式化为单位金额
func FormatUnits(wei decimal.Decimal) string {
	return wei.Shift(-AmountDecimals).String()
}
