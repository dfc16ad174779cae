package rules

import (
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

func BroadcastCost(text string, costPerChar decimal.Decimal) decimal.Decimal {
	return costPerChar.Mul(decimal.NewFromInt(int64(utf8.RuneCountInString(text))))
}

// Shortfall returns how much balance is missing to cover cost, zero if none.
func Shortfall(balance, cost decimal.Decimal) decimal.Decimal {
	if balance.GreaterThanOrEqual(cost) {
		return decimal.Zero
	}
	return cost.Sub(balance)
}

// FormatMoney renders an amount the way it is shown to actors.
func FormatMoney(amount decimal.Decimal) string {
	return "KES " + amount.StringFixed(2)
}
