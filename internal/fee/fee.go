// Package fee computes the payable registration fee for a team.
package fee

import "github.com/shopspring/decimal"

// Calculator derives the payable amount from an event's total fee. The event
// fee is quoted for SplitMembers participants; a team pays its own share per
// registered member.
type Calculator struct {
	SplitMembers int
}

// Payable returns the amount a team owes, rounded half-up to two decimal
// places at both the per-member and the total step. The two-step rounding is
// load-bearing: order creation and verification recompute this independently
// and must agree to the paisa.
func (c Calculator) Payable(eventTotalFee decimal.Decimal, teamSize int) decimal.Decimal {
	if eventTotalFee.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	split := c.SplitMembers
	if split <= 0 {
		split = 1
	}
	if teamSize < 1 {
		teamSize = 1
	}
	perMember := eventTotalFee.DivRound(decimal.NewFromInt(int64(split)), 2)
	return perMember.Mul(decimal.NewFromInt(int64(teamSize))).Round(2)
}

// MinorUnits converts a rupee amount into paise for gateway payloads.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
