package waterfall

import (
	"math/big"

	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
)

// RateScale is the fixed-point denominator for redemption rates and prices.
// A rate of RateScale means a tranche has been paid in full.
var RateScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Position is one tranche's standing entering an allocation: its snapshotted
// denominator for the round and the cumulative amount paid so far.
// Positions must be ordered senior first.
type Position struct {
	TrancheIndex int
	Denominator  *big.Int
	Paid         *big.Int
}

// Payment is the allocation outcome for one tranche.
type Payment struct {
	TrancheIndex   int
	Amount         *big.Int
	Paid           *big.Int
	RedemptionRate *big.Int
}

// Allocate walks tranches in priority order, paying each tranche up to its
// outstanding claim before any junior tranche receives anything. Funds left
// after the most junior tranche is made whole are routed to it as a bonus,
// pushing its rate past RateScale. The full input amount is always
// distributed, so round conservation holds by construction.
func Allocate(amount *big.Int, positions []Position) ([]Payment, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, domainerrors.ErrZeroAmount
	}
	remaining := new(big.Int).Set(amount)
	payments := make([]Payment, 0, len(positions))

	for _, pos := range positions {
		paid := new(big.Int).Set(pos.Paid)
		outstanding := new(big.Int).Sub(pos.Denominator, paid)
		if outstanding.Sign() < 0 {
			outstanding.SetInt64(0)
		}
		pay := new(big.Int).Set(remaining)
		if pay.Cmp(outstanding) > 0 {
			pay.Set(outstanding)
		}
		paid.Add(paid, pay)
		remaining.Sub(remaining, pay)
		payments = append(payments, Payment{
			TrancheIndex:   pos.TrancheIndex,
			Amount:         pay,
			Paid:           paid,
			RedemptionRate: Rate(paid, pos.Denominator),
		})
	}

	// Recovery exceeded total claims: the junior-most tranche absorbs the
	// overflow and its effective rate exceeds RateScale.
	if remaining.Sign() > 0 && len(payments) > 0 {
		junior := &payments[len(payments)-1]
		junior.Amount = new(big.Int).Add(junior.Amount, remaining)
		junior.Paid = new(big.Int).Add(junior.Paid, remaining)
		junior.RedemptionRate = Rate(junior.Paid, positions[len(positions)-1].Denominator)
	}
	return payments, nil
}

// Rate returns paid*RateScale/denominator, the cumulative redemption rate.
// A zero denominator yields a zero rate.
func Rate(paid, denominator *big.Int) *big.Int {
	if denominator == nil || denominator.Sign() <= 0 {
		return big.NewInt(0)
	}
	rate := new(big.Int).Mul(paid, RateScale)
	return rate.Quo(rate, denominator)
}

// ApplyRate converts a balance to its redeemable amount under a rate.
// Truncation happens only here, at the payout boundary, so rounding error
// never compounds across rounds.
func ApplyRate(balance, rate *big.Int) *big.Int {
	if balance == nil || rate == nil || balance.Sign() <= 0 || rate.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(balance, rate)
	return out.Quo(out, RateScale)
}

// Value prices a quantity at a RateScale-scaled unit price.
func Value(quantity, unitPrice *big.Int) *big.Int {
	if quantity == nil || unitPrice == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(quantity, unitPrice)
	return out.Quo(out, RateScale)
}

// BasisPoints returns amount*bps/10000.
func BasisPoints(amount *big.Int, bps int64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(bps))
	return out.Quo(out, big.NewInt(10_000))
}
