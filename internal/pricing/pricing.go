// Package pricing implements the deterministic demand-counter price curve
// for opinion instruments.
//
// The price is a pure function of two cumulative counters:
//   - each net buy compounds the price up by ~0.1%
//   - each net sell compounds it down by ~0.1%, floored at 10% of base
//   - the final price never falls below half the base price
//
// Because the price depends on nothing but the counters, any reader can
// independently recompute it and repair a drifted stored value.
//
// All monetary values use shopspring/decimal — never float64 for money.
// The compounding exponentials are computed in float64 and converted to
// decimal immediately, with cent-level rounding half away from zero.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// Scale is the number of decimal places for all rounded prices.
	Scale int32 = 2

	// BuyStep is the per-net-buy compounding multiplier.
	BuyStep = 1.001

	// SellStep is the per-net-sell compounding multiplier.
	SellStep = 0.999
)

var (
	// MinMultiplier floors the sell-side compounding at 10% of base.
	MinMultiplier = decimal.NewFromFloat(0.1)

	// FloorRatio bounds the final price at half the base price.
	FloorRatio = decimal.NewFromFloat(0.5)

	// SellSpread is the fraction of the current price offered to a
	// seller. The flat 5% spread, not the per-trade price jump, is what
	// makes buy-then-immediately-sell unprofitable at scale.
	SellSpread = decimal.NewFromFloat(0.95)

	// DriftTolerance is the maximum allowed difference between a stored
	// price and the recomputed price before a record is repaired.
	DriftTolerance = decimal.NewFromFloat(0.01)
)

// Price computes the current price from the cumulative demand counters.
//
//	net = purchased - sold
//	net >= 0: multiplier = 1.001^net
//	net <  0: multiplier = max(0.1, 0.999^|net|)
//	price    = max(base*0.5, base*multiplier), rounded to cents
//
// Deterministic and side-effect free.
func Price(timesPurchased, timesSold uint64, base decimal.Decimal) decimal.Decimal {
	net := int64(timesPurchased) - int64(timesSold)

	var multiplier decimal.Decimal
	if net >= 0 {
		multiplier = decimal.NewFromFloat(math.Pow(BuyStep, float64(net)))
	} else {
		multiplier = decimal.NewFromFloat(math.Pow(SellStep, float64(-net)))
		if multiplier.LessThan(MinMultiplier) {
			multiplier = MinMultiplier
		}
	}

	price := base.Mul(multiplier)
	floor := base.Mul(FloorRatio)
	if price.LessThan(floor) {
		price = floor
	}
	return price.Round(Scale)
}

// SellPrice is the price offered to a holder liquidating at the given
// current price: round(current * 0.95, 2).
func SellPrice(current decimal.Decimal) decimal.Decimal {
	return current.Mul(SellSpread).Round(Scale)
}

// Drifted reports whether a stored price differs from the expected price
// by more than the repair tolerance.
func Drifted(stored, expected decimal.Decimal) bool {
	return stored.Sub(expected).Abs().GreaterThan(DriftTolerance)
}
