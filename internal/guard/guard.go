// Package guard implements the anti-manipulation heuristics consulted on
// every trade: a hard block on rapid trading plus a capped penalty score
// derived from single-actor dominance and recent price volatility.
//
// The guard is stateless over caller-supplied history — recent ledger
// trades and the instrument's price history — so it can be checked inside
// the per-instrument critical section without extra reads.
package guard

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opinex/market-engine/internal/model"
)

// ErrRapidTrading is returned when an instrument has traded too often in
// the rapid-trading window. The trade is blocked outright, not penalized.
var ErrRapidTrading = errors.New("guard: rapid trading blocked")

const (
	// RapidWindow is the sub-window for the hard velocity block.
	RapidWindow = 10 * time.Minute

	// RapidMax is the number of trades allowed inside RapidWindow; one
	// more is rejected.
	RapidMax = 3

	// TrackingWindow is the wider window used for the diagnostic
	// rapid-trade counter stored on the record.
	TrackingWindow = 60 * time.Minute

	// DominanceWindow is how many recent trades feed the dominance ratio.
	DominanceWindow = 10

	// VolatilityWindow is how many trailing prices feed the volatility
	// estimate.
	VolatilityWindow = 5
)

var (
	// MaxPenalty caps the aggregate manipulation penalty at 8%.
	MaxPenalty = decimal.NewFromFloat(0.08)

	dominanceWeight  = decimal.NewFromFloat(0.05)
	volatilityWeight = decimal.NewFromFloat(0.05)
)

// Assessment is the guard's view of one prospective trade. Penalty is
// informational in this design; only the velocity check blocks.
type Assessment struct {
	RapidCount60m  uint64
	DominanceRatio float64
	Volatility     float64
	Penalty        decimal.Decimal
}

// CheckVelocity blocks the trade when more than RapidMax trades landed on
// the instrument within RapidWindow. recent must be newest first.
func CheckVelocity(recent []model.Transaction, now time.Time) error {
	cutoff := now.Add(-RapidWindow)
	var n int
	for _, tx := range recent {
		if tx.Timestamp.Before(cutoff) {
			break // newest first: everything after is older
		}
		n++
	}
	if n > RapidMax {
		return ErrRapidTrading
	}
	return nil
}

// Assess computes the diagnostic counters and the capped penalty score for
// a prospective trade by actorID. recent must be newest first.
func Assess(rec *model.MarketRecord, recent []model.Transaction, actorID string, now time.Time) Assessment {
	a := Assessment{
		RapidCount60m:  countWithin(recent, now, TrackingWindow),
		DominanceRatio: DominanceRatio(recent, actorID),
		Volatility:     Volatility(rec.PriceHistory),
	}

	dominance := decimal.NewFromFloat(a.DominanceRatio).Mul(dominanceWeight)
	vol := a.Volatility
	if vol > 1 {
		vol = 1
	}
	penalty := dominance.Add(decimal.NewFromFloat(vol).Mul(volatilityWeight))
	if penalty.GreaterThan(MaxPenalty) {
		penalty = MaxPenalty
	}
	a.Penalty = penalty
	return a
}

// DominanceRatio is the fraction of the last DominanceWindow trades on the
// instrument attributable to one actor.
func DominanceRatio(recent []model.Transaction, actorID string) float64 {
	window := recent
	if len(window) > DominanceWindow {
		window = window[:DominanceWindow]
	}
	if len(window) == 0 {
		return 0
	}
	var mine int
	for _, tx := range window {
		if tx.ActorID == actorID {
			mine++
		}
	}
	return float64(mine) / float64(len(window))
}

// Volatility is the standard deviation of the last VolatilityWindow
// history prices over their mean (coefficient of variation). Returns 0
// with fewer than two prices.
func Volatility(history []model.PricePoint) float64 {
	if len(history) > VolatilityWindow {
		history = history[len(history)-VolatilityWindow:]
	}
	if len(history) < 2 {
		return 0
	}

	var sum float64
	for _, p := range history {
		sum += p.Price.InexactFloat64()
	}
	mean := sum / float64(len(history))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, p := range history {
		d := p.Price.InexactFloat64() - mean
		variance += d * d
	}
	variance /= float64(len(history))

	return math.Sqrt(variance) / mean
}

func countWithin(recent []model.Transaction, now time.Time, window time.Duration) uint64 {
	cutoff := now.Add(-window)
	var n uint64
	for _, tx := range recent {
		if tx.Timestamp.Before(cutoff) {
			break
		}
		n++
	}
	return n
}
