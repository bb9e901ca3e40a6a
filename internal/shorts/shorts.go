// Package shorts implements the short-position lifecycle state machine:
// placement with tiered payoff multipliers, win/expire resolution, and the
// forced early-exit that fires when a shorter trades the underlying.
//
// Transitions are terminal and idempotent: evaluating a resolved position
// is a no-op, so the periodic sweep is safe to run concurrently with
// opportunistic evaluation on the trade path. Penalties are deliberately
// uncapped — an expired short costs 100x the current price and balances
// may go deeply negative.
package shorts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opinex/market-engine/internal/ledger"
	"github.com/opinex/market-engine/internal/model"
	"github.com/opinex/market-engine/internal/store"
)

var (
	// ErrInvalidTarget is returned when the target drop percentage is
	// outside [1,100].
	ErrInvalidTarget = errors.New("shorts: target drop must be between 1 and 100 percent")

	// ErrInvalidBet is returned for a non-positive bet amount.
	ErrInvalidBet = errors.New("shorts: bet amount must be positive")

	// ErrActiveShortExists is returned when the actor already has an
	// active short on the instrument.
	ErrActiveShortExists = errors.New("shorts: an active short already exists on this instrument")
)

// ExpiryPenaltyUnits is the number of price units debited when a short
// expires without reaching its target: penalty = 100 * currentPrice.
var ExpiryPenaltyUnits = decimal.NewFromInt(100)

var (
	minTarget = decimal.NewFromInt(1)
	maxTarget = decimal.NewFromInt(100)
	hundred   = decimal.NewFromInt(100)
	one       = decimal.NewFromInt(1)
)

// Manager owns all short-position transitions. Callers must hold the
// actor and instrument locks; the manager itself is lock-free.
type Manager struct {
	store  store.Store
	ledger *ledger.Ledger
	now    func() time.Time
}

// NewManager creates a short-position manager.
func NewManager(st store.Store, lg *ledger.Ledger) *Manager {
	return &Manager{
		store:  st,
		ledger: lg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// DropMultiplier maps a target drop percentage to its payoff multiplier.
// Piecewise linear with a distinct, increasing slope per bracket, starting
// at 1.0 for a zero target — more ambitious drops pay disproportionately.
func DropMultiplier(targetPct decimal.Decimal) decimal.Decimal {
	type bracket struct {
		upTo  decimal.Decimal
		base  decimal.Decimal
		slope decimal.Decimal
	}
	brackets := []bracket{
		{decimal.NewFromInt(5), decimal.NewFromInt(1), decimal.NewFromFloat(0.10)},
		{decimal.NewFromInt(20), decimal.NewFromFloat(1.5), decimal.NewFromFloat(0.15)},
		{decimal.NewFromInt(50), decimal.NewFromFloat(3.75), decimal.NewFromFloat(0.25)},
		{decimal.NewFromInt(80), decimal.NewFromFloat(11.25), decimal.NewFromFloat(0.40)},
		{maxTarget, decimal.NewFromFloat(23.25), decimal.NewFromFloat(0.75)},
	}

	prev := decimal.Zero
	for _, b := range brackets {
		if targetPct.LessThanOrEqual(b.upTo) {
			return b.base.Add(targetPct.Sub(prev).Mul(b.slope))
		}
		prev = b.upTo
	}
	last := brackets[len(brackets)-1]
	return last.base.Add(targetPct.Sub(decimal.NewFromInt(80)).Mul(last.slope))
}

// TimeMultiplier rewards tighter deadlines: ≤6h → 2.5x, ≤12h → 2.0x,
// ≤24h → 1.5x, anything longer → 1.0x.
func TimeMultiplier(hours float64) decimal.Decimal {
	switch {
	case hours <= 6:
		return decimal.NewFromFloat(2.5)
	case hours <= 12:
		return decimal.NewFromFloat(2.0)
	case hours <= 24:
		return decimal.NewFromFloat(1.5)
	default:
		return one
	}
}

// PotentialWinnings combines the drop and time multipliers:
// round(bet * dropMult * timeMult, 2).
func PotentialWinnings(bet, targetPct decimal.Decimal, hours float64) decimal.Decimal {
	return bet.Mul(DropMultiplier(targetPct)).Mul(TimeMultiplier(hours)).Round(2)
}

// Place opens a short against the current market record. The caller has
// already verified the actor holds none of the instrument and can cover
// the bet; Place validates the target, enforces one active short per
// (actor, instrument), debits the bet, and records short_place.
func (m *Manager) Place(ctx context.Context, acct *model.Account, rec *model.MarketRecord, bet, targetPct decimal.Decimal, hours float64) (*model.ShortPosition, error) {
	if targetPct.LessThan(minTarget) || targetPct.GreaterThan(maxTarget) {
		return nil, ErrInvalidTarget
	}
	if !bet.IsPositive() {
		return nil, ErrInvalidBet
	}

	if _, err := m.store.ActiveShort(ctx, acct.ActorID, rec.Instrument); err == nil {
		return nil, ErrActiveShortExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check active short: %w", err)
	}

	now := m.now()
	targetPrice := rec.CurrentPrice.Mul(one.Sub(targetPct.Div(hundred))).Round(2)

	pos := &model.ShortPosition{
		ID:                uuid.New().String(),
		ActorID:           acct.ActorID,
		Instrument:        rec.Instrument,
		BetAmount:         bet,
		TargetDropPct:     targetPct,
		StartingPrice:     rec.CurrentPrice,
		TargetPrice:       targetPrice,
		PotentialWinnings: PotentialWinnings(bet, targetPct, hours),
		TimeLimitHours:    hours,
		CreatedAt:         now,
		ExpiresAt:         now.Add(time.Duration(hours * float64(time.Hour))),
		Status:            model.ShortActive,
	}

	if err := m.store.InsertShort(ctx, pos); err != nil {
		return nil, fmt.Errorf("insert short: %w", err)
	}

	// Ledger before balance: reconciliation derives balances from the
	// ledger, so a debit without an entry would be refunded on the next
	// reconcile while the short stayed live.
	if _, err := m.ledger.Record(ctx, model.KindShortPlace, acct.ActorID, bet.Neg(), rec.Instrument, rec.CurrentPrice, 0); err != nil {
		// Void the position; no money has moved yet.
		pos.Status = model.ShortLost
		resolved := now
		pos.ResolvedAt = &resolved
		if uerr := m.store.UpdateShort(ctx, pos); uerr != nil {
			slog.Error("failed to void short after ledger failure",
				"short", pos.ID, "actor", acct.ActorID, "err", uerr)
		}
		return nil, fmt.Errorf("record short bet: %w", err)
	}

	acct.Balance = acct.Balance.Sub(bet)
	acct.UpdatedAt = now
	if err := m.store.PutAccount(ctx, acct); err != nil {
		slog.Error("balance update failed after short bet; ledger entry retained for reconciliation",
			"short", pos.ID, "actor", acct.ActorID, "err", err)
	}

	slog.Info("short placed",
		"short", pos.ID,
		"actor", acct.ActorID,
		"instrument", rec.Instrument,
		"bet", bet.String(),
		"target_price", targetPrice.String(),
		"potential", pos.PotentialWinnings.String(),
		"expires_at", pos.ExpiresAt,
	)
	return pos, nil
}

// Evaluate advances an active position against the current price: won if
// the target was reached, expired (with the 100x penalty) if the deadline
// passed. Terminal positions are left untouched. Returns whether the
// position was resolved by this call.
func (m *Manager) Evaluate(ctx context.Context, pos *model.ShortPosition, currentPrice decimal.Decimal, now time.Time) (bool, error) {
	if pos.Status != model.ShortActive {
		return false, nil
	}

	if currentPrice.LessThanOrEqual(pos.TargetPrice) {
		if err := m.transition(ctx, pos, model.ShortWon, now); err != nil {
			return false, err
		}
		if err := m.settle(ctx, pos, model.KindShortWin, pos.PotentialWinnings, currentPrice, now, true); err != nil {
			return true, err
		}
		slog.Info("short won",
			"short", pos.ID, "actor", pos.ActorID,
			"instrument", pos.Instrument,
			"winnings", pos.PotentialWinnings.String())
		return true, nil
	}

	if now.After(pos.ExpiresAt) {
		penalty := ExpiryPenaltyUnits.Mul(currentPrice).Round(2)
		if err := m.transition(ctx, pos, model.ShortExpired, now); err != nil {
			return false, err
		}
		if err := m.settle(ctx, pos, model.KindShortLoss, penalty.Neg(), currentPrice, now, false); err != nil {
			return true, err
		}
		slog.Info("short expired",
			"short", pos.ID, "actor", pos.ActorID,
			"instrument", pos.Instrument,
			"penalty", penalty.String())
		return true, nil
	}

	return false, nil
}

// ForceClose resolves an active short as lost because the actor traded
// the underlying instrument. Penalty: targetDropPct units repurchased at
// the current price. No-op on terminal positions.
func (m *Manager) ForceClose(ctx context.Context, pos *model.ShortPosition, currentPrice decimal.Decimal, now time.Time) error {
	if pos.Status != model.ShortActive {
		return nil
	}

	penalty := pos.TargetDropPct.Mul(currentPrice).Round(2)
	if err := m.transition(ctx, pos, model.ShortLost, now); err != nil {
		return err
	}
	if err := m.settle(ctx, pos, model.KindShortLoss, penalty.Neg(), currentPrice, now, false); err != nil {
		return err
	}

	slog.Info("short force-closed",
		"short", pos.ID, "actor", pos.ActorID,
		"instrument", pos.Instrument,
		"penalty", penalty.String())
	return nil
}

// transition persists the terminal status first. The status write is the
// idempotency barrier: once it lands, re-evaluation is a no-op even if
// the settlement below has to be reconciled from the ledger.
func (m *Manager) transition(ctx context.Context, pos *model.ShortPosition, status model.ShortStatus, now time.Time) error {
	pos.Status = status
	resolved := now
	pos.ResolvedAt = &resolved
	if err := m.store.UpdateShort(ctx, pos); err != nil {
		pos.Status = model.ShortActive
		pos.ResolvedAt = nil
		return fmt.Errorf("transition short %s to %s: %w", pos.ID, status, err)
	}
	return nil
}

// settle writes the ledger entry and then applies the signed settlement
// amount to the actor's balance. Ledger first: a failed balance write is
// caught up from the ledger by reconciliation, while the reverse order
// would let the reconciler undo a real settlement.
func (m *Manager) settle(ctx context.Context, pos *model.ShortPosition, kind model.TransactionKind, amount, currentPrice decimal.Decimal, now time.Time, earned bool) error {
	acct, err := m.store.GetAccount(ctx, pos.ActorID)
	if err != nil {
		return fmt.Errorf("settle short %s: load account: %w", pos.ID, err)
	}

	if _, err := m.ledger.Record(ctx, kind, pos.ActorID, amount, pos.Instrument, currentPrice, 0); err != nil {
		return fmt.Errorf("settle short %s: ledger write: %w", pos.ID, err)
	}

	acct.Balance = acct.Balance.Add(amount)
	if earned {
		acct.TotalEarnings = acct.TotalEarnings.Add(amount)
	}
	acct.UpdatedAt = now
	if err := m.store.PutAccount(ctx, acct); err != nil {
		slog.Error("balance update failed after short settlement; ledger entry retained for reconciliation",
			"short", pos.ID, "kind", kind, "err", err)
	}
	return nil
}

// ActiveFor returns the actor's active short on an instrument, or nil.
func (m *Manager) ActiveFor(ctx context.Context, actorID, instrument string) (*model.ShortPosition, error) {
	pos, err := m.store.ActiveShort(ctx, actorID, instrument)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return pos, err
}

// ByActor returns all of an actor's short positions.
func (m *Manager) ByActor(ctx context.Context, actorID string) ([]model.ShortPosition, error) {
	return m.store.ShortsByActor(ctx, actorID)
}

// Active returns every unresolved short position.
func (m *Manager) Active(ctx context.Context) ([]model.ShortPosition, error) {
	return m.store.ActiveShorts(ctx)
}
