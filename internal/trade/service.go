// Package trade is the trade-execution facade: every buy, sell, short,
// and earn — from HTTP handlers and autonomous bots alike — enters
// through Service. It composes the guard, market, ledger, and short
// managers and owns the serialization contract: per-instrument and
// per-actor keyed locks, always acquired instrument first.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opinex/market-engine/internal/guard"
	"github.com/opinex/market-engine/internal/instrument"
	"github.com/opinex/market-engine/internal/ledger"
	"github.com/opinex/market-engine/internal/market"
	"github.com/opinex/market-engine/internal/metrics"
	"github.com/opinex/market-engine/internal/model"
	"github.com/opinex/market-engine/internal/pricing"
	"github.com/opinex/market-engine/internal/shorts"
	"github.com/opinex/market-engine/internal/store"
)

var (
	// ErrInsufficientFunds rejects a buy, short, or bet the balance
	// cannot cover.
	ErrInsufficientFunds = errors.New("trade: insufficient funds")

	// ErrInsufficientHoldings rejects a sell of more than the actor holds.
	ErrInsufficientHoldings = errors.New("trade: insufficient holdings")

	// ErrInvalidQuantity rejects a zero-quantity trade.
	ErrInvalidQuantity = errors.New("trade: quantity must be positive")

	// ErrInvalidAmount rejects a non-positive earn or bet amount.
	ErrInvalidAmount = errors.New("trade: amount must be positive")

	// ErrInvalidDuration rejects a non-positive short time limit.
	ErrInvalidDuration = errors.New("trade: time limit must be positive")

	// ErrHoldingsConflict rejects shorting an instrument the actor holds.
	ErrHoldingsConflict = errors.New("trade: cannot short an instrument you hold")

	// ErrActiveShortConflict is surfaced only when the forced resolution
	// of an active short fails; resolution normally proceeds silently
	// before the originating trade.
	ErrActiveShortConflict = errors.New("trade: active short could not be resolved")
)

// DefaultStartingBalance seeds lazily created accounts.
var DefaultStartingBalance = decimal.NewFromInt(100)

// recentTradeWindow is how many ledger trades feed the manipulation guard.
const recentTradeWindow = 20

// Service executes trades. Construct once at startup and share; it holds
// the keyed locks that make per-instrument and per-actor mutation safe.
type Service struct {
	store           store.Store
	market          *market.Manager
	ledger          *ledger.Ledger
	shorts          *shorts.Manager
	hub             *WSHub
	startingBalance decimal.Decimal

	instruments *keyedMutex
	actors      *keyedMutex
	now         func() time.Time
}

// NewService creates the trade-execution facade.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, mk *market.Manager, lg *ledger.Ledger, sh *shorts.Manager, hub *WSHub) *Service {
	return &Service{
		store:           st,
		market:          mk,
		ledger:          lg,
		shorts:          sh,
		hub:             hub,
		startingBalance: DefaultStartingBalance,
		instruments:     newKeyedMutex(),
		actors:          newKeyedMutex(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// SetStartingBalance overrides the balance new accounts are seeded with.
func (s *Service) SetStartingBalance(v decimal.Decimal) {
	s.startingBalance = v
}

// Buy purchases quantity units of the instrument at the current price.
func (s *Service) Buy(ctx context.Context, actorID, text string, quantity uint64) (*model.Transaction, error) {
	return s.executeTrade(ctx, actorID, text, model.ActionBuy, quantity)
}

// Sell liquidates quantity units at the spread-discounted sell price.
func (s *Service) Sell(ctx context.Context, actorID, text string, quantity uint64) (*model.Transaction, error) {
	return s.executeTrade(ctx, actorID, text, model.ActionSell, quantity)
}

// executeTrade is the single spot-trade path. Side effects are
// all-or-nothing up to the instrument-side write; after that the ledger
// entry is authoritative and the actor-side balance is reconcilable.
func (s *Service) executeTrade(ctx context.Context, actorID, text string, action model.TradeAction, quantity uint64) (*model.Transaction, error) {
	start := time.Now()

	text, err := instrument.Normalize(text)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}

	// Fixed lock order: instrument, then actor.
	s.instruments.Lock(text)
	defer s.instruments.Unlock(text)
	s.actors.Lock(actorID)
	defer s.actors.Unlock(actorID)

	rec, err := s.market.FetchOrCreate(ctx, text)
	if err != nil {
		return nil, err
	}
	now := s.now()

	// Trading the underlying while shorting it force-resolves the short
	// as lost before the trade proceeds.
	if pos, err := s.shorts.ActiveFor(ctx, actorID, text); err != nil {
		return nil, err
	} else if pos != nil {
		if err := s.shorts.ForceClose(ctx, pos, rec.CurrentPrice, now); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrActiveShortConflict, err)
		}
		metrics.ShortsResolved.WithLabelValues(string(model.ShortLost)).Inc()
	}

	recent, err := s.store.RecentInstrumentTrades(ctx, text, recentTradeWindow)
	if err != nil {
		return nil, err
	}
	if err := guard.CheckVelocity(recent, now); err != nil {
		metrics.TradesBlocked.WithLabelValues("rapid_trading").Inc()
		return nil, err
	}
	assessment := guard.Assess(rec, recent, actorID, now)
	rec.RapidTradeCount = assessment.RapidCount60m
	rec.DominanceRatio = assessment.DominanceRatio
	rec.LastChecked = now

	acct, err := s.fetchOrCreateAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var kind model.TransactionKind
	var unitPrice, amount decimal.Decimal
	qty := decimal.NewFromInt(int64(quantity))

	switch action {
	case model.ActionBuy:
		kind = model.KindBuy
		unitPrice = rec.CurrentPrice
		amount = unitPrice.Mul(qty).Neg()
		if acct.Balance.LessThan(amount.Neg()) {
			metrics.TradesBlocked.WithLabelValues("insufficient_funds").Inc()
			return nil, ErrInsufficientFunds
		}
	case model.ActionSell:
		held, err := s.ledger.Holding(ctx, actorID, text)
		if err != nil {
			return nil, err
		}
		if held < quantity {
			metrics.TradesBlocked.WithLabelValues("insufficient_holdings").Inc()
			return nil, ErrInsufficientHoldings
		}
		kind = model.KindSell
		unitPrice = pricing.SellPrice(rec.CurrentPrice)
		amount = unitPrice.Mul(qty)
	}

	// Instrument side first; a store failure here means the trade never
	// happened and nothing needs rolling back.
	rec, err = s.market.ApplyTrade(ctx, rec, action, quantity)
	if err != nil {
		return nil, err
	}

	// Ledger next: once the entry lands, the actor-side balance can
	// always be reconciled from it.
	tx, err := s.ledger.Record(ctx, kind, actorID, amount, text, unitPrice, quantity)
	if err != nil {
		return nil, err
	}

	acct.Balance = acct.Balance.Add(amount)
	acct.UpdatedAt = now
	if err := s.store.PutAccount(ctx, acct); err != nil {
		slog.Error("balance update failed after trade; ledger entry retained for reconciliation",
			"tx", tx.ID, "actor", actorID, "err", err)
	}

	metrics.TradesTotal.WithLabelValues(string(action)).Inc()
	metrics.TradeLatency.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())

	slog.Info("trade executed",
		"tx", tx.ID,
		"actor", actorID,
		"instrument", text,
		"action", action,
		"qty", quantity,
		"unit_price", unitPrice.String(),
		"price", rec.CurrentPrice.String(),
	)

	if s.hub != nil {
		s.hub.BroadcastSnapshot(rec)
		s.hub.BroadcastFeed(model.FeedItem{
			Type:       kind,
			ActorName:  displayName(acct),
			Amount:     amount,
			Instrument: text,
			Timestamp:  tx.Timestamp,
		})
	}
	return tx, nil
}

// PlaceShort opens a short position on the instrument.
func (s *Service) PlaceShort(ctx context.Context, actorID, text string, bet, targetPct decimal.Decimal, hours float64) (*model.ShortPosition, error) {
	text, err := instrument.Normalize(text)
	if err != nil {
		return nil, err
	}
	if hours <= 0 {
		return nil, ErrInvalidDuration
	}

	s.instruments.Lock(text)
	defer s.instruments.Unlock(text)
	s.actors.Lock(actorID)
	defer s.actors.Unlock(actorID)

	rec, err := s.market.FetchOrCreate(ctx, text)
	if err != nil {
		return nil, err
	}

	// Shorts consult the guard like any other trade request; an
	// instrument under rapid-trade lockout cannot be shorted either.
	recent, err := s.store.RecentInstrumentTrades(ctx, text, recentTradeWindow)
	if err != nil {
		return nil, err
	}
	if err := guard.CheckVelocity(recent, s.now()); err != nil {
		metrics.TradesBlocked.WithLabelValues("rapid_trading").Inc()
		return nil, err
	}

	held, err := s.ledger.Holding(ctx, actorID, text)
	if err != nil {
		return nil, err
	}
	if held > 0 {
		return nil, ErrHoldingsConflict
	}

	acct, err := s.fetchOrCreateAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if acct.Balance.LessThan(bet) {
		metrics.TradesBlocked.WithLabelValues("insufficient_funds").Inc()
		return nil, ErrInsufficientFunds
	}

	pos, err := s.shorts.Place(ctx, acct, rec, bet, targetPct, hours)
	if err != nil {
		return nil, err
	}
	metrics.ShortsPlaced.Inc()

	if s.hub != nil {
		s.hub.BroadcastFeed(model.FeedItem{
			Type:       model.KindShortPlace,
			ActorName:  displayName(acct),
			Amount:     bet.Neg(),
			Instrument: text,
			Timestamp:  pos.CreatedAt,
		})
	}
	return pos, nil
}

// Earn credits an actor outside of trading — the UI layer's reward
// mechanics. The amount lands on the ledger like everything else.
func (s *Service) Earn(ctx context.Context, actorID string, amount decimal.Decimal) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	s.actors.Lock(actorID)
	defer s.actors.Unlock(actorID)

	acct, err := s.fetchOrCreateAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}

	tx, err := s.ledger.Record(ctx, model.KindEarn, actorID, amount, "", decimal.Zero, 0)
	if err != nil {
		return nil, err
	}

	acct.Balance = acct.Balance.Add(amount)
	acct.TotalEarnings = acct.TotalEarnings.Add(amount)
	acct.UpdatedAt = s.now()
	if err := s.store.PutAccount(ctx, acct); err != nil {
		slog.Error("balance update failed after earn; ledger entry retained for reconciliation",
			"tx", tx.ID, "actor", actorID, "err", err)
	}

	if s.hub != nil {
		s.hub.BroadcastFeed(model.FeedItem{
			Type:      model.KindEarn,
			ActorName: displayName(acct),
			Amount:    amount,
			Timestamp: tx.Timestamp,
		})
	}
	return tx, nil
}

// GetPrice returns the instrument's current price, creating the record
// lazily. Reads are self-healing and opportunistically resolve any short
// that has hit its target or expired.
func (s *Service) GetPrice(ctx context.Context, text string) (decimal.Decimal, error) {
	rec, err := s.Snapshot(ctx, text)
	if err != nil {
		return decimal.Zero, err
	}
	return rec.CurrentPrice, nil
}

// Snapshot returns the instrument's full market record.
func (s *Service) Snapshot(ctx context.Context, text string) (*model.MarketRecord, error) {
	text, err := instrument.Normalize(text)
	if err != nil {
		return nil, err
	}

	s.instruments.Lock(text)
	defer s.instruments.Unlock(text)

	rec, err := s.market.FetchOrCreate(ctx, text)
	if err != nil {
		return nil, err
	}
	s.resolveDueShorts(ctx, text, rec, s.now())
	return rec, nil
}

// Portfolio returns the actor's ledger-derived holdings and cash balance.
func (s *Service) Portfolio(ctx context.Context, actorID string) ([]model.PortfolioEntry, decimal.Decimal, error) {
	entries, err := s.ledger.Portfolio(ctx, actorID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	balance := decimal.Zero
	acct, err := s.store.GetAccount(ctx, actorID)
	if err == nil {
		balance = acct.Balance
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, decimal.Zero, err
	}
	return entries, balance, nil
}

// Feed returns the most recent activity feed items.
func (s *Service) Feed(ctx context.Context, limit int) ([]model.FeedItem, error) {
	return s.ledger.Feed(ctx, limit)
}

// ShortsFor returns all of an actor's short positions.
func (s *Service) ShortsFor(ctx context.Context, actorID string) ([]model.ShortPosition, error) {
	return s.shorts.ByActor(ctx, actorID)
}

// ReconcileAccount recomputes the actor's balance from the ledger
// (starting balance plus the sum of signed amounts) and repairs the
// cached balance if it drifted. Replay-safe: duplicate transaction IDs
// are ignored by the ledger fold.
func (s *Service) ReconcileAccount(ctx context.Context, actorID string) (decimal.Decimal, error) {
	s.actors.Lock(actorID)
	defer s.actors.Unlock(actorID)

	acct, err := s.store.GetAccount(ctx, actorID)
	if err != nil {
		return decimal.Zero, err
	}

	delta, err := s.ledger.BalanceDelta(ctx, actorID)
	if err != nil {
		return decimal.Zero, err
	}
	expected := s.startingBalance.Add(delta)

	if !acct.Balance.Equal(expected) {
		slog.Warn("account balance drift repaired",
			"actor", actorID,
			"stored", acct.Balance.String(),
			"expected", expected.String(),
		)
		acct.Balance = expected
		acct.UpdatedAt = s.now()
		if err := s.store.PutAccount(ctx, acct); err != nil {
			return decimal.Zero, err
		}
	}
	return expected, nil
}

// RunShortSweeper periodically resolves due short positions until the
// context is cancelled.
func (s *Service) RunShortSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("short sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("short sweeper stopping")
			return
		case <-ticker.C:
			s.SweepShorts(ctx)
		}
	}
}

// SweepShorts evaluates every active short once. Safe to run concurrently
// with trade execution: resolution happens under the same keyed locks and
// terminal positions are no-ops.
func (s *Service) SweepShorts(ctx context.Context) {
	positions, err := s.shorts.Active(ctx)
	if err != nil {
		slog.Error("short sweep: list active", "err", err)
		return
	}
	if len(positions) == 0 {
		return
	}

	instruments := make(map[string]bool)
	for _, p := range positions {
		instruments[p.Instrument] = true
	}

	now := s.now()
	for text := range instruments {
		s.instruments.Lock(text)
		rec, err := s.market.FetchOrCreate(ctx, text)
		if err != nil {
			slog.Error("short sweep: fetch record", "instrument", text, "err", err)
			s.instruments.Unlock(text)
			continue
		}
		s.resolveDueShorts(ctx, text, rec, now)
		s.instruments.Unlock(text)
	}
}

// resolveDueShorts evaluates the active shorts on one instrument. The
// caller holds the instrument lock; each position is re-fetched under its
// actor lock so concurrent sweeps cannot settle the same position twice.
func (s *Service) resolveDueShorts(ctx context.Context, text string, rec *model.MarketRecord, now time.Time) {
	positions, err := s.shorts.Active(ctx)
	if err != nil {
		slog.Error("resolve shorts: list active", "instrument", text, "err", err)
		return
	}

	for _, p := range positions {
		if p.Instrument != text {
			continue
		}
		s.actors.Lock(p.ActorID)
		cur, err := s.store.ActiveShort(ctx, p.ActorID, text)
		if err == nil {
			resolved, err := s.shorts.Evaluate(ctx, cur, rec.CurrentPrice, now)
			if err != nil {
				slog.Error("short evaluation failed", "short", cur.ID, "err", err)
			} else if resolved {
				metrics.ShortsResolved.WithLabelValues(string(cur.Status)).Inc()
				if s.hub != nil {
					s.hub.BroadcastFeed(model.FeedItem{
						Type:       resolutionKind(cur.Status),
						ActorName:  p.ActorID,
						Amount:     resolutionAmount(cur, rec.CurrentPrice),
						Instrument: text,
						Timestamp:  now,
					})
				}
			}
		}
		s.actors.Unlock(p.ActorID)
	}
}

func resolutionKind(status model.ShortStatus) model.TransactionKind {
	if status == model.ShortWon {
		return model.KindShortWin
	}
	return model.KindShortLoss
}

func resolutionAmount(pos *model.ShortPosition, currentPrice decimal.Decimal) decimal.Decimal {
	switch pos.Status {
	case model.ShortWon:
		return pos.PotentialWinnings
	case model.ShortExpired:
		return shorts.ExpiryPenaltyUnits.Mul(currentPrice).Round(2).Neg()
	default:
		return pos.TargetDropPct.Mul(currentPrice).Round(2).Neg()
	}
}

func (s *Service) fetchOrCreateAccount(ctx context.Context, actorID string) (*model.Account, error) {
	acct, err := s.store.GetAccount(ctx, actorID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	acct = &model.Account{
		ActorID:       actorID,
		DisplayName:   actorID,
		Balance:       s.startingBalance,
		TotalEarnings: decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.PutAccount(ctx, acct); err != nil {
		return nil, fmt.Errorf("create account %s: %w", actorID, err)
	}
	return acct, nil
}

func displayName(acct *model.Account) string {
	if acct.DisplayName != "" {
		return acct.DisplayName
	}
	return acct.ActorID
}
