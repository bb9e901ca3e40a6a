// Package market owns the per-instrument market record lifecycle:
// lazy creation, self-healing price reads, and trade application.
//
// Records are repaired, not flagged: whenever a fetched record's stored
// price disagrees with the price recomputed from its demand counters by
// more than the tolerance, the read overwrites the stored price. Drift is
// a programming/partial-failure bug class, never a caller-visible error.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opinex/market-engine/internal/metrics"
	"github.com/opinex/market-engine/internal/model"
	"github.com/opinex/market-engine/internal/pricing"
	"github.com/opinex/market-engine/internal/store"
)

// HistoryCap bounds each record's price history ring.
const HistoryCap = 50

// DefaultBasePrice is the price of a freshly referenced instrument.
var DefaultBasePrice = decimal.NewFromInt(10)

// Manager mediates all market record access. Callers must serialize
// operations on the same instrument (the trade service holds a per-
// instrument lock); operations on different instruments are independent.
type Manager struct {
	store store.Store
	base  decimal.Decimal
	now   func() time.Time
}

// NewManager creates a market record manager over the given store.
func NewManager(st store.Store) *Manager {
	return &Manager{
		store: st,
		base:  DefaultBasePrice,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// FetchOrCreate returns the record for an instrument, creating it at the
// base price on first reference. Fetched records are verified against the
// price model and silently repaired if the stored price has drifted.
func (m *Manager) FetchOrCreate(ctx context.Context, instrument string) (*model.MarketRecord, error) {
	rec, err := m.store.GetRecord(ctx, instrument)
	if err == store.ErrNotFound {
		rec = &model.MarketRecord{
			Instrument:   instrument,
			BasePrice:    m.base,
			CurrentPrice: m.base,
			CreatedAt:    m.now(),
		}
		if err := m.store.PutRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("create record %q: %w", instrument, err)
		}
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch record %q: %w", instrument, err)
	}

	expected := pricing.Price(rec.TimesPurchased, rec.TimesSold, rec.BasePrice)
	if pricing.Drifted(rec.CurrentPrice, expected) {
		slog.Warn("market record price drift repaired",
			"instrument", rec.Instrument,
			"stored", rec.CurrentPrice.String(),
			"expected", expected.String(),
		)
		metrics.PriceRepairs.Inc()
		rec.CurrentPrice = expected
		// Persist best-effort; the returned record is correct either way.
		if err := m.store.PutRecord(ctx, rec); err != nil {
			slog.Error("failed to persist price repair",
				"instrument", rec.Instrument, "err", err)
		}
	}
	return rec, nil
}

// ApplyTrade applies one buy or sell to a record: bump the demand counter,
// recompute the price, append a history point (capped), and refresh the
// liquidity and daily-volume derivatives. The updated record is persisted
// before anything is returned; on a store failure the trade must not be
// considered executed and the caller rolls back nothing (ledger and
// balance are untouched at this point).
func (m *Manager) ApplyTrade(ctx context.Context, rec *model.MarketRecord, action model.TradeAction, quantity uint64) (*model.MarketRecord, error) {
	now := m.now()

	switch action {
	case model.ActionBuy:
		rec.TimesPurchased += quantity
	case model.ActionSell:
		rec.TimesSold += quantity
	default:
		return nil, fmt.Errorf("market: unknown trade action %q", action)
	}

	rec.CurrentPrice = pricing.Price(rec.TimesPurchased, rec.TimesSold, rec.BasePrice)

	rec.PriceHistory = append(rec.PriceHistory, model.PricePoint{
		Price:     rec.CurrentPrice,
		Timestamp: now,
		Action:    action,
		Quantity:  quantity,
	})
	if len(rec.PriceHistory) > HistoryCap {
		rec.PriceHistory = rec.PriceHistory[len(rec.PriceHistory)-HistoryCap:]
	}

	rec.LiquidityScore = liquidityScore(rec.TimesPurchased, rec.TimesSold)
	rec.DailyVolume = dailyVolume(rec.PriceHistory, now)

	if err := m.store.PutRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("apply %s on %q: %w", action, rec.Instrument, err)
	}
	return rec, nil
}

// liquidityScore maps total trade count to [0,1]: min((p+s)/20, 1).
func liquidityScore(purchased, sold uint64) float64 {
	score := float64(purchased+sold) / 20
	if score > 1 {
		return 1
	}
	return score
}

// dailyVolume counts history entries within the trailing 24 hours.
func dailyVolume(history []model.PricePoint, now time.Time) uint64 {
	cutoff := now.Add(-24 * time.Hour)
	var n uint64
	for _, p := range history {
		if p.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}
