// Package ledger provides the append-only transaction log, the bounded
// global activity feed, and the derivations built on top of both: per-actor
// balance deltas and portfolio reconstruction by replay.
//
// Transactions are immutable and identified by uuid, so IDs never collide
// even under rapid issuance. All derivations deduplicate by transaction ID:
// the activity stream delivers at least once, and replaying an entry twice
// must never double-count.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opinex/market-engine/internal/model"
	"github.com/opinex/market-engine/internal/store"
)

// Ledger records transactions and serves ledger-derived views.
type Ledger struct {
	store store.Store
	now   func() time.Time
}

// New creates a ledger over the given store.
func New(st store.Store) *Ledger {
	return &Ledger{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Record appends an immutable transaction and its feed projection.
// Amount is signed: debits negative. The feed append is best-effort —
// a feed failure never unwinds a recorded transaction.
func (l *Ledger) Record(ctx context.Context, kind model.TransactionKind, actorID string, amount decimal.Decimal, instrument string, unitPrice decimal.Decimal, quantity uint64) (*model.Transaction, error) {
	tx := &model.Transaction{
		ID:         uuid.New().String(),
		Kind:       kind,
		ActorID:    actorID,
		Amount:     amount,
		Instrument: instrument,
		UnitPrice:  unitPrice,
		Quantity:   quantity,
		Timestamp:  l.now(),
	}

	if err := l.store.InsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("record %s for %s: %w", kind, actorID, err)
	}

	item := &model.FeedItem{
		Type:       kind,
		ActorName:  l.displayName(ctx, actorID),
		Amount:     amount,
		Instrument: instrument,
		Timestamp:  tx.Timestamp,
	}
	if err := l.store.AppendFeedItem(ctx, item); err != nil {
		slog.Error("feed append failed", "kind", kind, "actor", actorID, "err", err)
	}

	return tx, nil
}

func (l *Ledger) displayName(ctx context.Context, actorID string) string {
	acct, err := l.store.GetAccount(ctx, actorID)
	if err != nil || acct.DisplayName == "" {
		return actorID
	}
	return acct.DisplayName
}

// BalanceDelta sums the signed amounts of an actor's transactions. It is
// the reconciliation reference for the cached account balance.
func (l *Ledger) BalanceDelta(ctx context.Context, actorID string) (decimal.Decimal, error) {
	txs, err := l.store.TransactionsByActor(ctx, actorID)
	if err != nil {
		return decimal.Zero, err
	}
	return ReplayBalance(txs), nil
}

// ReplayBalance folds transactions into a net balance delta, skipping
// duplicate IDs. Replaying the same transaction twice yields the same
// result as replaying it once.
func ReplayBalance(txs []model.Transaction) decimal.Decimal {
	seen := make(map[string]bool, len(txs))
	total := decimal.Zero
	for _, tx := range txs {
		if seen[tx.ID] {
			continue
		}
		seen[tx.ID] = true
		total = total.Add(tx.Amount)
	}
	return total
}

// Portfolio reconstructs an actor's holdings by replaying buy/sell
// transactions per instrument: quantity accumulation with weighted-average
// cost on buys, single-lot decrement on sells. Entries that reach zero
// quantity are dropped. Duplicate transaction IDs are skipped.
func (l *Ledger) Portfolio(ctx context.Context, actorID string) ([]model.PortfolioEntry, error) {
	txs, err := l.store.TransactionsByActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return ReplayPortfolio(actorID, txs), nil
}

// ReplayPortfolio is the pure replay behind Portfolio. Transactions must
// be ordered oldest first.
func ReplayPortfolio(actorID string, txs []model.Transaction) []model.PortfolioEntry {
	type holding struct {
		quantity    uint64
		averageCost decimal.Decimal
		lastUpdated time.Time
	}

	seen := make(map[string]bool, len(txs))
	holdings := make(map[string]*holding)
	var order []string // first-buy order, for stable output

	for _, tx := range txs {
		if seen[tx.ID] {
			continue
		}
		seen[tx.ID] = true

		switch tx.Kind {
		case model.KindBuy:
			h, ok := holdings[tx.Instrument]
			if !ok {
				h = &holding{averageCost: decimal.Zero}
				holdings[tx.Instrument] = h
				order = append(order, tx.Instrument)
			}
			oldQty := decimal.NewFromInt(int64(h.quantity))
			addQty := decimal.NewFromInt(int64(tx.Quantity))
			newQty := oldQty.Add(addQty)
			if newQty.IsPositive() {
				h.averageCost = h.averageCost.Mul(oldQty).
					Add(tx.UnitPrice.Mul(addQty)).
					Div(newQty).Round(4)
			}
			h.quantity += tx.Quantity
			h.lastUpdated = tx.Timestamp

		case model.KindSell:
			h, ok := holdings[tx.Instrument]
			if !ok {
				continue
			}
			if tx.Quantity >= h.quantity {
				h.quantity = 0
			} else {
				h.quantity -= tx.Quantity
			}
			h.lastUpdated = tx.Timestamp
		}
	}

	var entries []model.PortfolioEntry
	for _, instrument := range order {
		h := holdings[instrument]
		if h.quantity == 0 {
			continue
		}
		entries = append(entries, model.PortfolioEntry{
			ActorID:     actorID,
			Instrument:  instrument,
			Quantity:    h.quantity,
			AverageCost: h.averageCost,
			LastUpdated: h.lastUpdated,
		})
	}
	return entries
}

// Holding returns the actor's quantity of one instrument, zero if none.
func (l *Ledger) Holding(ctx context.Context, actorID, instrument string) (uint64, error) {
	entries, err := l.Portfolio(ctx, actorID)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Instrument == instrument {
			return e.Quantity, nil
		}
	}
	return 0, nil
}

// Feed returns up to limit items from the global activity feed,
// newest first.
func (l *Ledger) Feed(ctx context.Context, limit int) ([]model.FeedItem, error) {
	if limit <= 0 || limit > store.FeedCap {
		limit = store.FeedCap
	}
	return l.store.RecentFeed(ctx, limit)
}
