// Package store defines the persistence interface for the market engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/opinex/market-engine/internal/model"
)

// FeedCap bounds the global activity feed to the most recent entries.
const FeedCap = 500

var (
	// ErrNotFound is returned when a record, account, or position does
	// not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateTransaction is returned when a transaction ID has
	// already been inserted. Callers rely on this for at-least-once
	// replay deduplication.
	ErrDuplicateTransaction = errors.New("store: duplicate transaction id")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Market records ---

	// GetRecord retrieves a market record by instrument text.
	GetRecord(ctx context.Context, instrument string) (*model.MarketRecord, error)

	// PutRecord upserts a market record.
	PutRecord(ctx context.Context, rec *model.MarketRecord) error

	// --- Accounts ---

	// GetAccount retrieves an actor's account.
	GetAccount(ctx context.Context, actorID string) (*model.Account, error)

	// PutAccount upserts an account.
	PutAccount(ctx context.Context, acct *model.Account) error

	// --- Immutable ledger ---

	// InsertTransaction appends an immutable ledger record. Inserting an
	// ID that already exists returns ErrDuplicateTransaction.
	InsertTransaction(ctx context.Context, tx *model.Transaction) error

	// TransactionsByActor returns an actor's transactions, oldest first.
	TransactionsByActor(ctx context.Context, actorID string) ([]model.Transaction, error)

	// RecentInstrumentTrades returns the most recent buy/sell
	// transactions on an instrument, newest first, up to limit.
	RecentInstrumentTrades(ctx context.Context, instrument string, limit int) ([]model.Transaction, error)

	// --- Activity feed ---

	// AppendFeedItem prepends a feed item, trimming the feed to FeedCap.
	AppendFeedItem(ctx context.Context, item *model.FeedItem) error

	// RecentFeed returns up to limit feed items, newest first.
	RecentFeed(ctx context.Context, limit int) ([]model.FeedItem, error)

	// --- Short positions ---

	// InsertShort persists a new short position.
	InsertShort(ctx context.Context, pos *model.ShortPosition) error

	// UpdateShort persists a short position's state transition.
	UpdateShort(ctx context.Context, pos *model.ShortPosition) error

	// ShortsByActor returns all of an actor's short positions, newest first.
	ShortsByActor(ctx context.Context, actorID string) ([]model.ShortPosition, error)

	// ActiveShorts returns every active short position.
	ActiveShorts(ctx context.Context) ([]model.ShortPosition, error)

	// ActiveShort returns the actor's active short on an instrument, or
	// ErrNotFound when there is none.
	ActiveShort(ctx context.Context, actorID, instrument string) (*model.ShortPosition, error)
}
