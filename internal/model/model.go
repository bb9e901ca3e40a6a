// Package model defines the core domain types shared across the market engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is the direction of a spot trade on an instrument.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// TransactionKind tags every ledger entry. Kinds are never reused or
// renamed once written; the activity feed and balance replay depend on them.
type TransactionKind string

const (
	KindBuy        TransactionKind = "buy"
	KindSell       TransactionKind = "sell"
	KindBetPlace   TransactionKind = "bet_place"
	KindBetWin     TransactionKind = "bet_win"
	KindBetLoss    TransactionKind = "bet_loss"
	KindShortPlace TransactionKind = "short_place"
	KindShortWin   TransactionKind = "short_win"
	KindShortLoss  TransactionKind = "short_loss"
	KindEarn       TransactionKind = "earn"
)

// ShortStatus is the lifecycle state of a short position.
// Every state other than active is terminal.
type ShortStatus string

const (
	ShortActive  ShortStatus = "active"
	ShortWon     ShortStatus = "won"
	ShortLost    ShortStatus = "lost"
	ShortExpired ShortStatus = "expired"
)

// Terminal reports whether the status is a resolved end state.
func (s ShortStatus) Terminal() bool {
	return s == ShortWon || s == ShortLost || s == ShortExpired
}

// PricePoint is one entry in an instrument's bounded price history.
type PricePoint struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	Action    TradeAction     `json:"action"`
	Quantity  uint64          `json:"quantity"`
}

// MarketRecord is the per-instrument market state. The instrument's text
// is its own key. Demand counters only ever increase; CurrentPrice is a
// cached derivation of the counters and is repaired on read if it drifts.
type MarketRecord struct {
	Instrument      string          `json:"instrument" db:"instrument"`
	TimesPurchased  uint64          `json:"times_purchased" db:"times_purchased"`
	TimesSold       uint64          `json:"times_sold" db:"times_sold"`
	BasePrice       decimal.Decimal `json:"base_price" db:"base_price"`
	CurrentPrice    decimal.Decimal `json:"current_price" db:"current_price"`
	PriceHistory    []PricePoint    `json:"price_history" db:"price_history"`
	LiquidityScore  float64         `json:"liquidity_score" db:"liquidity_score"`
	DailyVolume     uint64          `json:"daily_volume" db:"daily_volume"`
	RapidTradeCount uint64          `json:"rapid_trade_count" db:"rapid_trade_count"`
	DominanceRatio  float64         `json:"dominance_ratio" db:"dominance_ratio"`
	LastChecked     time.Time       `json:"last_checked" db:"last_checked"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Account holds an actor's cash balance and display identity. Accounts are
// created lazily on first use with the configured starting balance.
// Balances may go negative: short-position penalties apply without a cap.
type Account struct {
	ActorID       string          `json:"actor_id" db:"actor_id"`
	DisplayName   string          `json:"display_name" db:"display_name"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	TotalEarnings decimal.Decimal `json:"total_earnings" db:"total_earnings"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Transaction is an immutable ledger record. Once created, these are
// never modified or deleted. Amount is signed: debits negative.
type Transaction struct {
	ID         string          `json:"id" db:"id"`
	Kind       TransactionKind `json:"kind" db:"kind"`
	ActorID    string          `json:"actor_id" db:"actor_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Instrument string          `json:"instrument,omitempty" db:"instrument"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity   uint64          `json:"quantity" db:"quantity"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}

// PortfolioEntry is an actor's aggregate holding in one instrument,
// reconstructed by replaying buy/sell transactions. Entries with zero
// quantity are dropped.
type PortfolioEntry struct {
	ActorID     string          `json:"actor_id"`
	Instrument  string          `json:"instrument"`
	Quantity    uint64          `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	LastUpdated time.Time       `json:"last_updated"`
}

// ShortPosition is a bet that an instrument's price falls to TargetPrice
// before ExpiresAt. Mutated only by the short-position manager; immutable
// once Status is terminal.
type ShortPosition struct {
	ID                string          `json:"id" db:"id"`
	ActorID           string          `json:"actor_id" db:"actor_id"`
	Instrument        string          `json:"instrument" db:"instrument"`
	BetAmount         decimal.Decimal `json:"bet_amount" db:"bet_amount"`
	TargetDropPct     decimal.Decimal `json:"target_drop_pct" db:"target_drop_pct"`
	StartingPrice     decimal.Decimal `json:"starting_price" db:"starting_price"`
	TargetPrice       decimal.Decimal `json:"target_price" db:"target_price"`
	PotentialWinnings decimal.Decimal `json:"potential_winnings" db:"potential_winnings"`
	TimeLimitHours    float64         `json:"time_limit_hours" db:"time_limit_hours"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	ExpiresAt         time.Time       `json:"expires_at" db:"expires_at"`
	Status            ShortStatus     `json:"status" db:"status"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
}

// FeedItem is a denormalized, display-ready projection of a transaction
// for the global activity feed (bounded, most-recent-first).
type FeedItem struct {
	Type       TransactionKind `json:"type"`
	ActorName  string          `json:"actor_name"`
	Amount     decimal.Decimal `json:"amount"`
	Instrument string          `json:"instrument,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
