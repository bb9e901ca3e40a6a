package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/opinex/market-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// price history rides along as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetRecord(ctx context.Context, instrument string) (*model.MarketRecord, error) {
	var r model.MarketRecord
	var base, current string
	var history []byte

	err := s.pool.QueryRow(ctx,
		`SELECT instrument, times_purchased, times_sold,
		        base_price::TEXT, current_price::TEXT, price_history,
		        liquidity_score, daily_volume,
		        rapid_trade_count, dominance_ratio, last_checked, created_at
		 FROM market_records WHERE instrument = $1`, instrument).
		Scan(&r.Instrument, &r.TimesPurchased, &r.TimesSold,
			&base, &current, &history,
			&r.LiquidityScore, &r.DailyVolume,
			&r.RapidTradeCount, &r.DominanceRatio, &r.LastChecked, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %q: %w", instrument, err)
	}

	r.BasePrice, _ = decimal.NewFromString(base)
	r.CurrentPrice, _ = decimal.NewFromString(current)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &r.PriceHistory); err != nil {
			return nil, fmt.Errorf("decode price history for %q: %w", instrument, err)
		}
	}
	return &r, nil
}

func (s *PostgresStore) PutRecord(ctx context.Context, rec *model.MarketRecord) error {
	history, err := json.Marshal(rec.PriceHistory)
	if err != nil {
		return fmt.Errorf("encode price history: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO market_records
		   (instrument, times_purchased, times_sold, base_price, current_price,
		    price_history, liquidity_score, daily_volume,
		    rapid_trade_count, dominance_ratio, last_checked, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (instrument) DO UPDATE SET
		   times_purchased = EXCLUDED.times_purchased,
		   times_sold = EXCLUDED.times_sold,
		   current_price = EXCLUDED.current_price,
		   price_history = EXCLUDED.price_history,
		   liquidity_score = EXCLUDED.liquidity_score,
		   daily_volume = EXCLUDED.daily_volume,
		   rapid_trade_count = EXCLUDED.rapid_trade_count,
		   dominance_ratio = EXCLUDED.dominance_ratio,
		   last_checked = EXCLUDED.last_checked`,
		rec.Instrument, rec.TimesPurchased, rec.TimesSold,
		rec.BasePrice.String(), rec.CurrentPrice.String(),
		history, rec.LiquidityScore, rec.DailyVolume,
		rec.RapidTradeCount, rec.DominanceRatio, rec.LastChecked, rec.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, actorID string) (*model.Account, error) {
	var a model.Account
	var balance, earnings string

	err := s.pool.QueryRow(ctx,
		`SELECT actor_id, display_name, balance::TEXT, total_earnings::TEXT,
		        created_at, updated_at
		 FROM accounts WHERE actor_id = $1`, actorID).
		Scan(&a.ActorID, &a.DisplayName, &balance, &earnings,
			&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", actorID, err)
	}

	a.Balance, _ = decimal.NewFromString(balance)
	a.TotalEarnings, _ = decimal.NewFromString(earnings)
	return &a, nil
}

func (s *PostgresStore) PutAccount(ctx context.Context, acct *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (actor_id, display_name, balance, total_earnings, created_at, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5, $6)
		 ON CONFLICT (actor_id) DO UPDATE SET
		   display_name = EXCLUDED.display_name,
		   balance = EXCLUDED.balance,
		   total_earnings = EXCLUDED.total_earnings,
		   updated_at = EXCLUDED.updated_at`,
		acct.ActorID, acct.DisplayName,
		acct.Balance.String(), acct.TotalEarnings.String(),
		acct.CreatedAt, acct.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, kind, actor_id, amount, instrument, unit_price, quantity, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::NUMERIC, $7, $8)`,
		tx.ID, string(tx.Kind), tx.ActorID,
		tx.Amount.String(), tx.Instrument, tx.UnitPrice.String(),
		tx.Quantity, tx.Timestamp,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateTransaction
	}
	return err
}

func (s *PostgresStore) TransactionsByActor(ctx context.Context, actorID string) ([]model.Transaction, error) {
	// seq (bigserial) breaks same-timestamp ties so portfolio replay sees
	// a buy/sell pair in insert order.
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, actor_id, amount::TEXT, instrument, unit_price::TEXT, quantity, timestamp
		 FROM transactions WHERE actor_id = $1 ORDER BY timestamp, seq`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *PostgresStore) RecentInstrumentTrades(ctx context.Context, instrument string, limit int) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, actor_id, amount::TEXT, instrument, unit_price::TEXT, quantity, timestamp
		 FROM transactions
		 WHERE instrument = $1 AND kind IN ('buy', 'sell')
		 ORDER BY timestamp DESC, seq DESC LIMIT $2`, instrument, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *PostgresStore) AppendFeedItem(ctx context.Context, item *model.FeedItem) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO feed_items (type, actor_name, amount, instrument, timestamp)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)`,
		string(item.Type), item.ActorName, item.Amount.String(),
		item.Instrument, item.Timestamp,
	)
	if err != nil {
		return err
	}

	// Trim to the cap; cheap enough at feed volume.
	_, err = s.pool.Exec(ctx,
		`DELETE FROM feed_items WHERE id NOT IN (
		   SELECT id FROM feed_items ORDER BY timestamp DESC, id DESC LIMIT $1)`,
		FeedCap)
	return err
}

func (s *PostgresStore) RecentFeed(ctx context.Context, limit int) ([]model.FeedItem, error) {
	if limit <= 0 || limit > FeedCap {
		limit = FeedCap
	}
	rows, err := s.pool.Query(ctx,
		`SELECT type, actor_name, amount::TEXT, instrument, timestamp
		 FROM feed_items ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.FeedItem
	for rows.Next() {
		var it model.FeedItem
		var kind, amount string
		if err := rows.Scan(&kind, &it.ActorName, &amount, &it.Instrument, &it.Timestamp); err != nil {
			return nil, err
		}
		it.Type = model.TransactionKind(kind)
		it.Amount, _ = decimal.NewFromString(amount)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PostgresStore) InsertShort(ctx context.Context, pos *model.ShortPosition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO short_positions
		   (id, actor_id, instrument, bet_amount, target_drop_pct, starting_price,
		    target_price, potential_winnings, time_limit_hours,
		    created_at, expires_at, status, resolved_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC,
		         $7::NUMERIC, $8::NUMERIC, $9, $10, $11, $12, $13)`,
		pos.ID, pos.ActorID, pos.Instrument,
		pos.BetAmount.String(), pos.TargetDropPct.String(), pos.StartingPrice.String(),
		pos.TargetPrice.String(), pos.PotentialWinnings.String(), pos.TimeLimitHours,
		pos.CreatedAt, pos.ExpiresAt, string(pos.Status), pos.ResolvedAt,
	)
	return err
}

func (s *PostgresStore) UpdateShort(ctx context.Context, pos *model.ShortPosition) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE short_positions SET status = $2, resolved_at = $3 WHERE id = $1`,
		pos.ID, string(pos.Status), pos.ResolvedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const shortColumns = `id, actor_id, instrument, bet_amount::TEXT, target_drop_pct::TEXT,
	starting_price::TEXT, target_price::TEXT, potential_winnings::TEXT,
	time_limit_hours, created_at, expires_at, status, resolved_at`

func (s *PostgresStore) ShortsByActor(ctx context.Context, actorID string) ([]model.ShortPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+shortColumns+` FROM short_positions
		 WHERE actor_id = $1 ORDER BY created_at DESC`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanShorts(rows)
}

func (s *PostgresStore) ActiveShorts(ctx context.Context) ([]model.ShortPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+shortColumns+` FROM short_positions
		 WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanShorts(rows)
}

func (s *PostgresStore) ActiveShort(ctx context.Context, actorID, instrument string) (*model.ShortPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+shortColumns+` FROM short_positions
		 WHERE actor_id = $1 AND instrument = $2 AND status = 'active'
		 LIMIT 1`, actorID, instrument)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions, err := scanShorts(rows)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, ErrNotFound
	}
	return &positions[0], nil
}

func scanTransactions(rows pgx.Rows) ([]model.Transaction, error) {
	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var kind, amount, unitPrice string

		if err := rows.Scan(&tx.ID, &kind, &tx.ActorID, &amount,
			&tx.Instrument, &unitPrice, &tx.Quantity, &tx.Timestamp); err != nil {
			return nil, err
		}
		tx.Kind = model.TransactionKind(kind)
		tx.Amount, _ = decimal.NewFromString(amount)
		tx.UnitPrice, _ = decimal.NewFromString(unitPrice)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanShorts(rows pgx.Rows) ([]model.ShortPosition, error) {
	var positions []model.ShortPosition
	for rows.Next() {
		var p model.ShortPosition
		var status, bet, pct, start, target, winnings string

		if err := rows.Scan(&p.ID, &p.ActorID, &p.Instrument, &bet, &pct,
			&start, &target, &winnings,
			&p.TimeLimitHours, &p.CreatedAt, &p.ExpiresAt, &status, &p.ResolvedAt); err != nil {
			return nil, err
		}
		p.Status = model.ShortStatus(status)
		p.BetAmount, _ = decimal.NewFromString(bet)
		p.TargetDropPct, _ = decimal.NewFromString(pct)
		p.StartingPrice, _ = decimal.NewFromString(start)
		p.TargetPrice, _ = decimal.NewFromString(target)
		p.PotentialWinnings, _ = decimal.NewFromString(winnings)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
