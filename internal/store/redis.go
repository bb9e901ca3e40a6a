package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opinex/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// Market records are the hot read path (price display, self-healing
// reads), so they and the activity feed are cached; ledger queries pass
// through — they back portfolio replay, which must see every write.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Market records ---

func (s *CachedStore) GetRecord(ctx context.Context, instrument string) (*model.MarketRecord, error) {
	data, err := s.rdb.Get(ctx, recordKey(instrument)).Bytes()
	if err == nil {
		var r model.MarketRecord
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	r, err := s.primary.GetRecord(ctx, instrument)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, r)
	return r, nil
}

func (s *CachedStore) PutRecord(ctx context.Context, rec *model.MarketRecord) error {
	if err := s.primary.PutRecord(ctx, rec); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, recordKey(rec.Instrument))
	return nil
}

// --- Accounts ---

func (s *CachedStore) GetAccount(ctx context.Context, actorID string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(actorID)).Bytes()
	if err == nil {
		var a model.Account
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, accountKey(actorID), data, s.ttl)
	}
	return a, nil
}

func (s *CachedStore) PutAccount(ctx context.Context, acct *model.Account) error {
	if err := s.primary.PutAccount(ctx, acct); err != nil {
		return err
	}
	s.rdb.Del(ctx, accountKey(acct.ActorID))
	return nil
}

// --- Ledger (passthrough; replay must not read stale data) ---

func (s *CachedStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	return s.primary.InsertTransaction(ctx, tx)
}

func (s *CachedStore) TransactionsByActor(ctx context.Context, actorID string) ([]model.Transaction, error) {
	return s.primary.TransactionsByActor(ctx, actorID)
}

func (s *CachedStore) RecentInstrumentTrades(ctx context.Context, instrument string, limit int) ([]model.Transaction, error) {
	return s.primary.RecentInstrumentTrades(ctx, instrument, limit)
}

// --- Activity feed ---

func (s *CachedStore) AppendFeedItem(ctx context.Context, item *model.FeedItem) error {
	if err := s.primary.AppendFeedItem(ctx, item); err != nil {
		return err
	}
	s.rdb.Del(ctx, feedKey)
	return nil
}

func (s *CachedStore) RecentFeed(ctx context.Context, limit int) ([]model.FeedItem, error) {
	data, err := s.rdb.Get(ctx, feedKey).Bytes()
	if err == nil {
		var items []model.FeedItem
		if json.Unmarshal(data, &items) == nil {
			if limit > 0 && limit < len(items) {
				items = items[:limit]
			}
			return items, nil
		}
	}

	// Cache the full feed; trim per-request.
	items, err := s.primary.RecentFeed(ctx, FeedCap)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(items); err == nil {
		s.rdb.Set(ctx, feedKey, data, s.ttl)
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

// --- Short positions (passthrough; sweep needs current state) ---

func (s *CachedStore) InsertShort(ctx context.Context, pos *model.ShortPosition) error {
	return s.primary.InsertShort(ctx, pos)
}

func (s *CachedStore) UpdateShort(ctx context.Context, pos *model.ShortPosition) error {
	return s.primary.UpdateShort(ctx, pos)
}

func (s *CachedStore) ShortsByActor(ctx context.Context, actorID string) ([]model.ShortPosition, error) {
	return s.primary.ShortsByActor(ctx, actorID)
}

func (s *CachedStore) ActiveShorts(ctx context.Context) ([]model.ShortPosition, error) {
	return s.primary.ActiveShorts(ctx)
}

func (s *CachedStore) ActiveShort(ctx context.Context, actorID, instrument string) (*model.ShortPosition, error) {
	return s.primary.ActiveShort(ctx, actorID, instrument)
}

// --- Cache helpers ---

func (s *CachedStore) cacheRecord(ctx context.Context, r *model.MarketRecord) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, recordKey(r.Instrument), data, s.ttl)
	}
}

const feedKey = "feed:recent"

func recordKey(instrument string) string { return fmt.Sprintf("record:%s", instrument) }
func accountKey(actorID string) string   { return fmt.Sprintf("account:%s", actorID) }
