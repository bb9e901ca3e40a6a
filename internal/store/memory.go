package store

import (
	"context"
	"sync"

	"github.com/opinex/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*model.MarketRecord
	accounts map[string]*model.Account
	txs      []model.Transaction
	txIDs    map[string]bool
	feed     []model.FeedItem
	shorts   map[string]*model.ShortPosition
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*model.MarketRecord),
		accounts: make(map[string]*model.Account),
		txIDs:    make(map[string]bool),
		shorts:   make(map[string]*model.ShortPosition),
	}
}

func copyRecord(r *model.MarketRecord) *model.MarketRecord {
	cp := *r
	cp.PriceHistory = append([]model.PricePoint(nil), r.PriceHistory...)
	return &cp
}

func (s *MemoryStore) GetRecord(_ context.Context, instrument string) (*model.MarketRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[instrument]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(r), nil
}

func (s *MemoryStore) PutRecord(_ context.Context, rec *model.MarketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Instrument] = copyRecord(rec)
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, actorID string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[actorID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) PutAccount(_ context.Context, acct *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *acct
	s.accounts[acct.ActorID] = &cp
	return nil
}

func (s *MemoryStore) InsertTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txIDs[tx.ID] {
		return ErrDuplicateTransaction
	}
	s.txIDs[tx.ID] = true
	s.txs = append(s.txs, *tx)
	return nil
}

func (s *MemoryStore) TransactionsByActor(_ context.Context, actorID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, tx := range s.txs {
		if tx.ActorID == actorID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *MemoryStore) RecentInstrumentTrades(_ context.Context, instrument string, limit int) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for i := len(s.txs) - 1; i >= 0 && len(result) < limit; i-- {
		tx := s.txs[i]
		if tx.Instrument != instrument {
			continue
		}
		if tx.Kind != model.KindBuy && tx.Kind != model.KindSell {
			continue
		}
		result = append(result, tx)
	}
	return result, nil
}

func (s *MemoryStore) AppendFeedItem(_ context.Context, item *model.FeedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feed = append([]model.FeedItem{*item}, s.feed...)
	if len(s.feed) > FeedCap {
		s.feed = s.feed[:FeedCap]
	}
	return nil
}

func (s *MemoryStore) RecentFeed(_ context.Context, limit int) ([]model.FeedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.feed) {
		limit = len(s.feed)
	}
	return append([]model.FeedItem(nil), s.feed[:limit]...), nil
}

func (s *MemoryStore) InsertShort(_ context.Context, pos *model.ShortPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *pos
	s.shorts[pos.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateShort(_ context.Context, pos *model.ShortPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shorts[pos.ID]; !ok {
		return ErrNotFound
	}
	cp := *pos
	s.shorts[pos.ID] = &cp
	return nil
}

func (s *MemoryStore) ShortsByActor(_ context.Context, actorID string) ([]model.ShortPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ShortPosition
	for _, p := range s.shorts {
		if p.ActorID == actorID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (s *MemoryStore) ActiveShorts(_ context.Context) ([]model.ShortPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ShortPosition
	for _, p := range s.shorts {
		if p.Status == model.ShortActive {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (s *MemoryStore) ActiveShort(_ context.Context, actorID, instrument string) (*model.ShortPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.shorts {
		if p.ActorID == actorID && p.Instrument == instrument && p.Status == model.ShortActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
