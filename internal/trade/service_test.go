package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opinex/market-engine/internal/ledger"
	"github.com/opinex/market-engine/internal/market"
	"github.com/opinex/market-engine/internal/model"
	"github.com/opinex/market-engine/internal/shorts"
	"github.com/opinex/market-engine/internal/store"
	"github.com/opinex/market-engine/internal/trade"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*trade.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	lg := ledger.New(ms)
	svc := trade.NewService(ms, market.NewManager(ms), lg, shorts.NewManager(ms, lg), nil)

	r := chi.NewRouter()
	r.Get("/api/v1/price", svc.HandlePrice)
	r.Get("/api/v1/snapshot", svc.HandleSnapshot)
	r.Get("/api/v1/feed", svc.HandleFeed)
	r.Post("/api/v1/trade", svc.HandleTrade)
	r.Post("/api/v1/shorts", svc.HandlePlaceShort)
	r.Post("/api/v1/earn", svc.HandleEarn)
	r.Get("/api/v1/portfolio/{actorID}", svc.HandlePortfolio)
	r.Get("/api/v1/shorts/{actorID}", svc.HandleShorts)
	r.Post("/api/v1/reconcile/{actorID}", svc.HandleReconcile)

	return svc, ms, r
}

func doPost(t *testing.T, router chi.Router, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doGet(t *testing.T, router chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

// --- Trade execution tests ---

func TestTrade_BuyAtOrigin(t *testing.T) {
	_, ms, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID:    "alice",
		Instrument: "cats are better than dogs",
		Action:     "buy",
		Quantity:   1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var tx model.Transaction
	json.Unmarshal(w.Body.Bytes(), &tx)
	if tx.ID == "" {
		t.Error("expected non-empty transaction ID")
	}
	// Buyer pays the pre-trade price: 10.00 at origin.
	if !tx.Amount.Equal(d(-10.00)) {
		t.Errorf("amount = %s, want -10.00", tx.Amount)
	}
	if !tx.UnitPrice.Equal(d(10.00)) {
		t.Errorf("unit price = %s, want 10.00", tx.UnitPrice)
	}

	acct, err := ms.GetAccount(context.Background(), "alice")
	if err != nil {
		t.Fatalf("account should be lazily created: %v", err)
	}
	if !acct.Balance.Equal(d(90)) {
		t.Errorf("balance = %s, want 90", acct.Balance)
	}

	rec, _ := ms.GetRecord(context.Background(), "cats are better than dogs")
	if !rec.CurrentPrice.Equal(d(10.01)) {
		t.Errorf("post-trade price = %s, want 10.01", rec.CurrentPrice)
	}
}

func TestTrade_InstrumentNormalized(t *testing.T) {
	_, ms, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID:    "alice",
		Instrument: "  cats   are better\tthan dogs ",
		Action:     "buy",
		Quantity:   1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if _, err := ms.GetRecord(context.Background(), "cats are better than dogs"); err != nil {
		t.Errorf("record should be stored under the normalized text: %v", err)
	}
}

func TestTrade_InsufficientFunds(t *testing.T) {
	_, _, router := newTestEnv(t)

	// 11 units at 10.00 exceeds the 100 starting balance.
	w := doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID:    "alice",
		Instrument: "cats are better than dogs",
		Action:     "buy",
		Quantity:   11,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTrade_SellWithoutHoldings(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID:    "alice",
		Instrument: "cats are better than dogs",
		Action:     "sell",
		Quantity:   1,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTrade_BuyThenSell(t *testing.T) {
	_, ms, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID: "alice", Instrument: "cereal is a soup", Action: "buy", Quantity: 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("buy: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Price after 2 buys is 10.02; seller receives 95% of it.
	w = doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID: "alice", Instrument: "cereal is a soup", Action: "sell", Quantity: 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sell: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var tx model.Transaction
	json.Unmarshal(w.Body.Bytes(), &tx)
	if !tx.UnitPrice.Equal(d(9.52)) {
		t.Errorf("sell unit price = %s, want 9.52", tx.UnitPrice)
	}

	acct, _ := ms.GetAccount(context.Background(), "alice")
	// 100 - 20.00 buy + 9.52 sell
	if !acct.Balance.Equal(d(89.52)) {
		t.Errorf("balance = %s, want 89.52", acct.Balance)
	}
}

func TestTrade_InvalidRequests(t *testing.T) {
	_, _, router := newTestEnv(t)

	cases := []struct {
		name string
		req  trade.TradeRequest
	}{
		{"zero quantity", trade.TradeRequest{ActorID: "alice", Instrument: "x", Action: "buy"}},
		{"empty instrument", trade.TradeRequest{ActorID: "alice", Action: "buy", Quantity: 1}},
		{"bad action", trade.TradeRequest{ActorID: "alice", Instrument: "x", Action: "hold", Quantity: 1}},
		{"no actor", trade.TradeRequest{Instrument: "x", Action: "buy", Quantity: 1}},
	}
	for _, tc := range cases {
		w := doPost(t, router, "/api/v1/trade", tc.req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", tc.name, w.Code, w.Body.String())
		}
	}
}

func TestTrade_RapidTradingBlocked(t *testing.T) {
	_, _, router := newTestEnv(t)

	// Four rapid trades land; the fifth in the window is rejected.
	for i := 0; i < 4; i++ {
		w := doPost(t, router, "/api/v1/trade", trade.TradeRequest{
			ActorID: "alice", Instrument: "hot dogs are sandwiches", Action: "buy", Quantity: 1,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("trade %d: expected 200, got %d: %s", i+1, w.Code, w.Body.String())
		}
	}

	w := doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID: "alice", Instrument: "hot dogs are sandwiches", Action: "buy", Quantity: 1,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("fifth rapid trade: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Serialization tests ---

func TestConcurrentBuys_SerializedPerInstrument(t *testing.T) {
	svc, ms, _ := newTestEnv(t)
	ctx := context.Background()

	// Four concurrent buys stay under the rapid-trading block; the
	// instrument lock must serialize them without losing a counter bump.
	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Buy(ctx, "alice", "cats are better than dogs", 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent buy: %v", err)
		}
	}

	rec, _ := ms.GetRecord(ctx, "cats are better than dogs")
	if rec.TimesPurchased != n {
		t.Errorf("TimesPurchased = %d, want %d", rec.TimesPurchased, n)
	}

	// Serialized trades pay distinct pre-trade prices: 10.00 through
	// 10.03, so the balance must match the ledger replay exactly.
	acct, _ := ms.GetAccount(ctx, "alice")
	txs, _ := ms.TransactionsByActor(ctx, "alice")
	expected := d(100).Add(ledger.ReplayBalance(txs))
	if !acct.Balance.Equal(expected) {
		t.Errorf("balance = %s, ledger replay says %s", acct.Balance, expected)
	}
	if !acct.Balance.Equal(d(59.94)) {
		t.Errorf("balance = %s, want 59.94", acct.Balance)
	}
}

func TestConcurrentBuys_SerializedPerActor(t *testing.T) {
	svc, ms, _ := newTestEnv(t)
	ctx := context.Background()

	// One actor buying eight distinct instruments concurrently: the actor
	// lock must serialize the balance read-modify-writes.
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Buy(ctx, "alice", fmt.Sprintf("opinion number %d", i), 1)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent buy: %v", err)
		}
	}

	// Eight fresh instruments at 10.00 each.
	acct, _ := ms.GetAccount(ctx, "alice")
	if !acct.Balance.Equal(d(20)) {
		t.Errorf("balance = %s, want 20", acct.Balance)
	}
	txs, _ := ms.TransactionsByActor(ctx, "alice")
	if len(txs) != n {
		t.Errorf("ledger entries = %d, want %d", len(txs), n)
	}
}

// --- Price and snapshot tests ---

func TestGetPrice(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doGet(t, router, "/api/v1/price?instrument=winter+is+the+best+season")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Instrument string          `json:"instrument"`
		Price      decimal.Decimal `json:"price"`
		SellPrice  decimal.Decimal `json:"sell_price"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Price.Equal(d(10)) {
		t.Errorf("fresh instrument price = %s, want 10", resp.Price)
	}
	if !resp.SellPrice.Equal(d(9.50)) {
		t.Errorf("sell price = %s, want 9.50", resp.SellPrice)
	}
}

func TestGetPrice_MissingInstrument(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doGet(t, router, "/api/v1/price")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Short position tests ---

func TestPlaceShort(t *testing.T) {
	_, ms, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/shorts", trade.ShortRequest{
		ActorID:        "bob",
		Instrument:     "aliens have visited earth",
		BetAmount:      d(10),
		TargetDropPct:  d(20),
		TimeLimitHours: 24,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var pos model.ShortPosition
	json.Unmarshal(w.Body.Bytes(), &pos)
	if !pos.TargetPrice.Equal(d(8.00)) {
		t.Errorf("target price = %s, want 8.00", pos.TargetPrice)
	}
	if !pos.PotentialWinnings.Equal(d(56.25)) {
		t.Errorf("potential winnings = %s, want 56.25", pos.PotentialWinnings)
	}

	acct, _ := ms.GetAccount(context.Background(), "bob")
	if !acct.Balance.Equal(d(90)) {
		t.Errorf("balance after bet = %s, want 90", acct.Balance)
	}
}

func TestPlaceShort_HoldingsConflict(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID: "bob", Instrument: "aliens have visited earth", Action: "buy", Quantity: 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("buy: expected 200, got %d", w.Code)
	}

	// Shorting something you hold is rejected.
	w = doPost(t, router, "/api/v1/shorts", trade.ShortRequest{
		ActorID: "bob", Instrument: "aliens have visited earth",
		BetAmount: d(10), TargetDropPct: d(20), TimeLimitHours: 24,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPlaceShort_InvalidTarget(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/shorts", trade.ShortRequest{
		ActorID: "bob", Instrument: "aliens have visited earth",
		BetAmount: d(10), TargetDropPct: d(150), TimeLimitHours: 24,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPlaceShort_RapidTradingBlocked(t *testing.T) {
	_, _, router := newTestEnv(t)

	// Push the instrument into rapid-trade lockout with spot trades.
	for i := 0; i < 4; i++ {
		w := doPost(t, router, "/api/v1/trade", trade.TradeRequest{
			ActorID: "alice", Instrument: "aliens have visited earth", Action: "buy", Quantity: 1,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("trade %d: expected 200, got %d: %s", i+1, w.Code, w.Body.String())
		}
	}

	// A short on the locked-out instrument is rejected like a spot trade.
	w := doPost(t, router, "/api/v1/shorts", trade.ShortRequest{
		ActorID: "bob", Instrument: "aliens have visited earth",
		BetAmount: d(10), TargetDropPct: d(20), TimeLimitHours: 24,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTradeWhileShorting_ForceClosesShort(t *testing.T) {
	svc, ms, router := newTestEnv(t)
	svc.SetStartingBalance(d(1000))

	w := doPost(t, router, "/api/v1/shorts", trade.ShortRequest{
		ActorID: "bob", Instrument: "aliens have visited earth",
		BetAmount: d(10), TargetDropPct: d(20), TimeLimitHours: 24,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("short: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Buying the shorted instrument resolves the short as lost first.
	w = doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID: "bob", Instrument: "aliens have visited earth", Action: "buy", Quantity: 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("buy: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doGet(t, router, "/api/v1/shorts/bob")
	var positions []model.ShortPosition
	json.Unmarshal(w.Body.Bytes(), &positions)
	if len(positions) != 1 || positions[0].Status != model.ShortLost {
		t.Fatalf("expected one lost short, got %+v", positions)
	}

	acct, _ := ms.GetAccount(context.Background(), "bob")
	// 1000 - 10 bet - 200 early-exit penalty (20 units at 10.00) - 10.00 buy
	if !acct.Balance.Equal(d(780)) {
		t.Errorf("balance = %s, want 780", acct.Balance)
	}
}

func TestSweepShorts_ExpiresOverdue(t *testing.T) {
	svc, ms, router := newTestEnv(t)
	ctx := context.Background()

	// An active short whose deadline has already passed.
	now := time.Now().UTC()
	pos := &model.ShortPosition{
		ID:             uuid.New().String(),
		ActorID:        "bob",
		Instrument:     "the book is always better than the movie",
		BetAmount:      d(10),
		TargetDropPct:  d(20),
		StartingPrice:  d(10),
		TargetPrice:    d(8),
		TimeLimitHours: 1,
		CreatedAt:      now.Add(-2 * time.Hour),
		ExpiresAt:      now.Add(-time.Hour),
		Status:         model.ShortActive,
	}
	if err := ms.InsertShort(ctx, pos); err != nil {
		t.Fatalf("seed short: %v", err)
	}
	ms.PutAccount(ctx, &model.Account{ActorID: "bob", Balance: d(90)})

	svc.SweepShorts(ctx)

	w := doGet(t, router, "/api/v1/shorts/bob")
	var positions []model.ShortPosition
	json.Unmarshal(w.Body.Bytes(), &positions)
	if len(positions) != 1 || positions[0].Status != model.ShortExpired {
		t.Fatalf("expected one expired short, got %+v", positions)
	}

	acct, _ := ms.GetAccount(ctx, "bob")
	// 90 - 100 units * 10.00 current price
	if !acct.Balance.Equal(d(-910)) {
		t.Errorf("balance = %s, want -910", acct.Balance)
	}
}

// --- Earn, portfolio, feed, reconcile ---

func TestEarn(t *testing.T) {
	_, ms, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/earn", trade.EarnRequest{ActorID: "alice", Amount: d(25)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	acct, _ := ms.GetAccount(context.Background(), "alice")
	if !acct.Balance.Equal(d(125)) {
		t.Errorf("balance = %s, want 125", acct.Balance)
	}
	if !acct.TotalEarnings.Equal(d(25)) {
		t.Errorf("total earnings = %s, want 25", acct.TotalEarnings)
	}

	w = doPost(t, router, "/api/v1/earn", trade.EarnRequest{ActorID: "alice", Amount: d(-5)})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative earn: expected 400, got %d", w.Code)
	}
}

func TestPortfolio(t *testing.T) {
	_, _, router := newTestEnv(t)

	doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID: "alice", Instrument: "mornings are overrated", Action: "buy", Quantity: 2,
	})

	w := doGet(t, router, "/api/v1/portfolio/alice")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp trade.PortfolioResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(resp.Entries))
	}
	if resp.Entries[0].Quantity != 2 {
		t.Errorf("quantity = %d, want 2", resp.Entries[0].Quantity)
	}
	// Both units bought at the pre-trade price of 10.00.
	if !resp.Entries[0].AverageCost.Equal(d(10.00)) {
		t.Errorf("average cost = %s, want 10.00", resp.Entries[0].AverageCost)
	}
	if !resp.Balance.Equal(d(80)) {
		t.Errorf("balance = %s, want 80", resp.Balance)
	}
}

func TestPortfolio_UnknownActor(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doGet(t, router, "/api/v1/portfolio/nobody")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp trade.PortfolioResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Entries) != 0 || !resp.Balance.IsZero() {
		t.Errorf("unknown actor should have empty portfolio, got %+v", resp)
	}
}

func TestFeed(t *testing.T) {
	_, _, router := newTestEnv(t)

	doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID: "alice", Instrument: "cats are better than dogs", Action: "buy", Quantity: 1,
	})
	doPost(t, router, "/api/v1/earn", trade.EarnRequest{ActorID: "bob", Amount: d(5)})

	w := doGet(t, router, "/api/v1/feed")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var items []model.FeedItem
	json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 2 {
		t.Fatalf("feed length = %d, want 2", len(items))
	}
	// Newest first.
	if items[0].Type != model.KindEarn || items[1].Type != model.KindBuy {
		t.Errorf("feed order wrong: %+v", items)
	}

	w = doGet(t, router, "/api/v1/feed?limit=1")
	json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 1 {
		t.Errorf("limited feed length = %d, want 1", len(items))
	}
}

func TestReconcile_RepairsDriftedBalance(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ctx := context.Background()

	doPost(t, router, "/api/v1/trade", trade.TradeRequest{
		ActorID: "alice", Instrument: "cats are better than dogs", Action: "buy", Quantity: 1,
	})

	// Corrupt the cached balance behind the service's back.
	acct, _ := ms.GetAccount(ctx, "alice")
	acct.Balance = d(9999)
	ms.PutAccount(ctx, acct)

	w := doPost(t, router, "/api/v1/reconcile/alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Balance decimal.Decimal `json:"balance"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	// 100 starting - 10.00 buy
	if !resp.Balance.Equal(d(90)) {
		t.Errorf("reconciled balance = %s, want 90", resp.Balance)
	}

	stored, _ := ms.GetAccount(ctx, "alice")
	if !stored.Balance.Equal(d(90)) {
		t.Errorf("stored balance = %s, want 90", stored.Balance)
	}
}

func TestReconcile_UnknownActor(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/reconcile/nobody", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

// --- WebSocket hub ---

func TestWSHub_BroadcastNeverBlocksCaller(t *testing.T) {
	// No run loop consuming the queue: broadcasts must still return
	// promptly, since they fire inside the trade critical section.
	hub := trade.NewWSHub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.BroadcastFeed(model.FeedItem{Type: model.KindEarn, ActorName: "alice"})
			hub.BroadcastSnapshot(&model.MarketRecord{Instrument: "cats are better than dogs"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked with no consumer")
	}
}
