// Package trade — HTTP handlers over the trade-execution facade.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/opinex/market-engine/internal/guard"
	"github.com/opinex/market-engine/internal/instrument"
	"github.com/opinex/market-engine/internal/model"
	"github.com/opinex/market-engine/internal/pricing"
	"github.com/opinex/market-engine/internal/shorts"
	"github.com/opinex/market-engine/internal/store"
)

// TradeRequest is the JSON body for POST /api/v1/trade.
type TradeRequest struct {
	ActorID    string `json:"actor_id"`
	Instrument string `json:"instrument"`
	Action     string `json:"action"` // "buy" or "sell"
	Quantity   uint64 `json:"quantity"`
}

// ShortRequest is the JSON body for POST /api/v1/shorts.
type ShortRequest struct {
	ActorID        string          `json:"actor_id"`
	Instrument     string          `json:"instrument"`
	BetAmount      decimal.Decimal `json:"bet_amount"`
	TargetDropPct  decimal.Decimal `json:"target_drop_pct"`
	TimeLimitHours float64         `json:"time_limit_hours"`
}

// EarnRequest is the JSON body for POST /api/v1/earn. Reason is
// informational — it shows up in logs, not on the ledger.
type EarnRequest struct {
	ActorID string          `json:"actor_id"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason,omitempty"`
}

// PortfolioResponse is the JSON body for GET /api/v1/portfolio/{actorID}.
type PortfolioResponse struct {
	ActorID string                 `json:"actor_id"`
	Balance decimal.Decimal        `json:"balance"`
	Entries []model.PortfolioEntry `json:"entries"`
}

// HandlePrice handles GET /api/v1/price?instrument=
func (s *Service) HandlePrice(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Snapshot(r.Context(), r.URL.Query().Get("instrument"))
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instrument": rec.Instrument,
		"price":      rec.CurrentPrice,
		"sell_price": pricing.SellPrice(rec.CurrentPrice),
	})
}

// HandleSnapshot handles GET /api/v1/snapshot?instrument=
func (s *Service) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Snapshot(r.Context(), r.URL.Query().Get("instrument"))
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleTrade handles POST /api/v1/trade.
func (s *Service) HandleTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ActorID == "" {
		writeError(w, "actor_id is required", http.StatusBadRequest)
		return
	}

	var tx *model.Transaction
	var err error
	switch model.TradeAction(req.Action) {
	case model.ActionBuy:
		tx, err = s.Buy(r.Context(), req.ActorID, req.Instrument, req.Quantity)
	case model.ActionSell:
		tx, err = s.Sell(r.Context(), req.ActorID, req.Instrument, req.Quantity)
	default:
		writeError(w, "action must be buy or sell", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// HandlePlaceShort handles POST /api/v1/shorts.
func (s *Service) HandlePlaceShort(w http.ResponseWriter, r *http.Request) {
	var req ShortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ActorID == "" {
		writeError(w, "actor_id is required", http.StatusBadRequest)
		return
	}

	pos, err := s.PlaceShort(r.Context(), req.ActorID, req.Instrument,
		req.BetAmount, req.TargetDropPct, req.TimeLimitHours)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, pos)
}

// HandleShorts handles GET /api/v1/shorts/{actorID}.
func (s *Service) HandleShorts(w http.ResponseWriter, r *http.Request) {
	positions, err := s.ShortsFor(r.Context(), chi.URLParam(r, "actorID"))
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if positions == nil {
		positions = []model.ShortPosition{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// HandleEarn handles POST /api/v1/earn.
func (s *Service) HandleEarn(w http.ResponseWriter, r *http.Request) {
	var req EarnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ActorID == "" {
		writeError(w, "actor_id is required", http.StatusBadRequest)
		return
	}

	tx, err := s.Earn(r.Context(), req.ActorID, req.Amount)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if req.Reason != "" {
		slog.Info("earn credited", "tx", tx.ID, "actor", req.ActorID, "reason", req.Reason)
	}
	writeJSON(w, http.StatusOK, tx)
}

// HandlePortfolio handles GET /api/v1/portfolio/{actorID}.
func (s *Service) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")
	entries, balance, err := s.Portfolio(r.Context(), actorID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if entries == nil {
		entries = []model.PortfolioEntry{}
	}
	writeJSON(w, http.StatusOK, PortfolioResponse{
		ActorID: actorID,
		Balance: balance,
		Entries: entries,
	})
}

// HandleFeed handles GET /api/v1/feed?limit=
func (s *Service) HandleFeed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	items, err := s.Feed(r.Context(), limit)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if items == nil {
		items = []model.FeedItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleReconcile handles POST /api/v1/reconcile/{actorID}.
func (s *Service) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")
	balance, err := s.ReconcileAccount(r.Context(), actorID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actor_id": actorID,
		"balance":  balance,
	})
}

// statusFor maps domain errors onto HTTP statuses: bad input → 400,
// economic/eligibility conflicts → 409, missing → 404, the rest → 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, instrument.ErrEmpty),
		errors.Is(err, instrument.ErrTooLong),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidDuration),
		errors.Is(err, shorts.ErrInvalidTarget),
		errors.Is(err, shorts.ErrInvalidBet):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientHoldings),
		errors.Is(err, ErrHoldingsConflict),
		errors.Is(err, ErrActiveShortConflict),
		errors.Is(err, guard.ErrRapidTrading),
		errors.Is(err, shorts.ErrActiveShortExists):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
