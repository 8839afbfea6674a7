package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"promind-bot/internal/domain"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.statsUC.Snapshot(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("stats snapshot failed")
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// orderRequest is one settled payment, posted by the payment provider
// bridge. TopUpTokens is only read for top-up orders.
type orderRequest struct {
	TelegramID  int64  `json:"telegram_id"`
	OrderID     string `json:"order_id"`
	TopUpTokens int    `json:"top_up_tokens"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" || req.TelegramID == 0 {
		http.Error(w, "order_id and telegram_id are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	user, err := s.userUC.GetByTelegramID(ctx, req.TelegramID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Unknown user", http.StatusNotFound)
			return
		}
		http.Error(w, "Lookup failed", http.StatusInternalServerError)
		return
	}

	err = s.paymentUC.ApplyOrder(ctx, user.ID, req.OrderID, req.TopUpTokens)
	switch {
	case err == nil:
		// Tell the user their tokens arrived. Delivery is best effort;
		// the credit already committed.
		if s.notify != nil {
			if _, nerr := s.notify.SendMessage(ctx, req.TelegramID, s.tr.T("payment_received")); nerr != nil {
				s.log.Warn().Err(nerr).Int64("tg_id", req.TelegramID).Msg("payment notification failed")
			}
		}
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrOrderAlreadyApplied):
		// Idempotent replay; report success without re-crediting.
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrNoPendingPayment):
		http.Error(w, "No pending payment for user", http.StatusConflict)
	default:
		s.log.Error().Err(err).Str("order_id", req.OrderID).Msg("apply order failed")
		http.Error(w, "Failed to apply order", http.StatusInternalServerError)
	}
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	tgID, err := strconv.ParseInt(chi.URLParam(r, "tgID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid telegram id", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	user, err := s.userUC.GetByTelegramID(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Unknown user", http.StatusNotFound)
			return
		}
		http.Error(w, "Lookup failed", http.StatusInternalServerError)
		return
	}
	acct, err := s.ledgerUC.Account(ctx, user.ID)
	if err != nil {
		http.Error(w, "Account lookup failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		UserID  string `json:"user_id"`
		Balance int    `json:"balance"`
		Plan    string `json:"plan"`
	}{acct.UserID, acct.Balance, string(acct.Plan)})
}
