package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"promind-bot/internal/domain/ports/adapter"
	"promind-bot/internal/infra/i18n"
	"promind-bot/internal/usecase"
)

// Server exposes the ops surface: health, metrics and a small admin
// API for stats and payment-order ingestion.
type Server struct {
	statsUC   usecase.StatsUseCase
	userUC    usecase.UserUseCase
	paymentUC usecase.PaymentUseCase
	ledgerUC  usecase.LedgerUseCase
	notify    adapter.TelegramPort
	tr        *i18n.Translator
	apiKey    string
	log       *zerolog.Logger
	server    *http.Server
}

func NewServer(
	statsUC usecase.StatsUseCase,
	userUC usecase.UserUseCase,
	paymentUC usecase.PaymentUseCase,
	ledgerUC usecase.LedgerUseCase,
	notify adapter.TelegramPort,
	tr *i18n.Translator,
	apiKey string,
	port int,
	logger *zerolog.Logger,
) *Server {
	s := &Server{
		statsUC:   statsUC,
		userUC:    userUC,
		paymentUC: paymentUC,
		ledgerUC:  ledgerUC,
		notify:    notify,
		tr:        tr,
		apiKey:    apiKey,
		log:       logger,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/stats", s.handleStats)
		r.Post("/orders", s.handleOrder)
		r.Get("/users/{tgID}/balance", s.handleBalance)
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("ops server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
