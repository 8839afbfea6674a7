// File: internal/infra/web/handlers_test.go
package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/adapter"
	"promind-bot/internal/infra/i18n"
	"promind-bot/internal/usecase"
)

type fakeStats struct{ stats usecase.Stats }

func (f *fakeStats) Snapshot(ctx context.Context) (*usecase.Stats, error) {
	cp := f.stats
	return &cp, nil
}

type fakeUsers struct{ users map[int64]*model.UserProfile }

func (f *fakeUsers) RegisterOrFetch(ctx context.Context, tgID int64, firstName, username string) (*model.UserProfile, error) {
	return f.GetByTelegramID(ctx, tgID)
}

func (f *fakeUsers) GetByTelegramID(ctx context.Context, tgID int64) (*model.UserProfile, error) {
	u, ok := f.users[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

type fakePayments struct {
	applied map[string]bool
	pending model.PendingPayment
}

func (f *fakePayments) SetPending(ctx context.Context, userID string, p model.PendingPayment) error {
	f.pending = p
	return nil
}

func (f *fakePayments) ApplyOrder(ctx context.Context, userID, orderID string, topUpTokens int) error {
	if f.applied[orderID] {
		return domain.ErrOrderAlreadyApplied
	}
	if f.pending == model.PendingNone {
		return domain.ErrNoPendingPayment
	}
	f.applied[orderID] = true
	return nil
}

type fakeLedger struct{ account *model.TokenAccount }

func (f *fakeLedger) EnsureAccount(ctx context.Context, userID string) (*model.TokenAccount, error) {
	return f.account, nil
}
func (f *fakeLedger) Account(ctx context.Context, userID string) (*model.TokenAccount, error) {
	if f.account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return f.account, nil
}
func (f *fakeLedger) Debit(ctx context.Context, userID string, amount int, comment string) (bool, error) {
	return false, nil
}
func (f *fakeLedger) Credit(ctx context.Context, userID string, amount int, comment, sourceOrderID string) error {
	return nil
}
func (f *fakeLedger) Balance(ctx context.Context, userID string) (int, error) {
	return f.account.Balance, nil
}
func (f *fakeLedger) HasActivePlan(ctx context.Context, userID string) (bool, error) {
	return false, nil
}
func (f *fakeLedger) ActivatePlan(ctx context.Context, userID string, plan model.Plan, sourceOrderID string) error {
	return nil
}
func (f *fakeLedger) Transactions(ctx context.Context, userID string, limit int) ([]*model.TokenTransaction, error) {
	return nil, nil
}
func (f *fakeLedger) SweepExpiredPlans(ctx context.Context) (int, error) { return 0, nil }

// fakeNotifier records outbound telegram messages.
type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) SendMessage(ctx context.Context, tgID int64, text string) (int, error) {
	f.sent = append(f.sent, text)
	return len(f.sent), nil
}
func (f *fakeNotifier) EditMessage(ctx context.Context, tgID int64, messageID int, text string) error {
	return nil
}
func (f *fakeNotifier) DeleteMessage(ctx context.Context, tgID int64, messageID int) error {
	return nil
}
func (f *fakeNotifier) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) (int, error) {
	return 0, nil
}
func (f *fakeNotifier) SendPhoto(ctx context.Context, tgID int64, name string, data []byte, urlRef string) error {
	return nil
}
func (f *fakeNotifier) SendVideo(ctx context.Context, tgID int64, name string, data []byte) error {
	return nil
}
func (f *fakeNotifier) SendVoice(ctx context.Context, tgID int64, data []byte) error {
	return nil
}

func newTestServer() *Server {
	s, _ := newTestServerWithNotifier()
	return s
}

func newTestServerWithNotifier() (*Server, *fakeNotifier) {
	log := zerolog.Nop()
	user, _ := model.NewUserProfile("u1", 4242, "Ada", "ada")
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		panic(err)
	}
	notifier := &fakeNotifier{}
	s := NewServer(
		&fakeStats{stats: usecase.Stats{Users: 2, TokensOutstanding: 170, Transactions: 3}},
		&fakeUsers{users: map[int64]*model.UserProfile{4242: user}},
		&fakePayments{applied: map[string]bool{}, pending: model.PendingTopUp},
		&fakeLedger{account: &model.TokenAccount{UserID: "u1", Balance: 170, Plan: model.PlanPlus}},
		notifier,
		tr,
		"secret-key",
		0,
		&log,
	)
	return s, notifier
}

func get(t *testing.T, h http.Handler, path, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postOrder(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	rec := get(t, newTestServer().Routes(), "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminAPIAuth(t *testing.T) {
	h := newTestServer().Routes()

	if rec := get(t, h, "/api/v1/stats", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}
	if rec := get(t, h, "/api/v1/stats", "secret-key"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("malformed token: status = %d", rec.Code)
	}
	if rec := get(t, h, "/api/v1/stats", "Bearer wrong"); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong token: status = %d", rec.Code)
	}
	if rec := get(t, h, "/api/v1/stats", "Bearer secret-key"); rec.Code != http.StatusOK {
		t.Fatalf("good token: status = %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	rec := get(t, newTestServer().Routes(), "/api/v1/stats", "Bearer secret-key")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"users":2`) || !strings.Contains(body, `"tokens_outstanding":170`) {
		t.Fatalf("body = %s", body)
	}
}

func TestOrderEndpointIdempotent(t *testing.T) {
	h := newTestServer().Routes()

	if rec := postOrder(t, h, `{"telegram_id":4242,"order_id":"ord-1","top_up_tokens":500}`); rec.Code != http.StatusOK {
		t.Fatalf("first order: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	// A replayed order reports success without crediting again.
	if rec := postOrder(t, h, `{"telegram_id":4242,"order_id":"ord-1","top_up_tokens":500}`); rec.Code != http.StatusOK {
		t.Fatalf("replayed order: status = %d", rec.Code)
	}
}

func TestOrderEndpointNotifiesUserOnce(t *testing.T) {
	s, notifier := newTestServerWithNotifier()
	h := s.Routes()

	if rec := postOrder(t, h, `{"telegram_id":4242,"order_id":"ord-7","top_up_tokens":500}`); rec.Code != http.StatusOK {
		t.Fatalf("order: status = %d", rec.Code)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.sent))
	}
	// The idempotent replay credits nothing, so it says nothing.
	if rec := postOrder(t, h, `{"telegram_id":4242,"order_id":"ord-7","top_up_tokens":500}`); rec.Code != http.StatusOK {
		t.Fatalf("replay: status = %d", rec.Code)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("notifications after replay = %d, want 1", len(notifier.sent))
	}
}

func TestOrderEndpointErrors(t *testing.T) {
	h := newTestServer().Routes()

	if rec := postOrder(t, h, `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status = %d", rec.Code)
	}
	if rec := postOrder(t, h, `{"telegram_id":4242}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing order id: status = %d", rec.Code)
	}
	if rec := postOrder(t, h, `{"telegram_id":1,"order_id":"ord-2"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user: status = %d", rec.Code)
	}
}

func TestOrderEndpointNoPendingPayment(t *testing.T) {
	log := zerolog.Nop()
	user, _ := model.NewUserProfile("u1", 4242, "Ada", "ada")
	srv := NewServer(
		&fakeStats{},
		&fakeUsers{users: map[int64]*model.UserProfile{4242: user}},
		&fakePayments{applied: map[string]bool{}, pending: model.PendingNone},
		&fakeLedger{},
		nil,
		nil,
		"secret-key",
		0,
		&log,
	)
	rec := postOrder(t, srv.Routes(), `{"telegram_id":4242,"order_id":"ord-1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	h := newTestServer().Routes()

	rec := get(t, h, "/api/v1/users/4242/balance", "Bearer secret-key")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"balance":170`) || !strings.Contains(body, `"plan":"PLUS"`) {
		t.Fatalf("body = %s", body)
	}

	if rec := get(t, h, "/api/v1/users/notanumber/balance", "Bearer secret-key"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d", rec.Code)
	}
	if rec := get(t, h, "/api/v1/users/1/balance", "Bearer secret-key"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user: status = %d", rec.Code)
	}
}
