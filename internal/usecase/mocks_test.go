// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/adapter"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memLedger is a small in-memory ledger used by unit tests. It backs
// both the account store and the transaction log so replay checks see
// the same data the balance mutations produced.
type memLedger struct {
	mu       sync.Mutex
	accounts map[string]*model.TokenAccount
	log      []*model.TokenTransaction
}

func newMemLedger() *memLedger {
	return &memLedger{accounts: make(map[string]*model.TokenAccount)}
}

func (m *memLedger) CreateAccount(ctx context.Context, qx any, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[userID]; ok {
		return false, nil
	}
	m.accounts[userID] = model.NewTokenAccount(userID)
	return true, nil
}

func (m *memLedger) FindAccount(ctx context.Context, qx any, userID string) (*model.TokenAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memLedger) Debit(ctx context.Context, userID string, amount int, comment string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return false, domain.ErrAccountNotFound
	}
	if a.Balance < amount {
		return false, nil
	}
	a.Balance -= amount
	m.log = append(m.log, model.NewTokenTransaction(userID, amount, model.TxDebit, comment, ""))
	return true, nil
}

func (m *memLedger) Credit(ctx context.Context, userID string, amount int, comment, sourceOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if sourceOrderID != "" {
		for _, t := range m.log {
			if t.SourceOrderID == sourceOrderID {
				return domain.ErrAlreadyExists
			}
		}
	}
	a.Balance += amount
	m.log = append(m.log, model.NewTokenTransaction(userID, amount, model.TxCredit, comment, sourceOrderID))
	return nil
}

func (m *memLedger) SaveAccount(ctx context.Context, qx any, a *model.TokenAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.accounts[a.UserID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	// Plan fields only; balance stays whatever the ledger made it.
	stored.Plan = a.Plan
	stored.PlanExpiresAt = a.PlanExpiresAt
	stored.PendingPayment = a.PendingPayment
	stored.UpdatedAt = a.UpdatedAt
	return nil
}

func (m *memLedger) SumBalances(ctx context.Context, qx any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, a := range m.accounts {
		sum += a.Balance
	}
	return sum, nil
}

func (m *memLedger) ClearExpiredPlans(ctx context.Context, qx any, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.accounts {
		if a.PlanExpired(now) {
			a.ClearPlan()
			n++
		}
	}
	return n, nil
}

func (m *memLedger) ListByUser(ctx context.Context, qx any, userID string, limit int) ([]*model.TokenTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TokenTransaction
	for _, t := range m.log {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLedger) ReplayBalance(ctx context.Context, qx any, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, t := range m.log {
		if t.UserID == userID {
			sum += t.Delta()
		}
	}
	return sum, nil
}

func (m *memLedger) FindBySourceOrder(ctx context.Context, qx any, sourceOrderID string) (*model.TokenTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.log {
		if t.SourceOrderID != "" && t.SourceOrderID == sourceOrderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memLedger) CountAll(ctx context.Context, qx any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log), nil
}

func (m *memLedger) entries(userID string) []*model.TokenTransaction {
	out, _ := m.ListByUser(context.Background(), nil, userID, 0)
	return out
}

// memUserRepo keeps user profiles keyed by Telegram id.
type memUserRepo struct {
	mu    sync.Mutex
	byTG  map[int64]*model.UserProfile
	byIDs map[string]*model.UserProfile
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byTG: make(map[int64]*model.UserProfile), byIDs: make(map[string]*model.UserProfile)}
}

func (m *memUserRepo) Save(ctx context.Context, qx any, u *model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byTG[u.TelegramID] = &cp
	m.byIDs[u.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByTelegramID(ctx context.Context, qx any, tgID int64) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byTG[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByID(ctx context.Context, qx any, id string) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byIDs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) CountUsers(ctx context.Context, qx any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byTG), nil
}

// memSessionRepo keeps the first session saved per user, like the
// database unique constraint does.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.AssistantSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.AssistantSession)}
}

func (m *memSessionRepo) FindByUser(ctx context.Context, qx any, userID string) (*model.AssistantSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) Save(ctx context.Context, qx any, s *model.AssistantSession) (*model.AssistantSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if winner, ok := m.sessions[s.UserID]; ok {
		cp := *winner
		return &cp, nil
	}
	cp := *s
	m.sessions[s.UserID] = &cp
	return s, nil
}

// fakeAssistant scripts the assistant provider: RunStatus walks the
// probes slice and holds the final probe once exhausted.
type fakeAssistant struct {
	mu          sync.Mutex
	sessionSeq  int
	runSeq      int
	probes      []model.StatusProbe
	probeIdx    int
	result      []model.ResultPart
	files       map[string]string // file id -> content
	leftoverRun string
	appended    []string
	imagePart   *model.ResultPart
	imageErr    error
	transcript  string
	speech      []byte
	synthErr    error
	policy      adapter.PollPolicy

	inflight    int
	maxInflight int
}

func newFakeAssistant(probes ...model.StatusProbe) *fakeAssistant {
	return &fakeAssistant{
		probes: probes,
		files:  make(map[string]string),
		policy: adapter.PollPolicy{Interval: 0, MaxAttempts: 10},
	}
}

func (f *fakeAssistant) CreateSession(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionSeq++
	return "thread-" + strconv.Itoa(f.sessionSeq), nil
}

func (f *fakeAssistant) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.appended = append(f.appended, content)
	return nil
}

func (f *fakeAssistant) StartRun(ctx context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runSeq++
	return "run-" + strconv.Itoa(f.runSeq), nil
}

func (f *fakeAssistant) RunStatus(ctx context.Context, sessionID, runID string) (model.StatusProbe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.probes) == 0 {
		return model.StatusProbe{Status: model.StatusCompleted, Progress: -1}, nil
	}
	p := f.probes[f.probeIdx]
	if f.probeIdx < len(f.probes)-1 {
		f.probeIdx++
	}
	return p, nil
}

func (f *fakeAssistant) ActiveRun(ctx context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := f.leftoverRun
	f.leftoverRun = ""
	return run, nil
}

func (f *fakeAssistant) ListResult(ctx context.Context, sessionID string) ([]model.ResultPart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight > 0 {
		f.inflight--
	}
	out := make([]model.ResultPart, len(f.result))
	copy(out, f.result)
	return out, nil
}

func (f *fakeAssistant) FetchFile(ctx context.Context, fileID string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[fileID]
	if !ok {
		return nil, "", errors.New("file not found: " + fileID)
	}
	return []byte(content), fileID + ".png", nil
}

func (f *fakeAssistant) GenerateImage(ctx context.Context, prompt string) (*model.ResultPart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	if f.imagePart != nil {
		cp := *f.imagePart
		return &cp, nil
	}
	return &model.ResultPart{Ref: "img-" + prompt, FileName: "image.png", Data: []byte("png")}, nil
}

func (f *fakeAssistant) Transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	return f.transcript, nil
}

func (f *fakeAssistant) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return f.speech, nil
}

func (f *fakeAssistant) CountTokens(text string) int { return len(text) / 4 }

func (f *fakeAssistant) PollPolicy() adapter.PollPolicy { return f.policy }

// fakeVideo scripts one video backend the same way.
type fakeVideo struct {
	mu       sync.Mutex
	name     model.ProviderName
	submits  []adapter.VideoRequest
	probes   []model.StatusProbe
	probeIdx int
	clip     []byte
	dlErr    error
	subErr   error
}

func newFakeVideo(name model.ProviderName, probes ...model.StatusProbe) *fakeVideo {
	return &fakeVideo{name: name, probes: probes, clip: []byte("mp4")}
}

func (f *fakeVideo) Name() model.ProviderName { return f.name }

func (f *fakeVideo) Submit(ctx context.Context, req adapter.VideoRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return "", f.subErr
	}
	f.submits = append(f.submits, req)
	return "job-" + strconv.Itoa(len(f.submits)), nil
}

func (f *fakeVideo) Status(ctx context.Context, jobID string) (model.StatusProbe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.probes) == 0 {
		return model.StatusProbe{Status: model.StatusCompleted, Progress: -1, ResultRef: "https://cdn/video.mp4"}, nil
	}
	p := f.probes[f.probeIdx]
	if f.probeIdx < len(f.probes)-1 {
		f.probeIdx++
	}
	return p, nil
}

func (f *fakeVideo) Download(ctx context.Context, resultURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dlErr != nil {
		return nil, f.dlErr
	}
	return f.clip, nil
}

func (f *fakeVideo) PollPolicy() adapter.PollPolicy {
	return adapter.PollPolicy{Interval: 0, MaxAttempts: 10}
}
