// File: internal/usecase/video_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/infra/memstore"
)

type videoFixture struct {
	uc     *videoUC
	ledger *ledgerUC
	repo   *memLedger
	lite   *fakeVideo
	pro    *fakeVideo
}

func newVideoFixture(t *testing.T) *videoFixture {
	t.Helper()
	repo := newMemLedger()
	ledger := NewLedgerUseCase(repo, repo, testLogger())
	if _, err := ledger.EnsureAccount(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	lite := newFakeVideo(model.ProviderVideoA)
	pro := newFakeVideo(model.ProviderVideoB)
	orch := newTestOrchestrator(newFakeAssistant(), lite, pro)
	uc := NewVideoUseCase(orch, ledger, memstore.NewPendingRequestStore(), false, testLogger())
	return &videoFixture{uc: uc, ledger: ledger, repo: repo, lite: lite, pro: pro}
}

func TestVideoRequestCostScalesWithDuration(t *testing.T) {
	ctx := context.Background()
	fx := newVideoFixture(t)

	if _, err := fx.uc.Begin(ctx, "u1", "a sunset", ""); err != nil {
		t.Fatal(err)
	}
	req, err := fx.uc.SelectParameters(ctx, "u1", model.QualityLite, 5)
	if err != nil {
		t.Fatal(err)
	}
	if req.Cost() != 50 {
		t.Fatalf("lite 5s cost = %d, want 50", req.Cost())
	}
	if req, _ = fx.uc.SelectParameters(ctx, "u1", model.QualityLite, 15); req.Cost() != 150 {
		t.Fatalf("lite 15s cost = %d, want 150", req.Cost())
	}
	if req, _ = fx.uc.SelectParameters(ctx, "u1", model.QualityPro, 10); req.Cost() != 300 {
		t.Fatalf("pro 10s cost = %d, want 300", req.Cost())
	}
	if req.Stage != model.StageAwaitingConfirmation {
		t.Fatalf("stage = %s, want awaiting confirmation", req.Stage)
	}
}

func TestVideoSelectRejectsInvalidParameters(t *testing.T) {
	ctx := context.Background()
	fx := newVideoFixture(t)
	if _, err := fx.uc.Begin(ctx, "u1", "a sunset", ""); err != nil {
		t.Fatal(err)
	}

	if _, err := fx.uc.SelectParameters(ctx, "u1", model.QualityLite, 7); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}
	if _, err := fx.uc.SelectParameters(ctx, "u1", "ultra", 5); !errors.Is(err, domain.ErrInvalidQuality) {
		t.Fatalf("err = %v, want ErrInvalidQuality", err)
	}
	// A failed selection leaves the request collecting.
	req, err := fx.uc.Pending(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if req.Stage != model.StageCollecting {
		t.Fatalf("stage = %s after invalid selection", req.Stage)
	}
}

func TestVideoBeginReplacesPendingRequest(t *testing.T) {
	ctx := context.Background()
	fx := newVideoFixture(t)

	if _, err := fx.uc.Begin(ctx, "u1", "first prompt", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.uc.SelectParameters(ctx, "u1", model.QualityPro, 15); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.uc.Begin(ctx, "u1", "second prompt", ""); err != nil {
		t.Fatal(err)
	}

	req, err := fx.uc.Pending(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if req.Prompt != "second prompt" || req.Stage != model.StageCollecting {
		t.Fatalf("pending = %+v, want fresh second request", req)
	}
}

func TestVideoBeginShortcutSkipsPicker(t *testing.T) {
	ctx := context.Background()
	fx := newVideoFixture(t)

	req, err := fx.uc.Begin(ctx, "u1", "10 pro a drone shot over dunes", "")
	if err != nil {
		t.Fatal(err)
	}
	if req.Stage != model.StageAwaitingConfirmation {
		t.Fatalf("stage = %s, want awaiting confirmation", req.Stage)
	}
	if req.Duration != 10 || req.Quality != model.QualityPro {
		t.Fatalf("params = %ds %s, want 10s pro", req.Duration, req.Quality)
	}
	if req.Prompt != "a drone shot over dunes" {
		t.Fatalf("prompt = %q, leading tokens not stripped", req.Prompt)
	}
	if req.Cost() != 300 {
		t.Fatalf("cost = %d, want 300", req.Cost())
	}

	if err := fx.ledger.Credit(ctx, "u1", 200, "top up", ""); err != nil {
		t.Fatal(err)
	}
	out, err := fx.uc.Confirm(ctx, "u1", NopProgress)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Charged || !out.Success {
		t.Fatalf("outcome = %+v, want charged success", out)
	}
	if len(fx.pro.submits) != 1 || fx.pro.submits[0].Duration != 10 {
		t.Fatalf("pro submits = %+v, want one 10s job", fx.pro.submits)
	}
	if fx.pro.submits[0].Prompt != "a drone shot over dunes" {
		t.Fatalf("submitted prompt = %q", fx.pro.submits[0].Prompt)
	}
}

func TestVideoBeginShortcutRejectsUnknownValues(t *testing.T) {
	ctx := context.Background()
	fx := newVideoFixture(t)

	// Leading tokens outside the closed enumerations are not a shortcut;
	// the whole text stays the prompt and the picker flow applies.
	req, err := fx.uc.Begin(ctx, "u1", "7 ultra a cat on a skateboard", "")
	if err != nil {
		t.Fatal(err)
	}
	if req.Stage != model.StageCollecting {
		t.Fatalf("stage = %s, want collecting", req.Stage)
	}
	if req.Prompt != "7 ultra a cat on a skateboard" {
		t.Fatalf("prompt = %q, want full input kept", req.Prompt)
	}
}

func TestVideoConfirmUnavailableTierSkipsDebit(t *testing.T) {
	ctx := context.Background()
	repo := newMemLedger()
	ledger := NewLedgerUseCase(repo, repo, testLogger())
	if _, err := ledger.EnsureAccount(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	// Only the lite backend is wired; the pro tier has no provider.
	lite := newFakeVideo(model.ProviderVideoA)
	orch := NewOrchestrator(newFakeAssistant(), lite, nil, newMemSessionRepo(), memstore.NewUserLocker(), testLogger())
	uc := NewVideoUseCase(orch, ledger, memstore.NewPendingRequestStore(), false, testLogger())

	if _, err := uc.Begin(ctx, "u1", "10 pro a thunderstorm timelapse", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.Confirm(ctx, "u1", NopProgress); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}

	a, err := ledger.Account(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Balance != model.InitialGrant {
		t.Fatalf("balance = %d, nothing may be charged", a.Balance)
	}
	// The request survives, so a lite retry still works.
	if _, err := uc.SelectParameters(ctx, "u1", model.QualityLite, 10); err != nil {
		t.Fatal(err)
	}
	out, err := uc.Confirm(ctx, "u1", NopProgress)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Charged || !out.Success {
		t.Fatalf("outcome = %+v, want charged success on the lite tier", out)
	}
}

func TestVideoConfirmRequiresSelection(t *testing.T) {
	ctx := context.Background()
	fx := newVideoFixture(t)

	if _, err := fx.uc.Confirm(ctx, "missing", NopProgress); !errors.Is(err, domain.ErrNoPendingRequest) {
		t.Fatalf("err = %v, want ErrNoPendingRequest", err)
	}

	if _, err := fx.uc.Begin(ctx, "u1", "a sunset", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.uc.Confirm(ctx, "u1", NopProgress); !errors.Is(err, domain.ErrRequestNotConfirmed) {
		t.Fatalf("err = %v, want ErrRequestNotConfirmed", err)
	}
}

func TestVideoConfirmChargesOnce(t *testing.T) {
	ctx := context.Background()
	fx := newVideoFixture(t)

	if _, err := fx.uc.Begin(ctx, "u1", "a sunset", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.uc.SelectParameters(ctx, "u1", model.QualityLite, 10); err != nil {
		t.Fatal(err)
	}

	out, err := fx.uc.Confirm(ctx, "u1", NopProgress)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success || !out.Charged {
		t.Fatalf("outcome = %+v", out)
	}
	if out.VideoURL == "" {
		t.Fatal("no video ref in outcome")
	}
	bal, _ := fx.ledger.Balance(ctx, "u1")
	if want := model.InitialGrant - 100; bal != want {
		t.Fatalf("balance = %d, want %d", bal, want)
	}

	// The request is consumed; confirming again has nothing to act on.
	if _, err := fx.uc.Confirm(ctx, "u1", NopProgress); !errors.Is(err, domain.ErrNoPendingRequest) {
		t.Fatalf("second confirm err = %v, want ErrNoPendingRequest", err)
	}
	if len(fx.lite.submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(fx.lite.submits))
	}
}

func TestVideoConfirmInsufficientKeepsRequest(t *testing.T) {
	ctx := context.Background()
	fx := newVideoFixture(t)

	if _, err := fx.uc.Begin(ctx, "u1", "a sunset", ""); err != nil {
		t.Fatal(err)
	}
	// Pro 15s costs 450, well past the initial grant.
	if _, err := fx.uc.SelectParameters(ctx, "u1", model.QualityPro, 15); err != nil {
		t.Fatal(err)
	}

	out, err := fx.uc.Confirm(ctx, "u1", NopProgress)
	if err != nil {
		t.Fatal(err)
	}
	if out.Charged || out.Success {
		t.Fatalf("outcome = %+v, want uncharged failure", out)
	}
	if bal, _ := fx.ledger.Balance(ctx, "u1"); bal != model.InitialGrant {
		t.Fatalf("balance changed: %d", bal)
	}
	if len(fx.pro.submits) != 0 {
		t.Fatal("job submitted without payment")
	}

	// Topping up makes the same request confirmable.
	if err := fx.ledger.Credit(ctx, "u1", 1000, "top-up", "order-1"); err != nil {
		t.Fatal(err)
	}
	out, err = fx.uc.Confirm(ctx, "u1", NopProgress)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("outcome after top-up = %+v", out)
	}
}

func TestVideoProviderFailureKeepsDebit(t *testing.T) {
	ctx := context.Background()
	fx := newVideoFixture(t)
	fx.lite.probes = []model.StatusProbe{
		{Status: model.StatusFailed, Progress: -1, Reason: "safety filter"},
	}

	if _, err := fx.uc.Begin(ctx, "u1", "a sunset", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.uc.SelectParameters(ctx, "u1", model.QualityLite, 5); err != nil {
		t.Fatal(err)
	}

	out, err := fx.uc.Confirm(ctx, "u1", NopProgress)
	if err != nil {
		t.Fatal(err)
	}
	if out.Success || !out.Charged {
		t.Fatalf("outcome = %+v, want charged failure", out)
	}
	if out.Error != "safety filter" {
		t.Fatalf("error = %q", out.Error)
	}
	// Spent tokens stay spent.
	if bal, _ := fx.ledger.Balance(ctx, "u1"); bal != model.InitialGrant-50 {
		t.Fatalf("balance = %d, want %d", bal, model.InitialGrant-50)
	}
}

func TestVideoCancelDropsRequestWithoutCharge(t *testing.T) {
	ctx := context.Background()
	fx := newVideoFixture(t)

	if _, err := fx.uc.Begin(ctx, "u1", "a sunset", ""); err != nil {
		t.Fatal(err)
	}
	if err := fx.uc.Cancel(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.uc.Pending(ctx, "u1"); !errors.Is(err, domain.ErrNoPendingRequest) {
		t.Fatalf("err = %v, want ErrNoPendingRequest", err)
	}
	if bal, _ := fx.ledger.Balance(ctx, "u1"); bal != model.InitialGrant {
		t.Fatalf("cancel changed balance: %d", bal)
	}
	if got := len(fx.repo.entries("u1")); got != 1 {
		t.Fatalf("cancel appended transactions: %d", got)
	}
}

func TestVideoBeginRequiresPrompt(t *testing.T) {
	fx := newVideoFixture(t)
	if _, err := fx.uc.Begin(context.Background(), "u1", "   ", ""); !errors.Is(err, domain.ErrEmptyPrompt) {
		t.Fatalf("err = %v, want ErrEmptyPrompt", err)
	}
}
