package model

import "time"

// Plan is the user's subscription tier. PlanNone means pay-as-you-go
// from the token balance only.
type Plan string

const (
	PlanNone Plan = ""
	PlanPlus Plan = "PLUS"
	PlanPro  Plan = "PRO"
)

// PendingPayment marks which product the user is expected to pay for
// next; it is resolved when the matching order arrives.
type PendingPayment string

const (
	PendingNone  PendingPayment = ""
	PendingPlus  PendingPayment = "PLUS"
	PendingPro   PendingPayment = "PRO"
	PendingTopUp PendingPayment = "TOPUP"
)

// InitialGrant is credited when an account is created on first contact.
const InitialGrant = 100

// PlanDuration is how long an activated plan stays valid.
const PlanDuration = 30 * 24 * time.Hour

// TokenAccount holds a user's spendable token balance. Balance is
// mutated only through the ledger's Debit/Credit operations and never
// goes below zero.
type TokenAccount struct {
	UserID         string
	Balance        int
	Plan           Plan
	PlanExpiresAt  *time.Time
	PendingPayment PendingPayment
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewTokenAccount(userID string) *TokenAccount {
	now := time.Now()
	return &TokenAccount{
		UserID:    userID,
		Balance:   0,
		Plan:      PlanNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasActivePlan reports whether the account's plan is set and not past
// its expiry at the given instant.
func (a *TokenAccount) HasActivePlan(now time.Time) bool {
	if a.Plan == PlanNone {
		return false
	}
	if a.PlanExpiresAt == nil {
		return true
	}
	return a.PlanExpiresAt.After(now)
}

// PlanExpired reports whether a set plan has run out and should be
// cleared. Expiry clears the plan only, never the balance.
func (a *TokenAccount) PlanExpired(now time.Time) bool {
	return a.Plan != PlanNone && a.PlanExpiresAt != nil && !a.PlanExpiresAt.After(now)
}

// ClearPlan drops the plan after expiry.
func (a *TokenAccount) ClearPlan() {
	a.Plan = PlanNone
	a.PlanExpiresAt = nil
	a.UpdatedAt = time.Now()
}

// ActivatePlan sets the plan and pushes expiry 30 days from now.
func (a *TokenAccount) ActivatePlan(p Plan, now time.Time) {
	exp := now.Add(PlanDuration)
	a.Plan = p
	a.PlanExpiresAt = &exp
	a.UpdatedAt = now
}
