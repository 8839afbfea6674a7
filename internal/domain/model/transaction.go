package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type TxDirection string

const (
	TxDebit  TxDirection = "DEBIT"
	TxCredit TxDirection = "CREDIT"
)

// TokenTransaction is one append-only ledger entry. Entries are never
// mutated or deleted; replaying them reconstructs the account balance.
type TokenTransaction struct {
	ID            string
	UserID        string
	Amount        int
	Direction     TxDirection
	Comment       string
	SourceOrderID string
	CreatedAt     time.Time
}

func NewTokenTransaction(userID string, amount int, dir TxDirection, comment, sourceOrderID string) *TokenTransaction {
	return &TokenTransaction{
		ID:            ulid.Make().String(),
		UserID:        userID,
		Amount:        amount,
		Direction:     dir,
		Comment:       comment,
		SourceOrderID: sourceOrderID,
		CreatedAt:     time.Now(),
	}
}

// Delta is the signed effect of the entry on the balance.
func (t *TokenTransaction) Delta() int {
	if t.Direction == TxDebit {
		return -t.Amount
	}
	return t.Amount
}
