package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Interactive video request flow
	ErrNoPendingRequest    = errors.New("no pending video request")
	ErrRequestNotConfirmed = errors.New("video request is not awaiting confirmation")
	ErrInvalidDuration     = errors.New("duration must be 5, 10 or 15 seconds")
	ErrInvalidQuality      = errors.New("quality must be lite or pro")
	ErrEmptyPrompt         = errors.New("prompt is empty")

	// Generation jobs
	ErrJobTimeout          = errors.New("generation job poll budget exhausted")
	ErrJobFailed           = errors.New("generation job failed")
	ErrTerminalJobState    = errors.New("job already in terminal state")
	ErrProviderUnavailable = errors.New("no provider configured for this request")

	// Ledger. Insufficient balance is a boolean outcome of Debit by
	// contract and must never travel as an error; this sentinel exists
	// only for repositories that need to distinguish a missing account.
	ErrAccountNotFound = errors.New("token account not found")

	// Payments
	ErrOrderAlreadyApplied = errors.New("order already credited")
	ErrNoPendingPayment    = errors.New("no pending payment type set")
)
