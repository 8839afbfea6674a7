// File: internal/infra/memstore/pending_store.go
package memstore

import (
	"context"
	"sync"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/repository"
)

var _ repository.PendingRequestStore = (*PendingRequestStore)(nil)

// PendingRequestStore keeps at most one pending video request per user
// in process memory. Used in tests and dev mode; production wiring uses
// the redis-backed implementation.
type PendingRequestStore struct {
	mu      sync.RWMutex
	pending map[string]model.PendingVideoRequest
}

func NewPendingRequestStore() *PendingRequestStore {
	return &PendingRequestStore{pending: make(map[string]model.PendingVideoRequest)}
}

func (s *PendingRequestStore) Get(ctx context.Context, userID string) (*model.PendingVideoRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.pending[userID]
	if !ok {
		return nil, domain.ErrNoPendingRequest
	}
	cp := req
	return &cp, nil
}

// Set replaces any previous pending request for the user.
func (s *PendingRequestStore) Set(ctx context.Context, req *model.PendingVideoRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[req.UserID] = *req
	return nil
}

func (s *PendingRequestStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
	return nil
}
