// File: internal/infra/redis/pending_store.go
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"promind-bot/internal/domain"
	"promind-bot/internal/domain/model"
	"promind-bot/internal/domain/ports/repository"
)

var _ repository.PendingRequestStore = (*PendingStore)(nil)

// PendingStore keeps the per-user pending video request in Redis.
// A plain SET gives last-writer-wins replacement; the TTL bounds how
// long an abandoned request survives.
type PendingStore struct {
	client *Client
	ttl    time.Duration
}

func NewPendingStore(client *Client) *PendingStore {
	return &PendingStore{
		client: client,
		ttl:    15 * time.Minute, // Give users 15 minutes to finish the flow.
	}
}

func (s *PendingStore) key(userID string) string {
	return fmt.Sprintf("pending_video:%s", userID)
}

func (s *PendingStore) Get(ctx context.Context, userID string) (*model.PendingVideoRequest, error) {
	data, err := s.client.Get(ctx, s.key(userID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNoPendingRequest
		}
		return nil, err
	}
	var req model.PendingVideoRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *PendingStore) Set(ctx context.Context, req *model.PendingVideoRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(req.UserID), data, s.ttl)
}

func (s *PendingStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID))
}
