package model

import "time"

// AssistantSession maps a user to the provider-issued conversation id
// (an OpenAI thread). The mapping is persisted so a process restart
// resumes the same conversation; at most one session exists per user.
type AssistantSession struct {
	UserID    string
	SessionID string
	CreatedAt time.Time
}

func NewAssistantSession(userID, sessionID string) *AssistantSession {
	return &AssistantSession{
		UserID:    userID,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}
}
