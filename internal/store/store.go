package store

import (
	"context"
	"time"

	"github.com/shreedharv16/accesslint/agentloop"
)

// SessionRecord is the persisted summary of one agent session.
type SessionRecord struct {
	ID         string
	Goal       string
	Status     string
	Reason     string
	Provider   string
	Model      string
	Iterations int
	StartedAt  time.Time
	EndedAt    time.Time
}

// Store defines the persistence interface for accesslint.
type Store interface {
	SaveSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error)

	SaveTranscript(ctx context.Context, sessionID string, records []agentloop.IterationRecord) error
	GetTranscript(ctx context.Context, sessionID string) ([]agentloop.IterationRecord, error)

	SaveChanges(ctx context.Context, sessionID string, changes []agentloop.FileChange) error
	GetChanges(ctx context.Context, sessionID string) ([]agentloop.FileChange, error)

	Close() error
}
