package repository

import (
	"context"
	"encoding/json"

	"github.com/fastygo/questboard/domain"
)

// AccountReader fetches raw account records. Implementations return *domain.Error on failure.
type AccountReader interface {
	FetchUser(ctx context.Context) (json.RawMessage, error)
	FetchTasks(ctx context.Context) ([]json.RawMessage, error)
	FetchTags(ctx context.Context) ([]json.RawMessage, error)
	FetchParty(ctx context.Context) (json.RawMessage, error)
	FetchContent(ctx context.Context) ([]byte, error)
}

// ActionWriter issues mutating requests.
type ActionWriter interface {
	ScoreTask(ctx context.Context, taskID string, direction domain.Direction) (*domain.ScoreResult, error)
	ToggleSleep(ctx context.Context) (bool, error)
	LeaveChallenge(ctx context.Context, challengeID string, keep domain.KeepPolicy) error
	DeleteTag(ctx context.Context, tagID string) error
}

// RemoteRepository is the full remote service contract.
type RemoteRepository interface {
	AccountReader
	ActionWriter
	Status(ctx context.Context) error
}
