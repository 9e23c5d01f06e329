package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/models"
)

var (
	// ErrNotFound is returned when a debate or result does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrResultExists guards the one-time result write.
	ErrResultExists = errors.New("store: result already recorded")
)

// Store is the persistence boundary of the coordinator. Implementations
// must make SaveResult a one-time write per debate.
type Store interface {
	LoadDebate(ctx context.Context, id uuid.UUID) (*models.Debate, error)
	SaveDebate(ctx context.Context, debate *models.Debate) error
	AppendArgument(ctx context.Context, arg *models.Argument) error
	ListArguments(ctx context.Context, debateID uuid.UUID) ([]*models.Argument, error)
	SaveResult(ctx context.Context, result *models.Result) error
	LoadResult(ctx context.Context, debateID uuid.UUID) (*models.Result, error)
}
