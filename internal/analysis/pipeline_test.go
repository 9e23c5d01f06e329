package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/models"
	"github.com/podiumhq/podium/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// missScorer simulates an upstream tier that times out or returns a
// malformed payload.
type missScorer struct {
	name   string
	called bool
}

func (m *missScorer) Name() string { return m.name }

func (m *missScorer) AttemptScore(context.Context, *Transcript) (*models.Result, error) {
	m.called = true
	return nil, fmt.Errorf("%w: upstream unavailable", ErrMiss)
}

// failingStore rejects result writes to exercise persistence failure.
type failingStore struct {
	*store.MemoryStore
}

func (f *failingStore) SaveResult(context.Context, *models.Result) error {
	return errors.New("connection reset")
}

func TestPipelineFallsThroughToHeuristic(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	debate := makeDebate(a, b)
	tr := BuildTranscript(debate, makeArgs(debate.ID, map[uuid.UUID][]string{
		a: {"Studies show this works, therefore it should continue."},
		b: {"It should not."},
	}, []uuid.UUID{a, b}))

	remote := &missScorer{name: "remote-model"}
	generative := &missScorer{name: "generative"}
	st := store.NewMemoryStore()
	p := NewPipeline(st, quietLogger(), remote, generative, NewHeuristicScorer())

	result, err := p.Run(context.Background(), tr)
	require.NoError(t, err)
	assert.True(t, remote.called, "remote tier must be attempted first")
	assert.True(t, generative.called, "generative tier must be attempted second")
	assert.Equal(t, models.SourceHeuristic, result.Source)

	persisted, err := st.LoadResult(context.Background(), debate.ID)
	require.NoError(t, err)
	assert.Equal(t, result.WinnerID, persisted.WinnerID)
}

func TestPipelineHigherTierShortCircuits(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	debate := makeDebate(a, b)
	tr := BuildTranscript(debate, makeArgs(debate.ID, map[uuid.UUID][]string{
		a: {"first"}, b: {"second"},
	}, []uuid.UUID{a, b}))

	generative := &missScorer{name: "generative"}
	st := store.NewMemoryStore()
	p := NewPipeline(st, quietLogger(), NewHeuristicScorer(), generative)

	result, err := p.Run(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, models.SourceHeuristic, result.Source)
	assert.False(t, generative.called, "later tiers must not run after a hit")
}

func TestPipelineSurfacesPersistenceFailure(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	debate := makeDebate(a, b)
	tr := BuildTranscript(debate, nil)

	p := NewPipeline(&failingStore{store.NewMemoryStore()}, quietLogger(), NewHeuristicScorer())
	_, err := p.Run(context.Background(), tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist result")
}

func TestResultFromPayloadRejectsMalformedSchemas(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	debate := makeDebate(a, b)
	tr := BuildTranscript(debate, nil)

	full := func(n int) remoteScore {
		return remoteScore{Coherence: &n, Evidence: &n, Logic: &n, Persuasiveness: &n}
	}

	// Winner field missing entirely.
	_, err := resultFromPayload(tr, map[string]remoteScore{
		a.String(): full(80), b.String(): full(70),
	}, "", models.SourceGenerative)
	require.ErrorIs(t, err, ErrMiss)

	// Score vector missing a participant.
	_, err = resultFromPayload(tr, map[string]remoteScore{
		a.String(): full(80),
	}, a.String(), models.SourceGenerative)
	require.ErrorIs(t, err, ErrMiss)

	// Winner not in the participant set.
	_, err = resultFromPayload(tr, map[string]remoteScore{
		a.String(): full(80), b.String(): full(70),
	}, uuid.New().String(), models.SourceGenerative)
	require.ErrorIs(t, err, ErrMiss)

	// Well-formed payload passes and keeps the tier tag.
	result, err := resultFromPayload(tr, map[string]remoteScore{
		a.String(): full(80), b.String(): full(70),
	}, a.String(), models.SourceRemoteModel)
	require.NoError(t, err)
	assert.Equal(t, models.SourceRemoteModel, result.Source)
	assert.Equal(t, a, result.WinnerID)
	assert.Equal(t, 80, result.Totals[a])
}
