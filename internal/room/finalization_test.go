package room

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/analysis"
	"github.com/podiumhq/podium/internal/models"
	"github.com/podiumhq/podium/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failSaveResultStore wraps the memory store to simulate a result
// write failing at finalization time.
type failSaveResultStore struct {
	*store.MemoryStore
	fail bool
}

func (f *failSaveResultStore) SaveResult(ctx context.Context, result *models.Result) error {
	if f.fail {
		return errors.New("connection reset")
	}
	return f.MemoryStore.SaveResult(ctx, result)
}

func joinedPair(t *testing.T, rm *Room) (*SessionConn, *SessionConn) {
	t.Helper()
	ctx := context.Background()
	a, b := newConn(), newConn()
	require.NoError(t, rm.Join(ctx, a, ""))
	require.NoError(t, rm.Join(ctx, b, ""))
	drain(a)
	drain(b)
	return a, b
}

func TestConsensusRequiresEveryParticipant(t *testing.T) {
	rm, st := newTestRoom(t, "")
	ctx := context.Background()
	a, b := joinedPair(t, rm)

	require.NoError(t, rm.RequestFinalization(ctx, a.UserID))
	assert.Equal(t, models.StatusFinalizationPending, rm.Snapshot().Status)
	assert.True(t, hasEvent(drain(b), EventFinalizationRequested))

	require.NoError(t, rm.ApproveFinalization(ctx, a.UserID))
	assert.Equal(t, models.StatusFinalizationPending, rm.Snapshot().Status,
		"one approval of two must not finalize")
	_, err := st.LoadResult(ctx, rm.DebateID())
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, rm.ApproveFinalization(ctx, b.UserID))
	assert.Equal(t, models.StatusFinalized, rm.Snapshot().Status)

	result, err := st.LoadResult(ctx, rm.DebateID())
	require.NoError(t, err)
	assert.Equal(t, models.SourceHeuristic, result.Source)

	aMsgs := drain(a)
	assert.True(t, hasEvent(aMsgs, EventFinalizationApproved))
	fin := findEvent(aMsgs, EventDebateFinalized)
	require.NotNil(t, fin, "debate-finalized must reach the room")
	assert.Equal(t, result.WinnerID.String(), fin["winner"])
}

func TestRequestIsIdempotentPerParticipant(t *testing.T) {
	rm, _ := newTestRoom(t, "")
	ctx := context.Background()
	a, b := joinedPair(t, rm)

	require.NoError(t, rm.RequestFinalization(ctx, a.UserID))
	drain(b)
	require.NoError(t, rm.RequestFinalization(ctx, a.UserID))
	assert.False(t, hasEvent(drain(b), EventFinalizationRequested),
		"repeat request must not rebroadcast")
}

func TestRejectionClearsSetsAndStartsFreshEpoch(t *testing.T) {
	rm, st := newTestRoom(t, "")
	ctx := context.Background()
	a, b := joinedPair(t, rm)

	require.NoError(t, rm.RequestFinalization(ctx, a.UserID))
	require.NoError(t, rm.ApproveFinalization(ctx, a.UserID))
	require.NoError(t, rm.RejectFinalization(ctx, b.UserID))

	assert.Equal(t, models.StatusActive, rm.Snapshot().Status)
	assert.True(t, hasEvent(drain(a), EventFinalizationRejected))

	// A's approval from the rejected epoch must not count. B requests
	// and approves in a fresh epoch; the debate must still wait on A.
	require.NoError(t, rm.RequestFinalization(ctx, b.UserID))
	require.NoError(t, rm.ApproveFinalization(ctx, b.UserID))
	assert.Equal(t, models.StatusFinalizationPending, rm.Snapshot().Status,
		"stale approval counted toward consensus")
	_, err := st.LoadResult(ctx, rm.DebateID())
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, rm.ApproveFinalization(ctx, a.UserID))
	assert.Equal(t, models.StatusFinalized, rm.Snapshot().Status)
}

func TestOutsiderActionsAreRejectedWithoutBroadcast(t *testing.T) {
	rm, _ := newTestRoom(t, "")
	ctx := context.Background()
	a, b := joinedPair(t, rm)
	outsider := uuid.New()

	require.NoError(t, rm.RequestFinalization(ctx, a.UserID))
	drain(a)
	drain(b)

	assert.ErrorIs(t, rm.ApproveFinalization(ctx, outsider), ErrNotParticipant)
	assert.ErrorIs(t, rm.RequestFinalization(ctx, outsider), ErrNotParticipant)
	assert.ErrorIs(t, rm.RejectFinalization(ctx, outsider), ErrNotParticipant)

	assert.Equal(t, models.StatusFinalizationPending, rm.Snapshot().Status)
	assert.Empty(t, drain(a), "no broadcast on rejected outsider action")
	assert.Empty(t, drain(b))
}

func TestTransitionGuards(t *testing.T) {
	rm, _ := newTestRoom(t, "")
	ctx := context.Background()
	a, b := joinedPair(t, rm)

	// Approve and reject are only valid while pending.
	assert.ErrorIs(t, rm.ApproveFinalization(ctx, a.UserID), ErrInvalidTransition)
	assert.ErrorIs(t, rm.RejectFinalization(ctx, a.UserID), ErrInvalidTransition)

	require.NoError(t, rm.RequestFinalization(ctx, a.UserID))
	require.NoError(t, rm.ApproveFinalization(ctx, a.UserID))
	require.NoError(t, rm.ApproveFinalization(ctx, b.UserID))
	require.Equal(t, models.StatusFinalized, rm.Snapshot().Status)

	// Finalized is terminal: the pipeline must not run twice.
	assert.ErrorIs(t, rm.RequestFinalization(ctx, a.UserID), ErrInvalidTransition)
	assert.ErrorIs(t, rm.ApproveFinalization(ctx, a.UserID), ErrInvalidTransition)

	// Arguments are refused after finalization.
	_, err := rm.SubmitArgument(ctx, a.UserID, "late point")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPipelineFailureRevertsToActive(t *testing.T) {
	st := &failSaveResultStore{MemoryStore: store.NewMemoryStore(), fail: true}
	debate := &models.Debate{
		ID:     uuid.New(),
		Topic:  "Should X be regulated?",
		Status: models.StatusOpen,
	}
	ctx := context.Background()
	require.NoError(t, st.SaveDebate(ctx, debate))
	pipeline := analysis.NewPipeline(st, quietLogger(), analysis.NewHeuristicScorer())
	rm := NewRoom(debate, st, pipeline, quietLogger(), 0)

	a, b := joinedPair(t, rm)
	require.NoError(t, rm.RequestFinalization(ctx, a.UserID))
	require.NoError(t, rm.ApproveFinalization(ctx, a.UserID))

	err := rm.ApproveFinalization(ctx, b.UserID)
	require.Error(t, err, "persistence failure must surface to the protocol")

	snap := rm.Snapshot()
	assert.Equal(t, models.StatusActive, snap.Status, "failed finalization reverts to active")
	assert.True(t, hasEvent(drain(a), "error"), "participants are told finalization failed")

	// The debate can be finalized again once persistence recovers.
	st.fail = false
	require.NoError(t, rm.RequestFinalization(ctx, a.UserID))
	require.NoError(t, rm.ApproveFinalization(ctx, a.UserID))
	require.NoError(t, rm.ApproveFinalization(ctx, b.UserID))
	assert.Equal(t, models.StatusFinalized, rm.Snapshot().Status)
}

func TestOnFinalizedFiresOncePerDebate(t *testing.T) {
	rm, _ := newTestRoom(t, "")
	ctx := context.Background()
	fired := 0
	rm.OnFinalized = func(*models.Result) { fired++ }

	a, b := joinedPair(t, rm)
	require.NoError(t, rm.RequestFinalization(ctx, a.UserID))
	require.NoError(t, rm.ApproveFinalization(ctx, a.UserID))
	require.NoError(t, rm.ApproveFinalization(ctx, b.UserID))
	assert.Equal(t, 1, fired)
}
