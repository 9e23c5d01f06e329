package room

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/analysis"
	"github.com/podiumhq/podium/internal/models"
	"github.com/sirupsen/logrus"
)

// Finalization consensus protocol. One request→(approve|reject) cycle
// is an epoch; approvals never carry across epochs because the sets
// are cleared on rejection and the epoch counter is bumped whenever a
// request moves the debate into finalization_pending.

// RequestFinalization records userID's wish to end the debate. The
// first request of a cycle flips the debate to finalization_pending
// and starts a new epoch. Repeat requests from the same participant
// are no-ops.
func (r *Room) RequestFinalization(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	if !r.debate.IsParticipant(userID) {
		r.mu.Unlock()
		return ErrNotParticipant
	}
	switch r.debate.Status {
	case models.StatusActive, models.StatusFinalizationPending:
	default:
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot request finalization while %s", ErrInvalidTransition, r.debate.Status)
	}
	if r.requested[userID] {
		r.mu.Unlock()
		return nil
	}
	r.requested[userID] = true
	statusChanged := false
	if r.debate.Status == models.StatusActive {
		r.debate.Status = models.StatusFinalizationPending
		r.epoch++
		statusChanged = true
	}
	epoch := r.epoch
	snapshot := r.snapshotUnsafe()
	r.mu.Unlock()

	if statusChanged {
		if err := r.store.SaveDebate(ctx, &snapshot); err != nil {
			r.logger.Warnf("debate %s: persisting finalization_pending failed: %v", snapshot.ID, err)
		}
	}

	r.Broadcast(EventFinalizationRequested, map[string]interface{}{
		"requested_by": userID.String(),
		"epoch":        epoch,
	}, uuid.Nil)
	return nil
}

// ApproveFinalization records userID's approval. When the approval set
// covers the full participant set the debate transitions to finalized
// exactly once and the analysis pipeline runs before this call
// returns. Pipeline or persistence failure reverts the debate to
// active so finalization can be re-requested.
func (r *Room) ApproveFinalization(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	if !r.debate.IsParticipant(userID) {
		r.mu.Unlock()
		return ErrNotParticipant
	}
	if r.debate.Status != models.StatusFinalizationPending {
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot approve while %s", ErrInvalidTransition, r.debate.Status)
	}
	if r.approved[userID] {
		r.mu.Unlock()
		return nil
	}
	r.approved[userID] = true

	consensus := len(r.approved) == len(r.debate.Participants)
	var epoch int
	var snapshot models.Debate
	if consensus {
		// Atomic transition under the room lock: no concurrent
		// approval can observe finalization_pending again, so the
		// pipeline is invoked at most once per epoch.
		r.debate.Status = models.StatusFinalized
		epoch = r.epoch
		snapshot = r.snapshotUnsafe()
	}
	r.mu.Unlock()

	r.Broadcast(EventFinalizationApproved, map[string]interface{}{
		"approved_by": userID.String(),
	}, uuid.Nil)

	if !consensus {
		return nil
	}
	return r.finalize(ctx, epoch, snapshot)
}

// RejectFinalization aborts the pending cycle: both sets are cleared
// and the debate returns to active. A later request starts a fresh
// epoch.
func (r *Room) RejectFinalization(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	if !r.debate.IsParticipant(userID) {
		r.mu.Unlock()
		return ErrNotParticipant
	}
	if r.debate.Status != models.StatusFinalizationPending {
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot reject while %s", ErrInvalidTransition, r.debate.Status)
	}
	r.clearFinalizationUnsafe()
	r.debate.Status = models.StatusActive
	snapshot := r.snapshotUnsafe()
	r.mu.Unlock()

	if err := r.store.SaveDebate(ctx, &snapshot); err != nil {
		r.logger.Warnf("debate %s: persisting rejection failed: %v", snapshot.ID, err)
	}

	r.Broadcast(EventFinalizationRejected, map[string]interface{}{
		"rejected_by": userID.String(),
	}, uuid.Nil)
	return nil
}

func (r *Room) clearFinalizationUnsafe() {
	r.requested = make(map[uuid.UUID]bool)
	r.approved = make(map[uuid.UUID]bool)
}

// finalize runs the scoring pipeline for one consensus epoch. It holds
// no lock while the pipeline performs its bounded network calls; the
// epoch is re-checked before the result is applied so a result from a
// superseded attempt is discarded on arrival.
func (r *Room) finalize(ctx context.Context, epoch int, snapshot models.Debate) error {
	if err := r.store.SaveDebate(ctx, &snapshot); err != nil {
		r.revertFinalization(ctx, epoch, fmt.Errorf("persist finalized status: %w", err))
		return err
	}

	args, err := r.store.ListArguments(ctx, snapshot.ID)
	if err != nil {
		r.revertFinalization(ctx, epoch, fmt.Errorf("load transcript: %w", err))
		return err
	}

	transcript := analysis.BuildTranscript(&snapshot, args)
	result, err := r.pipeline.Run(ctx, transcript)
	if err != nil {
		r.revertFinalization(ctx, epoch, err)
		return err
	}

	r.mu.Lock()
	stale := r.epoch != epoch || r.debate.Status != models.StatusFinalized
	r.mu.Unlock()
	if stale {
		r.logger.WithFields(logrus.Fields{
			"debate_id": snapshot.ID,
			"epoch":     epoch,
		}).Warn("discarding pipeline result from stale finalization epoch")
		return nil
	}

	r.Broadcast(EventDebateFinalized, resultPayload(result), uuid.Nil)
	if r.OnFinalized != nil {
		r.OnFinalized(result)
	}
	return nil
}

// revertFinalization returns the debate to active after a pipeline or
// persistence failure, provided the epoch has not moved on, and tells
// the room what happened.
func (r *Room) revertFinalization(ctx context.Context, epoch int, cause error) {
	r.mu.Lock()
	if r.epoch != epoch || r.debate.Status != models.StatusFinalized {
		r.mu.Unlock()
		return
	}
	r.clearFinalizationUnsafe()
	r.debate.Status = models.StatusActive
	snapshot := r.snapshotUnsafe()
	r.mu.Unlock()

	r.logger.Warnf("debate %s: finalization failed, reverting to active: %v", snapshot.ID, cause)
	if err := r.store.SaveDebate(ctx, &snapshot); err != nil {
		r.logger.Warnf("debate %s: persisting revert failed: %v", snapshot.ID, err)
	}

	r.Broadcast("error", map[string]interface{}{
		"message": "finalization failed, debate returned to active",
	}, uuid.Nil)
}

func resultPayload(result *models.Result) map[string]interface{} {
	scores := make(map[string]interface{}, len(result.Scores))
	totals := make(map[string]interface{}, len(result.Totals))
	for id, vec := range result.Scores {
		scores[id.String()] = map[string]interface{}{
			"coherence":      vec.Coherence,
			"evidence":       vec.Evidence,
			"logic":          vec.Logic,
			"persuasiveness": vec.Persuasiveness,
		}
	}
	for id, total := range result.Totals {
		totals[id.String()] = total
	}
	return map[string]interface{}{
		"debate_id":    result.DebateID.String(),
		"scores":       scores,
		"totals":       totals,
		"winner":       result.WinnerID.String(),
		"source":       string(result.Source),
		"generated_at": result.GeneratedAt.Unix(),
	}
}
