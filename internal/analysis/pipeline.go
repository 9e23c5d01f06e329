package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/podiumhq/podium/internal/models"
	"github.com/podiumhq/podium/internal/store"
	"github.com/sirupsen/logrus"
)

// DefaultTierTimeout bounds each scorer tier so one slow upstream
// cannot stall a room's finalization.
const DefaultTierTimeout = 5 * time.Second

// Pipeline runs the scorer chain in priority order until one tier
// produces a Result, then persists it. Once the heuristic tier is
// reached the run can only fail on persistence.
type Pipeline struct {
	scorers     []Scorer
	store       store.Store
	tierTimeout time.Duration
	logger      *logrus.Logger
}

func NewPipeline(st store.Store, logger *logrus.Logger, scorers ...Scorer) *Pipeline {
	return &Pipeline{
		scorers:     scorers,
		store:       st,
		tierTimeout: DefaultTierTimeout,
		logger:      logger,
	}
}

// SetTierTimeout overrides the per-tier timeout, mainly for tests.
func (p *Pipeline) SetTierTimeout(d time.Duration) { p.tierTimeout = d }

// Run scores the transcript and persists the Result. The returned
// error is non-nil only when no tier produced a result (misconfigured
// chain) or when the one-time write failed; scorer misses are absorbed
// here and recorded only in logs and the Result's source tag.
func (p *Pipeline) Run(ctx context.Context, t *Transcript) (*models.Result, error) {
	for _, scorer := range p.scorers {
		tierCtx, cancel := context.WithTimeout(ctx, p.tierTimeout)
		result, err := scorer.AttemptScore(tierCtx, t)
		cancel()
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"debate_id": t.DebateID,
				"tier":      scorer.Name(),
			}).Infof("scorer tier missed: %v", err)
			continue
		}
		if err := p.store.SaveResult(ctx, result); err != nil {
			return nil, fmt.Errorf("persist result for debate %s: %w", t.DebateID, err)
		}
		p.logger.WithFields(logrus.Fields{
			"debate_id": t.DebateID,
			"source":    result.Source,
			"winner":    result.WinnerID,
		}).Info("debate scored")
		return result, nil
	}
	return nil, fmt.Errorf("no scorer tier produced a result for debate %s", t.DebateID)
}
