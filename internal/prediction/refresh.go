package prediction

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/observability/metrics"
)

// Record is a stored record whose prediction can be recomputed
type Record struct {
	ID      uint
	Request estimate.Request
}

// RecordSource gives the refresh read access to records and write access
// limited to the prediction projection.
type RecordSource interface {
	// PredictionCandidates returns up to limit records with ID > afterID,
	// ordered by ID. Without all, only records lacking a prediction.
	PredictionCandidates(ctx context.Context, m estimate.Milestone, all bool, afterID uint, limit int) ([]Record, error)
	SavePrediction(ctx context.Context, m estimate.Milestone, id uint, res estimate.Result) error
}

// RefreshOptions controls a refresh run
type RefreshOptions struct {
	All       bool
	Workers   int
	BatchSize int
}

// RefreshSummary counts what a refresh did for one milestone
type RefreshSummary struct {
	Milestone estimate.Milestone `json:"milestone"`
	Scanned   int                `json:"scanned"`
	Updated   int                `json:"updated"`
	Failed    int                `json:"failed"`
}

// Refresh recomputes predictions for stored records of both milestones.
// A failing record is logged and counted; only listing failures and
// cancellation stop the run.
func (s *Service) Refresh(ctx context.Context, src RecordSource, opts RefreshOptions) ([]RefreshSummary, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 100
	}

	summaries := make([]RefreshSummary, 0, 2)
	for _, m := range []estimate.Milestone{estimate.Germination, estimate.Maturation} {
		sum, err := s.refreshMilestone(ctx, src, m, opts)
		summaries = append(summaries, sum)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

func (s *Service) refreshMilestone(ctx context.Context, src RecordSource, m estimate.Milestone, opts RefreshOptions) (RefreshSummary, error) {
	log := GetLogger().With(logger.String("milestone", string(m)))
	engine, err := s.Engine(m)
	if err != nil {
		return RefreshSummary{Milestone: m}, err
	}
	recorder := engine.recorder

	var updated, failed atomic.Int64
	sum := RefreshSummary{Milestone: m}
	var afterID uint

	for {
		batch, err := src.PredictionCandidates(ctx, m, opts.All, afterID, opts.BatchSize)
		if err != nil {
			return sum, err
		}
		if len(batch) == 0 {
			break
		}
		sum.Scanned += len(batch)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for _, rec := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				req := rec.Request
				req.Milestone = m
				res, err := engine.Estimate(req)
				if err == nil {
					err = src.SavePrediction(gctx, m, rec.ID, res)
				}
				if err != nil {
					failed.Add(1)
					recorder.RecordOperation(metrics.OpRefresh, metrics.StatusFailed)
					log.Warn("prediction refresh failed", logger.Uint64("record_id", uint64(rec.ID)), logger.Error(err))
					return nil
				}
				updated.Add(1)
				recorder.RecordOperation(metrics.OpRefresh, metrics.StatusSuccess)
				return nil
			})
		}
		waitErr := g.Wait()
		afterID = batch[len(batch)-1].ID
		if waitErr != nil {
			sum.Updated, sum.Failed = int(updated.Load()), int(failed.Load())
			return sum, waitErr
		}
		if len(batch) < opts.BatchSize {
			break
		}
	}

	sum.Updated, sum.Failed = int(updated.Load()), int(failed.Load())
	log.Info("prediction refresh finished",
		logger.Int("scanned", sum.Scanned),
		logger.Int("updated", sum.Updated),
		logger.Int("failed", sum.Failed))
	return sum, nil
}
