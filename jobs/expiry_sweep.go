package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/archivum-dms/archivum/internal/jobs"
)

// ExpiredLister reports users with an assignment whose validity window
// lapsed inside the lookback interval.
type ExpiredLister interface {
	ListRecentlyExpired(ctx context.Context, lookback time.Duration) ([]uuid.UUID, error)
}

// Invalidator drops cached effective permissions for a user.
type Invalidator interface {
	InvalidateUserCache(ctx context.Context, userID uuid.UUID) error
}

// ExpirySweepJob invalidates cached permissions for users whose assignments
// expired since the last sweep. Assignment writes invalidate synchronously;
// expiry happens without a write, so this sweep is the signal behind it.
type ExpirySweepJob struct {
	Store   ExpiredLister
	Authz   Invalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics

	// DefaultLookback applies when the task payload carries none.
	DefaultLookback time.Duration
}

// NewExpirySweepJob wires dependencies for the sweep handler.
func NewExpirySweepJob(store ExpiredLister, authz Invalidator, logger *slog.Logger, metrics *jobmetrics.Metrics, lookback time.Duration) *ExpirySweepJob {
	return &ExpirySweepJob{
		Store:           store,
		Authz:           authz,
		Logger:          logger,
		Metrics:         metrics,
		DefaultLookback: lookback,
	}
}

// Handle processes TaskAuthzExpirySweep tasks.
func (j *ExpirySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil || j.Authz == nil {
		return errors.New("expiry sweep: handler not configured")
	}
	if j.Logger == nil {
		j.Logger = slog.New(slog.DiscardHandler)
	}
	tracker := j.Metrics.Track("authz_expiry_sweep")
	var payload ExpirySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	lookback := payload.Lookback
	if lookback <= 0 {
		lookback = j.DefaultLookback
	}
	if lookback <= 0 {
		lookback = 10 * time.Minute
	}

	users, err := j.Store.ListRecentlyExpired(ctx, lookback)
	if err != nil {
		return tracker.End(err)
	}
	var failed int
	for _, userID := range users {
		if err := j.Authz.InvalidateUserCache(ctx, userID); err != nil {
			failed++
			j.Logger.Warn("expiry sweep invalidation failed",
				slog.String("user", userID.String()), slog.Any("error", err))
		}
	}
	if len(users) > 0 {
		j.Logger.Info("expiry sweep completed",
			slog.Int("users", len(users)), slog.Int("failed", failed))
	}
	if failed > 0 {
		return tracker.End(errors.New("expiry sweep: some invalidations failed"))
	}
	return tracker.End(nil)
}
