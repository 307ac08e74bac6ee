package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/brightpath-care/brightpath/internal/jobs"
)

const (
	// TaskTypeRoleBackfill materialises missing role assignment rows.
	TaskTypeRoleBackfill = "roles:backfill"
)

// NewRoleBackfillTask builds a new backfill task.
func NewRoleBackfillTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRoleBackfill, nil, asynq.Queue(QueueDefault))
}

// RoleBackfillJob sweeps the two auxiliary sources of role truth and
// inserts the assignment rows they imply: the legacy single-role column
// for users with no assignments at all, and counselor profiles missing
// an explicit counselor row. Per-request resolution performs the same
// repairs lazily; the sweep covers accounts that never sign in.
type RoleBackfillJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewRoleBackfillJob constructs the job instance.
func NewRoleBackfillJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *RoleBackfillJob {
	return &RoleBackfillJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeRoleBackfill tasks.
func (j *RoleBackfillJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("role_backfill")
	return tracker.End(j.Run(ctx))
}

// Run executes the sweep. Both inserts are idempotent, so reruns and
// races with the lazy repair path are safe.
func (j *RoleBackfillJob) Run(ctx context.Context) error {
	var legacyInserts, profileInserts int64

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		tag, err := j.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role, created_at)
			SELECT u.id, u.role, now()
			FROM users u
			WHERE u.role IS NOT NULL
			  AND NOT EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = u.id)
			ON CONFLICT (user_id, role) DO NOTHING`)
		if err != nil {
			return err
		}
		legacyInserts = tag.RowsAffected()
		return nil
	})
	group.Go(func() error {
		tag, err := j.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role, created_at)
			SELECT cp.user_id, 'counselor', now()
			FROM counselor_profiles cp
			WHERE NOT EXISTS (
				SELECT 1 FROM user_roles ur WHERE ur.user_id = cp.user_id AND ur.role = 'counselor')
			ON CONFLICT (user_id, role) DO NOTHING`)
		if err != nil {
			return err
		}
		profileInserts = tag.RowsAffected()
		return nil
	})
	if err := group.Wait(); err != nil {
		return err
	}

	j.metrics.AddBackfillInserts("legacy_column", legacyInserts)
	j.metrics.AddBackfillInserts("counselor_profile", profileInserts)
	j.logger.Info("role backfill sweep complete",
		slog.Int64("legacy_inserts", legacyInserts),
		slog.Int64("profile_inserts", profileInserts))
	return nil
}
