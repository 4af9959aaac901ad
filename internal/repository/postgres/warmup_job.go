package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// JobRepo implements warmup.JobRepository against PostgreSQL.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job repository.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

// jobCounterColumns whitelists the counters IncrementCounter may touch.
var jobCounterColumns = map[string]bool{
	"emails_sent":      true,
	"emails_delivered": true,
	"emails_opened":    true,
	"emails_replied":   true,
	"emails_bounced":   true,
	"spam_complaints":  true,
}

const jobColumns = `
	id, warmup_plan_id, scheduled_date, target_emails, status,
	emails_sent, emails_delivered, emails_opened, emails_replied,
	emails_bounced, spam_complaints,
	execution_log, started_at, completed_at, COALESCE(error_message, ''),
	created_at, updated_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*domain.WarmupJob, error) {
	j := &domain.WarmupJob{}
	var logJSON []byte
	err := row.Scan(
		&j.ID, &j.WarmupPlanID, &j.ScheduledDate, &j.TargetEmails, &j.Status,
		&j.Counters.Sent, &j.Counters.Delivered, &j.Counters.Opened, &j.Counters.Replied,
		&j.Counters.Bounced, &j.Counters.Complaints,
		&logJSON, &j.StartedAt, &j.CompletedAt, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(logJSON) > 0 {
		json.Unmarshal(logJSON, &j.ExecutionLog)
	}
	return j, nil
}

// Create inserts the job, relying on the unique (warmup_plan_id,
// scheduled_date) constraint for idempotent daily scheduling. Returns false
// when a job for that date already exists.
func (r *JobRepo) Create(ctx context.Context, j *domain.WarmupJob) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO warmup_jobs (
			id, warmup_plan_id, scheduled_date, target_emails, status,
			execution_log, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, '[]'::jsonb, NOW(), NOW())
		ON CONFLICT (warmup_plan_id, scheduled_date) DO NOTHING
	`, j.ID, j.WarmupPlanID, j.ScheduledDate, j.TargetEmails, j.Status)
	if err != nil {
		return false, fmt.Errorf("insert warmup job: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (r *JobRepo) Get(ctx context.Context, id string) (*domain.WarmupJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+jobColumns+` FROM warmup_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, warmup.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get warmup job: %w", err)
	}
	return j, nil
}

func (r *JobRepo) GetByPlanAndDate(ctx context.Context, planID string, date time.Time) (*domain.WarmupJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT`+jobColumns+` FROM warmup_jobs
		WHERE warmup_plan_id = $1 AND scheduled_date = $2::date
	`, planID, date)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, warmup.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get warmup job by date: %w", err)
	}
	return j, nil
}

func (r *JobRepo) ListDue(ctx context.Context, date time.Time) ([]domain.WarmupJob, error) {
	return r.listByStatus(ctx, `
		SELECT`+jobColumns+` FROM warmup_jobs
		WHERE status IN ('pending', 'running') AND scheduled_date <= $1::date
		ORDER BY scheduled_date ASC
	`, date)
}

func (r *JobRepo) ListStale(ctx context.Context, before time.Time) ([]domain.WarmupJob, error) {
	return r.listByStatus(ctx, `
		SELECT`+jobColumns+` FROM warmup_jobs
		WHERE status IN ('pending', 'running') AND scheduled_date < $1::date
		ORDER BY scheduled_date ASC
	`, before)
}

func (r *JobRepo) listByStatus(ctx context.Context, query string, arg interface{}) ([]domain.WarmupJob, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list warmup jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.WarmupJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warmup job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (r *JobRepo) MarkRunning(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE warmup_jobs
		SET status = 'running', started_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return warmup.ErrJobNotFound
	}
	return nil
}

func (r *JobRepo) Finish(ctx context.Context, id string, status domain.JobStatus, counters domain.JobCounters, errMsg string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE warmup_jobs SET
			status = $2,
			emails_sent = $3, emails_delivered = $4, emails_opened = $5,
			emails_replied = $6, emails_bounced = $7, spam_complaints = $8,
			completed_at = NOW(), error_message = NULLIF($9, ''), updated_at = NOW()
		WHERE id = $1
	`, id, status, counters.Sent, counters.Delivered, counters.Opened,
		counters.Replied, counters.Bounced, counters.Complaints, errMsg)
	if err != nil {
		return fmt.Errorf("finish warmup job: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return warmup.ErrJobNotFound
	}
	return nil
}

func (r *JobRepo) AppendLog(ctx context.Context, id string, entry domain.JobLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE warmup_jobs
		SET execution_log = execution_log || $2::jsonb, updated_at = NOW()
		WHERE id = $1
	`, id, string(payload))
	if err != nil {
		return fmt.Errorf("append job log: %w", err)
	}
	return nil
}

func (r *JobRepo) IncrementCounter(ctx context.Context, id string, counter string, n int) error {
	if !jobCounterColumns[counter] {
		return fmt.Errorf("unknown job counter %q", counter)
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE warmup_jobs SET %s = %s + $2, updated_at = NOW() WHERE id = $1
	`, counter, counter), id, n)
	if err != nil {
		return fmt.Errorf("increment job counter %s: %w", counter, err)
	}
	return nil
}

func (r *JobRepo) CountFailuresSince(ctx context.Context, planID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM warmup_jobs
		WHERE warmup_plan_id = $1 AND status = 'failed' AND scheduled_date >= $2::date
	`, planID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count job failures: %w", err)
	}
	return n, nil
}

// ListByPlan returns a plan's jobs, newest scheduled date first.
func (r *JobRepo) ListByPlan(ctx context.Context, planID string, limit int) ([]domain.WarmupJob, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+jobColumns+` FROM warmup_jobs
		WHERE warmup_plan_id = $1
		ORDER BY scheduled_date DESC
		LIMIT $2
	`, planID, limit)
	if err != nil {
		return nil, fmt.Errorf("list plan jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.WarmupJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warmup job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

var _ warmup.JobRepository = (*JobRepo)(nil)
