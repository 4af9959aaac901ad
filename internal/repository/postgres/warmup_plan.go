// Package postgres implements the warmup repository interfaces against
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// PlanRepo implements warmup.PlanRepository against PostgreSQL.
type PlanRepo struct{ db *sql.DB }

// NewPlanRepo creates a Postgres-backed plan repository.
func NewPlanRepo(db *sql.DB) *PlanRepo { return &PlanRepo{db: db} }

const planColumns = `
	id, account_id, user_id, domain, strategy, status,
	current_week, total_weeks, daily_target, actual_sent_today, total_sent,
	start_date, expected_completion_date, actual_completion_date,
	COALESCE(pause_reason, ''), COALESCE(failure_reason, ''),
	max_bounce_rate, max_spam_rate, target_open_rate, target_reply_rate,
	business_hours_only, auto_pause_enabled, simulate_interactions,
	metrics_sent, metrics_delivered, metrics_opened, metrics_replied,
	metrics_bounced, metrics_complaints,
	delivery_rate, open_rate, reply_rate, bounce_rate, spam_rate,
	health_score, reputation_score, trend, metrics_updated_at,
	created_at, updated_at`

func scanPlan(row interface{ Scan(...interface{}) error }) (*domain.WarmupPlan, error) {
	p := &domain.WarmupPlan{}
	err := row.Scan(
		&p.ID, &p.AccountID, &p.UserID, &p.Domain, &p.Strategy, &p.Status,
		&p.CurrentWeek, &p.TotalWeeks, &p.DailyTarget, &p.ActualSentToday, &p.TotalSent,
		&p.StartDate, &p.ExpectedCompletionDate, &p.ActualCompletionDate,
		&p.PauseReason, &p.FailureReason,
		&p.Settings.MaxBounceRate, &p.Settings.MaxSpamRate,
		&p.Settings.TargetOpenRate, &p.Settings.TargetReplyRate,
		&p.Settings.BusinessHoursOnly, &p.Settings.AutoPauseEnabled, &p.Settings.SimulateInteractions,
		&p.Metrics.Sent, &p.Metrics.Delivered, &p.Metrics.Opened, &p.Metrics.Replied,
		&p.Metrics.Bounced, &p.Metrics.Complaints,
		&p.Metrics.DeliveryRate, &p.Metrics.OpenRate, &p.Metrics.ReplyRate,
		&p.Metrics.BounceRate, &p.Metrics.SpamRate,
		&p.Metrics.HealthScore, &p.Metrics.ReputationScore, &p.Metrics.Trend, &p.Metrics.LastUpdatedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PlanRepo) Create(ctx context.Context, p *domain.WarmupPlan) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO warmup_plans (
			id, account_id, user_id, domain, strategy, status,
			current_week, total_weeks, daily_target, actual_sent_today, total_sent,
			start_date, expected_completion_date,
			max_bounce_rate, max_spam_rate, target_open_rate, target_reply_rate,
			business_hours_only, auto_pause_enabled, simulate_interactions,
			health_score, reputation_score, trend,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, 0, 0,
			$10, $11,
			$12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21,
			NOW(), NOW()
		)
	`,
		p.ID, p.AccountID, p.UserID, p.Domain, p.Strategy, p.Status,
		p.CurrentWeek, p.TotalWeeks, p.DailyTarget,
		p.StartDate, p.ExpectedCompletionDate,
		p.Settings.MaxBounceRate, p.Settings.MaxSpamRate,
		p.Settings.TargetOpenRate, p.Settings.TargetReplyRate,
		p.Settings.BusinessHoursOnly, p.Settings.AutoPauseEnabled, p.Settings.SimulateInteractions,
		p.Metrics.HealthScore, p.Metrics.ReputationScore, p.Metrics.Trend,
	)
	if err != nil {
		return fmt.Errorf("insert warmup plan: %w", err)
	}
	return nil
}

func (r *PlanRepo) Get(ctx context.Context, id string) (*domain.WarmupPlan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+planColumns+` FROM warmup_plans WHERE id = $1`, id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, warmup.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get warmup plan: %w", err)
	}
	return p, nil
}

func (r *PlanRepo) List(ctx context.Context, status domain.PlanStatus) ([]domain.WarmupPlan, error) {
	query := `SELECT` + planColumns + ` FROM warmup_plans`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list warmup plans: %w", err)
	}
	defer rows.Close()

	var out []domain.WarmupPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warmup plan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PlanRepo) Update(ctx context.Context, p *domain.WarmupPlan) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE warmup_plans SET
			status = $2, current_week = $3, daily_target = $4,
			start_date = $5, expected_completion_date = $6, actual_completion_date = $7,
			pause_reason = NULLIF($8, ''), failure_reason = NULLIF($9, ''),
			updated_at = NOW()
		WHERE id = $1
	`,
		p.ID, p.Status, p.CurrentWeek, p.DailyTarget,
		p.StartDate, p.ExpectedCompletionDate, p.ActualCompletionDate,
		p.PauseReason, p.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("update warmup plan: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return warmup.ErrPlanNotFound
	}
	return nil
}

// IncrementCounters adds the delta in one statement so concurrent job
// executions for the same plan never lose an update, and returns the new
// totals for rescoring.
func (r *PlanRepo) IncrementCounters(ctx context.Context, id string, delta domain.JobCounters) (*domain.PlanMetrics, error) {
	m := &domain.PlanMetrics{}
	err := r.db.QueryRowContext(ctx, `
		UPDATE warmup_plans SET
			metrics_sent = metrics_sent + $2,
			metrics_delivered = metrics_delivered + $3,
			metrics_opened = metrics_opened + $4,
			metrics_replied = metrics_replied + $5,
			metrics_bounced = metrics_bounced + $6,
			metrics_complaints = metrics_complaints + $7,
			actual_sent_today = actual_sent_today + $2,
			total_sent = total_sent + $2,
			updated_at = NOW()
		WHERE id = $1
		RETURNING metrics_sent, metrics_delivered, metrics_opened,
		          metrics_replied, metrics_bounced, metrics_complaints
	`,
		id, delta.Sent, delta.Delivered, delta.Opened, delta.Replied, delta.Bounced, delta.Complaints,
	).Scan(&m.Sent, &m.Delivered, &m.Opened, &m.Replied, &m.Bounced, &m.Complaints)
	if err == sql.ErrNoRows {
		return nil, warmup.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("increment plan counters: %w", err)
	}
	return m, nil
}

func (r *PlanRepo) UpdateScores(ctx context.Context, id string, m domain.PlanMetrics) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE warmup_plans SET
			delivery_rate = $2, open_rate = $3, reply_rate = $4,
			bounce_rate = $5, spam_rate = $6,
			health_score = $7, reputation_score = $8, trend = $9,
			metrics_updated_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`,
		id, m.DeliveryRate, m.OpenRate, m.ReplyRate, m.BounceRate, m.SpamRate,
		m.HealthScore, m.ReputationScore, m.Trend,
	)
	if err != nil {
		return fmt.Errorf("update plan scores: %w", err)
	}
	return nil
}

func (r *PlanRepo) ResetDailySent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE warmup_plans SET actual_sent_today = 0, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("reset daily sent: %w", err)
	}
	return nil
}

var _ warmup.PlanRepository = (*PlanRepo)(nil)
