package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// ActivityRepo implements warmup.ActivityRepository against PostgreSQL.
// Activities are append-only; there is no update path.
type ActivityRepo struct{ db *sql.DB }

// NewActivityRepo creates a Postgres-backed activity repository.
func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

func (r *ActivityRepo) Insert(ctx context.Context, a *domain.WarmupActivity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO warmup_activities (
			id, warmup_plan_id, date, week,
			sent, delivered, opened, replied, bounced, spam_complaints,
			health_score, reputation_score, trend, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
	`,
		a.ID, a.WarmupPlanID, a.Date, a.Week,
		a.Sent, a.Delivered, a.Opened, a.Replied, a.Bounced, a.Complaints,
		a.HealthScore, a.ReputationScore, a.Trend,
	)
	if err != nil {
		return fmt.Errorf("insert warmup activity: %w", err)
	}
	return nil
}

var _ warmup.ActivityRepository = (*ActivityRepo)(nil)

// ListRecent returns a plan's most recent activity rows, newest first.
// Used by the API status endpoint for trend history.
func (r *ActivityRepo) ListRecent(ctx context.Context, planID string, limit int) ([]domain.WarmupActivity, error) {
	if limit <= 0 {
		limit = 14
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, warmup_plan_id, date, week,
		       sent, delivered, opened, replied, bounced, spam_complaints,
		       health_score, reputation_score, trend, created_at
		FROM warmup_activities
		WHERE warmup_plan_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, planID, limit)
	if err != nil {
		return nil, fmt.Errorf("list warmup activities: %w", err)
	}
	defer rows.Close()

	var out []domain.WarmupActivity
	for rows.Next() {
		var a domain.WarmupActivity
		err := rows.Scan(
			&a.ID, &a.WarmupPlanID, &a.Date, &a.Week,
			&a.Sent, &a.Delivered, &a.Opened, &a.Replied, &a.Bounced, &a.Complaints,
			&a.HealthScore, &a.ReputationScore, &a.Trend, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan warmup activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
