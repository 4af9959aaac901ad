package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// RecipientRepo implements warmup.RecipientRepository against PostgreSQL.
type RecipientRepo struct{ db *sql.DB }

// NewRecipientRepo creates a Postgres-backed recipient repository.
func NewRecipientRepo(db *sql.DB) *RecipientRepo { return &RecipientRepo{db: db} }

// ListByType returns the account's active seed pool for one recipient type.
// Ordered by id so round-robin selection is stable across invocations.
func (r *RecipientRepo) ListByType(ctx context.Context, accountID string, t domain.RecipientType) ([]domain.WarmupRecipient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, email, COALESCE(name, ''), COALESCE(company, ''),
		       type, engagement_likelihood, active
		FROM warmup_recipients
		WHERE account_id = $1 AND type = $2 AND active = true
		ORDER BY id ASC
	`, accountID, t)
	if err != nil {
		return nil, fmt.Errorf("list warmup recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.WarmupRecipient
	for rows.Next() {
		var rec domain.WarmupRecipient
		err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Email, &rec.Name, &rec.Company,
			&rec.Type, &rec.EngagementLikelihood, &rec.Active)
		if err != nil {
			return nil, fmt.Errorf("scan warmup recipient: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ warmup.RecipientRepository = (*RecipientRepo)(nil)
