package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/warmup"
	"github.com/lib/pq"
)

// EmailRepo implements warmup.EmailRepository against PostgreSQL.
type EmailRepo struct{ db *sql.DB }

// NewEmailRepo creates a Postgres-backed email repository.
func NewEmailRepo(db *sql.DB) *EmailRepo { return &EmailRepo{db: db} }

const emailColumns = `
	id, warmup_job_id, recipient_email, COALESCE(recipient_name, ''),
	recipient_type, content_type, subject, content,
	scheduled_at, sent_at, status,
	interaction_simulated, COALESCE(simulation_type, ''), simulation_delay_hours,
	COALESCE(tracking_id, ''), created_at`

func scanEmail(row interface{ Scan(...interface{}) error }) (*domain.WarmupEmail, error) {
	e := &domain.WarmupEmail{}
	err := row.Scan(
		&e.ID, &e.WarmupJobID, &e.RecipientEmail, &e.RecipientName,
		&e.RecipientType, &e.ContentType, &e.Subject, &e.Content,
		&e.ScheduledAt, &e.SentAt, &e.Status,
		&e.InteractionSimulated, &e.SimulationType, &e.SimulationDelayHours,
		&e.TrackingID, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// CreateBatch inserts all of a job's emails with one multi-row statement.
func (r *EmailRepo) CreateBatch(ctx context.Context, emails []domain.WarmupEmail) error {
	if len(emails) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []interface{}
	)
	for i, e := range emails {
		base := i * 12
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, NULLIF($%d, ''), $%d, NOW())",
			base+1, base+2, base+3, base+4, base+5, base+6,
			base+7, base+8, base+9, base+10, base+11, base+12))
		args = append(args,
			e.ID, e.WarmupJobID, e.RecipientEmail, e.RecipientName,
			e.RecipientType, e.ContentType, e.Subject, e.Content,
			e.ScheduledAt, e.InteractionSimulated, string(e.SimulationType), e.SimulationDelayHours)
	}

	query := `
		INSERT INTO warmup_emails (
			id, warmup_job_id, recipient_email, recipient_name,
			recipient_type, content_type, subject, content,
			scheduled_at, interaction_simulated, simulation_type,
			simulation_delay_hours, created_at
		) VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("batch insert warmup emails: %w", err)
	}
	return nil
}

func (r *EmailRepo) Get(ctx context.Context, id string) (*domain.WarmupEmail, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+emailColumns+` FROM warmup_emails WHERE id = $1`, id)
	e, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, warmup.ErrEmailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get warmup email: %w", err)
	}
	return e, nil
}

func (r *EmailRepo) ListPending(ctx context.Context, jobID string) ([]domain.WarmupEmail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+emailColumns+` FROM warmup_emails
		WHERE warmup_job_id = $1 AND status = 'pending'
		ORDER BY scheduled_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list pending emails: %w", err)
	}
	defer rows.Close()

	var out []domain.WarmupEmail
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warmup email: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Claim is the conditional pending->sent transition concurrent executors
// use to decide who dispatches an email. Zero rows means someone else won.
func (r *EmailRepo) Claim(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE warmup_emails SET status = 'sent'
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("claim email: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (r *EmailRepo) UpdateStatus(ctx context.Context, id string, status domain.EmailStatus, sentAt *time.Time, trackingID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE warmup_emails
		SET status = $2,
		    sent_at = COALESCE($3, sent_at),
		    tracking_id = COALESCE(NULLIF($4, ''), tracking_id)
		WHERE id = $1
	`, id, status, sentAt, trackingID)
	if err != nil {
		return fmt.Errorf("update email status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return warmup.ErrEmailNotFound
	}
	return nil
}

// RescheduleBatch moves all listed emails to their new slots in one
// statement. Statuses stay pending, so nothing is lost or duplicated.
func (r *EmailRepo) RescheduleBatch(ctx context.Context, batch []warmup.EmailReschedule) error {
	if len(batch) == 0 {
		return nil
	}

	ids := make([]string, len(batch))
	times := make([]time.Time, len(batch))
	for i, item := range batch {
		ids[i] = item.ID
		times[i] = item.ScheduledAt
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE warmup_emails e
		SET scheduled_at = u.scheduled_at, status = 'pending'
		FROM (SELECT UNNEST($1::uuid[]) AS id, UNNEST($2::timestamptz[]) AS scheduled_at) u
		WHERE e.id = u.id
	`, pq.Array(ids), pq.Array(times))
	if err != nil {
		return fmt.Errorf("reschedule emails: %w", err)
	}
	return nil
}

// MarkInteraction only advances emails still in sent/delivered, so a
// duplicate simulation replay is a visible no-op.
func (r *EmailRepo) MarkInteraction(ctx context.Context, id string, status domain.EmailStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE warmup_emails SET status = $2
		WHERE id = $1 AND status IN ('sent', 'delivered')
	`, id, status)
	if err != nil {
		return false, fmt.Errorf("mark email interaction: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (r *EmailRepo) RecordClick(ctx context.Context, emailID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO warmup_click_events (id, warmup_email_id, clicked_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`, uuid.New().String(), emailID, at)
	if err != nil {
		return fmt.Errorf("record click event: %w", err)
	}
	return nil
}

var _ warmup.EmailRepository = (*EmailRepo)(nil)
