package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// Notifier implements warmup.Notifier by writing notification rows. It is
// fire-and-forget by contract: callers log its error and never fail on it.
type Notifier struct{ db *sql.DB }

// NewNotifier creates a Postgres-backed notification emitter.
func NewNotifier(db *sql.DB) *Notifier { return &Notifier{db: db} }

func (n *Notifier) Notify(ctx context.Context, userID, accountID string, note warmup.Notification) error {
	data, err := json.Marshal(note.Data)
	if err != nil {
		data = []byte("{}")
	}
	_, err = n.db.ExecContext(ctx, `
		INSERT INTO warmup_notifications (id, user_id, account_id, type, title, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, NOW())
	`, uuid.New().String(), userID, accountID, note.Type, note.Title, note.Message, string(data))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

var _ warmup.Notifier = (*Notifier)(nil)
