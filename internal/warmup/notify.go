package warmup

import (
	"context"
	"log"
)

// LogNotifier is a Notifier that only logs. Used when no notification store
// is wired (tests, local runs).
type LogNotifier struct{}

// Notify logs the notification and never fails.
func (LogNotifier) Notify(_ context.Context, userID, accountID string, n Notification) error {
	log.Printf("[Notify] %s for user %s (account %s): %s: %s", n.Type, userID, accountID, n.Title, n.Message)
	return nil
}
