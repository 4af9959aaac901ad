package warmup

import (
	"context"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
)

// PlanRepository defines data access for warmup plans.
// Implementations must be safe for concurrent use.
type PlanRepository interface {
	// Create inserts a new plan. The plan's ID must already be set.
	Create(ctx context.Context, p *domain.WarmupPlan) error

	// Get returns a single plan. Returns ErrPlanNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.WarmupPlan, error)

	// List returns plans filtered by status. An empty status returns all.
	List(ctx context.Context, status domain.PlanStatus) ([]domain.WarmupPlan, error)

	// Update writes the plan's mutable fields (status, week, targets, reasons,
	// dates, scores). Counters are NOT written here; see IncrementCounters.
	Update(ctx context.Context, p *domain.WarmupPlan) error

	// IncrementCounters atomically adds the delta to the plan's metric
	// counters and daily/total sent counts in a single statement, returning
	// the new totals. This is the only way counters change, so two jobs for
	// the same plan can never lose an update.
	IncrementCounters(ctx context.Context, id string, delta domain.JobCounters) (*domain.PlanMetrics, error)

	// UpdateScores writes the derived rates, scores and trend for a plan.
	UpdateScores(ctx context.Context, id string, m domain.PlanMetrics) error

	// ResetDailySent zeroes actual_sent_today for a plan. Called at each
	// day boundary (first job generated for a date) and on week advancement.
	ResetDailySent(ctx context.Context, id string) error
}

// JobRepository defines data access for warmup jobs.
type JobRepository interface {
	// Create inserts a job. Returns (false, nil) if a job already exists for
	// the same (warmup_plan_id, scheduled_date); the caller treats that as
	// idempotent success and must not insert emails for the duplicate.
	Create(ctx context.Context, j *domain.WarmupJob) (created bool, err error)

	// Get returns a single job. Returns ErrJobNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.WarmupJob, error)

	// GetByPlanAndDate returns the job for a plan on a calendar date, or
	// ErrJobNotFound.
	GetByPlanAndDate(ctx context.Context, planID string, date time.Time) (*domain.WarmupJob, error)

	// ListDue returns non-terminal (pending or running) jobs scheduled on or
	// before the given date, oldest first. Running jobs are included so a
	// quota-deferred job is retried once its emails' new slots arrive.
	ListDue(ctx context.Context, date time.Time) ([]domain.WarmupJob, error)

	// ListStale returns jobs from dates before the given day that are still
	// pending or running.
	ListStale(ctx context.Context, before time.Time) ([]domain.WarmupJob, error)

	// MarkRunning moves a pending job to running and stamps started_at.
	MarkRunning(ctx context.Context, id string, at time.Time) error

	// Finish moves a job to a terminal status, writing aggregate counters,
	// completed_at and an optional error message.
	Finish(ctx context.Context, id string, status domain.JobStatus, counters domain.JobCounters, errMsg string) error

	// AppendLog appends one entry to the job's execution log. Best-effort:
	// callers ignore its error beyond logging.
	AppendLog(ctx context.Context, id string, entry domain.JobLogEntry) error

	// IncrementCounter atomically bumps one of the job's counters
	// ("emails_opened", "emails_replied", ...). Used by the simulator.
	IncrementCounter(ctx context.Context, id string, counter string, n int) error

	// CountFailuresSince counts a plan's failed jobs scheduled on or after
	// the given date.
	CountFailuresSince(ctx context.Context, planID string, since time.Time) (int, error)

	// ListByPlan returns a plan's jobs, newest scheduled date first, capped
	// at limit.
	ListByPlan(ctx context.Context, planID string, limit int) ([]domain.WarmupJob, error)
}

// EmailReschedule pairs an email with its new send slot.
type EmailReschedule struct {
	ID          string
	ScheduledAt time.Time
}

// EmailRepository defines data access for warmup emails.
type EmailRepository interface {
	// CreateBatch inserts all emails for a job in one batch write.
	CreateBatch(ctx context.Context, emails []domain.WarmupEmail) error

	// Get returns a single email. Returns ErrEmailNotFound if missing.
	Get(ctx context.Context, id string) (*domain.WarmupEmail, error)

	// ListPending returns a job's pending emails ordered by scheduled_at.
	ListPending(ctx context.Context, jobID string) ([]domain.WarmupEmail, error)

	// Claim atomically moves a pending email to sent, returning false if the
	// email was not pending. Concurrent executors use this to arbitrate who
	// dispatches each email.
	Claim(ctx context.Context, id string) (claimed bool, err error)

	// UpdateStatus sets an email's status, optionally stamping sent_at and
	// the transport tracking id.
	UpdateStatus(ctx context.Context, id string, status domain.EmailStatus, sentAt *time.Time, trackingID string) error

	// RescheduleBatch moves each listed email to its new scheduled_at,
	// leaving status pending.
	RescheduleBatch(ctx context.Context, batch []EmailReschedule) error

	// MarkInteraction applies a simulated open/reply by setting the email's
	// status. A no-op if the email is not in sent/delivered state, so
	// duplicate sweeps cannot double-apply.
	MarkInteraction(ctx context.Context, id string, status domain.EmailStatus) (applied bool, err error)

	// RecordClick inserts a click event row for an email.
	RecordClick(ctx context.Context, emailID string, at time.Time) error
}

// ActivityRepository records append-only daily aggregates.
type ActivityRepository interface {
	Insert(ctx context.Context, a *domain.WarmupActivity) error

	// ListRecent returns a plan's most recent activity rows, newest first.
	ListRecent(ctx context.Context, planID string, limit int) ([]domain.WarmupActivity, error)
}

// RecipientRepository provides the seed pools the generator draws from.
type RecipientRepository interface {
	// ListByType returns an account's active recipients of one type,
	// in a stable order so round-robin selection is deterministic.
	ListByType(ctx context.Context, accountID string, t domain.RecipientType) ([]domain.WarmupRecipient, error)
}

// QuotaStatus is the result of a sending-quota check.
type QuotaStatus struct {
	Available       bool
	DailyRemaining  int
	HourlyRemaining int
}

// QuotaChecker is the external rate-limiter contract, consulted once per job
// execution before dispatch begins.
type QuotaChecker interface {
	CheckQuota(ctx context.Context, accountID, domain string) (QuotaStatus, error)

	// Record consumes n sends from the account's windows. Returns false,
	// without consuming anything, if either window cannot fit the batch.
	Record(ctx context.Context, accountID, domain string, n int) (bool, error)
}

// SendRequest is the payload handed to the external transport.
type SendRequest struct {
	To              string
	Subject         string
	Content         string
	TrackingEnabled bool
	WarmupMode      bool
}

// SendResult is the transport's outcome for one message.
type SendResult struct {
	Success    bool
	TrackingID string
	Error      string
}

// Sender is the external message-delivery contract, called once per email.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// NotificationType classifies warmup notifications.
type NotificationType string

const (
	NotifyMilestone  NotificationType = "warmup_milestone"
	NotifyWarning    NotificationType = "warmup_warning"
	NotifyCompletion NotificationType = "warmup_completed"
	NotifyPaused     NotificationType = "warmup_paused"
	NotifyFailed     NotificationType = "warmup_failed"
)

// Notification is a fire-and-forget event for the account's owner.
type Notification struct {
	Type    NotificationType
	Title   string
	Message string
	Data    map[string]interface{}
}

// Notifier emits notifications. Failures must never propagate into the
// caller's failure path; callers log and move on.
type Notifier interface {
	Notify(ctx context.Context, userID, accountID string, n Notification) error
}
