package domain

import (
	"time"
)

// WarmupStrategy names a ramp-up profile.
type WarmupStrategy string

const (
	StrategyConservative WarmupStrategy = "conservative"
	StrategyModerate     WarmupStrategy = "moderate"
	StrategyAggressive   WarmupStrategy = "aggressive"
)

// PlanStatus enumerates the lifecycle states of a warmup plan.
type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanActive    PlanStatus = "active"
	PlanPaused    PlanStatus = "paused"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// JobStatus enumerates the lifecycle of a single day's warmup job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// EmailStatus enumerates the delivery lifecycle of one warmup email.
type EmailStatus string

const (
	EmailPending   EmailStatus = "pending"
	EmailSent      EmailStatus = "sent"
	EmailDelivered EmailStatus = "delivered"
	EmailOpened    EmailStatus = "opened"
	EmailReplied   EmailStatus = "replied"
	EmailBounced   EmailStatus = "bounced"
	EmailFailed    EmailStatus = "failed"
)

// RecipientType classifies warmup recipients by deliverability risk.
type RecipientType string

const (
	RecipientInternal RecipientType = "internal"
	RecipientPartner  RecipientType = "partner"
	RecipientCustomer RecipientType = "existing_customer"
	RecipientProspect RecipientType = "prospect"
)

// ContentType classifies the email body used for a warmup send.
type ContentType string

const (
	ContentIntroduction ContentType = "introduction"
	ContentFollowUp     ContentType = "follow_up"
	ContentNewsletter   ContentType = "newsletter"
	ContentPromotional  ContentType = "promotional"
)

// InteractionType is a synthetic engagement event kind.
type InteractionType string

const (
	InteractionOpen  InteractionType = "open"
	InteractionClick InteractionType = "click"
	InteractionReply InteractionType = "reply"
)

// Trend describes the direction of a plan's health score between updates.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// PlanSettings holds the per-plan quality thresholds and scheduling knobs.
// Stored as typed columns; out-of-range values are rejected at plan creation.
type PlanSettings struct {
	MaxBounceRate        float64 `json:"max_bounce_rate" db:"max_bounce_rate"`
	MaxSpamRate          float64 `json:"max_spam_rate" db:"max_spam_rate"`
	TargetOpenRate       float64 `json:"target_open_rate" db:"target_open_rate"`
	TargetReplyRate      float64 `json:"target_reply_rate" db:"target_reply_rate"`
	BusinessHoursOnly    bool    `json:"business_hours_only" db:"business_hours_only"`
	AutoPauseEnabled     bool    `json:"auto_pause_enabled" db:"auto_pause_enabled"`
	SimulateInteractions bool    `json:"simulate_interactions" db:"simulate_interactions"`
}

// PlanMetrics holds a plan's running delivery totals plus the scores derived
// from them. Counters only ever increase; rates and scores are recomputed
// after each batch of results.
type PlanMetrics struct {
	Sent       int `json:"sent" db:"metrics_sent"`
	Delivered  int `json:"delivered" db:"metrics_delivered"`
	Opened     int `json:"opened" db:"metrics_opened"`
	Replied    int `json:"replied" db:"metrics_replied"`
	Bounced    int `json:"bounced" db:"metrics_bounced"`
	Complaints int `json:"spam_complaints" db:"metrics_complaints"`

	DeliveryRate float64 `json:"delivery_rate" db:"delivery_rate"`
	OpenRate     float64 `json:"open_rate" db:"open_rate"`
	ReplyRate    float64 `json:"reply_rate" db:"reply_rate"`
	BounceRate   float64 `json:"bounce_rate" db:"bounce_rate"`
	SpamRate     float64 `json:"spam_rate" db:"spam_rate"`

	HealthScore     float64 `json:"health_score" db:"health_score"`
	ReputationScore float64 `json:"reputation_score" db:"reputation_score"`
	Trend           Trend   `json:"trend" db:"trend"`

	LastUpdatedAt *time.Time `json:"last_updated_at" db:"metrics_updated_at"`
}

// WarmupPlan is one sending identity's ramp-up schedule and its running state.
type WarmupPlan struct {
	ID        string         `json:"id" db:"id"`
	AccountID string         `json:"account_id" db:"account_id"`
	UserID    string         `json:"user_id" db:"user_id"`
	Domain    string         `json:"domain" db:"domain"`
	Strategy  WarmupStrategy `json:"strategy" db:"strategy"`
	Status    PlanStatus     `json:"status" db:"status"`

	CurrentWeek     int `json:"current_week" db:"current_week"`
	TotalWeeks      int `json:"total_weeks" db:"total_weeks"`
	DailyTarget     int `json:"daily_target" db:"daily_target"`
	ActualSentToday int `json:"actual_sent_today" db:"actual_sent_today"`
	TotalSent       int `json:"total_sent" db:"total_sent"`

	StartDate              *time.Time `json:"start_date" db:"start_date"`
	ExpectedCompletionDate *time.Time `json:"expected_completion_date" db:"expected_completion_date"`
	ActualCompletionDate   *time.Time `json:"actual_completion_date" db:"actual_completion_date"`

	PauseReason   string `json:"pause_reason,omitempty" db:"pause_reason"`
	FailureReason string `json:"failure_reason,omitempty" db:"failure_reason"`

	Settings PlanSettings `json:"settings"`
	Metrics  PlanMetrics  `json:"metrics"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the plan can no longer change state.
func (p *WarmupPlan) IsTerminal() bool {
	return p.Status == PlanCompleted || p.Status == PlanFailed
}

// CanTransition reports whether the plan may move to the given status.
// pending → active; active ↔ paused; active → completed; active/paused → failed.
// Nothing re-enters pending and terminal states have no outgoing edges.
func (p *WarmupPlan) CanTransition(to PlanStatus) bool {
	switch to {
	case PlanActive:
		return p.Status == PlanPending || p.Status == PlanPaused
	case PlanPaused:
		return p.Status == PlanActive
	case PlanCompleted:
		return p.Status == PlanActive
	case PlanFailed:
		return p.Status == PlanActive || p.Status == PlanPaused
	default:
		return false
	}
}

// LogLevel is the severity of a job execution log entry.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warning"
	LogError LogLevel = "error"
)

// JobLogEntry is one timestamped line in a job's execution log.
type JobLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// JobCounters are the per-job aggregate delivery counters.
type JobCounters struct {
	Sent       int `json:"emails_sent" db:"emails_sent"`
	Delivered  int `json:"emails_delivered" db:"emails_delivered"`
	Opened     int `json:"emails_opened" db:"emails_opened"`
	Replied    int `json:"emails_replied" db:"emails_replied"`
	Bounced    int `json:"emails_bounced" db:"emails_bounced"`
	Complaints int `json:"spam_complaints" db:"spam_complaints"`
}

// WarmupJob is one plan's sending work for one calendar day. At most one job
// exists per (plan, scheduled_date); the repository enforces the constraint.
type WarmupJob struct {
	ID            string    `json:"id" db:"id"`
	WarmupPlanID  string    `json:"warmup_plan_id" db:"warmup_plan_id"`
	ScheduledDate time.Time `json:"scheduled_date" db:"scheduled_date"`
	TargetEmails  int       `json:"target_emails" db:"target_emails"`
	Status        JobStatus `json:"status" db:"status"`

	Counters JobCounters `json:"counters"`

	ExecutionLog []JobLogEntry `json:"execution_log"`
	StartedAt    *time.Time    `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at" db:"completed_at"`
	ErrorMessage string        `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WarmupEmail is one outbound message belonging to a job.
type WarmupEmail struct {
	ID             string        `json:"id" db:"id"`
	WarmupJobID    string        `json:"warmup_job_id" db:"warmup_job_id"`
	RecipientEmail string        `json:"recipient_email" db:"recipient_email"`
	RecipientName  string        `json:"recipient_name" db:"recipient_name"`
	RecipientType  RecipientType `json:"recipient_type" db:"recipient_type"`
	ContentType    ContentType   `json:"content_type" db:"content_type"`
	Subject        string        `json:"subject" db:"subject"`
	Content        string        `json:"content" db:"content"`

	ScheduledAt time.Time   `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time  `json:"sent_at" db:"sent_at"`
	Status      EmailStatus `json:"status" db:"status"`

	InteractionSimulated bool            `json:"interaction_simulated" db:"interaction_simulated"`
	SimulationType       InteractionType `json:"simulation_type,omitempty" db:"simulation_type"`
	SimulationDelayHours float64         `json:"simulation_delay_hours" db:"simulation_delay_hours"`

	TrackingID string `json:"tracking_id,omitempty" db:"tracking_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WarmupActivity is an append-only daily aggregate written after each plan
// metrics update, used for trend metrics and issue detection. Never mutated.
type WarmupActivity struct {
	ID           string    `json:"id" db:"id"`
	WarmupPlanID string    `json:"warmup_plan_id" db:"warmup_plan_id"`
	Date         time.Time `json:"date" db:"date"`
	Week         int       `json:"week" db:"week"`

	Sent       int `json:"sent" db:"sent"`
	Delivered  int `json:"delivered" db:"delivered"`
	Opened     int `json:"opened" db:"opened"`
	Replied    int `json:"replied" db:"replied"`
	Bounced    int `json:"bounced" db:"bounced"`
	Complaints int `json:"spam_complaints" db:"spam_complaints"`

	HealthScore     float64 `json:"health_score" db:"health_score"`
	ReputationScore float64 `json:"reputation_score" db:"reputation_score"`
	Trend           Trend   `json:"trend" db:"trend"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WarmupRecipient is a seed-pool contact eligible for warmup sends.
type WarmupRecipient struct {
	ID                   string        `json:"id" db:"id"`
	AccountID            string        `json:"account_id" db:"account_id"`
	Email                string        `json:"email" db:"email"`
	Name                 string        `json:"name" db:"name"`
	Company              string        `json:"company" db:"company"`
	Type                 RecipientType `json:"type" db:"type"`
	EngagementLikelihood float64       `json:"engagement_likelihood" db:"engagement_likelihood"`
	Active               bool          `json:"active" db:"active"`
}
