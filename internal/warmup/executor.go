package warmup

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
)

const (
	// Randomized politeness delay between dispatches.
	paceMin = 1 * time.Second
	paceMax = 3 * time.Second

	// Per-send hard deadline. Expiry is a per-email failure, never a job
	// failure.
	defaultSendTimeout = 30 * time.Second
)

// Executor drives a WarmupJob from pending to a terminal state: quota check,
// sequential dispatch of each email in scheduled_at order, result
// aggregation, and pushing totals into the plan's running metrics.
type Executor struct {
	plans     PlanRepository
	jobs      JobRepository
	emails    EmailRepository
	quota     QuotaChecker
	sender    Sender
	simulator *Simulator
	planSvc   *PlanService

	SendTimeout     time.Duration
	WindowStartHour int
	WindowEndHour   int

	rng   *rand.Rand
	now   func() time.Time
	sleep func(time.Duration)
}

// NewExecutor creates a job executor. simulator may be nil to disable
// interaction scheduling.
func NewExecutor(plans PlanRepository, jobs JobRepository, emails EmailRepository,
	quota QuotaChecker, sender Sender, simulator *Simulator, planSvc *PlanService) *Executor {
	return &Executor{
		plans:           plans,
		jobs:            jobs,
		emails:          emails,
		quota:           quota,
		sender:          sender,
		simulator:       simulator,
		planSvc:         planSvc,
		SendTimeout:     defaultSendTimeout,
		WindowStartHour: defaultWindowStartHour,
		WindowEndHour:   defaultWindowEndHour,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		now:             time.Now,
		sleep:           time.Sleep,
	}
}

// SetRand overrides the executor's random source (used by tests).
func (e *Executor) SetRand(r *rand.Rand) { e.rng = r }

// SetClock overrides the executor's time source (used by tests).
func (e *Executor) SetClock(now func() time.Time) { e.now = now }

// SetSleep overrides the pacing sleep (used by tests).
func (e *Executor) SetSleep(f func(time.Duration)) { e.sleep = f }

// ExecuteDueJobs runs every pending job scheduled on or before the given
// date. One job's failure does not stop the sweep.
func (e *Executor) ExecuteDueJobs(ctx context.Context, date time.Time) (executed int, err error) {
	due, err := e.jobs.ListDue(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("list due jobs: %w", err)
	}
	for i := range due {
		if err := e.ExecuteJob(ctx, due[i].ID); err != nil {
			log.Printf("[Executor] Job %s failed: %v", due[i].ID, err)
			continue
		}
		executed++
	}
	return executed, nil
}

// ExecuteJob runs one job to a terminal state. Quota exhaustion is not a
// failure: pending emails are rescheduled to the next day and the job stays
// as-is for a later retry. Any structural error marks the job failed.
func (e *Executor) ExecuteJob(ctx context.Context, jobID string) error {
	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	plan, err := e.plans.Get(ctx, job.WarmupPlanID)
	if err != nil {
		e.failJob(ctx, job.ID, domain.JobCounters{}, fmt.Sprintf("plan lookup failed: %v", err))
		return err
	}

	if job.Status == domain.JobPending {
		if err := e.jobs.MarkRunning(ctx, job.ID, e.now()); err != nil {
			return fmt.Errorf("mark job running: %w", err)
		}
	}
	e.logJob(ctx, job.ID, domain.LogInfo, fmt.Sprintf("Execution started (week %d, target %d)", plan.CurrentWeek, job.TargetEmails))

	pending, err := e.emails.ListPending(ctx, job.ID)
	if err != nil {
		e.failJob(ctx, job.ID, domain.JobCounters{}, fmt.Sprintf("load pending emails: %v", err))
		return fmt.Errorf("load pending emails: %w", err)
	}
	if len(pending) == 0 {
		e.logJob(ctx, job.ID, domain.LogInfo, "No emails to send")
		return e.jobs.Finish(ctx, job.ID, domain.JobCompleted, job.Counters, "")
	}

	quota, err := e.quota.CheckQuota(ctx, plan.AccountID, plan.Domain)
	if err != nil {
		e.failJob(ctx, job.ID, domain.JobCounters{}, fmt.Sprintf("quota check failed: %v", err))
		return fmt.Errorf("quota check: %w", err)
	}
	if !quota.Available {
		// Deferred-retry signal, not an error. Every pending email moves to
		// a randomized business-hours slot tomorrow; the job is retried then.
		e.logJob(ctx, job.ID, domain.LogWarn, fmt.Sprintf(
			"Sending quota unavailable (daily remaining %d, hourly remaining %d), rescheduling %d emails to tomorrow",
			quota.DailyRemaining, quota.HourlyRemaining, len(pending)))
		if err := e.rescheduleToNextDay(ctx, pending); err != nil {
			return fmt.Errorf("reschedule on quota exhaustion: %w", err)
		}
		return nil
	}

	// Consume the batch from the account's windows before dispatching. A
	// refusal means another instance ate the remaining budget between the
	// check and now; defer the whole batch the same way.
	recorded, err := e.quota.Record(ctx, plan.AccountID, plan.Domain, len(pending))
	if err != nil {
		e.failJob(ctx, job.ID, domain.JobCounters{}, fmt.Sprintf("quota record failed: %v", err))
		return fmt.Errorf("quota record: %w", err)
	}
	if !recorded {
		e.logJob(ctx, job.ID, domain.LogWarn, fmt.Sprintf(
			"Sending quota cannot fit %d emails, rescheduling to tomorrow", len(pending)))
		if err := e.rescheduleToNextDay(ctx, pending); err != nil {
			return fmt.Errorf("reschedule on quota exhaustion: %w", err)
		}
		return nil
	}

	counters := e.dispatchAll(ctx, plan, job, pending)

	summary := fmt.Sprintf("Completed: %d sent, %d delivered, %d failed of %d",
		counters.Sent, counters.Delivered, len(pending)-counters.Sent, len(pending))
	e.logJob(ctx, job.ID, domain.LogInfo, summary)
	if err := e.jobs.Finish(ctx, job.ID, domain.JobCompleted, counters, ""); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	if _, err := e.planSvc.ApplyJobResults(ctx, plan.ID, counters); err != nil {
		log.Printf("[Executor] Failed to apply results to plan %s: %v", plan.ID, err)
	}
	return nil
}

// dispatchAll sends each email in order. A single email's failure is
// recorded on that email and counted; it never aborts the loop.
func (e *Executor) dispatchAll(ctx context.Context, plan *domain.WarmupPlan, job *domain.WarmupJob, pending []domain.WarmupEmail) domain.JobCounters {
	var counters domain.JobCounters

	for i := range pending {
		email := &pending[i]

		// Conditional pending->sent transition arbitrates concurrent
		// executors; whoever loses the claim leaves the email alone.
		claimed, err := e.emails.Claim(ctx, email.ID)
		if err != nil {
			e.logJob(ctx, job.ID, domain.LogError, fmt.Sprintf("Claim %s failed: %v", email.ID, err))
			continue
		}
		if !claimed {
			e.logJob(ctx, job.ID, domain.LogInfo, fmt.Sprintf("Email %s already claimed elsewhere, skipping", email.ID))
			continue
		}

		if err := e.dispatchOne(ctx, email); err != nil {
			e.logJob(ctx, job.ID, domain.LogError, fmt.Sprintf("Send to %s failed: %v", email.RecipientEmail, err))
			continue
		}
		counters.Sent++
		counters.Delivered++

		if e.simulator != nil && email.InteractionSimulated {
			if err := e.simulator.Schedule(ctx, email); err != nil {
				log.Printf("[Executor] Failed to schedule simulation for %s: %v", email.ID, err)
			}
		}

		if i < len(pending)-1 {
			e.sleep(paceMin + time.Duration(e.rng.Float64()*float64(paceMax-paceMin)))
		}
	}
	return counters
}

func (e *Executor) dispatchOne(ctx context.Context, email *domain.WarmupEmail) error {
	sendCtx, cancel := context.WithTimeout(ctx, e.SendTimeout)
	defer cancel()

	result, err := e.sender.Send(sendCtx, SendRequest{
		To:              email.RecipientEmail,
		Subject:         email.Subject,
		Content:         email.Content,
		TrackingEnabled: true,
		WarmupMode:      true,
	})
	now := e.now()
	if err != nil {
		e.emails.UpdateStatus(ctx, email.ID, domain.EmailFailed, nil, "")
		return err
	}
	if !result.Success {
		e.emails.UpdateStatus(ctx, email.ID, domain.EmailFailed, nil, "")
		return fmt.Errorf("transport rejected send: %s", result.Error)
	}

	// The warmup transport confirms acceptance synchronously, so a
	// successful send counts as delivered until a bounce event says
	// otherwise.
	if err := e.emails.UpdateStatus(ctx, email.ID, domain.EmailDelivered, &now, result.TrackingID); err != nil {
		return fmt.Errorf("update email status: %w", err)
	}
	email.SentAt = &now
	email.Status = domain.EmailDelivered
	return nil
}

// rescheduleToNextDay moves every pending email to a randomized slot inside
// tomorrow's business-hours window. No email is lost or duplicated.
func (e *Executor) rescheduleToNextDay(ctx context.Context, pending []domain.WarmupEmail) error {
	tomorrow := e.now().AddDate(0, 0, 1)
	start := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), e.WindowStartHour, 0, 0, 0, time.UTC)
	window := time.Duration(e.WindowEndHour-e.WindowStartHour) * time.Hour

	batch := make([]EmailReschedule, len(pending))
	for i := range pending {
		batch[i] = EmailReschedule{
			ID:          pending[i].ID,
			ScheduledAt: start.Add(time.Duration(e.rng.Float64() * float64(window))),
		}
	}
	return e.emails.RescheduleBatch(ctx, batch)
}

func (e *Executor) failJob(ctx context.Context, jobID string, counters domain.JobCounters, msg string) {
	e.logJob(ctx, jobID, domain.LogError, msg)
	if err := e.jobs.Finish(ctx, jobID, domain.JobFailed, counters, msg); err != nil {
		log.Printf("[Executor] Failed to mark job %s failed: %v", jobID, err)
	}
}

// logJob appends to the job's execution log. Best-effort: its own failure
// never escalates into the caller's failure path.
func (e *Executor) logJob(ctx context.Context, jobID string, level domain.LogLevel, msg string) {
	entry := domain.JobLogEntry{Timestamp: e.now(), Level: level, Message: msg}
	if err := e.jobs.AppendLog(ctx, jobID, entry); err != nil {
		log.Printf("[Executor] Failed to append job log for %s: %v", jobID, err)
	}
}
