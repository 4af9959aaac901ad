package warmup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
)

const (
	// A running job untouched this long is considered abandoned.
	staleJobAge = 4 * time.Hour

	// Trailing window and failure count that pause a plan outright.
	failureWindow    = 3 * 24 * time.Hour
	failureThreshold = 3

	// Stricter degradation multipliers the monitor applies to active plans
	// between job executions.
	monitorBounceFactor    = 1.5
	monitorSpamFactor      = 2.0
	monitorMinDeliveryRate = 0.7
)

// Monitor is the periodic health sweep: it reaps stuck or abandoned jobs and
// pauses chronically degraded plans, independently of job execution.
type Monitor struct {
	plans   PlanRepository
	jobs    JobRepository
	planSvc *PlanService
	now     func() time.Time
}

// NewMonitor creates a health monitor.
func NewMonitor(plans PlanRepository, jobs JobRepository, planSvc *PlanService) *Monitor {
	return &Monitor{plans: plans, jobs: jobs, planSvc: planSvc, now: time.Now}
}

// SetClock overrides the monitor's time source (used by tests).
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// Run performs one monitoring pass.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.reapStaleJobs(ctx); err != nil {
		log.Printf("[Monitor] Stale job sweep failed: %v", err)
	}
	if err := m.checkDegradedPlans(ctx); err != nil {
		log.Printf("[Monitor] Degradation sweep failed: %v", err)
	}
	return nil
}

// reapStaleJobs fails jobs from prior days that never finished: running jobs
// started more than staleJobAge ago time out, and pending jobs whose date
// passed never started at all. Plans accumulating failures get paused.
func (m *Monitor) reapStaleJobs(ctx context.Context) error {
	now := m.now()
	today := now.Truncate(24 * time.Hour)

	stale, err := m.jobs.ListStale(ctx, today)
	if err != nil {
		return fmt.Errorf("list stale jobs: %w", err)
	}

	for i := range stale {
		job := &stale[i]
		var reason string

		switch {
		case job.Status == domain.JobRunning && job.StartedAt != nil && now.Sub(*job.StartedAt) > staleJobAge:
			reason = fmt.Sprintf("timeout: running since %s", job.StartedAt.Format(time.RFC3339))
		case job.Status == domain.JobPending:
			reason = "failed to start: job from past date never executed"
		default:
			continue
		}

		log.Printf("[Monitor] Failing job %s (plan %s): %s", job.ID, job.WarmupPlanID, reason)
		if err := m.jobs.Finish(ctx, job.ID, domain.JobFailed, job.Counters, reason); err != nil {
			log.Printf("[Monitor] Failed to mark job %s failed: %v", job.ID, err)
			continue
		}
		m.checkChronicFailures(ctx, job.WarmupPlanID)
	}
	return nil
}

// checkChronicFailures pauses a plan with repeated recent job failures,
// regardless of its metric thresholds.
func (m *Monitor) checkChronicFailures(ctx context.Context, planID string) {
	since := m.now().Add(-failureWindow)
	failures, err := m.jobs.CountFailuresSince(ctx, planID, since)
	if err != nil {
		log.Printf("[Monitor] Failure count for plan %s failed: %v", planID, err)
		return
	}
	if failures < failureThreshold {
		return
	}

	reason := fmt.Sprintf("multiple job failures detected (%d in last 3 days)", failures)
	if _, err := m.planSvc.PausePlan(ctx, planID, reason); err != nil {
		// Already paused/terminal plans are fine to skip.
		log.Printf("[Monitor] Could not pause plan %s: %v", planID, err)
	}
}

// checkDegradedPlans re-evaluates every active plan's latest metrics against
// the stricter monitor multipliers and pauses the ones that cross them, even
// when no job execution has just run.
func (m *Monitor) checkDegradedPlans(ctx context.Context) error {
	plans, err := m.plans.List(ctx, domain.PlanActive)
	if err != nil {
		return fmt.Errorf("list active plans: %w", err)
	}

	for i := range plans {
		plan := &plans[i]
		if plan.Metrics.Sent == 0 {
			continue
		}

		var reason string
		switch {
		case plan.Settings.MaxBounceRate > 0 && plan.Metrics.BounceRate > monitorBounceFactor*plan.Settings.MaxBounceRate:
			reason = fmt.Sprintf("bounce rate %.2f%% exceeds %.2f%% threshold",
				plan.Metrics.BounceRate*100, monitorBounceFactor*plan.Settings.MaxBounceRate*100)
		case plan.Settings.MaxSpamRate > 0 && plan.Metrics.SpamRate > monitorSpamFactor*plan.Settings.MaxSpamRate:
			reason = fmt.Sprintf("spam complaint rate %.3f%% exceeds %.3f%% threshold",
				plan.Metrics.SpamRate*100, monitorSpamFactor*plan.Settings.MaxSpamRate*100)
		case plan.Metrics.DeliveryRate < monitorMinDeliveryRate:
			reason = fmt.Sprintf("delivery rate %.2f%% below %.0f%%",
				plan.Metrics.DeliveryRate*100, monitorMinDeliveryRate*100)
		default:
			continue
		}

		log.Printf("[Monitor] Pausing degraded plan %s: %s", plan.ID, reason)
		if _, err := m.planSvc.PausePlan(ctx, plan.ID, "Health monitor: "+reason); err != nil {
			log.Printf("[Monitor] Could not pause plan %s: %v", plan.ID, err)
		}
	}
	return nil
}
