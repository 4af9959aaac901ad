package warmup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/warmup-engine/internal/domain"
)

// Circuit-breaker multipliers for the post-update auto-pause check. These are
// hard stops on the whole plan, distinct from the per-week success criteria.
const (
	autoPauseBounceFactor = 1.5
	autoPauseSpamFactor   = 2.0
	autoPauseMinHealth    = 30.0
)

// PlanService owns the warmup plan state machine: creation, explicit
// transitions, time-based week progression and the auto-pause control loop.
type PlanService struct {
	plans      PlanRepository
	activities ActivityRepository
	notifier   Notifier
	now        func() time.Time
}

// NewPlanService creates a plan service. notifier may be nil.
func NewPlanService(plans PlanRepository, activities ActivityRepository, notifier Notifier) *PlanService {
	return &PlanService{
		plans:      plans,
		activities: activities,
		notifier:   notifier,
		now:        time.Now,
	}
}

// SetClock overrides the service's time source (used by tests).
func (s *PlanService) SetClock(now func() time.Time) { s.now = now }

// CreatePlanInput is the request to provision a new warmup plan.
type CreatePlanInput struct {
	AccountID string
	UserID    string
	Domain    string
	Strategy  domain.WarmupStrategy
	Settings  *domain.PlanSettings // nil uses the strategy defaults
}

// CreatePlan validates the strategy and settings and persists a pending plan.
// Nothing is persisted when validation fails.
func (s *PlanService) CreatePlan(ctx context.Context, in CreatePlanInput) (*domain.WarmupPlan, error) {
	profile, err := StrategyFor(in.Strategy)
	if err != nil {
		return nil, err
	}

	settings := profile.DefaultSettings
	if in.Settings != nil {
		settings = *in.Settings
		if err := validateSettings(settings); err != nil {
			return nil, err
		}
	}

	now := s.now()
	expected := now.AddDate(0, 0, profile.TotalWeeks*7)
	plan := &domain.WarmupPlan{
		ID:                     uuid.New().String(),
		AccountID:              in.AccountID,
		UserID:                 in.UserID,
		Domain:                 in.Domain,
		Strategy:               in.Strategy,
		Status:                 domain.PlanPending,
		CurrentWeek:            0,
		TotalWeeks:             profile.TotalWeeks,
		DailyTarget:            profile.ScheduleForWeek(1).DailyTarget,
		StartDate:              &now,
		ExpectedCompletionDate: &expected,
		Settings:               settings,
		Metrics: domain.PlanMetrics{
			HealthScore:     100,
			ReputationScore: 50,
			Trend:           domain.TrendStable,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("create warmup plan: %w", err)
	}
	return plan, nil
}

// StartPlan activates a pending plan: week 1, the week-1 daily target, and a
// fresh start_date (creation time is not the ramp clock).
func (s *PlanService) StartPlan(ctx context.Context, id string) (*domain.WarmupPlan, error) {
	plan, err := s.plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.PlanPending {
		return nil, fmt.Errorf("%w: cannot start plan in %q", ErrInvalidTransition, plan.Status)
	}

	profile, err := StrategyFor(plan.Strategy)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expected := now.AddDate(0, 0, plan.TotalWeeks*7)
	plan.Status = domain.PlanActive
	plan.CurrentWeek = 1
	plan.DailyTarget = profile.ScheduleForWeek(1).DailyTarget
	plan.StartDate = &now
	plan.ExpectedCompletionDate = &expected
	plan.UpdatedAt = now

	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("start warmup plan: %w", err)
	}

	s.notify(ctx, plan, NotifyMilestone, "Warmup started",
		fmt.Sprintf("Warmup for %s started on the %s strategy (%d weeks).", plan.Domain, plan.Strategy, plan.TotalWeeks))
	return plan, nil
}

// PausePlan suspends an active plan, recording the reason. Resumable.
func (s *PlanService) PausePlan(ctx context.Context, id, reason string) (*domain.WarmupPlan, error) {
	plan, err := s.plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.CanTransition(domain.PlanPaused) {
		return nil, fmt.Errorf("%w: cannot pause plan in %q", ErrInvalidTransition, plan.Status)
	}

	plan.Status = domain.PlanPaused
	plan.PauseReason = reason
	plan.UpdatedAt = s.now()
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("pause warmup plan: %w", err)
	}

	s.notify(ctx, plan, NotifyPaused, "Warmup paused", reason)
	return plan, nil
}

// ResumePlan moves a paused plan back to active, clearing the pause reason.
func (s *PlanService) ResumePlan(ctx context.Context, id string) (*domain.WarmupPlan, error) {
	plan, err := s.plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.PlanPaused {
		return nil, fmt.Errorf("%w: cannot resume plan in %q", ErrInvalidTransition, plan.Status)
	}

	plan.Status = domain.PlanActive
	plan.PauseReason = ""
	plan.UpdatedAt = s.now()
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("resume warmup plan: %w", err)
	}

	s.notify(ctx, plan, NotifyMilestone, "Warmup resumed",
		fmt.Sprintf("Warmup for %s resumed at week %d.", plan.Domain, plan.CurrentWeek))
	return plan, nil
}

// CompletePlan finishes an active plan and stamps the completion date.
func (s *PlanService) CompletePlan(ctx context.Context, id string) (*domain.WarmupPlan, error) {
	plan, err := s.plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.CanTransition(domain.PlanCompleted) {
		return nil, fmt.Errorf("%w: cannot complete plan in %q", ErrInvalidTransition, plan.Status)
	}
	return s.completePlan(ctx, plan)
}

func (s *PlanService) completePlan(ctx context.Context, plan *domain.WarmupPlan) (*domain.WarmupPlan, error) {
	now := s.now()
	plan.Status = domain.PlanCompleted
	plan.ActualCompletionDate = &now
	plan.UpdatedAt = now
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("complete warmup plan: %w", err)
	}

	s.notify(ctx, plan, NotifyCompletion, "Warmup completed",
		fmt.Sprintf("Warmup for %s completed after %d weeks. Total sent: %d.", plan.Domain, plan.TotalWeeks, plan.TotalSent))
	return plan, nil
}

// FailPlan moves an active or paused plan to the terminal failed state.
func (s *PlanService) FailPlan(ctx context.Context, id, reason string) (*domain.WarmupPlan, error) {
	plan, err := s.plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.CanTransition(domain.PlanFailed) {
		return nil, fmt.Errorf("%w: cannot fail plan in %q", ErrInvalidTransition, plan.Status)
	}

	plan.Status = domain.PlanFailed
	plan.FailureReason = reason
	plan.UpdatedAt = s.now()
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("fail warmup plan: %w", err)
	}

	s.notify(ctx, plan, NotifyFailed, "Warmup failed", reason)
	return plan, nil
}

// ExpectedWeek computes which week a plan should be in from elapsed calendar
// time alone: min(floor(days/7)+1, totalWeeks). Returns totalWeeks+1 once the
// plan has outlived its schedule, signalling completion.
func ExpectedWeek(startDate, now time.Time, totalWeeks int) int {
	daysElapsed := int(now.Sub(startDate).Hours() / 24)
	if daysElapsed < 0 {
		daysElapsed = 0
	}
	w := daysElapsed/7 + 1
	if w > totalWeeks {
		return totalWeeks + 1
	}
	return w
}

// ProgressPlan advances an active plan's week from elapsed time. Idempotent:
// re-invoking on the same day neither re-advances nor re-notifies. Once the
// expected week passes total_weeks the plan completes instead.
func (s *PlanService) ProgressPlan(ctx context.Context, plan *domain.WarmupPlan) error {
	if plan.Status != domain.PlanActive || plan.StartDate == nil {
		return nil
	}

	expected := ExpectedWeek(*plan.StartDate, s.now(), plan.TotalWeeks)
	if expected > plan.TotalWeeks {
		_, err := s.completePlan(ctx, plan)
		return err
	}
	if expected <= plan.CurrentWeek {
		return nil
	}

	profile, err := StrategyFor(plan.Strategy)
	if err != nil {
		return err
	}

	plan.CurrentWeek = expected
	plan.DailyTarget = profile.ScheduleForWeek(expected).DailyTarget
	plan.ActualSentToday = 0
	plan.UpdatedAt = s.now()
	if err := s.plans.Update(ctx, plan); err != nil {
		return fmt.Errorf("advance warmup plan %s: %w", plan.ID, err)
	}
	if err := s.plans.ResetDailySent(ctx, plan.ID); err != nil {
		log.Printf("[PlanService] Failed to reset daily counter for plan %s: %v", plan.ID, err)
	}

	log.Printf("[PlanService] Plan %s advanced to week %d (daily target: %d)", plan.ID, expected, plan.DailyTarget)
	s.notify(ctx, plan, NotifyMilestone, fmt.Sprintf("Warmup week %d", expected),
		fmt.Sprintf("Warmup for %s reached week %d of %d. Daily target is now %d.", plan.Domain, expected, plan.TotalWeeks, plan.DailyTarget))
	return nil
}

// ProgressActivePlans runs week progression over every active plan.
func (s *PlanService) ProgressActivePlans(ctx context.Context) error {
	plans, err := s.plans.List(ctx, domain.PlanActive)
	if err != nil {
		return fmt.Errorf("list active plans: %w", err)
	}
	for i := range plans {
		if err := s.ProgressPlan(ctx, &plans[i]); err != nil {
			log.Printf("[PlanService] Week progression failed for plan %s: %v", plans[i].ID, err)
		}
	}
	return nil
}

// ApplyJobResults pushes a finished batch's totals into the plan's running
// metrics via atomic increments, rescoring, writing the daily activity row
// and running the auto-pause circuit breaker.
func (s *PlanService) ApplyJobResults(ctx context.Context, planID string, delta domain.JobCounters) (*domain.PlanMetrics, error) {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}

	totals, err := s.plans.IncrementCounters(ctx, planID, delta)
	if err != nil {
		return nil, fmt.Errorf("increment plan counters: %w", err)
	}

	m := *totals
	m.HealthScore = plan.Metrics.HealthScore // previous score, for the trend
	Score(&m, plan.Settings)
	if err := s.plans.UpdateScores(ctx, planID, m); err != nil {
		return nil, fmt.Errorf("update plan scores: %w", err)
	}

	now := s.now()
	activity := &domain.WarmupActivity{
		ID:              uuid.New().String(),
		WarmupPlanID:    planID,
		Date:            now.Truncate(24 * time.Hour),
		Week:            plan.CurrentWeek,
		Sent:            delta.Sent,
		Delivered:       delta.Delivered,
		Opened:          delta.Opened,
		Replied:         delta.Replied,
		Bounced:         delta.Bounced,
		Complaints:      delta.Complaints,
		HealthScore:     m.HealthScore,
		ReputationScore: m.ReputationScore,
		Trend:           m.Trend,
		CreatedAt:       now,
	}
	if err := s.activities.Insert(ctx, activity); err != nil {
		// Best-effort side write; the metrics update already landed.
		log.Printf("[PlanService] Failed to record activity for plan %s: %v", planID, err)
	}

	if plan.Settings.AutoPauseEnabled {
		s.checkAutoPause(ctx, plan, m)
	}
	return &m, nil
}

// checkAutoPause is the admission-control circuit breaker: it halts the whole
// plan when quality degrades past the hard multipliers, requiring an explicit
// external resume.
func (s *PlanService) checkAutoPause(ctx context.Context, plan *domain.WarmupPlan, m domain.PlanMetrics) {
	var reason string
	switch {
	case plan.Settings.MaxBounceRate > 0 && m.BounceRate > autoPauseBounceFactor*plan.Settings.MaxBounceRate:
		reason = fmt.Sprintf("bounce rate %.2f%% exceeds %.2f%% threshold",
			m.BounceRate*100, autoPauseBounceFactor*plan.Settings.MaxBounceRate*100)
	case plan.Settings.MaxSpamRate > 0 && m.SpamRate > autoPauseSpamFactor*plan.Settings.MaxSpamRate:
		reason = fmt.Sprintf("spam complaint rate %.3f%% exceeds %.3f%% threshold",
			m.SpamRate*100, autoPauseSpamFactor*plan.Settings.MaxSpamRate*100)
	case m.HealthScore < autoPauseMinHealth:
		reason = fmt.Sprintf("health score %.0f below %.0f", m.HealthScore, autoPauseMinHealth)
	default:
		return
	}

	log.Printf("[PlanService] AUTO-PAUSE plan %s (week %d): %s", plan.ID, plan.CurrentWeek, reason)
	if _, err := s.PausePlan(ctx, plan.ID, "Auto-paused: "+reason); err != nil {
		log.Printf("[PlanService] Auto-pause failed for plan %s: %v", plan.ID, err)
	}
}

func (s *PlanService) notify(ctx context.Context, plan *domain.WarmupPlan, t NotificationType, title, message string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, plan.UserID, plan.AccountID, Notification{
		Type:    t,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"plan_id":      plan.ID,
			"domain":       plan.Domain,
			"current_week": plan.CurrentWeek,
		},
	})
	if err != nil {
		log.Printf("[PlanService] Notification failed (%s): %v", t, err)
	}
}

func validateSettings(s domain.PlanSettings) error {
	if s.MaxBounceRate <= 0 || s.MaxBounceRate > 0.5 {
		return fmt.Errorf("%w: max_bounce_rate must be in (0, 0.5]", ErrInvalidSettings)
	}
	if s.MaxSpamRate <= 0 || s.MaxSpamRate > 0.1 {
		return fmt.Errorf("%w: max_spam_rate must be in (0, 0.1]", ErrInvalidSettings)
	}
	if s.TargetOpenRate < 0 || s.TargetOpenRate > 1 {
		return fmt.Errorf("%w: target_open_rate must be in [0, 1]", ErrInvalidSettings)
	}
	if s.TargetReplyRate < 0 || s.TargetReplyRate > 1 {
		return fmt.Errorf("%w: target_reply_rate must be in [0, 1]", ErrInvalidSettings)
	}
	return nil
}
