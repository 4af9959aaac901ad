package warmup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/repository/memory"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// recordingNotifier captures emitted notifications for assertions.
type recordingNotifier struct {
	notes []warmup.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, _, _ string, note warmup.Notification) error {
	n.notes = append(n.notes, note)
	return nil
}

func (n *recordingNotifier) lastType() warmup.NotificationType {
	if len(n.notes) == 0 {
		return ""
	}
	return n.notes[len(n.notes)-1].Type
}

func newPlanService(t *testing.T) (*warmup.PlanService, *memory.Store, *recordingNotifier, *time.Time) {
	t.Helper()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	svc := warmup.NewPlanService(store.Plans(), store.Activities(), notifier)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := &now
	svc.SetClock(func() time.Time { return *clock })
	return svc, store, notifier, clock
}

func mustCreateActive(t *testing.T, svc *warmup.PlanService, strategy domain.WarmupStrategy) *domain.WarmupPlan {
	t.Helper()
	plan, err := svc.CreatePlan(context.Background(), warmup.CreatePlanInput{
		AccountID: "acct-1", UserID: "user-1", Domain: "example.com", Strategy: strategy,
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	plan, err = svc.StartPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("StartPlan: %v", err)
	}
	return plan
}

func TestCreatePlanDefaults(t *testing.T) {
	svc, store, _, _ := newPlanService(t)

	plan, err := svc.CreatePlan(context.Background(), warmup.CreatePlanInput{
		AccountID: "acct-1", Domain: "example.com", Strategy: domain.StrategyModerate,
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	if plan.Status != domain.PlanPending {
		t.Errorf("Status = %s, want pending", plan.Status)
	}
	if plan.TotalWeeks != 6 {
		t.Errorf("TotalWeeks = %d, want 6", plan.TotalWeeks)
	}
	if plan.DailyTarget != 10 {
		t.Errorf("DailyTarget = %d, want week-1 target 10", plan.DailyTarget)
	}
	if plan.Metrics.HealthScore != 100 || plan.Metrics.ReputationScore != 50 {
		t.Errorf("initial scores = %f/%f, want 100/50", plan.Metrics.HealthScore, plan.Metrics.ReputationScore)
	}
	if plan.Settings.MaxBounceRate != 0.05 {
		t.Errorf("MaxBounceRate = %f, want moderate default 0.05", plan.Settings.MaxBounceRate)
	}

	stored, err := store.Plans().Get(context.Background(), plan.ID)
	if err != nil || stored.Domain != "example.com" {
		t.Errorf("stored plan = %+v, err %v", stored, err)
	}
}

func TestCreatePlanValidation(t *testing.T) {
	svc, store, _, _ := newPlanService(t)
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, warmup.CreatePlanInput{
		AccountID: "acct-1", Domain: "example.com", Strategy: "reckless",
	})
	if !errors.Is(err, warmup.ErrInvalidStrategy) {
		t.Errorf("unknown strategy error = %v, want ErrInvalidStrategy", err)
	}

	_, err = svc.CreatePlan(ctx, warmup.CreatePlanInput{
		AccountID: "acct-1", Domain: "example.com", Strategy: domain.StrategyModerate,
		Settings: &domain.PlanSettings{MaxBounceRate: 0.9, MaxSpamRate: 0.001},
	})
	if !errors.Is(err, warmup.ErrInvalidSettings) {
		t.Errorf("bad settings error = %v, want ErrInvalidSettings", err)
	}

	plans, _ := store.Plans().List(ctx, "")
	if len(plans) != 0 {
		t.Errorf("plans persisted on validation failure: %d", len(plans))
	}
}

func TestPlanLifecycleTransitions(t *testing.T) {
	svc, _, notifier, _ := newPlanService(t)
	ctx := context.Background()
	plan := mustCreateActive(t, svc, domain.StrategyModerate)

	if plan.Status != domain.PlanActive || plan.CurrentWeek != 1 {
		t.Fatalf("after start: status %s week %d", plan.Status, plan.CurrentWeek)
	}
	if notifier.lastType() != warmup.NotifyMilestone {
		t.Errorf("start notification = %s, want milestone", notifier.lastType())
	}

	// Starting twice is rejected.
	if _, err := svc.StartPlan(ctx, plan.ID); !errors.Is(err, warmup.ErrInvalidTransition) {
		t.Errorf("double start error = %v, want ErrInvalidTransition", err)
	}

	paused, err := svc.PausePlan(ctx, plan.ID, "manual pause")
	if err != nil {
		t.Fatalf("PausePlan: %v", err)
	}
	if paused.Status != domain.PlanPaused || paused.PauseReason != "manual pause" {
		t.Errorf("paused plan = %s %q", paused.Status, paused.PauseReason)
	}

	resumed, err := svc.ResumePlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("ResumePlan: %v", err)
	}
	if resumed.Status != domain.PlanActive || resumed.PauseReason != "" {
		t.Errorf("resumed plan = %s %q", resumed.Status, resumed.PauseReason)
	}

	completed, err := svc.CompletePlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("CompletePlan: %v", err)
	}
	if completed.Status != domain.PlanCompleted || completed.ActualCompletionDate == nil {
		t.Errorf("completed plan = %s, completion date %v", completed.Status, completed.ActualCompletionDate)
	}

	// Terminal states reject further transitions.
	if _, err := svc.PausePlan(ctx, plan.ID, "too late"); !errors.Is(err, warmup.ErrInvalidTransition) {
		t.Errorf("pause after completion error = %v, want ErrInvalidTransition", err)
	}
}

func TestExpectedWeek(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		days       int
		totalWeeks int
		want       int
	}{
		{0, 4, 1},
		{6, 4, 1},
		{7, 4, 2},
		{13, 4, 2},
		{14, 4, 3},
		{27, 4, 4},
		{28, 4, 5}, // past the final week: completion signal
		{100, 4, 5},
	}
	for _, tt := range tests {
		now := start.AddDate(0, 0, tt.days)
		if got := warmup.ExpectedWeek(start, now, tt.totalWeeks); got != tt.want {
			t.Errorf("ExpectedWeek(+%dd, %d weeks) = %d, want %d", tt.days, tt.totalWeeks, got, tt.want)
		}
	}

	// A clock behind the start date clamps to week 1.
	if got := warmup.ExpectedWeek(start, start.AddDate(0, 0, -3), 4); got != 1 {
		t.Errorf("ExpectedWeek(past start) = %d, want 1", got)
	}
}

func TestProgressPlanAdvancesWeek(t *testing.T) {
	svc, store, notifier, clock := newPlanService(t)
	ctx := context.Background()
	plan := mustCreateActive(t, svc, domain.StrategyModerate)

	// Eight days in: week 2, target 25.
	*clock = clock.AddDate(0, 0, 8)
	if err := svc.ProgressActivePlans(ctx); err != nil {
		t.Fatalf("ProgressActivePlans: %v", err)
	}

	got, _ := store.Plans().Get(ctx, plan.ID)
	if got.CurrentWeek != 2 || got.DailyTarget != 25 {
		t.Fatalf("after 8 days: week %d target %d, want 2/25", got.CurrentWeek, got.DailyTarget)
	}
	if notifier.lastType() != warmup.NotifyMilestone {
		t.Errorf("progression notification = %s, want milestone", notifier.lastType())
	}

	// Re-running the sweep the same day must not advance or re-notify.
	before := len(notifier.notes)
	if err := svc.ProgressActivePlans(ctx); err != nil {
		t.Fatalf("ProgressActivePlans (repeat): %v", err)
	}
	got, _ = store.Plans().Get(ctx, plan.ID)
	if got.CurrentWeek != 2 {
		t.Errorf("repeat sweep advanced week to %d", got.CurrentWeek)
	}
	if len(notifier.notes) != before {
		t.Errorf("repeat sweep re-notified: %d -> %d", before, len(notifier.notes))
	}
}

func TestProgressPlanCompletesAfterFinalWeek(t *testing.T) {
	svc, store, notifier, clock := newPlanService(t)
	ctx := context.Background()
	plan := mustCreateActive(t, svc, domain.StrategyAggressive) // 4 weeks

	*clock = clock.AddDate(0, 0, 4*7)
	if err := svc.ProgressActivePlans(ctx); err != nil {
		t.Fatalf("ProgressActivePlans: %v", err)
	}

	got, _ := store.Plans().Get(ctx, plan.ID)
	if got.Status != domain.PlanCompleted {
		t.Errorf("status after full ramp = %s, want completed", got.Status)
	}
	if notifier.lastType() != warmup.NotifyCompletion {
		t.Errorf("completion notification = %s, want completion", notifier.lastType())
	}
}

func TestApplyJobResultsAccumulatesAndScores(t *testing.T) {
	svc, store, _, _ := newPlanService(t)
	ctx := context.Background()
	plan := mustCreateActive(t, svc, domain.StrategyModerate)

	m, err := svc.ApplyJobResults(ctx, plan.ID, domain.JobCounters{
		Sent: 10, Delivered: 10, Opened: 3, Replied: 1,
	})
	if err != nil {
		t.Fatalf("ApplyJobResults: %v", err)
	}
	if m.Sent != 10 || m.Delivered != 10 {
		t.Errorf("totals after first job = %d/%d, want 10/10", m.Sent, m.Delivered)
	}
	if m.HealthScore < 99 {
		t.Errorf("HealthScore on clean batch = %f, want ~100", m.HealthScore)
	}

	// Second batch accumulates onto the first.
	m, err = svc.ApplyJobResults(ctx, plan.ID, domain.JobCounters{Sent: 15, Delivered: 14, Bounced: 1})
	if err != nil {
		t.Fatalf("ApplyJobResults (second): %v", err)
	}
	if m.Sent != 25 || m.Delivered != 24 || m.Bounced != 1 {
		t.Errorf("totals after second job = %+v", m)
	}

	if rows := store.ActivityRows(); len(rows) != 2 {
		t.Errorf("activity rows = %d, want 2", len(rows))
	}
}

func TestApplyJobResultsAutoPause(t *testing.T) {
	svc, store, notifier, _ := newPlanService(t)
	ctx := context.Background()
	plan := mustCreateActive(t, svc, domain.StrategyModerate) // max bounce 0.05

	// 8% bounce rate is past 1.5x the 5% threshold.
	_, err := svc.ApplyJobResults(ctx, plan.ID, domain.JobCounters{
		Sent: 100, Delivered: 92, Bounced: 8,
	})
	if err != nil {
		t.Fatalf("ApplyJobResults: %v", err)
	}

	got, _ := store.Plans().Get(ctx, plan.ID)
	if got.Status != domain.PlanPaused {
		t.Fatalf("status after bounce spike = %s, want paused", got.Status)
	}
	if got.PauseReason == "" {
		t.Error("auto-pause left no reason")
	}
	if notifier.lastType() != warmup.NotifyPaused {
		t.Errorf("auto-pause notification = %s, want paused", notifier.lastType())
	}
}

func TestAutoPauseDisabled(t *testing.T) {
	svc, store, _, _ := newPlanService(t)
	ctx := context.Background()

	settings := domain.PlanSettings{
		MaxBounceRate: 0.05, MaxSpamRate: 0.002,
		TargetOpenRate: 0.22, TargetReplyRate: 0.04,
		AutoPauseEnabled: false,
	}
	plan, err := svc.CreatePlan(ctx, warmup.CreatePlanInput{
		AccountID: "acct-1", Domain: "example.com",
		Strategy: domain.StrategyModerate, Settings: &settings,
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if _, err := svc.StartPlan(ctx, plan.ID); err != nil {
		t.Fatalf("StartPlan: %v", err)
	}

	if _, err := svc.ApplyJobResults(ctx, plan.ID, domain.JobCounters{Sent: 100, Delivered: 80, Bounced: 20}); err != nil {
		t.Fatalf("ApplyJobResults: %v", err)
	}

	got, _ := store.Plans().Get(ctx, plan.ID)
	if got.Status != domain.PlanActive {
		t.Errorf("status with auto-pause off = %s, want active", got.Status)
	}
}
