package worker

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/repository/memory"
	"github.com/ignite/warmup-engine/internal/warmup"
)

type noSender struct{}

func (noSender) Send(context.Context, warmup.SendRequest) (warmup.SendResult, error) {
	return warmup.SendResult{Success: true, TrackingID: "test"}, nil
}

func newTestRunner(t *testing.T) (*WarmupRunner, *memory.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := memory.NewStore()
	planSvc := warmup.NewPlanService(store.Plans(), store.Activities(), nil)
	generator := warmup.NewGenerator(store.Plans(), store.Jobs(), store.Emails(), store.Recipients())
	generator.SetRand(rand.New(rand.NewSource(1)))
	simulator := warmup.NewSimulator(client, store.Jobs(), store.Emails())
	executor := warmup.NewExecutor(store.Plans(), store.Jobs(), store.Emails(),
		warmup.UnlimitedQuota{}, noSender{}, simulator, planSvc)
	executor.SetSleep(func(time.Duration) {})
	monitor := warmup.NewMonitor(store.Plans(), store.Jobs(), planSvc)

	return NewWarmupRunner(nil, client, planSvc, generator, executor, simulator, monitor), store
}

func seedActivePlan(t *testing.T, store *memory.Store) *domain.WarmupPlan {
	t.Helper()
	ctx := context.Background()
	svc := warmup.NewPlanService(store.Plans(), store.Activities(), nil)

	var recipients []domain.WarmupRecipient
	for _, typ := range []domain.RecipientType{
		domain.RecipientInternal, domain.RecipientPartner,
		domain.RecipientCustomer, domain.RecipientProspect,
	} {
		for i := 0; i < 30; i++ {
			recipients = append(recipients, domain.WarmupRecipient{
				ID:    fmt.Sprintf("%s-%d", typ, i),
				Email: fmt.Sprintf("%s%d@seed.example.com", typ, i),
				Type:  typ, EngagementLikelihood: 0.6, Active: true,
			})
		}
	}
	store.SeedRecipients("acct-1", recipients)

	plan, err := svc.CreatePlan(ctx, warmup.CreatePlanInput{
		AccountID: "acct-1", Domain: "example.com", Strategy: domain.StrategyModerate,
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plan, err = svc.StartPlan(ctx, plan.ID); err != nil {
		t.Fatalf("StartPlan: %v", err)
	}
	return plan
}

func TestScheduleTickGeneratesJobsOnce(t *testing.T) {
	runner, store := newTestRunner(t)
	plan := seedActivePlan(t, store)
	ctx := context.Background()

	runner.scheduleTick(ctx)
	if n := atomic.LoadInt64(&runner.jobsScheduled); n != 1 {
		t.Fatalf("jobsScheduled = %d, want 1", n)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	job, err := store.Jobs().GetByPlanAndDate(ctx, plan.ID, today)
	if err != nil {
		t.Fatalf("no job generated for today: %v", err)
	}
	if job.TargetEmails != plan.DailyTarget {
		t.Errorf("job target = %d, want %d", job.TargetEmails, plan.DailyTarget)
	}

	// The date lock was released, so a repeat tick runs but generates nothing.
	runner.scheduleTick(ctx)
	if n := atomic.LoadInt64(&runner.jobsScheduled); n != 1 {
		t.Errorf("jobsScheduled after repeat tick = %d, want still 1", n)
	}
	if n := atomic.LoadInt64(&runner.errors); n != 0 {
		t.Errorf("errors = %d, want 0", n)
	}
}

func TestExecuteTickRunsDueJobs(t *testing.T) {
	runner, store := newTestRunner(t)
	seedActivePlan(t, store)
	ctx := context.Background()

	runner.scheduleTick(ctx)
	runner.executeTick(ctx)

	if n := atomic.LoadInt64(&runner.jobsExecuted); n != 1 {
		t.Fatalf("jobsExecuted = %d, want 1", n)
	}
	var delivered int
	for _, e := range store.AllEmails() {
		if e.Status == domain.EmailDelivered {
			delivered++
		}
	}
	if delivered == 0 {
		t.Error("no emails delivered by the execute tick")
	}
}

func TestSweepTickWithoutSimulator(t *testing.T) {
	runner, _ := newTestRunner(t)
	runner.simulator = nil

	runner.sweepTick(context.Background()) // must not panic
	if n := atomic.LoadInt64(&runner.errors); n != 0 {
		t.Errorf("errors = %d, want 0", n)
	}
}

func TestMonitorTick(t *testing.T) {
	runner, store := newTestRunner(t)
	plan := seedActivePlan(t, store)
	ctx := context.Background()

	// An abandoned pending job from yesterday gets reaped by the tick.
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	if _, err := store.Jobs().Create(ctx, &domain.WarmupJob{
		ID: "orphan", WarmupPlanID: plan.ID,
		ScheduledDate: yesterday, Status: domain.JobPending,
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	runner.monitorTick(ctx)

	job, _ := store.Jobs().Get(ctx, "orphan")
	if job.Status != domain.JobFailed {
		t.Errorf("job status = %s, want failed", job.Status)
	}
}

func TestExecuteTickTimeoutCoversLargestDay(t *testing.T) {
	// The biggest steady-state day must finish inside one execute tick even
	// at the slowest pacing with every send hitting its deadline. Otherwise
	// the tail of the day's volume is cut off mid-batch.
	maxTarget := 0
	for _, p := range warmup.Strategies() {
		if d := p.MaxDailyTarget(); d > maxTarget {
			maxTarget = d
		}
	}
	if maxTarget == 0 {
		t.Fatal("no strategy profiles found")
	}

	worstCase := time.Duration(maxTarget) * (3*time.Second + 30*time.Second)
	if executeTickTimeout < worstCase {
		t.Errorf("execute tick timeout %v cannot cover a %d-email day (worst case %v)",
			executeTickTimeout, maxTarget, worstCase)
	}
}

func TestRunnerStartStop(t *testing.T) {
	runner, _ := newTestRunner(t)

	if err := runner.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := runner.Start(); err == nil {
		t.Error("second Start() succeeded, want error")
	}

	runner.Stop()
	runner.Stop() // idempotent
}
