// Package worker contains the periodic invoker that drives the warmup
// engine's independent entry points.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmup-engine/internal/pkg/distlock"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// Default cadences for the four entry points. Scheduling and monitoring are
// cheap sweeps; execution ticks often so a day's sends spread out.
const (
	DefaultScheduleInterval = 1 * time.Hour
	DefaultExecuteInterval  = 5 * time.Minute
	DefaultSweepInterval    = 5 * time.Minute
	DefaultMonitorInterval  = 15 * time.Minute

	tickTimeout = 10 * time.Minute

	// The execute tick must cover the largest daily target at the slowest
	// pacing plus the per-send deadline (200 emails at 3s pacing and a 30s
	// send timeout is 110 minutes). The monitor's stale-job rule is the
	// backstop for truly abandoned runs.
	executeTickTimeout = 2 * time.Hour
)

// WarmupRunner owns the four independent periodic loops of the warmup
// engine: daily job scheduling (with week progression), job execution,
// interaction-simulation sweeps, and health monitoring. It is explicitly
// constructed and its lifecycle is owned by the process entry point; there
// is no package-level instance.
type WarmupRunner struct {
	db          *sql.DB
	redisClient *redis.Client // optional; nil falls back to PG advisory locks

	planSvc   *warmup.PlanService
	generator *warmup.Generator
	executor  *warmup.Executor
	simulator *warmup.Simulator
	monitor   *warmup.Monitor

	ScheduleInterval time.Duration
	ExecuteInterval  time.Duration
	SweepInterval    time.Duration
	MonitorInterval  time.Duration

	workerID string

	// Stats
	jobsScheduled       int64
	jobsExecuted        int64
	interactionsApplied int64
	errors              int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewWarmupRunner creates a runner over fully constructed warmup services.
func NewWarmupRunner(db *sql.DB, redisClient *redis.Client,
	planSvc *warmup.PlanService, generator *warmup.Generator, executor *warmup.Executor,
	simulator *warmup.Simulator, monitor *warmup.Monitor) *WarmupRunner {
	hostname, _ := os.Hostname()
	return &WarmupRunner{
		db:               db,
		redisClient:      redisClient,
		planSvc:          planSvc,
		generator:        generator,
		executor:         executor,
		simulator:        simulator,
		monitor:          monitor,
		ScheduleInterval: DefaultScheduleInterval,
		ExecuteInterval:  DefaultExecuteInterval,
		SweepInterval:    DefaultSweepInterval,
		MonitorInterval:  DefaultMonitorInterval,
		workerID:         fmt.Sprintf("warmup-%s-%d", hostname, time.Now().UnixNano()%10000),
	}
}

// Start launches the four loops.
func (r *WarmupRunner) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("warmup runner already running")
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.mu.Unlock()

	log.Printf("[WarmupRunner] Starting %s (schedule %v, execute %v, sweep %v, monitor %v)",
		r.workerID, r.ScheduleInterval, r.ExecuteInterval, r.SweepInterval, r.MonitorInterval)

	r.loop(r.ScheduleInterval, tickTimeout, r.scheduleTick)
	r.loop(r.ExecuteInterval, executeTickTimeout, r.executeTick)
	r.loop(r.SweepInterval, tickTimeout, r.sweepTick)
	r.loop(r.MonitorInterval, tickTimeout, r.monitorTick)
	return nil
}

// Stop halts all loops and waits for in-flight ticks to finish.
func (r *WarmupRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	log.Printf("[WarmupRunner] Stopped. Scheduled: %d jobs, Executed: %d jobs, Interactions: %d, Errors: %d",
		atomic.LoadInt64(&r.jobsScheduled), atomic.LoadInt64(&r.jobsExecuted),
		atomic.LoadInt64(&r.interactionsApplied), atomic.LoadInt64(&r.errors))
}

func (r *WarmupRunner) loop(interval, timeout time.Duration, tick func(context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(r.ctx, timeout)
				tick(ctx)
				cancel()
			}
		}
	}()
}

// scheduleTick advances plan weeks, then generates the day's jobs. A
// distributed lock keeps concurrent runner instances from overlapping the
// generation sweep; the DB uniqueness constraint is the last line of
// defense either way.
func (r *WarmupRunner) scheduleTick(ctx context.Context) {
	if err := r.planSvc.ProgressActivePlans(ctx); err != nil {
		log.Printf("[WarmupRunner] Week progression sweep failed: %v", err)
		atomic.AddInt64(&r.errors, 1)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	lock := distlock.New(r.redisClient, r.db, "warmup:schedule:"+today.Format("2006-01-02"), 5*time.Minute)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Printf("[WarmupRunner] Schedule lock error: %v", err)
		atomic.AddInt64(&r.errors, 1)
		return
	}
	if !acquired {
		return // another instance is scheduling this date
	}
	defer lock.Release(ctx)

	n, err := r.generator.ScheduleDailyJobs(ctx, today)
	if err != nil {
		log.Printf("[WarmupRunner] Job scheduling failed: %v", err)
		atomic.AddInt64(&r.errors, 1)
		return
	}
	if n > 0 {
		log.Printf("[WarmupRunner] Scheduled %d warmup jobs for %s", n, today.Format("2006-01-02"))
	}
	atomic.AddInt64(&r.jobsScheduled, int64(n))
}

func (r *WarmupRunner) executeTick(ctx context.Context) {
	n, err := r.executor.ExecuteDueJobs(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("[WarmupRunner] Job execution sweep failed: %v", err)
		atomic.AddInt64(&r.errors, 1)
		return
	}
	atomic.AddInt64(&r.jobsExecuted, int64(n))
}

func (r *WarmupRunner) sweepTick(ctx context.Context) {
	if r.simulator == nil {
		return
	}
	n, err := r.simulator.Sweep(ctx)
	if err != nil {
		log.Printf("[WarmupRunner] Simulation sweep failed: %v", err)
		atomic.AddInt64(&r.errors, 1)
	}
	atomic.AddInt64(&r.interactionsApplied, int64(n))
}

func (r *WarmupRunner) monitorTick(ctx context.Context) {
	if err := r.monitor.Run(ctx); err != nil {
		log.Printf("[WarmupRunner] Health monitor failed: %v", err)
		atomic.AddInt64(&r.errors, 1)
	}
}
