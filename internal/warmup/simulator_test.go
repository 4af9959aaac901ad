package warmup_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/repository/memory"
	"github.com/ignite/warmup-engine/internal/warmup"
)

type simulatorFixture struct {
	sim   *warmup.Simulator
	store *memory.Store
	mr    *miniredis.Miniredis
	now   time.Time
}

func newSimulatorFixture(t *testing.T) *simulatorFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := memory.NewStore()
	sim := warmup.NewSimulator(client, store.Jobs(), store.Emails())

	f := &simulatorFixture{sim: sim, store: store, mr: mr,
		now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	sim.SetClock(func() time.Time { return f.now })
	return f
}

// seedDelivered stores a job plus one delivered email flagged for simulation.
func (f *simulatorFixture) seedDelivered(t *testing.T, emailID string, interaction domain.InteractionType, delayHours float64) *domain.WarmupEmail {
	t.Helper()
	ctx := context.Background()
	jobID := "job-" + emailID
	if _, err := f.store.Jobs().Create(ctx, &domain.WarmupJob{
		ID: jobID, WarmupPlanID: "plan-" + emailID,
		ScheduledDate: f.now, Status: domain.JobRunning,
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	email := domain.WarmupEmail{
		ID:                   emailID,
		WarmupJobID:          jobID,
		RecipientEmail:       emailID + "@seed.example.com",
		Status:               domain.EmailDelivered,
		InteractionSimulated: true,
		SimulationType:       interaction,
		SimulationDelayHours: delayHours,
		ScheduledAt:          f.now,
	}
	if err := f.store.Emails().CreateBatch(ctx, []domain.WarmupEmail{email}); err != nil {
		t.Fatalf("seed email: %v", err)
	}
	return &email
}

func TestScheduleStoresRecordWithTTL(t *testing.T) {
	f := newSimulatorFixture(t)
	email := f.seedDelivered(t, "e1", domain.InteractionOpen, 3)

	if err := f.sim.Schedule(context.Background(), email); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	raw, err := f.mr.Get("warmup:sim:e1")
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	var rec struct {
		EmailID     string    `json:"email_id"`
		JobID       string    `json:"job_id"`
		Interaction string    `json:"interaction_type"`
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.EmailID != "e1" || rec.JobID != "job-e1" || rec.Interaction != string(domain.InteractionOpen) {
		t.Errorf("record = %+v", rec)
	}
	if want := f.now.Add(3 * time.Hour); !rec.ScheduledAt.Equal(want) {
		t.Errorf("scheduled_at = %s, want %s", rec.ScheduledAt, want)
	}
	if ttl := f.mr.TTL("warmup:sim:e1"); ttl != 24*time.Hour {
		t.Errorf("ttl = %s, want 24h", ttl)
	}
}

func TestScheduleSkipsUnflaggedEmail(t *testing.T) {
	f := newSimulatorFixture(t)
	email := f.seedDelivered(t, "e1", domain.InteractionOpen, 2)
	email.InteractionSimulated = false

	if err := f.sim.Schedule(context.Background(), email); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if f.mr.Exists("warmup:sim:e1") {
		t.Error("record stored for an unflagged email")
	}
}

func TestSweepAppliesDueInteractions(t *testing.T) {
	f := newSimulatorFixture(t)
	ctx := context.Background()

	open := f.seedDelivered(t, "open-1", domain.InteractionOpen, 2)
	reply := f.seedDelivered(t, "reply-1", domain.InteractionReply, 4)
	click := f.seedDelivered(t, "click-1", domain.InteractionClick, 1)
	future := f.seedDelivered(t, "future-1", domain.InteractionOpen, 8)
	for _, e := range []*domain.WarmupEmail{open, reply, click, future} {
		if err := f.sim.Schedule(ctx, e); err != nil {
			t.Fatalf("Schedule %s: %v", e.ID, err)
		}
	}

	// Advance past the first three delays but not the fourth.
	f.now = f.now.Add(5 * time.Hour)

	applied, err := f.sim.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if applied != 3 {
		t.Fatalf("applied = %d, want 3", applied)
	}

	if e, _ := f.store.Emails().Get(ctx, "open-1"); e.Status != domain.EmailOpened {
		t.Errorf("open-1 status = %s, want opened", e.Status)
	}
	if e, _ := f.store.Emails().Get(ctx, "reply-1"); e.Status != domain.EmailReplied {
		t.Errorf("reply-1 status = %s, want replied", e.Status)
	}
	if clicks := f.store.Clicks("click-1"); len(clicks) != 1 {
		t.Errorf("click-1 clicks = %d, want 1", len(clicks))
	}

	if j, _ := f.store.Jobs().Get(ctx, "job-open-1"); j.Counters.Opened != 1 {
		t.Errorf("job-open-1 opened = %d, want 1", j.Counters.Opened)
	}
	if j, _ := f.store.Jobs().Get(ctx, "job-reply-1"); j.Counters.Replied != 1 {
		t.Errorf("job-reply-1 replied = %d, want 1", j.Counters.Replied)
	}

	// Applied records are claimed; not-yet-due records survive.
	if f.mr.Exists("warmup:sim:open-1") {
		t.Error("applied record open-1 still present")
	}
	if !f.mr.Exists("warmup:sim:future-1") {
		t.Error("future record future-1 was removed")
	}
	if e, _ := f.store.Emails().Get(ctx, "future-1"); e.Status != domain.EmailDelivered {
		t.Errorf("future-1 status = %s, want still delivered", e.Status)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newSimulatorFixture(t)
	ctx := context.Background()

	email := f.seedDelivered(t, "e1", domain.InteractionOpen, 1)
	if err := f.sim.Schedule(ctx, email); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	f.now = f.now.Add(2 * time.Hour)

	if applied, _ := f.sim.Sweep(ctx); applied != 1 {
		t.Fatalf("first sweep applied %d, want 1", applied)
	}
	if applied, _ := f.sim.Sweep(ctx); applied != 0 {
		t.Fatalf("second sweep applied %d, want 0", applied)
	}

	j, _ := f.store.Jobs().Get(ctx, "job-e1")
	if j.Counters.Opened != 1 {
		t.Errorf("opened = %d after double sweep, want 1", j.Counters.Opened)
	}
}

func TestSweepSkipsBouncedEmail(t *testing.T) {
	f := newSimulatorFixture(t)
	ctx := context.Background()

	email := f.seedDelivered(t, "e1", domain.InteractionOpen, 1)
	if err := f.sim.Schedule(ctx, email); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	// The email bounced after the record was scheduled.
	if err := f.store.Emails().UpdateStatus(ctx, "e1", domain.EmailBounced, nil, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	f.now = f.now.Add(2 * time.Hour)

	if applied, _ := f.sim.Sweep(ctx); applied != 1 {
		t.Fatalf("sweep should still consume the record")
	}
	if e, _ := f.store.Emails().Get(ctx, "e1"); e.Status != domain.EmailBounced {
		t.Errorf("bounced email was overwritten to %s", e.Status)
	}
	j, _ := f.store.Jobs().Get(ctx, "job-e1")
	if j.Counters.Opened != 0 {
		t.Errorf("opened = %d for a bounced email, want 0", j.Counters.Opened)
	}
}

func TestSweepDropsMalformedRecord(t *testing.T) {
	f := newSimulatorFixture(t)
	f.mr.Set("warmup:sim:bad", "{not json")

	applied, err := f.sim.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if applied != 0 {
		t.Errorf("applied = %d, want 0", applied)
	}
	if f.mr.Exists("warmup:sim:bad") {
		t.Error("malformed record not deleted")
	}
}
