package warmup_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmup-engine/internal/warmup"
)

func newQuotaFixture(t *testing.T, hourly, daily int) (*warmup.RedisQuota, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := warmup.NewRedisQuota(client, hourly, daily)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	q.SetClock(func() time.Time { return now })
	return q, &now
}

func TestQuotaFreshWindows(t *testing.T) {
	q, _ := newQuotaFixture(t, 100, 500)
	status, err := q.CheckQuota(context.Background(), "acct-1", "example.com")
	if err != nil {
		t.Fatalf("CheckQuota: %v", err)
	}
	if !status.Available {
		t.Error("fresh quota not available")
	}
	if status.HourlyRemaining != 100 || status.DailyRemaining != 500 {
		t.Errorf("remaining = %d hourly / %d daily, want 100/500", status.HourlyRemaining, status.DailyRemaining)
	}
}

func TestQuotaRecordConsumes(t *testing.T) {
	q, _ := newQuotaFixture(t, 100, 500)
	ctx := context.Background()

	ok, err := q.Record(ctx, "acct-1", "example.com", 30)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !ok {
		t.Fatal("record within limits rejected")
	}

	status, err := q.CheckQuota(ctx, "acct-1", "example.com")
	if err != nil {
		t.Fatalf("CheckQuota: %v", err)
	}
	if status.HourlyRemaining != 70 || status.DailyRemaining != 470 {
		t.Errorf("remaining = %d hourly / %d daily, want 70/470", status.HourlyRemaining, status.DailyRemaining)
	}
}

func TestQuotaRecordRejectsWithoutConsuming(t *testing.T) {
	q, _ := newQuotaFixture(t, 10, 500)
	ctx := context.Background()

	if ok, _ := q.Record(ctx, "acct-1", "example.com", 8); !ok {
		t.Fatal("first record rejected")
	}
	// 8 + 5 breaches the hourly window; nothing must be consumed.
	if ok, _ := q.Record(ctx, "acct-1", "example.com", 5); ok {
		t.Fatal("over-limit record accepted")
	}
	status, _ := q.CheckQuota(ctx, "acct-1", "example.com")
	if status.HourlyRemaining != 2 {
		t.Errorf("hourly remaining = %d after rejected record, want 2", status.HourlyRemaining)
	}
	// A smaller batch still fits.
	if ok, _ := q.Record(ctx, "acct-1", "example.com", 2); !ok {
		t.Error("record that fits the remainder rejected")
	}
}

func TestQuotaDailyWindowOutlivesHourly(t *testing.T) {
	q, now := newQuotaFixture(t, 10, 15)
	ctx := context.Background()

	if ok, _ := q.Record(ctx, "acct-1", "example.com", 10); !ok {
		t.Fatal("first hour record rejected")
	}
	if ok, _ := q.Record(ctx, "acct-1", "example.com", 1); ok {
		t.Fatal("record accepted with hourly window exhausted")
	}

	// Next hour: the hourly window resets, the daily one carries over.
	*now = now.Add(time.Hour)
	if ok, _ := q.Record(ctx, "acct-1", "example.com", 5); !ok {
		t.Fatal("record rejected after hourly reset")
	}
	if ok, _ := q.Record(ctx, "acct-1", "example.com", 1); ok {
		t.Fatal("record accepted with daily window exhausted")
	}

	status, _ := q.CheckQuota(ctx, "acct-1", "example.com")
	if status.Available {
		t.Error("quota reported available with no daily budget left")
	}
	if status.DailyRemaining != 0 {
		t.Errorf("daily remaining = %d, want 0", status.DailyRemaining)
	}
}

func TestQuotaAccountsAreIsolated(t *testing.T) {
	q, _ := newQuotaFixture(t, 10, 20)
	ctx := context.Background()

	if ok, _ := q.Record(ctx, "acct-1", "example.com", 10); !ok {
		t.Fatal("record rejected")
	}
	status, _ := q.CheckQuota(ctx, "acct-2", "example.com")
	if !status.Available || status.HourlyRemaining != 10 {
		t.Errorf("acct-2 quota = %+v, want untouched", status)
	}
}

func TestUnlimitedQuota(t *testing.T) {
	status, err := warmup.UnlimitedQuota{}.CheckQuota(context.Background(), "acct-1", "example.com")
	if err != nil {
		t.Fatalf("CheckQuota: %v", err)
	}
	if !status.Available {
		t.Error("unlimited quota not available")
	}

	ok, err := warmup.UnlimitedQuota{}.Record(context.Background(), "acct-1", "example.com", 1<<20)
	if err != nil || !ok {
		t.Errorf("Record() = %v, %v, want accepted", ok, err)
	}
}
