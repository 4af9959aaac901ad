package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLockMutualExclusion(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()

	a := NewRedisLock(client, "schedule:2026-03-02", time.Minute)
	b := NewRedisLock(client, "schedule:2026-03-02", time.Minute)

	ok, err := a.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !ok {
		t.Fatal("first Acquire() = false, want true")
	}

	ok, err = b.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if ok {
		t.Fatal("second Acquire() = true while held")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	ok, err = b.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	if !ok {
		t.Error("Acquire() after release = false, want true")
	}
}

func TestRedisLockReleaseChecksOwnership(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()

	a := NewRedisLock(client, "schedule:2026-03-02", time.Minute)
	b := NewRedisLock(client, "schedule:2026-03-02", time.Minute)

	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatal("Acquire() = false, want true")
	}
	// b never held the lock; its release must not free a's lock.
	if err := b.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Error("lock freed by a non-owner release")
	}
}

func TestRedisLockDistinctKeys(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()

	a := NewRedisLock(client, "schedule:2026-03-02", time.Minute)
	b := NewRedisLock(client, "schedule:2026-03-03", time.Minute)

	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatal("Acquire() = false, want true")
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Error("Acquire() on a different key blocked")
	}
}

func TestAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	lock := NewAdvisoryLock(db, "schedule:2026-03-02")

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(lock.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !ok {
		t.Error("Acquire() = false, want true")
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Errorf("Release() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %s", err)
	}
}

func TestAdvisoryLockIDStable(t *testing.T) {
	a := NewAdvisoryLock(nil, "schedule:2026-03-02")
	b := NewAdvisoryLock(nil, "schedule:2026-03-02")
	c := NewAdvisoryLock(nil, "schedule:2026-03-03")

	if a.lockID != b.lockID {
		t.Error("same key hashed to different lock ids")
	}
	if a.lockID == c.lockID {
		t.Error("different keys hashed to the same lock id")
	}
}

func TestNewPicksBackend(t *testing.T) {
	client := newRedisClient(t)
	if _, ok := New(client, nil, "k", time.Minute).(*RedisLock); !ok {
		t.Error("New() with a Redis client did not return a RedisLock")
	}
	if _, ok := New(nil, nil, "k", time.Minute).(*AdvisoryLock); !ok {
		t.Error("New() without Redis did not return an AdvisoryLock")
	}
}
