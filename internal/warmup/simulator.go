package warmup

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	simKeyPrefix = "warmup:sim:"

	// Records expire well beyond the maximum 8h simulation delay so orphaned
	// entries always clean themselves up.
	simRecordTTL = 24 * time.Hour
)

// simRecord is the scheduled synthetic interaction stored in Redis.
type simRecord struct {
	EmailID     string                 `json:"email_id"`
	JobID       string                 `json:"job_id"`
	Interaction domain.InteractionType `json:"interaction_type"`
	ScheduledAt time.Time              `json:"scheduled_at"`
}

// Simulator schedules and replays synthetic engagement events (open, click,
// reply) against sent warmup emails. It is a delayed task queue over an
// expiring Redis keyspace: delivery is at-least-once (records are claimed
// with GETDEL before being applied) and application is idempotent, so
// duplicate or overlapping sweeps are safe.
type Simulator struct {
	redis  *redis.Client
	jobs   JobRepository
	emails EmailRepository
	now    func() time.Time
}

// NewSimulator creates an interaction simulator.
func NewSimulator(redisClient *redis.Client, jobs JobRepository, emails EmailRepository) *Simulator {
	return &Simulator{
		redis:  redisClient,
		jobs:   jobs,
		emails: emails,
		now:    time.Now,
	}
}

// SetClock overrides the simulator's time source (used by tests).
func (s *Simulator) SetClock(now func() time.Time) { s.now = now }

// Schedule persists a synthetic-interaction record for a sent email, to be
// applied by a later sweep once its delay has elapsed.
func (s *Simulator) Schedule(ctx context.Context, email *domain.WarmupEmail) error {
	if !email.InteractionSimulated || email.SimulationType == "" {
		return nil
	}

	rec := simRecord{
		EmailID:     email.ID,
		JobID:       email.WarmupJobID,
		Interaction: email.SimulationType,
		ScheduledAt: s.now().Add(time.Duration(email.SimulationDelayHours * float64(time.Hour))),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal simulation record: %w", err)
	}

	if err := s.redis.Set(ctx, simKeyPrefix+email.ID, payload, simRecordTTL).Err(); err != nil {
		return fmt.Errorf("schedule simulation for %s: %w", email.ID, err)
	}
	return nil
}

// Sweep enumerates all pending simulation records and applies every one
// whose time has arrived, deleting it afterward. Records not yet due are
// left untouched. Returns the number of interactions applied.
func (s *Simulator) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	applied := 0

	iter := s.redis.Scan(ctx, 0, simKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		raw, err := s.redis.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // expired or claimed by a concurrent sweep
		}
		if err != nil {
			return applied, fmt.Errorf("read simulation record %s: %w", key, err)
		}

		var rec simRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			log.Printf("[Simulator] Dropping malformed record %s: %v", key, err)
			s.redis.Del(ctx, key)
			continue
		}
		if rec.ScheduledAt.After(now) {
			continue
		}

		// Claim before applying so two sweeps cannot both process it.
		claimed, err := s.redis.GetDel(ctx, key).Result()
		if err == redis.Nil || (err == nil && claimed == "") {
			continue
		}
		if err != nil {
			return applied, fmt.Errorf("claim simulation record %s: %w", key, err)
		}

		if err := s.apply(ctx, rec); err != nil {
			log.Printf("[Simulator] Failed to apply %s for email %s: %v", rec.Interaction, rec.EmailID, err)
			continue
		}
		applied++
	}
	if err := iter.Err(); err != nil {
		return applied, fmt.Errorf("scan simulation records: %w", err)
	}
	return applied, nil
}

// apply replays one interaction: open and reply move the email's status and
// bump the job counter; click inserts a click event row.
func (s *Simulator) apply(ctx context.Context, rec simRecord) error {
	switch rec.Interaction {
	case domain.InteractionOpen:
		ok, err := s.emails.MarkInteraction(ctx, rec.EmailID, domain.EmailOpened)
		if err != nil {
			return err
		}
		if ok {
			return s.jobs.IncrementCounter(ctx, rec.JobID, "emails_opened", 1)
		}
		return nil
	case domain.InteractionReply:
		ok, err := s.emails.MarkInteraction(ctx, rec.EmailID, domain.EmailReplied)
		if err != nil {
			return err
		}
		if ok {
			return s.jobs.IncrementCounter(ctx, rec.JobID, "emails_replied", 1)
		}
		return nil
	case domain.InteractionClick:
		return s.emails.RecordClick(ctx, rec.EmailID, s.now())
	default:
		return fmt.Errorf("unknown interaction type %q", rec.Interaction)
	}
}
