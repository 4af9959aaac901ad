// Package memory provides in-memory repository implementations used by
// tests and local tooling. All repos share one Store and are safe for
// concurrent use.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/warmup"
)

// Store holds every warmup entity in process memory. Individual repositories
// are views over the same store, obtained from the accessor methods.
type Store struct {
	mu         sync.RWMutex
	plans      map[string]*domain.WarmupPlan
	jobs       map[string]*domain.WarmupJob
	emails     map[string]*domain.WarmupEmail
	activities []domain.WarmupActivity
	recipients map[string][]domain.WarmupRecipient // accountID -> pool
	clicks     map[string][]time.Time              // emailID -> click times
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		plans:      make(map[string]*domain.WarmupPlan),
		jobs:       make(map[string]*domain.WarmupJob),
		emails:     make(map[string]*domain.WarmupEmail),
		recipients: make(map[string][]domain.WarmupRecipient),
		clicks:     make(map[string][]time.Time),
	}
}

// Plans returns the store's warmup.PlanRepository view.
func (s *Store) Plans() *PlanRepo { return &PlanRepo{s} }

// Jobs returns the store's warmup.JobRepository view.
func (s *Store) Jobs() *JobRepo { return &JobRepo{s} }

// Emails returns the store's warmup.EmailRepository view.
func (s *Store) Emails() *EmailRepo { return &EmailRepo{s} }

// Activities returns the store's warmup.ActivityRepository view.
func (s *Store) Activities() *ActivityRepo { return &ActivityRepo{s} }

// Recipients returns the store's warmup.RecipientRepository view.
func (s *Store) Recipients() *RecipientRepo { return &RecipientRepo{s} }

// SeedRecipients loads a recipient pool for an account.
func (s *Store) SeedRecipients(accountID string, recipients []domain.WarmupRecipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients[accountID] = append(s.recipients[accountID], recipients...)
}

// ActivityRows returns a copy of the recorded activity rows.
func (s *Store) ActivityRows() []domain.WarmupActivity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WarmupActivity, len(s.activities))
	copy(out, s.activities)
	return out
}

// Clicks returns the click timestamps recorded for an email.
func (s *Store) Clicks(emailID string) []time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]time.Time(nil), s.clicks[emailID]...)
}

// AllEmails returns a copy of every stored email.
func (s *Store) AllEmails() []domain.WarmupEmail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WarmupEmail, 0, len(s.emails))
	for _, e := range s.emails {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

// ---------------------------------------------------------------------------
// PlanRepo

// PlanRepo implements warmup.PlanRepository.
type PlanRepo struct{ s *Store }

func (r *PlanRepo) Create(_ context.Context, p *domain.WarmupPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.plans[p.ID] = &cp
	return nil
}

func (r *PlanRepo) Get(_ context.Context, id string) (*domain.WarmupPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, warmup.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PlanRepo) List(_ context.Context, status domain.PlanStatus) ([]domain.WarmupPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WarmupPlan
	for _, p := range r.s.plans {
		if status == "" || p.Status == status {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *PlanRepo) Update(_ context.Context, p *domain.WarmupPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.plans[p.ID]
	if !ok {
		return warmup.ErrPlanNotFound
	}
	// Counters are owned by IncrementCounters; keep the stored ones.
	counters := stored.Metrics
	cp := *p
	cp.Metrics.Sent = counters.Sent
	cp.Metrics.Delivered = counters.Delivered
	cp.Metrics.Opened = counters.Opened
	cp.Metrics.Replied = counters.Replied
	cp.Metrics.Bounced = counters.Bounced
	cp.Metrics.Complaints = counters.Complaints
	cp.TotalSent = stored.TotalSent
	r.s.plans[p.ID] = &cp
	return nil
}

func (r *PlanRepo) IncrementCounters(_ context.Context, id string, delta domain.JobCounters) (*domain.PlanMetrics, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, warmup.ErrPlanNotFound
	}
	p.Metrics.Sent += delta.Sent
	p.Metrics.Delivered += delta.Delivered
	p.Metrics.Opened += delta.Opened
	p.Metrics.Replied += delta.Replied
	p.Metrics.Bounced += delta.Bounced
	p.Metrics.Complaints += delta.Complaints
	p.ActualSentToday += delta.Sent
	p.TotalSent += delta.Sent
	m := p.Metrics
	return &m, nil
}

func (r *PlanRepo) UpdateScores(_ context.Context, id string, m domain.PlanMetrics) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return warmup.ErrPlanNotFound
	}
	p.Metrics.DeliveryRate = m.DeliveryRate
	p.Metrics.OpenRate = m.OpenRate
	p.Metrics.ReplyRate = m.ReplyRate
	p.Metrics.BounceRate = m.BounceRate
	p.Metrics.SpamRate = m.SpamRate
	p.Metrics.HealthScore = m.HealthScore
	p.Metrics.ReputationScore = m.ReputationScore
	p.Metrics.Trend = m.Trend
	now := time.Now()
	p.Metrics.LastUpdatedAt = &now
	return nil
}

func (r *PlanRepo) ResetDailySent(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return warmup.ErrPlanNotFound
	}
	p.ActualSentToday = 0
	return nil
}

// ---------------------------------------------------------------------------
// JobRepo

// JobRepo implements warmup.JobRepository.
type JobRepo struct{ s *Store }

func (r *JobRepo) Create(_ context.Context, j *domain.WarmupJob) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.jobs {
		if existing.WarmupPlanID == j.WarmupPlanID && sameDay(existing.ScheduledDate, j.ScheduledDate) {
			return false, nil
		}
	}
	cp := *j
	r.s.jobs[j.ID] = &cp
	return true, nil
}

func (r *JobRepo) Get(_ context.Context, id string) (*domain.WarmupJob, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return nil, warmup.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *JobRepo) GetByPlanAndDate(_ context.Context, planID string, date time.Time) (*domain.WarmupJob, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, j := range r.s.jobs {
		if j.WarmupPlanID == planID && sameDay(j.ScheduledDate, date) {
			cp := *j
			return &cp, nil
		}
	}
	return nil, warmup.ErrJobNotFound
}

func (r *JobRepo) ListDue(_ context.Context, date time.Time) ([]domain.WarmupJob, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WarmupJob
	for _, j := range r.s.jobs {
		if (j.Status == domain.JobPending || j.Status == domain.JobRunning) && !j.ScheduledDate.After(date) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledDate.Before(out[k].ScheduledDate) })
	return out, nil
}

func (r *JobRepo) ListStale(_ context.Context, before time.Time) ([]domain.WarmupJob, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WarmupJob
	for _, j := range r.s.jobs {
		if (j.Status == domain.JobPending || j.Status == domain.JobRunning) && j.ScheduledDate.Before(before) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledDate.Before(out[k].ScheduledDate) })
	return out, nil
}

func (r *JobRepo) MarkRunning(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return warmup.ErrJobNotFound
	}
	j.Status = domain.JobRunning
	j.StartedAt = &at
	return nil
}

func (r *JobRepo) Finish(_ context.Context, id string, status domain.JobStatus, counters domain.JobCounters, errMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return warmup.ErrJobNotFound
	}
	now := time.Now()
	j.Status = status
	j.Counters = counters
	j.CompletedAt = &now
	j.ErrorMessage = errMsg
	return nil
}

func (r *JobRepo) AppendLog(_ context.Context, id string, entry domain.JobLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return warmup.ErrJobNotFound
	}
	j.ExecutionLog = append(j.ExecutionLog, entry)
	return nil
}

func (r *JobRepo) IncrementCounter(_ context.Context, id string, counter string, n int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return warmup.ErrJobNotFound
	}
	switch counter {
	case "emails_sent":
		j.Counters.Sent += n
	case "emails_delivered":
		j.Counters.Delivered += n
	case "emails_opened":
		j.Counters.Opened += n
	case "emails_replied":
		j.Counters.Replied += n
	case "emails_bounced":
		j.Counters.Bounced += n
	case "spam_complaints":
		j.Counters.Complaints += n
	}
	return nil
}

func (r *JobRepo) ListByPlan(_ context.Context, planID string, limit int) ([]domain.WarmupJob, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WarmupJob
	for _, j := range r.s.jobs {
		if j.WarmupPlanID == planID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledDate.After(out[k].ScheduledDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *JobRepo) CountFailuresSince(_ context.Context, planID string, since time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, j := range r.s.jobs {
		if j.WarmupPlanID == planID && j.Status == domain.JobFailed && !j.ScheduledDate.Before(since.Truncate(24*time.Hour)) {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// EmailRepo

// EmailRepo implements warmup.EmailRepository.
type EmailRepo struct{ s *Store }

func (r *EmailRepo) CreateBatch(_ context.Context, emails []domain.WarmupEmail) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range emails {
		cp := emails[i]
		r.s.emails[cp.ID] = &cp
	}
	return nil
}

func (r *EmailRepo) Get(_ context.Context, id string) (*domain.WarmupEmail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.emails[id]
	if !ok {
		return nil, warmup.ErrEmailNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *EmailRepo) ListPending(_ context.Context, jobID string) ([]domain.WarmupEmail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WarmupEmail
	for _, e := range r.s.emails {
		if e.WarmupJobID == jobID && e.Status == domain.EmailPending {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *EmailRepo) Claim(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.emails[id]
	if !ok {
		return false, warmup.ErrEmailNotFound
	}
	if e.Status != domain.EmailPending {
		return false, nil
	}
	e.Status = domain.EmailSent
	return true, nil
}

func (r *EmailRepo) UpdateStatus(_ context.Context, id string, status domain.EmailStatus, sentAt *time.Time, trackingID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.emails[id]
	if !ok {
		return warmup.ErrEmailNotFound
	}
	e.Status = status
	if sentAt != nil {
		e.SentAt = sentAt
	}
	if trackingID != "" {
		e.TrackingID = trackingID
	}
	return nil
}

func (r *EmailRepo) RescheduleBatch(_ context.Context, batch []warmup.EmailReschedule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range batch {
		e, ok := r.s.emails[item.ID]
		if !ok {
			return warmup.ErrEmailNotFound
		}
		e.ScheduledAt = item.ScheduledAt
		e.Status = domain.EmailPending
	}
	return nil
}

func (r *EmailRepo) MarkInteraction(_ context.Context, id string, status domain.EmailStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.emails[id]
	if !ok {
		return false, warmup.ErrEmailNotFound
	}
	if e.Status != domain.EmailSent && e.Status != domain.EmailDelivered {
		return false, nil
	}
	e.Status = status
	return true, nil
}

func (r *EmailRepo) RecordClick(_ context.Context, emailID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.clicks[emailID] = append(r.s.clicks[emailID], at)
	return nil
}

// ---------------------------------------------------------------------------
// ActivityRepo / RecipientRepo

// ActivityRepo implements warmup.ActivityRepository.
type ActivityRepo struct{ s *Store }

func (r *ActivityRepo) Insert(_ context.Context, a *domain.WarmupActivity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.activities = append(r.s.activities, *a)
	return nil
}

func (r *ActivityRepo) ListRecent(_ context.Context, planID string, limit int) ([]domain.WarmupActivity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WarmupActivity
	for _, a := range r.s.activities {
		if a.WarmupPlanID == planID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecipientRepo implements warmup.RecipientRepository.
type RecipientRepo struct{ s *Store }

func (r *RecipientRepo) ListByType(_ context.Context, accountID string, t domain.RecipientType) ([]domain.WarmupRecipient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WarmupRecipient
	for _, rec := range r.s.recipients[accountID] {
		if rec.Type == t && rec.Active {
			out = append(out, rec)
		}
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
