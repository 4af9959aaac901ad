package warmup

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/warmup-engine/internal/domain"
)

const (
	// Business-hours send window (hours of day, local to the plan's sends).
	defaultWindowStartHour = 9
	defaultWindowEndHour   = 17

	// Interaction simulation: engagement likelihood is scaled up while the
	// identity is young and down once it matures.
	earlyWeekEngagementScale = 1.3
	lateWeekEngagementScale  = 0.8

	simDelayMinHours = 1
	simDelayMaxHours = 8
)

// interactionWeights picks the simulated interaction type: 70% open,
// 20% click, 10% reply.
var interactionWeights = []struct {
	Type   domain.InteractionType
	Weight float64
}{
	{domain.InteractionOpen, 0.70},
	{domain.InteractionClick, 0.20},
	{domain.InteractionReply, 0.10},
}

// Generator produces one WarmupJob plus its WarmupEmail rows for an active
// plan and a calendar date. Generation is idempotent per (plan, date).
type Generator struct {
	plans      PlanRepository
	jobs       JobRepository
	emails     EmailRepository
	recipients RecipientRepository
	templates  *TemplateRenderer

	// rng is injected so tests can fix the jitter. Not goroutine-safe; the
	// runner drives the generator from a single loop.
	rng *rand.Rand
	now func() time.Time

	WindowStartHour int
	WindowEndHour   int
	SenderName      string
}

// NewGenerator creates a job generator with a time-seeded random source.
func NewGenerator(plans PlanRepository, jobs JobRepository, emails EmailRepository, recipients RecipientRepository) *Generator {
	return &Generator{
		plans:           plans,
		jobs:            jobs,
		emails:          emails,
		recipients:      recipients,
		templates:       NewTemplateRenderer(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		now:             time.Now,
		WindowStartHour: defaultWindowStartHour,
		WindowEndHour:   defaultWindowEndHour,
		SenderName:      "The team",
	}
}

// SetRand overrides the generator's random source (used by tests).
func (g *Generator) SetRand(r *rand.Rand) { g.rng = r }

// SetClock overrides the generator's time source (used by tests).
func (g *Generator) SetClock(now func() time.Time) { g.now = now }

// ScheduleDailyJobs generates the day's job for every active plan. Errors on
// individual plans are logged and do not stop the sweep.
func (g *Generator) ScheduleDailyJobs(ctx context.Context, date time.Time) (generated int, err error) {
	plans, err := g.plans.List(ctx, domain.PlanActive)
	if err != nil {
		return 0, fmt.Errorf("list active plans: %w", err)
	}

	for i := range plans {
		job, err := g.GenerateDailyJob(ctx, &plans[i], date)
		if err != nil {
			log.Printf("[Generator] Failed to generate job for plan %s: %v", plans[i].ID, err)
			continue
		}
		if job != nil {
			generated++
		}
	}
	return generated, nil
}

// GenerateDailyJob creates the job and emails for one plan on one date.
// Returns (nil, nil) when a job already exists for that date.
func (g *Generator) GenerateDailyJob(ctx context.Context, plan *domain.WarmupPlan, date time.Time) (*domain.WarmupJob, error) {
	if plan.Status != domain.PlanActive {
		return nil, nil
	}

	day := date.Truncate(24 * time.Hour)
	job := &domain.WarmupJob{
		ID:            uuid.New().String(),
		WarmupPlanID:  plan.ID,
		ScheduledDate: day,
		TargetEmails:  plan.DailyTarget,
		Status:        domain.JobPending,
		CreatedAt:     g.now(),
		UpdatedAt:     g.now(),
	}

	created, err := g.jobs.Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("create warmup job: %w", err)
	}
	if !created {
		// Another invocation (or instance) already scheduled this date.
		return nil, nil
	}

	// The first job created for a date is the day boundary: yesterday's
	// actual_sent_today accumulation starts over. The create dedupe above
	// makes the reset happen exactly once per (plan, date).
	if err := g.plans.ResetDailySent(ctx, plan.ID); err != nil {
		log.Printf("[Generator] Plan %s: daily sent reset failed: %v", plan.ID, err)
	}

	emails, err := g.buildEmails(ctx, plan, job, day)
	if err != nil {
		return nil, err
	}
	if err := g.emails.CreateBatch(ctx, emails); err != nil {
		return nil, fmt.Errorf("persist warmup emails: %w", err)
	}

	log.Printf("[Generator] Plan %s: scheduled job %s for %s with %d emails",
		plan.ID, job.ID, day.Format("2006-01-02"), len(emails))
	return job, nil
}

// buildEmails splits the daily target across recipient-type buckets, picks
// recipients round-robin within each pool, renders content and spreads send
// times across the business-hours window with jitter.
func (g *Generator) buildEmails(ctx context.Context, plan *domain.WarmupPlan, job *domain.WarmupJob, day time.Time) ([]domain.WarmupEmail, error) {
	profile, err := StrategyFor(plan.Strategy)
	if err != nil {
		return nil, err
	}
	schedule := profile.ScheduleForWeek(plan.CurrentWeek)
	buckets := splitByMix(job.TargetEmails, schedule.RecipientMix)

	slots := g.sendSlots(day, job.TargetEmails)
	emails := make([]domain.WarmupEmail, 0, job.TargetEmails)
	slot := 0

	for _, rt := range recipientTypeOrder {
		count := buckets[rt]
		if count == 0 {
			continue
		}
		pool, err := g.recipients.ListByType(ctx, plan.AccountID, rt)
		if err != nil {
			return nil, fmt.Errorf("list %s recipients: %w", rt, err)
		}
		if len(pool) == 0 {
			log.Printf("[Generator] Plan %s: no %s recipients, skipping %d sends", plan.ID, rt, count)
			slot += count
			continue
		}

		for i := 0; i < count; i++ {
			recipient := pool[i%len(pool)]
			email, err := g.buildEmail(plan, job, recipient, schedule, slots[slot])
			if err != nil {
				return nil, err
			}
			emails = append(emails, email)
			slot++
		}
	}

	if len(emails) == 0 {
		return nil, ErrNoRecipients
	}
	return emails, nil
}

func (g *Generator) buildEmail(plan *domain.WarmupPlan, job *domain.WarmupJob, recipient domain.WarmupRecipient, schedule WeekSchedule, sendAt time.Time) (domain.WarmupEmail, error) {
	ct := g.pickContentType(schedule.ContentMix, recipient.Type, plan.CurrentWeek)

	bindings := map[string]interface{}{
		"first_name":  recipient.Name,
		"company":     recipient.Company,
		"domain":      plan.Domain,
		"sender_name": g.SenderName,
		"week":        plan.CurrentWeek,
	}
	subject, body, err := g.templates.RenderEmail(ct, g.rng.Intn(8), bindings)
	if err != nil {
		return domain.WarmupEmail{}, fmt.Errorf("render %s email: %w", ct, err)
	}

	email := domain.WarmupEmail{
		ID:             uuid.New().String(),
		WarmupJobID:    job.ID,
		RecipientEmail: recipient.Email,
		RecipientName:  recipient.Name,
		RecipientType:  recipient.Type,
		ContentType:    ct,
		Subject:        subject,
		Content:        body,
		ScheduledAt:    sendAt,
		Status:         domain.EmailPending,
		CreatedAt:      g.now(),
	}

	if plan.Settings.SimulateInteractions {
		g.decideSimulation(&email, recipient, plan.CurrentWeek)
	}
	return email, nil
}

// decideSimulation flags an email for a synthetic interaction with
// probability equal to the recipient's baseline engagement likelihood,
// scaled up in weeks 1-2 and down afterward.
func (g *Generator) decideSimulation(email *domain.WarmupEmail, recipient domain.WarmupRecipient, week int) {
	scale := lateWeekEngagementScale
	if week <= 2 {
		scale = earlyWeekEngagementScale
	}
	p := recipient.EngagementLikelihood * scale
	if p > 1 {
		p = 1
	}
	if g.rng.Float64() >= p {
		return
	}

	email.InteractionSimulated = true
	email.SimulationType = g.pickInteractionType()
	email.SimulationDelayHours = float64(simDelayMinHours) + g.rng.Float64()*float64(simDelayMaxHours-simDelayMinHours)
}

func (g *Generator) pickInteractionType() domain.InteractionType {
	r := g.rng.Float64()
	acc := 0.0
	for _, w := range interactionWeights {
		acc += w.Weight
		if r < acc {
			return w.Type
		}
	}
	return domain.InteractionOpen
}

// pickContentType draws from the week's content mix, with two recipient-type
// overrides: prospects never get promotional content before week 3, and
// existing customers lean toward newsletters when the mix allows them.
func (g *Generator) pickContentType(mix map[domain.ContentType]float64, rt domain.RecipientType, week int) domain.ContentType {
	if rt == domain.RecipientCustomer {
		if _, ok := mix[domain.ContentNewsletter]; ok && g.rng.Float64() < 0.5 {
			return domain.ContentNewsletter
		}
	}

	r := g.rng.Float64()
	acc := 0.0
	picked := domain.ContentIntroduction
	for _, ct := range contentTypeOrder {
		w, ok := mix[ct]
		if !ok {
			continue
		}
		acc += w
		if r < acc {
			picked = ct
			break
		}
	}

	if picked == domain.ContentPromotional && rt == domain.RecipientProspect && week < 3 {
		return domain.ContentFollowUp
	}
	return picked
}

// sendSlots spreads n sends evenly across the business-hours window and adds
// random jitter of up to half a slot either way, so sends are neither bursty
// nor perfectly periodic.
func (g *Generator) sendSlots(day time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), g.WindowStartHour, 0, 0, 0, time.UTC)
	window := time.Duration(g.WindowEndHour-g.WindowStartHour) * time.Hour
	step := window / time.Duration(n)

	slots := make([]time.Time, n)
	for i := 0; i < n; i++ {
		jitter := time.Duration((g.rng.Float64() - 0.5) * float64(step))
		at := start.Add(time.Duration(i)*step + step/2 + jitter)
		if at.Before(start) {
			at = start
		}
		slots[i] = at
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

// splitByMix divides total across the mix proportionally, assigning rounding
// remainder to the largest shares first so the parts always sum to total.
func splitByMix(total int, mix map[domain.RecipientType]float64) map[domain.RecipientType]int {
	out := make(map[domain.RecipientType]int, len(mix))
	assigned := 0
	type share struct {
		rt   domain.RecipientType
		frac float64
	}
	var remainders []share

	for _, rt := range recipientTypeOrder {
		w, ok := mix[rt]
		if !ok {
			continue
		}
		exact := float64(total) * w
		n := int(exact)
		out[rt] = n
		assigned += n
		remainders = append(remainders, share{rt, exact - float64(n)})
	}

	sort.SliceStable(remainders, func(i, j int) bool { return remainders[i].frac > remainders[j].frac })
	for i := 0; assigned < total && i < len(remainders); i++ {
		out[remainders[i].rt]++
		assigned++
	}
	return out
}

var recipientTypeOrder = []domain.RecipientType{
	domain.RecipientInternal,
	domain.RecipientPartner,
	domain.RecipientCustomer,
	domain.RecipientProspect,
}

var contentTypeOrder = []domain.ContentType{
	domain.ContentIntroduction,
	domain.ContentFollowUp,
	domain.ContentNewsletter,
	domain.ContentPromotional,
}
