package warmup

import (
	"github.com/ignite/warmup-engine/internal/domain"
)

// WeekCriteria are the success thresholds a week's results are judged against.
type WeekCriteria struct {
	MaxBounceRate   float64
	MaxSpamRate     float64
	MinDeliveryRate float64
}

// WeekSchedule is one week of a strategy: the daily volume, the recipient and
// content mixes, and the success criteria for that week.
type WeekSchedule struct {
	Week         int
	DailyTarget  int
	RecipientMix map[domain.RecipientType]float64
	ContentMix   map[domain.ContentType]float64
	Criteria     WeekCriteria
}

// StrategyProfile is the full static definition of one named strategy.
type StrategyProfile struct {
	Name            domain.WarmupStrategy
	TotalWeeks      int
	Weeks           []WeekSchedule
	DefaultSettings domain.PlanSettings
}

// Recipient mixes shift weight from low-risk recipients toward prospects as
// the plan matures. Keys must sum to 1.0.
var (
	mixWeek1 = map[domain.RecipientType]float64{
		domain.RecipientInternal: 0.50, domain.RecipientPartner: 0.30,
		domain.RecipientCustomer: 0.20, domain.RecipientProspect: 0.00,
	}
	mixWeek2 = map[domain.RecipientType]float64{
		domain.RecipientInternal: 0.40, domain.RecipientPartner: 0.30,
		domain.RecipientCustomer: 0.20, domain.RecipientProspect: 0.10,
	}
	mixMid = map[domain.RecipientType]float64{
		domain.RecipientInternal: 0.25, domain.RecipientPartner: 0.25,
		domain.RecipientCustomer: 0.30, domain.RecipientProspect: 0.20,
	}
	mixLate = map[domain.RecipientType]float64{
		domain.RecipientInternal: 0.15, domain.RecipientPartner: 0.20,
		domain.RecipientCustomer: 0.30, domain.RecipientProspect: 0.35,
	}

	contentEarly = map[domain.ContentType]float64{
		domain.ContentIntroduction: 0.70, domain.ContentFollowUp: 0.30,
	}
	contentMid = map[domain.ContentType]float64{
		domain.ContentIntroduction: 0.25, domain.ContentFollowUp: 0.40,
		domain.ContentNewsletter: 0.35,
	}
	contentLate = map[domain.ContentType]float64{
		domain.ContentFollowUp: 0.30, domain.ContentNewsletter: 0.40,
		domain.ContentPromotional: 0.30,
	}
)

func week(n, target int, mix map[domain.RecipientType]float64, content map[domain.ContentType]float64, c WeekCriteria) WeekSchedule {
	return WeekSchedule{Week: n, DailyTarget: target, RecipientMix: mix, ContentMix: content, Criteria: c}
}

var (
	criteriaStrict  = WeekCriteria{MaxBounceRate: 0.02, MaxSpamRate: 0.0005, MinDeliveryRate: 0.95}
	criteriaNormal  = WeekCriteria{MaxBounceRate: 0.03, MaxSpamRate: 0.001, MinDeliveryRate: 0.92}
	criteriaRelaxed = WeekCriteria{MaxBounceRate: 0.05, MaxSpamRate: 0.002, MinDeliveryRate: 0.90}
)

// strategyCatalog is the static, versioned table behind StrategyFor.
// Daily targets are non-decreasing within each strategy; the final week's
// target is the strategy's maximum steady-state volume.
var strategyCatalog = map[domain.WarmupStrategy]StrategyProfile{
	domain.StrategyConservative: {
		Name:       domain.StrategyConservative,
		TotalWeeks: 8,
		Weeks: []WeekSchedule{
			week(1, 5, mixWeek1, contentEarly, criteriaStrict),
			week(2, 10, mixWeek2, contentEarly, criteriaStrict),
			week(3, 20, mixMid, contentMid, criteriaNormal),
			week(4, 35, mixMid, contentMid, criteriaNormal),
			week(5, 50, mixMid, contentMid, criteriaNormal),
			week(6, 70, mixLate, contentLate, criteriaNormal),
			week(7, 90, mixLate, contentLate, criteriaRelaxed),
			week(8, 120, mixLate, contentLate, criteriaRelaxed),
		},
		DefaultSettings: domain.PlanSettings{
			MaxBounceRate: 0.03, MaxSpamRate: 0.001,
			TargetOpenRate: 0.25, TargetReplyRate: 0.05,
			BusinessHoursOnly: true, AutoPauseEnabled: true, SimulateInteractions: true,
		},
	},
	domain.StrategyModerate: {
		Name:       domain.StrategyModerate,
		TotalWeeks: 6,
		Weeks: []WeekSchedule{
			week(1, 10, mixWeek1, contentEarly, criteriaStrict),
			week(2, 25, mixWeek2, contentEarly, criteriaNormal),
			week(3, 50, mixMid, contentMid, criteriaNormal),
			week(4, 75, mixMid, contentMid, criteriaNormal),
			week(5, 100, mixLate, contentLate, criteriaRelaxed),
			week(6, 150, mixLate, contentLate, criteriaRelaxed),
		},
		DefaultSettings: domain.PlanSettings{
			MaxBounceRate: 0.05, MaxSpamRate: 0.002,
			TargetOpenRate: 0.22, TargetReplyRate: 0.04,
			BusinessHoursOnly: true, AutoPauseEnabled: true, SimulateInteractions: true,
		},
	},
	domain.StrategyAggressive: {
		Name:       domain.StrategyAggressive,
		TotalWeeks: 4,
		Weeks: []WeekSchedule{
			week(1, 20, mixWeek1, contentEarly, criteriaNormal),
			week(2, 50, mixWeek2, contentMid, criteriaNormal),
			week(3, 100, mixMid, contentMid, criteriaRelaxed),
			week(4, 200, mixLate, contentLate, criteriaRelaxed),
		},
		DefaultSettings: domain.PlanSettings{
			MaxBounceRate: 0.07, MaxSpamRate: 0.003,
			TargetOpenRate: 0.20, TargetReplyRate: 0.03,
			BusinessHoursOnly: true, AutoPauseEnabled: true, SimulateInteractions: true,
		},
	},
}

// StrategyFor returns the profile for a named strategy.
func StrategyFor(s domain.WarmupStrategy) (StrategyProfile, error) {
	p, ok := strategyCatalog[s]
	if !ok {
		return StrategyProfile{}, ErrInvalidStrategy
	}
	return p, nil
}

// Strategies returns all known strategy profiles.
func Strategies() []StrategyProfile {
	return []StrategyProfile{
		strategyCatalog[domain.StrategyConservative],
		strategyCatalog[domain.StrategyModerate],
		strategyCatalog[domain.StrategyAggressive],
	}
}

// ScheduleForWeek returns a strategy's schedule for the given week, clamped
// to the final week for out-of-range values (and week 1 for values below 1).
func (p StrategyProfile) ScheduleForWeek(w int) WeekSchedule {
	if w < 1 {
		w = 1
	}
	if w > p.TotalWeeks {
		w = p.TotalWeeks
	}
	return p.Weeks[w-1]
}

// MaxDailyTarget returns the strategy's steady-state volume.
func (p StrategyProfile) MaxDailyTarget() int {
	return p.Weeks[len(p.Weeks)-1].DailyTarget
}
