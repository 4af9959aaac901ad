package warmup

import (
	"github.com/ignite/warmup-engine/internal/domain"
)

// trendBand is the dead zone around the previous health score inside which
// the trend stays "stable".
const trendBand = 2.0

// ComputeRates fills the derived rate fields from the counter fields.
// Every rate is 0 when its denominator is 0.
func ComputeRates(m *domain.PlanMetrics) {
	m.DeliveryRate = ratio(m.Delivered, m.Sent)
	m.OpenRate = ratio(m.Opened, m.Delivered)
	m.ReplyRate = ratio(m.Replied, m.Delivered)
	m.BounceRate = ratio(m.Bounced, m.Sent)
	m.SpamRate = ratio(m.Complaints, m.Sent)
}

// HealthScore computes the 0-100 sending-quality score for the given rates
// under the plan's thresholds. Starts at 100; penalized proportionally for
// poor delivery, excess bounces and (heavily) spam complaints; rewarded for
// beating the open/reply targets.
func HealthScore(m domain.PlanMetrics, s domain.PlanSettings) float64 {
	score := 100.0

	if m.DeliveryRate < 0.9 {
		score -= (0.9 - m.DeliveryRate) * 200 // -20 per 10% below target
	}
	if s.MaxBounceRate > 0 && m.BounceRate > s.MaxBounceRate {
		score -= (m.BounceRate - s.MaxBounceRate) * 500
	}
	if s.MaxSpamRate > 0 && m.SpamRate > s.MaxSpamRate {
		score -= (m.SpamRate - s.MaxSpamRate) * 2000
	}
	if s.TargetOpenRate > 0 && m.OpenRate > s.TargetOpenRate {
		score += (m.OpenRate - s.TargetOpenRate) * 50
	}
	if s.TargetReplyRate > 0 && m.ReplyRate > s.TargetReplyRate {
		score += (m.ReplyRate - s.TargetReplyRate) * 100
	}

	return clamp(score, 0, 100)
}

// ReputationScore computes the longer-horizon 0-100 reputation blend from the
// same rates, starting from a neutral baseline of 50.
func ReputationScore(m domain.PlanMetrics) float64 {
	score := 50.0
	score += m.DeliveryRate * 30
	score += m.OpenRate * 15
	score += m.ReplyRate * 25
	score -= m.BounceRate * 300
	score -= m.SpamRate * 1000
	return clamp(score, 0, 100)
}

// TrendFor compares a new health score against the previous one: more than
// trendBand points up is improving, more than trendBand down is declining.
func TrendFor(previous, current float64) domain.Trend {
	switch {
	case current > previous+trendBand:
		return domain.TrendImproving
	case current < previous-trendBand:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

// Score recomputes rates, both scores and the trend in place.
func Score(m *domain.PlanMetrics, s domain.PlanSettings) {
	previous := m.HealthScore
	ComputeRates(m)
	m.HealthScore = HealthScore(*m, s)
	m.ReputationScore = ReputationScore(*m)
	m.Trend = TrendFor(previous, m.HealthScore)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
