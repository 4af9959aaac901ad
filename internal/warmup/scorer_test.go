package warmup

import (
	"math"
	"testing"

	"github.com/ignite/warmup-engine/internal/domain"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeRatesZeroDenominators(t *testing.T) {
	var m domain.PlanMetrics
	ComputeRates(&m)
	if m.DeliveryRate != 0 || m.OpenRate != 0 || m.ReplyRate != 0 || m.BounceRate != 0 || m.SpamRate != 0 {
		t.Errorf("rates on empty metrics = %+v, want all zero", m)
	}

	// Opens with zero deliveries must not divide by zero either.
	m = domain.PlanMetrics{Opened: 5}
	ComputeRates(&m)
	if m.OpenRate != 0 {
		t.Errorf("OpenRate with 0 delivered = %f, want 0", m.OpenRate)
	}
}

func TestComputeRates(t *testing.T) {
	m := domain.PlanMetrics{Sent: 100, Delivered: 96, Opened: 24, Replied: 6, Bounced: 4, Complaints: 1}
	ComputeRates(&m)

	if !almostEqual(m.DeliveryRate, 0.96) {
		t.Errorf("DeliveryRate = %f, want 0.96", m.DeliveryRate)
	}
	if !almostEqual(m.OpenRate, 0.25) {
		t.Errorf("OpenRate = %f, want 0.25", m.OpenRate)
	}
	if !almostEqual(m.ReplyRate, 0.0625) {
		t.Errorf("ReplyRate = %f, want 0.0625", m.ReplyRate)
	}
	if !almostEqual(m.BounceRate, 0.04) {
		t.Errorf("BounceRate = %f, want 0.04", m.BounceRate)
	}
	if !almostEqual(m.SpamRate, 0.01) {
		t.Errorf("SpamRate = %f, want 0.01", m.SpamRate)
	}
}

func TestHealthScore(t *testing.T) {
	settings := domain.PlanSettings{
		MaxBounceRate: 0.05, MaxSpamRate: 0.002,
		TargetOpenRate: 0.25, TargetReplyRate: 0.05,
	}

	tests := []struct {
		name string
		m    domain.PlanMetrics
		want float64
	}{
		{
			name: "perfect delivery no penalties",
			m:    domain.PlanMetrics{DeliveryRate: 1.0},
			want: 100,
		},
		{
			name: "poor delivery",
			m:    domain.PlanMetrics{DeliveryRate: 0.8},
			want: 80, // (0.9-0.8)*200 = 20 off
		},
		{
			name: "bounce excess",
			m:    domain.PlanMetrics{DeliveryRate: 1.0, BounceRate: 0.09},
			want: 80, // (0.09-0.05)*500 = 20 off
		},
		{
			name: "spam complaints hit hard",
			m:    domain.PlanMetrics{DeliveryRate: 1.0, SpamRate: 0.012},
			want: 80, // (0.012-0.002)*2000 = 20 off
		},
		{
			name: "engagement rewards capped at 100",
			m:    domain.PlanMetrics{DeliveryRate: 1.0, OpenRate: 0.5, ReplyRate: 0.2},
			want: 100,
		},
		{
			name: "floor at zero",
			m:    domain.PlanMetrics{DeliveryRate: 0.1, BounceRate: 0.5, SpamRate: 0.1},
			want: 0,
		},
	}

	for _, tt := range tests {
		if got := HealthScore(tt.m, settings); !almostEqual(got, tt.want) {
			t.Errorf("%s: HealthScore = %f, want %f", tt.name, got, tt.want)
		}
	}
}

func TestReputationScoreBounds(t *testing.T) {
	// Neutral baseline with no traffic.
	if got := ReputationScore(domain.PlanMetrics{}); !almostEqual(got, 50) {
		t.Errorf("ReputationScore(empty) = %f, want 50", got)
	}

	// Heavy abuse signals floor at 0.
	bad := domain.PlanMetrics{BounceRate: 0.5, SpamRate: 0.1}
	if got := ReputationScore(bad); got != 0 {
		t.Errorf("ReputationScore(bad) = %f, want 0", got)
	}

	// Strong engagement stays within [0,100].
	good := domain.PlanMetrics{DeliveryRate: 1.0, OpenRate: 1.0, ReplyRate: 1.0}
	if got := ReputationScore(good); got > 100 {
		t.Errorf("ReputationScore(good) = %f, want <= 100", got)
	}
}

func TestTrendFor(t *testing.T) {
	tests := []struct {
		previous, current float64
		want              domain.Trend
	}{
		{80, 83, domain.TrendImproving},
		{80, 77, domain.TrendDeclining},
		{80, 81.9, domain.TrendStable},
		{80, 78.1, domain.TrendStable},
		{80, 82, domain.TrendStable}, // band edge is inclusive of stable
	}
	for _, tt := range tests {
		if got := TrendFor(tt.previous, tt.current); got != tt.want {
			t.Errorf("TrendFor(%f, %f) = %s, want %s", tt.previous, tt.current, got, tt.want)
		}
	}
}

func TestScoreInPlace(t *testing.T) {
	settings := domain.PlanSettings{MaxBounceRate: 0.05, MaxSpamRate: 0.002}
	m := domain.PlanMetrics{
		Sent: 100, Delivered: 100,
		HealthScore: 50, // previous score, far below the new one
	}
	Score(&m, settings)

	if !almostEqual(m.HealthScore, 100) {
		t.Errorf("HealthScore = %f, want 100", m.HealthScore)
	}
	if m.Trend != domain.TrendImproving {
		t.Errorf("Trend = %s, want improving", m.Trend)
	}
	if !almostEqual(m.DeliveryRate, 1.0) {
		t.Errorf("DeliveryRate = %f, want 1.0", m.DeliveryRate)
	}
}
