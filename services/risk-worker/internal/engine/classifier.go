package engine

import (
	"math"
	"sort"
	"time"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
)

// Config carries every scoring tunable. Values come from the worker config
// file so thresholds can be adjusted per environment without a rebuild.
type Config struct {
	WindowDuration time.Duration

	// Health scoring.
	HealthWeight float64 // k in clamp(100 - k*|z|, 0, 100)
	BaseWeight   float64 // share of (100 - health) carried into the risk score

	// Amount anomaly.
	AmountZThreshold      float64
	AmountZScale          float64
	AmountZCap            float64
	AmountMultiplier      float64
	AmountMultiplierScore float64

	// Velocity.
	RapidFireGap   time.Duration
	RapidFireScore float64
	VelocityRatio  float64
	VelocityScale  float64
	VelocityCap    float64

	// Split pattern.
	SplitMinCount        int
	SplitTotalMultiplier float64
	SplitMaxSingle       float64
	SplitScore           float64
	DefaultTypicalAmount float64

	// Diversity anomalies.
	GeoScore      float64
	MerchantScore float64

	// Level boundaries: LOW below MediumAt, HIGH at or above HighAt.
	MediumAt float64
	HighAt   float64

	// Trend sensitivity. A score within TrendEpsilon of the previous one
	// reads as STABLE.
	TrendEpsilon float64
}

// DefaultConfig returns the tuning used when no overrides are configured.
func DefaultConfig() Config {
	return Config{
		WindowDuration:        5 * time.Minute,
		HealthWeight:          8,
		BaseWeight:            0.4,
		AmountZThreshold:      2.5,
		AmountZScale:          8,
		AmountZCap:            35,
		AmountMultiplier:      3,
		AmountMultiplierScore: 30,
		RapidFireGap:          time.Minute,
		RapidFireScore:        15,
		VelocityRatio:         3,
		VelocityScale:         10,
		VelocityCap:           30,
		SplitMinCount:         3,
		SplitTotalMultiplier:  2,
		SplitMaxSingle:        500,
		SplitScore:            30,
		DefaultTypicalAmount:  100,
		GeoScore:              20,
		MerchantScore:         15,
		MediumAt:              34,
		HighAt:                67,
		TrendEpsilon:          0,
	}
}

// Signal is one named contribution to a risk score.
type Signal struct {
	Category     pkg.RiskCategory
	Contribution float64
}

// Assessment is the full classification outcome for one transaction.
type Assessment struct {
	HealthScore float64
	RiskScore   float64
	RiskLevel   pkg.RiskLevel
	RiskTrend   pkg.RiskTrend
	Decision    pkg.Decision
	Signals     []Signal
}

// Classify scores txn against the user's baseline and sliding window. It is
// a pure function of its inputs: same profile snapshot, same window snapshot,
// same transaction, same result.
func Classify(cfg Config, txn Transaction, snap ProfileSnapshot, health float64, win WindowSnapshot) Assessment {
	score := cfg.BaseWeight * (100 - health)
	var signals []Signal
	// Categories are a set: rules that tag the same category merge into one
	// signal carrying their summed contribution.
	index := make(map[pkg.RiskCategory]int)
	add := func(cat pkg.RiskCategory, pts float64) {
		if pts <= 0 {
			return
		}
		score += pts
		if i, ok := index[cat]; ok {
			signals[i].Contribution += pts
			return
		}
		index[cat] = len(signals)
		signals = append(signals, Signal{Category: cat, Contribution: pts})
	}

	// Amount anomaly: deviation from the user's own spending distribution.
	if snap.TxnCount >= 2 && snap.StdDevAmount > 0 {
		z := math.Abs(txn.Amount-snap.MeanAmount) / snap.StdDevAmount
		if z >= cfg.AmountZThreshold {
			add(pkg.CategoryAmountAnomaly, math.Min(cfg.AmountZCap, cfg.AmountZScale*z))
		}
	}
	if snap.TxnCount > 2 && snap.MeanAmount > 0 && txn.Amount > cfg.AmountMultiplier*snap.MeanAmount {
		add(pkg.CategoryAmountAnomaly, cfg.AmountMultiplierScore)
	}

	// Velocity: rapid fire against the previous transaction, plus window
	// count measured against the user's historical per-window rate.
	if !snap.LastSeen.IsZero() {
		if gap := txn.Timestamp.Sub(snap.LastSeen); gap >= 0 && gap < cfg.RapidFireGap {
			add(pkg.CategoryVelocity, cfg.RapidFireScore)
		}
	}
	if rate := historicalRate(cfg, snap, txn.Timestamp); rate > 0 && win.Count > 0 {
		ratio := float64(win.Count) / rate
		if ratio >= cfg.VelocityRatio {
			add(pkg.CategoryVelocity, math.Min(cfg.VelocityCap, cfg.VelocityScale*ratio))
		}
	}

	// Split pattern: several sub-threshold amounts summing past the typical
	// spend, the structuring shape.
	typical := snap.MeanAmount
	if snap.TxnCount == 0 {
		typical = cfg.DefaultTypicalAmount
	}
	if win.Count >= cfg.SplitMinCount &&
		win.TotalAmount > cfg.SplitTotalMultiplier*typical &&
		win.MaxAmount < cfg.SplitMaxSingle {
		add(pkg.CategorySplitPattern, cfg.SplitScore)
	}

	// Diversity anomalies only fire once a baseline exists; a first ever
	// transaction is new from everywhere by definition.
	if snap.TxnCount > 0 && !snap.LocationSeen {
		add(pkg.CategoryGeoAnomaly, cfg.GeoScore)
	}
	if snap.TxnCount > 0 && !snap.MerchantSeen {
		add(pkg.CategoryMerchantAnomaly, cfg.MerchantScore)
	}

	for i := range signals {
		signals[i].Contribution = round2(signals[i].Contribution)
	}
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Contribution != signals[j].Contribution {
			return signals[i].Contribution > signals[j].Contribution
		}
		return signals[i].Category < signals[j].Category
	})

	score = round2(clamp(score, 0, 100))
	level := levelFor(cfg, score)
	return Assessment{
		HealthScore: round2(health),
		RiskScore:   score,
		RiskLevel:   level,
		RiskTrend:   trendFor(cfg, snap, score),
		Decision:    decisionFor(level),
		Signals:     signals,
	}
}

// historicalRate estimates the user's long-run transactions per window. The
// lifetime span is widened to at least one window so young accounts do not
// divide by a sliver of history.
func historicalRate(cfg Config, snap ProfileSnapshot, now time.Time) float64 {
	if snap.TxnCount == 0 || cfg.WindowDuration <= 0 {
		return 0
	}
	span := now.Sub(snap.FirstSeen)
	if span < cfg.WindowDuration {
		span = cfg.WindowDuration
	}
	windows := float64(span) / float64(cfg.WindowDuration)
	return math.Max(1, float64(snap.TxnCount)/windows)
}

func levelFor(cfg Config, score float64) pkg.RiskLevel {
	switch {
	case score >= cfg.HighAt:
		return pkg.RiskLevelHigh
	case score >= cfg.MediumAt:
		return pkg.RiskLevelMedium
	default:
		return pkg.RiskLevelLow
	}
}

func trendFor(cfg Config, snap ProfileSnapshot, score float64) pkg.RiskTrend {
	if !snap.HasPrior {
		return pkg.RiskTrendStable
	}
	switch {
	case score > snap.LastRiskScore+cfg.TrendEpsilon:
		return pkg.RiskTrendIncreasing
	case score < snap.LastRiskScore-cfg.TrendEpsilon:
		return pkg.RiskTrendDecreasing
	default:
		return pkg.RiskTrendStable
	}
}

func decisionFor(level pkg.RiskLevel) pkg.Decision {
	switch level {
	case pkg.RiskLevelHigh:
		return pkg.DecisionBlock
	case pkg.RiskLevelMedium:
		return pkg.DecisionVerify
	default:
		return pkg.DecisionAllow
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
