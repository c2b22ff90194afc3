package engine

import (
	"testing"
	"time"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var classifyAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func classifyTxn(amount float64) Transaction {
	return Transaction{
		TransactionID: "txn-1",
		UserID:        "u1",
		Timestamp:     classifyAt,
		Amount:        amount,
		Merchant:      "BigBox Mart",
		Location:      "Boston, US",
	}
}

func contributions(a Assessment) map[pkg.RiskCategory]float64 {
	out := make(map[pkg.RiskCategory]float64)
	for _, s := range a.Signals {
		out[s.Category] += s.Contribution
	}
	return out
}

func TestClassify_FirstTransactionIsQuiet(t *testing.T) {
	cfg := DefaultConfig()

	a := Classify(cfg, classifyTxn(50), ProfileSnapshot{UserID: "u1"}, 100, WindowSnapshot{Count: 1, TotalAmount: 50, MaxAmount: 50})

	assert.Equal(t, 0.0, a.RiskScore)
	assert.Equal(t, pkg.RiskLevelLow, a.RiskLevel)
	assert.Equal(t, pkg.DecisionAllow, a.Decision)
	assert.Equal(t, pkg.RiskTrendStable, a.RiskTrend)
	assert.Empty(t, a.Signals)
}

func TestClassify_AmountZScoreCapped(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{
		UserID:       "u1",
		TxnCount:     10,
		MeanAmount:   100,
		StdDevAmount: 10,
		MerchantSeen: true,
		LocationSeen: true,
		FirstSeen:    classifyAt.Add(-24 * time.Hour),
		LastSeen:     classifyAt.Add(-time.Hour),
	}

	// z = 10, well past the threshold; contribution caps at 35.
	a := Classify(cfg, classifyTxn(200), snap, 20, WindowSnapshot{Count: 1, TotalAmount: 200, MaxAmount: 200})

	byCat := contributions(a)
	assert.Equal(t, 35.0, byCat[pkg.CategoryAmountAnomaly])
	// base 0.4*(100-20)=32 plus the capped 35
	assert.Equal(t, 67.0, a.RiskScore)
	assert.Equal(t, pkg.RiskLevelHigh, a.RiskLevel)
	assert.Equal(t, pkg.DecisionBlock, a.Decision)
}

func TestClassify_AmountMultiplierRule(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{
		UserID:       "u1",
		TxnCount:     5,
		MeanAmount:   50,
		StdDevAmount: 100, // z stays under threshold
		MerchantSeen: true,
		LocationSeen: true,
		FirstSeen:    classifyAt.Add(-24 * time.Hour),
		LastSeen:     classifyAt.Add(-time.Hour),
	}

	a := Classify(cfg, classifyTxn(200), snap, 100, WindowSnapshot{Count: 1, TotalAmount: 200, MaxAmount: 200})

	byCat := contributions(a)
	assert.Equal(t, 30.0, byCat[pkg.CategoryAmountAnomaly])
	assert.Equal(t, 30.0, a.RiskScore)
	assert.Equal(t, pkg.RiskLevelLow, a.RiskLevel)
	assert.Equal(t, pkg.DecisionAllow, a.Decision)
}

func TestClassify_MergesSignalsPerCategory(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{
		UserID:       "u1",
		TxnCount:     5,
		MeanAmount:   100,
		StdDevAmount: 10,
		MerchantSeen: true,
		LocationSeen: true,
		FirstSeen:    classifyAt.Add(-24 * time.Hour),
		LastSeen:     classifyAt.Add(-time.Hour),
	}

	// Both amount rules fire: z of 30 caps at 35 and the 3x multiplier adds
	// 30, but the category appears once with the summed contribution.
	a := Classify(cfg, classifyTxn(400), snap, 100, WindowSnapshot{Count: 1, TotalAmount: 400, MaxAmount: 400})

	seen := make(map[pkg.RiskCategory]int)
	for _, s := range a.Signals {
		seen[s.Category]++
	}
	for cat, n := range seen {
		assert.Equal(t, 1, n, "category %s appears %d times", cat, n)
	}
	require.Contains(t, seen, pkg.CategoryAmountAnomaly)
	assert.Equal(t, 65.0, contributions(a)[pkg.CategoryAmountAnomaly])
	assert.Equal(t, 65.0, a.RiskScore)
}

func TestClassify_RapidFire(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{
		UserID:       "u1",
		TxnCount:     3,
		MeanAmount:   50,
		MerchantSeen: true,
		LocationSeen: true,
		FirstSeen:    classifyAt.Add(-24 * time.Hour),
		LastSeen:     classifyAt.Add(-30 * time.Second),
	}

	a := Classify(cfg, classifyTxn(50), snap, 100, WindowSnapshot{Count: 2, TotalAmount: 100, MaxAmount: 50})

	byCat := contributions(a)
	assert.Equal(t, 15.0, byCat[pkg.CategoryVelocity])
}

func TestClassify_VelocityRatio(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{
		UserID:       "u1",
		TxnCount:     10,
		MeanAmount:   500, // keep split pattern out of the picture
		MerchantSeen: true,
		LocationSeen: true,
		FirstSeen:    classifyAt.Add(-50 * time.Minute), // 10 windows => rate 1/window
		LastSeen:     classifyAt.Add(-2 * time.Minute),
	}

	// 5 in the current window against a historical 1 per window.
	a := Classify(cfg, classifyTxn(50), snap, 100, WindowSnapshot{Count: 5, TotalAmount: 250, MaxAmount: 50})

	byCat := contributions(a)
	assert.Equal(t, 30.0, byCat[pkg.CategoryVelocity]) // 10*5 capped at 30
}

func TestClassify_SplitPattern(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{
		UserID:       "u1",
		TxnCount:     5,
		MeanAmount:   100,
		MerchantSeen: true,
		LocationSeen: true,
		FirstSeen:    classifyAt.Add(-24 * time.Hour),
		LastSeen:     classifyAt.Add(-2 * time.Minute),
	}

	a := Classify(cfg, classifyTxn(90), snap, 100, WindowSnapshot{Count: 3, TotalAmount: 250, MaxAmount: 90})

	byCat := contributions(a)
	assert.Equal(t, 30.0, byCat[pkg.CategorySplitPattern])
}

func TestClassify_SplitPatternNotFiredByLargeSingle(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{
		UserID:       "u1",
		TxnCount:     5,
		MeanAmount:   100,
		MerchantSeen: true,
		LocationSeen: true,
		FirstSeen:    classifyAt.Add(-24 * time.Hour),
		LastSeen:     classifyAt.Add(-2 * time.Hour),
	}

	// One big payment is an amount anomaly, not structuring.
	a := Classify(cfg, classifyTxn(900), snap, 20, WindowSnapshot{Count: 1, TotalAmount: 900, MaxAmount: 900})

	byCat := contributions(a)
	assert.NotContains(t, byCat, pkg.CategorySplitPattern)
}

func TestClassify_DiversityAnomaliesGatedOnHistory(t *testing.T) {
	cfg := DefaultConfig()

	fresh := ProfileSnapshot{UserID: "u1"}
	a := Classify(cfg, classifyTxn(50), fresh, 100, WindowSnapshot{Count: 1, TotalAmount: 50, MaxAmount: 50})
	byCat := contributions(a)
	assert.NotContains(t, byCat, pkg.CategoryGeoAnomaly)
	assert.NotContains(t, byCat, pkg.CategoryMerchantAnomaly)

	established := ProfileSnapshot{
		UserID:     "u1",
		TxnCount:   5,
		MeanAmount: 50,
		FirstSeen:  classifyAt.Add(-24 * time.Hour),
		LastSeen:   classifyAt.Add(-time.Hour),
	}
	a = Classify(cfg, classifyTxn(50), established, 100, WindowSnapshot{Count: 1, TotalAmount: 50, MaxAmount: 50})
	byCat = contributions(a)
	assert.Equal(t, 20.0, byCat[pkg.CategoryGeoAnomaly])
	assert.Equal(t, 15.0, byCat[pkg.CategoryMerchantAnomaly])
}

func TestClassify_Trend(t *testing.T) {
	cfg := DefaultConfig()
	base := ProfileSnapshot{
		UserID:       "u1",
		TxnCount:     5,
		MeanAmount:   50,
		MerchantSeen: true,
		LocationSeen: true,
		FirstSeen:    classifyAt.Add(-24 * time.Hour),
		LastSeen:     classifyAt.Add(-time.Hour),
		HasPrior:     true,
	}
	quiet := WindowSnapshot{Count: 1, TotalAmount: 50, MaxAmount: 50}

	increasing := base
	increasing.LastRiskScore = 0
	a := Classify(cfg, classifyTxn(50), increasing, 20, quiet) // base contribution 32
	assert.Equal(t, pkg.RiskTrendIncreasing, a.RiskTrend)

	decreasing := base
	decreasing.LastRiskScore = 90
	a = Classify(cfg, classifyTxn(50), decreasing, 20, quiet)
	assert.Equal(t, pkg.RiskTrendDecreasing, a.RiskTrend)

	stable := base
	stable.LastRiskScore = 32
	a = Classify(cfg, classifyTxn(50), stable, 20, quiet)
	assert.Equal(t, pkg.RiskTrendStable, a.RiskTrend)
}

func TestClassify_SignalsSortedByContribution(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{
		UserID:     "u1",
		TxnCount:   5,
		MeanAmount: 100,
		FirstSeen:  classifyAt.Add(-24 * time.Hour),
		LastSeen:   classifyAt.Add(-30 * time.Second),
	}

	// velocity merges rapid fire (15) with the window ratio (30) into 45,
	// ahead of split (30), geo (20), and merchant (15)
	a := Classify(cfg, classifyTxn(90), snap, 100, WindowSnapshot{Count: 3, TotalAmount: 250, MaxAmount: 90})

	require.GreaterOrEqual(t, len(a.Signals), 3)
	for i := 1; i < len(a.Signals); i++ {
		assert.GreaterOrEqual(t, a.Signals[i-1].Contribution, a.Signals[i].Contribution)
	}
	assert.Equal(t, pkg.CategoryVelocity, a.Signals[0].Category)
	assert.Equal(t, 45.0, a.Signals[0].Contribution)
}

func TestClassify_ScoreClampedAt100(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{
		UserID:       "u1",
		TxnCount:     10,
		MeanAmount:   20,
		StdDevAmount: 1,
		FirstSeen:    classifyAt.Add(-50 * time.Minute),
		LastSeen:     classifyAt.Add(-10 * time.Second),
	}

	// Everything fires at once: amount z, multiplier, rapid fire, velocity
	// ratio, geo, merchant.
	a := Classify(cfg, classifyTxn(400), snap, 0, WindowSnapshot{Count: 6, TotalAmount: 900, MaxAmount: 400})

	assert.Equal(t, 100.0, a.RiskScore)
	assert.Equal(t, pkg.RiskLevelHigh, a.RiskLevel)
	assert.Equal(t, pkg.DecisionBlock, a.Decision)
}

func TestClassify_IsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{
		UserID:       "u1",
		TxnCount:     7,
		MeanAmount:   80,
		StdDevAmount: 12,
		FirstSeen:    classifyAt.Add(-3 * time.Hour),
		LastSeen:     classifyAt.Add(-40 * time.Second),
		HasPrior:     true,
	}
	win := WindowSnapshot{Count: 4, TotalAmount: 410, MaxAmount: 180, DistinctMerchants: 2, DistinctLocations: 1}

	first := Classify(cfg, classifyTxn(180), snap, 55, win)
	second := Classify(cfg, classifyTxn(180), snap, 55, win)

	assert.Equal(t, first, second)
}
