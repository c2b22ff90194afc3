package engine

import (
	"testing"
	"time"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExplanation_QuietTransaction(t *testing.T) {
	cfg := DefaultConfig()
	txn := classifyTxn(50)

	expl := BuildExplanation(cfg, txn, ProfileSnapshot{}, WindowSnapshot{}, Assessment{RiskLevel: pkg.RiskLevelLow})

	assert.Equal(t, "Transaction consistent with established behavior.", expl.Summary)
	assert.Empty(t, expl.Evidence)
}

func TestBuildExplanation_EvidenceFollowsSignalOrder(t *testing.T) {
	cfg := DefaultConfig()
	txn := classifyTxn(90)
	txn.Merchant = "GasNGo"
	txn.Location = "Lagos, NG"
	snap := ProfileSnapshot{MerchantCount: 4, LocationCount: 2, MeanAmount: 100, StdDevAmount: 10}
	win := WindowSnapshot{Count: 3, TotalAmount: 250, MaxAmount: 90}
	a := Assessment{
		RiskLevel: pkg.RiskLevelMedium,
		Signals: []Signal{
			{Category: pkg.CategorySplitPattern, Contribution: 30},
			{Category: pkg.CategoryGeoAnomaly, Contribution: 20},
			{Category: pkg.CategoryMerchantAnomaly, Contribution: 15},
		},
	}

	expl := BuildExplanation(cfg, txn, snap, win, a)

	require.Len(t, expl.Evidence, 3)
	assert.Contains(t, expl.Evidence[0], "split-payment pattern")
	assert.Contains(t, expl.Evidence[0], "$250.00")
	assert.Contains(t, expl.Evidence[1], `"Lagos, NG"`)
	assert.Contains(t, expl.Evidence[2], `"GasNGo"`)
	assert.Contains(t, expl.Summary, "MEDIUM")
	assert.Contains(t, expl.Summary, expl.Evidence[0])
}

func TestBuildExplanation_VelocityNamesWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowDuration = 5 * time.Minute
	win := WindowSnapshot{Count: 7, TotalAmount: 420.5, MaxAmount: 80}
	a := Assessment{
		RiskLevel: pkg.RiskLevelHigh,
		Signals:   []Signal{{Category: pkg.CategoryVelocity, Contribution: 30}},
	}

	expl := BuildExplanation(cfg, classifyTxn(80), ProfileSnapshot{}, win, a)

	require.Len(t, expl.Evidence, 1)
	assert.Equal(t, "7 transactions totaling $420.50 in the last 5 minutes", expl.Evidence[0])
}

func TestBuildExplanation_AmountNamesBaseline(t *testing.T) {
	cfg := DefaultConfig()
	snap := ProfileSnapshot{MeanAmount: 52.3, StdDevAmount: 4.75}
	a := Assessment{
		RiskLevel: pkg.RiskLevelHigh,
		Signals:   []Signal{{Category: pkg.CategoryAmountAnomaly, Contribution: 35}},
	}

	expl := BuildExplanation(cfg, classifyTxn(900), snap, WindowSnapshot{Count: 1}, a)

	require.Len(t, expl.Evidence, 1)
	assert.Equal(t, "$900.00 against a typical spend of $52.30 (±$4.75)", expl.Evidence[0])
}
