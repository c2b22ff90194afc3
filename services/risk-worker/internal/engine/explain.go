package engine

import (
	"fmt"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
)

// Explanation is the human-readable rationale attached to every risk record.
// Evidence lines follow the signal order, strongest contribution first.
type Explanation struct {
	Summary  string
	Evidence []string
}

const baselineSummary = "Transaction consistent with established behavior."

// BuildExplanation renders the fired signals into analyst-facing text. A
// transaction with no signals gets the neutral baseline summary so every
// record carries a rationale, not just the risky ones.
func BuildExplanation(cfg Config, txn Transaction, snap ProfileSnapshot, win WindowSnapshot, a Assessment) Explanation {
	if len(a.Signals) == 0 {
		return Explanation{Summary: baselineSummary}
	}

	evidence := make([]string, 0, len(a.Signals))
	for _, sig := range a.Signals {
		evidence = append(evidence, evidenceFor(cfg, txn, snap, win, sig))
	}
	return Explanation{
		Summary:  fmt.Sprintf("Flagged %s: %s", a.RiskLevel, evidence[0]),
		Evidence: evidence,
	}
}

func evidenceFor(cfg Config, txn Transaction, snap ProfileSnapshot, win WindowSnapshot, sig Signal) string {
	switch sig.Category {
	case pkg.CategoryVelocity:
		return fmt.Sprintf("%d transactions totaling $%.2f in the last %.0f minutes",
			win.Count, win.TotalAmount, cfg.WindowDuration.Minutes())
	case pkg.CategorySplitPattern:
		return fmt.Sprintf("%d payments under $%.0f each summing to $%.2f, consistent with a split-payment pattern",
			win.Count, cfg.SplitMaxSingle, win.TotalAmount)
	case pkg.CategoryGeoAnomaly:
		return fmt.Sprintf("first activity from %q across %d previously seen locations",
			txn.Location, snap.LocationCount)
	case pkg.CategoryMerchantAnomaly:
		return fmt.Sprintf("first purchase at %q across %d previously seen merchants",
			txn.Merchant, snap.MerchantCount)
	case pkg.CategoryAmountAnomaly:
		return fmt.Sprintf("$%.2f against a typical spend of $%.2f (±$%.2f)",
			txn.Amount, snap.MeanAmount, snap.StdDevAmount)
	default:
		return fmt.Sprintf("%s contributed %.2f points", sig.Category, sig.Contribution)
	}
}
