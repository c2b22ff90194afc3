package views

import (
	"time"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
)

// RawTransaction is the wire shape of an ingested transaction, as accepted
// by the API and carried on the Kafka ingest topic. Field names follow the
// dashboard contract (snake_case). Timestamp stays a string here; parsing
// and validation happen in the worker's normalizer.
type RawTransaction struct {
	TransactionID string  `json:"transaction_id"`
	UserID        string  `json:"user_id"`
	Amount        float64 `json:"amount"`
	Merchant      string  `json:"merchant"`
	Category      string  `json:"category,omitempty"`
	Location      string  `json:"location"`
	Timestamp     string  `json:"timestamp"`
}

// RiskRecord is the published output of the scoring pipeline: exactly one
// per ingested transaction, immutable once built. The JSON shape is the
// contract the dashboard polls.
type RiskRecord struct {
	TransactionID      string             `json:"transaction_id"`
	UserID             string             `json:"user_id"`
	Timestamp          time.Time          `json:"timestamp"`
	Amount             float64            `json:"amount"`
	Merchant           string             `json:"merchant"`
	Location           string             `json:"location"`
	HealthScore        float64            `json:"health_score"`
	RiskScore          float64            `json:"risk_score"`
	RiskLevel          pkg.RiskLevel      `json:"risk_level"`
	RiskTrend          pkg.RiskTrend      `json:"risk_trend"`
	RiskCategory       []pkg.RiskCategory `json:"risk_category"`
	Explanation        string             `json:"explanation"`
	SupportingEvidence []string           `json:"supporting_evidence"`
	Decision           pkg.Decision       `json:"decision"`
	AlertedAt          *time.Time         `json:"alerted_at,omitempty"` // set only on alert feed entries
}

// IsAlert reports whether the record belongs on the alert stream.
func (r RiskRecord) IsAlert() bool {
	return r.RiskLevel == pkg.RiskLevelHigh
}

// UserRiskSummary backs GET /users/:id/risk.
type UserRiskSummary struct {
	UserID            string             `json:"user_id"`
	CurrentRiskScore  float64            `json:"current_risk_score"`
	RiskHistory       []RiskHistoryEntry `json:"risk_history"`
	BehavioralSummary BehavioralSummary  `json:"behavioral_summary"`
}

type RiskHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

type BehavioralSummary struct {
	AvgSpending      float64 `json:"avg_spending"`
	TotalCount       int64   `json:"total_count"`
	LocationsVisited int     `json:"locations_visited"`
}

// UserHealthSummary backs GET /users/:id/health.
type UserHealthSummary struct {
	UserID            string           `json:"user_id"`
	HealthScore       float64          `json:"health_score"`
	HealthStatus      pkg.HealthStatus `json:"health_status"`
	DiagnosticFactors []string         `json:"diagnostic_factors"`
}
