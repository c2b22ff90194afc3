package pkg

const (
	HeaderTraceId   string = "X-Trace-Id"
	HeaderRequestId string = "X-Request-Id"
)

const (
	TraceId       string = "trace_id"
	RequestId     string = "request_id"
	TransactionId string = "transaction_id"
	UserId        string = "user_id"
)

// RiskLevel classifies a transaction's risk score into coarse bands.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// RiskTrend is the direction of a user's risk score relative to their
// immediately preceding transaction.
type RiskTrend string

const (
	RiskTrendIncreasing RiskTrend = "INCREASING"
	RiskTrendDecreasing RiskTrend = "DECREASING"
	RiskTrendStable     RiskTrend = "STABLE"
)

// Decision is what the pipeline tells the money-movement side to do.
// BLOCK doubles as the biometric-verification trigger; the verification
// flow itself lives outside this system.
type Decision string

const (
	DecisionAllow  Decision = "ALLOW"
	DecisionVerify Decision = "VERIFY"
	DecisionBlock  Decision = "BLOCK"
)

// RiskCategory tags the anomaly signals that fired for a transaction.
type RiskCategory string

const (
	CategoryVelocity        RiskCategory = "VELOCITY"
	CategorySplitPattern    RiskCategory = "SPLIT_PATTERN"
	CategoryGeoAnomaly      RiskCategory = "GEO_ANOMALY"
	CategoryMerchantAnomaly RiskCategory = "MERCHANT_ANOMALY"
	CategoryAmountAnomaly   RiskCategory = "AMOUNT_ANOMALY"
)

// HealthStatus buckets a user's financial health score for display.
type HealthStatus string

const (
	HealthStatusRisky    HealthStatus = "RISKY"
	HealthStatusModerate HealthStatus = "MODERATE"
	HealthStatusHealthy  HealthStatus = "HEALTHY"
)

// HealthStatusFor maps a health score to its display bucket.
func HealthStatusFor(score float64) HealthStatus {
	switch {
	case score <= 40:
		return HealthStatusRisky
	case score <= 70:
		return HealthStatusModerate
	default:
		return HealthStatusHealthy
	}
}
