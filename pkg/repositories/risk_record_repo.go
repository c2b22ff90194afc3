package repositories

import (
	"context"
	"time"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/database"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/views"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type RiskRecordRepository interface {
	// Create inserts a finished risk record. Records are immutable; replays
	// of the same transaction_id are ignored.
	Create(ctx context.Context, tx pgx.Tx, rec views.RiskRecord) (pgconn.CommandTag, error)
	// CreateAlert appends to the append-only alert log.
	CreateAlert(ctx context.Context, tx pgx.Tx, transactionID string, alertedAt time.Time) (pgconn.CommandTag, error)
	// ListRecent returns records most-recent-first, as the dashboard consumes them.
	ListRecent(ctx context.Context, db *database.DB, limit int) ([]views.RiskRecord, error)
	// ListAlerts returns high-risk records most-recent-first with their alert time.
	ListAlerts(ctx context.Context, db *database.DB, limit int) ([]views.RiskRecord, error)
	// UserHistory returns a user's records, oldest-first, capped at limit.
	UserHistory(ctx context.Context, db *database.DB, userID string, limit int) ([]views.RiskRecord, error)
	// UserStats aggregates the behavioral summary for a user.
	UserStats(ctx context.Context, db *database.DB, userID string) (views.BehavioralSummary, error)
}

type RiskRecordRepositoryImpl struct {
}

func NewRiskRecordRepository() RiskRecordRepository {
	return &RiskRecordRepositoryImpl{}
}

const riskRecordColumns = `transaction_id, user_id, txn_timestamp, amount, merchant, location,
		health_score, risk_score, risk_level, risk_trend, risk_category,
		explanation, supporting_evidence, decision`

func (r RiskRecordRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, rec views.RiskRecord) (pgconn.CommandTag, error) {
	categories := make([]string, 0, len(rec.RiskCategory))
	for _, c := range rec.RiskCategory {
		categories = append(categories, string(c))
	}
	return tx.Exec(ctx, `
						INSERT INTO risk_records (`+riskRecordColumns+`)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) ON CONFLICT DO NOTHING`,
		rec.TransactionID,
		rec.UserID,
		rec.Timestamp,
		rec.Amount,
		rec.Merchant,
		rec.Location,
		rec.HealthScore,
		rec.RiskScore,
		string(rec.RiskLevel),
		string(rec.RiskTrend),
		categories,
		rec.Explanation,
		rec.SupportingEvidence,
		string(rec.Decision),
	)
}

func (r RiskRecordRepositoryImpl) CreateAlert(ctx context.Context, tx pgx.Tx, transactionID string, alertedAt time.Time) (pgconn.CommandTag, error) {
	return tx.Exec(ctx, `
						INSERT INTO alerts (transaction_id, alerted_at)
						VALUES ($1, $2) ON CONFLICT (transaction_id) DO NOTHING`,
		transactionID, alertedAt)
}

func (r RiskRecordRepositoryImpl) ListRecent(ctx context.Context, db *database.DB, limit int) ([]views.RiskRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT `+riskRecordColumns+`
		FROM risk_records
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRiskRecords(rows, false)
}

func (r RiskRecordRepositoryImpl) ListAlerts(ctx context.Context, db *database.DB, limit int) ([]views.RiskRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT `+riskRecordColumns+`, a.alerted_at
		FROM alerts a
		JOIN risk_records USING (transaction_id)
		ORDER BY a.alerted_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRiskRecords(rows, true)
}

func (r RiskRecordRepositoryImpl) UserHistory(ctx context.Context, db *database.DB, userID string, limit int) ([]views.RiskRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT `+riskRecordColumns+`
		FROM (
			SELECT `+riskRecordColumns+`, created_at
			FROM risk_records
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRiskRecords(rows, false)
}

func (r RiskRecordRepositoryImpl) UserStats(ctx context.Context, db *database.DB, userID string) (views.BehavioralSummary, error) {
	var summary views.BehavioralSummary
	err := db.QueryRow(ctx, `
		SELECT COALESCE(AVG(amount), 0), COUNT(*), COUNT(DISTINCT location)
		FROM risk_records
		WHERE user_id = $1`, userID).
		Scan(&summary.AvgSpending, &summary.TotalCount, &summary.LocationsVisited)
	return summary, err
}

func scanRiskRecords(rows pgx.Rows, withAlertTime bool) ([]views.RiskRecord, error) {
	var records []views.RiskRecord
	for rows.Next() {
		var rec views.RiskRecord
		var level, trend, decision string
		var categories []string
		dest := []any{
			&rec.TransactionID,
			&rec.UserID,
			&rec.Timestamp,
			&rec.Amount,
			&rec.Merchant,
			&rec.Location,
			&rec.HealthScore,
			&rec.RiskScore,
			&level,
			&trend,
			&categories,
			&rec.Explanation,
			&rec.SupportingEvidence,
			&decision,
		}
		if withAlertTime {
			rec.AlertedAt = new(time.Time)
			dest = append(dest, rec.AlertedAt)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec.RiskLevel = pkg.RiskLevel(level)
		rec.RiskTrend = pkg.RiskTrend(trend)
		rec.Decision = pkg.Decision(decision)
		rec.RiskCategory = make([]pkg.RiskCategory, 0, len(categories))
		for _, c := range categories {
			rec.RiskCategory = append(rec.RiskCategory, pkg.RiskCategory(c))
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
