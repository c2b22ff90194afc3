package engine

import (
	"math"
	"strings"
	"time"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/utils"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/views"
	"github.com/google/uuid"
)

// Transaction is the canonical, validated form of an ingested event.
// Immutable once built; the window only retains what it needs from it.
type Transaction struct {
	TransactionID string
	UserID        string
	Timestamp     time.Time
	Amount        float64
	Merchant      string
	Category      string
	Location      string
}

// timestamp layouts accepted on ingest, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalize validates a raw payload and canonicalizes it into a Transaction.
// Malformed input is rejected with a validation error naming the offending
// field; the caller drops the event (it is assumed non-recoverable).
// A missing transaction_id is the one repairable omission: ingest sources
// that do not assign ids get a generated one. A supplied id must be a UUID,
// since records are keyed by one durably.
func Normalize(raw views.RawTransaction) (Transaction, error) {
	raw.TransactionID = strings.TrimSpace(raw.TransactionID)
	raw.UserID = strings.TrimSpace(raw.UserID)
	raw.Merchant = strings.TrimSpace(raw.Merchant)
	raw.Location = strings.TrimSpace(raw.Location)
	raw.Timestamp = strings.TrimSpace(raw.Timestamp)

	if utils.IsEmpty(raw.UserID) {
		return Transaction{}, pkg.NewValidationError("user_id", "must not be empty")
	}
	if math.IsNaN(raw.Amount) || math.IsInf(raw.Amount, 0) {
		return Transaction{}, pkg.NewValidationError("amount", "must be a finite number")
	}
	if raw.Amount < 0 {
		return Transaction{}, pkg.NewValidationError("amount", "must not be negative")
	}
	if utils.IsEmpty(raw.Merchant) {
		return Transaction{}, pkg.NewValidationError("merchant", "must not be empty")
	}
	if utils.IsEmpty(raw.Location) {
		return Transaction{}, pkg.NewValidationError("location", "must not be empty")
	}
	if utils.IsEmpty(raw.Timestamp) {
		return Transaction{}, pkg.NewValidationError("timestamp", "must not be empty")
	}

	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return Transaction{}, pkg.NewValidationError("timestamp", "is not a parseable time")
	}

	id := raw.TransactionID
	if utils.IsEmpty(id) {
		id = uuid.New().String()
	} else if _, err = uuid.Parse(id); err != nil {
		return Transaction{}, pkg.NewValidationError("transaction_id", "must be a UUID")
	}

	return Transaction{
		TransactionID: id,
		UserID:        raw.UserID,
		Timestamp:     ts,
		Amount:        raw.Amount,
		Merchant:      raw.Merchant,
		Category:      raw.Category,
		Location:      raw.Location,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
