package engine

import (
	"sync"
	"time"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
)

// windowEntry is what the velocity window retains per transaction.
type windowEntry struct {
	transactionID string
	timestamp     time.Time
	amount        float64
	merchant      string
	location      string
}

// WindowSnapshot aggregates the user's trailing window at query time.
type WindowSnapshot struct {
	Count             int
	TotalAmount       float64
	MaxAmount         float64
	DistinctMerchants int
	DistinctLocations int
}

type userWindow struct {
	mu      sync.Mutex
	entries []windowEntry
}

// WindowEngine maintains a sliding time window of recent transactions per
// user. Eviction is lazy: expired entries are dropped on the next insert or
// query for that key, never by a background timer, so queries always
// evict-before-read.
type WindowEngine struct {
	mu       sync.RWMutex
	duration time.Duration
	users    map[string]*userWindow
}

func NewWindowEngine(duration time.Duration) *WindowEngine {
	return &WindowEngine{
		duration: duration,
		users:    make(map[string]*userWindow),
	}
}

// Insert appends a transaction to the user's window, evicting everything
// older than the window duration relative to the transaction's own event
// time. Event time within a user must be non-decreasing; a regression means
// the window invariant no longer holds and the caller must reset the user.
func (w *WindowEngine) Insert(txn Transaction) error {
	uw := w.forUser(txn.UserID)
	uw.mu.Lock()
	defer uw.mu.Unlock()

	if n := len(uw.entries); n > 0 && txn.Timestamp.Before(uw.entries[n-1].timestamp) {
		return pkg.NewAppError(pkg.ErrStateIntegrityCode,
			"window entries out of order for user "+txn.UserID, pkg.ErrStateIntegrity)
	}

	uw.entries = evictExpired(uw.entries, txn.Timestamp, w.duration)
	uw.entries = append(uw.entries, windowEntry{
		transactionID: txn.TransactionID,
		timestamp:     txn.Timestamp,
		amount:        txn.Amount,
		merchant:      txn.Merchant,
		location:      txn.Location,
	})
	return nil
}

// Query evicts expired entries relative to now, then aggregates the rest.
func (w *WindowEngine) Query(userID string, now time.Time) WindowSnapshot {
	uw := w.forUser(userID)
	uw.mu.Lock()
	defer uw.mu.Unlock()

	uw.entries = evictExpired(uw.entries, now, w.duration)

	var snap WindowSnapshot
	merchants := make(map[string]struct{})
	locations := make(map[string]struct{})
	for _, e := range uw.entries {
		snap.Count++
		snap.TotalAmount += e.amount
		if e.amount > snap.MaxAmount {
			snap.MaxAmount = e.amount
		}
		merchants[e.merchant] = struct{}{}
		locations[e.location] = struct{}{}
	}
	snap.DistinctMerchants = len(merchants)
	snap.DistinctLocations = len(locations)
	return snap
}

// Rollback removes the most recent entry if it matches transactionID.
// Used to unwind an insert when the rest of the unit of work fails, so a
// retried transaction is not double counted.
func (w *WindowEngine) Rollback(userID, transactionID string) {
	uw := w.forUser(userID)
	uw.mu.Lock()
	defer uw.mu.Unlock()

	if n := len(uw.entries); n > 0 && uw.entries[n-1].transactionID == transactionID {
		uw.entries = uw.entries[:n-1]
	}
}

// Reset discards the user's window state. Other users are unaffected.
func (w *WindowEngine) Reset(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.users, userID)
}

func (w *WindowEngine) forUser(userID string) *userWindow {
	w.mu.RLock()
	uw, ok := w.users[userID]
	w.mu.RUnlock()
	if ok {
		return uw
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if uw, ok = w.users[userID]; ok {
		return uw
	}
	uw = &userWindow{}
	w.users[userID] = uw
	return uw
}

// evictExpired drops entries older than the window, oldest first. Entries
// are time ordered, so the survivors are a suffix.
func evictExpired(entries []windowEntry, now time.Time, duration time.Duration) []windowEntry {
	cutoff := now.Add(-duration)
	idx := 0
	for idx < len(entries) && entries[idx].timestamp.Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return entries
	}
	return append(entries[:0], entries[idx:]...)
}
