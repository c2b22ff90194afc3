package engine

import (
	"testing"
	"time"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var windowBase = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func windowTxn(id string, at time.Time, amount float64, merchant, location string) Transaction {
	return Transaction{
		TransactionID: id,
		UserID:        "user-1",
		Timestamp:     at,
		Amount:        amount,
		Merchant:      merchant,
		Location:      location,
	}
}

func TestWindowEngine_Aggregates(t *testing.T) {
	w := NewWindowEngine(5 * time.Minute)

	require.NoError(t, w.Insert(windowTxn("t1", windowBase, 100, "BigBox Mart", "Boston, US")))
	require.NoError(t, w.Insert(windowTxn("t2", windowBase.Add(time.Minute), 250, "Corner Coffee", "Boston, US")))
	require.NoError(t, w.Insert(windowTxn("t3", windowBase.Add(2*time.Minute), 50, "BigBox Mart", "Austin, US")))

	snap := w.Query("user-1", windowBase.Add(2*time.Minute))

	assert.Equal(t, 3, snap.Count)
	assert.Equal(t, 400.0, snap.TotalAmount)
	assert.Equal(t, 250.0, snap.MaxAmount)
	assert.Equal(t, 2, snap.DistinctMerchants)
	assert.Equal(t, 2, snap.DistinctLocations)
}

func TestWindowEngine_EvictsExpiredEntries(t *testing.T) {
	w := NewWindowEngine(5 * time.Minute)

	require.NoError(t, w.Insert(windowTxn("t1", windowBase, 100, "BigBox Mart", "Boston, US")))
	require.NoError(t, w.Insert(windowTxn("t2", windowBase.Add(4*time.Minute), 50, "BigBox Mart", "Boston, US")))

	// t1 is now older than the window; only t2 survives.
	snap := w.Query("user-1", windowBase.Add(6*time.Minute))

	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, 50.0, snap.TotalAmount)
}

func TestWindowEngine_EmptyAfterFullWindowElapsed(t *testing.T) {
	w := NewWindowEngine(5 * time.Minute)

	require.NoError(t, w.Insert(windowTxn("t1", windowBase, 100, "BigBox Mart", "Boston, US")))

	snap := w.Query("user-1", windowBase.Add(5*time.Minute+time.Second))

	assert.Equal(t, 0, snap.Count)
	assert.Equal(t, 0.0, snap.TotalAmount)
	assert.Equal(t, 0.0, snap.MaxAmount)
}

func TestWindowEngine_InsertEvictsRelativeToEventTime(t *testing.T) {
	w := NewWindowEngine(5 * time.Minute)

	require.NoError(t, w.Insert(windowTxn("t1", windowBase, 100, "BigBox Mart", "Boston, US")))
	require.NoError(t, w.Insert(windowTxn("t2", windowBase.Add(10*time.Minute), 50, "BigBox Mart", "Boston, US")))

	snap := w.Query("user-1", windowBase.Add(10*time.Minute))

	assert.Equal(t, 1, snap.Count)
}

func TestWindowEngine_TimestampRegressionFails(t *testing.T) {
	w := NewWindowEngine(5 * time.Minute)

	require.NoError(t, w.Insert(windowTxn("t1", windowBase, 100, "BigBox Mart", "Boston, US")))
	err := w.Insert(windowTxn("t2", windowBase.Add(-time.Second), 50, "BigBox Mart", "Boston, US"))

	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrStateIntegrity)
}

func TestWindowEngine_EqualTimestampsAllowed(t *testing.T) {
	w := NewWindowEngine(5 * time.Minute)

	require.NoError(t, w.Insert(windowTxn("t1", windowBase, 100, "BigBox Mart", "Boston, US")))
	assert.NoError(t, w.Insert(windowTxn("t2", windowBase, 50, "BigBox Mart", "Boston, US")))
}

func TestWindowEngine_RollbackRemovesLastInsert(t *testing.T) {
	w := NewWindowEngine(5 * time.Minute)

	require.NoError(t, w.Insert(windowTxn("t1", windowBase, 100, "BigBox Mart", "Boston, US")))
	require.NoError(t, w.Insert(windowTxn("t2", windowBase.Add(time.Minute), 50, "BigBox Mart", "Boston, US")))

	w.Rollback("user-1", "t2")

	snap := w.Query("user-1", windowBase.Add(time.Minute))
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, 100.0, snap.TotalAmount)
}

func TestWindowEngine_RollbackIgnoresStaleID(t *testing.T) {
	w := NewWindowEngine(5 * time.Minute)

	require.NoError(t, w.Insert(windowTxn("t1", windowBase, 100, "BigBox Mart", "Boston, US")))

	w.Rollback("user-1", "t-unknown")

	snap := w.Query("user-1", windowBase)
	assert.Equal(t, 1, snap.Count)
}

func TestWindowEngine_ResetIsolatedPerUser(t *testing.T) {
	w := NewWindowEngine(5 * time.Minute)

	require.NoError(t, w.Insert(windowTxn("t1", windowBase, 100, "BigBox Mart", "Boston, US")))
	other := windowTxn("t2", windowBase, 75, "GasNGo", "Austin, US")
	other.UserID = "user-2"
	require.NoError(t, w.Insert(other))

	w.Reset("user-1")

	assert.Equal(t, 0, w.Query("user-1", windowBase).Count)
	assert.Equal(t, 1, w.Query("user-2", windowBase).Count)
}
