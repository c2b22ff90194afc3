package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func profileTxn(userID string, at time.Time, amount float64, merchant, location string) Transaction {
	return Transaction{
		TransactionID: "txn",
		UserID:        userID,
		Timestamp:     at,
		Amount:        amount,
		Merchant:      merchant,
		Location:      location,
	}
}

var profileBase = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

func TestProfileStore_FreshUserSnapshot(t *testing.T) {
	s := NewProfileStore(8)

	snap := s.SnapshotFor(profileTxn("u1", profileBase, 50, "BigBox Mart", "Boston, US"))

	assert.Equal(t, int64(0), snap.TxnCount)
	assert.Equal(t, 0.0, snap.MeanAmount)
	assert.Equal(t, 0.0, snap.StdDevAmount)
	assert.Equal(t, 100.0, snap.HealthScore)
	assert.False(t, snap.HasPrior)
	assert.False(t, snap.MerchantSeen)
	assert.False(t, snap.LocationSeen)
}

func TestProfileStore_WelfordMeanAndStdDev(t *testing.T) {
	s := NewProfileStore(8)
	amounts := []float64{10, 20, 30, 40}
	for i, a := range amounts {
		s.Observe(profileTxn("u1", profileBase.Add(time.Duration(i)*time.Minute), a, "BigBox Mart", "Boston, US"))
	}

	snap := s.SnapshotFor(profileTxn("u1", profileBase.Add(time.Hour), 25, "BigBox Mart", "Boston, US"))

	assert.Equal(t, int64(4), snap.TxnCount)
	assert.InDelta(t, 25.0, snap.MeanAmount, 1e-9)
	// Sample std dev of {10,20,30,40} is sqrt(500/3).
	assert.InDelta(t, math.Sqrt(500.0/3.0), snap.StdDevAmount, 1e-9)
}

func TestProfileStore_StdDevZeroBelowTwoObservations(t *testing.T) {
	s := NewProfileStore(8)
	s.Observe(profileTxn("u1", profileBase, 100, "BigBox Mart", "Boston, US"))

	snap := s.SnapshotFor(profileTxn("u1", profileBase.Add(time.Minute), 100, "BigBox Mart", "Boston, US"))

	assert.Equal(t, int64(1), snap.TxnCount)
	assert.Equal(t, 0.0, snap.StdDevAmount)
}

func TestProfileStore_DiversityTracking(t *testing.T) {
	s := NewProfileStore(8)
	s.Observe(profileTxn("u1", profileBase, 10, "BigBox Mart", "Boston, US"))
	s.Observe(profileTxn("u1", profileBase.Add(time.Minute), 20, "Corner Coffee", "Boston, US"))

	known := s.SnapshotFor(profileTxn("u1", profileBase.Add(time.Hour), 15, "Corner Coffee", "Boston, US"))
	assert.True(t, known.MerchantSeen)
	assert.True(t, known.LocationSeen)
	assert.Equal(t, 2, known.MerchantCount)
	assert.Equal(t, 1, known.LocationCount)

	novel := s.SnapshotFor(profileTxn("u1", profileBase.Add(time.Hour), 15, "GasNGo", "Lagos, NG"))
	assert.False(t, novel.MerchantSeen)
	assert.False(t, novel.LocationSeen)
}

func TestProfileStore_PreviewHealthDropsWithDeviation(t *testing.T) {
	s := NewProfileStore(8)
	for i, a := range []float64{100, 102, 98, 101, 99} {
		s.Observe(profileTxn("u1", profileBase.Add(time.Duration(i)*time.Minute), a, "BigBox Mart", "Boston, US"))
	}

	typical := s.PreviewHealth(profileTxn("u1", profileBase.Add(time.Hour), 100, "BigBox Mart", "Boston, US"))
	wild := s.PreviewHealth(profileTxn("u1", profileBase.Add(time.Hour), 900, "BigBox Mart", "Boston, US"))

	assert.Greater(t, typical, 90.0)
	assert.Equal(t, 0.0, wild) // far outside the distribution clamps to the floor
	assert.GreaterOrEqual(t, wild, 0.0)
	assert.LessOrEqual(t, typical, 100.0)
}

func TestProfileStore_PreviewHealthDoesNotMutate(t *testing.T) {
	s := NewProfileStore(8)
	s.Observe(profileTxn("u1", profileBase, 100, "BigBox Mart", "Boston, US"))
	s.Observe(profileTxn("u1", profileBase.Add(time.Minute), 110, "BigBox Mart", "Boston, US"))

	before := s.SnapshotFor(profileTxn("u1", profileBase.Add(time.Hour), 500, "BigBox Mart", "Boston, US"))
	_ = s.PreviewHealth(profileTxn("u1", profileBase.Add(time.Hour), 500, "BigBox Mart", "Boston, US"))
	after := s.SnapshotFor(profileTxn("u1", profileBase.Add(time.Hour), 500, "BigBox Mart", "Boston, US"))

	assert.Equal(t, before, after)
}

func TestProfileStore_RecordRiskDrivesTrendBaseline(t *testing.T) {
	s := NewProfileStore(8)
	s.RecordRisk("u1", 42.5)

	snap := s.SnapshotFor(profileTxn("u1", profileBase, 10, "BigBox Mart", "Boston, US"))

	assert.True(t, snap.HasPrior)
	assert.Equal(t, 42.5, snap.LastRiskScore)
}

func TestProfileStore_ResetDiscardsUserOnly(t *testing.T) {
	s := NewProfileStore(8)
	s.Observe(profileTxn("u1", profileBase, 10, "BigBox Mart", "Boston, US"))
	s.Observe(profileTxn("u2", profileBase, 20, "GasNGo", "Austin, US"))

	s.Reset("u1")

	assert.Equal(t, int64(0), s.SnapshotFor(profileTxn("u1", profileBase, 10, "BigBox Mart", "Boston, US")).TxnCount)
	assert.Equal(t, int64(1), s.SnapshotFor(profileTxn("u2", profileBase, 20, "GasNGo", "Austin, US")).TxnCount)
}

func TestProfileStore_FirstAndLastSeen(t *testing.T) {
	s := NewProfileStore(8)
	s.Observe(profileTxn("u1", profileBase, 10, "BigBox Mart", "Boston, US"))
	snap := s.Observe(profileTxn("u1", profileBase.Add(time.Hour), 20, "BigBox Mart", "Boston, US"))

	assert.Equal(t, profileBase, snap.FirstSeen)
	assert.Equal(t, profileBase.Add(time.Hour), snap.LastSeen)
}
