package engine

import (
	"math"
	"sync"
	"time"
)

const riskHistoryCap = 50

// ProfileSnapshot is an immutable copy of a user's behavioral baseline,
// evaluated against a specific transaction. MerchantSeen/LocationSeen are
// resolved at snapshot time so the classifier never touches shared state.
type ProfileSnapshot struct {
	UserID        string
	TxnCount      int64
	MeanAmount    float64
	StdDevAmount  float64
	MerchantCount int
	LocationCount int
	MerchantSeen  bool
	LocationSeen  bool
	FirstSeen     time.Time
	LastSeen      time.Time
	HealthScore   float64
	LastRiskScore float64
	HasPrior      bool
}

type userProfile struct {
	mu sync.Mutex

	count int64
	mean  float64
	m2    float64 // sum of squared deviations (Welford)

	merchants    map[string]struct{}
	locations    map[string]struct{}
	merchantFreq map[string]int64

	firstSeen time.Time
	lastSeen  time.Time

	healthScore   float64
	lastRiskScore float64
	hasPrior      bool
	riskHistory   []float64
}

// ProfileStore keeps one long-lived behavioral profile per user, built
// incrementally with Welford's online algorithm so memory stays O(1) per
// user regardless of history length. Updates for a single user are
// serialized by a per-profile mutex; different users proceed in parallel.
type ProfileStore struct {
	mu           sync.RWMutex
	users        map[string]*userProfile
	healthWeight float64 // k in health = clamp(100 - k*|z|, 0, 100)
}

func NewProfileStore(healthWeight float64) *ProfileStore {
	return &ProfileStore{
		users:        make(map[string]*userProfile),
		healthWeight: healthWeight,
	}
}

// SnapshotFor returns the user's baseline as it stands before txn is
// incorporated, with merchant/location membership resolved for txn.
// A user with no history yields a zero-state snapshot with full health.
func (s *ProfileStore) SnapshotFor(txn Transaction) ProfileSnapshot {
	p := s.getOrCreate(txn.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()

	_, merchantSeen := p.merchants[txn.Merchant]
	_, locationSeen := p.locations[txn.Location]
	return ProfileSnapshot{
		UserID:        txn.UserID,
		TxnCount:      p.count,
		MeanAmount:    p.mean,
		StdDevAmount:  p.stdDevLocked(),
		MerchantCount: len(p.merchants),
		LocationCount: len(p.locations),
		MerchantSeen:  merchantSeen,
		LocationSeen:  locationSeen,
		FirstSeen:     p.firstSeen,
		LastSeen:      p.lastSeen,
		HealthScore:   p.healthScore,
		LastRiskScore: p.lastRiskScore,
		HasPrior:      p.hasPrior,
	}
}

// PreviewHealth computes the health score txn will produce without mutating
// state: the z-score of the amount against the pre-update baseline, mapped
// through clamp(100 - k*|z|, 0, 100). With fewer than two observations the
// deviation is defined as zero.
func (s *ProfileStore) PreviewHealth(txn Transaction) float64 {
	p := s.getOrCreate(txn.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()
	return s.healthForLocked(p, txn.Amount)
}

// Observe incorporates txn into the user's running statistics and diversity
// sets, and recomputes the health score. Returns the resulting snapshot.
func (s *ProfileStore) Observe(txn Transaction) ProfileSnapshot {
	p := s.getOrCreate(txn.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.healthScore = s.healthForLocked(p, txn.Amount)

	// Welford update.
	p.count++
	delta := txn.Amount - p.mean
	p.mean += delta / float64(p.count)
	p.m2 += delta * (txn.Amount - p.mean)

	p.merchants[txn.Merchant] = struct{}{}
	p.locations[txn.Location] = struct{}{}
	p.merchantFreq[txn.Merchant]++

	if p.firstSeen.IsZero() {
		p.firstSeen = txn.Timestamp
	}
	p.lastSeen = txn.Timestamp

	_, merchantSeen := p.merchants[txn.Merchant]
	_, locationSeen := p.locations[txn.Location]
	return ProfileSnapshot{
		UserID:        txn.UserID,
		TxnCount:      p.count,
		MeanAmount:    p.mean,
		StdDevAmount:  p.stdDevLocked(),
		MerchantCount: len(p.merchants),
		LocationCount: len(p.locations),
		MerchantSeen:  merchantSeen,
		LocationSeen:  locationSeen,
		FirstSeen:     p.firstSeen,
		LastSeen:      p.lastSeen,
		HealthScore:   p.healthScore,
		LastRiskScore: p.lastRiskScore,
		HasPrior:      p.hasPrior,
	}
}

// RecordRisk appends a scored transaction to the user's risk timeline and
// becomes the baseline for the next transaction's trend.
func (s *ProfileStore) RecordRisk(userID string, score float64) {
	p := s.getOrCreate(userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastRiskScore = score
	p.hasPrior = true
	p.riskHistory = append(p.riskHistory, score)
	if len(p.riskHistory) > riskHistoryCap {
		p.riskHistory = p.riskHistory[len(p.riskHistory)-riskHistoryCap:]
	}
}

// Reset discards the user's profile. Used when a state integrity violation
// is detected for that user; other users are unaffected.
func (s *ProfileStore) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}

func (s *ProfileStore) getOrCreate(userID string) *userProfile {
	s.mu.RLock()
	p, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.users[userID]; ok {
		return p
	}
	p = &userProfile{
		merchants:    make(map[string]struct{}),
		locations:    make(map[string]struct{}),
		merchantFreq: make(map[string]int64),
		healthScore:  100,
	}
	s.users[userID] = p
	return p
}

func (s *ProfileStore) healthForLocked(p *userProfile, amount float64) float64 {
	sd := p.stdDevLocked()
	if p.count < 2 || sd == 0 {
		return 100
	}
	z := math.Abs(amount-p.mean) / sd
	return clamp(100-s.healthWeight*z, 0, 100)
}

// stdDevLocked returns the sample standard deviation; zero when fewer than
// two observations exist (defined default, never a division by zero).
func (p *userProfile) stdDevLocked() float64 {
	if p.count < 2 {
		return 0
	}
	return math.Sqrt(p.m2 / float64(p.count-1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
