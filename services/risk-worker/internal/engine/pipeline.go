package engine

import (
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/utils"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/views"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-worker/internal/observability"
)

type unit struct {
	raw views.RawTransaction
	ack func(error)
}

// PipelineConfig sizes the shard pool and bounds the in-place publish retry.
type PipelineConfig struct {
	ShardCount       int
	QueueDepth       int
	PublishAttempts  int
	RetryBaseBackoff time.Duration
	MaxRetryBackoff  time.Duration
}

// Pipeline routes transactions onto shard queues hashed by user id, so each
// user's events are scored strictly in arrival order while distinct users
// proceed in parallel. One goroutine owns each shard.
type Pipeline struct {
	cfg       Config
	pcfg      PipelineConfig
	shards    []chan unit
	profiles  *ProfileStore
	windows   *WindowEngine
	publisher Publisher
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewPipeline(logger *zap.Logger, cfg Config, pcfg PipelineConfig, profiles *ProfileStore, windows *WindowEngine, publisher Publisher) *Pipeline {
	if pcfg.ShardCount <= 0 {
		pcfg.ShardCount = 8
	}
	if pcfg.QueueDepth <= 0 {
		pcfg.QueueDepth = 256
	}
	if pcfg.PublishAttempts <= 0 {
		pcfg.PublishAttempts = 5
	}
	if pcfg.RetryBaseBackoff <= 0 {
		pcfg.RetryBaseBackoff = 100 * time.Millisecond
	}
	if pcfg.MaxRetryBackoff <= 0 {
		pcfg.MaxRetryBackoff = 5 * time.Second
	}
	shards := make([]chan unit, pcfg.ShardCount)
	for i := range shards {
		shards[i] = make(chan unit, pcfg.QueueDepth)
	}
	return &Pipeline{
		cfg:       cfg,
		pcfg:      pcfg,
		shards:    shards,
		profiles:  profiles,
		windows:   windows,
		publisher: publisher,
		logger:    logger,
	}
}

// Start launches one worker per shard and returns a closer that drains every
// queued transaction before returning.
func (p *Pipeline) Start() func() {
	for i := range p.shards {
		p.wg.Add(1)
		go func(idx int) {
			defer p.wg.Done()
			label := strconv.Itoa(idx)
			for u := range p.shards[idx] {
				observability.ShardDepth.WithLabelValues(label).Set(float64(len(p.shards[idx])))
				u.ack(p.process(u.raw))
			}
		}(i)
	}
	return func() {
		for _, ch := range p.shards {
			close(ch)
		}
		p.wg.Wait()
	}
}

// Submit queues raw onto its user's shard. Blocks when the shard is full,
// which is the backpressure the Kafka consumer relies on. ack runs on the
// shard goroutine once the transaction is fully processed.
func (p *Pipeline) Submit(raw views.RawTransaction, ack func(error)) {
	p.shards[p.shardFor(raw.UserID)] <- unit{raw: raw, ack: ack}
}

func (p *Pipeline) shardFor(userID string) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(p.shards)))
}

// process runs one transaction through the full unit of work: normalize,
// window update, classify, explain, publish, then commit the profile update.
// Per-user state mutates only after the publisher accepts the record, so a
// rejected publish leaves state exactly as it was and the message can retry.
func (p *Pipeline) process(raw views.RawTransaction) error {
	start := time.Now()
	observability.TransactionsIngested.Inc()

	txn, err := Normalize(raw)
	if err != nil {
		var appErr pkg.AppError
		if errors.As(err, &appErr) {
			observability.ValidationFailures.WithLabelValues(appErr.Field).Inc()
		}
		p.logger.Warn("transaction rejected",
			zap.String(pkg.TransactionId, raw.TransactionID),
			zap.String(pkg.UserId, raw.UserID),
			zap.Error(err))
		return err
	}

	snap := p.profiles.SnapshotFor(txn)

	if err = p.windows.Insert(txn); err != nil {
		p.resetUser(txn.UserID, err)
		return err
	}
	win := p.windows.Query(txn.UserID, txn.Timestamp)

	health := p.profiles.PreviewHealth(txn)
	assessment := Classify(p.cfg, txn, snap, health, win)
	expl := BuildExplanation(p.cfg, txn, snap, win, assessment)

	rec := buildRecord(txn, assessment, expl)
	if err = p.publishWithRetry(rec); err != nil {
		// Unwind the window insert so a redelivery is not double counted.
		p.windows.Rollback(txn.UserID, txn.TransactionID)
		p.logger.Warn("publish rejected after retries, transaction dead-letters",
			zap.String(pkg.TransactionId, txn.TransactionID),
			zap.Error(err))
		return err
	}

	p.profiles.Observe(txn)
	p.profiles.RecordRisk(txn.UserID, assessment.RiskScore)
	observability.ScoringLatency.Observe(time.Since(start).Seconds())
	return nil
}

// publishWithRetry retries a publish overflow on the shard goroutine itself.
// Holding the shard keeps this user's later events queued behind the stalled
// one, so per-user order survives the retry. Any other error is terminal.
func (p *Pipeline) publishWithRetry(rec views.RiskRecord) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = p.publisher.Publish(rec); err == nil || !errors.Is(err, pkg.ErrPublishOverflow) {
			return err
		}
		if attempt >= p.pcfg.PublishAttempts {
			return err
		}
		time.Sleep(utils.CalculateExponentialBackoffWithJitter(attempt, p.pcfg.RetryBaseBackoff, p.pcfg.MaxRetryBackoff))
	}
}

func (p *Pipeline) resetUser(userID string, cause error) {
	observability.StateResets.Inc()
	p.profiles.Reset(userID)
	p.windows.Reset(userID)
	p.logger.Error("user state discarded after integrity violation",
		zap.String(pkg.UserId, userID),
		zap.Error(cause))
}

func buildRecord(txn Transaction, a Assessment, expl Explanation) views.RiskRecord {
	categories := make([]pkg.RiskCategory, 0, len(a.Signals))
	for _, sig := range a.Signals {
		categories = append(categories, sig.Category)
	}
	return views.RiskRecord{
		TransactionID:      txn.TransactionID,
		UserID:             txn.UserID,
		Timestamp:          txn.Timestamp,
		Amount:             txn.Amount,
		Merchant:           txn.Merchant,
		Location:           txn.Location,
		HealthScore:        a.HealthScore,
		RiskScore:          a.RiskScore,
		RiskLevel:          a.RiskLevel,
		RiskTrend:          a.RiskTrend,
		RiskCategory:       categories,
		Explanation:        expl.Summary,
		SupportingEvidence: expl.Evidence,
		Decision:           a.Decision,
	}
}
