package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/database"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/repositories"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/views"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-worker/internal/observability"
)

const (
	TransactionFeedKey = "feed:transactions"
	AlertFeedKey       = "feed:alerts"
)

// Publisher accepts finished risk records for durable output. Publish is the
// single fallible step of the pipeline's unit of work: it either accepts the
// record or returns an error, never drops silently.
type Publisher interface {
	Publish(rec views.RiskRecord) error
}

type PublisherConfig struct {
	BufferSize int
	FeedLength int64
}

// StorePublisher drains accepted records to Postgres (source of truth) and
// mirrors them onto capped Redis feeds the API serves reads from. A full
// buffer rejects the publish with ErrPublishOverflowCode so the caller can
// unwind its state update and retry the message.
type StorePublisher struct {
	cfg    PublisherConfig
	db     *database.DB
	repo   repositories.RiskRecordRepository
	cache  *redis.Client
	logger *zap.Logger

	ch   chan views.RiskRecord
	wg   sync.WaitGroup
	once sync.Once
}

func NewStorePublisher(logger *zap.Logger, cfg PublisherConfig, db *database.DB, repo repositories.RiskRecordRepository, cache *redis.Client) *StorePublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.FeedLength <= 0 {
		cfg.FeedLength = 500
	}
	return &StorePublisher{
		cfg:    cfg,
		db:     db,
		repo:   repo,
		cache:  cache,
		logger: logger,
		ch:     make(chan views.RiskRecord, cfg.BufferSize),
	}
}

// Publish enqueues rec for durable output. Never blocks: a full buffer is an
// explicit overflow error, surfaced to the caller instead of waiting out the
// backpressure inside the scoring path.
func (p *StorePublisher) Publish(rec views.RiskRecord) error {
	select {
	case p.ch <- rec:
		observability.PublishBufferDepth.Set(float64(len(p.ch)))
		return nil
	default:
		observability.PublishOverflows.Inc()
		return pkg.ErrPublishOverflow
	}
}

// Start launches the drain loop and returns a closer that flushes the
// remaining buffer before returning. Records are drained in publish order so
// the Redis feeds stay most recent first.
func (p *StorePublisher) Start(ctx context.Context) func() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for rec := range p.ch {
			observability.PublishBufferDepth.Set(float64(len(p.ch)))
			p.drain(ctx, rec)
		}
	}()
	return func() {
		p.once.Do(func() { close(p.ch) })
		p.wg.Wait()
	}
}

func (p *StorePublisher) drain(ctx context.Context, rec views.RiskRecord) {
	if rec.IsAlert() {
		now := time.Now().UTC()
		rec.AlertedAt = &now
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(0)), ctx)
	err := backoff.Retry(func() error {
		err := p.persist(ctx, rec)
		if err != nil && !retryablePersistErr(err) {
			// Retrying one unpersistable record forever would stall the
			// drain for every record queued behind it.
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		observability.RecordsDropped.Inc()
		p.logger.Error("risk record dropped, persistence failed terminally",
			zap.String(pkg.TransactionId, rec.TransactionID), zap.Error(err))
		return
	}

	observability.RecordsPublished.WithLabelValues(string(rec.RiskLevel)).Inc()
	if rec.IsAlert() {
		observability.AlertsRaised.Inc()
	}
	p.updateFeeds(ctx, rec)
}

// retryablePersistErr reports whether a persist failure can recover on its
// own. Connection loss, transaction rollbacks, and resource exhaustion do;
// data and constraint errors repeat identically on every attempt.
func retryablePersistErr(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return true
	}
	if len(pgErr.Code) < 2 {
		return true
	}
	switch pgErr.Code[:2] {
	case "08", "40", "53", "57":
		return true
	}
	return false
}

func (p *StorePublisher) persist(ctx context.Context, rec views.RiskRecord) error {
	return p.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := p.repo.Create(ctx, tx, rec); err != nil {
			return err
		}
		if rec.AlertedAt != nil {
			if _, err := p.repo.CreateAlert(ctx, tx, rec.TransactionID, *rec.AlertedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// updateFeeds pushes rec onto the capped read feeds. Feed writes are best
// effort; Postgres already holds the record and the API falls back to it.
func (p *StorePublisher) updateFeeds(ctx context.Context, rec views.RiskRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		p.logger.Error("failed to marshal risk record for feed",
			zap.String(pkg.TransactionId, rec.TransactionID), zap.Error(err))
		return
	}

	pipe := p.cache.Pipeline()
	pipe.LPush(ctx, TransactionFeedKey, payload)
	pipe.LTrim(ctx, TransactionFeedKey, 0, p.cfg.FeedLength-1)
	if rec.AlertedAt != nil {
		pipe.LPush(ctx, AlertFeedKey, payload)
		pipe.LTrim(ctx, AlertFeedKey, 0, p.cfg.FeedLength-1)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		p.logger.Warn("feed update failed, API reads will fall back to Postgres",
			zap.String(pkg.TransactionId, rec.TransactionID), zap.Error(err))
	}
}
