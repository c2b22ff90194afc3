package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/database"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/repositories"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/views"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-api/configs"
)

const (
	transactionFeedKey = "feed:transactions"
	alertFeedKey       = "feed:alerts"
)

// FeedService serves the dashboard read model: recent records and alerts
// come from the capped Redis feeds the worker maintains, falling back to
// Postgres when the cache is unavailable. Per-user summaries always read
// from Postgres, the source of truth.
type FeedService interface {
	RecentTransactions(ctx context.Context, traceID string, limit int) ([]views.RiskRecord, error)
	RecentAlerts(ctx context.Context, traceID string, limit int) ([]views.RiskRecord, error)
	UserRisk(ctx context.Context, traceID, userID string) (views.UserRiskSummary, error)
	UserHealth(ctx context.Context, traceID, userID string) (views.UserHealthSummary, error)
}

type FeedServiceImpl struct {
	logger *zap.Logger
	cnf    *configs.Config
	db     *database.DB
	cache  *redis.Client
	repo   repositories.RiskRecordRepository
}

func NewFeedService(logger *zap.Logger, cnf *configs.Config, db *database.DB, cache *redis.Client, repo repositories.RiskRecordRepository) FeedService {
	return &FeedServiceImpl{
		logger: logger,
		cnf:    cnf,
		db:     db,
		cache:  cache,
		repo:   repo,
	}
}

func (s *FeedServiceImpl) RecentTransactions(ctx context.Context, traceID string, limit int) ([]views.RiskRecord, error) {
	return s.feed(ctx, traceID, transactionFeedKey, limit, s.repo.ListRecent)
}

func (s *FeedServiceImpl) RecentAlerts(ctx context.Context, traceID string, limit int) ([]views.RiskRecord, error) {
	return s.feed(ctx, traceID, alertFeedKey, limit, s.repo.ListAlerts)
}

func (s *FeedServiceImpl) feed(ctx context.Context, traceID, key string, limit int,
	fallback func(context.Context, *database.DB, int) ([]views.RiskRecord, error)) ([]views.RiskRecord, error) {

	entries, err := s.cache.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err == nil && len(entries) > 0 {
		records := make([]views.RiskRecord, 0, len(entries))
		for _, entry := range entries {
			var rec views.RiskRecord
			if err = json.Unmarshal([]byte(entry), &rec); err != nil {
				s.logger.Warn("corrupt feed entry, falling back to database",
					zap.String(pkg.TraceId, traceID), zap.String("key", key), zap.Error(err))
				return fallback(ctx, s.db, limit)
			}
			records = append(records, rec)
		}
		return records, nil
	}
	if err != nil {
		s.logger.Warn("feed read failed, falling back to database",
			zap.String(pkg.TraceId, traceID), zap.String("key", key), zap.Error(err))
	}
	return fallback(ctx, s.db, limit)
}

func (s *FeedServiceImpl) UserRisk(ctx context.Context, traceID, userID string) (views.UserRiskSummary, error) {
	history, err := s.repo.UserHistory(ctx, s.db, userID, s.cnf.UserHistoryLimit)
	if err != nil {
		return views.UserRiskSummary{}, err
	}
	if len(history) == 0 {
		return views.UserRiskSummary{}, pkg.NewAppError(pkg.ErrRecordNotFoundCode, "no transactions recorded for user", nil)
	}

	stats, err := s.repo.UserStats(ctx, s.db, userID)
	if err != nil {
		return views.UserRiskSummary{}, err
	}

	entries := make([]views.RiskHistoryEntry, 0, len(history))
	for _, rec := range history {
		entries = append(entries, views.RiskHistoryEntry{Timestamp: rec.Timestamp, Score: rec.RiskScore})
	}
	return views.UserRiskSummary{
		UserID:            userID,
		CurrentRiskScore:  history[len(history)-1].RiskScore,
		RiskHistory:       entries,
		BehavioralSummary: stats,
	}, nil
}

func (s *FeedServiceImpl) UserHealth(ctx context.Context, traceID, userID string) (views.UserHealthSummary, error) {
	history, err := s.repo.UserHistory(ctx, s.db, userID, 1)
	if err != nil {
		return views.UserHealthSummary{}, err
	}
	if len(history) == 0 {
		return views.UserHealthSummary{}, pkg.NewAppError(pkg.ErrRecordNotFoundCode, "no transactions recorded for user", nil)
	}

	latest := history[len(history)-1]
	factors := latest.SupportingEvidence
	if len(factors) == 0 {
		factors = []string{latest.Explanation}
	}
	return views.UserHealthSummary{
		UserID:            userID,
		HealthScore:       latest.HealthScore,
		HealthStatus:      pkg.HealthStatusFor(latest.HealthScore),
		DiagnosticFactors: factors,
	}, nil
}
