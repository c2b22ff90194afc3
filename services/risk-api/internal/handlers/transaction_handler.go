package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/utils"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/views"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-api/configs"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-api/internal/services"
)

type TransactionHandler struct {
	logger    *zap.Logger
	cnf       *configs.Config
	publisher services.KafkaPublisher
	feed      services.FeedService
	limiter   *pkg.DistributedLimiter
}

func NewTransactionHandler(logger *zap.Logger, cnf *configs.Config, publisher services.KafkaPublisher, feed services.FeedService, limiter *pkg.DistributedLimiter) *TransactionHandler {
	return &TransactionHandler{
		logger:    logger,
		cnf:       cnf,
		publisher: publisher,
		feed:      feed,
		limiter:   limiter,
	}
}

// RegisterRoutes registers transaction routes on the provided Gin group.
func (h *TransactionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions", h.IngestTransaction)
	r.GET("/transactions", h.ListTransactions)
	r.GET("/alerts", h.ListAlerts)
	r.GET("/users/:id/risk", h.GetUserRisk)
	r.GET("/users/:id/health", h.GetUserHealth)
}

// IngestTransaction accepts a raw transaction and hands it to the scoring
// pipeline via Kafka. 202: acceptance means queued, not scored.
func (h *TransactionHandler) IngestTransaction(c *gin.Context) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		h.respondError(c, "", err)
		return
	}

	if !h.limiter.Allow(c.Request.Context()) {
		h.respondError(c, traceID, pkg.NewAppError(pkg.ErrRateLimitCode, "ingest rate limit reached", pkg.ErrRateLimitReached))
		return
	}

	var req views.RawTransaction
	if err = c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid request body", err))
		return
	}
	if utils.IsEmpty(req.UserID) {
		h.respondError(c, traceID, pkg.NewValidationError("user_id", "must not be empty"))
		return
	}
	if utils.IsEmpty(req.TransactionID) {
		req.TransactionID = uuid.New().String()
	} else if _, err = uuid.Parse(req.TransactionID); err != nil {
		h.respondError(c, traceID, pkg.NewValidationError("transaction_id", "must be a UUID"))
		return
	}

	if err = h.publisher.PublishTransaction(req); err != nil {
		h.logger.Error("failed to publish transaction",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.TransactionId, req.TransactionID),
			zap.Error(err))
		h.respondError(c, traceID, pkg.NewAppError(pkg.ErrServerCode, "failed to queue transaction", err))
		return
	}

	c.JSON(http.StatusAccepted, pkg.APIResponse{
		TraceID: traceID,
		Data: map[string]interface{}{
			"transaction_id": req.TransactionID,
			"status":         "queued",
		},
	})
}

// ListTransactions returns the most recent risk records, newest first.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	traceID, _ := utils.GetTraceID(c)
	records, err := h.feed.RecentTransactions(c.Request.Context(), traceID, h.limit(c))
	if err != nil {
		h.respondError(c, traceID, err)
		return
	}
	c.JSON(http.StatusOK, pkg.APIResponse{TraceID: traceID, Data: records})
}

// ListAlerts returns the most recent high risk records, newest first.
func (h *TransactionHandler) ListAlerts(c *gin.Context) {
	traceID, _ := utils.GetTraceID(c)
	records, err := h.feed.RecentAlerts(c.Request.Context(), traceID, h.limit(c))
	if err != nil {
		h.respondError(c, traceID, err)
		return
	}
	c.JSON(http.StatusOK, pkg.APIResponse{TraceID: traceID, Data: records})
}

func (h *TransactionHandler) GetUserRisk(c *gin.Context) {
	traceID, _ := utils.GetTraceID(c)
	summary, err := h.feed.UserRisk(c.Request.Context(), traceID, c.Param("id"))
	if err != nil {
		h.respondError(c, traceID, err)
		return
	}
	c.JSON(http.StatusOK, pkg.APIResponse{TraceID: traceID, Data: summary})
}

func (h *TransactionHandler) GetUserHealth(c *gin.Context) {
	traceID, _ := utils.GetTraceID(c)
	summary, err := h.feed.UserHealth(c.Request.Context(), traceID, c.Param("id"))
	if err != nil {
		h.respondError(c, traceID, err)
		return
	}
	c.JSON(http.StatusOK, pkg.APIResponse{TraceID: traceID, Data: summary})
}

// limit parses the optional ?limit query param, clamped to the configured max.
func (h *TransactionHandler) limit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return h.cnf.DefaultFeedLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return h.cnf.DefaultFeedLimit
	}
	if n > h.cnf.MaxFeedLimit {
		return h.cnf.MaxFeedLimit
	}
	return n
}

func (h *TransactionHandler) respondError(c *gin.Context, traceID string, err error) {
	resp := pkg.ToErrorResponse(h.logger, traceID, err)
	c.JSON(resp.Status, resp)
}
