package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/internal/infrastructure/monitoring"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/errors"
	"github.com/wrensec/keygate/pkg/logger"
)

// KeyHandler exposes the key lifecycle operations of both store variants.
type KeyHandler struct {
	simple  service.KeyStore
	signed  service.KeyStore
	audit   service.AuditService
	metrics *monitoring.Metrics
	log     logger.Logger
}

// NewKeyHandler creates the key management handler.
func NewKeyHandler(
	simple, signed service.KeyStore,
	audit service.AuditService,
	metrics *monitoring.Metrics,
	log logger.Logger,
) *KeyHandler {
	return &KeyHandler{
		simple:  simple,
		signed:  signed,
		audit:   audit,
		metrics: metrics,
		log:     log.WithComponent("key-handler"),
	}
}

type addKeyRequest struct {
	Key      string `json:"key" binding:"required"`
	Secret   string `json:"secret"`
	Strategy string `json:"strategy" binding:"required"`
}

type rotateKeyRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// AddKey registers a new api key under the requested strategy.
func (h *KeyHandler) AddKey(c *gin.Context) {
	var req addKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, "add", errors.ErrInvalidRequest(err.Error()))
		return
	}

	store, ok := h.storeFor(constants.AuthStrategy(req.Strategy))
	if !ok {
		h.respondError(c, "add", errors.ErrInvalidRequest("unknown strategy: "+req.Strategy))
		return
	}

	if err := store.AddKey(c.Request.Context(), req.Key, req.Secret); err != nil {
		h.respondError(c, "add", err)
		return
	}

	h.recordLifecycle(c, constants.AuditEventKeyAdded, req.Key, constants.AuthStrategy(req.Strategy))
	h.count("add", "success")
	c.JSON(http.StatusCreated, gin.H{"key": req.Key, "strategy": req.Strategy})
}

// RemoveKey revokes a key. The strategy query parameter picks the store;
// default is signed.
func (h *KeyHandler) RemoveKey(c *gin.Context) {
	key := c.Param("key")
	strategy := constants.AuthStrategy(c.DefaultQuery("strategy", string(constants.StrategySigned)))

	store, ok := h.storeFor(strategy)
	if !ok {
		h.respondError(c, "remove", errors.ErrInvalidRequest("unknown strategy: "+string(strategy)))
		return
	}

	if err := store.RemoveKey(c.Request.Context(), key); err != nil {
		h.respondError(c, "remove", err)
		return
	}

	h.recordLifecycle(c, constants.AuditEventKeyRemoved, key, strategy)
	h.count("remove", "success")
	c.Status(http.StatusNoContent)
}

// RotateKey replaces the secret of a signed key.
func (h *KeyHandler) RotateKey(c *gin.Context) {
	key := c.Param("key")

	var req rotateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, "rotate", errors.ErrInvalidRequest(err.Error()))
		return
	}

	if err := h.signed.UpdateKey(c.Request.Context(), key, req.Secret); err != nil {
		h.respondError(c, "rotate", err)
		return
	}

	h.recordLifecycle(c, constants.AuditEventKeyRotated, key, constants.StrategySigned)
	h.count("rotate", "success")
	c.JSON(http.StatusOK, gin.H{"key": key})
}

// ReloadKeys re-seeds the shared caches from the backing store.
func (h *KeyHandler) ReloadKeys(c *gin.Context) {
	ctx := c.Request.Context()

	results := gin.H{}
	status := http.StatusOK
	for name, store := range map[string]service.KeyStore{
		string(constants.StrategySimple): h.simple,
		string(constants.StrategySigned): h.signed,
	} {
		if err := store.LoadKeys(ctx); err != nil {
			h.log.Error(ctx, "key reload failed", err, logger.String("strategy", name))
			results[name] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	result := "success"
	if status != http.StatusOK {
		result = "error"
	}
	h.count("reload", result)
	c.JSON(status, results)
}

func (h *KeyHandler) count(operation, result string) {
	if h.metrics != nil {
		h.metrics.RecordKeyOperation(operation, result)
	}
}

func (h *KeyHandler) storeFor(strategy constants.AuthStrategy) (service.KeyStore, bool) {
	switch strategy {
	case constants.StrategySimple:
		return h.simple, true
	case constants.StrategySigned:
		return h.signed, true
	}
	return nil, false
}

func (h *KeyHandler) respondError(c *gin.Context, operation string, err error) {
	h.count(operation, "error")

	status := http.StatusInternalServerError
	if appErr, ok := errors.AsAppError(err); ok {
		status = appErr.HTTPStatus()
	}
	if status >= http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "key operation failed", err,
			logger.String("operation", operation))
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *KeyHandler) recordLifecycle(c *gin.Context, eventType constants.AuditEventType, key string, strategy constants.AuthStrategy) {
	if h.audit == nil {
		return
	}
	event := models.NewAuditEvent(eventType, key)
	event.IsValid = true
	event.Strategy = strategy
	event.IPAddress = c.ClientIP()
	event.UserAgent = c.Request.UserAgent()
	if err := h.audit.LogEvent(c.Request.Context(), event); err != nil {
		h.log.Warn(c.Request.Context(), "failed to emit audit event", logger.Error(err))
	}
}
