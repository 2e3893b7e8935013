// Package handlers implements the HTTP management surface: key lifecycle
// operations and health probes.
package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wrensec/keygate/internal/infrastructure/persistence/redis"
	"github.com/wrensec/keygate/pkg/logger"
	"gorm.io/gorm"
)

// HealthHandler provides liveness and readiness endpoints.
type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Connection
	log   logger.Logger
}

// NewHealthHandler creates a health handler checking the backing stores.
func NewHealthHandler(db *gorm.DB, redisConn *redis.Connection, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:    db,
		redis: redisConn,
		log:   log,
	}
}

// HealthCheck reports the service and dependency status.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := "healthy"
	checks := h.performChecks(c.Request.Context())

	httpStatus := http.StatusOK
	for _, checkStatus := range checks {
		if checkStatus != "ok" {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// ReadinessCheck reports whether the service can take traffic. Readiness and
// health currently share the same checks.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	h.HealthCheck(c)
}

func (h *HealthHandler) performChecks(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	checks := make(map[string]string)

	record := func(name, status string) {
		mu.Lock()
		checks[name] = status
		mu.Unlock()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		status := "ok"
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status = "error: " + err.Error()
		}
		record("database", status)
	}()
	go func() {
		defer wg.Done()
		status := "ok"
		if err := h.redis.Ping(ctx); err != nil {
			status = "error: " + err.Error()
		}
		record("redis", status)
	}()
	wg.Wait()

	return checks
}
