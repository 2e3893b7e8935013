// Package router assembles the HTTP surface: health probes, metrics, the
// key management API, and the guarded route groups.
package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wrensec/keygate/internal/config"
	"github.com/wrensec/keygate/internal/interfaces/http/handlers"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/logger"
)

// Router owns the Gin engine and the HTTP server lifecycle.
type Router struct {
	engine        *gin.Engine
	config        *config.Config
	logger        logger.Logger
	healthHandler *handlers.HealthHandler
	keyHandler    *handlers.KeyHandler
	observability gin.HandlerFunc
	simpleGuard   gin.HandlerFunc
	signedGuard   gin.HandlerFunc
	rateLimit     gin.HandlerFunc
	server        *http.Server
	routesReady   bool
}

// NewRouter creates the router. observability wraps every route with the
// request span and HTTP metrics; the guards are the fully wired api key
// middleware for each strategy; rateLimit is optional and may be nil.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	healthHandler *handlers.HealthHandler,
	keyHandler *handlers.KeyHandler,
	observability gin.HandlerFunc,
	simpleGuard gin.HandlerFunc,
	signedGuard gin.HandlerFunc,
	rateLimit gin.HandlerFunc,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine:        gin.New(),
		config:        cfg,
		logger:        log.WithComponent("http"),
		healthHandler: healthHandler,
		keyHandler:    keyHandler,
		observability: observability,
		simpleGuard:   simpleGuard,
		signedGuard:   signedGuard,
		rateLimit:     rateLimit,
	}
}

// SetupRoutes registers middleware and all route groups. Calling it twice is
// a no-op.
func (r *Router) SetupRoutes() {
	if r.routesReady {
		return
	}
	r.routesReady = true

	r.engine.Use(gin.Recovery())

	if r.observability != nil {
		r.engine.Use(r.observability)
	}

	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", constants.DefaultCredentialHeader},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.engine.GET("/health/live", r.healthHandler.HealthCheck)
	r.engine.GET("/health/ready", r.healthHandler.ReadinessCheck)

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if r.config.Pprof.Enabled {
		pprof.Register(r.engine)
	}

	v1 := r.engine.Group("/api/v1")
	{
		keys := v1.Group("/keys")
		{
			keys.POST("", r.keyHandler.AddKey)
			keys.POST("/reload", r.keyHandler.ReloadKeys)
			keys.DELETE("/:key", r.keyHandler.RemoveKey)
			keys.PUT("/:key", r.keyHandler.RotateKey)
		}

		protected := v1.Group("/protected")
		{
			simple := protected.Group("/simple", r.guardChain(r.simpleGuard)...)
			simple.GET("/ping", pingHandler)

			signed := protected.Group("/signed", r.guardChain(r.signedGuard)...)
			signed.GET("/ping", pingHandler)
			signed.POST("/ping", pingHandler)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "The requested resource was not found",
		})
	})
}

// guardChain appends the rate limiter behind a guard when one is configured.
func (r *Router) guardChain(guard gin.HandlerFunc) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{guard}
	if r.rateLimit != nil {
		chain = append(chain, r.rateLimit)
	}
	return chain
}

// pingHandler answers on guarded routes, echoing the authenticated key.
func pingHandler(c *gin.Context) {
	key, _ := c.Get(string(constants.ContextKeyAPIKey))
	c.JSON(http.StatusOK, gin.H{
		"pong":    time.Now().UTC(),
		"api_key": key,
	})
}

// Start runs the HTTP server. It blocks until the server stops.
func (r *Router) Start() error {
	r.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    r.config.Server.ReadTimeout,
		WriteTimeout:   r.config.Server.WriteTimeout,
		IdleTimeout:    r.config.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	r.logger.Info(context.Background(), "starting http server", logger.String("address", addr))

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "stopping http server")
	return r.server.Shutdown(ctx)
}

// Engine exposes the underlying engine, used by tests.
func (r *Router) Engine() *gin.Engine {
	r.SetupRoutes()
	return r.engine
}
