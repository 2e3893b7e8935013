// Package middleware provides the Gin middleware of the auth subsystem: the
// api key guard and request observability.
package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/internal/infrastructure/monitoring"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// CredentialSource names where a route carries its api key.
type CredentialSource string

const (
	// SourceHeader reads the credential from a request header.
	SourceHeader CredentialSource = "header"
	// SourceQuery reads the credential from a query parameter.
	SourceQuery CredentialSource = "query"
)

// Options configures the guard for one route group.
type Options struct {
	// Strategy picks which key store variant guards the route.
	Strategy constants.AuthStrategy
	// Field is the header or parameter carrying the credential. Empty
	// falls back to the default credential header.
	Field string
	// Source is where the credential travels. Empty means header.
	Source CredentialSource
}

func (o Options) field() string {
	if o.Field == "" {
		return constants.DefaultCredentialHeader
	}
	return o.Field
}

func (o Options) source() CredentialSource {
	if o.Source == "" {
		return SourceHeader
	}
	return o.Source
}

// RequireAPIKey guards a route group with the given key store. Every request
// resolves to an explicit allow or deny; any internal fault, panic included,
// denies. The decision is always audited.
func RequireAPIKey(
	store service.KeyStore,
	audit service.AuditService,
	metrics *monitoring.Metrics,
	log logger.Logger,
	opts Options,
) gin.HandlerFunc {
	log = log.WithComponent("apikey-guard")

	return func(c *gin.Context) {
		start := time.Now()

		var key string
		decided := false
		defer func() {
			if r := recover(); r != nil {
				log.Error(c.Request.Context(), "panic in api key guard",
					fmt.Errorf("%v", r))
				if !decided {
					// Every request gets a decision event, the panic
					// path included.
					outcome := models.ValidationOutcome{
						APIKey:   key,
						IsValid:  false,
						Reason:   models.ReasonInternalError,
						Strategy: opts.Strategy,
					}
					emitAudit(c, audit, log, outcome)
					recordMetrics(metrics, outcome, time.Since(start))
					deny(c)
				}
			}
		}()

		key = extractCredential(c, opts)
		req := buildValidationRequest(c, key)

		valid, reason := store.ValidateKey(c.Request.Context(), key, req)

		outcome := models.ValidationOutcome{
			APIKey:   key,
			IsValid:  valid,
			Reason:   reason,
			Strategy: opts.Strategy,
		}
		emitAudit(c, audit, log, outcome)
		recordMetrics(metrics, outcome, time.Since(start))

		decided = true
		if !valid {
			log.Debug(c.Request.Context(), "request denied",
				logger.String("api_key", logger.MaskKey(key)),
				logger.String("reason", string(reason)))
			deny(c)
			return
		}

		c.Set(string(constants.ContextKeyAPIKey), key)
		c.Next()
	}
}

// deny aborts with an opaque 401. The classifying reason goes to the audit
// trail, never to the caller.
func deny(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "unauthorized",
	})
}

func extractCredential(c *gin.Context, opts Options) string {
	if opts.source() == SourceQuery {
		return c.Query(opts.field())
	}
	// http.Header lookups are canonicalized, so the header name matches
	// regardless of the case the client sent.
	return c.GetHeader(opts.field())
}

// buildValidationRequest collects the signing material of the request: query
// parameters merged with body scalars, body winning on collision.
func buildValidationRequest(c *gin.Context, key string) *models.ValidationRequest {
	params := make(map[string]string)

	query := c.Request.URL.Query()
	for name, values := range query {
		if len(values) > 0 {
			params[name] = values[len(values)-1]
		}
	}

	mergeBodyParams(c, params)

	req := &models.ValidationRequest{
		APIKey:           key,
		Algorithm:        params[constants.ParamAlgorithm],
		AlgorithmVersion: withDefault(params[constants.ParamAlgorithmVersion], constants.DefaultVersion),
		APIVersion:       withDefault(params[constants.ParamAPIVersion], constants.DefaultVersion),
		Timestamp:        params[constants.ParamTimestamp],
		Nonce:            params[constants.ParamNonce],
		Signature:        params[constants.ParamSignature],
		Params:           params,
	}
	return req
}

// withDefault fills omitted version fields. Only the request struct gets the
// default; params stays as the client sent it, since the defaults were never
// part of the signed canonical string.
func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// mergeBodyParams folds form fields or top-level JSON scalars into params.
// The body is restored afterwards so downstream handlers can read it.
func mergeBodyParams(c *gin.Context, params map[string]string) {
	if c.Request.Body == nil || c.Request.Method == http.MethodGet {
		return
	}

	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if err := c.Request.ParseForm(); err != nil {
			return
		}
		for name, values := range c.Request.PostForm {
			if len(values) > 0 {
				params[name] = values[len(values)-1]
			}
		}

	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
			return
		}
		for name, values := range c.Request.PostForm {
			if len(values) > 0 {
				params[name] = values[len(values)-1]
			}
		}

	case strings.HasPrefix(contentType, "application/json"):
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return
		}
		c.Request.Body = io.NopCloser(strings.NewReader(string(body)))

		var fields map[string]interface{}
		if err := json.Unmarshal(body, &fields); err != nil {
			return
		}
		for name, value := range fields {
			switch v := value.(type) {
			case string:
				params[name] = v
			case float64:
				params[name] = strconv.FormatFloat(v, 'f', -1, 64)
			case bool:
				params[name] = fmt.Sprintf("%t", v)
			}
		}
	}
}

func emitAudit(c *gin.Context, audit service.AuditService, log logger.Logger, outcome models.ValidationOutcome) {
	if audit == nil {
		return
	}

	traceID := ""
	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
	}

	event := models.NewValidationEvent(outcome).
		WithContextInfo(c.ClientIP(), c.Request.UserAgent(), traceID)
	if err := audit.LogEvent(c.Request.Context(), event); err != nil {
		log.Warn(c.Request.Context(), "failed to emit audit event", logger.Error(err))
	}
}

func recordMetrics(metrics *monitoring.Metrics, outcome models.ValidationOutcome, elapsed time.Duration) {
	if metrics == nil {
		return
	}

	result := "deny"
	if outcome.IsValid {
		result = "allow"
	}
	metrics.RecordValidation(string(outcome.Strategy), result, string(outcome.Reason), elapsed)

	switch outcome.Reason {
	case models.ReasonReplayedNonce, models.ReasonClockSkewExceeded:
		metrics.RecordReplayRejection(string(outcome.Reason))
	}
}
