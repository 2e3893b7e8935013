// Package constants defines shared constants for the keygate service:
// authentication strategies, signing defaults, audit event types, Redis key
// prefixes, and context keys used across layers.
package constants

import "time"

// ================================================================================
// Authentication Strategies
// ================================================================================

// AuthStrategy identifies how an API key authenticates a request.
type AuthStrategy string

const (
	// StrategySimple authenticates by key presence alone.
	StrategySimple AuthStrategy = "simple"
	// StrategySigned authenticates by key plus a request signature.
	StrategySigned AuthStrategy = "signed"
)

// ================================================================================
// Wire Parameter Names
// ================================================================================

// Signed-strategy request parameters. These are exact wire names; clients
// must send them verbatim.
const (
	ParamAlgorithm        = "Algorithm"
	ParamAlgorithmVersion = "AlgorithmVersion"
	ParamAPIVersion       = "ApiVersion"
	ParamTimestamp        = "timestamp"
	ParamNonce            = "nonce"
	ParamSignature        = "signature"
)

// DefaultVersion is the default AlgorithmVersion and ApiVersion.
const DefaultVersion = "v1"

// DefaultCredentialHeader is the header a route falls back to when it does
// not declare a credential field of its own.
const DefaultCredentialHeader = "api-key"

// ================================================================================
// Replay Protection Defaults
// ================================================================================

const (
	// DefaultTimestampDisparity is the allowed clock-skew window for signed
	// requests.
	DefaultTimestampDisparity = 5 * time.Minute
	// DefaultNonceTTL is how long a consumed nonce stays reserved.
	DefaultNonceTTL = 300 * time.Second
	// DefaultStoreTimeout bounds a single round trip to the shared store so
	// the guard fails closed instead of hanging.
	DefaultStoreTimeout = 2 * time.Second
)

// ================================================================================
// Redis Key Prefixes
// ================================================================================

const (
	// NonceKeyPrefix prefixes consumed-nonce markers.
	NonceKeyPrefix = "sign:nonce:"
	// SignedKeyHash is the shared hash mapping api key to secret.
	SignedKeyHash = "sign:keys"
	// SimpleKeySet is the shared set of valid simple-strategy keys.
	SimpleKeySet = "sign:simple-keys"
	// RateLimitKeyPrefix prefixes per-key request counters.
	RateLimitKeyPrefix = "sign:rl:"
)

// ================================================================================
// Audit Event Types
// ================================================================================

// AuditEventType classifies audit trail events.
type AuditEventType string

const (
	// AuditEventKeyValidated is emitted once per guarded request with the
	// validation outcome.
	AuditEventKeyValidated AuditEventType = "api_key.validated"
	// AuditEventKeyAdded is emitted when a key is registered.
	AuditEventKeyAdded AuditEventType = "api_key.added"
	// AuditEventKeyRemoved is emitted when a key is revoked.
	AuditEventKeyRemoved AuditEventType = "api_key.removed"
	// AuditEventKeyRotated is emitted when a signed key's secret changes.
	AuditEventKeyRotated AuditEventType = "api_key.rotated"
)

// ================================================================================
// Error Codes
// ================================================================================

// ErrorCode is a machine-readable error class surfaced by the management API
// and recorded in audit events.
type ErrorCode string

const (
	ErrCodeInvalidRequest         ErrorCode = "invalid_request"
	ErrCodeUnauthorized           ErrorCode = "unauthorized"
	ErrCodeNotFound               ErrorCode = "not_found"
	ErrCodeConflict               ErrorCode = "conflict"
	ErrCodeUnsupportedOperation   ErrorCode = "unsupported_operation"
	ErrCodeServerError            ErrorCode = "server_error"
	ErrCodeTemporarilyUnavailable ErrorCode = "temporarily_unavailable"
)

// ================================================================================
// Logging
// ================================================================================

// LogLevel controls logger verbosity.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type for values stored in a request context.
type ContextKey string

const (
	// ContextKeyRequestID carries the request correlation id.
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeyAPIKey carries the authenticated api key after the guard
	// admits a request.
	ContextKeyAPIKey ContextKey = "api_key"
	// ContextKeyTraceID carries the trace id extracted by middleware.
	ContextKeyTraceID ContextKey = "trace_id"
)
