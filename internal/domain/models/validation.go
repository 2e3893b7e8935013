package models

import (
	"strconv"

	"github.com/wrensec/keygate/pkg/constants"
)

// ================================================================================
// Signature Algorithms
// ================================================================================

// Algorithm selects how a request signature is computed. The set is closed;
// anything outside it fails validation with ReasonUnsupportedAlgorithm.
type Algorithm string

const (
	AlgorithmMD5        Algorithm = "MD5"
	AlgorithmSHA1       Algorithm = "SHA1"
	AlgorithmSHA256     Algorithm = "SHA256"
	AlgorithmHMACSHA256 Algorithm = "HMAC_SHA256"
)

// ParseAlgorithm maps a wire value onto the closed algorithm set.
func ParseAlgorithm(s string) (Algorithm, bool) {
	switch Algorithm(s) {
	case AlgorithmMD5, AlgorithmSHA1, AlgorithmSHA256, AlgorithmHMACSHA256:
		return Algorithm(s), true
	}
	return "", false
}

// ================================================================================
// Validation Request
// ================================================================================

// ValidationRequest captures everything a single signed request presents for
// verification. It is ephemeral; one instance exists per HTTP call. For the
// simple strategy only APIKey is populated.
type ValidationRequest struct {
	APIKey           string
	Algorithm        string
	AlgorithmVersion string
	APIVersion       string
	// Timestamp is epoch milliseconds as a decimal string, exactly as sent.
	Timestamp string
	Nonce     string
	Signature string
	// Params is the merged set of query and body scalars, signature field
	// excluded. Values are the raw (decoded) strings.
	Params map[string]string
}

// TimestampMillis parses the wire timestamp. A missing or non-numeric value
// returns ok=false and the request must fail closed.
func (r *ValidationRequest) TimestampMillis() (int64, bool) {
	if r.Timestamp == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(r.Timestamp, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

// ================================================================================
// Validation Outcome
// ================================================================================

// Reason classifies why a request was denied. Empty means allowed.
type Reason string

const (
	ReasonMissingCredential    Reason = "missing_credential"
	ReasonUnknownKey           Reason = "unknown_key"
	ReasonUnsupportedAlgorithm Reason = "unsupported_algorithm"
	ReasonClockSkewExceeded    Reason = "clock_skew_exceeded"
	ReasonReplayedNonce        Reason = "replayed_nonce"
	ReasonSignatureMismatch    Reason = "signature_mismatch"
	ReasonStoreUnavailable     Reason = "store_unavailable"
	ReasonInternalError        Reason = "internal_error"
)

// ValidationOutcome is the per-request audit payload: which key was
// presented, whether it was admitted, and, on denial, why. It is emitted as
// an event and never persisted by this subsystem.
type ValidationOutcome struct {
	APIKey   string                 `json:"api_key"`
	IsValid  bool                   `json:"is_valid"`
	Reason   Reason                 `json:"reason,omitempty"`
	Strategy constants.AuthStrategy `json:"strategy"`
}
