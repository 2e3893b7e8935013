// Package keygatesign is the client-side SDK for the keygate signed
// strategy. It builds the canonical string, computes the signature, and
// attaches the protocol parameters to outgoing requests. The package is
// self-contained so embedding clients carry no server internals.
package keygatesign

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Algorithm selects the signature computation. The set mirrors what the
// server accepts.
type Algorithm string

const (
	AlgorithmMD5        Algorithm = "MD5"
	AlgorithmSHA1       Algorithm = "SHA1"
	AlgorithmSHA256     Algorithm = "SHA256"
	AlgorithmHMACSHA256 Algorithm = "HMAC_SHA256"
)

// Protocol parameter names, verbatim as the server expects them.
const (
	paramAlgorithm        = "Algorithm"
	paramAlgorithmVersion = "AlgorithmVersion"
	paramAPIVersion       = "ApiVersion"
	paramTimestamp        = "timestamp"
	paramNonce            = "nonce"
	paramSignature        = "signature"

	defaultVersion   = "v1"
	credentialHeader = "api-key"
)

// ErrUnsupportedAlgorithm is returned for algorithm selectors outside the
// supported set.
var ErrUnsupportedAlgorithm = fmt.Errorf("unsupported signature algorithm")

// Signer signs requests for one api key. It is safe for concurrent use.
type Signer struct {
	key       string
	secret    string
	algorithm Algorithm

	now   func() time.Time
	nonce func() string
}

// New creates a signer for the given credential.
func New(key, secret string, algorithm Algorithm) *Signer {
	return &Signer{
		key:       key,
		secret:    secret,
		algorithm: algorithm,
		now:       time.Now,
		nonce:     func() string { return uuid.NewString() },
	}
}

// SignParams returns a copy of params extended with the protocol fields:
// algorithm selectors, a fresh millisecond timestamp, a single-use nonce,
// and the signature over all of it.
func (s *Signer) SignParams(params map[string]string) (map[string]string, error) {
	signed := make(map[string]string, len(params)+6)
	for k, v := range params {
		signed[k] = v
	}
	signed[paramAlgorithm] = string(s.algorithm)
	signed[paramAlgorithmVersion] = defaultVersion
	signed[paramAPIVersion] = defaultVersion
	signed[paramTimestamp] = strconv.FormatInt(s.now().UnixMilli(), 10)
	signed[paramNonce] = s.nonce()

	signature, err := sign(s.algorithm, canonicalize(signed), s.secret)
	if err != nil {
		return nil, err
	}
	signed[paramSignature] = signature
	return signed, nil
}

// SignRequest signs an outgoing request in place: existing query parameters
// are folded into the signature, the protocol parameters join the query
// string, and the credential header is set.
func (s *Signer) SignRequest(req *http.Request) error {
	query := req.URL.Query()

	params := make(map[string]string, len(query))
	for name, values := range query {
		if len(values) > 0 {
			params[name] = values[len(values)-1]
		}
	}

	signed, err := s.SignParams(params)
	if err != nil {
		return err
	}

	for name, value := range signed {
		query.Set(name, value)
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set(credentialHeader, s.key)
	return nil
}

// canonicalize matches the server's canonical-string construction: keys in
// case-insensitive ordinal order, percent-encoded values, the signature
// field excluded.
func canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.EqualFold(k, paramSignature) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if li != lj {
			return li < lj
		}
		return keys[i] < keys[j]
	})

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

func sign(algorithm Algorithm, canonical, secret string) (string, error) {
	switch algorithm {
	case AlgorithmMD5:
		return keyedHash(md5.New(), canonical, secret), nil
	case AlgorithmSHA1:
		return keyedHash(sha1.New(), canonical, secret), nil
	case AlgorithmSHA256:
		return keyedHash(sha256.New(), canonical, secret), nil
	case AlgorithmHMACSHA256:
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(canonical))
		return hex.EncodeToString(mac.Sum(nil)), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

func keyedHash(h hash.Hash, canonical, secret string) string {
	h.Write([]byte(canonical))
	h.Write([]byte("&key="))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}
