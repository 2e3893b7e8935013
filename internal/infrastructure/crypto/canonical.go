// Package crypto implements the signing primitives of the keygate protocol:
// canonical-string construction and the interchangeable signature algorithms
// computed over it.
package crypto

import (
	"net/url"
	"sort"
	"strings"

	"github.com/wrensec/keygate/pkg/constants"
)

// Canonicalize serializes signable parameters into the deterministic string
// both client and server sign. Keys sort by case-insensitive ordinal order
// (no locale-aware collation, so the result is environment-independent),
// values are percent-encoded, pairs join as key=value with "&". The
// signature parameter itself is always excluded. An empty parameter set
// yields an empty string.
func Canonicalize(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.EqualFold(k, constants.ParamSignature) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if li != lj {
			return li < lj
		}
		// Tie-break on the raw key so equal-fold duplicates still order
		// deterministically.
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

// CanonicalizeValues flattens url.Values into the scalar map Canonicalize
// expects. A parameter that appears more than once resolves to its last
// occurrence; the protocol does not support duplicate signed parameters and
// this is the documented tie-break.
func CanonicalizeValues(values url.Values) string {
	params := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			params[k] = ""
			continue
		}
		params[k] = vs[len(vs)-1]
	}
	return Canonicalize(params)
}
