package crypto

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize_SortsCaseInsensitive(t *testing.T) {
	params := map[string]string{
		"beta":  "2",
		"Alpha": "1",
		"gamma": "3",
	}

	got := Canonicalize(params)
	assert.Equal(t, "Alpha=1&beta=2&gamma=3", got)
}

func TestCanonicalize_StableUnderPermutation(t *testing.T) {
	// Maps randomize iteration order per run; building the same logical set
	// through different insertion orders must not matter either.
	build := func(order []string) map[string]string {
		kv := map[string]string{"a": "1", "B": "2", "c": "3", "d": "x y"}
		out := make(map[string]string, len(kv))
		for _, k := range order {
			out[k] = kv[k]
		}
		return out
	}

	first := Canonicalize(build([]string{"a", "B", "c", "d"}))
	for _, order := range [][]string{
		{"d", "c", "B", "a"},
		{"B", "d", "a", "c"},
		{"c", "a", "d", "B"},
	} {
		assert.Equal(t, first, Canonicalize(build(order)))
	}
}

func TestCanonicalize_ExcludesSignature(t *testing.T) {
	params := map[string]string{
		"a":         "1",
		"signature": "deadbeef",
		"b":         "2",
	}

	got := Canonicalize(params)
	assert.Equal(t, "a=1&b=2", got)
	assert.NotContains(t, got, "signature=")
}

func TestCanonicalize_ExcludesSignatureCaseInsensitive(t *testing.T) {
	got := Canonicalize(map[string]string{"a": "1", "Signature": "deadbeef"})
	assert.Equal(t, "a=1", got)
}

func TestCanonicalize_PercentEncodesValues(t *testing.T) {
	got := Canonicalize(map[string]string{
		"name": "hello world",
		"path": "a/b&c=d",
	})
	assert.Equal(t, "name=hello+world&path=a%2Fb%26c%3Dd", got)
}

func TestCanonicalize_EmptySet(t *testing.T) {
	assert.Equal(t, "", Canonicalize(nil))
	assert.Equal(t, "", Canonicalize(map[string]string{}))
	assert.Equal(t, "", Canonicalize(map[string]string{"signature": "only"}))
}

func TestCanonicalize_NoTrailingDelimiter(t *testing.T) {
	got := Canonicalize(map[string]string{"a": "1"})
	assert.Equal(t, "a=1", got)
	assert.False(t, strings.HasSuffix(got, "&"))
}

func TestCanonicalizeValues_LastOccurrenceWins(t *testing.T) {
	values := url.Values{}
	values.Add("a", "first")
	values.Add("a", "second")
	values.Add("b", "2")

	got := CanonicalizeValues(values)
	assert.Equal(t, "a=second&b=2", got)
}

func TestCanonicalizeValues_EmptyValue(t *testing.T) {
	values := url.Values{"empty": {""}}
	assert.Equal(t, "empty=", CanonicalizeValues(values))
}
