package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrensec/keygate/internal/domain/models"
)

var allAlgorithms = []models.Algorithm{
	models.AlgorithmMD5,
	models.AlgorithmSHA1,
	models.AlgorithmSHA256,
	models.AlgorithmHMACSHA256,
}

func TestSign_RoundTrip(t *testing.T) {
	canonicals := []string{"", "a=1", "a=1&b=2", "key=has+space&z=%2F"}
	secrets := []string{"s1", "a-much-longer-secret-value"}

	for _, alg := range allAlgorithms {
		for _, canonical := range canonicals {
			for _, secret := range secrets {
				sig, err := Sign(alg, canonical, secret)
				require.NoError(t, err)
				require.NotEmpty(t, sig)

				ok, err := Verify(alg, canonical, secret, sig)
				require.NoError(t, err)
				assert.True(t, ok, "alg=%s canonical=%q", alg, canonical)
			}
		}
	}
}

func TestSign_KeyedHashAppendsSecret(t *testing.T) {
	// The keyed-hash family hashes canonical + "&key=" + secret, not an HMAC.
	sum := md5.Sum([]byte("a=1&b=2&key=s1"))
	want := hex.EncodeToString(sum[:])

	got, err := Sign(models.AlgorithmMD5, "a=1&b=2", "s1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSign_HMACUsesSecretAsKey(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("s1"))
	mac.Write([]byte("a=1&b=2"))
	want := hex.EncodeToString(mac.Sum(nil))

	got, err := Sign(models.AlgorithmHMACSHA256, "a=1&b=2", "s1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerify_TamperDetection(t *testing.T) {
	canonical := "a=1&b=2&c=three"
	secret := "s1"

	for _, alg := range allAlgorithms {
		sig, err := Sign(alg, canonical, secret)
		require.NoError(t, err)

		// Flip every position one at a time; all must fail.
		for i := 0; i < len(sig); i++ {
			mutated := []byte(sig)
			if mutated[i] == 'f' {
				mutated[i] = '0'
			} else {
				mutated[i] = 'f'
			}
			if string(mutated) == sig {
				continue
			}
			ok, err := Verify(alg, canonical, secret, string(mutated))
			require.NoError(t, err)
			assert.False(t, ok, "alg=%s mutation at %d accepted", alg, i)
		}
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	for _, alg := range allAlgorithms {
		sig, err := Sign(alg, "a=1", "right")
		require.NoError(t, err)

		ok, err := Verify(alg, "a=1", "wrong", sig)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestVerify_LengthMismatch(t *testing.T) {
	sig, err := Sign(models.AlgorithmSHA256, "a=1", "s1")
	require.NoError(t, err)

	ok, err := Verify(models.AlgorithmSHA256, "a=1", "s1", sig[:len(sig)-1])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSign_UnsupportedAlgorithm(t *testing.T) {
	_, err := Sign(models.Algorithm("SHA512"), "a=1", "s1")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = Sign(models.Algorithm(""), "a=1", "s1")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	ok, err := Verify(models.Algorithm("md5"), "a=1", "s1", "00")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	assert.False(t, ok)
}

func TestParseAlgorithm_ClosedSet(t *testing.T) {
	for _, alg := range allAlgorithms {
		got, ok := models.ParseAlgorithm(string(alg))
		assert.True(t, ok)
		assert.Equal(t, alg, got)
	}

	for _, bad := range []string{"", "md5", "HMAC-SHA256", "SHA512"} {
		_, ok := models.ParseAlgorithm(bad)
		assert.False(t, ok, "%q should not parse", bad)
	}
}
