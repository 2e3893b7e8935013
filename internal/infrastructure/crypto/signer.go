package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/wrensec/keygate/internal/domain/models"
)

// ErrUnsupportedAlgorithm is returned when the algorithm selector is not in
// the supported set. There is no fallback algorithm.
var ErrUnsupportedAlgorithm = fmt.Errorf("unsupported signature algorithm")

// Sign computes the lowercase-hex signature of a canonical string under the
// given algorithm.
//
// The keyed-hash family (MD5, SHA1, SHA256) appends the secret as a
// synthetic "&key=" parameter to the message. This is weaker than a MAC but
// is the wire format those three algorithm names require for compatibility.
// HMAC_SHA256 uses the secret as the actual MAC key.
func Sign(alg models.Algorithm, canonical, secret string) (string, error) {
	switch alg {
	case models.AlgorithmMD5:
		return keyedHash(md5.New(), canonical, secret), nil
	case models.AlgorithmSHA1:
		return keyedHash(sha1.New(), canonical, secret), nil
	case models.AlgorithmSHA256:
		return keyedHash(sha256.New(), canonical, secret), nil
	case models.AlgorithmHMACSHA256:
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(canonical))
		return hex.EncodeToString(mac.Sum(nil)), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// Verify recomputes the signature and compares it to the supplied one in
// constant time, so response timing leaks nothing about how many leading
// characters matched.
func Verify(alg models.Algorithm, canonical, secret, signature string) (bool, error) {
	expected, err := Sign(alg, canonical, secret)
	if err != nil {
		return false, err
	}
	if len(signature) != len(expected) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1, nil
}

func keyedHash(h hash.Hash, canonical, secret string) string {
	h.Write([]byte(canonical))
	h.Write([]byte("&key="))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}
