package keygatesign_test

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/internal/infrastructure/crypto"
	"github.com/wrensec/keygate/sdk/go/keygatesign"
)

func TestSignParams_ServerVerifies(t *testing.T) {
	algorithms := []keygatesign.Algorithm{
		keygatesign.AlgorithmMD5,
		keygatesign.AlgorithmSHA1,
		keygatesign.AlgorithmSHA256,
		keygatesign.AlgorithmHMACSHA256,
	}

	for _, alg := range algorithms {
		t.Run(string(alg), func(t *testing.T) {
			signer := keygatesign.New("client-key", "client-secret", alg)

			signed, err := signer.SignParams(map[string]string{
				"orderId": "o-1001",
				"amount":  "42.50",
			})
			require.NoError(t, err)

			assert.Equal(t, string(alg), signed["Algorithm"])
			assert.NotEmpty(t, signed["timestamp"])
			assert.NotEmpty(t, signed["nonce"])
			require.NotEmpty(t, signed["signature"])

			serverAlg, ok := models.ParseAlgorithm(signed["Algorithm"])
			require.True(t, ok)

			valid, err := crypto.Verify(serverAlg, crypto.Canonicalize(signed), "client-secret", signed["signature"])
			require.NoError(t, err)
			assert.True(t, valid, "server-side verification must accept the SDK signature")
		})
	}
}

func TestSignParams_TimestampIsFreshMillis(t *testing.T) {
	signer := keygatesign.New("client-key", "client-secret", keygatesign.AlgorithmSHA256)

	before := time.Now().UnixMilli()
	signed, err := signer.SignParams(nil)
	require.NoError(t, err)
	after := time.Now().UnixMilli()

	ts, err := strconv.ParseInt(signed["timestamp"], 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts, before)
	assert.LessOrEqual(t, ts, after)
}

func TestSignParams_NoncesAreUnique(t *testing.T) {
	signer := keygatesign.New("client-key", "client-secret", keygatesign.AlgorithmHMACSHA256)

	first, err := signer.SignParams(nil)
	require.NoError(t, err)
	second, err := signer.SignParams(nil)
	require.NoError(t, err)

	assert.NotEqual(t, first["nonce"], second["nonce"])
	assert.NotEqual(t, first["signature"], second["signature"])
}

func TestSignRequest_AttachesQueryAndHeader(t *testing.T) {
	signer := keygatesign.New("client-key", "client-secret", keygatesign.AlgorithmSHA256)

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/v1/orders?orderId=o-1001", nil)
	require.NoError(t, err)
	require.NoError(t, signer.SignRequest(req))

	assert.Equal(t, "client-key", req.Header.Get("api-key"))

	query := req.URL.Query()
	assert.Equal(t, "o-1001", query.Get("orderId"))
	require.NotEmpty(t, query.Get("signature"))

	params := make(map[string]string, len(query))
	for name := range query {
		params[name] = query.Get(name)
	}
	serverAlg, ok := models.ParseAlgorithm(params["Algorithm"])
	require.True(t, ok)

	valid, err := crypto.Verify(serverAlg, crypto.Canonicalize(params), "client-secret", params["signature"])
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestSignParams_UnsupportedAlgorithm(t *testing.T) {
	signer := keygatesign.New("client-key", "client-secret", keygatesign.Algorithm("SHA512"))

	_, err := signer.SignParams(nil)
	require.ErrorIs(t, err, keygatesign.ErrUnsupportedAlgorithm)
}
