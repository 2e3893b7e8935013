package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/internal/interfaces/http/middleware"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeKeyStore scripts validation decisions and captures the request the
// guard built.
type fakeKeyStore struct {
	valid   bool
	reason  models.Reason
	panics  bool
	lastKey string
	lastReq *models.ValidationRequest
}

func (f *fakeKeyStore) LoadKeys(context.Context) error { return nil }

func (f *fakeKeyStore) ValidateKey(_ context.Context, key string, req *models.ValidationRequest) (bool, models.Reason) {
	f.lastKey = key
	f.lastReq = req
	if f.panics {
		panic("store exploded")
	}
	return f.valid, f.reason
}

func (f *fakeKeyStore) AddKey(context.Context, string, string) error    { return nil }
func (f *fakeKeyStore) RemoveKey(context.Context, string) error         { return nil }
func (f *fakeKeyStore) UpdateKey(context.Context, string, string) error { return nil }

// fakeAudit captures emitted events.
type fakeAudit struct {
	events []*models.AuditEvent
}

func (f *fakeAudit) LogEvent(_ context.Context, event *models.AuditEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) Close() error { return nil }

func newGuardedRouter(store *fakeKeyStore, audit *fakeAudit, opts middleware.Options) *gin.Engine {
	r := gin.New()
	guarded := r.Group("/", middleware.RequireAPIKey(store, audit, nil, logger.NewNoopLogger(), opts))
	guarded.GET("/resource", func(c *gin.Context) {
		key, _ := c.Get(string(constants.ContextKeyAPIKey))
		c.JSON(http.StatusOK, gin.H{"key": key})
	})
	guarded.POST("/resource", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireAPIKey_Allow(t *testing.T) {
	store := &fakeKeyStore{valid: true}
	audit := &fakeAudit{}
	r := newGuardedRouter(store, audit, middleware.Options{Strategy: constants.StrategySimple})

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set(constants.DefaultCredentialHeader, "client-a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "client-a")
	assert.Equal(t, "client-a", store.lastKey)

	require.Len(t, audit.events, 1)
	assert.True(t, audit.events[0].IsValid)
	assert.Equal(t, constants.AuditEventKeyValidated, audit.events[0].EventType)
}

func TestRequireAPIKey_DenyIsOpaque(t *testing.T) {
	store := &fakeKeyStore{valid: false, reason: models.ReasonSignatureMismatch}
	audit := &fakeAudit{}
	r := newGuardedRouter(store, audit, middleware.Options{Strategy: constants.StrategySigned})

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set(constants.DefaultCredentialHeader, "client-a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	// The reason stays in the audit trail; the response body must not leak it.
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), string(models.ReasonSignatureMismatch))

	require.Len(t, audit.events, 1)
	assert.False(t, audit.events[0].IsValid)
	assert.Equal(t, string(models.ReasonSignatureMismatch), audit.events[0].Reason)
}

func TestRequireAPIKey_HeaderCaseInsensitive(t *testing.T) {
	store := &fakeKeyStore{valid: true}
	r := newGuardedRouter(store, &fakeAudit{}, middleware.Options{
		Strategy: constants.StrategySimple,
		Field:    "X-Custom-Key",
	})

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("x-cUsToM-kEy", "client-a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client-a", store.lastKey)
}

func TestRequireAPIKey_QuerySource(t *testing.T) {
	store := &fakeKeyStore{valid: true}
	r := newGuardedRouter(store, &fakeAudit{}, middleware.Options{
		Strategy: constants.StrategySigned,
		Field:    "apiKey",
		Source:   middleware.SourceQuery,
	})

	req := httptest.NewRequest(http.MethodGet, "/resource?apiKey=client-a&foo=bar", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client-a", store.lastKey)
	require.NotNil(t, store.lastReq)
	assert.Equal(t, "bar", store.lastReq.Params["foo"])
}

func TestRequireAPIKey_BuildsRequestFromQueryAndBody(t *testing.T) {
	store := &fakeKeyStore{valid: true}
	r := newGuardedRouter(store, &fakeAudit{}, middleware.Options{Strategy: constants.StrategySigned})

	body := `{"Algorithm":"HMAC_SHA256","timestamp":"1700000000000","nonce":"n1","signature":"abc","amount":42}`
	req := httptest.NewRequest(http.MethodPost, "/resource?channel=web", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.DefaultCredentialHeader, "client-a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, store.lastReq)
	assert.Equal(t, "HMAC_SHA256", store.lastReq.Algorithm)
	assert.Equal(t, "1700000000000", store.lastReq.Timestamp)
	assert.Equal(t, "n1", store.lastReq.Nonce)
	assert.Equal(t, "abc", store.lastReq.Signature)
	assert.Equal(t, "web", store.lastReq.Params["channel"])
	assert.Equal(t, "42", store.lastReq.Params["amount"])
}

func TestRequireAPIKey_MissingCredential(t *testing.T) {
	store := &fakeKeyStore{valid: false, reason: models.ReasonMissingCredential}
	audit := &fakeAudit{}
	r := newGuardedRouter(store, audit, middleware.Options{Strategy: constants.StrategySimple})

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "", store.lastKey)
}

func TestRequireAPIKey_PanicDenies(t *testing.T) {
	store := &fakeKeyStore{panics: true}
	audit := &fakeAudit{}
	r := newGuardedRouter(store, audit, middleware.Options{Strategy: constants.StrategySimple})

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set(constants.DefaultCredentialHeader, "client-a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())

	// The decision trail covers internal faults too.
	require.Len(t, audit.events, 1)
	assert.False(t, audit.events[0].IsValid)
	assert.Equal(t, string(models.ReasonInternalError), audit.events[0].Reason)
	assert.Equal(t, "client-a", audit.events[0].APIKey)
}

func TestRequireAPIKey_AppliesVersionDefaults(t *testing.T) {
	store := &fakeKeyStore{valid: true}
	r := newGuardedRouter(store, &fakeAudit{}, middleware.Options{Strategy: constants.StrategySigned})

	req := httptest.NewRequest(http.MethodGet, "/resource?Algorithm=SHA256&timestamp=1700000000000&nonce=n1&signature=abc", nil)
	req.Header.Set(constants.DefaultCredentialHeader, "client-a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, store.lastReq)
	assert.Equal(t, constants.DefaultVersion, store.lastReq.AlgorithmVersion)
	assert.Equal(t, constants.DefaultVersion, store.lastReq.APIVersion)
	// The defaults never join the signing material the client produced.
	assert.NotContains(t, store.lastReq.Params, constants.ParamAlgorithmVersion)
	assert.NotContains(t, store.lastReq.Params, constants.ParamAPIVersion)
}

func TestRequireAPIKey_ExplicitVersionsKept(t *testing.T) {
	store := &fakeKeyStore{valid: true}
	r := newGuardedRouter(store, &fakeAudit{}, middleware.Options{Strategy: constants.StrategySigned})

	req := httptest.NewRequest(http.MethodGet, "/resource?AlgorithmVersion=v2&ApiVersion=v3", nil)
	req.Header.Set(constants.DefaultCredentialHeader, "client-a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, store.lastReq)
	assert.Equal(t, "v2", store.lastReq.AlgorithmVersion)
	assert.Equal(t, "v3", store.lastReq.APIVersion)
}
