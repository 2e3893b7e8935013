package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/pkg/logger"
)

type fakeNonceStore struct {
	seen map[string]bool
	err  error
}

func newFakeNonceStore() *fakeNonceStore {
	return &fakeNonceStore{seen: make(map[string]bool)}
}

func (f *fakeNonceStore) Consume(_ context.Context, nonce string, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[nonce] {
		return false, nil
	}
	f.seen[nonce] = true
	return true, nil
}

func guardAt(t *testing.T, nonces NonceStore, disparity time.Duration, now time.Time) *ReplayGuard {
	t.Helper()
	g := NewReplayGuard(nonces, disparity, time.Minute, logger.NewNoopLogger())
	g.now = func() time.Time { return now }
	return g
}

func requestAt(ts int64, nonce string) *models.ValidationRequest {
	return &models.ValidationRequest{
		Timestamp: strconv.FormatInt(ts, 10),
		Nonce:     nonce,
	}
}

func TestReplayGuard_FreshRequest(t *testing.T) {
	now := time.Now()
	g := guardAt(t, newFakeNonceStore(), 5*time.Minute, now)

	reason := g.Check(context.Background(), requestAt(now.UnixMilli(), "n1"))
	assert.Empty(t, reason)
}

func TestReplayGuard_TimestampBoundary(t *testing.T) {
	now := time.Now()
	disparity := 5 * time.Minute

	cases := []struct {
		name   string
		offset time.Duration
		reason models.Reason
	}{
		{"exactly at past boundary", -disparity, ""},
		{"exactly at future boundary", disparity, ""},
		{"one ms past boundary", -(disparity + time.Millisecond), models.ReasonClockSkewExceeded},
		{"one ms beyond future boundary", disparity + time.Millisecond, models.ReasonClockSkewExceeded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := guardAt(t, newFakeNonceStore(), disparity, now)
			ts := now.Add(tc.offset).UnixMilli()
			reason := g.Check(context.Background(), requestAt(ts, "n-"+tc.name))
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestReplayGuard_MalformedTimestamp(t *testing.T) {
	g := guardAt(t, newFakeNonceStore(), time.Minute, time.Now())

	for _, ts := range []string{"", "not-a-number", "12.5", "12x"} {
		reason := g.Check(context.Background(), &models.ValidationRequest{Timestamp: ts, Nonce: "n"})
		assert.Equal(t, models.ReasonClockSkewExceeded, reason, "timestamp=%q", ts)
	}
}

func TestReplayGuard_ReplayedNonce(t *testing.T) {
	now := time.Now()
	g := guardAt(t, newFakeNonceStore(), time.Minute, now)

	req := requestAt(now.UnixMilli(), "n1")
	assert.Empty(t, g.Check(context.Background(), req))
	assert.Equal(t, models.ReasonReplayedNonce, g.Check(context.Background(), req))
}

func TestReplayGuard_EmptyNonce(t *testing.T) {
	now := time.Now()
	g := guardAt(t, newFakeNonceStore(), time.Minute, now)

	reason := g.Check(context.Background(), requestAt(now.UnixMilli(), ""))
	assert.Equal(t, models.ReasonReplayedNonce, reason)
}

func TestReplayGuard_StoreOutageFailsClosed(t *testing.T) {
	now := time.Now()
	store := newFakeNonceStore()
	store.err = errors.New("connection refused")
	g := guardAt(t, store, time.Minute, now)

	reason := g.Check(context.Background(), requestAt(now.UnixMilli(), "n1"))
	assert.Equal(t, models.ReasonStoreUnavailable, reason)
}

func TestReplayGuard_TimestampCheckedBeforeNonce(t *testing.T) {
	// A stale request must be rejected without consuming its nonce.
	now := time.Now()
	store := newFakeNonceStore()
	g := guardAt(t, store, time.Minute, now)

	stale := requestAt(now.Add(-2*time.Minute).UnixMilli(), "n1")
	assert.Equal(t, models.ReasonClockSkewExceeded, g.Check(context.Background(), stale))
	assert.False(t, store.seen["n1"])
}

func TestReplayGuard_UpdateWindow(t *testing.T) {
	now := time.Now()
	g := guardAt(t, newFakeNonceStore(), time.Minute, now)

	old := requestAt(now.Add(-3*time.Minute).UnixMilli(), "n1")
	assert.Equal(t, models.ReasonClockSkewExceeded, g.Check(context.Background(), old))

	g.UpdateWindow(5*time.Minute, 0)
	assert.Empty(t, g.Check(context.Background(), old))
}
