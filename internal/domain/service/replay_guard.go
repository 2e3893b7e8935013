package service

import (
	"context"
	"sync"
	"time"

	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/logger"
)

// ReplayGuard rejects stale and replayed signed requests. It runs two
// checks, cheapest first: the local timestamp-window check, then the
// distributed nonce-uniqueness check. Both must pass before signature
// verification is worth computing.
type ReplayGuard struct {
	nonces NonceStore
	log    logger.Logger

	mu        sync.RWMutex
	disparity time.Duration
	nonceTTL  time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewReplayGuard creates a replay guard over the given nonce store.
// Non-positive windows fall back to the defaults.
func NewReplayGuard(nonces NonceStore, disparity, nonceTTL time.Duration, log logger.Logger) *ReplayGuard {
	if disparity <= 0 {
		disparity = constants.DefaultTimestampDisparity
	}
	if nonceTTL <= 0 {
		nonceTTL = constants.DefaultNonceTTL
	}
	return &ReplayGuard{
		nonces:    nonces,
		log:       log.WithComponent("ReplayGuard"),
		disparity: disparity,
		nonceTTL:  nonceTTL,
		now:       time.Now,
	}
}

// UpdateWindow re-tunes the replay windows at runtime. Wired to the config
// watcher so both knobs stay externally tunable without a restart.
func (g *ReplayGuard) UpdateWindow(disparity, nonceTTL time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if disparity > 0 {
		g.disparity = disparity
	}
	if nonceTTL > 0 {
		g.nonceTTL = nonceTTL
	}
}

// Check validates the request's timestamp and nonce. The returned reason is
// empty when the request may proceed to signature verification.
func (g *ReplayGuard) Check(ctx context.Context, req *models.ValidationRequest) models.Reason {
	g.mu.RLock()
	disparity := g.disparity
	nonceTTL := g.nonceTTL
	g.mu.RUnlock()

	ts, ok := req.TimestampMillis()
	if !ok {
		return models.ReasonClockSkewExceeded
	}

	nowMs := g.now().UnixMilli()
	delta := nowMs - ts
	if delta < 0 {
		delta = -delta
	}
	// The boundary itself is accepted; one millisecond past it is not.
	if delta > disparity.Milliseconds() {
		return models.ReasonClockSkewExceeded
	}

	if req.Nonce == "" {
		return models.ReasonReplayedNonce
	}

	fresh, err := g.nonces.Consume(ctx, req.Nonce, nonceTTL)
	if err != nil {
		g.log.Error(ctx, "nonce store unreachable, failing closed", err)
		return models.ReasonStoreUnavailable
	}
	if !fresh {
		return models.ReasonReplayedNonce
	}

	return ""
}
