package orchestrator

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/envelope"
)

// Rollout splits traffic between the staged orchestrator and the legacy
// path by a deterministic percentage bucket, so one request always lands on
// the same side within its identity.
type Rollout struct {
	modular AskBot
	legacy  AskBot
	enabled bool
	pct     int
}

func NewRollout(modular, legacy AskBot, enabled bool, trafficPct int) *Rollout {
	if trafficPct < 0 {
		trafficPct = 0
	}
	if trafficPct > 100 {
		trafficPct = 100
	}
	return &Rollout{
		modular: modular,
		legacy:  legacy,
		enabled: enabled,
		pct:     trafficPct,
	}
}

func (r *Rollout) Ask(ctx context.Context, req AskRequest) (*envelope.Envelope, int) {
	if r.useModular(req) {
		return r.modular.Ask(ctx, req)
	}
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "request bucketed to legacy path",
		"request_id", req.RequestID)
	return r.legacy.Ask(ctx, req)
}

func (r *Rollout) useModular(req AskRequest) bool {
	if !r.enabled || r.pct <= 0 {
		return false
	}
	if r.pct >= 100 {
		return true
	}
	return bucketOf(fmt.Sprintf("%d|%s|%s", req.UserID, req.RequestID, req.Query)) < r.pct
}

// bucketOf maps an identity string onto [0,100).
func bucketOf(identity string) int {
	sum := md5.Sum([]byte(identity))
	return int(binary.BigEndian.Uint32(sum[:4]) % 100)
}
