package sybil

import (
	"context"
	"fmt"
	"time"
)

// analyzeBehavior scores signup velocity from the caller's IP.
//
// The fingerprint hash is accepted but unused for now; per-device velocity
// windows can hang off it without changing the analyzer's signature.
func (e *Engine) analyzeBehavior(ctx context.Context, ip, fingerprintHash string) Signal {
	_ = fingerprintHash

	sig := zeroSignal("behavior")

	since := time.Now().Add(-e.cfg.RapidWindow)
	count, err := e.store.CountSignupsByIP(ctx, ip, since)
	if err != nil {
		return degradedSignal("behavior", err)
	}

	if count > e.cfg.RapidSignupThreshold {
		sig.Score = scoreRapidSignups
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("rapid signups: %d accounts in last hour", count))
	}

	return sig
}
