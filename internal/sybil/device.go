package sybil

import (
	"context"
	"fmt"
	"time"
)

// analyzeDevice scores fingerprint reuse across accounts.
//
// A single coincidental hash match is intentionally not penalized; shared
// machines (families, labs, cafes) produce those all the time. The penalty
// starts at two other accounts within the recent window.
func (e *Engine) analyzeDevice(ctx context.Context, hash, currentUserID string) Signal {
	sig := zeroSignal("device")

	rows, err := e.store.FingerprintsByHash(ctx, hash, currentUserID)
	if err != nil {
		return degradedSignal("device", err)
	}

	seen := make(map[string]bool)
	for _, row := range rows {
		if !seen[row.UserID] {
			seen[row.UserID] = true
			sig.LinkedAccounts = append(sig.LinkedAccounts, row.UserID)
		}
	}

	cutoff := time.Now().Add(-e.cfg.RecentWindow)
	recent := 0
	for _, row := range rows {
		if row.CreatedAt.After(cutoff) {
			recent++
		}
	}

	switch {
	case recent >= 3:
		sig.Score = scoreDeviceBurst
		sig.Reasons = append(sig.Reasons, "multiple accounts created from same device in 24h")
	case recent >= 2:
		sig.Score = scoreDeviceReuse
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("device fingerprint matches %d existing accounts", recent))
	}

	return sig
}
