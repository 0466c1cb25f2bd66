package sybil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Trusted edge/CDN headers. When one of these delivered the client IP, the
// presence of forwarding headers says nothing about the client using a proxy.
var trustedForwardHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"Fastly-Client-IP",
	"Fly-Client-IP",
	"X-Real-IP",
}

// NormalizeIP reduces a raw remote address or forwarded-for value to a bare
// address: first hop of a comma list, port and IPv6 zone stripped.
func NormalizeIP(raw string) string {
	ip := strings.TrimSpace(raw)
	if i := strings.Index(ip, ","); i >= 0 {
		ip = strings.TrimSpace(ip[:i])
	}
	// Bracketed IPv6 with port, e.g. [::1]:8080
	if strings.HasPrefix(ip, "[") {
		if end := strings.Index(ip, "]"); end > 0 {
			ip = ip[1:end]
		}
	} else if strings.Count(ip, ":") == 1 {
		// host:port for IPv4
		ip = ip[:strings.Index(ip, ":")]
	}
	if i := strings.Index(ip, "%"); i >= 0 {
		ip = ip[:i]
	}
	return strings.ToLower(ip)
}

// ProxyHeuristic inspects forwarding headers and flags a likely proxy chain.
// A request arriving through recognized CDN/edge infrastructure is never
// flagged; only anonymous multi-hop forwarding counts.
func ProxyHeuristic(headers http.Header) bool {
	if headers == nil {
		return false
	}
	for _, h := range trustedForwardHeaders {
		if headers.Get(h) != "" {
			return false
		}
	}
	if headers.Get("Via") != "" || headers.Get("Proxy-Connection") != "" {
		return true
	}
	// More than one hop in X-Forwarded-For without a trusted edge header.
	if fwd := headers.Get("X-Forwarded-For"); strings.Contains(fwd, ",") {
		return true
	}
	return false
}

// analyzeIP scores IP address reuse across accounts.
//
// Three independent checks, all additive: proxy/VPN co-occurrence with an
// existing match, the 24h account-per-IP cap, and the 7-day cap. A proxy flag
// alone never scores; punishing legitimate VPN users is worse than missing
// one duplicate.
func (e *Engine) analyzeIP(ctx context.Context, ip, currentUserID string) Signal {
	sig := zeroSignal("ip")

	rows, err := e.store.IPRecordsByAddress(ctx, ip, currentUserID)
	if err != nil {
		return degradedSignal("ip", err)
	}

	seen := make(map[string]bool)
	for _, row := range rows {
		if !seen[row.UserID] {
			seen[row.UserID] = true
			sig.LinkedAccounts = append(sig.LinkedAccounts, row.UserID)
		}
	}

	if len(rows) > 0 && len(sig.LinkedAccounts) > 0 {
		latest := rows[0]
		if latest.IsProxy || latest.IsVPN || latest.IsTor {
			sig.Score += scoreProxyWithLinked
			sig.Reasons = append(sig.Reasons, "proxy or VPN detected alongside existing accounts on this IP")
		}
	}

	now := time.Now()
	recentCutoff := now.Add(-e.cfg.RecentWindow)
	weekCutoff := now.Add(-e.cfg.WeekWindow)

	recent, week := 0, 0
	for _, row := range rows {
		if row.FirstSeenAt.After(recentCutoff) {
			recent++
		}
		if row.FirstSeenAt.After(weekCutoff) {
			week++
		}
	}

	switch {
	case recent >= e.cfg.MaxAccountsPerIP:
		sig.Score += scoreIPBurst
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("%d accounts created from same IP in 24h", recent))
	case recent > 0:
		sig.Score += scoreIPReuse
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("IP address shared with %d recent accounts", recent))
	}

	if week >= e.cfg.MaxAccountsPerIP7Days {
		sig.Score += scoreIPWeekBurst
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("%d accounts created from same IP in 7 days", week))
	}

	return sig
}
