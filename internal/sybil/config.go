package sybil

import "time"

// Default policy values. The policy is deliberately lenient: the platform
// would rather hand 10 credits to a borderline signup than lose a real user.
const (
	DefaultMaxAccountsPerIP      = 4
	DefaultMaxAccountsPerIP7Days = 6
	DefaultRapidSignupThreshold  = 2

	DefaultMediumThreshold   = 50
	DefaultHighThreshold     = 70
	DefaultCriticalThreshold = 85
)

// Signal contributions. Each analyzer's checks are independently additive;
// the aggregate is clamped to [0, 100].
const (
	scoreDeviceBurst      = 30 // 3+ accounts on the same device in 24h
	scoreDeviceReuse      = 15 // 2 accounts on the same device in 24h
	scoreProxyWithLinked  = 10 // proxy/VPN/Tor flag plus an existing account match
	scoreIPBurst          = 35 // 24h per-IP account cap hit
	scoreIPReuse          = 15 // any other account on the IP in 24h
	scoreIPWeekBurst      = 25 // 7d per-IP account cap hit
	scoreDisposableEmail  = 30
	scoreSequentialEmail  = 20
	scoreFakePatternEmail = 15
	scoreRapidSignups     = 25
)

// CreditTable maps each risk level to the recommended credit grant.
type CreditTable struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
	Trusted  int `json:"trusted"`
}

// Config is the immutable policy injected into the engine at construction.
type Config struct {
	// MaxAccountsPerIP is the 24h per-IP account count that triggers the
	// heavy IP penalty.
	MaxAccountsPerIP int
	// MaxAccountsPerIP7Days is the 7-day equivalent.
	MaxAccountsPerIP7Days int
	// RapidSignupThreshold is the signup count per IP per hour above which
	// the behavioral penalty fires (strictly greater than).
	RapidSignupThreshold int

	// RecentWindow and WeekWindow bound the device/IP reuse lookbacks.
	RecentWindow time.Duration
	WeekWindow   time.Duration
	// RapidWindow bounds the behavioral signup count.
	RapidWindow time.Duration

	// AnalyzerTimeout caps how long the analyzer fan-out may spend on store
	// reads. A slow store degrades signals instead of stalling the signup.
	// Zero means no cap.
	AnalyzerTimeout time.Duration

	// Inclusive lower bounds for risk level classification.
	MediumThreshold   int
	HighThreshold     int
	CriticalThreshold int

	// Credits recommended per risk level.
	Credits CreditTable

	// TrustedIPPrefixes short-circuits detection: a matching IP scores 0
	// and receives the trusted credit grant regardless of other signals.
	TrustedIPPrefixes []string
}

// DefaultConfig returns the reference policy.
func DefaultConfig() Config {
	return Config{
		MaxAccountsPerIP:      DefaultMaxAccountsPerIP,
		MaxAccountsPerIP7Days: DefaultMaxAccountsPerIP7Days,
		RapidSignupThreshold:  DefaultRapidSignupThreshold,
		RecentWindow:          24 * time.Hour,
		WeekWindow:            7 * 24 * time.Hour,
		RapidWindow:           time.Hour,
		AnalyzerTimeout:       3 * time.Second,
		MediumThreshold:       DefaultMediumThreshold,
		HighThreshold:         DefaultHighThreshold,
		CriticalThreshold:     DefaultCriticalThreshold,
		Credits: CreditTable{
			Low:      10,
			Medium:   10,
			High:     5,
			Critical: 0,
			Trusted:  10,
		},
	}
}

// Classify maps a clamped score to a risk level using inclusive lower bounds.
func (c Config) Classify(score int) RiskLevel {
	switch {
	case score >= c.CriticalThreshold:
		return RiskCritical
	case score >= c.HighThreshold:
		return RiskHigh
	case score >= c.MediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// CreditsFor returns the recommended grant for a risk level.
func (c Config) CreditsFor(level RiskLevel) int {
	switch level {
	case RiskMedium:
		return c.Credits.Medium
	case RiskHigh:
		return c.Credits.High
	case RiskCritical:
		return c.Credits.Critical
	default:
		return c.Credits.Low
	}
}
