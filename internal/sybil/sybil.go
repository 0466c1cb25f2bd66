// Package sybil implements duplicate-account risk scoring for signups.
//
// Every signup is evaluated against 4 independent signals: device fingerprint
// reuse, IP address reuse, email quality, and recent signup velocity. Signal
// contributions are summed and clamped to 0-100, classified into a risk level,
// and mapped to a recommended credit grant. No failure inside this package may
// ever fail a signup; degraded signals score zero.
package sybil

import (
	"context"
	"errors"
	"time"
)

var (
	ErrFingerprintNotFound = errors.New("fingerprint not found")
	ErrIPRecordNotFound    = errors.New("ip record not found")
)

// RiskLevel classifies an aggregated risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Activity event types recorded against the append-only activity log.
const (
	EventSignup         = "signup"
	EventLogin          = "login"
	EventRender         = "render"
	EventCreditPurchase = "credit_purchase"
	EventLogout         = "logout"
)

// Fingerprint is one stored device fingerprint row. Many rows may share the
// same Hash across different users; that overlap is the device reuse signal.
type Fingerprint struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Hash      string    `json:"fingerprintHash"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
}

// IPRecord is one stored (user, ip) pair. Repeat signins from the same pair
// touch LastSeenAt instead of inserting a second row.
type IPRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	IPAddress   string    `json:"ipAddress"`
	IsProxy     bool      `json:"isProxy"`
	IsVPN       bool      `json:"isVpn"`
	IsTor       bool      `json:"isTor"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// Detection is the persisted outcome of one signup evaluation.
type Detection struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	RiskScore      int       `json:"riskScore"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	Reasons        []string  `json:"detectionReasons"`
	LinkedAccounts []string  `json:"linkedAccounts"`
	FingerprintID  string    `json:"deviceFingerprintId,omitempty"`
	IPAddressID    string    `json:"ipAddressId,omitempty"`
	IsBlocked      bool      `json:"isBlocked"`
	CreditsAwarded int       `json:"creditsAwarded"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ActivityEvent is one row of the append-only account activity log. The
// behavioral analyzer counts signup events per IP over a sliding window.
type ActivityEvent struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	EventType     string    `json:"eventType"`
	IPAddress     string    `json:"ipAddress"`
	UserAgent     string    `json:"userAgent,omitempty"`
	FingerprintID string    `json:"deviceFingerprintId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Store persists the engine's evidence: fingerprint rows, IP rows, detection
// records, and activity events.
//
// InsertFingerprint and UpsertIPRecord must be idempotent under races: two
// concurrent writers for the same (user, hash) or (user, ip) pair result in
// exactly one row and no error surfaced to either caller.
type Store interface {
	// InsertFingerprint stores a fingerprint row, silently succeeding if a
	// row for (UserID, Hash) already exists.
	InsertFingerprint(ctx context.Context, fp *Fingerprint) error
	// FingerprintsByHash returns rows sharing the hash, excluding
	// excludeUserID, newest first.
	FingerprintsByHash(ctx context.Context, hash, excludeUserID string) ([]*Fingerprint, error)
	// FingerprintIDForUser returns the stored row ID for (userID, hash),
	// or ErrFingerprintNotFound.
	FingerprintIDForUser(ctx context.Context, userID, hash string) (string, error)

	// UpsertIPRecord inserts a (user, ip) row, or touches LastSeenAt when the
	// pair already exists.
	UpsertIPRecord(ctx context.Context, rec *IPRecord) error
	// IPRecordsByAddress returns rows for the address, excluding
	// excludeUserID, newest first.
	IPRecordsByAddress(ctx context.Context, ip, excludeUserID string) ([]*IPRecord, error)
	// IPRecordIDForUser returns the stored row ID for (userID, ip),
	// or ErrIPRecordNotFound.
	IPRecordIDForUser(ctx context.Context, userID, ip string) (string, error)

	// InsertDetection stores a detection record.
	InsertDetection(ctx context.Context, det *Detection) error
	// DetectionsByUser returns detection records for a user, newest first.
	DetectionsByUser(ctx context.Context, userID string, limit int) ([]*Detection, error)
	// HasBlockedDetection reports whether any stored detection for the user
	// has IsBlocked set.
	HasBlockedDetection(ctx context.Context, userID string) (bool, error)

	// AppendActivity stores one activity event.
	AppendActivity(ctx context.Context, event *ActivityEvent) error
	// CountSignupsByIP counts signup events from the IP since the cutoff.
	CountSignupsByIP(ctx context.Context, ip string, since time.Time) (int, error)
}
