package sybil

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Compile-time checks that both stores implement Store.
var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// PostgresStore implements Store backed by PostgreSQL.
//
// Idempotence under concurrent signups relies on the unique constraints on
// (user_id, fingerprint_hash) and (user_id, ip_address) plus ON CONFLICT
// handling, not on application locks.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed evidence store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the evidence tables if they don't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS device_fingerprints (
			id               VARCHAR(40) PRIMARY KEY,
			user_id          VARCHAR(64) NOT NULL,
			fingerprint_hash VARCHAR(64) NOT NULL,
			browser          VARCHAR(40) NOT NULL DEFAULT '',
			os               VARCHAR(40) NOT NULL DEFAULT '',
			platform         VARCHAR(80) NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, fingerprint_hash)
		);
		CREATE INDEX IF NOT EXISTS idx_fingerprints_hash ON device_fingerprints(fingerprint_hash);

		CREATE TABLE IF NOT EXISTS ip_addresses (
			id            VARCHAR(40) PRIMARY KEY,
			user_id       VARCHAR(64) NOT NULL,
			ip_address    VARCHAR(45) NOT NULL,
			is_proxy      BOOLEAN NOT NULL DEFAULT FALSE,
			is_vpn        BOOLEAN NOT NULL DEFAULT FALSE,
			is_tor        BOOLEAN NOT NULL DEFAULT FALSE,
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, ip_address)
		);
		CREATE INDEX IF NOT EXISTS idx_ip_addresses_ip ON ip_addresses(ip_address);

		CREATE TABLE IF NOT EXISTS sybil_detections (
			id                    VARCHAR(40) PRIMARY KEY,
			user_id               VARCHAR(64) NOT NULL,
			risk_score            INTEGER NOT NULL,
			risk_level            VARCHAR(10) NOT NULL,
			detection_reasons     TEXT[] NOT NULL DEFAULT '{}',
			linked_accounts       TEXT[] NOT NULL DEFAULT '{}',
			device_fingerprint_id VARCHAR(40),
			ip_address_id         VARCHAR(40),
			is_blocked            BOOLEAN NOT NULL DEFAULT FALSE,
			credits_awarded       INTEGER NOT NULL DEFAULT 0,
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_detections_user ON sybil_detections(user_id);

		CREATE TABLE IF NOT EXISTS account_activity (
			id                    VARCHAR(40) PRIMARY KEY,
			user_id               VARCHAR(64) NOT NULL,
			event_type            VARCHAR(20) NOT NULL,
			ip_address            VARCHAR(45) NOT NULL DEFAULT '',
			user_agent            TEXT NOT NULL DEFAULT '',
			device_fingerprint_id VARCHAR(40),
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_activity_ip_type ON account_activity(ip_address, event_type, created_at);
	`)
	return err
}

func (p *PostgresStore) InsertFingerprint(ctx context.Context, fp *Fingerprint) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO device_fingerprints (id, user_id, fingerprint_hash, browser, os, platform, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, fingerprint_hash) DO NOTHING
	`, fp.ID, fp.UserID, fp.Hash, fp.Browser, fp.OS, fp.Platform, fp.CreatedAt)
	if err != nil {
		// ON CONFLICT covers the expected race; anything surviving it is real.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("insert fingerprint: %w", err)
	}
	return nil
}

func (p *PostgresStore) FingerprintsByHash(ctx context.Context, hash, excludeUserID string) ([]*Fingerprint, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, fingerprint_hash, browser, os, platform, created_at
		FROM device_fingerprints
		WHERE fingerprint_hash = $1 AND user_id <> $2
		ORDER BY created_at DESC
	`, hash, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("fingerprints by hash: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Fingerprint
	for rows.Next() {
		fp := &Fingerprint{}
		if err := rows.Scan(&fp.ID, &fp.UserID, &fp.Hash, &fp.Browser, &fp.OS, &fp.Platform, &fp.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, fp)
	}
	return result, rows.Err()
}

func (p *PostgresStore) FingerprintIDForUser(ctx context.Context, userID, hash string) (string, error) {
	var id string
	err := p.db.QueryRowContext(ctx, `
		SELECT id FROM device_fingerprints
		WHERE user_id = $1 AND fingerprint_hash = $2
		ORDER BY created_at DESC LIMIT 1
	`, userID, hash).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrFingerprintNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fingerprint id for user: %w", err)
	}
	return id, nil
}

func (p *PostgresStore) UpsertIPRecord(ctx context.Context, rec *IPRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO ip_addresses (id, user_id, ip_address, is_proxy, is_vpn, is_tor, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, ip_address) DO UPDATE SET last_seen_at = NOW()
	`, rec.ID, rec.UserID, rec.IPAddress, rec.IsProxy, rec.IsVPN, rec.IsTor, rec.FirstSeenAt, rec.LastSeenAt)
	if err != nil {
		return fmt.Errorf("upsert ip record: %w", err)
	}
	return nil
}

func (p *PostgresStore) IPRecordsByAddress(ctx context.Context, ip, excludeUserID string) ([]*IPRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, ip_address, is_proxy, is_vpn, is_tor, first_seen_at, last_seen_at
		FROM ip_addresses
		WHERE ip_address = $1 AND user_id <> $2
		ORDER BY first_seen_at DESC
	`, ip, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("ip records by address: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*IPRecord
	for rows.Next() {
		rec := &IPRecord{}
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.IPAddress, &rec.IsProxy, &rec.IsVPN, &rec.IsTor, &rec.FirstSeenAt, &rec.LastSeenAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (p *PostgresStore) IPRecordIDForUser(ctx context.Context, userID, ip string) (string, error) {
	var id string
	err := p.db.QueryRowContext(ctx, `
		SELECT id FROM ip_addresses WHERE user_id = $1 AND ip_address = $2
	`, userID, ip).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrIPRecordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("ip record id for user: %w", err)
	}
	return id, nil
}

func (p *PostgresStore) InsertDetection(ctx context.Context, det *Detection) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sybil_detections (
			id, user_id, risk_score, risk_level, detection_reasons, linked_accounts,
			device_fingerprint_id, ip_address_id, is_blocked, credits_awarded, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11)
	`, det.ID, det.UserID, det.RiskScore, string(det.RiskLevel),
		pq.Array(det.Reasons), pq.Array(det.LinkedAccounts),
		det.FingerprintID, det.IPAddressID, det.IsBlocked, det.CreditsAwarded, det.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert detection: %w", err)
	}
	return nil
}

func (p *PostgresStore) DetectionsByUser(ctx context.Context, userID string, limit int) ([]*Detection, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, risk_score, risk_level, detection_reasons, linked_accounts,
			COALESCE(device_fingerprint_id, ''), COALESCE(ip_address_id, ''),
			is_blocked, credits_awarded, created_at
		FROM sybil_detections
		WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("detections by user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Detection
	for rows.Next() {
		det := &Detection{}
		var level string
		if err := rows.Scan(&det.ID, &det.UserID, &det.RiskScore, &level,
			pq.Array(&det.Reasons), pq.Array(&det.LinkedAccounts),
			&det.FingerprintID, &det.IPAddressID,
			&det.IsBlocked, &det.CreditsAwarded, &det.CreatedAt); err != nil {
			return nil, err
		}
		det.RiskLevel = RiskLevel(level)
		result = append(result, det)
	}
	return result, rows.Err()
}

func (p *PostgresStore) HasBlockedDetection(ctx context.Context, userID string) (bool, error) {
	var blocked bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sybil_detections WHERE user_id = $1 AND is_blocked = TRUE
		)
	`, userID).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("has blocked detection: %w", err)
	}
	return blocked, nil
}

func (p *PostgresStore) AppendActivity(ctx context.Context, event *ActivityEvent) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO account_activity (id, user_id, event_type, ip_address, user_agent, device_fingerprint_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, event.ID, event.UserID, event.EventType, event.IPAddress, event.UserAgent, event.FingerprintID, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (p *PostgresStore) CountSignupsByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM account_activity
		WHERE ip_address = $1 AND event_type = $2 AND created_at >= $3
	`, ip, EventSignup, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count signups by ip: %w", err)
	}
	return count, nil
}
