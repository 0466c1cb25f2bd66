package sybil

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/0xMilord/renderiq-sub004/internal/testutil"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresInsertFingerprint(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO device_fingerprints").
		WithArgs("fp_1", "usr_1", "abc", "Chrome", "macOS", "MacIntel", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.InsertFingerprint(context.Background(), &Fingerprint{
		ID: "fp_1", UserID: "usr_1", Hash: "abc",
		Browser: "Chrome", OS: "macOS", Platform: "MacIntel",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresInsertFingerprintSwallowsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO device_fingerprints").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.InsertFingerprint(context.Background(), &Fingerprint{
		ID: "fp_1", UserID: "usr_1", Hash: "abc", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unique violation must not surface, got %v", err)
	}
}

func TestPostgresFingerprintIDForUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id FROM device_fingerprints").
		WithArgs("usr_1", "abc").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.FingerprintIDForUser(context.Background(), "usr_1", "abc")
	if err != ErrFingerprintNotFound {
		t.Errorf("expected ErrFingerprintNotFound, got %v", err)
	}
}

func TestPostgresIPRecordIDForUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id FROM ip_addresses").
		WithArgs("usr_1", "203.0.113.1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.IPRecordIDForUser(context.Background(), "usr_1", "203.0.113.1")
	if err != ErrIPRecordNotFound {
		t.Errorf("expected ErrIPRecordNotFound, got %v", err)
	}
}

func TestPostgresCountSignupsByIP(t *testing.T) {
	store, mock := newMockStore(t)

	since := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM account_activity").
		WithArgs("203.0.113.1", EventSignup, since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := store.CountSignupsByIP(context.Background(), "203.0.113.1", since)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
}

func TestPostgresDetectionsByUser(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "risk_score", "risk_level", "detection_reasons", "linked_accounts",
		"device_fingerprint_id", "ip_address_id", "is_blocked", "credits_awarded", "created_at",
	}).AddRow("det_1", "usr_1", 80, "high",
		[]byte(`{"disposable email domain: mailinator.com"}`), []byte(`{usr_2,usr_3}`),
		"fp_1", "ip_1", false, 5, now)

	mock.ExpectQuery("SELECT (.+) FROM sybil_detections").
		WithArgs("usr_1", 10).
		WillReturnRows(rows)

	dets, err := store.DetectionsByUser(context.Background(), "usr_1", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}
	det := dets[0]
	if det.RiskLevel != RiskHigh || det.RiskScore != 80 {
		t.Errorf("unexpected detection: %+v", det)
	}
	if len(det.LinkedAccounts) != 2 {
		t.Errorf("expected 2 linked accounts, got %v", det.LinkedAccounts)
	}
}

// ---------------------------------------------------------------------------
// Integration tests (require POSTGRES_URL)
// ---------------------------------------------------------------------------

func TestPostgresStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	fp := &Fingerprint{
		ID: "fp_it1", UserID: "usr_it1", Hash: "hash_it",
		Browser: "Firefox", OS: "Linux", CreatedAt: now,
	}
	if err := store.InsertFingerprint(ctx, fp); err != nil {
		t.Fatalf("insert fingerprint: %v", err)
	}
	// Second insert with the same (user, hash) is a no-op.
	dup := &Fingerprint{ID: "fp_it2", UserID: "usr_it1", Hash: "hash_it", CreatedAt: now}
	if err := store.InsertFingerprint(ctx, dup); err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	id, err := store.FingerprintIDForUser(ctx, "usr_it1", "hash_it")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id != "fp_it1" {
		t.Errorf("expected original row to survive, got %q", id)
	}

	rec := &IPRecord{
		ID: "ip_it1", UserID: "usr_it1", IPAddress: "203.0.113.99",
		FirstSeenAt: now, LastSeenAt: now,
	}
	if err := store.UpsertIPRecord(ctx, rec); err != nil {
		t.Fatalf("upsert ip: %v", err)
	}
	if err := store.UpsertIPRecord(ctx, rec); err != nil {
		t.Fatalf("repeat upsert: %v", err)
	}
	ipRows, err := store.IPRecordsByAddress(ctx, "203.0.113.99", "usr_other")
	if err != nil {
		t.Fatalf("ip query: %v", err)
	}
	if len(ipRows) != 1 {
		t.Errorf("expected 1 ip row, got %d", len(ipRows))
	}

	det := &Detection{
		ID: "det_it1", UserID: "usr_it1", RiskScore: 45, RiskLevel: RiskLow,
		Reasons:        []string{"disposable email domain: mailinator.com"},
		LinkedAccounts: []string{},
		FingerprintID:  "fp_it1", IPAddressID: "ip_it1",
		CreditsAwarded: 10, CreatedAt: now,
	}
	if err := store.InsertDetection(ctx, det); err != nil {
		t.Fatalf("insert detection: %v", err)
	}
	dets, err := store.DetectionsByUser(ctx, "usr_it1", 10)
	if err != nil {
		t.Fatalf("detections: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}
	if dets[0].FingerprintID != "fp_it1" || dets[0].IPAddressID != "ip_it1" {
		t.Errorf("detection lost its evidence references: %+v", dets[0])
	}
	if len(dets[0].Reasons) != 1 {
		t.Errorf("reasons did not round-trip: %v", dets[0].Reasons)
	}

	blocked, err := store.HasBlockedDetection(ctx, "usr_it1")
	if err != nil {
		t.Fatalf("blocked: %v", err)
	}
	if blocked {
		t.Error("expected not blocked")
	}

	if err := store.AppendActivity(ctx, &ActivityEvent{
		ID: "act_it1", UserID: "usr_it1", EventType: EventSignup,
		IPAddress: "203.0.113.99", CreatedAt: now,
	}); err != nil {
		t.Fatalf("append activity: %v", err)
	}
	count, err := store.CountSignupsByIP(ctx, "203.0.113.99", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 signup, got %d", count)
	}
}

func TestPostgresStoreDetectionNullForeignKeys(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	// Empty evidence references persist as NULL and read back as "".
	det := &Detection{
		ID: "det_nofk", UserID: "usr_nofk", RiskScore: 0, RiskLevel: RiskLow,
		Reasons: []string{}, LinkedAccounts: []string{}, CreatedAt: time.Now(),
	}
	if err := store.InsertDetection(ctx, det); err != nil {
		t.Fatalf("insert: %v", err)
	}

	dets, err := store.DetectionsByUser(ctx, "usr_nofk", 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}
	if dets[0].FingerprintID != "" || dets[0].IPAddressID != "" {
		t.Errorf("expected empty references, got %+v", dets[0])
	}
}
