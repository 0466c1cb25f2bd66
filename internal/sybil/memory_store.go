package sybil

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory evidence store for demo/development mode and
// tests. Idempotence under races is handled the same way the Postgres store
// handles it, just with a mutex instead of unique constraints.
type MemoryStore struct {
	mu           sync.RWMutex
	fingerprints []*Fingerprint
	ipRecords    []*IPRecord
	detections   []*Detection
	activity     []*ActivityEvent
}

// NewMemoryStore creates an empty in-memory evidence store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) InsertFingerprint(ctx context.Context, fp *Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.fingerprints {
		if existing.UserID == fp.UserID && existing.Hash == fp.Hash {
			// Same (user, hash) pair already stored; treat as success.
			return nil
		}
	}
	cp := *fp
	m.fingerprints = append(m.fingerprints, &cp)
	return nil
}

func (m *MemoryStore) FingerprintsByHash(ctx context.Context, hash, excludeUserID string) ([]*Fingerprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Fingerprint
	for _, fp := range m.fingerprints {
		if fp.Hash == hash && fp.UserID != excludeUserID {
			cp := *fp
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) FingerprintIDForUser(ctx context.Context, userID, hash string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, fp := range m.fingerprints {
		if fp.UserID == userID && fp.Hash == hash {
			return fp.ID, nil
		}
	}
	return "", ErrFingerprintNotFound
}

func (m *MemoryStore) UpsertIPRecord(ctx context.Context, rec *IPRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.ipRecords {
		if existing.UserID == rec.UserID && existing.IPAddress == rec.IPAddress {
			existing.LastSeenAt = time.Now()
			return nil
		}
	}
	cp := *rec
	m.ipRecords = append(m.ipRecords, &cp)
	return nil
}

func (m *MemoryStore) IPRecordsByAddress(ctx context.Context, ip, excludeUserID string) ([]*IPRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*IPRecord
	for _, rec := range m.ipRecords {
		if rec.IPAddress == ip && rec.UserID != excludeUserID {
			cp := *rec
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FirstSeenAt.After(result[j].FirstSeenAt)
	})
	return result, nil
}

func (m *MemoryStore) IPRecordIDForUser(ctx context.Context, userID, ip string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.ipRecords {
		if rec.UserID == userID && rec.IPAddress == ip {
			return rec.ID, nil
		}
	}
	return "", ErrIPRecordNotFound
}

func (m *MemoryStore) InsertDetection(ctx context.Context, det *Detection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *det
	cp.Reasons = append([]string(nil), det.Reasons...)
	cp.LinkedAccounts = append([]string(nil), det.LinkedAccounts...)
	m.detections = append(m.detections, &cp)
	return nil
}

func (m *MemoryStore) DetectionsByUser(ctx context.Context, userID string, limit int) ([]*Detection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Detection
	for _, det := range m.detections {
		if det.UserID == userID {
			cp := *det
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) HasBlockedDetection(ctx context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, det := range m.detections {
		if det.UserID == userID && det.IsBlocked {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) AppendActivity(ctx context.Context, event *ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *event
	m.activity = append(m.activity, &cp)
	return nil
}

func (m *MemoryStore) CountSignupsByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, event := range m.activity {
		if event.EventType == EventSignup && event.IPAddress == ip && event.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}
