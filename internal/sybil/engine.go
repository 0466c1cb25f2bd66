package sybil

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/0xMilord/renderiq-sub004/internal/idgen"
	"github.com/0xMilord/renderiq-sub004/internal/metrics"
	"github.com/0xMilord/renderiq-sub004/internal/traces"
)

// Engine runs sybil detection for signups. All policy lives in the injected
// Config; the engine itself holds no mutable state.
type Engine struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates a detection engine over the given evidence store.
func NewEngine(store Store, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, cfg: cfg, logger: logger}
}

// DetectInput carries everything known about a signup attempt.
type DetectInput struct {
	UserID    string
	Email     string
	IPAddress string
	Device    DeviceAttributes
	Headers   http.Header
}

// Result is the engine's verdict on a signup. The engine only recommends;
// the credit ledger and onboarding flow act on it.
type Result struct {
	IsSuspicious       bool      `json:"isSuspicious"`
	RiskScore          int       `json:"riskScore"`
	RiskLevel          RiskLevel `json:"riskLevel"`
	Reasons            []string  `json:"reasons"`
	RecommendedCredits int       `json:"recommendedCredits"`
	LinkedAccounts     []string  `json:"linkedAccounts,omitempty"`
}

// Detect evaluates a signup and persists the evidence trail.
//
// It never returns an error: storage failures degrade individual signals to
// zero and evidence persistence is best-effort. The worst outcome of total
// infrastructure failure is a score of 0 and a full credit grant.
func (e *Engine) Detect(ctx context.Context, in DetectInput) *Result {
	ctx, span := traces.StartSpan(ctx, "sybil.Detect", traces.UserID(in.UserID))
	defer span.End()

	ip := NormalizeIP(in.IPAddress)
	hash := HashFingerprint(in.Device)

	if prefix, ok := e.trustedPrefix(ip); ok {
		e.logger.Info("trusted IP, skipping detection",
			"user_id", in.UserID, "ip", ip, "prefix", prefix)
		metrics.DetectionsTotal.WithLabelValues("trusted").Inc()
		return &Result{
			RiskLevel:          RiskLow,
			Reasons:            []string{},
			RecommendedCredits: e.cfg.Credits.Trusted,
		}
	}

	signals := e.gatherSignals(ctx, in, ip, hash)

	score := 0
	var reasons []string
	linked := make(map[string]bool)
	for _, sig := range signals {
		if sig.Degraded {
			e.logger.Warn("signal degraded, scoring as zero",
				"signal", sig.Name, "user_id", in.UserID, "error", sig.DegradedReason)
			metrics.SignalDegradationsTotal.WithLabelValues(sig.Name).Inc()
			continue
		}
		score += sig.Score
		reasons = append(reasons, sig.Reasons...)
		for _, id := range sig.LinkedAccounts {
			linked[id] = true
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	level := e.cfg.Classify(score)
	result := &Result{
		IsSuspicious:       score >= e.cfg.MediumThreshold,
		RiskScore:          score,
		RiskLevel:          level,
		Reasons:            reasons,
		RecommendedCredits: e.cfg.CreditsFor(level),
		LinkedAccounts:     sortedKeys(linked),
	}
	if result.Reasons == nil {
		result.Reasons = []string{}
	}

	span.SetAttributes(traces.RiskScore(score), traces.RiskLevel(string(level)))

	e.persistEvidence(ctx, in, ip, hash, result)

	metrics.DetectionsTotal.WithLabelValues(string(level)).Inc()
	e.logger.Info("sybil detection complete",
		"user_id", in.UserID,
		"score", score,
		"level", level,
		"linked_accounts", len(result.LinkedAccounts),
		"fingerprint", shortHash(hash))

	return result
}

// gatherSignals fans out the four analyzers and joins them. Analyzers read
// independent data; a failure in one never cancels the others. Store reads
// share a deadline so one slow backend degrades signals rather than stalling
// the signup.
func (e *Engine) gatherSignals(ctx context.Context, in DetectInput, ip, hash string) []Signal {
	if e.cfg.AnalyzerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.AnalyzerTimeout)
		defer cancel()
	}

	signals := make([]Signal, 4)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		signals[0] = e.analyzeDevice(ctx, hash, in.UserID)
	}()
	go func() {
		defer wg.Done()
		signals[1] = e.analyzeIP(ctx, ip, in.UserID)
	}()
	go func() {
		defer wg.Done()
		signals[2] = AnalyzeEmail(in.Email)
	}()
	go func() {
		defer wg.Done()
		signals[3] = e.analyzeBehavior(ctx, ip, hash)
	}()
	wg.Wait()

	return signals
}

// persistEvidence writes the fingerprint row, the IP row, and then the
// detection record referencing both. Fingerprint and IP rows go first: the
// detection record's foreign keys depend on their IDs existing. Every write
// is best-effort; the caller already has its verdict.
func (e *Engine) persistEvidence(ctx context.Context, in DetectInput, ip, hash string, result *Result) {
	ctx, span := traces.StartSpan(ctx, "sybil.persistEvidence")
	defer span.End()

	now := time.Now()

	fp := fingerprintFromAttributes(in.UserID, in.Device, hash)
	fp.ID = idgen.WithPrefix("fp_")
	fp.CreatedAt = now
	if err := e.store.InsertFingerprint(ctx, fp); err != nil {
		e.logger.Error("failed to store fingerprint", "user_id", in.UserID, "error", err)
	}

	rec := &IPRecord{
		ID:          idgen.WithPrefix("ip_"),
		UserID:      in.UserID,
		IPAddress:   ip,
		IsProxy:     ProxyHeuristic(in.Headers),
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	if err := e.store.UpsertIPRecord(ctx, rec); err != nil {
		e.logger.Error("failed to store ip record", "user_id", in.UserID, "error", err)
	}

	// The two ID lookups are independent reads.
	var (
		wg           sync.WaitGroup
		fpID, ipID   string
		fpErr, ipErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		fpID, fpErr = e.store.FingerprintIDForUser(ctx, in.UserID, hash)
	}()
	go func() {
		defer wg.Done()
		ipID, ipErr = e.store.IPRecordIDForUser(ctx, in.UserID, ip)
	}()
	wg.Wait()

	if fpErr != nil {
		e.logger.Warn("fingerprint id lookup failed", "user_id", in.UserID, "error", fpErr)
	}
	if ipErr != nil {
		e.logger.Warn("ip record id lookup failed", "user_id", in.UserID, "error", ipErr)
	}

	det := &Detection{
		ID:             idgen.WithPrefix("det_"),
		UserID:         in.UserID,
		RiskScore:      result.RiskScore,
		RiskLevel:      result.RiskLevel,
		Reasons:        result.Reasons,
		LinkedAccounts: result.LinkedAccounts,
		FingerprintID:  fpID,
		IPAddressID:    ipID,
		IsBlocked:      false,
		CreditsAwarded: result.RecommendedCredits,
		CreatedAt:      now,
	}
	if err := e.store.InsertDetection(ctx, det); err != nil {
		e.logger.Error("failed to store detection record", "user_id", in.UserID, "error", err)
	}
}

// RecordActivity appends one event to the account activity log. A failed
// fingerprint-ID lookup is non-fatal; the event is stored without the
// optional reference.
func (e *Engine) RecordActivity(ctx context.Context, userID, eventType, ipAddress, userAgent, fingerprintHash string) error {
	event := &ActivityEvent{
		ID:        idgen.WithPrefix("act_"),
		UserID:    userID,
		EventType: eventType,
		IPAddress: NormalizeIP(ipAddress),
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}

	if fingerprintHash != "" {
		id, err := e.store.FingerprintIDForUser(ctx, userID, fingerprintHash)
		if err != nil {
			e.logger.Warn("fingerprint lookup failed while recording activity",
				"user_id", userID, "error", err)
		} else {
			event.FingerprintID = id
		}
	}

	if err := e.store.AppendActivity(ctx, event); err != nil {
		return err
	}
	metrics.ActivityEventsTotal.WithLabelValues(eventType).Inc()
	return nil
}

// IsUserBlocked reports whether any stored detection has the blocked flag.
// The reference policy never sets it; the query exists so enforcement can be
// turned on without an API change.
func (e *Engine) IsUserBlocked(ctx context.Context, userID string) (bool, error) {
	return e.store.HasBlockedDetection(ctx, userID)
}

// Detections returns recent detection records for a user, newest first.
func (e *Engine) Detections(ctx context.Context, userID string, limit int) ([]*Detection, error) {
	return e.store.DetectionsByUser(ctx, userID, limit)
}

func (e *Engine) trustedPrefix(ip string) (string, bool) {
	for _, prefix := range e.cfg.TrustedIPPrefixes {
		if prefix != "" && strings.HasPrefix(ip, prefix) {
			return prefix, true
		}
	}
	return "", false
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	// Deterministic order keeps stored linked-account lists comparable.
	sort.Strings(keys)
	return keys
}
