package sybil

import "testing"

func TestAnalyzeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		score int
	}{
		{"normal address", "alice@example.com", 0},
		{"disposable domain", "somebody@mailinator.com", 30},
		{"disposable uppercase", "Somebody@MAILINATOR.COM", 30},
		{"fake prefix", "test@example.com", 15},
		{"fake prefix with digit", "demo7@example.com", 15},
		{"sequential local", "jsmith01@example.com", 20},
		{"long counter", "acct0042@example.com", 20},
		{"single trailing digit not sequential", "dave3@example.com", 0},
		{"disposable plus fake", "test3@mailinator.com", 45},
		{"all three", "test42@mailinator.com", 65},
		{"user prefix needs digits", "username@example.com", 0},
		{"user with digits", "user42@example.com", 35},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sig := AnalyzeEmail(tc.email)
			if sig.Score != tc.score {
				t.Errorf("AnalyzeEmail(%q) score = %d, want %d (reasons: %v)",
					tc.email, sig.Score, tc.score, sig.Reasons)
			}
			if sig.Degraded {
				t.Error("email analyzer never degrades")
			}
		})
	}
}

func TestAnalyzeEmailMalformed(t *testing.T) {
	for _, email := range []string{"", "no-at-sign", "@example.com", "local@", "  "} {
		sig := AnalyzeEmail(email)
		if sig.Score != 0 {
			t.Errorf("AnalyzeEmail(%q) score = %d, want 0", email, sig.Score)
		}
	}
}

func TestAnalyzeEmailReasons(t *testing.T) {
	sig := AnalyzeEmail("test42@mailinator.com")
	if len(sig.Reasons) != 3 {
		t.Errorf("expected 3 reasons, got %v", sig.Reasons)
	}
}
