package sybil

import "testing"

func TestHashFingerprintDeterministic(t *testing.T) {
	attrs := DeviceAttributes{
		UserAgent:        "Mozilla/5.0 (Macintosh) Chrome/120.0",
		Language:         "en-US",
		Timezone:         "America/New_York",
		ScreenResolution: "2560x1440",
		ColorDepth:       24,
		Platform:         "MacIntel",
		Plugins:          []string{"pdf", "widevine"},
	}

	h1 := HashFingerprint(attrs)
	h2 := HashFingerprint(attrs)
	if h1 != h2 {
		t.Errorf("same attributes hashed differently: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(h1))
	}
}

func TestHashFingerprintPluginOrderIndependent(t *testing.T) {
	a := DeviceAttributes{UserAgent: "ua", Plugins: []string{"pdf", "widevine", "flash"}}
	b := DeviceAttributes{UserAgent: "ua", Plugins: []string{"widevine", "flash", "pdf"}}

	if HashFingerprint(a) != HashFingerprint(b) {
		t.Error("plugin order changed the hash")
	}
}

func TestHashFingerprintSensitivity(t *testing.T) {
	base := DeviceAttributes{UserAgent: "ua", Language: "en-US"}
	changed := base
	changed.Language = "de-DE"

	if HashFingerprint(base) == HashFingerprint(changed) {
		t.Error("different attributes produced the same hash")
	}
}

func TestHashFingerprintZeroValue(t *testing.T) {
	// Partial attribute sets still hash; missing fields use their zero value.
	h := HashFingerprint(DeviceAttributes{})
	if len(h) != 64 {
		t.Errorf("zero-value attributes should still hash, got %q", h)
	}
}

func TestBrowserFamily(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36", "Chrome"},
		{"Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Edg/120.0", "Edge"},
		{"Mozilla/5.0 (X11; Linux) Firefox/121.0", "Firefox"},
		{"Mozilla/5.0 (Macintosh) Version/17.0 Safari/605.1.15", "Safari"},
		{"Mozilla/5.0 Chrome/120.0 OPR/106.0", "Opera"},
		{"", "unknown"},
		{"curl/8.4.0", "other"},
	}
	for _, tc := range tests {
		if got := BrowserFamily(tc.ua); got != tc.want {
			t.Errorf("BrowserFamily(%q) = %q, want %q", tc.ua, got, tc.want)
		}
	}
}

func TestOSFamily(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64)", "Windows"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", "macOS"},
		{"Mozilla/5.0 (X11; Linux x86_64)", "Linux"},
		{"Mozilla/5.0 (Linux; Android 14)", "Android"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", "iOS"},
		{"", "unknown"},
	}
	for _, tc := range tests {
		if got := OSFamily(tc.ua); got != tc.want {
			t.Errorf("OSFamily(%q) = %q, want %q", tc.ua, got, tc.want)
		}
	}
}
