package sybil

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// DeviceAttributes is the flat set of browser/device attributes collected at
// signup. The zero value of any field participates in the hash, so partial
// attribute sets still hash deterministically.
type DeviceAttributes struct {
	UserAgent           string   `json:"userAgent"`
	Language            string   `json:"language"`
	Timezone            string   `json:"timezone"`
	ScreenResolution    string   `json:"screenResolution"`
	ColorDepth          int      `json:"colorDepth"`
	HardwareConcurrency int      `json:"hardwareConcurrency"`
	DeviceMemory        float64  `json:"deviceMemory"`
	Platform            string   `json:"platform"`
	CookiesEnabled      bool     `json:"cookiesEnabled"`
	DoNotTrack          bool     `json:"doNotTrack"`
	Plugins             []string `json:"plugins,omitempty"`
	CanvasFingerprint   string   `json:"canvasFingerprint,omitempty"`
}

// HashFingerprint derives a deterministic digest from device attributes.
// Attributes are rendered as key=value pairs and sorted before hashing, so
// attribute order never affects the result. The hash is a correlation key,
// not an account identifier: distinct users on the same device share it.
func HashFingerprint(attrs DeviceAttributes) string {
	plugins := make([]string, len(attrs.Plugins))
	copy(plugins, attrs.Plugins)
	sort.Strings(plugins)

	pairs := []string{
		"canvas=" + attrs.CanvasFingerprint,
		"colorDepth=" + strconv.Itoa(attrs.ColorDepth),
		"cookies=" + strconv.FormatBool(attrs.CookiesEnabled),
		"deviceMemory=" + strconv.FormatFloat(attrs.DeviceMemory, 'g', -1, 64),
		"dnt=" + strconv.FormatBool(attrs.DoNotTrack),
		"hardwareConcurrency=" + strconv.Itoa(attrs.HardwareConcurrency),
		"language=" + strings.ToLower(strings.TrimSpace(attrs.Language)),
		"platform=" + strings.TrimSpace(attrs.Platform),
		"plugins=" + strings.Join(plugins, ","),
		"screen=" + strings.TrimSpace(attrs.ScreenResolution),
		"timezone=" + strings.TrimSpace(attrs.Timezone),
		"userAgent=" + strings.TrimSpace(attrs.UserAgent),
	}
	sort.Strings(pairs)

	sum := sha256.Sum256([]byte(strings.Join(pairs, "|")))
	return hex.EncodeToString(sum[:])
}

// BrowserFamily extracts a coarse browser name from a user agent string.
func BrowserFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge"):
		return "Edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "safari"):
		return "Safari"
	case ua == "":
		return "unknown"
	default:
		return "other"
	}
}

// OSFamily extracts a coarse operating system name from a user agent string.
func OSFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return "iOS"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	case ua == "":
		return "unknown"
	default:
		return "other"
	}
}

// fingerprintFromAttributes builds a storable row for a user's device.
func fingerprintFromAttributes(userID string, attrs DeviceAttributes, hash string) *Fingerprint {
	return &Fingerprint{
		UserID:   userID,
		Hash:     hash,
		Browser:  BrowserFamily(attrs.UserAgent),
		OS:       OSFamily(attrs.UserAgent),
		Platform: attrs.Platform,
	}
}

// shortHash renders a hash prefix for log lines.
func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
