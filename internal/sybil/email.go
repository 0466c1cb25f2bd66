package sybil

import (
	"regexp"
	"strings"
)

// Disposable / throwaway inbox providers. The list is deliberately small and
// high-confidence; a miss costs nothing (other signals still apply) while a
// false positive taxes a real user.
var disposableDomains = map[string]bool{
	"mailinator.com":         true,
	"guerrillamail.com":      true,
	"guerrillamail.net":      true,
	"sharklasers.com":        true,
	"10minutemail.com":       true,
	"10minutemail.net":       true,
	"tempmail.com":           true,
	"temp-mail.org":          true,
	"tempmail.dev":           true,
	"throwawaymail.com":      true,
	"yopmail.com":            true,
	"trashmail.com":          true,
	"getnada.com":            true,
	"maildrop.cc":            true,
	"mintemail.com":          true,
	"mohmal.com":             true,
	"dispostable.com":        true,
	"fakeinbox.com":          true,
	"spamgourmet.com":        true,
	"mytemp.email":           true,
	"burnermail.io":          true,
	"emailondeck.com":        true,
	"tempinbox.com":          true,
	"mailnesia.com":          true,
	"discard.email":          true,
	"33mail.com":             true,
	"anonaddy.me":            true,
	"spambox.us":             true,
	"tempr.email":            true,
	"tmpmail.org":            true,
	"mail-temporaire.fr":     true,
	"correotemporal.org":     true,
	"wegwerfemail.de":        true,
	"jetable.org":            true,
	"mailcatch.com":          true,
	"inboxkitten.com":        true,
	"harakirimail.com":       true,
	"spam4.me":               true,
	"grr.la":                 true,
	"guerrillamailblock.com": true,
}

var (
	// Known fake-account prefixes: test@, test1@, fake7@, temp@, user42@, demo@.
	fakePatternRe = regexp.MustCompile(`(?i)^(test\d*|fake\d*|temp\d*|user\d+|demo\d*)@`)
	// Batch-generated locals end in a run of digits long enough that it reads
	// as a counter, not a birth year habit: jsmith01, acct0042.
	sequentialRe = regexp.MustCompile(`\d{2,}$`)
)

// AnalyzeEmail scores an email address for throwaway and batch-creation
// patterns. Pure function, no I/O; all three checks can fire together.
func AnalyzeEmail(email string) Signal {
	sig := zeroSignal("email")

	addr := strings.ToLower(strings.TrimSpace(email))
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" || domain == "" {
		return sig
	}

	if disposableDomains[domain] {
		sig.Score += scoreDisposableEmail
		sig.Reasons = append(sig.Reasons, "disposable email domain: "+domain)
	}

	if sequentialRe.MatchString(local) {
		sig.Score += scoreSequentialEmail
		sig.Reasons = append(sig.Reasons, "sequential email pattern suggests generated batch")
	}

	if fakePatternRe.MatchString(addr) {
		sig.Score += scoreFakePatternEmail
		sig.Reasons = append(sig.Reasons, "email matches known fake-account pattern")
	}

	return sig
}
