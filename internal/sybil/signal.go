package sybil

// Signal is one analyzer's contribution to the aggregate risk score.
//
// A degraded signal means the analyzer could not complete (usually a storage
// failure) and contributes nothing. The aggregator must treat Degraded as a
// zero contribution by contract, never as grounds for failing the signup.
type Signal struct {
	Name           string
	Score          int
	Reasons        []string
	LinkedAccounts []string
	Degraded       bool
	DegradedReason string
}

// zeroSignal returns an empty, healthy signal.
func zeroSignal(name string) Signal {
	return Signal{Name: name}
}

// degradedSignal returns a zero-contribution signal carrying the failure.
func degradedSignal(name string, err error) Signal {
	return Signal{Name: name, Degraded: true, DegradedReason: err.Error()}
}
