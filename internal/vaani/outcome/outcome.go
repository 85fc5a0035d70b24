// Package outcome defines the shared result vocabulary for Vaani's external
// collaborators.  Every collaborator absorbs its own failures and reports how
// the returned value was produced instead of raising, so the voice loop can
// always continue while tests and the turn audit can still tell "heard
// nothing" from "service down".
package outcome

// Status describes how a collaborator produced its result.
type Status string

const (
	// OK means the result was produced normally.  An empty transcription
	// from a working service is still OK: silence is data.
	OK Status = "ok"

	// Degraded means the service answered but the reply was unusable and a
	// fallback value was substituted (e.g. malformed classifier JSON).
	Degraded Status = "degraded"

	// Unavailable means the upstream service could not be reached and a
	// fallback value was substituted.
	Unavailable Status = "unavailable"
)

// Failed reports whether the status represents a substituted fallback
// rather than a real answer.
func (s Status) Failed() bool {
	return s == Degraded || s == Unavailable
}
