package session

import (
	"rollcall/pkg/geo"
	"rollcall/pkg/types"
)

// ScanInput bundles everything a scan decision needs. The validator itself
// is a stateless function over this input: the caller resolves enrollment,
// the open-session snapshot, the recent-token set and the org policy.
type ScanInput struct {
	Enrolled bool
	Session  *types.ClassSession // nil when the class has no open session
	Recent   map[string]struct{} // tokens still inside the recency window
	Policy   types.OrganizationPolicy
}

// ValidateScan decides whether a submitted scan is acceptable. Checks run in
// a fixed order and short-circuit on the first failure:
// enrollment, open session with minted tokens, non-empty submission,
// all-or-nothing token recency, IP policy, geofence policy, duplicate
// check-in. A nil return means the scan should be accepted.
func ValidateScan(scan types.Scan, in ScanInput) error {
	if !in.Enrolled {
		return ErrNotEnrolled
	}

	if in.Session == nil || in.Session.Status != types.SessionStatusOpen || len(in.Session.ActiveTokens) == 0 {
		return ErrNoOpenSession
	}

	if len(scan.Tokens) == 0 {
		return ErrEmptySubmission
	}

	// All-or-nothing: one stale or fabricated token rejects the whole batch.
	for _, t := range scan.Tokens {
		if _, ok := in.Recent[t]; !ok {
			return ErrInvalidToken
		}
	}

	if in.Policy.IPVerification {
		if scan.SourceIP == "" || scan.SourceIP != in.Policy.AllowedIP {
			return ErrIPMismatch
		}
	}

	if in.Policy.LocationVerification {
		if scan.Location == nil || in.Policy.Fence == nil {
			return ErrLocationOutOfBounds
		}
		if !geo.Contains(*in.Policy.Fence, *scan.Location) {
			return ErrLocationOutOfBounds
		}
	}

	if in.Session.HasCheckedIn(scan.StudentID) {
		return ErrAlreadyCheckedIn
	}

	return nil
}
