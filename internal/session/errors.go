package session

import "errors"

// Scan rejection kinds. These are expected user-facing outcomes, returned to
// the caller and never logged as faults.
var (
	ErrNotEnrolled         = errors.New("student is not enrolled in this class")
	ErrNoOpenSession       = errors.New("no attendance session is open for this class")
	ErrEmptySubmission     = errors.New("no tokens were submitted")
	ErrInvalidToken        = errors.New("submitted tokens are invalid or expired")
	ErrIPMismatch          = errors.New("request origin does not match the allowed network")
	ErrLocationOutOfBounds = errors.New("reported location is outside the allowed area")
	ErrAlreadyCheckedIn    = errors.New("student already checked in for this session")
)

// Lifecycle errors.
var (
	ErrSessionAlreadyOpen = errors.New("an attendance session is already open for this class")
	ErrSessionNotFound    = errors.New("attendance session not found")
)

// IsRejection reports whether err is one of the expected scan rejection
// kinds, as opposed to an internal failure.
func IsRejection(err error) bool {
	for _, kind := range []error{
		ErrNotEnrolled, ErrNoOpenSession, ErrEmptySubmission, ErrInvalidToken,
		ErrIPMismatch, ErrLocationOutOfBounds, ErrAlreadyCheckedIn,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
