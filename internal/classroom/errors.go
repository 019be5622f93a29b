package classroom

import "errors"

var (
	ErrClassNotFound     = errors.New("class not found")
	ErrNotClassOwner     = errors.New("class belongs to another teacher")
	ErrAlreadyEnrolled   = errors.New("student is already on this roster")
	ErrNotOnRoster       = errors.New("student is not on this roster")
	ErrWrongOrganization = errors.New("student belongs to a different organization")
	ErrDuplicateClass    = errors.New("a class with this name already exists")
)
