package account

import "errors"

var (
	ErrDuplicateAccount     = errors.New("an account with these details already exists")
	ErrUnknownOrganization  = errors.New("no organization is registered under this name")
	ErrInvalidCredentials   = errors.New("email or password is incorrect")
	ErrEmailNotVerified     = errors.New("email address has not been verified")
	ErrInvalidEmailToken    = errors.New("email verification token is invalid")
	ErrInvalidResetToken    = errors.New("password reset token is invalid or expired")
	ErrInvalidAuthToken     = errors.New("authentication token is invalid or expired")
	ErrWrongOrganization    = errors.New("account belongs to a different organization")
	ErrPolicyLocationUnset  = errors.New("location verification requires a center point")
	ErrPolicyAllowedIPUnset = errors.New("ip verification requires an allowed address")
)
