package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"rollcall/internal/account"
	"rollcall/internal/classroom"
	"rollcall/internal/session"
	"rollcall/internal/store"
)

// statusOf maps domain errors to HTTP status codes. Anything unmapped is an
// internal failure.
func statusOf(err error) (int, bool) {
	switch {
	case errors.Is(err, session.ErrNotEnrolled),
		errors.Is(err, session.ErrIPMismatch),
		errors.Is(err, session.ErrLocationOutOfBounds),
		errors.Is(err, account.ErrEmailNotVerified),
		errors.Is(err, account.ErrWrongOrganization),
		errors.Is(err, classroom.ErrNotClassOwner),
		errors.Is(err, classroom.ErrWrongOrganization):
		return http.StatusForbidden, true

	case errors.Is(err, session.ErrNoOpenSession),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, classroom.ErrClassNotFound),
		errors.Is(err, classroom.ErrNotOnRoster),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, true

	case errors.Is(err, session.ErrEmptySubmission),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, account.ErrUnknownOrganization),
		errors.Is(err, account.ErrInvalidEmailToken),
		errors.Is(err, account.ErrInvalidResetToken),
		errors.Is(err, account.ErrPolicyAllowedIPUnset),
		errors.Is(err, account.ErrPolicyLocationUnset):
		return http.StatusBadRequest, true

	case errors.Is(err, session.ErrAlreadyCheckedIn),
		errors.Is(err, session.ErrSessionAlreadyOpen),
		errors.Is(err, account.ErrDuplicateAccount),
		errors.Is(err, classroom.ErrAlreadyEnrolled),
		errors.Is(err, classroom.ErrDuplicateClass),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, true

	case errors.Is(err, account.ErrInvalidCredentials),
		errors.Is(err, account.ErrInvalidAuthToken):
		return http.StatusUnauthorized, true
	}
	return 0, false
}

// httpErrorHandler is the central error handler: domain errors become their
// mapped status with the error text, validation errors become field maps,
// everything else is a generic 500.
func httpErrorHandler(err error, c echo.Context) {
	var code int
	var message interface{}

	var httpErr *echo.HTTPError
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		message = httpErr.Message
	case errors.As(err, &fieldErrs):
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = "failed validation: " + fe.Tag()
		}
		code = http.StatusBadRequest
		message = fields
	default:
		if mapped, ok := statusOf(err); ok {
			code = mapped
			message = err.Error()
		} else {
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			c.Logger().Error(err)
		}
	}

	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			c.Logger().Error(err)
		}
	}
}
