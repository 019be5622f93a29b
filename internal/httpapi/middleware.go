package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"rollcall/internal/account"
)

const claimsKey = "claims"

var (
	errMissingToken = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed authorization header")
	errForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// authRequired parses the bearer token and stores the claims on the context.
func authRequired(accounts *account.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return errMissingToken
			}
			claims, err := accounts.VerifyAuthToken(token)
			if err != nil {
				return err
			}
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// roleRequired rejects authenticated requests whose role differs.
func roleRequired(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if claimsOf(c).Role != role {
				return errForbidden
			}
			return next(c)
		}
	}
}

// selfOnly restricts :id routes to the account they name.
func selfOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Param("id") != claimsOf(c).Subject {
			return errForbidden
		}
		return next(c)
	}
}

func claimsOf(c echo.Context) *account.Claims {
	claims, _ := c.Get(claimsKey).(*account.Claims)
	if claims == nil {
		return &account.Claims{}
	}
	return claims
}
