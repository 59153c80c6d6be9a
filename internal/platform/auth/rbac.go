package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasAnyRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasAnyRole reports whether the caller holds one of roles. admin satisfies any check.
func HasAnyRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == "admin" {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// CanAccessClinic reports whether the caller may act on records of clinicID.
// Admins are unrestricted. Everyone else needs clinicID in their clinic list,
// so a caller without one reaches nothing.
func CanAccessClinic(ctx context.Context, clinicID int64) bool {
	if HasAnyRole(ctx, "admin") {
		return true
	}
	for _, id := range ClinicIDsFromContext(ctx) {
		if id == clinicID {
			return true
		}
	}
	return false
}
