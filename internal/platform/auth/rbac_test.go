package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func ctxWithRoles(roles []string, clinics []int64) context.Context {
	return withIdentity(context.Background(), "u1", roles, clinics)
}

func TestRequireRole_Allowed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ctxWithRoles([]string{"billing"}, nil))
	c := e.NewContext(req, httptest.NewRecorder())

	err := RequireRole("admin", "billing")(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ctxWithRoles([]string{"front-desk"}, nil))
	c := e.NewContext(req, httptest.NewRecorder())

	err := RequireRole("billing")(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestHasAnyRole_AdminSatisfiesAll(t *testing.T) {
	if !HasAnyRole(ctxWithRoles([]string{"admin"}, nil), "billing") {
		t.Error("expected admin to satisfy billing")
	}
	if HasAnyRole(context.Background(), "billing") {
		t.Error("expected no roles to fail")
	}
}

func TestCanAccessClinic(t *testing.T) {
	tests := []struct {
		name    string
		roles   []string
		clinics []int64
		clinic  int64
		want    bool
	}{
		{"admin unrestricted", []string{"admin"}, []int64{1}, 9, true},
		{"no clinic claim", []string{"billing"}, nil, 9, false},
		{"no identity", nil, nil, 9, false},
		{"listed clinic", []string{"billing"}, []int64{3, 9}, 9, true},
		{"unlisted clinic", []string{"billing"}, []int64{3}, 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanAccessClinic(ctxWithRoles(tt.roles, tt.clinics), tt.clinic)
			if got != tt.want {
				t.Errorf("CanAccessClinic = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSystemContext_IsAdmin(t *testing.T) {
	ctx := SystemContext(context.Background())
	if got := UserIDFromContext(ctx); got != SystemSubject {
		t.Errorf("subject = %q, want %q", got, SystemSubject)
	}
	if !HasAnyRole(ctx, "billing") {
		t.Error("expected system identity to satisfy role checks")
	}
	if !CanAccessClinic(ctx, 42) {
		t.Error("expected system identity to reach every clinic")
	}
}
