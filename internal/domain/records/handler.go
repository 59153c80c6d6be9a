package records

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinicops/backoffice/internal/platform/auth"
	"github.com/clinicops/backoffice/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "billing", "front_desk"))
	read.GET("/records", h.ListRecords)
	read.GET("/records/:id", h.GetRecord)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	rec, err := h.svc.GetRecord(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	if err != nil {
		return internalError(err)
	}
	// Records in other clinics are reported as missing.
	if !auth.CanAccessClinic(ctx, rec.ClinicID) {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListRecords(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	f := ListFilter{Kind: Kind(c.QueryParam("kind"))}
	filters := url.Values{}
	for _, p := range []struct {
		name string
		dst  *int64
	}{
		{"patient_id", &f.PatientID},
		{"visit_id", &f.VisitID},
	} {
		raw := c.QueryParam(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name)
		}
		*p.dst = v
		filters.Set(p.name, raw)
	}
	if f.Kind != "" {
		if !f.Kind.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid kind")
		}
		filters.Set("kind", string(f.Kind))
	}
	if !auth.HasAnyRole(ctx, "admin") {
		f.ClinicIDs = auth.ClinicIDsFromContext(ctx)
		if len(f.ClinicIDs) == 0 {
			resp := pagination.NewResponse([]*PatientRecord{}, 0, pg.Limit, pg.Offset)
			resp.Links = pg.Links(c.Request().URL.Path, filters, 0)
			return c.JSON(http.StatusOK, resp)
		}
	}

	items, total, err := h.svc.ListRecords(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return internalError(err)
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, filters, total)
	return c.JSON(http.StatusOK, resp)
}

// internalError hides err from the client. The request logger still records
// it through the internal error.
func internalError(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
