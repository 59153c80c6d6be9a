package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(q string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/records?"+q, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextWithQuery(""))
	if p.Limit != DefaultLimit {
		t.Errorf("expected limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(contextWithQuery("limit=50&offset=10"))
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("expected 50/10, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(contextWithQuery("limit=500"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := FromContext(contextWithQuery("offset=-5"))
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a", "b"}, 50, 20, 0)
	if r.Total != 50 || r.Limit != 20 || r.Offset != 0 {
		t.Errorf("unexpected response: %+v", r)
	}
	if !r.HasMore {
		t.Error("expected HasMore true")
	}
	if NewResponse(nil, 20, 20, 0).HasMore {
		t.Error("expected HasMore false on the last page")
	}
}

func TestParams_Offsets(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if p.NextOffset() != 15 {
		t.Errorf("NextOffset = %d", p.NextOffset())
	}
	if p.PreviousOffset() != 0 {
		t.Errorf("PreviousOffset = %d, want 0", p.PreviousOffset())
	}
	if !p.HasPrevious() {
		t.Error("expected HasPrevious")
	}
	if p.HasNext(15) {
		t.Error("expected no next page at total 15")
	}
}

func TestParams_Links_FirstPage(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	links := p.Links("/api/v1/records", url.Values{"patient_id": {"5"}}, 25)
	if len(links) != 2 {
		t.Fatalf("expected self and next, got %+v", links)
	}
	if links[0].Relation != "self" || links[0].URL != "/api/v1/records?limit=10&offset=0&patient_id=5" {
		t.Errorf("unexpected self link: %+v", links[0])
	}
	if links[1].Relation != "next" || links[1].URL != "/api/v1/records?limit=10&offset=10&patient_id=5" {
		t.Errorf("unexpected next link: %+v", links[1])
	}
}

func TestParams_Links_LastPage(t *testing.T) {
	p := Params{Limit: 10, Offset: 20}
	links := p.Links("/api/v1/records", nil, 25)
	if len(links) != 2 {
		t.Fatalf("expected self and previous, got %+v", links)
	}
	if links[1].Relation != "previous" || links[1].URL != "/api/v1/records?limit=10&offset=10" {
		t.Errorf("unexpected previous link: %+v", links[1])
	}
}
