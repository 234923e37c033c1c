package patient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caredesk/caredesk/internal/platform/metrics"
)

// Prometheus collectors register globally, so the package shares one.
var testCollector = metrics.NewCollector("patient_handler_test")

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc, testCollector), echo.New()
}

// erroringRepo fails writes with an injected store error.
type erroringRepo struct {
	Repository
	updateErr error
}

func (r *erroringRepo) Update(ctx context.Context, id uuid.UUID, version int, f Fields) (*Patient, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	return r.Repository.Update(ctx, id, version, f)
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler()

	body := `{"reg_id":"123456789012","name":"Asha Verma","age":"30","allergies":""}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var p Patient
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.UniqueID != "210987654321" {
		t.Errorf("unique_id = %q", p.UniqueID)
	}
	if p.Age == nil || *p.Age != 30 {
		t.Errorf("age = %v, want coerced 30", p.Age)
	}
	if p.Allergies != nil {
		t.Errorf("allergies = %v, want absent for blank input", p.Allergies)
	}
}

func TestHandler_CreatePatient_BadRegID(t *testing.T) {
	h, e := newTestHandler()

	body := `{"reg_id":"123","name":"Asha"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreatePatient(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("error = %v, want 400", err)
	}
}

func TestHandler_ListPatients_Search(t *testing.T) {
	h, e := newTestHandler()
	ctx := context.Background()

	for _, fixture := range []struct{ regID, name string }{
		{"123456789012", "Asha Verma"},
		{"987654321098", "Ben Dsouza"},
	} {
		p := &Patient{RegID: fixture.regID, Name: fixture.name}
		if err := h.svc.Create(ctx, p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients?q=ben", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data  []*Patient `json:"data"`
		Total int        `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].Name != "Ben Dsouza" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandler_UpdatePatient_Conflict(t *testing.T) {
	h, e := newTestHandler()
	ctx := context.Background()

	p := &Patient{RegID: "123456789012", Name: "Asha"}
	if err := h.svc.Create(ctx, p); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Bump the version behind the caller's back.
	if _, err := h.svc.Update(ctx, p.ID, p.Version, FieldsOf(p)); err != nil {
		t.Fatalf("concurrent update: %v", err)
	}

	body := `{"version":1,"name":"Asha V"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	err := h.UpdatePatient(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusConflict {
		t.Errorf("error = %v, want 409", err)
	}
}

func TestHandler_UpdatePatient_NotFound(t *testing.T) {
	h, e := newTestHandler()

	body := `{"version":1,"name":"X"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.UpdatePatient(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("error = %v, want 404", err)
	}
}

func TestHandler_UpdatePatient_ValidationRejected(t *testing.T) {
	h, e := newTestHandler()
	ctx := context.Background()

	p := &Patient{RegID: "123456789012", Name: "Asha"}
	if err := h.svc.Create(ctx, p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := `{"version":1,"name":"  "}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	err := h.UpdatePatient(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("error = %v, want 400", err)
	}
}

func TestHandler_UpdatePatient_StoreError(t *testing.T) {
	repo := &erroringRepo{Repository: NewMemoryRepo(), updateErr: errors.New("connection reset")}
	h := NewHandler(NewService(repo, nil), testCollector)
	e := echo.New()
	ctx := context.Background()

	p := &Patient{RegID: "123456789012", Name: "Asha"}
	if err := h.svc.Create(ctx, p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := `{"version":1,"name":"Asha V"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	// A store fault is the server's problem, not the caller's.
	err := h.UpdatePatient(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Errorf("error = %v, want 500", err)
	}
}

func TestHandler_DeletePatient(t *testing.T) {
	h, e := newTestHandler()
	ctx := context.Background()

	p := &Patient{RegID: "123456789012", Name: "Asha"}
	if err := h.svc.Create(ctx, p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.DeletePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, err := h.svc.Get(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Error("patient should be gone")
	}
}
