package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caredesk/caredesk/internal/platform/metrics"
	"github.com/caredesk/caredesk/pkg/pagination"
)

type Handler struct {
	svc     *Service
	metrics *metrics.Collector
}

func NewHandler(svc *Service, m *metrics.Collector) *Handler {
	return &Handler{svc: svc, metrics: m}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)
}

// CreatePatientRequest carries a new registration. Demographic fields come
// in as raw text and are coerced field by field, the same rules the edit
// flow applies.
type CreatePatientRequest struct {
	RegID               string `json:"reg_id"`
	Name                string `json:"name"`
	DOB                 string `json:"dob"`
	Gender              string `json:"gender"`
	Age                 string `json:"age"`
	Phone               string `json:"phone"`
	Email               string `json:"email"`
	History             string `json:"history"`
	Medicines           string `json:"medicines"`
	Allergies           string `json:"allergies"`
	PermanentConditions string `json:"permanent_conditions"`
	LastVisit           string `json:"last_visit"`
}

// UpdatePatientRequest carries the full editable field set plus the version
// token the caller loaded. Saves are whole-row: a field omitted by the
// caller clears, it does not keep.
type UpdatePatientRequest struct {
	Version             int    `json:"version"`
	Name                string `json:"name"`
	DOB                 string `json:"dob"`
	Gender              string `json:"gender"`
	Age                 string `json:"age"`
	Phone               string `json:"phone"`
	Email               string `json:"email"`
	History             string `json:"history"`
	Medicines           string `json:"medicines"`
	Allergies           string `json:"allergies"`
	PermanentConditions string `json:"permanent_conditions"`
	LastVisit           string `json:"last_visit"`
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req CreatePatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := &Patient{
		RegID:               req.RegID,
		Name:                req.Name,
		DOB:                 ParseDate(req.DOB),
		Gender:              OptionalText(req.Gender),
		Age:                 ParseAge(req.Age),
		Phone:               OptionalText(req.Phone),
		Email:               OptionalText(req.Email),
		History:             OptionalText(req.History),
		Medicines:           OptionalText(req.Medicines),
		Allergies:           OptionalText(req.Allergies),
		PermanentConditions: OptionalText(req.PermanentConditions),
		LastVisit:           ParseDate(req.LastVisit),
	}
	if err := h.svc.Create(c.Request().Context(), p); err != nil {
		if errors.Is(err, ErrInvalid) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

// ListPatients returns patients, optionally filtered by ?q= against the
// name or unique identifier, then paginated.
func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	total := len(items)
	start, end := pg.Slice(total)
	return c.JSON(http.StatusOK, pagination.NewResponse(items[start:end], total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdatePatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f := Fields{
		Name:                req.Name,
		DOB:                 ParseDate(req.DOB),
		Gender:              OptionalText(req.Gender),
		Age:                 ParseAge(req.Age),
		Phone:               OptionalText(req.Phone),
		Email:               OptionalText(req.Email),
		History:             OptionalText(req.History),
		Medicines:           OptionalText(req.Medicines),
		Allergies:           OptionalText(req.Allergies),
		PermanentConditions: OptionalText(req.PermanentConditions),
		LastVisit:           ParseDate(req.LastVisit),
	}
	p, err := h.svc.Update(c.Request().Context(), id, req.Version, f)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		case errors.Is(err, ErrConflict):
			h.metrics.SaveConflictsTotal.Inc()
			return echo.NewHTTPError(http.StatusConflict, "patient was modified by someone else; reload and retry")
		case errors.Is(err, ErrInvalid):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	h.metrics.PatientsUpdatedTotal.Inc()
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.metrics.PatientsDeletedTotal.Inc()
	return c.NoContent(http.StatusNoContent)
}
