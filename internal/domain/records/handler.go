package records

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caredesk/caredesk/internal/domain/patient"
	"github.com/caredesk/caredesk/internal/platform/blobstore"
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
	api.GET("/patients/:id/records", h.ListRecords)
	api.POST("/patients/:id/records", h.UploadRecord)
	api.DELETE("/records/:id", h.DeleteRecord)
}

// partialFailureResponse is returned when a multi-step operation left an
// inconsistency. The code field lets clients and alerts tell it apart from
// an ordinary server error.
type partialFailureResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) ListRecords(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, err := h.svc.ListByPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	total := len(items)
	start, end := pg.Slice(total)
	return c.JSON(http.StatusOK, pagination.NewResponse(items[start:end], total, pg.Limit, pg.Offset))
}

// UploadRecord accepts a multipart form with a "file" part and an optional
// "uploaded_by" field, stores the blob, then the row.
func (h *Handler) UploadRecord(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	rec, err := h.svc.Upload(c.Request().Context(), patientID, fh.Filename, src, c.FormValue("uploaded_by"))
	if err != nil {
		var pe *PartialError
		switch {
		case errors.As(err, &pe):
			h.metrics.PartialFailuresTotal.WithLabelValues(pe.Op).Inc()
			return c.JSON(http.StatusInternalServerError,
				partialFailureResponse{Code: "partial_failure", Message: pe.Error()})
		case errors.Is(err, blobstore.ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, patient.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	h.metrics.RecordsUploadedTotal.Inc()
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		var pe *PartialError
		switch {
		case errors.As(err, &pe):
			h.metrics.PartialFailuresTotal.WithLabelValues(pe.Op).Inc()
			return c.JSON(http.StatusInternalServerError,
				partialFailureResponse{Code: "partial_failure", Message: pe.Error()})
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "medical record not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	h.metrics.RecordsDeletedTotal.Inc()
	return c.NoContent(http.StatusNoContent)
}
