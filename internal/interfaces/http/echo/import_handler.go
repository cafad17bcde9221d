package echo

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	app "github.com/mohammadpnp/energy-crm/internal/application/importing"
	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

type ImportHandler struct {
	service app.ImportService
	log     *zap.SugaredLogger
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type importResponse struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	Kind             string     `json:"kind"`
	Status           string     `json:"status"`
	TotalRows        int        `json:"total_rows"`
	ProcessedRows    int        `json:"processed_rows"`
	SuccessRows      int        `json:"success_rows"`
	ErrorRows        int        `json:"error_rows"`
	Progress         float64    `json:"progress"`
	OwnerID          string     `json:"owner_id"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

type impactResponse struct {
	Creations      map[domain.EntityType]int `json:"creations"`
	Updates        map[domain.EntityType]int `json:"updates"`
	Skips          map[domain.EntityType]int `json:"skips"`
	TotalCreations int                       `json:"total_creations"`
	TotalUpdates   int                       `json:"total_updates"`
	TotalSkips     int                       `json:"total_skips"`
	TotalRows      int                       `json:"total_rows"`
	ErrorRows      int                       `json:"error_rows"`
	SuccessRate    float64                   `json:"success_rate"`
}

type resultResponse struct {
	Operation  string                `json:"operation"`
	EntityType string                `json:"entity_type"`
	Count      int                   `json:"count"`
	Details    []domain.ChangeRecord `json:"details,omitempty"`
}

type reportResponse struct {
	Import  importResponse   `json:"import"`
	Impact  *impactResponse  `json:"impact,omitempty"`
	Results []resultResponse `json:"results,omitempty"`
}

type importErrorResponse struct {
	Row       int            `json:"row"`
	Phase     string         `json:"phase"`
	Severity  string         `json:"severity"`
	Field     string         `json:"field,omitempty"`
	Message   string         `json:"message"`
	RawData   map[string]any `json:"raw_data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewImportHandler(service app.ImportService, log *zap.SugaredLogger) *ImportHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ImportHandler{service: service, log: log}
}

func (h *ImportHandler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "multipart field \"file\" is required",
		}})
	}
	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "uploaded file cannot be read",
		}})
	}
	defer src.Close()

	ownerID := c.FormValue("owner_id")
	if ownerID == "" {
		ownerID = c.Request().Header.Get("X-User-ID")
	}

	imp, err := h.service.Upload(c.Request().Context(), app.UploadInput{
		OriginalName: fileHeader.Filename,
		Content:      src,
		Kind:         c.FormValue("kind"),
		OwnerID:      ownerID,
	})
	if err != nil {
		return h.fail(c, err, "failed to create import")
	}
	return c.JSON(http.StatusCreated, apiResponse{Data: toImportResponse(imp)})
}

func (h *ImportHandler) Analyze(c echo.Context) error {
	imp, err := h.service.StartAnalysis(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err, "failed to start analysis")
	}
	return c.JSON(http.StatusAccepted, apiResponse{Data: toImportResponse(imp)})
}

func (h *ImportHandler) Confirm(c echo.Context) error {
	imp, err := h.service.ConfirmAndProcess(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err, "failed to start processing")
	}
	return c.JSON(http.StatusAccepted, apiResponse{Data: toImportResponse(imp)})
}

func (h *ImportHandler) Cancel(c echo.Context) error {
	imp, err := h.service.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err, "failed to cancel import")
	}
	return c.JSON(http.StatusOK, apiResponse{Data: toImportResponse(imp)})
}

func (h *ImportHandler) Get(c echo.Context) error {
	report, err := h.service.Report(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err, "failed to get import")
	}

	out := reportResponse{Import: toImportResponse(report.Import)}
	if len(report.Results) > 0 || report.Import.Status == domain.StatusAwaitingConfirmation {
		impact := toImpactResponse(report.Impact)
		out.Impact = &impact
		for _, r := range report.Results {
			out.Results = append(out.Results, resultResponse{
				Operation:  string(r.Operation),
				EntityType: string(r.EntityType),
				Count:      r.Count,
				Details:    r.Details,
			})
		}
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) Errors(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	errs, err := h.service.Errors(c.Request().Context(), c.Param("id"), limit, offset)
	if err != nil {
		return h.fail(c, err, "failed to list import errors")
	}

	out := make([]importErrorResponse, 0, len(errs))
	for _, e := range errs {
		out = append(out, importErrorResponse{
			Row:       e.Row,
			Phase:     string(e.Phase),
			Severity:  string(e.Severity),
			Field:     e.Field,
			Message:   e.Message,
			RawData:   e.RawData,
			CreatedAt: e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) fail(c echo.Context, err error, message string) error {
	switch {
	case errors.Is(err, app.ErrInvalidUpload):
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "invalid_upload",
			Message: err.Error(),
		}})
	case errors.Is(err, app.ErrImportNotFound):
		return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
			Code:    "not_found",
			Message: "import not found",
		}})
	case errors.Is(err, app.ErrInvalidState), errors.Is(err, app.ErrConflict):
		return c.JSON(http.StatusConflict, apiResponse{Error: &errorBody{
			Code:    "invalid_state",
			Message: err.Error(),
		}})
	}

	h.log.Errorw(message, "import_id", c.Param("id"), "error", err)
	return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
		Code:    "internal_error",
		Message: message,
	}})
}

func toImportResponse(imp *domain.Import) importResponse {
	out := importResponse{
		ID:               imp.ID,
		OriginalFilename: imp.OriginalFilename,
		Kind:             string(imp.Kind),
		Status:           string(imp.Status),
		TotalRows:        imp.TotalRows,
		ProcessedRows:    imp.ProcessedRows,
		SuccessRows:      imp.SuccessRows,
		ErrorRows:        imp.ErrorRows,
		OwnerID:          imp.OwnerID,
		ErrorMessage:     imp.ErrorMessage,
		CreatedAt:        imp.CreatedAt,
		StartedAt:        imp.StartedAt,
		CompletedAt:      imp.CompletedAt,
	}
	if imp.TotalRows > 0 {
		out.Progress = float64(imp.ProcessedRows) / float64(imp.TotalRows) * 100
	}
	return out
}

func toImpactResponse(impact domain.AnalysisImpact) impactResponse {
	return impactResponse{
		Creations:      impact.Creations(),
		Updates:        impact.Updates(),
		Skips:          impact.Skips(),
		TotalCreations: impact.TotalCreations(),
		TotalUpdates:   impact.TotalUpdates(),
		TotalSkips:     impact.TotalSkips(),
		TotalRows:      impact.TotalRows(),
		ErrorRows:      impact.ErrorRows(),
		SuccessRate:    impact.SuccessRate(),
	}
}
