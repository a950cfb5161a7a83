package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gourmetlog/report-service/internal/adapters/http/dto"
	"github.com/gourmetlog/report-service/internal/app"
	"github.com/gourmetlog/report-service/internal/ports"
)

// imageField is the multipart part carrying the photo.
const imageField = "image"

// ReportHandler handles report endpoints.
type ReportHandler struct {
	service *app.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(service *app.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Create handles POST /api/v1/reports.
// Accepts a multipart form with an optional "image" file part.
//
// @Summary Submit a report
// @Tags reports
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} dto.CreateReportResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/v1/reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var form dto.CreateReportForm
	if err := dto.BindFormAndValidate(c, &form); err != nil {
		dto.HandleError(c, err)
		return
	}

	input, err := form.ToInput()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	cmd := app.CreateReportCommand{Input: input}

	fh, err := c.FormFile(imageField)

	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// No photo attached.
	case err != nil:
		dto.HandleError(c, fmt.Errorf("%w: %w", dto.ErrBinding, err))
		return
	case fh.Size > 0:
		file, err := fh.Open()
		if err != nil {
			dto.HandleError(c, fmt.Errorf("%w: %w", dto.ErrBinding, err))
			return
		}
		defer file.Close()

		cmd.Image = imageFrom(fh, file)
	}

	id, err := h.service.CreateReport(c.Request.Context(), cmd)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateReportResponse{ID: id})
}

func imageFrom(fh *multipart.FileHeader, file multipart.File) *ports.Image {
	return &ports.Image{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
	}
}

// List handles GET /api/v1/reports.
// Returns every report, newest first, as a JSON array.
//
// @Summary List reports
// @Tags reports
// @Produce json
// @Success 200 {array} dto.ReportResponse
// @Router /api/v1/reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	reports, err := h.service.ListReports(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewReportListResponse(reports))
}

// Get handles GET /api/v1/reports/:id.
//
// @Summary Get a report
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} dto.ReportResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.service.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewReportResponse(report))
}

// Delete handles DELETE /api/v1/reports/:id.
// The stored photo is removed on a best-effort basis.
//
// @Summary Delete a report
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/reports/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteReport(c.Request.Context(), c.Param("id")); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Report deleted successfully"})
}

// Summary handles GET /api/v1/reports/summary.
func (h *ReportHandler) Summary(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSummaryResponse(overview))
}

// RegisterRoutes registers the report routes on rg. Writes and the summary,
// which exposes health-check messages, go through the guard middleware.
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	reports := rg.Group("/reports")

	reports.GET("", h.List)
	reports.GET("/summary", guard, h.Summary)
	reports.GET("/:id", h.Get)

	reports.POST("", guard, h.Create)
	reports.DELETE("/:id", guard, h.Delete)
}
