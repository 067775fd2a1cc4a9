package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/presensia/attendance-api/internal/service"
	appErrors "github.com/presensia/attendance-api/pkg/errors"
	"github.com/presensia/attendance-api/pkg/response"
)

// ReportHandler wires HTTP endpoints to the report engine.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// DailySummary godoc
// @Summary Daily class summary
// @Description Present/absent counts and percentage for a class on one date. Date defaults to today.
// @Tags Reports
// @Produce json
// @Param class path string true "Class name"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/daily-summary/{class} [get]
func (h *ReportHandler) DailySummary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	date, err := dateOrToday(c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	summary, err := h.service.DailyClassSummary(c.Request.Context(), claims.Actor(), c.Param("class"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// AbsentList godoc
// @Summary Absent students for a class
// @Description Active students with no record on the date, ordered by roll number. Date defaults to today.
// @Tags Reports
// @Produce json
// @Param class path string true "Class name"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/absent/{class} [get]
func (h *ReportHandler) AbsentList(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	date, err := dateOrToday(c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	list, err := h.service.AbsentList(c.Request.Context(), claims.Actor(), c.Param("class"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// StudentPercentage godoc
// @Summary Attendance percentage for one student
// @Description Percentage over an inclusive range compared against the class requirement.
// @Tags Reports
// @Produce json
// @Param roll_no path string true "Roll number"
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/student-percentage/{roll_no} [get]
func (h *ReportHandler) StudentPercentage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start, end, err := requiredRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.service.StudentPercentage(c.Request.Context(), claims.Actor(), c.Param("roll_no"), start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ClassPercentage godoc
// @Summary Attendance percentages for a whole class
// @Description Per-student percentages over an inclusive range plus the class average.
// @Tags Reports
// @Produce json
// @Param class path string true "Class name"
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/class-percentage/{class} [get]
func (h *ReportHandler) ClassPercentage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start, end, err := requiredRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.service.ClassPercentage(c.Request.Context(), claims.Actor(), c.Param("class"), start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// SelfHistory godoc
// @Summary Own attendance history
// @Description The acting student's statistics and records for a named period ending today.
// @Tags Reports
// @Produce json
// @Param period query string false "week, month, year or all (default month)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/me [get]
func (h *ReportHandler) SelfHistory(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	history, err := h.service.SelfHistory(c.Request.Context(), claims.Actor(), c.DefaultQuery("period", service.PeriodMonth))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// ExportDailySummary godoc
// @Summary Export daily summary
// @Description Download the daily class summary with its absent list as CSV or PDF.
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param class path string true "Class name"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/daily-summary/{class}/export [get]
func (h *ReportHandler) ExportDailySummary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	date, err := dateOrToday(c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	payload, filename, contentType, err := h.service.ExportDailySummary(c.Request.Context(), claims.Actor(), c.Param("class"), date, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

func dateOrToday(value string) (time.Time, error) {
	if value == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", value)
}

func requiredRange(c *gin.Context) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", c.Query("start_date"))
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", c.Query("end_date"))
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
	}
	return start, end, nil
}
