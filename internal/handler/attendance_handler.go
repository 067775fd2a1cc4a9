package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/presensia/attendance-api/internal/dto"
	"github.com/presensia/attendance-api/internal/service"
	appErrors "github.com/presensia/attendance-api/pkg/errors"
	"github.com/presensia/attendance-api/pkg/response"
)

// AttendanceHandler wires HTTP endpoints to the attendance ledger service.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

type markAttendanceRequest struct {
	QRUUID string `json:"qr_uuid" binding:"required"`
}

// Mark godoc
// @Summary Mark attendance by QR code
// @Description Record today's presence for the student identified by the scanned QR payload. Re-scanning the same day reports already_marked without creating a second row.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body markAttendanceRequest true "Scanned QR payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/mark [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req markAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "qr_uuid is required"))
		return
	}

	result, err := h.service.Mark(c.Request.Context(), req.QRUUID, claims.Actor(), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, service.MarkResponse(result), nil)
}

// List godoc
// @Summary List attendance records
// @Description Paginated ledger listing. Teachers see their class, students their own rows; the class filter is admin only.
// @Tags Attendance
// @Produce json
// @Param date query string false "Exact date (YYYY-MM-DD)"
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Param class_name query string false "Class filter (admin only)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.ListAttendanceRequest{ClassName: c.Query("class_name")}
	var err error
	if req.Date, err = optionalDate(c.Query("date")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	if req.StartDate, err = optionalDate(c.Query("start_date")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD"))
		return
	}
	if req.EndDate, err = optionalDate(c.Query("end_date")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD"))
		return
	}
	req.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	records, pagination, err := h.service.List(c.Request.Context(), req, claims.Actor())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.AttendanceListResponse{Records: records}, pagination)
}

// Delete godoc
// @Summary Delete an attendance record
// @Description Remove a ledger row by id and recompute the affected summary. Admin only.
// @Tags Attendance
// @Produce json
// @Param id path string true "Record id"
// @Success 204 "No Content"
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.Actor(), c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func optionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
