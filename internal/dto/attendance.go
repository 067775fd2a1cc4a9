package dto

import (
	"time"

	"github.com/presensia/attendance-api/internal/models"
)

// StudentInfo identifies a student in attendance responses.
type StudentInfo struct {
	Name   string `json:"name"`
	RollNo string `json:"roll_no"`
	Class  string `json:"class"`
}

// MarkAttendanceResponse reports the outcome of a mark call. AlreadyMarked is
// a normal outcome, not an error.
type MarkAttendanceResponse struct {
	Status   models.MarkStatus `json:"status"`
	Student  StudentInfo       `json:"student"`
	MarkedAt *time.Time        `json:"marked_at,omitempty"`
}

// AttendanceListResponse is the paginated, role-scoped ledger listing.
type AttendanceListResponse struct {
	Records []models.AttendanceRecord `json:"records"`
}

// PeriodInfo echoes the resolved date range of a report.
type PeriodInfo struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// AttendanceStatistics is the common percentage block shared by student
// percentage reports and self history.
type AttendanceStatistics struct {
	TotalWorkingDays     int     `json:"total_working_days"`
	PresentDays          int     `json:"present_days"`
	AbsentDays           int     `json:"absent_days"`
	AttendancePercentage float64 `json:"attendance_percentage"`
	RequiredPercentage   float64 `json:"required_percentage"`
	Status               string  `json:"status"`
}

// SelfHistoryResponse carries a student's own statistics plus the raw records,
// newest first.
type SelfHistoryResponse struct {
	Period     string                    `json:"period"`
	StartDate  string                    `json:"start_date"`
	EndDate    string                    `json:"end_date"`
	Statistics AttendanceStatistics      `json:"statistics"`
	Records    []models.AttendanceRecord `json:"records"`
}
