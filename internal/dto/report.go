package dto

import "github.com/presensia/attendance-api/internal/models"

// DailyClassSummary is the per-class snapshot for one date.
type DailyClassSummary struct {
	ClassName            string  `json:"class_name"`
	Date                 string  `json:"date"`
	TotalStudents        int     `json:"total_students"`
	Present              int     `json:"present"`
	Absent               int     `json:"absent"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// AbsentListResponse lists active students without a record on a date,
// ordered by roll number.
type AbsentListResponse struct {
	ClassName      string           `json:"class_name"`
	Date           string           `json:"date"`
	TotalAbsent    int              `json:"total_absent"`
	AbsentStudents []models.Student `json:"absent_students"`
}

// StudentPercentageReport compares one student's range percentage against the
// class requirement.
type StudentPercentageReport struct {
	Student    StudentInfo          `json:"student"`
	Period     PeriodInfo           `json:"period"`
	Statistics AttendanceStatistics `json:"statistics"`
}

// ClassStudentPercentage is one row of a class percentage report.
type ClassStudentPercentage struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	RollNo      string  `json:"roll_no"`
	PresentDays int     `json:"present_days"`
	AbsentDays  int     `json:"absent_days"`
	Percentage  float64 `json:"percentage"`
}

// ClassPercentageStatistics aggregates a class percentage report.
type ClassPercentageStatistics struct {
	TotalWorkingDays  int     `json:"total_working_days"`
	TotalStudents     int     `json:"total_students"`
	AveragePercentage float64 `json:"average_percentage"`
}

// ClassPercentageReport is the whole-class percentage breakdown over a range.
type ClassPercentageReport struct {
	ClassName  string                    `json:"class_name"`
	Period     PeriodInfo                `json:"period"`
	Statistics ClassPercentageStatistics `json:"statistics"`
	Students   []ClassStudentPercentage  `json:"students"`
}
