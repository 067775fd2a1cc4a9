package models

import "time"

// MarkStatus distinguishes the two success-shaped outcomes of a mark call.
type MarkStatus string

const (
	MarkStatusMarked        MarkStatus = "Marked"
	MarkStatusAlreadyMarked MarkStatus = "AlreadyMarked"
)

// AttendanceRecord is one presence event. Student name, roll number and class
// are denormalized snapshots taken at marking time, not live joins.
type AttendanceRecord struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	RollNo      string    `db:"roll_no" json:"roll_no"`
	ClassName   string    `db:"class_name" json:"class_name"`
	Date        time.Time `db:"date" json:"date"`
	Time        string    `db:"time" json:"time"`
	MarkedBy    string    `db:"marked_by" json:"marked_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MarkResult wraps the outcome of a mark operation.
type MarkResult struct {
	Status MarkStatus
	Record *AttendanceRecord
}

// AttendanceFilter defines listing filters. Role scoping (teacher class,
// student roll number) is applied by the service before it reaches here.
type AttendanceFilter struct {
	Date      *time.Time
	StartDate *time.Time
	EndDate   *time.Time
	ClassName string
	RollNo    string
	Page      int
	PageSize  int
}

// AttendanceSummary is the cached per-student monthly aggregate, derived
// entirely from attendance records. total_days counts observed working days
// for the student's class; present_days counts the student's own records.
type AttendanceSummary struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	Month       int       `db:"month" json:"month"`
	Year        int       `db:"year" json:"year"`
	TotalDays   int       `db:"total_days" json:"total_days"`
	PresentDays int       `db:"present_days" json:"present_days"`
	Percentage  float64   `db:"percentage" json:"percentage"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StudentPresence is the per-student aggregate used by class percentage
// reports: distinct present dates within a range.
type StudentPresence struct {
	StudentID   string `db:"student_id" json:"id"`
	Name        string `db:"name" json:"name"`
	RollNo      string `db:"roll_no" json:"roll_no"`
	PresentDays int    `db:"present_days" json:"present_days"`
}
