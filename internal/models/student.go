package models

// Student represents a student in the read-only directory. Email and mobile
// come from the linked user account when one exists.
type Student struct {
	ID     string  `db:"id" json:"id"`
	UserID *string `db:"user_id" json:"user_id,omitempty"`
	Name   string  `db:"name" json:"name"`
	RollNo string  `db:"roll_no" json:"roll_no"`
	Class  string  `db:"class" json:"class"`
	QRUUID string  `db:"qr_uuid" json:"-"`
	Active bool    `db:"is_active" json:"is_active"`
	Email  *string `db:"email" json:"email,omitempty"`
	Mobile *string `db:"mobile" json:"mobile,omitempty"`
}

// ClassSection represents a class with its attendance requirement.
type ClassSection struct {
	ID                 string   `db:"id" json:"id"`
	Name               string   `db:"name" json:"name"`
	RequiredPercentage *float64 `db:"required_attendance_percentage" json:"required_attendance_percentage,omitempty"`
	Active             bool     `db:"is_active" json:"is_active"`
}
