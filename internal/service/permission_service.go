package service

import (
	"github.com/presensia/attendance-api/internal/models"
	appErrors "github.com/presensia/attendance-api/pkg/errors"
)

// Operation names a ledger or report action checked by the permission gate.
type Operation string

const (
	OpMarkAttendance   Operation = "attendance.mark"
	OpDeleteAttendance Operation = "attendance.delete"
	OpListAttendance   Operation = "attendance.list"
	OpSelfHistory      Operation = "attendance.self"
	OpClassReport      Operation = "report.class"
	OpStudentReport    Operation = "report.student"
)

// PermissionTarget identifies what the operation touches. ClassName applies to
// class-scoped operations, RollNo to student-scoped ones; student-percentage
// reports carry both.
type PermissionTarget struct {
	ClassName string
	RollNo    string
}

// PermissionGate decides whether an actor may perform an operation against a
// target. Every mutation and every read exposing another actor's data goes
// through Authorize before touching the ledger.
type PermissionGate struct{}

// NewPermissionGate constructs the gate.
func NewPermissionGate() *PermissionGate {
	return &PermissionGate{}
}

// Authorize returns nil to allow, or a typed Forbidden error carrying the
// deny reason (WRONG_CLASS, NOT_SELF, ROLE_NOT_PERMITTED).
func (g *PermissionGate) Authorize(actor models.Actor, op Operation, target PermissionTarget) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		return g.authorizeTeacher(actor, op, target)
	case models.RoleStudent:
		return g.authorizeStudent(actor, op, target)
	default:
		return appErrors.ErrRoleNotPermitted
	}
}

func (g *PermissionGate) authorizeTeacher(actor models.Actor, op Operation, target PermissionTarget) error {
	switch op {
	case OpDeleteAttendance, OpSelfHistory:
		return appErrors.ErrRoleNotPermitted
	case OpMarkAttendance, OpListAttendance, OpClassReport, OpStudentReport:
		if target.ClassName != actor.AssignedClass {
			return appErrors.ErrWrongClass
		}
		return nil
	default:
		return appErrors.ErrRoleNotPermitted
	}
}

func (g *PermissionGate) authorizeStudent(actor models.Actor, op Operation, target PermissionTarget) error {
	switch op {
	case OpListAttendance, OpSelfHistory, OpStudentReport:
		if target.RollNo != actor.RollNo {
			return appErrors.ErrNotSelf
		}
		return nil
	default:
		return appErrors.ErrRoleNotPermitted
	}
}
