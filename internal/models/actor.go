package models

// Actor is the tagged capability variant evaluated by the permission gate.
// Exactly one of the payload fields is meaningful per role: AssignedClass for
// teachers, RollNo for students. Admins carry no restriction payload.
type Actor struct {
	UserID        string
	Role          UserRole
	AssignedClass string
	RollNo        string
}

// AdminActor builds an unrestricted actor.
func AdminActor(userID string) Actor {
	return Actor{UserID: userID, Role: RoleAdmin}
}

// TeacherActor builds an actor scoped to a single class.
func TeacherActor(userID, assignedClass string) Actor {
	return Actor{UserID: userID, Role: RoleTeacher, AssignedClass: assignedClass}
}

// StudentActor builds a read-only actor scoped to its own roll number.
func StudentActor(userID, rollNo string) Actor {
	return Actor{UserID: userID, Role: RoleStudent, RollNo: rollNo}
}
