package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	IP       string `json:"-"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Role          UserRole `json:"role"`
	AssignedClass *string  `json:"assigned_class,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID        string   `json:"user_id"`
	Username      string   `json:"username"`
	Role          UserRole `json:"role"`
	AssignedClass string   `json:"assigned_class,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts token claims into the permission-gate actor. Student
// usernames are their roll numbers.
func (c *JWTClaims) Actor() Actor {
	switch c.Role {
	case RoleTeacher:
		return Actor{UserID: c.UserID, Role: RoleTeacher, AssignedClass: c.AssignedClass}
	case RoleStudent:
		return Actor{UserID: c.UserID, Role: RoleStudent, RollNo: c.Username}
	default:
		return Actor{UserID: c.UserID, Role: RoleAdmin}
	}
}
