package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/presensia/attendance-api/internal/models"
	appErrors "github.com/presensia/attendance-api/pkg/errors"
)

type userRepoStub struct {
	users map[string]*models.User
}

func (r *userRepoStub) FindByUsername(_ context.Context, username string) (*models.User, error) {
	user, ok := r.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (r *userRepoStub) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range r.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func authFixture(t *testing.T) (*AuthService, *auditStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	class := "10-A"
	repo := &userRepoStub{users: map[string]*models.User{
		"teacher1": {ID: "u2", Username: "teacher1", PasswordHash: string(hash), Role: models.RoleTeacher, AssignedClass: &class, Active: true},
		"10A01":    {ID: "u3", Username: "10A01", PasswordHash: string(hash), Role: models.RoleStudent, Active: true},
		"locked":   {ID: "u4", Username: "locked", PasswordHash: string(hash), Role: models.RoleStudent, Active: false},
	}}
	audit := &auditStub{}
	svc := NewAuthService(repo, audit, nil, nil, AuthConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "test"})
	return svc, audit
}

func TestLoginIssuesToken(t *testing.T) {
	svc, audit := authFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "teacher1", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.RoleTeacher, res.User.Role)
	require.NotNil(t, res.User.AssignedClass)
	assert.Equal(t, "10-A", *res.User.AssignedClass)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLogin, audit.logs[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u2", claims.UserID)
	assert.Equal(t, "10-A", claims.AssignedClass)

	actor := claims.Actor()
	assert.Equal(t, models.RoleTeacher, actor.Role)
	assert.Equal(t, "10-A", actor.AssignedClass)
}

func TestLoginStudentActorCarriesRollNo(t *testing.T) {
	svc, _ := authFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "10A01", Password: "secret123"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	actor := claims.Actor()
	assert.Equal(t, models.RoleStudent, actor.Role)
	assert.Equal(t, "10A01", actor.RollNo)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "teacher1", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "secret123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "locked", Password: "secret123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
