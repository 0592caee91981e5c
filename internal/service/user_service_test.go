package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

func newUserFixture() (*UserService, *memDB, *fakeAccounts) {
	db := newMemDB()
	accounts := &fakeAccounts{accounts: map[string]string{}}
	return NewUserService(fakeUserRepo{db: db}, accounts, nil, nil), db, accounts
}

func validUserRequest() CreateUserRequest {
	return CreateUserRequest{FirstName: "Grace", LastName: "Hopper", PersonalEmail: "grace@example.com", MeemliEmail: "grace@meemli.org"}
}

func TestUserCreateKeysRowByProviderUID(t *testing.T) {
	svc, db, accounts := newUserFixture()

	user, err := svc.Create(context.Background(), validUserRequest())
	require.NoError(t, err)
	assert.Equal(t, "uid-1", user.ID)
	assert.Equal(t, "grace@example.com", accounts.accounts["uid-1"])
	assert.Contains(t, db.users, "uid-1")
	assert.Equal(t, "TEACHER", user.Role())
}

func TestUserCreateErrors(t *testing.T) {
	svc, _, accounts := newUserFixture()

	req := validUserRequest()
	req.FirstName = "G"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "firstName must be at least 2 characters", appErrors.FromError(err).Message)

	_, err = svc.Create(context.Background(), validUserRequest())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), validUserRequest())
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	accounts.err = errors.New("quota exceeded")
	req = validUserRequest()
	req.PersonalEmail = "other@example.com"
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, appErrors.FromError(err).Status)
}

func TestUserUpdatePushesEmailChange(t *testing.T) {
	svc, _, accounts := newUserFixture()
	user, err := svc.Create(context.Background(), validUserRequest())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), user.ID, UpdateUserRequest{PersonalEmail: strPtr("g.hopper@example.com"), Admin: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "g.hopper@example.com", updated.PersonalEmail)
	assert.Equal(t, "g.hopper@example.com", accounts.accounts[user.ID])
	assert.True(t, updated.Admin)

	_, err = svc.Update(context.Background(), "ghost", UpdateUserRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserGetRequiresProviderAccountAndRow(t *testing.T) {
	svc, db, accounts := newUserFixture()

	_, err := svc.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	accounts.accounts["orphan"] = "orphan@example.com"
	_, err = svc.Get(context.Background(), "orphan")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	accounts.accounts["u1"] = "u1@example.com"
	db.users["u1"] = models.User{ID: "u1", FirstName: "Ada"}
	user, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.FirstName)
}

func TestUserIsAdmin(t *testing.T) {
	svc, db, _ := newUserFixture()
	db.users["boss"] = models.User{ID: "boss", Admin: true}
	db.users["teacher"] = models.User{ID: "teacher"}

	admin, err := svc.IsAdmin(context.Background(), "boss")
	require.NoError(t, err)
	assert.True(t, admin)

	admin, err = svc.IsAdmin(context.Background(), "teacher")
	require.NoError(t, err)
	assert.False(t, admin)

	admin, err = svc.IsAdmin(context.Background(), "stranger")
	require.NoError(t, err)
	assert.False(t, admin)
}
