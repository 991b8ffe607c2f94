package services

import (
	"context"
	"testing"

	"github.com/mlearn/apiserver/internal/storage"
	"github.com/mlearn/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, role := range []types.Role{types.RoleStudent, types.RoleProfessor} {
		email := string(role) + "@x.com"
		registered, err := e.users.Register(ctx, RegisterInput{Email: email, Password: "secret", Role: role})
		require.NoError(t, err)
		assert.NotEqual(t, "secret", registered.PasswordHash)

		user, err := e.users.Authenticate(ctx, email, "secret", role)
		require.NoError(t, err)
		assert.Equal(t, role, user.Role)
		assert.Equal(t, registered.ID, user.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "dup@x.com", types.RoleStudent)

	_, err := e.users.Register(ctx, RegisterInput{Email: "dup@x.com", Password: "other", Role: types.RoleProfessor})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = e.users.Register(ctx, RegisterInput{Email: " dup@x.com ", Password: "pw", Role: types.RoleStudent})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"missing email", RegisterInput{Password: "pw", Role: types.RoleStudent}, "email"},
		{"missing password", RegisterInput{Email: "a@x.com", Role: types.RoleStudent}, "password"},
		{"missing role", RegisterInput{Email: "a@x.com", Password: "pw"}, "role"},
		{"unknown role", RegisterInput{Email: "a@x.com", Password: "pw", Role: "Admin"}, "role"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.users.Register(ctx, tc.in)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestAuthenticateFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "s@x.com", types.RoleStudent)

	_, err := e.users.Authenticate(ctx, "s@x.com", "pw", types.RoleProfessor)
	assert.ErrorIs(t, err, ErrRoleMismatch)

	_, err = e.users.Authenticate(ctx, "s@x.com", "wrong", types.RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.users.Authenticate(ctx, "nobody@x.com", "pw", types.RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.users.Authenticate(ctx, "s@x.com", "wrong", types.RoleProfessor)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.users.Authenticate(ctx, "", "pw", types.RoleStudent)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProfileAndRoleLookup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "p@x.com", types.RoleProfessor)

	profile, err := e.users.GetProfileByEmail(ctx, "p@x.com")
	require.NoError(t, err)
	assert.Equal(t, "p@x.com", profile.Email)

	role, err := e.users.GetRoleByEmail(ctx, "p@x.com")
	require.NoError(t, err)
	assert.Equal(t, types.RoleProfessor, role)

	_, err = e.users.GetProfileByEmail(ctx, "")
	assert.ErrorIs(t, err, ErrMissingEmail)

	_, err = e.users.GetRoleByEmail(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfilePreservesAvatar(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "s@x.com", types.RoleStudent)

	withAvatar, err := e.users.UpdateProfile(ctx, ProfileUpdate{Email: "s@x.com", Name: "Sam"}, &storage.Upload{Filename: "a.png", Data: pngBytes})
	require.NoError(t, err)
	require.NotNil(t, withAvatar.ProfilePicture)
	avatar := *withAvatar.ProfilePicture

	updated, err := e.users.UpdateProfile(ctx, ProfileUpdate{
		Email:       "s@x.com",
		Name:        "Sam",
		City:        "Lyon",
		Interests:   " Music, ,Travel ",
		DateOfBirth: "2001-02-03",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, updated.ProfilePicture)
	assert.Equal(t, avatar, *updated.ProfilePicture)

	stored, err := e.users.GetProfileByEmail(ctx, "s@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored.ProfilePicture)
	assert.Equal(t, avatar, *stored.ProfilePicture)
	assert.Equal(t, "Lyon", stored.City)
	assert.Equal(t, "Music,Travel", stored.Interests)
	assert.Equal(t, "2001-02-03", stored.DateOfBirth)
	assert.Equal(t, types.RoleStudent, stored.Role)

	_, err = e.users.Authenticate(ctx, "s@x.com", "pw", types.RoleStudent)
	assert.NoError(t, err)
}

func TestUpdateProfileReplacesAvatarAndPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "s@x.com", types.RoleStudent)

	first, err := e.users.UpdateProfile(ctx, ProfileUpdate{Email: "s@x.com"}, &storage.Upload{Filename: "a.png", Data: pngBytes})
	require.NoError(t, err)
	second, err := e.users.UpdateProfile(ctx, ProfileUpdate{Email: "s@x.com", Password: "new"}, &storage.Upload{Filename: "b.png", Data: pngBytes})
	require.NoError(t, err)

	assert.NotEqual(t, *first.ProfilePicture, *second.ProfilePicture)
	key, ok := storage.KeyFromPath(*second.ProfilePicture)
	require.True(t, ok)
	assert.Equal(t, []string{key}, e.objects.Keys())

	_, err = e.users.Authenticate(ctx, "s@x.com", "pw", types.RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = e.users.Authenticate(ctx, "s@x.com", "new", types.RoleStudent)
	assert.NoError(t, err)
}

func TestUpdateProfileErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "s@x.com", types.RoleStudent)

	_, err := e.users.UpdateProfile(ctx, ProfileUpdate{Name: "x"}, nil)
	assert.ErrorIs(t, err, ErrMissingEmail)

	_, err = e.users.UpdateProfile(ctx, ProfileUpdate{Email: "s@x.com", DateOfBirth: "03/02/2001"}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.users.UpdateProfile(ctx, ProfileUpdate{Email: "ghost@x.com"}, &storage.Upload{Filename: "a.png", Data: pngBytes})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, e.objects.Keys())
}
