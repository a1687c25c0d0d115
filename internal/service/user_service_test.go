package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"accpanel/internal/auth"
	apperrors "accpanel/internal/errors"
	"accpanel/internal/model"
)

var (
	roleAdmin = model.Role{ID: 1, Name: auth.AuthorityAdmin}
	roleUser  = model.Role{ID: 2, Name: auth.AuthorityUser}
)

func testHasher() auth.PasswordHasher {
	return auth.NewBcryptHasher(bcrypt.MinCost)
}

func validDraft() CreateUserInput {
	return CreateUserInput{
		Username:  "alice",
		Email:     "alice@x.com",
		Password:  "secret1",
		FirstName: "Alice",
		LastName:  "Anders",
		Age:       30,
	}
}

func TestUserService_Create(t *testing.T) {
	tests := []struct {
		name      string
		input     CreateUserInput
		selector  RoleSelector
		setupMock func(*MockUserRepository, *MockRoleRepository)
		check     func(*testing.T, *model.User, error)
	}{
		{
			name:     "successful creation hashes the password",
			input:    validDraft(),
			selector: RolesByName(auth.AuthorityUser),
			setupMock: func(users *MockUserRepository, roles *MockRoleRepository) {
				roles.On("FindAllByNames", mock.Anything, []string{auth.AuthorityUser}).Return([]model.Role{roleUser}, nil)
				users.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
				users.On("ExistsByUsername", mock.Anything, "alice", uint(0)).Return(false, nil)
				users.On("ExistsByEmail", mock.Anything, "alice@x.com", uint(0)).Return(false, nil)
				users.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Run(func(args mock.Arguments) {
					args.Get(1).(*model.User).ID = 1
				}).Return(nil)
			},
			check: func(t *testing.T, user *model.User, err error) {
				require.NoError(t, err)
				require.NotNil(t, user)
				assert.Equal(t, uint(1), user.ID)
				assert.NotEqual(t, "secret1", user.PasswordHash)
				assert.True(t, testHasher().Verify("secret1", user.PasswordHash))
				assert.Equal(t, []model.Role{roleUser}, user.Roles)
			},
		},
		{
			name:      "all field violations reported together",
			input:     CreateUserInput{Age: -1},
			selector:  RolesByName(auth.AuthorityUser),
			setupMock: func(users *MockUserRepository, roles *MockRoleRepository) {},
			check: func(t *testing.T, user *model.User, err error) {
				require.Error(t, err)
				var validationErr *apperrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				for _, field := range []string{"username", "email", "password", "firstname", "lastname", "age"} {
					assert.Contains(t, validationErr.Fields, field)
				}
			},
		},
		{
			name:      "username too short",
			input:     func() CreateUserInput { in := validDraft(); in.Username = "al"; return in }(),
			selector:  RolesByName(auth.AuthorityUser),
			setupMock: func(users *MockUserRepository, roles *MockRoleRepository) {},
			check: func(t *testing.T, user *model.User, err error) {
				var validationErr *apperrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Contains(t, validationErr.Fields, "username")
				assert.Len(t, validationErr.Fields, 1)
			},
		},
		{
			name:      "empty role selector rejected",
			input:     validDraft(),
			selector:  RoleSelector{},
			setupMock: func(users *MockUserRepository, roles *MockRoleRepository) {},
			check: func(t *testing.T, user *model.User, err error) {
				var validationErr *apperrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Contains(t, validationErr.Fields, "roles")
			},
		},
		{
			name:     "selector resolving to no roles rejected",
			input:    validDraft(),
			selector: RolesByName("ROLE_GHOST"),
			setupMock: func(users *MockUserRepository, roles *MockRoleRepository) {
				roles.On("FindAllByNames", mock.Anything, []string{"ROLE_GHOST"}).Return([]model.Role{}, nil)
			},
			check: func(t *testing.T, user *model.User, err error) {
				var validationErr *apperrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Contains(t, validationErr.Fields, "roles")
			},
		},
		{
			name:     "duplicate email conflicts",
			input:    validDraft(),
			selector: RolesByID(2),
			setupMock: func(users *MockUserRepository, roles *MockRoleRepository) {
				roles.On("FindAllByIDs", mock.Anything, []uint{2}).Return([]model.Role{roleUser}, nil)
				users.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
				users.On("ExistsByUsername", mock.Anything, "alice", uint(0)).Return(false, nil)
				users.On("ExistsByEmail", mock.Anything, "alice@x.com", uint(0)).Return(true, nil)
			},
			check: func(t *testing.T, user *model.User, err error) {
				var conflictErr *apperrors.ConflictError
				require.ErrorAs(t, err, &conflictErr)
				assert.Equal(t, "email", conflictErr.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserRepository)
			roles := new(MockRoleRepository)
			tt.setupMock(users, roles)

			svc := NewUserService(users, roles, testHasher(), nil)
			user, err := svc.Create(context.Background(), tt.input, tt.selector)

			tt.check(t, user, err)
			users.AssertExpectations(t)
			roles.AssertExpectations(t)
			if err != nil {
				users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestUserService_Update_PasswordRules(t *testing.T) {
	hasher := testHasher()
	existingHash, err := hasher.Hash("secret1")
	require.NoError(t, err)

	existing := func() *model.User {
		return &model.User{
			ID:           7,
			Username:     "alice",
			Email:        "alice@x.com",
			PasswordHash: existingHash,
			FirstName:    "Alice",
			LastName:     "Anders",
			Age:          30,
			Roles:        []model.Role{roleUser},
		}
	}

	t.Run("empty password keeps stored hash unchanged", func(t *testing.T) {
		users := new(MockUserRepository)
		roles := new(MockRoleRepository)
		users.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		users.On("FindByID", mock.Anything, uint(7)).Return(existing(), nil)
		users.On("ExistsByUsername", mock.Anything, "alicia", uint(7)).Return(false, nil)
		users.On("ExistsByEmail", mock.Anything, "alice@x.com", uint(7)).Return(false, nil)
		users.On("Update", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)

		svc := NewUserService(users, roles, hasher, nil)
		newUsername := "alicia"
		updated, err := svc.Update(context.Background(), 7, UpdateUserInput{Username: &newUsername}, nil)

		require.NoError(t, err)
		assert.Equal(t, "alicia", updated.Username)
		assert.Equal(t, existingHash, updated.PasswordHash)
		users.AssertNotCalled(t, "ReplaceRoles", mock.Anything, mock.Anything, mock.Anything)
		users.AssertExpectations(t)
	})

	t.Run("new password is re-hashed", func(t *testing.T) {
		users := new(MockUserRepository)
		roles := new(MockRoleRepository)
		users.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		users.On("FindByID", mock.Anything, uint(7)).Return(existing(), nil)
		users.On("ExistsByUsername", mock.Anything, "alice", uint(7)).Return(false, nil)
		users.On("ExistsByEmail", mock.Anything, "alice@x.com", uint(7)).Return(false, nil)
		users.On("Update", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)

		svc := NewUserService(users, roles, hasher, nil)
		updated, err := svc.Update(context.Background(), 7, UpdateUserInput{Password: "newpass1"}, nil)

		require.NoError(t, err)
		assert.NotEqual(t, existingHash, updated.PasswordHash)
		assert.True(t, hasher.Verify("newpass1", updated.PasswordHash))
		assert.False(t, hasher.Verify("secret1", updated.PasswordHash))
		users.AssertExpectations(t)
	})

	t.Run("selector replaces roles", func(t *testing.T) {
		users := new(MockUserRepository)
		roles := new(MockRoleRepository)
		roles.On("FindAllByNames", mock.Anything, []string{auth.AuthorityAdmin}).Return([]model.Role{roleAdmin}, nil)
		users.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		users.On("FindByID", mock.Anything, uint(7)).Return(existing(), nil)
		users.On("ExistsByUsername", mock.Anything, "alice", uint(7)).Return(false, nil)
		users.On("ExistsByEmail", mock.Anything, "alice@x.com", uint(7)).Return(false, nil)
		users.On("Update", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
		users.On("ReplaceRoles", mock.Anything, mock.AnythingOfType("*model.User"), []model.Role{roleAdmin}).Return(nil)

		svc := NewUserService(users, roles, hasher, nil)
		selector := RolesByName(auth.AuthorityAdmin)
		updated, err := svc.Update(context.Background(), 7, UpdateUserInput{}, &selector)

		require.NoError(t, err)
		assert.Equal(t, []model.Role{roleAdmin}, updated.Roles)
		users.AssertExpectations(t)
		roles.AssertExpectations(t)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		users := new(MockUserRepository)
		roles := new(MockRoleRepository)
		users.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		users.On("FindByID", mock.Anything, uint(99)).Return(nil, apperrors.ErrNotFound)

		svc := NewUserService(users, roles, hasher, nil)
		_, err := svc.Update(context.Background(), 99, UpdateUserInput{}, nil)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		users.AssertExpectations(t)
	})
}

func TestUserService_Delete(t *testing.T) {
	users := new(MockUserRepository)
	roles := new(MockRoleRepository)
	users.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	users.On("DeleteByID", mock.Anything, uint(7)).Return(nil)

	svc := NewUserService(users, roles, testHasher(), nil)
	err := svc.Delete(context.Background(), 7)

	assert.NoError(t, err)
	users.AssertExpectations(t)
}

func TestUserService_AuthoritiesFor(t *testing.T) {
	svc := NewUserService(new(MockUserRepository), new(MockRoleRepository), testHasher(), nil)

	tests := []struct {
		name  string
		roles []model.Role
		want  []string
	}{
		{
			name:  "duplicates removed and order normalised",
			roles: []model.Role{roleUser, roleAdmin, roleAdmin},
			want:  []string{auth.AuthorityAdmin, auth.AuthorityUser},
		},
		{
			name:  "order independent",
			roles: []model.Role{roleAdmin, roleUser},
			want:  []string{auth.AuthorityAdmin, auth.AuthorityUser},
		},
		{
			name:  "no roles no authorities",
			roles: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.AuthoritiesFor(&model.User{Roles: tt.roles})
			assert.Equal(t, tt.want, got)
		})
	}
}
