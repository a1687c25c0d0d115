package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"accpanel/internal/auth"
	"accpanel/internal/cache"
	apperrors "accpanel/internal/errors"
	"accpanel/internal/metrics"
	"accpanel/internal/model"
	"accpanel/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// RoleSelector picks the roles for an account either by name or by id. The
// zero value selects nothing.
type RoleSelector struct {
	names []string
	ids   []uint
}

// RolesByName selects roles by their names.
func RolesByName(names ...string) RoleSelector {
	return RoleSelector{names: names}
}

// RolesByID selects roles by their ids.
func RolesByID(ids ...uint) RoleSelector {
	return RoleSelector{ids: ids}
}

func (s RoleSelector) empty() bool {
	return len(s.names) == 0 && len(s.ids) == 0
}

// CreateUserInput is a draft for a new account. The password is plaintext here
// and never leaves the service unhashed.
type CreateUserInput struct {
	Username  string `validate:"required,min=3,max=50"`
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=6"`
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Age       int    `validate:"gte=0"`
}

// UpdateUserInput patches an existing account. Nil fields keep the stored
// values. An empty Password keeps the stored hash; a non-empty one triggers a
// re-hash. Presence of a new plaintext is the only re-hash trigger; a hash is
// never compared against a plaintext to decide.
type UpdateUserInput struct {
	Username  *string `validate:"omitempty,min=3,max=50"`
	Email     *string `validate:"omitempty,email"`
	Password  string  `validate:"omitempty,min=6"`
	FirstName *string `validate:"omitempty,min=1"`
	LastName  *string `validate:"omitempty,min=1"`
	Age       *int    `validate:"omitempty,gte=0"`
}

// UserService owns the account lifecycle: validation, role resolution,
// password hashing and persistence.
type UserService interface {
	Create(ctx context.Context, in CreateUserInput, roles RoleSelector) (*model.User, error)
	// Update applies the patch. A nil selector leaves the account's roles
	// untouched; a non-nil one must resolve to at least one role.
	Update(ctx context.Context, id uint, in UpdateUserInput, roles *RoleSelector) (*model.User, error)
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
	// AuthoritiesFor maps the account's role names 1:1 onto authority strings,
	// duplicate-free and sorted.
	AuthoritiesFor(user *model.User) []string
}

type userService struct {
	users    repository.UserRepository
	roles    repository.RoleRepository
	hasher   auth.PasswordHasher
	cache    *cache.Client
	validate *validator.Validate
}

// NewUserService builds a UserService.
func NewUserService(users repository.UserRepository, roles repository.RoleRepository, hasher auth.PasswordHasher, cache *cache.Client) UserService {
	return &userService{
		users:    users,
		roles:    roles,
		hasher:   hasher,
		cache:    cache,
		validate: validator.New(),
	}
}

func (s *userService) cacheKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

func (s *userService) Create(ctx context.Context, in CreateUserInput, selector RoleSelector) (*model.User, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	roles, err := s.resolveRoles(ctx, selector)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Age:          in.Age,
		Roles:        roles,
	}

	err = s.users.WithTransaction(ctx, func(ctx context.Context, tx repository.UserRepository) error {
		if err := s.checkUnique(ctx, tx, user.Username, user.Email, 0); err != nil {
			return err
		}
		return tx.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	metrics.AccountsCreatedTotal.Inc()
	return user, nil
}

func (s *userService) Update(ctx context.Context, id uint, in UpdateUserInput, selector *RoleSelector) (*model.User, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	var newRoles []model.Role
	if selector != nil {
		roles, err := s.resolveRoles(ctx, *selector)
		if err != nil {
			return nil, err
		}
		newRoles = roles
	}

	var hash string
	if in.Password != "" {
		h, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = h
	}

	var updated *model.User
	err := s.users.WithTransaction(ctx, func(ctx context.Context, tx repository.UserRepository) error {
		user, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}

		if in.Username != nil {
			user.Username = *in.Username
		}
		if in.Email != nil {
			user.Email = *in.Email
		}
		if in.FirstName != nil {
			user.FirstName = *in.FirstName
		}
		if in.LastName != nil {
			user.LastName = *in.LastName
		}
		if in.Age != nil {
			user.Age = *in.Age
		}
		if hash != "" {
			user.PasswordHash = hash
		}

		if err := s.checkUnique(ctx, tx, user.Username, user.Email, user.ID); err != nil {
			return err
		}
		if err := tx.Update(ctx, user); err != nil {
			return err
		}
		if selector != nil {
			if err := tx.ReplaceRoles(ctx, user, newRoles); err != nil {
				return err
			}
			user.Roles = newRoles
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return updated, nil
}

func (s *userService) Delete(ctx context.Context, id uint) error {
	err := s.users.WithTransaction(ctx, func(ctx context.Context, tx repository.UserRepository) error {
		return tx.DeleteByID(ctx, id)
	})
	if err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	metrics.AccountsDeletedTotal.Inc()
	return nil
}

func (s *userService) Get(ctx context.Context, id uint) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.users.FindByEmail(ctx, email)
}

func (s *userService) List(ctx context.Context) ([]model.User, error) {
	return s.users.FindAll(ctx)
}

func (s *userService) ListRoles(ctx context.Context) ([]model.Role, error) {
	return s.roles.FindAll(ctx)
}

func (s *userService) AuthoritiesFor(user *model.User) []string {
	seen := make(map[string]struct{}, len(user.Roles))
	authorities := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		if _, ok := seen[role.Name]; ok {
			continue
		}
		seen[role.Name] = struct{}{}
		authorities = append(authorities, role.Name)
	}
	sort.Strings(authorities)
	return authorities
}

// resolveRoles turns a selector into a role set. An empty selector or one that
// resolves to nothing is a validation failure: every account needs at least
// one role.
func (s *userService) resolveRoles(ctx context.Context, selector RoleSelector) ([]model.Role, error) {
	noRoles := apperrors.NewValidationError()
	noRoles.Add("roles", "at least one role must be selected")

	if selector.empty() {
		return nil, noRoles
	}

	var (
		roles []model.Role
		err   error
	)
	if len(selector.names) > 0 {
		roles, err = s.roles.FindAllByNames(ctx, selector.names)
	} else {
		roles, err = s.roles.FindAllByIDs(ctx, selector.ids)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}
	if len(roles) == 0 {
		return nil, noRoles
	}
	return roles, nil
}

// checkUnique runs inside the persisting transaction so the check and the
// write commit as one unit.
func (s *userService) checkUnique(ctx context.Context, repo repository.UserRepository, username, email string, excludeID uint) error {
	taken, err := repo.ExistsByUsername(ctx, username, excludeID)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		return &apperrors.ConflictError{Field: "username", Value: username}
	}
	taken, err = repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return &apperrors.ConflictError{Field: "email", Value: email}
	}
	return nil
}

// validateInput collects every violated field, not just the first.
func (s *userService) validateInput(in interface{}) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	violation := apperrors.NewValidationError()
	for _, fe := range fieldErrs {
		violation.Add(strings.ToLower(fe.Field()), violationMessage(fe))
	}
	return violation
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return "cannot be negative"
	default:
		return "is invalid"
	}
}
