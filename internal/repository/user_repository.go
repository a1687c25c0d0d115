package repository

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	apperrors "accpanel/internal/errors"
	"accpanel/internal/model"
)

// mysqlDuplicateEntry is the MySQL error number for unique constraint violations.
const mysqlDuplicateEntry = 1062

// UserRepository defines persistence operations over accounts. Every read
// eagerly loads the account's roles; the authority set must never depend on a
// deferred relationship load.
type UserRepository interface {
	FindAll(ctx context.Context) ([]model.User, error)
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// ExistsByUsername and ExistsByEmail ignore the row with excludeID so an
	// update does not collide with the account being updated. Pass zero on
	// creation.
	ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error)
	ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error)
	Create(ctx context.Context, user *model.User) error
	// Update persists the account's column fields. The role association is
	// only touched through ReplaceRoles.
	Update(ctx context.Context, user *model.User) error
	ReplaceRoles(ctx context.Context, user *model.User, roles []model.Role) error
	// DeleteByID detaches the account from all roles before removing the row.
	DeleteByID(ctx context.Context, id uint) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo UserRepository) error) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed account repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Preload("Roles").Order("id").Find(&users).Error; err != nil {
		return nil, translateError(err)
	}
	return users, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Preload("Roles").First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Preload("Roles").Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Preload("Roles").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error) {
	return r.exists(ctx, "username = ?", username, excludeID)
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error) {
	return r.exists(ctx, "email = ?", email, excludeID)
}

func (r *userRepository) exists(ctx context.Context, cond, value string, excludeID uint) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.User{}).Where(cond, value)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	// Omit("Roles.*") inserts the users_roles join rows but leaves the role
	// rows themselves untouched.
	if err := r.db.WithContext(ctx).Omit("Roles.*").Create(user).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Omit("Roles").Save(user).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *userRepository) ReplaceRoles(ctx context.Context, user *model.User, roles []model.Role) error {
	if err := r.db.WithContext(ctx).Model(user).Association("Roles").Replace(&roles); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *userRepository) DeleteByID(ctx context.Context, id uint) error {
	user := model.User{ID: id}
	if err := r.db.WithContext(ctx).Model(&user).Association("Roles").Clear(); err != nil {
		return translateError(err)
	}
	res := r.db.WithContext(ctx).Delete(&user)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// WithTransaction executes fn against a repository bound to a single database
// transaction, so uniqueness checks and the subsequent write commit as one
// unit.
func (r *userRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo UserRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &userRepository{db: tx})
	})
}

// translateError maps driver-level errors into the domain taxonomy: record
// misses become ErrNotFound and MySQL duplicate-key errors become a
// ConflictError, catching races the pre-write checks cannot.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return &apperrors.ConflictError{Field: "username or email"}
	}
	return err
}
