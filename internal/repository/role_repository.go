package repository

import (
	"context"

	"gorm.io/gorm"

	"accpanel/internal/model"
)

// RoleRepository defines persistence operations over roles. Roles are seeded
// out of band and read-mostly at runtime; lookups by a set of ids or names
// silently omit entries that do not exist.
type RoleRepository interface {
	FindAll(ctx context.Context) ([]model.Role, error)
	FindByID(ctx context.Context, id uint) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	FindAllByIDs(ctx context.Context, ids []uint) ([]model.Role, error)
	FindAllByNames(ctx context.Context, names []string) ([]model.Role, error)
	Save(ctx context.Context, role *model.Role) error
}

type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository builds a GORM-backed role repository.
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := r.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, translateError(err)
	}
	return roles, nil
}

func (r *roleRepository) FindByID(ctx context.Context, id uint) (*model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).First(&role, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, translateError(err)
	}
	return &role, nil
}

func (r *roleRepository) FindAllByIDs(ctx context.Context, ids []uint) ([]model.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var roles []model.Role
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, translateError(err)
	}
	return roles, nil
}

func (r *roleRepository) FindAllByNames(ctx context.Context, names []string) ([]model.Role, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var roles []model.Role
	if err := r.db.WithContext(ctx).Where("name IN ?", names).Find(&roles).Error; err != nil {
		return nil, translateError(err)
	}
	return roles, nil
}

func (r *roleRepository) Save(ctx context.Context, role *model.Role) error {
	if err := r.db.WithContext(ctx).Save(role).Error; err != nil {
		return translateError(err)
	}
	return nil
}
