package postgres

import (
	"context"
	"errors"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return translate("creating user", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("fetching user", err)
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("fetching user by email", err)
	}
	return &u, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *userRepository) exists(ctx context.Context, cond string, value string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Where(cond, value).Count(&count).Error; err != nil {
		return false, storageErr("checking user uniqueness", err)
	}
	return count > 0, nil
}

func (r *userRepository) Update(ctx context.Context, u *domain.User) error {
	res := r.db.WithContext(ctx).Model(u).Select("*").Omit("id", "created_at", "deleted_at").Updates(u)
	if res.Error != nil {
		return translate("updating user", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&domain.User{}, "id = ?", id)
	if res.Error != nil {
		return storageErr("deleting user", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, q *domain.ListUsersQuery) (*domain.PagedUsers, error) {
	db := r.db.WithContext(ctx).Model(&domain.User{}).Scopes(ownedBy(q.Ownership, "id = ?", ""))
	if q.Role != nil {
		db = db.Where("role = ?", *q.Role)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, storageErr("counting users", err)
	}

	var users []*domain.User
	if err := db.Order("created_at DESC").Scopes(paginate(q.Offset, q.Limit)).Find(&users).Error; err != nil {
		return nil, storageErr("listing users", err)
	}

	return &domain.PagedUsers{Users: users, TotalCount: total, Offset: q.Offset, Limit: q.Limit}, nil
}
