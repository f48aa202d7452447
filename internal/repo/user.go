package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/store"
)

var ErrNotFound = errors.New("user not found")

// UserRepo is the credential store: the only component that reads or
// writes User rows.
type UserRepo struct {
	Store *store.Store
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	db, err := r.Store.DB(ctx)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, r.classify(err)
	}
	return &user, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	db, err := r.Store.DB(ctx)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, r.classify(err)
	}
	return &user, nil
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	db, err := r.Store.DB(ctx)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return r.classify(err)
	}
	return nil
}

// FindOrCreate looks a user up by email and inserts it when absent.
// The unique index on email decides races between concurrent callers:
// the loser's insert fails with a duplicate-key error and the winner's
// row is fetched instead, so repeated sign-ins converge on one record.
func (r *UserRepo) FindOrCreate(ctx context.Context, u *models.User) (*models.User, error) {
	existing, err := r.FindByEmail(ctx, u.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if err := r.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.FindByEmail(ctx, u.Email)
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	db, err := r.Store.DB(ctx)
	if err != nil {
		return err
	}
	result := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return r.classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// classify maps gorm errors onto the repo's taxonomy. Anything that is
// neither "no row" nor "duplicate row" is treated as the store being
// unreachable, and the cached handle is dropped so the next call
// reconnects instead of reusing a poisoned connection.
func (r *UserRepo) classify(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return err
	default:
		r.Store.Invalidate()
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
}
