package repo

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/store"
)

func newTestRepo(t *testing.T) *UserRepo {
	t.Helper()

	open := func(ctx context.Context, dsn string) (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, err
		}
		return db, nil
	}
	return &UserRepo{Store: store.New(":memory:", open)}
}

func TestFindByEmailNotFound(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.FindByEmail(context.Background(), "missing@x.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAndFind(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	user := models.User{Email: "a@x.com", Name: "A", Role: "user"}
	require.NoError(t, r.Create(ctx, &user))
	require.NotEqual(t, uuid.Nil, user.ID)

	found, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	byID, err := r.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", byID.Email)
}

func TestCreateDuplicateEmailRejected(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &models.User{Email: "a@x.com", Role: "user"}))

	err := r.Create(ctx, &models.User{Email: "a@x.com", Role: "user"})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestFindOrCreateIsIdempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	first, err := r.FindOrCreate(ctx, &models.User{Email: "a@x.com", Name: "A", Role: "user"})
	require.NoError(t, err)

	second, err := r.FindOrCreate(ctx, &models.User{Email: "a@x.com", Name: "Other", Role: "user"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "A", second.Name)

	db, err := r.Store.DB(ctx)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "a@x.com").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestUpdateRole(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	user := models.User{Email: "a@x.com", Role: "user"}
	require.NoError(t, r.Create(ctx, &user))

	require.NoError(t, r.UpdateRole(ctx, user.ID, "admin"))

	found, err := r.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "admin", found.Role)

	require.ErrorIs(t, r.UpdateRole(ctx, uuid.New(), "admin"), ErrNotFound)
}
