package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/snapcart-app/snapcart/internal/hash"
	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/repo"
	"github.com/snapcart-app/snapcart/internal/store"
)

func newTestResolver(t *testing.T) *Resolver {
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
	return &Resolver{Users: &repo.UserRepo{Store: store.New(":memory:", open)}}
}

func seedUser(t *testing.T, r *Resolver, email, password string) *models.User {
	t.Helper()

	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)
	user := models.User{Email: email, PasswordHash: &pwHash, Role: "user"}
	require.NoError(t, r.Users.Create(context.Background(), &user))
	return &user
}

func TestResolveCredentials(t *testing.T) {
	r := newTestResolver(t)
	seeded := seedUser(t, r, "a@x.com", "password")

	user, err := r.Resolve(context.Background(), Credentials{Email: "a@x.com", Password: "password"})
	require.NoError(t, err)
	require.Equal(t, seeded.ID, user.ID)
	require.Nil(t, user.PasswordHash)
}

func TestResolveCredentialsValidation(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(context.Background(), Credentials{Email: "", Password: "password"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = r.Resolve(context.Background(), Credentials{Email: "a@x.com", Password: ""})
	require.ErrorIs(t, err, ErrValidation)
}

func TestResolveCredentialsUnknownEmail(t *testing.T) {
	r := newTestResolver(t)
	seedUser(t, r, "a@x.com", "password")

	// Unknown email and wrong password stay distinguishable.
	_, err := r.Resolve(context.Background(), Credentials{Email: "other@x.com", Password: "password"})
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveCredentialsWrongPassword(t *testing.T) {
	r := newTestResolver(t)
	seedUser(t, r, "a@x.com", "password")

	_, err := r.Resolve(context.Background(), Credentials{Email: "a@x.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveCredentialsOAuthOnlyAccount(t *testing.T) {
	r := newTestResolver(t)
	require.NoError(t, r.Users.Create(context.Background(), &models.User{Email: "a@x.com", Role: "user"}))

	_, err := r.Resolve(context.Background(), Credentials{Email: "a@x.com", Password: "anything"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveExternalCreatesWithDefaults(t *testing.T) {
	r := newTestResolver(t)

	user, err := r.Resolve(context.Background(), External{
		Provider: "google",
		Profile:  Profile{Email: "a@x.com", Name: "A", Image: "https://img/a"},
	})
	require.NoError(t, err)
	require.Equal(t, "user", user.Role)
	require.Equal(t, "A", user.Name)
	require.Nil(t, user.PasswordHash)
}

func TestResolveExternalIsIdempotent(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, External{Provider: "google", Profile: Profile{Email: "a@x.com", Name: "A"}})
	require.NoError(t, err)

	// A later sign-in with a changed profile returns the stored record
	// untouched.
	second, err := r.Resolve(ctx, External{Provider: "google", Profile: Profile{Email: "a@x.com", Name: "Renamed"}})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "A", second.Name)

	db, err := r.Users.Store.DB(ctx)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestResolveExternalDoesNotTouchExistingCredentialsAccount(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	seeded := seedUser(t, r, "a@x.com", "password")
	require.NoError(t, r.Users.UpdateRole(ctx, seeded.ID, "admin"))

	user, err := r.Resolve(ctx, External{Provider: "google", Profile: Profile{Email: "a@x.com", Name: "G"}})
	require.NoError(t, err)
	require.Equal(t, seeded.ID, user.ID)
	require.Equal(t, "admin", user.Role)

	// The stored hash survives so the password login keeps working.
	again, err := r.Resolve(ctx, Credentials{Email: "a@x.com", Password: "password"})
	require.NoError(t, err)
	require.Equal(t, seeded.ID, again.ID)
}

func TestResolveExternalMissingEmail(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(context.Background(), External{Provider: "google", Profile: Profile{Name: "no email"}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestResolveExternalConcurrentFirstSignIn(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := r.Resolve(ctx, External{Provider: "google", Profile: Profile{Email: "new@x.com"}})
			require.NoError(t, err)
			ids[i] = user.ID.String()
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		require.Equal(t, ids[0], id)
	}

	db, err := r.Users.Store.DB(ctx)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "new@x.com").Count(&count).Error)
	require.EqualValues(t, 1, count)
}
