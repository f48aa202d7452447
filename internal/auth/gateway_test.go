package auth

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/snapcart-app/snapcart/internal/hash"
	"github.com/snapcart-app/snapcart/internal/identity"
	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/repo"
	"github.com/snapcart-app/snapcart/internal/session"
	"github.com/snapcart-app/snapcart/internal/store"
)

func newTestGateway(t *testing.T) *Gateway {
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
	users := &repo.UserRepo{Store: store.New(":memory:", open)}
	return &Gateway{
		Users:    users,
		Resolver: &identity.Resolver{Users: users},
		Codec:    session.NewCodec([]byte("secret"), 30*24*time.Hour),
	}
}

func seed(t *testing.T, g *Gateway, email, password string) *models.User {
	t.Helper()

	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)
	user := models.User{Email: email, PasswordHash: &pwHash, Role: "user"}
	require.NoError(t, g.Users.Create(context.Background(), &user))
	return &user
}

func TestSignInCredentialsSuccess(t *testing.T) {
	g := newTestGateway(t)
	seeded := seed(t, g, "a@x.com", "password")

	res, err := g.SignInCredentials(context.Background(), "a@x.com", "password")
	require.NoError(t, err)
	require.True(t, res.OK)
	require.NotEmpty(t, res.Token)
	require.Equal(t, seeded.ID, res.User.ID)
	require.Nil(t, res.User.PasswordHash)

	sess := g.SessionFromToken(res.Token)
	require.NotNil(t, sess.User)
	require.Equal(t, seeded.ID.String(), sess.User.ID)
}

func TestSignInCredentialsRejections(t *testing.T) {
	g := newTestGateway(t)
	seed(t, g, "a@x.com", "password")

	res, err := g.SignInCredentials(context.Background(), "a@x.com", "wrong")
	require.NoError(t, err)
	require.False(t, res.OK)
	require.ErrorIs(t, res.Reason, identity.ErrInvalidCredentials)
	require.Empty(t, res.Token)

	res, err = g.SignInCredentials(context.Background(), "other@x.com", "password")
	require.NoError(t, err)
	require.False(t, res.OK)
	require.ErrorIs(t, res.Reason, identity.ErrNotFound)

	res, err = g.SignInCredentials(context.Background(), "", "")
	require.NoError(t, err)
	require.False(t, res.OK)
	require.ErrorIs(t, res.Reason, identity.ErrValidation)
}

func TestSignInExternalMintsSession(t *testing.T) {
	g := newTestGateway(t)

	res, err := g.SignInExternal(context.Background(), "google", identity.Profile{Email: "a@x.com", Name: "A"})
	require.NoError(t, err)
	require.True(t, res.OK)

	sess := g.SessionFromToken(res.Token)
	require.NotNil(t, sess.User)
	require.Equal(t, "user", sess.User.Role)
}

func TestSessionFromTokenAnonymous(t *testing.T) {
	g := newTestGateway(t)

	require.Nil(t, g.SessionFromToken("").User)
	require.Nil(t, g.SessionFromToken("garbage").User)
}

func TestCurrentUserRefetchesRecord(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	seeded := seed(t, g, "a@x.com", "password")

	res, err := g.SignInCredentials(ctx, "a@x.com", "password")
	require.NoError(t, err)

	// The role changes in the store after mint; CurrentUser sees the
	// fresh value even though the token still carries the old claim.
	require.NoError(t, g.Users.UpdateRole(ctx, seeded.ID, "admin"))

	user, err := g.CurrentUser(ctx, res.Token)
	require.NoError(t, err)
	require.Equal(t, "admin", user.Role)
	require.Nil(t, user.PasswordHash)

	anon, err := g.CurrentUser(ctx, "garbage")
	require.NoError(t, err)
	require.Nil(t, anon)
}

func TestRefreshRoleUpdatesStoreAndToken(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	seeded := seed(t, g, "a@x.com", "password")

	res, err := g.SignInCredentials(ctx, "a@x.com", "password")
	require.NoError(t, err)

	refreshed, err := g.RefreshRole(ctx, res.Token, seeded.ID, "admin")
	require.NoError(t, err)

	sess := g.SessionFromToken(refreshed)
	require.NotNil(t, sess.User)
	require.Equal(t, "admin", sess.User.Role)
	require.Equal(t, seeded.ID.String(), sess.User.ID)

	stored, err := g.Users.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	require.Equal(t, "admin", stored.Role)
}
