package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/snapcart-app/snapcart/internal/identity"
	"github.com/snapcart-app/snapcart/internal/logging"
	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/repo"
	"github.com/snapcart-app/snapcart/internal/session"
	"github.com/snapcart-app/snapcart/internal/store"
)

// Gateway composes the credential store, the identity resolver and the
// session codec. Sessions are pure bearer tokens: the gateway holds no
// per-session state and sign-out is a client-side cookie drop.
type Gateway struct {
	Users    *repo.UserRepo
	Resolver *identity.Resolver
	Codec    *session.Codec
}

// Result is the non-throwing outcome of a sign-in attempt. Reason is
// set only when OK is false and carries one of the identity errors.
type Result struct {
	OK     bool
	User   *models.User
	Token  string
	Reason error
}

// SignInCredentials runs the credentials flow. Identity failures come
// back inside the Result; only store unavailability is returned as a
// hard error, since no safe session state exists without the store.
func (g *Gateway) SignInCredentials(ctx context.Context, email, password string) (*Result, error) {
	return g.signIn(ctx, identity.Credentials{Email: email, Password: password})
}

// SignInExternal runs the OAuth-callback flow for a provider-asserted
// profile.
func (g *Gateway) SignInExternal(ctx context.Context, provider string, p identity.Profile) (*Result, error) {
	return g.signIn(ctx, identity.External{Provider: provider, Profile: p})
}

func (g *Gateway) signIn(ctx context.Context, attempt identity.Attempt) (*Result, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signin")

	user, err := g.Resolver.Resolve(ctx, attempt)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			l.Error("signin_failed", "reason", "store unavailable", "error", err)
			return nil, err
		}
		l.Warn("signin_rejected", "reason", err.Error())
		return &Result{OK: false, Reason: err}, nil
	}

	token, err := g.Codec.Mint(user)
	if err != nil {
		l.Error("signin_failed", "reason", "cannot mint token", "error", err)
		return nil, err
	}

	l.Info("signin_ok", "user_id", user.ID)
	return &Result{OK: true, User: user, Token: token}, nil
}

// SessionFromToken rebuilds the session carried by a bearer token. Bad
// tokens mean anonymous, never an error.
func (g *Gateway) SessionFromToken(token string) *session.Session {
	return g.Codec.ToSession(token)
}

// CurrentUser re-fetches the canonical record behind a session so
// consumers see fresh data rather than mint-time claims. A nil user
// with nil error means "not authenticated" or "record gone".
func (g *Gateway) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	sess := g.Codec.ToSession(token)
	if sess.User == nil {
		return nil, nil
	}
	user, err := g.Users.FindByEmail(ctx, sess.User.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := *user
	out.PasswordHash = nil
	return &out, nil
}

// RefreshRole persists a new role for the user and refreshes the role
// claim of the presented token in place, keeping its original expiry.
func (g *Gateway) RefreshRole(ctx context.Context, token string, userID uuid.UUID, role string) (string, error) {
	if err := g.Users.UpdateRole(ctx, userID, role); err != nil {
		return "", err
	}
	return g.Codec.RefreshRole(token, role)
}
