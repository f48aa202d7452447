package identity

import (
	"context"
	"errors"

	"github.com/snapcart-app/snapcart/internal/hash"
	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/repo"
)

var (
	ErrValidation         = errors.New("email and password are required")
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Attempt is one authentication event. Two variants exist: Credentials
// for email+password logins and External for OAuth callbacks. Both
// resolve to the same canonical User record.
type Attempt interface {
	resolve(ctx context.Context, users *repo.UserRepo) (*models.User, error)
}

type Resolver struct {
	Users *repo.UserRepo
}

func (r *Resolver) Resolve(ctx context.Context, a Attempt) (*models.User, error) {
	user, err := a.resolve(ctx, r.Users)
	if err != nil {
		return nil, err
	}
	// Callers outside the auth boundary never see the hash.
	out := *user
	out.PasswordHash = nil
	return &out, nil
}

type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) resolve(ctx context.Context, users *repo.UserRepo) (*models.User, error) {
	if c.Email == "" || c.Password == "" {
		return nil, ErrValidation
	}

	user, err := users.FindByEmail(ctx, c.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if user.PasswordHash == nil || !hash.CheckPassword(*user.PasswordHash, c.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Profile is what an external identity provider asserts about a user.
type Profile struct {
	Email string
	Name  string
	Image string
}

type External struct {
	Provider string
	Profile  Profile
}

// resolve finds-or-creates the user for an external profile. An
// existing record is returned unchanged: name, image, role and password
// are never overwritten after the first sign-in.
func (e External) resolve(ctx context.Context, users *repo.UserRepo) (*models.User, error) {
	if e.Profile.Email == "" {
		return nil, ErrValidation
	}

	return users.FindOrCreate(ctx, &models.User{
		Email: e.Profile.Email,
		Name:  e.Profile.Name,
		Image: e.Profile.Image,
		Role:  "user",
	})
}
