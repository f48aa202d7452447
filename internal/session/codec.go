package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/snapcart-app/snapcart/internal/models"
)

var (
	ErrTokenExpired = errors.New("session token expired")
	ErrTokenInvalid = errors.New("session token invalid")
)

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Session is the client-visible projection of a token. User is nil when
// the request carries no valid token.
type Session struct {
	User *SessionUser `json:"user"`
}

type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Codec mints and verifies the signed bearer tokens that carry the
// session. Now is swappable for expiry tests.
type Codec struct {
	Secret []byte
	MaxAge time.Duration
	Now    func() time.Time
}

func NewCodec(secret []byte, maxAge time.Duration) *Codec {
	return &Codec{Secret: secret, MaxAge: maxAge, Now: time.Now}
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Mint signs a fresh token for user, expiring MaxAge from now.
func (c *Codec) Mint(user *models.User) (string, error) {
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(c.now().Add(c.MaxAge)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.Secret)
}

// RefreshRole re-signs token with only the role claim replaced. Subject,
// email and the original expiry all carry over; this is the one
// in-place mutation path, distinct from a full re-mint.
func (c *Codec) RefreshRole(token, role string) (string, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return "", err
	}
	claims.Role = role

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.Secret)
}

// Parse verifies signature and expiry. Expired tokens come back as
// ErrTokenExpired, everything else wrong with the token as
// ErrTokenInvalid.
func (c *Codec) Parse(token string) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return c.Secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tkn.Valid {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

// ToSession projects a token onto the nullable session shape. A missing
// or bad token is an anonymous session, not an error.
func (c *Codec) ToSession(token string) *Session {
	if token == "" {
		return &Session{}
	}
	claims, err := c.Parse(token)
	if err != nil {
		return &Session{}
	}
	return &Session{User: &SessionUser{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}}
}
