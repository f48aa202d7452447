package sessionmw

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/snapcart-app/snapcart/internal/auth"
	"github.com/snapcart-app/snapcart/internal/session"
)

const (
	ctxUserID = "userID"
	ctxEmail  = "email"
	ctxRole   = "role"
)

// RequireLogin rejects requests without a valid session cookie and puts
// the session identity into the echo context for downstream handlers.
func RequireLogin(codec *session.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := read(c, codec)
			if sess.User == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			setUserContext(c, sess.User)
			return next(c)
		}
	}
}

// AdminOnly is RequireLogin plus a role check.
func AdminOnly(codec *session.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := read(c, codec)
			if sess.User == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if sess.User.Role != "admin" {
				return echo.NewHTTPError(http.StatusForbidden, "admin only")
			}
			setUserContext(c, sess.User)
			return next(c)
		}
	}
}

func read(c echo.Context, codec *session.Codec) *session.Session {
	cookie, err := c.Cookie(auth.SessionCookie)
	if err != nil {
		return &session.Session{}
	}
	return codec.ToSession(cookie.Value)
}

func setUserContext(c echo.Context, u *session.SessionUser) {
	c.Set(ctxUserID, u.ID)
	c.Set(ctxEmail, u.Email)
	c.Set(ctxRole, u.Role)
}

// UserID returns the authenticated user's id from the echo context.
func UserID(c echo.Context) (uuid.UUID, error) {
	raw, ok := c.Get(ctxUserID).(string)
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
	}
	return id, nil
}

func Email(c echo.Context) string {
	s, _ := c.Get(ctxEmail).(string)
	return s
}

func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}
