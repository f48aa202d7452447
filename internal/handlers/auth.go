package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/snapcart-app/snapcart/internal/auth"
	"github.com/snapcart-app/snapcart/internal/events"
	"github.com/snapcart-app/snapcart/internal/hash"
	"github.com/snapcart-app/snapcart/internal/identity"
	"github.com/snapcart-app/snapcart/internal/logging"
	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/oauth"
	"github.com/snapcart-app/snapcart/internal/repo"
	"github.com/snapcart-app/snapcart/internal/store"
)

const oauthStateCookie = "oauthState"

type AuthHandler struct {
	Gateway  *auth.Gateway
	Google   *oauth.Google
	Producer *events.Producer
	BaseURL  string
	MaxAge   time.Duration
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "register failed")
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: &pwHash,
		Name:         req.Name,
		Role:         "user",
	}
	if err := h.Gateway.Users.Create(ctx, &user); err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			l.Warn("register_rejected", "reason", "duplicate email")
			return echo.NewHTTPError(http.StatusConflict, "user already exists")
		}
		l.Error("register_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "register failed")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	user.PasswordHash = nil
	return c.JSON(http.StatusOK, user)
}

// Login runs the credentials sign-in flow. Identity failures all render
// the same generic message so the response never discloses whether the
// email exists.
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Gateway.SignInCredentials(ctx, req.Email, req.Password)
	if err != nil {
		l.Error("login_failed", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}
	if !res.OK {
		if errors.Is(res.Reason, identity.ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	c.SetCookie(auth.CreateCookie(auth.SessionCookie, res.Token, "/", time.Now().Add(h.MaxAge)))

	h.publish(c, fmt.Sprint(res.User.ID), map[string]any{
		"type":   "user_logged_in",
		"userID": res.User.ID,
		"email":  res.User.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"user":     res.User,
		"is_admin": res.User.Role == "admin",
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	c.SetCookie(auth.DeleteCookie(auth.SessionCookie, "/"))

	target := auth.ResolveRedirect(c.QueryParam("callbackUrl"), h.BaseURL)
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "logged out",
		"redirect": target,
	})
}

// GoogleStart redirects the browser to Google's consent screen with a
// random state bound to a short-lived cookie.
func (h *AuthHandler) GoogleStart(c echo.Context) error {
	if h.Google == nil || !h.Google.Enabled() {
		return echo.NewHTTPError(http.StatusNotFound, "google sign-in is not configured")
	}

	state := auth.NewState()
	c.SetCookie(auth.CreateCookie(oauthStateCookie, state, "/", time.Now().Add(10*time.Minute)))

	callback := c.QueryParam("callbackUrl")
	if callback != "" {
		c.SetCookie(auth.CreateCookie("oauthCallback", callback, "/", time.Now().Add(10*time.Minute)))
	}

	return c.Redirect(http.StatusFound, h.Google.AuthCodeURL(state))
}

// GoogleCallback validates state, exchanges the code, resolves the
// external identity and establishes the session cookie.
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_google_callback")

	if h.Google == nil || !h.Google.Enabled() {
		return echo.NewHTTPError(http.StatusNotFound, "google sign-in is not configured")
	}

	stateCookie, err := c.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != c.QueryParam("state") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid state")
	}
	c.SetCookie(auth.DeleteCookie(oauthStateCookie, "/"))

	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing code")
	}

	profile, err := h.Google.FetchProfile(ctx, code)
	if err != nil {
		l.Warn("oauth_exchange_failed", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "google sign-in failed")
	}

	res, err := h.Gateway.SignInExternal(ctx, "google", profile)
	if err != nil {
		l.Error("oauth_signin_failed", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}
	if !res.OK {
		return echo.NewHTTPError(http.StatusUnauthorized, "google sign-in failed")
	}

	c.SetCookie(auth.CreateCookie(auth.SessionCookie, res.Token, "/", time.Now().Add(h.MaxAge)))

	h.publish(c, fmt.Sprint(res.User.ID), map[string]any{
		"type":     "user_logged_in",
		"userID":   res.User.ID,
		"email":    res.User.Email,
		"provider": "google",
	})

	target := h.BaseURL
	if cb, err := c.Cookie("oauthCallback"); err == nil {
		target = auth.ResolveRedirect(cb.Value, h.BaseURL)
		c.SetCookie(auth.DeleteCookie("oauthCallback", "/"))
	}
	return c.Redirect(http.StatusFound, target)
}

// Me re-fetches the canonical record behind the session. Unauthenticated
// requests get {"user": null} with 200, never an error.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx := c.Request().Context()

	token := ""
	if cookie, err := c.Cookie(auth.SessionCookie); err == nil {
		token = cookie.Value
	}

	user, err := h.Gateway.CurrentUser(ctx, token)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}
	if user == nil {
		return c.JSON(http.StatusOK, echo.Map{"user": nil})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// UpdateRole persists a new role for a user and, when the caller edits
// their own account, refreshes the role claim of the presented token in
// place without a fresh login.
func (h *AuthHandler) UpdateRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_update_role")

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Role == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and role are required")
	}

	target, err := h.Gateway.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}

	cookie, err := c.Cookie(auth.SessionCookie)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	sess := h.Gateway.SessionFromToken(cookie.Value)
	if sess.User != nil && sess.User.Email == target.Email {
		token, err := h.Gateway.RefreshRole(ctx, cookie.Value, target.ID, req.Role)
		if err != nil {
			l.Error("role_refresh_failed", "error", err)
			return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
		}
		c.SetCookie(auth.CreateCookie(auth.SessionCookie, token, "/", time.Now().Add(h.MaxAge)))
	} else if err := h.Gateway.Users.UpdateRole(ctx, target.ID, req.Role); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}

	return c.JSON(http.StatusOK, echo.Map{"email": req.Email, "role": req.Role})
}
