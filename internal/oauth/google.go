package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/snapcart-app/snapcart/internal/identity"
)

const userinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Google drives the authorization-code flow against Google and turns
// the resulting userinfo into an identity.Profile.
type Google struct {
	cfg *oauth2.Config
}

func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}}
}

func (g *Google) Enabled() bool {
	return g.cfg.ClientID != "" && g.cfg.ClientSecret != ""
}

func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// FetchProfile exchanges the callback code and fetches the userinfo
// document the session will be built from.
func (g *Google) FetchProfile(ctx context.Context, code string) (identity.Profile, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("code exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return identity.Profile{}, err
	}
	res, err := g.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return identity.Profile{}, fmt.Errorf("userinfo status %d", res.StatusCode)
	}

	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return identity.Profile{}, fmt.Errorf("userinfo decode: %w", err)
	}

	return identity.Profile{Email: info.Email, Name: info.Name, Image: info.Picture}, nil
}
