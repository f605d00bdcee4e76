package espsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/internal/pkg/env"
)

const defaultAWeberTokenURL = "https://auth.aweber.com/oauth2/token"

// oauth2Refresher performs the refresh grant through golang.org/x/oauth2,
// with client credentials resolved per ESP type from the environment.
type oauth2Refresher struct{}

// NewOAuth2Refresher creates the default token refresher.
func NewOAuth2Refresher() TokenRefresher {
	return &oauth2Refresher{}
}

func (r *oauth2Refresher) config(espType string) (*oauth2.Config, error) {
	switch espType {
	case models.EspTypeAWeber:
		clientID := env.GetEnv("AWEBER_CLIENT_ID", "")
		clientSecret := env.GetEnv("AWEBER_CLIENT_SECRET", "")
		if clientID == "" || clientSecret == "" {
			return nil, errors.New("AWEBER_CLIENT_ID/AWEBER_CLIENT_SECRET are not configured")
		}
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: env.GetEnv("AWEBER_TOKEN_URL", defaultAWeberTokenURL),
			},
		}, nil
	default:
		return nil, fmt.Errorf("esp type %q has no OAuth client configured", espType)
	}
}

func (r *oauth2Refresher) Refresh(ctx context.Context, conn *models.EspConnection, refreshToken string) (*RefreshedToken, error) {
	if refreshToken == "" {
		return nil, errors.New("connection has no refresh token")
	}

	conf, err := r.config(conn.EspType)
	if err != nil {
		return nil, err
	}

	// Expiry in the past forces the token source to run the refresh grant.
	src := conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}

	out := &RefreshedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		out.ExpiresAt = &expiry
	}
	return out, nil
}
