// Package google builds the Google OAuth authorization URL used by the
// connect flow. Token exchange and Calendar API calls are intentionally absent.
package google

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const credentialsFile = "credentials.json"

// ErrNotConfigured is returned when no client id is available.
var ErrNotConfigured = errors.New("google oauth not configured")

// Scopes requested by the connect flow.
var Scopes = []string{calendar.CalendarScope, calendar.CalendarEventsScope}

// OAuth produces authorization URLs for one OAuth client.
type OAuth struct {
	config *oauth2.Config
}

// NewOAuth builds the OAuth client. Explicit credentials win; otherwise a
// credentials.json in the working directory is used when present.
func NewOAuth(clientID, clientSecret, redirectURL string) (*OAuth, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if redirectURL != "" {
		config.RedirectURL = redirectURL
	}
	return &OAuth{config: config}, nil
}

// AuthURL returns the consent URL for state. Offline access and a forced
// consent prompt make Google issue a refresh token every time.
func (o *OAuth) AuthURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// RedirectURL returns the configured callback.
func (o *OAuth) RedirectURL() string { return o.config.RedirectURL }

// NewState returns a random state value for one authorization attempt.
func NewState() string {
	return uuid.NewString()
}

func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	return config, nil
}
