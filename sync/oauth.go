// ABOUTME: OAuth configuration and token storage for the Google Contacts provider
// ABOUTME: Tokens live at an XDG data path and refreshed tokens are written back on use
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	stdsync "sync"

	"github.com/adrg/xdg"
	"github.com/harperreed/kith/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ContactsScope is read-write so kept local values can be pushed back.
const ContactsScope = "https://www.googleapis.com/auth/contacts"

// CallbackAddr and CallbackPath form the loopback redirect used by the auth flow.
const (
	CallbackAddr = "localhost:8085"
	CallbackPath = "/oauth/callback"
)

// NewOAuthConfig creates the OAuth2 config for the People API.
// Users create their own OAuth client in Google Cloud Console.
func NewOAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://" + CallbackAddr + CallbackPath,
		Scopes:       []string{ContactsScope},
		Endpoint:     google.Endpoint,
	}
}

// RequireCredentials fails with a FatalConfigError when the client is not configured.
func RequireCredentials(cfg *oauth2.Config) error {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return &models.FatalConfigError{
			Provider: GoogleProviderName,
			Reason:   "missing_credentials",
			Err:      fmt.Errorf("set KITH_GOOGLE_CLIENT_ID and KITH_GOOGLE_CLIENT_SECRET"),
		}
	}
	return nil
}

// TokenPath returns the XDG-compliant path for the stored OAuth token.
func TokenPath() string {
	return filepath.Join(xdg.DataHome, "kith", "google-token.json")
}

// SaveToken writes token to path with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

// LoadToken reads a token saved by SaveToken. A missing file is a FatalConfigError.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &models.FatalConfigError{Provider: GoogleProviderName, Reason: "not_authorized", Err: err}
		}
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

// persistingTokenSource saves the token whenever the underlying source refreshes it.
type persistingTokenSource struct {
	mu   stdsync.Mutex
	src  oauth2.TokenSource
	path string
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := SaveToken(p.path, tok); err != nil {
			return nil, err
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}

// TokenSource returns a refreshing token source for the token stored at path.
func TokenSource(ctx context.Context, cfg *oauth2.Config, path string) (oauth2.TokenSource, error) {
	tok, err := LoadToken(path)
	if err != nil {
		return nil, err
	}
	return &persistingTokenSource{src: cfg.TokenSource(ctx, tok), path: path, last: tok.AccessToken}, nil
}
