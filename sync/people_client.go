// ABOUTME: Google People API client construction for contacts sync
// ABOUTME: Builds an authenticated People service from the stored OAuth token
package sync

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

// NewPeopleClient creates a People API service authorized by the token at tokenPath.
func NewPeopleClient(ctx context.Context, cfg *oauth2.Config, tokenPath string) (*people.Service, error) {
	if err := RequireCredentials(cfg); err != nil {
		return nil, err
	}
	ts, err := TokenSource(ctx, cfg, tokenPath)
	if err != nil {
		return nil, err
	}

	service, err := people.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}
	return service, nil
}

// NewGoogleProviderFromConfig wires credentials, token and service into a provider.
func NewGoogleProviderFromConfig(ctx context.Context, clientID, clientSecret, tokenPath string) (*GoogleProvider, error) {
	svc, err := NewPeopleClient(ctx, NewOAuthConfig(clientID, clientSecret), tokenPath)
	if err != nil {
		return nil, err
	}
	return NewGoogleProvider(svc), nil
}
