package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubUser is the portion of the GitHub /user API response we care about.
//
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type GitHubUser struct {
	ID        int64  `json:"id"`         // stable numeric user ID
	Login     string `json:"login"`      // username, e.g. "octocat"
	Email     string `json:"email"`      // public email; empty if hidden
	AvatarURL string `json:"avatar_url"` // profile picture URL
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. The server redirects the user to GitHub with our ClientID and scopes.
//  2. The user approves on GitHub.
//  3. GitHub redirects back to CallbackURL with a short-lived "code".
//  4. The server exchanges the code for an access token (server-to-server).
//  5. The server calls the GitHub API for the profile.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// GitHubOption customizes a GitHubProvider.
type GitHubOption func(*GitHubProvider)

// WithGitHubEndpoints points the provider at a different OAuth endpoint and
// REST API base, e.g. a GitHub Enterprise host or a test server.
func WithGitHubEndpoints(endpoint oauth2.Endpoint, apiBase string) GitHubOption {
	return func(p *GitHubProvider) {
		p.config.Endpoint = endpoint
		p.apiBase = strings.TrimRight(apiBase, "/")
	}
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// callbackURL must match the "Authorization callback URL" of the OAuth App.
// Example: "http://localhost:8080/auth/github/callback"
//
// Scopes:
//   - "read:user"  public profile (ID, login, avatar)
//   - "user:email" email addresses, including hidden ones
func NewGitHubProvider(clientID, clientSecret, callbackURL string, opts ...GitHubOption) *GitHubProvider {
	p := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: defaultGitHubAPI,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthURL returns the URL to redirect the user to for authorization.
// state is echoed back on the callback and checked against a cookie to
// block login CSRF.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for the user's GitHub profile.
//
// If the profile hides its email, the primary verified address from
// /user/emails is used instead. A missing email is not an error.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The returned client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	var ghUser GitHubUser
	if err := p.getJSON(ctx, client, "/user", &ghUser); err != nil {
		return nil, err
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	if ghUser.Email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		// Best effort: the profile is usable without an email.
		if err := p.getJSON(ctx, client, "/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					ghUser.Email = e.Email
					break
				}
			}
		}
	}

	return &ghUser, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("auth: building GitHub %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling GitHub %s API: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: GitHub %s API returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding GitHub %s response: %w", path, err)
	}
	return nil
}
