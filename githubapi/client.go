// Package githubapi is the upstream identity client. It is called exactly
// once per login to exchange a user-supplied personal access token for
// verified identity attributes; it never sits on the per-request auth path.
package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the public GitHub REST API endpoint.
	DefaultBaseURL = "https://api.github.com"

	acceptHeader   = "application/vnd.github.v3+json"
	requestTimeout = 15 * time.Second
)

// User is the identity returned by the /user endpoint.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"` // Public profile email; may be empty
}

// Email is one entry from the /user/emails endpoint.
type Email struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// APIError carries the upstream failure reason so login can surface a
// human-readable message instead of a bare status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("github: %s (status %d)", e.Message, e.StatusCode)
}

// Client talks to the GitHub REST API with a per-call bearer credential.
type Client struct {
	baseURL string
}

// NewClient creates a client against the given API base URL (the default
// public endpoint when empty).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/")}
}

// VerifyCredential exchanges a personal access token for the identity it
// belongs to. A bad credential or missing read:user scope comes back as an
// error carrying GitHub's own message.
func (c *Client) VerifyCredential(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("[VerifyCredential] access token is required")
	}

	var user User
	if err := c.getJSON(ctx, token, "/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 || user.Login == "" {
		return nil, errors.New("[VerifyCredential] no usable identity returned; token may lack the read:user scope")
	}
	return &user, nil
}

// ListVerifiedEmails returns the account's email addresses. Requires the
// user:email scope; callers treat a failure here as non-fatal and fall
// back to the public profile email or the user-supplied address.
func (c *Client) ListVerifiedEmails(ctx context.Context, token string) ([]Email, error) {
	var emails []Email
	if err := c.getJSON(ctx, token, "/user/emails", &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// ResolveEmail picks the commit-author email: the primary verified address
// first, then the public profile email, then the user-supplied fallback.
func ResolveEmail(user *User, emails []Email, fallback string) string {
	for _, e := range emails {
		if e.Primary && e.Verified && e.Email != "" {
			return e.Email
		}
	}
	if user != nil && user.Email != "" {
		return user.Email
	}
	return fallback
}

func (c *Client) getJSON(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrapf(err, "build request for %s", path)
	}
	req.Header.Set("Accept", acceptHeader)

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client.Timeout = requestTimeout

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}
