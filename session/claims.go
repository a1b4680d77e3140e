// Package session implements the stateless session lifecycle: a signed
// HS256 token carried in an HTTP cookie, verified on every request and
// re-signed to extend its window while the user stays active.
//
// Sessions are self-contained; there is no server-side session table. A
// consequence accepted by design: logout removes the cookie but cannot
// invalidate a token that was copied elsewhere before deletion. Tokens
// simply stop verifying once their expiry passes.
package session

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload carried inside the signed session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID      string `json:"userId"`      // Upstream user ID (stable, opaque)
	Name        string `json:"name"`        // Login name, also the commit author name
	Email       string `json:"email"`       // Contact address, also the commit author email
	AccessToken string `json:"accessToken"` // Upstream bearer credential, carried inside the signed payload
}

// Complete reports whether the claims identify an authenticated principal.
// A payload missing the user ID or the upstream access token is treated the
// same as no session at all.
func (c *Claims) Complete() bool {
	return c != nil && c.UserID != "" && c.AccessToken != ""
}
