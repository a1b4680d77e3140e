package session

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type contextKey struct{}

// Manager composes the codec and the cookie store into the session API the
// rest of the application uses: create on login, look up per request,
// refresh on qualifying requests, destroy on logout.
//
// Lookup is available from two call contexts. Handlers behind the gate use
// FromContext, which returns the claims the gate already verified and
// injected. Anything holding the request itself uses FromRequest. Both
// resolve through the same verification routine.
type Manager struct {
	codec *Codec
	store *CookieStore
	log   zerolog.Logger
}

// NewManager wires a codec and cookie store together.
func NewManager(codec *Codec, store *CookieStore, log zerolog.Logger) (*Manager, error) {
	if codec == nil {
		return nil, errors.New("[NewManager] codec is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] cookie store is required")
	}
	return &Manager{codec: codec, store: store, log: log}, nil
}

// Create signs the claims and sets the session cookie. Called once, at
// successful login.
func (m *Manager) Create(w http.ResponseWriter, claims Claims) error {
	if !claims.Complete() {
		return errors.New("[Create] claims missing user ID or access token")
	}
	token, _, err := m.codec.Sign(claims)
	if err != nil {
		return errors.Wrap(err, "[Create] failed to sign session")
	}
	m.store.Write(w, token)
	return nil
}

// FromRequest returns the verified claims for the request's session cookie,
// or nil when there is no usable session. Every failure mode — absent
// cookie, bad signature, wrong algorithm, expiry, incomplete claims —
// collapses to nil; nothing propagates as an error.
func (m *Manager) FromRequest(r *http.Request) *Claims {
	raw, ok := m.store.Read(r)
	if !ok {
		return nil
	}
	claims, err := m.codec.Verify(raw)
	if err != nil {
		m.log.Debug().Err(err).Msg("session token rejected")
		return nil
	}
	if !claims.Complete() {
		m.log.Debug().Str("user_id", claims.UserID).Msg("session claims incomplete")
		return nil
	}
	return claims
}

// Refresh re-signs a valid session to extend its expiry window and sets the
// renewed cookie on the response. The claims are re-signed exactly as
// verified; only iat/exp change. When the request carries no valid session
// the response is left untouched and nil is returned — an expired or
// tampered token is never revived.
func (m *Manager) Refresh(w http.ResponseWriter, r *http.Request) *Claims {
	claims := m.FromRequest(r)
	if claims == nil {
		return nil
	}
	token, _, err := m.codec.Sign(*claims)
	if err != nil {
		// The session is still valid for this request; it just keeps
		// its current expiry.
		m.log.Warn().Err(err).Msg("session refresh failed")
		return claims
	}
	m.store.Write(w, token)
	return claims
}

// Destroy removes the session cookie.
func (m *Manager) Destroy(w http.ResponseWriter) {
	m.store.Clear(w)
}

// WithClaims returns a context carrying verified session claims. The route
// gate attaches the claims it verified so handlers don't repeat the work.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// FromContext returns the claims attached by the route gate, or nil when
// the request was let through unauthenticated.
func FromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(contextKey{}).(*Claims)
	return claims
}
