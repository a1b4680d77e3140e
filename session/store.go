package session

import (
	"net/http"
	"time"
)

// DefaultCookieName is the cookie carrying the signed session token.
const DefaultCookieName = "session"

// CookieStore reads and writes the signed token through an HTTP cookie.
// The store never inspects the token value; validity is the codec's job.
type CookieStore struct {
	name   string
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

// NewCookieStore creates a cookie adapter. secure should be true only in a
// production deployment, where the cookie must not travel over plain HTTP.
func NewCookieStore(name string, secure bool, ttl time.Duration) *CookieStore {
	if name == "" {
		name = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CookieStore{
		name:   name,
		secure: secure,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Write sets the session cookie: HttpOnly, Path=/, Expires=now+ttl,
// Secure in production deployments.
func (s *CookieStore) Write(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.ttl),
		HttpOnly: true,
		Secure:   s.secure,
	})
}

// Read returns the raw cookie value, or false when the cookie is absent.
func (s *CookieStore) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Clear removes the cookie so subsequent reads see no session.
func (s *CookieStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
	})
}
