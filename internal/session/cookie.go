package session

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const CookieName = "storefront_session"

// Cookies carries the session id in a signed cookie. The cookie holds only
// the id; session contents live in Redis.
type Cookies struct {
	codec  *securecookie.SecureCookie
	secure bool
	maxAge time.Duration
}

func NewCookies(secret string, secure bool, maxAge time.Duration) *Cookies {
	codec := securecookie.New([]byte(secret), nil)
	codec.MaxAge(int(maxAge.Seconds()))
	return &Cookies{codec: codec, secure: secure, maxAge: maxAge}
}

// Read returns the session id of r, or false when the cookie is missing or
// its signature does not verify.
func (c *Cookies) Read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	var id string
	if err := c.codec.Decode(CookieName, ck.Value, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (c *Cookies) Write(w http.ResponseWriter, id string) error {
	encoded, err := c.codec.Encode(CookieName, id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
