package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieBinder binds issued tokens to HTTP-only cookies on the gin response.
// Browser clients authenticate through these cookies; script access is
// blocked by the HttpOnly attribute.
type CookieBinder struct {
	c      *gin.Context
	secure bool
}

// NewCookieBinder constructs a binder for the current request. secure must be
// true in production so the cookies only travel over TLS.
func NewCookieBinder(c *gin.Context, secure bool) *CookieBinder {
	return &CookieBinder{c: c, secure: secure}
}

// BindToken sets a cookie holding the token until its expiry.
func (b *CookieBinder) BindToken(name, value string, expiry time.Time) {
	if b == nil || b.c == nil || value == "" {
		return
	}

	maxAge := int(time.Until(expiry).Seconds())
	if maxAge <= 0 {
		return
	}

	b.c.SetSameSite(http.SameSiteLaxMode)
	b.c.SetCookie(name, value, maxAge, "/", "", b.secure, true)
}

// ClearToken expires the named cookie immediately.
func (b *CookieBinder) ClearToken(name string) {
	if b == nil || b.c == nil {
		return
	}

	b.c.SetSameSite(http.SameSiteLaxMode)
	b.c.SetCookie(name, "", -1, "/", "", b.secure, true)
}
