package auth

import (
	"net/http"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain string // Empty string = current host only
	Secure bool   // HTTPS only
}

// SetXSRFCookie sets the CSRF token in a readable cookie (not httpOnly).
// Client script reads it and echoes it in the X-XSRF-TOKEN header.
func SetXSRFCookie(w http.ResponseWriter, token string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     XSRFCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		HttpOnly: false,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetXSRFCookie retrieves the CSRF token the client currently holds
func GetXSRFCookie(r *http.Request) string {
	cookie, err := r.Cookie(XSRFCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
