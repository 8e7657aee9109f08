package httputil

import (
	"net/http"
	"strings"
)

// BearerToken extracts the access token from the Authorization header,
// falling back to the access_token cookie set by the identity service for
// web clients.
func BearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return parts[1], true
		}
	}
	return GetAccessTokenFromCookie(r)
}

// GetAccessTokenFromCookie extracts access token from cookie.
func GetAccessTokenFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie("access_token")
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
