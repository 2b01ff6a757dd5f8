package auth

import (
	"net/http"
	"strings"
)

// ResolveToken extracts the candidate token from r, in order of precedence:
// the "token" query parameter, an "Authorization: Bearer" header, the
// "token" cookie. Returns "" when none is present.
func ResolveToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if t := strings.TrimSpace(parts[1]); t != "" {
				return t
			}
		}
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}
