package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth requires the server API key on every path except public ones.
// The key is taken from "Authorization: Bearer", X-API-Key, or the api_key
// query parameter, which the websocket client uses since browsers cannot set
// headers on an upgrade. An empty apiKey disables the check.
func Auth(apiKey string, public ...string) Middleware {
	if apiKey == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			switch key := presentedKey(r); {
			case key == "":
				deny(w, http.StatusUnauthorized, "missing API key")
			case subtle.ConstantTimeCompare([]byte(key), want) != 1:
				deny(w, http.StatusUnauthorized, "invalid API key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func presentedKey(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(r.URL.Query().Get("api_key"))
}
