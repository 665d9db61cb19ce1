package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/bsipocz/gammapy/internal/config"
	"github.com/bsipocz/gammapy/internal/logging"
)

// APIKeyAuth returns middleware that checks the X-API-Key header against
// cfg.APIKeys. With RequireAPIKey off every request passes; with it on and
// no keys configured every request is rejected.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			switch {
			case apiKey == "":
				denyAPIKey(w, r, http.StatusUnauthorized, "missing API key", "AUTH001")
			case !isValidAPIKey(apiKey, cfg.APIKeys):
				denyAPIKey(w, r, http.StatusForbidden, "invalid API key", "AUTH002")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func denyAPIKey(w http.ResponseWriter, r *http.Request, status int, msg, code string) {
	logging.FromContext(r.Context()).Warn("auth: "+msg,
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"message":%q,"code":%q}`+"\n", msg, msg, code)
}

// isValidAPIKey compares key against every configured key in constant time,
// so timing does not reveal which key (if any) matched.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}
