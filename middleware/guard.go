package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	cgAuth "github.com/cairnsgames/cgAuth"
)

// Scope makes m available to downstream handlers via cgAuth.FromContext.
func Scope(m *cgAuth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				http.Error(w, "auth unavailable", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(cgAuth.WithManager(r.Context(), m)))
		})
	}
}

// RequireSession lets a request through only when the scoped session holds a
// token. A request that presents a bearer token must present that token.
func RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, err := cgAuth.FromContext(r.Context())
			if err != nil {
				http.Error(w, "auth unavailable", http.StatusInternalServerError)
				return
			}

			token := a.Token()
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if header := r.Header.Get("Authorization"); header != "" {
				presented, ok := bearerToken(header)
				if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
