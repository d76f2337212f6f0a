package api

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

const authRealm = `Basic realm="livebridge admin"`

// credentials checks Basic auth from the Authorization header or, for
// browser clients that cannot set headers (EventSource, WebSocket), from a
// base64 "user:pass" auth query value. It returns "" on success.
func credentials(authHeader, queryAuth, username, password string) string {
	var decoded string

	if authHeader != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(authHeader, prefix) {
			return "Invalid authentication type"
		}
		raw, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
		if err != nil {
			return "Invalid credentials format"
		}
		decoded = string(raw)
	} else if queryAuth != "" {
		raw, err := base64.StdEncoding.DecodeString(queryAuth)
		if err != nil {
			return "Invalid credentials format"
		}
		decoded = string(raw)
	}

	if decoded == "" {
		return "Authentication required"
	}

	user, pass, ok := strings.Cut(decoded, ":")
	if !ok {
		return "Invalid credentials format"
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
	if !userOK || !passOK {
		return "Invalid credentials"
	}
	return ""
}

// authorize checks request credentials against the configured admin account.
// Without a configured account every request is refused.
func (s *Server) authorize(authHeader, queryAuth string) string {
	username, password := s.options.AuthUsername, s.options.AuthPassword
	if username == "" || password == "" {
		return "Admin credentials not configured"
	}
	return credentials(authHeader, queryAuth, username, password)
}

// basicAuthMiddleware enforces credentials on operations that declare a
// security requirement.
func (s *Server) basicAuthMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		if msg := s.authorize(ctx.Header("Authorization"), ctx.Query("auth")); msg != "" {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
			return
		}
		next(ctx)
	}
}

// requireAuth is the plain net/http form of basicAuthMiddleware for routes
// huma does not own.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	if s.options.AuthDisabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if msg := s.authorize(r.Header.Get("Authorization"), r.URL.Query().Get("auth")); msg != "" {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, msg, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
