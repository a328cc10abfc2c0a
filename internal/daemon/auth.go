package daemon

import (
	"context"
	"net/http"
	"strings"

	"mediaflow/internal/access"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/users"
)

type principalKey struct{}

func withUser(ctx context.Context, user *users.User) context.Context {
	return context.WithValue(ctx, principalKey{}, user)
}

func userFromContext(ctx context.Context) *users.User {
	user, _ := ctx.Value(principalKey{}).(*users.User)
	return user
}

func principalFromContext(ctx context.Context) access.Principal {
	if user := userFromContext(ctx); user != nil {
		return user.Principal()
	}
	return access.Principal{}
}

// bearerToken reads "Authorization: Bearer <token>". Browsers cannot set
// headers on an EventSource, so the event stream also accepts ?access_token=.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if r.URL.Path == "/api/events" {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

// authMiddleware resolves the bearer token to a principal. Missing or unknown
// tokens are rejected with 401 before any handler runs.
func (s *apiServer) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, r, services.Wrap(services.ErrUnauthorized, "api", "authenticate", "missing bearer token", nil))
			return
		}
		user, err := s.daemon.services.Tokens.FindByToken(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if user == nil {
			s.writeError(w, r, services.Wrap(services.ErrUnauthorized, "api", "authenticate", "unknown token", nil))
			return
		}
		ctx := withUser(r.Context(), user)
		ctx = services.WithOrganization(ctx, user.Organization)
		logging.WithContext(ctx, s.logger).Debug("request authenticated",
			logging.String(logging.FieldPrincipal, user.ID),
		)
		next(w, r.WithContext(ctx))
	}
}
