package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/logging"
)

const (
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	// CookieName carries the token for browser clients.
	CookieName = "access_token"
)

// UserResolver materialises the local user row of a verified identity.
type UserResolver interface {
	EnsureUser(ctx context.Context, username, displayName string) (*domain.User, error)
}

type userCtxKey struct{}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFrom returns the authenticated user, or nil for anonymous requests.
func UserFrom(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userCtxKey{}).(*domain.User)
	return u
}

// Identify resolves the caller from a bearer header or the access_token
// cookie. Requests without a valid token continue anonymously.
func Identify(m *Manager, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := logging.Ctx(ctx)

			claims, err := m.Verify(token)
			if err != nil {
				logger.Debug().Err(err).Msg("ignoring invalid token")
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.EnsureUser(ctx, claims.Username, claims.DisplayName)
			if err != nil {
				logger.Error().Err(err).Str(logging.FieldUsername, claims.Username).Msg("failed to resolve user")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			ctx = WithUser(ctx, user)
			ctx = logging.WithLogger(ctx, logger.With().Str(logging.FieldUserID, user.ID).Logger())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser redirects anonymous callers to loginURL with a next parameter
// pointing back at the requested path.
func RequireUser(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserFrom(r.Context()) == nil {
				http.Redirect(w, r, LoginRedirect(loginURL, r.URL.RequestURI()), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRedirect builds "<loginURL>?next=<path>".
func LoginRedirect(loginURL, next string) string {
	sep := "?"
	if strings.Contains(loginURL, "?") {
		sep = "&"
	}
	return loginURL + sep + "next=" + url.QueryEscape(next)
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get(AuthHeaderKey); strings.HasPrefix(h, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, BearerPrefix))
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
