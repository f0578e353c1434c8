package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clubdesk/clubdesk/internal/platform/httpx"
	"github.com/clubdesk/clubdesk/internal/shared"
)

// HeaderAccessToken carries the session token on authenticated requests.
const HeaderAccessToken = "X-Access-Token"

// Verifier validates a raw session token.
type Verifier interface {
	VerifySessionToken(token string) (*Claims, error)
}

// Gate authenticates requests from their session token and authorizes them
// against a static role set. It never touches storage.
type Gate struct {
	Verifier Verifier
	Logger   *slog.Logger
}

// Authenticated admits any request carrying a valid token.
func (g Gate) Authenticated() func(http.Handler) http.Handler {
	return g.Require()
}

// Require admits requests whose token role is in roles. With no roles any
// valid token passes.
func (g Gate) Require(roles ...string) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := g.authenticate(r)
			if err != nil {
				httpx.RespondError(w, g.Logger, err)
				return
			}
			if err := Authorize(claims, allowed); err != nil {
				if g.Logger != nil {
					g.Logger.Debug("gate denied", slog.String("account_id", claims.AccountID), slog.String("role", claims.Role))
				}
				httpx.RespondError(w, g.Logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func (g Gate) authenticate(r *http.Request) (*Claims, error) {
	raw := TokenFromRequest(r)
	if raw == "" || g.Verifier == nil {
		return nil, shared.ErrUnauthenticated
	}
	claims, err := g.Verifier.VerifySessionToken(raw)
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}
	return claims, nil
}

// Authorize reports ErrForbidden when the claim role is outside roles.
func Authorize(claims *Claims, roles []string) error {
	if claims == nil {
		return shared.ErrUnauthenticated
	}
	if len(roles) == 0 {
		return nil
	}
	role := strings.ToLower(claims.Role)
	for _, allowed := range roles {
		if role == allowed {
			return nil
		}
	}
	return shared.ErrForbidden
}

// TokenFromRequest reads X-Access-Token, falling back to a bearer
// Authorization header.
func TokenFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(HeaderAccessToken)); tok != "" {
		return tok
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role != "" {
			out = append(out, role)
		}
	}
	return out
}

type claimsKey struct{}

// ContextWithClaims stores verified claims on ctx.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims put there by the gate, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}
