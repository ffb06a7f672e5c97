package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"storefront-api/internal/httputil"
	"storefront-api/internal/session"
	"storefront-api/internal/token"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const principalContextKey ContextKey = "principal"

// Principal is the identity a request resolved to, regardless of
// which credential channel produced it.
type Principal struct {
	UserID  uuid.UUID
	Email   string
	Name    string
	IsAdmin bool
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(tokenStr string) (*token.Claims, error)
}

// SessionReader looks up active sessions.
type SessionReader interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Gate resolves incoming requests to an authenticated identity.
// Constructed once at startup and shared by every protected route;
// it holds no per-request state and never mutates token or session
// state.
type Gate struct {
	tokens   TokenVerifier
	sessions SessionReader
}

func NewGate(tokens TokenVerifier, sessions SessionReader) *Gate {
	return &Gate{tokens: tokens, sessions: sessions}
}

// RequireAuth authenticates the request. A bearer header takes
// precedence over the session cookie: a present but invalid bearer is
// terminal even when a valid session exists.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
				return
			}

			claims, err := g.tokens.Verify(parts[1])
			if err != nil {
				if errors.Is(err, token.ErrExpiredToken) {
					httputil.RespondErrorWithCode(w, "token has expired", httputil.CodeTokenExpired, http.StatusUnauthorized)
					return
				}
				httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
				return
			}

			if claims.Purpose != token.PurposeLogin && claims.Purpose != token.PurposeFederated {
				// Reset/verification tokens are not login credentials
				httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				httputil.RespondErrorWithCode(w, "invalid user ID in token", httputil.CodeInvalidToken, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), &Principal{
				UserID:  userID,
				Email:   claims.Email,
				Name:    claims.Name,
				IsAdmin: claims.IsAdmin,
			})))
			return
		}

		// No bearer header: fall back to the server-side session
		sessionID := session.IDFromRequest(r)
		if sessionID == "" {
			httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		sess, err := g.sessions.Get(r.Context(), sessionID)
		if err != nil {
			httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), &Principal{
			UserID:  sess.UserID,
			Email:   sess.Email,
			Name:    sess.Name,
			IsAdmin: sess.IsAdmin,
		})))
	})
}

// RequireAdmin layers an admin check on top of RequireAuth. The
// identity resolution path is identical; only the flag check is added.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok || !principal.IsAdmin {
			httputil.RespondErrorWithCode(w, "admin access required", httputil.CodeForbidden, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the authenticated identity from the
// request context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok
}
