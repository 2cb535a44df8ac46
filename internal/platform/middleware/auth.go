package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"chronicle/internal/token"
	"chronicle/internal/transport/http/shared/json"
)

// TokenCodec is the verification surface the gate needs. Verification is
// local to this process: no database lookup, no call to the token's issuer.
type TokenCodec interface {
	Verify(tokenString string) (*token.Claims, error)
	ExtractSubjectUnchecked(tokenString string) (string, error)
}

// Principal is the request-scoped identity derived from a verified bearer
// token. It lives only for the request's processing lifetime.
type Principal struct {
	Username    string
	Authorities []string
}

// HasAuthority reports whether the principal carries the given role.
func (p *Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

type principalKey struct{}

// GetPrincipal retrieves the authenticated principal from the context.
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// Authenticate is the inbound trust gate. It never aborts the request: any
// missing, malformed, expired, or forged token is logged and the request
// continues unauthenticated, to be denied downstream by RequireAuthority.
func Authenticate(codec TokenCodec, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			tokenString, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				if authHeader != "" {
					logger.WarnContext(ctx, "authorization header without bearer scheme",
						"request_id", GetRequestID(ctx),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			// Cheap structural pre-filter before the full verification.
			subject, err := codec.ExtractSubjectUnchecked(tokenString)
			if err != nil {
				logger.WarnContext(ctx, "unable to decode bearer token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			if _, attached := GetPrincipal(ctx); subject != "" && !attached {
				claims, err := codec.Verify(tokenString)
				if err != nil {
					logger.WarnContext(ctx, "bearer token verification failed",
						"kind", failureKind(err),
						"subject", subject,
						"request_id", GetRequestID(ctx),
					)
					next.ServeHTTP(w, r)
					return
				}

				principal := &Principal{
					Username:    claims.Subject,
					Authorities: claims.Roles,
				}
				ctx = context.WithValue(ctx, principalKey{}, principal)
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// failureKind names the classified verification failure for logs.
func failureKind(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, token.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, token.ErrMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}

// RequireAuthority is the access-control layer: it denies requests that did
// not authenticate (401) or whose principal lacks the authority (403).
func RequireAuthority(authority string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			principal, ok := GetPrincipal(ctx)
			if !ok {
				logger.WarnContext(ctx, "unauthenticated access to protected resource",
					"path", r.URL.Path,
					"request_id", GetRequestID(ctx),
				)
				json.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error":             "unauthorized",
					"error_description": "Missing or invalid bearer token",
				})
				return
			}
			if !principal.HasAuthority(authority) {
				logger.WarnContext(ctx, "insufficient authority",
					"username", principal.Username,
					"required", authority,
					"request_id", GetRequestID(ctx),
				)
				json.WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":             "forbidden",
					"error_description": "Insufficient privileges",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
