package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	profauth "github.com/avandrel/profauth"
)

type identityContextKey struct{}

func IdentityFromContext(ctx context.Context) (*profauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*profauth.Identity)
	return id, ok
}

// Guard authenticates requests as the given principal kind. The bearer
// token is read from the kind's configured header.
func Guard(engine *profauth.Engine, kind profauth.PrincipalKind) func(http.Handler) http.Handler {
	return guard(engine, kind, func(ctx context.Context, token string) (*profauth.Identity, error) {
		return engine.Validate(ctx, kind, token)
	})
}

// StepUpGuard authenticates requests carrying a step-up capability token.
// It does not replace Guard; protected routes stack both.
func StepUpGuard(engine *profauth.Engine, kind profauth.PrincipalKind) func(http.Handler) http.Handler {
	return guard(engine, kind, func(ctx context.Context, token string) (*profauth.Identity, error) {
		return engine.ValidateStepUp(ctx, kind, token)
	})
}

func guard(
	engine *profauth.Engine,
	kind profauth.PrincipalKind,
	validate func(context.Context, string) (*profauth.Identity, error),
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get(engine.BearerHeader(kind)))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestContext(r)
			identity, err := validate(ctx, token)
			if err != nil {
				http.Error(w, statusText(err), statusCode(err))
				return
			}

			ctx = context.WithValue(ctx, identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestContext(r *http.Request) context.Context {
	ctx := r.Context()

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host != "" {
		ctx = profauth.WithClientIP(ctx, host)
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		ctx = profauth.WithUserAgent(ctx, ua)
	}
	return ctx
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, profauth.ErrNoAccess):
		return http.StatusForbidden
	case errors.Is(err, profauth.ErrOTPThrottled),
		errors.Is(err, profauth.ErrOTPLockedOut),
		errors.Is(err, profauth.ErrResetThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, profauth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

func statusText(err error) string {
	switch statusCode(err) {
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusTooManyRequests:
		return "too many requests"
	case http.StatusServiceUnavailable:
		return "service unavailable"
	default:
		return "unauthorized"
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if strings.HasPrefix(value, bearer) {
		value = value[len(bearer):]
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	return value, true
}
