package identity

import (
	"context"
	"log/slog"
	"net/http"

	"taxcase/internal/revision/models"
	"taxcase/pkg/platform/httputil"
	"taxcase/pkg/requestcontext"
)

type principalKey struct{}

// WithPrincipal stores a resolved principal in ctx.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal set by ResolvePrincipal, or the
// unresolved zero value.
func PrincipalFromContext(ctx context.Context) models.Principal {
	if p, ok := ctx.Value(principalKey{}).(models.Principal); ok {
		return p
	}
	return models.Principal{}
}

// ResolvePrincipal runs after RequireAuth and loads the principal for the
// authenticated user id.
func ResolvePrincipal(resolver *Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, err := resolver.Resolve(ctx, requestcontext.UserID(ctx))
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "principal resolution failed",
						"user_id", requestcontext.UserID(ctx),
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}
