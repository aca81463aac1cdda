package identity

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "taxcase/pkg/domain"
	dErrors "taxcase/pkg/domain-errors"
	"taxcase/pkg/platform/httputil"
	"taxcase/pkg/requestcontext"
)

// HandleInvalidate drops a user's cached principal so a role or entity change
// in the directory takes effect on the next request. Expects a {user_id}
// route parameter.
func HandleInvalidate(resolver *Resolver, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := id.ParseUserID(chi.URLParam(r, "user_id"))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
			return
		}
		if err := resolver.Invalidate(ctx, userID); err != nil {
			logger.ErrorContext(ctx, "principal cache invalidation failed",
				"user_id", userID,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to invalidate principal"))
			return
		}
		logger.InfoContext(ctx, "principal cache invalidated",
			"user_id", userID,
			"request_id", requestcontext.RequestID(ctx),
		)
		w.WriteHeader(http.StatusNoContent)
	}
}
