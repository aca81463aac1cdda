package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taxcase/internal/identity"
	"taxcase/internal/revision/models"
	id "taxcase/pkg/domain"
	dErrors "taxcase/pkg/domain-errors"
	"taxcase/pkg/platform/httputil"
	"taxcase/pkg/requestcontext"
)

// Service defines the revision operations exposed over HTTP.
type Service interface {
	Request(ctx context.Context, principal models.Principal, target models.RevisableRef, reason string) (*models.Revision, error)
	Decide(ctx context.Context, principal models.Principal, revisionID id.RevisionID, outcome models.Outcome) (*models.Revision, error)
	Get(ctx context.Context, principal models.Principal, revisionID id.RevisionID) (*models.Revision, error)
	ListByState(ctx context.Context, principal models.Principal, state models.State, limit int) ([]*models.Revision, error)
	ListForTarget(ctx context.Context, principal models.Principal, target models.RevisableRef) ([]*models.Revision, error)
}

// Handler wires revision endpoints to the revision service. The principal is
// read from context, where identity.ResolvePrincipal put it.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts revision endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/revisions", h.HandleCreate)
	r.Get("/revisions", h.HandleList)
	r.Get("/revisions/{id}", h.HandleGet)
	r.Post("/revisions/{id}/approve", h.handleDecide(models.OutcomeApproved))
	r.Post("/revisions/{id}/reject", h.handleDecide(models.OutcomeRejected))
}

// HandleCreate handles POST /revisions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRevisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	principal := identity.PrincipalFromContext(ctx)
	revision, err := h.service.Request(ctx, principal, req.Target(), req.Reason)
	if err != nil {
		h.logFailure(ctx, "revision request failed", err, "target", req.Target().String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRevision(revision))
}

// HandleGet handles GET /revisions/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	revisionID, err := id.ParseRevisionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	revision, err := h.service.Get(ctx, identity.PrincipalFromContext(ctx), revisionID)
	if err != nil {
		h.logFailure(ctx, "revision lookup failed", err, "revision_id", revisionID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRevision(revision))
}

// HandleList handles GET /revisions. With target_kind and target_id it lists
// a target's history; otherwise it lists by state (requested by default).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := identity.PrincipalFromContext(ctx)
	q := r.URL.Query()

	var (
		revisions []*models.Revision
		err       error
	)
	if q.Get("target_kind") != "" || q.Get("target_id") != "" {
		target, perr := models.ParseRevisableRef(q.Get("target_kind"), q.Get("target_id"))
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		revisions, err = h.service.ListForTarget(ctx, principal, target)
	} else {
		state := models.StateRequested
		if raw := q.Get("state"); raw != "" {
			parsed, perr := models.ParseState(raw)
			if perr != nil {
				httputil.WriteError(w, perr)
				return
			}
			state = parsed
		}
		limit, perr := parseLimit(q.Get("limit"))
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		revisions, err = h.service.ListByState(ctx, principal, state, limit)
	}
	if err != nil {
		h.logFailure(ctx, "revision listing failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRevisions(revisions))
}

func (h *Handler) handleDecide(outcome models.Outcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		revisionID, err := id.ParseRevisionID(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		revision, err := h.service.Decide(ctx, identity.PrincipalFromContext(ctx), revisionID, outcome)
		if err != nil {
			h.logFailure(ctx, "revision decision failed", err,
				"revision_id", revisionID,
				"outcome", string(outcome),
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, FromRevision(revision))
	}
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx),
		"error", err,
	)
	if de, ok := dErrors.As(err); ok && dErrors.ToHTTPStatus(de.Code) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, msg, args...)
		return
	}
	h.logger.ErrorContext(ctx, msg, args...)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer")
	}
	return n, nil
}
