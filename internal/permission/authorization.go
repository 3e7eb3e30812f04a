package permission

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/transport"
)

type Authorizer interface {
	HasPermission(ctx context.Context, userID int64, resource Resource, action Action) Decision
	ResolveLegacy(role string, resource Resource, action Action) bool
}

// RBACAuthorization turns resolver decisions into route middleware.
type RBACAuthorization struct {
	*transport.BaseHandler
	authorizer Authorizer
	logger     *slog.Logger
}

func NewRBACAuthorization(authorizer Authorizer, logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		authorizer:  authorizer,
		logger:      logger,
	}
}

// Require gates a route on the caller's effective (override-backed) matrix.
func (ra *RBACAuthorization) Require(resource Resource, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := internal.PrincipalFromContext(r.Context())
			if !ok {
				ra.logger.WarnContext(r.Context(), "authorization check failed: principal not found in context")
				ra.WriteAppError(w, internal.ErrMissingToken)
				return
			}

			decision := ra.authorizer.HasPermission(r.Context(), principal.UserID, resource, action)
			if !decision.Allowed {
				ra.logger.WarnContext(r.Context(), "access denied",
					"user_id", principal.UserID,
					"resource", resource,
					"action", action,
					"reason", decision.Reason)
				ra.WriteAppError(w, decision.Err())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireLegacy answers from the role carried in the token, without a store round trip.
func (ra *RBACAuthorization) RequireLegacy(resource Resource, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := internal.PrincipalFromContext(r.Context())
			if !ok {
				ra.WriteAppError(w, internal.ErrMissingToken)
				return
			}

			if !ra.authorizer.ResolveLegacy(principal.Role, resource, action) {
				ra.logger.WarnContext(r.Context(), "access denied by role defaults",
					"user_id", principal.UserID,
					"role", principal.Role,
					"resource", resource,
					"action", action)
				ra.WriteAppError(w, internal.NewForbiddenError(string(resource), string(action), principal.Role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
