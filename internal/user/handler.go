package user

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/equipment-approvals/internal/transport"
	"github.com/frahmantamala/equipment-approvals/pkg/logger"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	TeamOf(ctx context.Context, approverID int64, filter TeamFilter) ([]*User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}

	u, err := h.Service.GetByID(r.Context(), principal.UserID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

// GetTeam handles GET /users/team
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}

	filter, err := ParseTeamFilter(r)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	members, err := h.Service.TeamOf(r.Context(), principal.UserID, filter)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, TeamResponse{Users: members, Limit: filter.Limit, Offset: filter.Offset})
}

// GetUser handles GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	u, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}
