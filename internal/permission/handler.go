package permission

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/transport"
	"github.com/frahmantamala/equipment-approvals/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Structure() StructureResponse
	GetOverride(ctx context.Context, userID int64) (*Override, error)
	UpdateOverride(ctx context.Context, userID int64, dto UpdateOverrideDTO, actorID int64) (*Override, error)
	Backfill(ctx context.Context) (BackfillResult, error)
	Check(ctx context.Context, userID int64, resource Resource, action Action) Decision
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

// GetStructure handles GET /admin/permissions/structure
func (h *Handler) GetStructure(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Service.Structure())
}

// GetUserPermissions handles GET /admin/users/{id}/permissions
func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.Service.GetOverride(r.Context(), userID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o)
}

// UpdateUserPermissions handles PUT /admin/users/{id}/permissions
func (h *Handler) UpdateUserPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	var dto UpdateOverrideDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	o, err := h.Service.UpdateOverride(r.Context(), userID, dto, actor.UserID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o)
}

// Backfill handles POST /admin/permissions/backfill
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.Backfill(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// CheckMine handles GET /permissions/check?resource=&action= for the caller.
func (h *Handler) CheckMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	resource := Resource(r.URL.Query().Get("resource"))
	action := Action(r.URL.Query().Get("action"))
	if resource == "" || action == "" {
		h.WriteAppError(w, internal.NewValidationFieldError("resource", "resource and action are required", internal.ErrCodeValidationFailed))
		return
	}

	h.WriteJSON(w, http.StatusOK, CheckResponse{Decision: h.Service.Check(r.Context(), actor.UserID, resource, action)})
}

func (h *Handler) userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, internal.NewValidationFieldError("id", "invalid user id", internal.ErrCodeValidationFailed))
		return 0, false
	}
	return id, true
}
