package request

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/equipment-approvals/internal/transport"
	"github.com/frahmantamala/equipment-approvals/pkg/logger"
)

type ServiceAPI interface {
	Create(ctx context.Context, employeeID int64, dto CreateRequestDTO) (*Request, error)
	Edit(ctx context.Context, id, actorID int64, dto EditRequestDTO) (*Request, error)
	Delete(ctx context.Context, id, actorID int64) error
	Approve(ctx context.Context, id, actorID int64) (*Request, error)
	Reject(ctx context.Context, id, actorID int64, dto RejectRequestDTO) (*Request, error)
	Deliver(ctx context.Context, id, actorID int64) (*Request, error)
	Get(ctx context.Context, id, actorID int64) (*Request, error)
	ListMine(ctx context.Context, actorID int64, f Filter) ([]*Request, int64, error)
	ListTeam(ctx context.Context, actorID int64, f Filter) ([]*Request, int64, error)
	ListAll(ctx context.Context, actorID int64, f Filter) ([]*Request, int64, error)
	Expand(ctx context.Context, reqs []*Request) ([]*Response, error)
	ExpandOne(ctx context.Context, req *Request) (*Response, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// CreateRequest handles POST /requests
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}

	var dto CreateRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	req, err := h.Service.Create(r.Context(), principal.UserID, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.writeExpanded(w, r, http.StatusCreated, req)
}

// GetRequest handles GET /requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	req, err := h.Service.Get(r.Context(), id, principal.UserID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.writeExpanded(w, r, http.StatusOK, req)
}

// EditRequest handles PUT /requests/{id}
func (h *Handler) EditRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	var dto EditRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	req, err := h.Service.Edit(r.Context(), id, principal.UserID, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.writeExpanded(w, r, http.StatusOK, req)
}

// DeleteRequest handles DELETE /requests/{id}
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	if err := h.Service.Delete(r.Context(), id, principal.UserID); err != nil {
		h.WriteAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ApproveRequest handles POST /requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	req, err := h.Service.Approve(r.Context(), id, principal.UserID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.writeExpanded(w, r, http.StatusOK, req)
}

// RejectRequest handles POST /requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	var dto RejectRequestDTO
	if r.ContentLength != 0 {
		if err := h.DecodeJSON(r, &dto); err != nil {
			h.WriteAppError(w, err)
			return
		}
	}

	req, err := h.Service.Reject(r.Context(), id, principal.UserID, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.writeExpanded(w, r, http.StatusOK, req)
}

// DeliverRequest handles POST /requests/{id}/deliver
func (h *Handler) DeliverRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	req, err := h.Service.Deliver(r.Context(), id, principal.UserID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.writeExpanded(w, r, http.StatusOK, req)
}

type listFunc func(ctx context.Context, actorID int64, f Filter) ([]*Request, int64, error)

// ListMine handles GET /requests/mine
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListMine)
}

// ListTeam handles GET /requests/team
func (h *Handler) ListTeam(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListTeam)
}

// ListAll handles GET /requests
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListAll)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fetch listFunc) {
	principal, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}

	f, err := ParseFilter(r)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	reqs, total, err := fetch(r.Context(), principal.UserID, f)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	expanded, err := h.Service.Expand(r.Context(), reqs)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ListResponse{
		Requests: expanded,
		Total:    total,
		Limit:    f.Limit,
		Offset:   f.Offset,
	})
}

func (h *Handler) writeExpanded(w http.ResponseWriter, r *http.Request, status int, req *Request) {
	resp, err := h.Service.ExpandOne(r.Context(), req)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, status, resp)
}
