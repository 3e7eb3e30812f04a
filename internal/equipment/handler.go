package equipment

import (
	"context"
	"net/http"

	"github.com/frahmantamala/equipment-approvals/internal/transport"
)

type ServiceAPI interface {
	ListCategories(ctx context.Context) ([]*Category, error)
	ListEquipment(ctx context.Context, includeInactive bool) ([]*Equipment, error)
	GetEquipment(ctx context.Context, id int64) (*Equipment, error)
	CreateEquipment(ctx context.Context, dto CreateEquipmentDTO) (*Equipment, error)
	UpdateEquipment(ctx context.Context, id int64, dto UpdateEquipmentDTO) (*Equipment, error)
	DeactivateEquipment(ctx context.Context, id int64) error
	ListWarehouses(ctx context.Context, includeInactive bool) ([]*Warehouse, error)
	GetWarehouse(ctx context.Context, id int64) (*Warehouse, error)
	CreateWarehouse(ctx context.Context, dto CreateWarehouseDTO) (*Warehouse, error)
	UpdateWarehouse(ctx context.Context, id int64, dto UpdateWarehouseDTO) (*Warehouse, error)
	DeactivateWarehouse(ctx context.Context, id int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func includeInactive(r *http.Request) bool {
	return r.URL.Query().Get("include_inactive") == "true"
}

// GetCategories handles GET /categories
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Service.ListCategories(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CategoriesResponse{Categories: categories})
}

// GetEquipmentList handles GET /equipment
func (h *Handler) GetEquipmentList(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListEquipment(r.Context(), includeInactive(r))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, EquipmentListResponse{Equipment: items})
}

// GetEquipment handles GET /equipment/{id}
func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	e, err := h.Service.GetEquipment(r.Context(), id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, e)
}

// CreateEquipment handles POST /equipment
func (h *Handler) CreateEquipment(w http.ResponseWriter, r *http.Request) {
	var dto CreateEquipmentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	e, err := h.Service.CreateEquipment(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, e)
}

// UpdateEquipment handles PATCH /equipment/{id}
func (h *Handler) UpdateEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	var dto UpdateEquipmentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	e, err := h.Service.UpdateEquipment(r.Context(), id, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, e)
}

// DeleteEquipment handles DELETE /equipment/{id}
func (h *Handler) DeleteEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	if err := h.Service.DeactivateEquipment(r.Context(), id); err != nil {
		h.WriteAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetWarehouses handles GET /warehouses
func (h *Handler) GetWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.Service.ListWarehouses(r.Context(), includeInactive(r))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, WarehousesResponse{Warehouses: warehouses})
}

// GetWarehouse handles GET /warehouses/{id}
func (h *Handler) GetWarehouse(w http.ResponseWriter, r *http.Request) {
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	wh, err := h.Service.GetWarehouse(r.Context(), id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, wh)
}

// CreateWarehouse handles POST /warehouses
func (h *Handler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var dto CreateWarehouseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	wh, err := h.Service.CreateWarehouse(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, wh)
}

// UpdateWarehouse handles PATCH /warehouses/{id}
func (h *Handler) UpdateWarehouse(w http.ResponseWriter, r *http.Request) {
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	var dto UpdateWarehouseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	wh, err := h.Service.UpdateWarehouse(r.Context(), id, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, wh)
}

// DeleteWarehouse handles DELETE /warehouses/{id}
func (h *Handler) DeleteWarehouse(w http.ResponseWriter, r *http.Request) {
	id, err := transport.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	if err := h.Service.DeactivateWarehouse(r.Context(), id); err != nil {
		h.WriteAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
