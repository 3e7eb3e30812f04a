package equipment

import (
	"context"
	"time"

	equipmentDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/equipment"
)

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Equipment struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	CategoryID *int64    `json:"category_id,omitempty"`
	Stock      int       `json:"stock"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Covers reports whether the current stock satisfies quantity.
func (e *Equipment) Covers(quantity int) bool {
	return quantity <= e.Stock
}

func (e *Equipment) Summary() EquipmentSummary {
	return EquipmentSummary{ID: e.ID, Code: e.Code, Name: e.Name}
}

type Warehouse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *Warehouse) Summary() WarehouseSummary {
	return WarehouseSummary{ID: w.ID, Name: w.Name}
}

type EquipmentSummary struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type WarehouseSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type RepositoryAPI interface {
	ListCategories(ctx context.Context) ([]*Category, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	ListEquipment(ctx context.Context, includeInactive bool) ([]*Equipment, error)
	// GetEquipmentByIDs returns the rows found, keyed by id, active or not.
	GetEquipmentByIDs(ctx context.Context, ids []int64) (map[int64]*Equipment, error)
	GetEquipment(ctx context.Context, id int64) (*Equipment, error)
	CreateEquipment(ctx context.Context, e *Equipment) error
	UpdateEquipment(ctx context.Context, e *Equipment) error
	ListWarehouses(ctx context.Context, includeInactive bool) ([]*Warehouse, error)
	GetWarehouse(ctx context.Context, id int64) (*Warehouse, error)
	CreateWarehouse(ctx context.Context, w *Warehouse) error
	UpdateWarehouse(ctx context.Context, w *Warehouse) error
}

func CategoryFromDataModel(c *equipmentDatamodel.Category) *Category {
	return &Category{ID: c.ID, Name: c.Name, Description: c.Description}
}

func EquipmentFromDataModel(e *equipmentDatamodel.Equipment) *Equipment {
	return &Equipment{
		ID:         e.ID,
		Code:       e.Code,
		Name:       e.Name,
		CategoryID: e.CategoryID,
		Stock:      e.Stock,
		IsActive:   e.IsActive,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func EquipmentToDataModel(e *Equipment) *equipmentDatamodel.Equipment {
	return &equipmentDatamodel.Equipment{
		ID:         e.ID,
		Code:       e.Code,
		Name:       e.Name,
		CategoryID: e.CategoryID,
		Stock:      e.Stock,
		IsActive:   e.IsActive,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func WarehouseFromDataModel(w *equipmentDatamodel.Warehouse) *Warehouse {
	return &Warehouse{
		ID:        w.ID,
		Name:      w.Name,
		Location:  w.Location,
		IsActive:  w.IsActive,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func WarehouseToDataModel(w *Warehouse) *equipmentDatamodel.Warehouse {
	return &equipmentDatamodel.Warehouse{
		ID:        w.ID,
		Name:      w.Name,
		Location:  w.Location,
		IsActive:  w.IsActive,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}
