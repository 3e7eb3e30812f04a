package equipment

import (
	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/common/validation"
)

type CreateEquipmentDTO struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	CategoryID *int64 `json:"category_id"`
	Stock      int    `json:"stock"`
}

func (d CreateEquipmentDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("code", d.Code).Required().MaxLength(64)
	v.Field("name", d.Name).Required().MaxLength(255)
	v.Field("stock", d.Stock).MinInt(0, internal.ErrCodeInvalidQuantity)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateEquipmentDTO patches only the fields present.
type UpdateEquipmentDTO struct {
	Name       *string `json:"name"`
	CategoryID *int64  `json:"category_id"`
	Stock      *int    `json:"stock"`
}

func (d UpdateEquipmentDTO) Validate() error {
	v := validation.NewValidator()
	if d.Name != nil {
		v.Field("name", *d.Name).Required().MaxLength(255)
	}
	if d.Stock != nil {
		v.Field("stock", *d.Stock).MinInt(0, internal.ErrCodeInvalidQuantity)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type CreateWarehouseDTO struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func (d CreateWarehouseDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(255)
	v.Field("location", d.Location).MaxLength(255)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateWarehouseDTO patches only the fields present.
type UpdateWarehouseDTO struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
}

func (d UpdateWarehouseDTO) Validate() error {
	v := validation.NewValidator()
	if d.Name != nil {
		v.Field("name", *d.Name).Required().MaxLength(255)
	}
	if d.Location != nil {
		v.Field("location", *d.Location).MaxLength(255)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type CategoriesResponse struct {
	Categories []*Category `json:"categories"`
}

type EquipmentListResponse struct {
	Equipment []*Equipment `json:"equipment"`
}

type WarehousesResponse struct {
	Warehouses []*Warehouse `json:"warehouses"`
}
