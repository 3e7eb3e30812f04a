package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/database"
	equipmentDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/equipment"
	"github.com/frahmantamala/equipment-approvals/internal/equipment"
	"gorm.io/gorm"
)

type EquipmentRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewEquipmentRepository(db *gorm.DB, timeout time.Duration) *EquipmentRepository {
	return &EquipmentRepository{db: db, timeout: timeout}
}

func (r *EquipmentRepository) ListCategories(ctx context.Context) ([]*equipment.Category, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []*equipmentDatamodel.Category
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, database.Classify(err)
	}

	categories := make([]*equipment.Category, len(rows))
	for i, row := range rows {
		categories[i] = equipment.CategoryFromDataModel(row)
	}
	return categories, nil
}

func (r *EquipmentRepository) GetCategory(ctx context.Context, id int64) (*equipment.Category, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row equipmentDatamodel.Category
	err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.NewNotFoundError("category", id)
		}
		return nil, database.Classify(err)
	}
	return equipment.CategoryFromDataModel(&row), nil
}

func (r *EquipmentRepository) ListEquipment(ctx context.Context, includeInactive bool) ([]*equipment.Equipment, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	q := r.db.WithContext(ctx).Order("name ASC, id ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}

	var rows []*equipmentDatamodel.Equipment
	if err := q.Find(&rows).Error; err != nil {
		return nil, database.Classify(err)
	}

	items := make([]*equipment.Equipment, len(rows))
	for i, row := range rows {
		items[i] = equipment.EquipmentFromDataModel(row)
	}
	return items, nil
}

func (r *EquipmentRepository) GetEquipmentByIDs(ctx context.Context, ids []int64) (map[int64]*equipment.Equipment, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []*equipmentDatamodel.Equipment
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, database.Classify(err)
	}

	items := make(map[int64]*equipment.Equipment, len(rows))
	for _, row := range rows {
		items[row.ID] = equipment.EquipmentFromDataModel(row)
	}
	return items, nil
}

func (r *EquipmentRepository) GetEquipment(ctx context.Context, id int64) (*equipment.Equipment, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row equipmentDatamodel.Equipment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.NewNotFoundError("equipment", id)
		}
		return nil, database.Classify(err)
	}
	return equipment.EquipmentFromDataModel(&row), nil
}

func (r *EquipmentRepository) CreateEquipment(ctx context.Context, e *equipment.Equipment) error {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := equipment.EquipmentToDataModel(e)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return database.Classify(err)
	}
	e.ID = row.ID
	e.CreatedAt = row.CreatedAt
	e.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *EquipmentRepository) UpdateEquipment(ctx context.Context, e *equipment.Equipment) error {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.db.WithContext(ctx).
		Model(&equipmentDatamodel.Equipment{}).
		Where("id = ?", e.ID).
		Updates(map[string]interface{}{
			"name":        e.Name,
			"category_id": e.CategoryID,
			"stock":       e.Stock,
			"is_active":   e.IsActive,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return database.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return internal.NewNotFoundError("equipment", e.ID)
	}
	return nil
}

func (r *EquipmentRepository) ListWarehouses(ctx context.Context, includeInactive bool) ([]*equipment.Warehouse, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	q := r.db.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}

	var rows []*equipmentDatamodel.Warehouse
	if err := q.Find(&rows).Error; err != nil {
		return nil, database.Classify(err)
	}

	warehouses := make([]*equipment.Warehouse, len(rows))
	for i, row := range rows {
		warehouses[i] = equipment.WarehouseFromDataModel(row)
	}
	return warehouses, nil
}

func (r *EquipmentRepository) GetWarehouse(ctx context.Context, id int64) (*equipment.Warehouse, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row equipmentDatamodel.Warehouse
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.NewNotFoundError("warehouse", id)
		}
		return nil, database.Classify(err)
	}
	return equipment.WarehouseFromDataModel(&row), nil
}

func (r *EquipmentRepository) CreateWarehouse(ctx context.Context, w *equipment.Warehouse) error {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := equipment.WarehouseToDataModel(w)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return database.Classify(err)
	}
	w.ID = row.ID
	w.CreatedAt = row.CreatedAt
	w.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *EquipmentRepository) UpdateWarehouse(ctx context.Context, w *equipment.Warehouse) error {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.db.WithContext(ctx).
		Model(&equipmentDatamodel.Warehouse{}).
		Where("id = ?", w.ID).
		Updates(map[string]interface{}{
			"name":       w.Name,
			"location":   w.Location,
			"is_active":  w.IsActive,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return database.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return internal.NewNotFoundError("warehouse", w.ID)
	}
	return nil
}
