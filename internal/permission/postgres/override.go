package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/database"
	permissionDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/permission"
	"github.com/frahmantamala/equipment-approvals/internal/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// activeTarget matches the partial unique index
// idx_permission_overrides_active ON permission_overrides (user_id) WHERE is_active.
var activeTarget = clause.OnConflict{
	Columns:     []clause.Column{{Name: "user_id"}},
	TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "is_active"}}},
}

type OverrideRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewOverrideRepository(db *gorm.DB, timeout time.Duration) *OverrideRepository {
	return &OverrideRepository{db: db, timeout: timeout}
}

func (r *OverrideRepository) GetActive(ctx context.Context, userID int64) (*permission.Override, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row permissionDatamodel.Override
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, database.Classify(err)
	}
	return fromDataModel(&row), nil
}

func (r *OverrideRepository) InsertIfAbsent(ctx context.Context, o *permission.Override) (bool, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := toDataModel(o)
	onConflict := activeTarget
	onConflict.DoNothing = true

	res := r.db.WithContext(ctx).Clauses(onConflict).Create(row)
	if res.Error != nil {
		return false, database.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	o.ID = row.ID
	o.CreatedAt = row.CreatedAt
	o.UpdatedAt = row.UpdatedAt
	return true, nil
}

func (r *OverrideRepository) UpsertActive(ctx context.Context, o *permission.Override) (*permission.Override, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := toDataModel(o)
	onConflict := activeTarget
	onConflict.DoUpdates = clause.AssignmentColumns([]string{"matrix", "last_modified_by", "notes", "updated_at"})

	db := r.db.WithContext(ctx)
	if err := db.Clauses(onConflict).Create(row).Error; err != nil {
		return nil, database.Classify(err)
	}

	var stored permissionDatamodel.Override
	if err := db.Where("user_id = ? AND is_active = ?", o.UserID, true).First(&stored).Error; err != nil {
		return nil, database.Classify(err)
	}
	return fromDataModel(&stored), nil
}

func (r *OverrideRepository) SubjectsWithoutOverride(ctx context.Context, afterID int64, limit int) ([]permission.Subject, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	type subjectRow struct {
		ID       int64
		Role     string
		Disabled bool
	}
	var rows []subjectRow

	err := r.db.WithContext(ctx).
		Table("users AS u").
		Select("u.id, u.role, u.disabled").
		Where("u.id > ?", afterID).
		Where("NOT EXISTS (SELECT 1 FROM permission_overrides o WHERE o.user_id = u.id AND o.is_active)").
		Order("u.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, database.Classify(err)
	}

	subjects := make([]permission.Subject, len(rows))
	for i, row := range rows {
		subjects[i] = permission.Subject{UserID: row.ID, Role: row.Role, Disabled: row.Disabled}
	}
	return subjects, nil
}

func toDataModel(o *permission.Override) *permissionDatamodel.Override {
	return &permissionDatamodel.Override{
		ID:             o.ID,
		UserID:         o.UserID,
		Matrix:         o.Matrix.ToRaw(),
		IsActive:       o.IsActive,
		LastModifiedBy: o.LastModifiedBy,
		Notes:          o.Notes,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func fromDataModel(row *permissionDatamodel.Override) *permission.Override {
	return &permission.Override{
		ID:             row.ID,
		UserID:         row.UserID,
		Matrix:         permission.MatrixFromRaw(row.Matrix),
		IsActive:       row.IsActive,
		LastModifiedBy: row.LastModifiedBy,
		Notes:          row.Notes,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}
