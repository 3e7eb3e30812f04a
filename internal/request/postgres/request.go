package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/database"
	requestDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/request"
	"github.com/frahmantamala/equipment-approvals/internal/request"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CodeSequence names the counter request codes are drawn from.
const CodeSequence = "request_code"

const defaultListLimit = 20

type RequestRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewRequestRepository(db *gorm.DB, timeout time.Duration) *RequestRepository {
	return &RequestRepository{db: db, timeout: timeout}
}

// Create draws the code and inserts the request in the same transaction, so a
// failed insert gives the number back.
func (r *RequestRepository) Create(ctx context.Context, req *request.Request) error {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := request.ToDataModel(req)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := nextValue(tx, CodeSequence)
		if err != nil {
			return err
		}
		row.Code = code
		return tx.Create(row).Error
	})
	if err != nil {
		return database.Classify(err)
	}

	req.ID = row.ID
	req.Code = row.Code
	req.CreatedAt = row.CreatedAt
	req.UpdatedAt = row.UpdatedAt
	return nil
}

// nextValue increments the named counter. The upsert holds the row lock until
// the surrounding transaction ends, which serializes concurrent creators.
func nextValue(tx *gorm.DB, name string) (int64, error) {
	seq := requestDatamodel.Sequence{Name: name, Value: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("sequences.value + 1")}),
	}).Create(&seq).Error
	if err != nil {
		return 0, err
	}

	var value int64
	if err := tx.Raw("SELECT value FROM sequences WHERE name = ?", name).Scan(&value).Error; err != nil {
		return 0, err
	}
	return value, nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*request.Request, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row requestDatamodel.Request
	err := r.db.WithContext(ctx).
		Preload("Items", orderItems).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.NewNotFoundError("request", id)
		}
		return nil, database.Classify(err)
	}
	return request.FromDataModel(&row), nil
}

func (r *RequestRepository) UpdatePending(ctx context.Context, req *request.Request) (bool, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	updated := false
	row := request.ToDataModel(req)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&requestDatamodel.Request{}).
			Where("id = ? AND status = ?", req.ID, string(request.StatusPending)).
			Updates(map[string]interface{}{
				"reason":          row.Reason,
				"special":         row.Special,
				"observation":     row.Observation,
				"warehouse_id":    row.WarehouseID,
				"stock_available": row.StockAvailable,
				"updated_at":      req.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Where("request_id = ?", req.ID).Delete(&requestDatamodel.RequestItem{}).Error; err != nil {
			return err
		}
		if len(row.Items) > 0 {
			if err := tx.Create(&row.Items).Error; err != nil {
				return err
			}
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, database.Classify(err)
	}
	return updated, nil
}

func (r *RequestRepository) DeletePending(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, string(request.StatusPending)).Delete(&requestDatamodel.Request{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("request_id = ?", id).Delete(&requestDatamodel.RequestItem{}).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, database.Classify(err)
	}
	return deleted, nil
}

// ApplyTransition is a single compare-and-set UPDATE keyed on the expected status.
func (r *RequestRepository) ApplyTransition(ctx context.Context, id int64, t request.Transition) (bool, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	updates := map[string]interface{}{
		"status":     string(t.To),
		"updated_at": t.At,
	}
	switch t.To {
	case request.StatusApproved:
		updates["approved_at"] = t.At
	case request.StatusRejected:
		updates["rejected_at"] = t.At
	case request.StatusDelivered:
		updates["delivered_at"] = t.At
	}
	if t.Observation != nil {
		updates["observation"] = *t.Observation
	}

	res := r.db.WithContext(ctx).
		Model(&requestDatamodel.Request{}).
		Where("id = ? AND status = ?", id, string(t.From)).
		Updates(updates)
	if res.Error != nil {
		return false, database.Classify(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *RequestRepository) List(ctx context.Context, f request.Filter) ([]*request.Request, int64, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	filtered := func(db *gorm.DB) *gorm.DB {
		if f.Status != nil {
			db = db.Where("status = ?", string(*f.Status))
		}
		if f.Reason != nil {
			db = db.Where("reason = ?", string(*f.Reason))
		}
		if f.EmployeeID != nil {
			db = db.Where("employee_id = ?", *f.EmployeeID)
		}
		if f.ApproverID != nil {
			db = db.Where("approver_id = ?", *f.ApproverID)
		}
		return db
	}

	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&requestDatamodel.Request{}).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, 0, database.Classify(err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rows []*requestDatamodel.Request
	err := db.Scopes(filtered).
		Preload("Items", orderItems).
		Order("code DESC").
		Limit(limit).
		Offset(f.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, database.Classify(err)
	}

	reqs := make([]*request.Request, len(rows))
	for i, row := range rows {
		reqs[i] = request.FromDataModel(row)
	}
	return reqs, total, nil
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("request_items.id ASC")
}
