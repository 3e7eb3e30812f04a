package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/database"
	userDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/user"
	"github.com/frahmantamala/equipment-approvals/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewUserRepository(db *gorm.DB, timeout time.Duration) *UserRepository {
	return &UserRepository{db: db, timeout: timeout}
}

// withApprovers preloads the list shape ordered by position; FromDataModel
// folds in the legacy column.
func withApprovers(db *gorm.DB) *gorm.DB {
	return db.Preload("Approvers", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row userDatamodel.User
	if err := withApprovers(r.db.WithContext(ctx)).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.NewNotFoundError("user", id)
		}
		return nil, database.Classify(err)
	}
	return user.FromDataModel(&row), nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*user.User, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []userDatamodel.User
	if err := withApprovers(r.db.WithContext(ctx)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, database.Classify(err)
	}

	out := make(map[int64]*user.User, len(rows))
	for i := range rows {
		out[rows[i].ID] = user.FromDataModel(&rows[i])
	}
	return out, nil
}

func (r *UserRepository) ListByApprover(ctx context.Context, approverID int64, filter user.TeamFilter) ([]*user.User, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := withApprovers(r.db.WithContext(ctx)).
		Where("users.disabled = ?", false).
		Where("(users.approver_id = ? OR EXISTS (SELECT 1 FROM user_approvers ua WHERE ua.user_id = users.id AND ua.approver_id = ?))",
			approverID, approverID)

	if filter.CompanyID != nil {
		query = query.Where("users.company_id = ?", *filter.CompanyID)
	}
	if filter.AreaID != nil {
		query = query.Where("users.area_id = ?", *filter.AreaID)
	}

	var rows []userDatamodel.User
	if err := query.Order("name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, database.Classify(err)
	}

	out := make([]*user.User, len(rows))
	for i := range rows {
		out[i] = user.FromDataModel(&rows[i])
	}
	return out, nil
}

func (r *UserRepository) FirstActiveByRole(ctx context.Context, role string) (*user.User, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row userDatamodel.User
	err := withApprovers(r.db.WithContext(ctx)).
		Where("role = ? AND disabled = ?", role, false).
		Order("id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, database.Classify(err)
	}
	return user.FromDataModel(&row), nil
}

// Create inserts the user together with its approver rows.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := user.ToDataModel(u)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return database.Classify(err)
	}

	u.ID = row.ID
	u.Email = row.Email
	u.CreatedAt = row.CreatedAt
	u.UpdatedAt = row.UpdatedAt
	return nil
}
