package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/auth"
	"github.com/frahmantamala/equipment-approvals/internal/core/database"
	userDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type AccountRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewAccountRepository(db *gorm.DB, timeout time.Duration) *AccountRepository {
	return &AccountRepository{db: db, timeout: timeout}
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	// emails are stored normalized, see user.ToDataModel
	return r.first(ctx, "email = ?", auth.NormalizeEmail(email))
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*auth.Account, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *AccountRepository) first(ctx context.Context, query string, arg interface{}) (*auth.Account, error) {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "email", "name", "role", "password_hash", "disabled").
		Where(query, arg).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, database.Classify(err)
	}

	return &auth.Account{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		Role:         row.Role,
		PasswordHash: row.PasswordHash,
		Disabled:     row.Disabled,
	}, nil
}
