package permission

import "time"

// Override is a per-user permission document. At most one row per user has
// is_active = true, enforced by the partial unique index idx_permission_overrides_active.
type Override struct {
	ID             int64                      `gorm:"primaryKey"`
	UserID         int64                      `gorm:"column:user_id;not null;index"`
	Matrix         map[string]map[string]bool `gorm:"column:matrix;serializer:json;not null"`
	IsActive       bool                       `gorm:"column:is_active;not null"`
	LastModifiedBy *int64                     `gorm:"column:last_modified_by"`
	Notes          string                     `gorm:"column:notes"`
	CreatedAt      time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Override) TableName() string {
	return "permission_overrides"
}
