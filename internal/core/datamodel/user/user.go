package user

import "time"

// User keeps both approver shapes: the legacy approver_id column and the
// ordered user_approvers rows written by newer clients.
type User struct {
	ID           int64          `gorm:"primaryKey"`
	Email        string         `gorm:"column:email;uniqueIndex;not null"`
	Name         string         `gorm:"column:name;not null"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	Role         string         `gorm:"column:role;not null"`
	ApproverID   *int64         `gorm:"column:approver_id"`
	Approvers    []UserApprover `gorm:"foreignKey:UserID"`
	CompanyID    *int64         `gorm:"column:company_id"`
	AreaID       *int64         `gorm:"column:area_id"`
	PositionID   *int64         `gorm:"column:position_id"`
	Disabled     bool           `gorm:"column:disabled;not null"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

type UserApprover struct {
	ID         int64 `gorm:"primaryKey"`
	UserID     int64 `gorm:"column:user_id;not null;uniqueIndex:idx_user_approvers_pair"`
	ApproverID int64 `gorm:"column:approver_id;not null;uniqueIndex:idx_user_approvers_pair;index"`
	Position   int   `gorm:"column:position;not null"`
}

func (UserApprover) TableName() string {
	return "user_approvers"
}
