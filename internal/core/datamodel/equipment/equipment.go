package equipment

import "time"

type Category struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Category) TableName() string {
	return "equipment_categories"
}

type Equipment struct {
	ID         int64     `gorm:"primaryKey"`
	Code       string    `gorm:"column:code;uniqueIndex;not null"`
	Name       string    `gorm:"column:name;not null"`
	CategoryID *int64    `gorm:"column:category_id"`
	Stock      int       `gorm:"column:stock;not null"`
	IsActive   bool      `gorm:"column:is_active;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Equipment) TableName() string {
	return "equipment"
}

type Warehouse struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	Location  string    `gorm:"column:location"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Warehouse) TableName() string {
	return "warehouses"
}
