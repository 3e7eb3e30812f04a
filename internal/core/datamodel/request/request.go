package request

import "time"

type Request struct {
	ID             int64         `gorm:"primaryKey"`
	Code           int64         `gorm:"column:code;uniqueIndex;not null"`
	Reason         string        `gorm:"column:reason;not null"`
	Special        bool          `gorm:"column:special;not null"`
	Status         string        `gorm:"column:status;not null;index"`
	StockAvailable bool          `gorm:"column:stock_available;not null"`
	Observation    string        `gorm:"column:observation"`
	WarehouseID    int64         `gorm:"column:warehouse_id;not null"`
	EmployeeID     int64         `gorm:"column:employee_id;not null;index"`
	ApproverID     *int64        `gorm:"column:approver_id;index"`
	Items          []RequestItem `gorm:"foreignKey:RequestID"`
	ApprovedAt     *time.Time    `gorm:"column:approved_at"`
	RejectedAt     *time.Time    `gorm:"column:rejected_at"`
	DeliveredAt    *time.Time    `gorm:"column:delivered_at"`
	CreatedAt      time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (Request) TableName() string {
	return "requests"
}

type RequestItem struct {
	ID          int64 `gorm:"primaryKey"`
	RequestID   int64 `gorm:"column:request_id;not null;index"`
	EquipmentID int64 `gorm:"column:equipment_id;not null"`
	Quantity    int   `gorm:"column:quantity;not null"`
}

func (RequestItem) TableName() string {
	return "request_items"
}

// Sequence is a named monotonic counter.
type Sequence struct {
	Name  string `gorm:"column:name;primaryKey"`
	Value int64  `gorm:"column:value;not null"`
}

func (Sequence) TableName() string {
	return "sequences"
}
