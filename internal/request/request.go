package request

import (
	"context"
	"fmt"
	"time"

	requestDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/request"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusDelivered Status = "delivered"
)

// transitions lists the only legal moves. Rejected and Delivered are terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func ValidStatuses() []string {
	return []string{string(StatusPending), string(StatusApproved), string(StatusRejected), string(StatusDelivered)}
}

type Reason string

const (
	ReasonNewAssignment Reason = "new_assignment"
	ReasonReplacement   Reason = "replacement"
	ReasonDamaged       Reason = "damaged"
	ReasonLost          Reason = "lost"
	ReasonOther         Reason = "other"
)

func ValidReasons() []string {
	return []string{
		string(ReasonNewAssignment),
		string(ReasonReplacement),
		string(ReasonDamaged),
		string(ReasonLost),
		string(ReasonOther),
	}
}

type LineItem struct {
	EquipmentID int64 `json:"equipment_id"`
	Quantity    int   `json:"quantity"`
}

// Request is an equipment request. ApproverID is fixed at creation.
type Request struct {
	ID             int64      `json:"id"`
	Code           int64      `json:"code"`
	Reason         Reason     `json:"reason"`
	Special        bool       `json:"special"`
	Status         Status     `json:"status"`
	StockAvailable bool       `json:"stock_available"`
	Observation    string     `json:"observation"`
	WarehouseID    int64      `json:"warehouse_id"`
	EmployeeID     int64      `json:"employee_id"`
	ApproverID     *int64     `json:"approver_id,omitempty"`
	Items          []LineItem `json:"items"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (r *Request) IsOwnedBy(userID int64) bool {
	return r.EmployeeID == userID
}

func (r *Request) IsApprover(userID int64) bool {
	return r.ApproverID != nil && *r.ApproverID == userID
}

func (r *Request) EquipmentIDs() []int64 {
	ids := make([]int64, 0, len(r.Items))
	for _, item := range r.Items {
		ids = append(ids, item.EquipmentID)
	}
	return ids
}

// Transition is a conditional status change: it applies only while the row is still in From.
type Transition struct {
	From        Status
	To          Status
	At          time.Time
	Observation *string
}

func (t Transition) String() string {
	return fmt.Sprintf("%s->%s", t.From, t.To)
}

type Filter struct {
	Status     *Status
	Reason     *Reason
	EmployeeID *int64
	ApproverID *int64
	Limit      int
	Offset     int
}

type Repository interface {
	// Create assigns the next code and stores the request with its items in one transaction.
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id int64) (*Request, error)
	// UpdatePending rewrites an editable request; false means it was no longer pending.
	UpdatePending(ctx context.Context, r *Request) (bool, error)
	DeletePending(ctx context.Context, id int64) (bool, error)
	ApplyTransition(ctx context.Context, id int64, t Transition) (bool, error)
	List(ctx context.Context, f Filter) ([]*Request, int64, error)
}

func ToDataModel(r *Request) *requestDatamodel.Request {
	items := make([]requestDatamodel.RequestItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = requestDatamodel.RequestItem{
			RequestID:   r.ID,
			EquipmentID: item.EquipmentID,
			Quantity:    item.Quantity,
		}
	}
	return &requestDatamodel.Request{
		ID:             r.ID,
		Code:           r.Code,
		Reason:         string(r.Reason),
		Special:        r.Special,
		Status:         string(r.Status),
		StockAvailable: r.StockAvailable,
		Observation:    r.Observation,
		WarehouseID:    r.WarehouseID,
		EmployeeID:     r.EmployeeID,
		ApproverID:     r.ApproverID,
		Items:          items,
		ApprovedAt:     r.ApprovedAt,
		RejectedAt:     r.RejectedAt,
		DeliveredAt:    r.DeliveredAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func FromDataModel(row *requestDatamodel.Request) *Request {
	items := make([]LineItem, len(row.Items))
	for i, item := range row.Items {
		items[i] = LineItem{EquipmentID: item.EquipmentID, Quantity: item.Quantity}
	}
	return &Request{
		ID:             row.ID,
		Code:           row.Code,
		Reason:         Reason(row.Reason),
		Special:        row.Special,
		Status:         Status(row.Status),
		StockAvailable: row.StockAvailable,
		Observation:    row.Observation,
		WarehouseID:    row.WarehouseID,
		EmployeeID:     row.EmployeeID,
		ApproverID:     row.ApproverID,
		Items:          items,
		ApprovedAt:     row.ApprovedAt,
		RejectedAt:     row.RejectedAt,
		DeliveredAt:    row.DeliveredAt,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}
