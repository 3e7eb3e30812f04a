package request

import (
	"fmt"
	"net/http"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/common/validation"
	"github.com/frahmantamala/equipment-approvals/internal/equipment"
	"github.com/frahmantamala/equipment-approvals/internal/transport"
	"github.com/frahmantamala/equipment-approvals/internal/user"
)

const maxObservationLength = 1000

type LineItemDTO struct {
	EquipmentID int64 `json:"equipment_id"`
	Quantity    int   `json:"quantity"`
}

type CreateRequestDTO struct {
	Reason      string        `json:"reason"`
	Special     bool          `json:"special"`
	Observation string        `json:"observation"`
	WarehouseID int64         `json:"warehouse_id"`
	Items       []LineItemDTO `json:"items"`
}

func (d CreateRequestDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("reason", d.Reason).Required().OneOf(internal.ErrCodeInvalidReason, ValidReasons()...)
	v.Field("observation", d.Observation).MaxLength(maxObservationLength)
	v.Field("warehouse_id", d.WarehouseID).Required()
	validateItems(v, d.Items)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// EditRequestDTO patches a pending request. Nil fields are kept; a present items list replaces all items.
type EditRequestDTO struct {
	Reason      *string       `json:"reason"`
	Special     *bool         `json:"special"`
	Observation *string       `json:"observation"`
	WarehouseID *int64        `json:"warehouse_id"`
	Items       []LineItemDTO `json:"items"`
}

func (d EditRequestDTO) Validate() error {
	v := validation.NewValidator()
	if d.Reason != nil {
		v.Field("reason", *d.Reason).Required().OneOf(internal.ErrCodeInvalidReason, ValidReasons()...)
	}
	if d.Observation != nil {
		v.Field("observation", *d.Observation).MaxLength(maxObservationLength)
	}
	if d.WarehouseID != nil {
		v.Field("warehouse_id", *d.WarehouseID).Required()
	}
	if d.Items != nil {
		validateItems(v, d.Items)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func validateItems(v *validation.ValidationBuilder, items []LineItemDTO) {
	if len(items) == 0 {
		v.Fail("items", "at least one line item is required", internal.ErrCodeValidationFailed)
		return
	}
	seen := make(map[int64]bool, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("items[%d]", i)
		v.Field(prefix+".equipment_id", item.EquipmentID).Required()
		v.Field(prefix+".quantity", item.Quantity).MinInt(1, internal.ErrCodeInvalidQuantity)
		if item.EquipmentID != 0 && seen[item.EquipmentID] {
			v.Fail(prefix+".equipment_id", "equipment is listed more than once", internal.ErrCodeValidationFailed)
		}
		seen[item.EquipmentID] = true
	}
}

func toLineItems(items []LineItemDTO) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = LineItem{EquipmentID: item.EquipmentID, Quantity: item.Quantity}
	}
	return out
}

type RejectRequestDTO struct {
	Observation *string `json:"observation"`
}

func (d RejectRequestDTO) Validate() error {
	if d.Observation == nil {
		return nil
	}
	v := validation.NewValidator()
	v.Field("observation", *d.Observation).MaxLength(maxObservationLength)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ItemResponse struct {
	Equipment equipment.EquipmentSummary `json:"equipment"`
	Quantity  int                        `json:"quantity"`
}

// Response is a request with its references expanded for display.
type Response struct {
	ID             int64                      `json:"id"`
	Code           int64                      `json:"code"`
	Reason         Reason                     `json:"reason"`
	Special        bool                       `json:"special"`
	Status         Status                     `json:"status"`
	StockAvailable bool                       `json:"stock_available"`
	Observation    string                     `json:"observation"`
	Warehouse      equipment.WarehouseSummary `json:"warehouse"`
	Employee       user.Summary               `json:"employee"`
	Approver       *user.Summary              `json:"approver"`
	Items          []ItemResponse             `json:"items"`
	ApprovedAt     *time.Time                 `json:"approved_at,omitempty"`
	RejectedAt     *time.Time                 `json:"rejected_at,omitempty"`
	DeliveredAt    *time.Time                 `json:"delivered_at,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

type ListResponse struct {
	Requests []*Response `json:"requests"`
	Total    int64       `json:"total"`
	Limit    int         `json:"limit"`
	Offset   int         `json:"offset"`
}

// ParseFilter reads status, reason, limit and offset from the query string.
func ParseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Limit:  transport.QueryInt(r, "limit", 20, 1, 100),
		Offset: transport.QueryInt(r, "offset", 0, 0, 1<<30),
	}

	v := validation.NewValidator()
	if raw := q.Get("status"); raw != "" {
		v.Field("status", raw).OneOf(internal.ErrCodeValidationFailed, ValidStatuses()...)
		s := Status(raw)
		f.Status = &s
	}
	if raw := q.Get("reason"); raw != "" {
		v.Field("reason", raw).OneOf(internal.ErrCodeInvalidReason, ValidReasons()...)
		reason := Reason(raw)
		f.Reason = &reason
	}
	if err := v.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}
