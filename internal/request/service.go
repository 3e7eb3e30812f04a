package request

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/common/validation"
	"github.com/frahmantamala/equipment-approvals/internal/core/events"
	"github.com/frahmantamala/equipment-approvals/internal/equipment"
	"github.com/frahmantamala/equipment-approvals/internal/permission"
	"github.com/frahmantamala/equipment-approvals/internal/user"
)

// Directory is the slice of the team resolver the workflow depends on.
type Directory interface {
	GetByID(ctx context.Context, userID int64) (*user.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*user.User, error)
	FirstActiveApprover(ctx context.Context, employee *user.User) (*user.User, error)
	FirstActiveAdmin(ctx context.Context) (*user.User, error)
	IsInTeam(ctx context.Context, approverID, userID int64) (bool, error)
}

type Inventory interface {
	GetWarehouse(ctx context.Context, id int64) (*equipment.Warehouse, error)
	EquipmentByIDs(ctx context.Context, ids []int64) (map[int64]*equipment.Equipment, error)
}

type Authorizer interface {
	HasPermission(ctx context.Context, userID int64, resource permission.Resource, action permission.Action) permission.Decision
}

type Clock func() time.Time

// Service is the approval workflow.
type Service struct {
	repo      Repository
	directory Directory
	inventory Inventory
	authz     Authorizer
	bus       events.Publisher
	policy    Policy
	now       Clock
	logger    *slog.Logger
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.now = c }
}

func NewService(repo Repository, directory Directory, inventory Inventory, authz Authorizer, bus events.Publisher, policy Policy, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		directory: directory,
		inventory: inventory,
		authz:     authz,
		bus:       bus,
		policy:    policy,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a pending request with its approver resolved once, now.
func (s *Service) Create(ctx context.Context, employeeID int64, dto CreateRequestDTO) (*Request, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	employee, err := s.directory.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	approverID, err := s.resolveApprover(ctx, employee)
	if err != nil {
		return nil, err
	}

	items := toLineItems(dto.Items)
	stock, err := s.checkReferences(ctx, dto.WarehouseID, items)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	req := &Request{
		Reason:         Reason(dto.Reason),
		Special:        dto.Special,
		Status:         StatusPending,
		StockAvailable: stock,
		Observation:    dto.Observation,
		WarehouseID:    dto.WarehouseID,
		EmployeeID:     employeeID,
		ApproverID:     approverID,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "failed to create request", "employee_id", employeeID, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "request created",
		"request_id", req.ID,
		"code", req.Code,
		"employee_id", employeeID,
		"approver_id", approverID)
	s.publish(ctx, events.EventTypeRequestCreated, req, employeeID)
	return req, nil
}

// Edit patches a pending request owned by actorID.
func (s *Service) Edit(ctx context.Context, id, actorID int64, dto EditRequestDTO) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnerWindow(ctx, req, actorID, "edited"); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if dto.Reason != nil {
		req.Reason = Reason(*dto.Reason)
	}
	if dto.Special != nil {
		req.Special = *dto.Special
	}
	if dto.Observation != nil {
		req.Observation = *dto.Observation
	}
	if dto.WarehouseID != nil {
		req.WarehouseID = *dto.WarehouseID
	}
	if dto.Items != nil {
		req.Items = toLineItems(dto.Items)
	}

	// stock may have moved since creation, so the hint is always recomputed
	stock, err := s.checkReferences(ctx, req.WarehouseID, req.Items)
	if err != nil {
		return nil, err
	}
	req.StockAvailable = stock
	req.UpdatedAt = s.now().UTC()

	ok, err := s.repo.UpdatePending(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.staleTransition(ctx, id, "edited")
	}

	s.logger.InfoContext(ctx, "request edited", "request_id", id, "actor_id", actorID)
	return req, nil
}

// Delete removes a pending request owned by actorID.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkOwnerWindow(ctx, req, actorID, "deleted"); err != nil {
		return err
	}

	ok, err := s.repo.DeletePending(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return s.staleTransition(ctx, id, "deleted")
	}

	s.logger.InfoContext(ctx, "request deleted", "request_id", id, "code", req.Code, "actor_id", actorID)
	s.publish(ctx, events.EventTypeRequestDeleted, req, actorID)
	return nil
}

func (s *Service) Approve(ctx context.Context, id, actorID int64) (*Request, error) {
	return s.decide(ctx, id, actorID, Transition{To: StatusApproved}, events.EventTypeRequestApproved)
}

// Reject optionally replaces the observation with the approver's note.
func (s *Service) Reject(ctx context.Context, id, actorID int64, dto RejectRequestDTO) (*Request, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	return s.decide(ctx, id, actorID, Transition{To: StatusRejected, Observation: dto.Observation}, events.EventTypeRequestRejected)
}

// Deliver closes an approved request. It needs requests.canDeliver rather than being the approver.
func (s *Service) Deliver(ctx context.Context, id, actorID int64) (*Request, error) {
	if d := s.authz.HasPermission(ctx, actorID, permission.ResourceRequests, permission.ActionDeliver); !d.Allowed {
		s.logger.WarnContext(ctx, "delivery denied", "request_id", id, "actor_id", actorID, "reason", d.Reason)
		return nil, d.Err()
	}

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, req, actorID, Transition{To: StatusDelivered}, events.EventTypeRequestDelivered)
}

// Get returns the request if actorID may see it. Hidden requests read as not found.
func (s *Service) Get(ctx context.Context, id, actorID int64) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	visible, err := s.visibleTo(ctx, req, actorID)
	if err != nil {
		return nil, err
	}
	if !visible {
		s.logger.WarnContext(ctx, "request hidden from actor", "request_id", id, "actor_id", actorID)
		return nil, internal.NewNotFoundError("request", id)
	}
	return req, nil
}

func (s *Service) ListMine(ctx context.Context, actorID int64, f Filter) ([]*Request, int64, error) {
	f.EmployeeID = &actorID
	f.ApproverID = nil
	return s.repo.List(ctx, f)
}

func (s *Service) ListTeam(ctx context.Context, actorID int64, f Filter) ([]*Request, int64, error) {
	f.ApproverID = &actorID
	f.EmployeeID = nil
	return s.repo.List(ctx, f)
}

func (s *Service) ListAll(ctx context.Context, actorID int64, f Filter) ([]*Request, int64, error) {
	if d := s.authz.HasPermission(ctx, actorID, permission.ResourceRequests, permission.ActionViewAll); !d.Allowed {
		return nil, 0, d.Err()
	}
	f.EmployeeID = nil
	f.ApproverID = nil
	return s.repo.List(ctx, f)
}

func (s *Service) decide(ctx context.Context, id, actorID int64, t Transition, eventType string) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.IsApprover(actorID) {
		s.logger.WarnContext(ctx, "request decision denied: not the approver",
			"request_id", id,
			"actor_id", actorID,
			"target_status", t.To)
		return nil, internal.NewOwnershipError("only the assigned approver may approve or reject this request", internal.ErrCodeNotRequestApprover)
	}
	return s.transition(ctx, req, actorID, t, eventType)
}

// transition applies t as a compare-and-set on the current status.
func (s *Service) transition(ctx context.Context, req *Request, actorID int64, t Transition, eventType string) (*Request, error) {
	if !CanTransition(req.Status, t.To) {
		return nil, internal.NewInvalidStateTransitionError(string(req.Status), string(t.To))
	}
	t.From = req.Status
	t.At = s.now().UTC()

	ok, err := s.repo.ApplyTransition(ctx, req.ID, t)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to apply transition", "request_id", req.ID, "transition", t.String(), "error", err)
		return nil, err
	}
	if !ok {
		return nil, s.staleTransition(ctx, req.ID, string(t.To))
	}

	updated, err := s.repo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "request status changed",
		"request_id", req.ID,
		"code", req.Code,
		"actor_id", actorID,
		"transition", t.String())
	s.publish(ctx, eventType, updated, actorID)
	return updated, nil
}

// staleTransition reports the status that won a lost conditional update.
func (s *Service) staleTransition(ctx context.Context, id int64, attempted string) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "conditional update lost", "request_id", id, "status", current.Status, "attempted", attempted)
	return internal.NewInvalidStateTransitionError(string(current.Status), attempted)
}

func (s *Service) checkOwnerWindow(ctx context.Context, req *Request, actorID int64, attempted string) error {
	if !req.IsOwnedBy(actorID) {
		s.logger.WarnContext(ctx, "request mutation denied: not the owner", "request_id", req.ID, "actor_id", actorID)
		return internal.NewOwnershipError("only the employee who created the request may change it", internal.ErrCodeNotRequestOwner)
	}
	if req.Status != StatusPending {
		return internal.NewInvalidStateTransitionError(string(req.Status), attempted)
	}
	return nil
}

func (s *Service) resolveApprover(ctx context.Context, employee *user.User) (*int64, error) {
	approver, err := s.directory.FirstActiveApprover(ctx, employee)
	if err != nil {
		return nil, err
	}
	if approver != nil {
		id := approver.ID
		return &id, nil
	}

	switch s.policy.MissingApprover {
	case MissingApproverFallbackAdmin:
		admin, err := s.directory.FirstActiveAdmin(ctx)
		if err != nil {
			return nil, err
		}
		if admin != nil {
			s.logger.InfoContext(ctx, "no approver configured, falling back to admin", "employee_id", employee.ID, "admin_id", admin.ID)
			id := admin.ID
			return &id, nil
		}
	case MissingApproverAllow:
		s.logger.WarnContext(ctx, "request created without approver", "employee_id", employee.ID)
		return nil, nil
	}

	return nil, internal.NewValidationFieldError("approver", "no enabled approver is configured for this employee", internal.ErrCodeNoApprover)
}

// checkReferences validates the warehouse and equipment and returns the stock hint.
func (s *Service) checkReferences(ctx context.Context, warehouseID int64, items []LineItem) (bool, error) {
	wh, err := s.inventory.GetWarehouse(ctx, warehouseID)
	switch {
	case internal.IsErrorType(err, internal.ErrorTypeNotFound):
		return false, internal.NewValidationFieldError("warehouse_id", "warehouse does not exist", internal.ErrCodeInvalidReference)
	case err != nil:
		return false, err
	case !wh.IsActive:
		return false, internal.NewValidationFieldError("warehouse_id", "warehouse is not active", internal.ErrCodeInvalidReference)
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.EquipmentID
	}
	found, err := s.inventory.EquipmentByIDs(ctx, ids)
	if err != nil {
		return false, err
	}

	v := validation.NewValidator()
	stock := true
	for i, item := range items {
		field := fmt.Sprintf("items[%d].equipment_id", i)
		e, ok := found[item.EquipmentID]
		switch {
		case !ok:
			v.Fail(field, "equipment does not exist", internal.ErrCodeInvalidReference)
		case !e.IsActive:
			v.Fail(field, "equipment is not active", internal.ErrCodeInvalidReference)
		case !e.Covers(item.Quantity):
			stock = false
		}
	}
	if err := v.Validate(); err != nil {
		return false, err
	}
	return stock, nil
}

func (s *Service) visibleTo(ctx context.Context, req *Request, actorID int64) (bool, error) {
	if req.IsOwnedBy(actorID) || req.IsApprover(actorID) {
		return true, nil
	}

	inTeam, err := s.directory.IsInTeam(ctx, actorID, req.EmployeeID)
	if err != nil && !internal.IsErrorType(err, internal.ErrorTypeNotFound) {
		return false, err
	}
	if inTeam {
		return true, nil
	}

	d := s.authz.HasPermission(ctx, actorID, permission.ResourceRequests, permission.ActionViewAll)
	if d.Reason == permission.ReasonLookupFailed {
		return false, d.Err()
	}
	return d.Allowed, nil
}

func (s *Service) publish(ctx context.Context, eventType string, req *Request, actorID int64) {
	if s.bus == nil {
		return
	}
	event := events.NewRequestEvent(eventType, req.ID, req.Code, actorID, string(req.Status))
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish request event", "event_type", eventType, "request_id", req.ID, "error", err)
	}
}

// Expand resolves the employee, approver, warehouse and equipment references for display.
func (s *Service) Expand(ctx context.Context, reqs []*Request) ([]*Response, error) {
	userIDs := make([]int64, 0, len(reqs)*2)
	equipmentIDs := make([]int64, 0)
	warehouses := make(map[int64]*equipment.Warehouse)
	for _, r := range reqs {
		userIDs = append(userIDs, r.EmployeeID)
		if r.ApproverID != nil {
			userIDs = append(userIDs, *r.ApproverID)
		}
		equipmentIDs = append(equipmentIDs, r.EquipmentIDs()...)
		warehouses[r.WarehouseID] = nil
	}

	users, err := s.directory.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	items, err := s.inventory.EquipmentByIDs(ctx, equipmentIDs)
	if err != nil {
		return nil, err
	}
	for id := range warehouses {
		wh, err := s.inventory.GetWarehouse(ctx, id)
		if err != nil && !internal.IsErrorType(err, internal.ErrorTypeNotFound) {
			return nil, err
		}
		warehouses[id] = wh
	}

	out := make([]*Response, len(reqs))
	for i, r := range reqs {
		out[i] = buildResponse(r, users, items, warehouses)
	}
	return out, nil
}

func (s *Service) ExpandOne(ctx context.Context, req *Request) (*Response, error) {
	out, err := s.Expand(ctx, []*Request{req})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func buildResponse(r *Request, users map[int64]*user.User, items map[int64]*equipment.Equipment, warehouses map[int64]*equipment.Warehouse) *Response {
	resp := &Response{
		ID:             r.ID,
		Code:           r.Code,
		Reason:         r.Reason,
		Special:        r.Special,
		Status:         r.Status,
		StockAvailable: r.StockAvailable,
		Observation:    r.Observation,
		Warehouse:      equipment.WarehouseSummary{ID: r.WarehouseID},
		Employee:       user.Summary{ID: r.EmployeeID},
		Items:          make([]ItemResponse, len(r.Items)),
		ApprovedAt:     r.ApprovedAt,
		RejectedAt:     r.RejectedAt,
		DeliveredAt:    r.DeliveredAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}

	if wh := warehouses[r.WarehouseID]; wh != nil {
		resp.Warehouse = wh.Summary()
	}
	if u, ok := users[r.EmployeeID]; ok {
		resp.Employee = u.Summary()
	}
	if r.ApproverID != nil {
		summary := user.Summary{ID: *r.ApproverID}
		if u, ok := users[*r.ApproverID]; ok {
			summary = u.Summary()
		}
		resp.Approver = &summary
	}
	for i, item := range r.Items {
		summary := equipment.EquipmentSummary{ID: item.EquipmentID}
		if e, ok := items[item.EquipmentID]; ok {
			summary = e.Summary()
		}
		resp.Items[i] = ItemResponse{Equipment: summary, Quantity: item.Quantity}
	}
	return resp
}
