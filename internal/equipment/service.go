package equipment

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/equipment-approvals/internal"
)

// Service is the reference-data collaborator behind the request workflow.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list categories", "error", err)
		return nil, err
	}
	return categories, nil
}

func (s *Service) ListEquipment(ctx context.Context, includeInactive bool) ([]*Equipment, error) {
	items, err := s.repo.ListEquipment(ctx, includeInactive)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list equipment", "error", err)
		return nil, err
	}
	return items, nil
}

func (s *Service) GetEquipment(ctx context.Context, id int64) (*Equipment, error) {
	return s.repo.GetEquipment(ctx, id)
}

// EquipmentByIDs returns every row found for ids, keyed by id. Missing ids are simply absent.
func (s *Service) EquipmentByIDs(ctx context.Context, ids []int64) (map[int64]*Equipment, error) {
	if len(ids) == 0 {
		return map[int64]*Equipment{}, nil
	}
	return s.repo.GetEquipmentByIDs(ctx, ids)
}

func (s *Service) CreateEquipment(ctx context.Context, dto CreateEquipmentDTO) (*Equipment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, dto.CategoryID); err != nil {
		return nil, err
	}

	e := &Equipment{
		Code:       strings.TrimSpace(dto.Code),
		Name:       strings.TrimSpace(dto.Name),
		CategoryID: dto.CategoryID,
		Stock:      dto.Stock,
		IsActive:   true,
	}
	if err := s.repo.CreateEquipment(ctx, e); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "equipment created", "equipment_id", e.ID, "code", e.Code)
	return e, nil
}

func (s *Service) UpdateEquipment(ctx context.Context, id int64, dto UpdateEquipmentDTO) (*Equipment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	e, err := s.repo.GetEquipment(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil {
		e.Name = strings.TrimSpace(*dto.Name)
	}
	if dto.CategoryID != nil {
		if err := s.checkCategory(ctx, dto.CategoryID); err != nil {
			return nil, err
		}
		e.CategoryID = dto.CategoryID
	}
	if dto.Stock != nil {
		e.Stock = *dto.Stock
	}

	if err := s.repo.UpdateEquipment(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeactivateEquipment hides the item from new requests; existing line items keep their reference.
func (s *Service) DeactivateEquipment(ctx context.Context, id int64) error {
	e, err := s.repo.GetEquipment(ctx, id)
	if err != nil {
		return err
	}
	if !e.IsActive {
		return nil
	}
	e.IsActive = false
	if err := s.repo.UpdateEquipment(ctx, e); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "equipment deactivated", "equipment_id", id)
	return nil
}

func (s *Service) ListWarehouses(ctx context.Context, includeInactive bool) ([]*Warehouse, error) {
	warehouses, err := s.repo.ListWarehouses(ctx, includeInactive)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list warehouses", "error", err)
		return nil, err
	}
	return warehouses, nil
}

func (s *Service) GetWarehouse(ctx context.Context, id int64) (*Warehouse, error) {
	return s.repo.GetWarehouse(ctx, id)
}

func (s *Service) CreateWarehouse(ctx context.Context, dto CreateWarehouseDTO) (*Warehouse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	w := &Warehouse{
		Name:     strings.TrimSpace(dto.Name),
		Location: strings.TrimSpace(dto.Location),
		IsActive: true,
	}
	if err := s.repo.CreateWarehouse(ctx, w); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "warehouse created", "warehouse_id", w.ID, "name", w.Name)
	return w, nil
}

func (s *Service) UpdateWarehouse(ctx context.Context, id int64, dto UpdateWarehouseDTO) (*Warehouse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	w, err := s.repo.GetWarehouse(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil {
		w.Name = strings.TrimSpace(*dto.Name)
	}
	if dto.Location != nil {
		w.Location = strings.TrimSpace(*dto.Location)
	}

	if err := s.repo.UpdateWarehouse(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) DeactivateWarehouse(ctx context.Context, id int64) error {
	w, err := s.repo.GetWarehouse(ctx, id)
	if err != nil {
		return err
	}
	if !w.IsActive {
		return nil
	}
	w.IsActive = false
	if err := s.repo.UpdateWarehouse(ctx, w); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "warehouse deactivated", "warehouse_id", id)
	return nil
}

func (s *Service) checkCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.repo.GetCategory(ctx, *id); err != nil {
		if internal.IsErrorType(err, internal.ErrorTypeNotFound) {
			return internal.NewValidationFieldError("category_id", "category does not exist", internal.ErrCodeInvalidReference)
		}
		return err
	}
	return nil
}
