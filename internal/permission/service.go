package permission

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/events"
)

// Service is the administrative surface over the resolver. Shape validation
// against the catalog happens here, before the resolver stores anything.
type Service struct {
	resolver *Resolver
	catalog  *Catalog
	bus      events.Publisher
	logger   *slog.Logger
}

func NewService(resolver *Resolver, catalog *Catalog, bus events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		resolver: resolver,
		catalog:  catalog,
		bus:      bus,
		logger:   logger,
	}
}

func (s *Service) Structure() StructureResponse {
	return StructureResponse{
		Sections: s.catalog.Sections(),
		Roles:    ValidRoles(),
	}
}

func (s *Service) GetOverride(ctx context.Context, userID int64) (*Override, error) {
	return s.resolver.ActiveOverride(ctx, userID)
}

func (s *Service) UpdateOverride(ctx context.Context, userID int64, dto UpdateOverrideDTO, actorID int64) (*Override, error) {
	if dto.Permissions == nil {
		return nil, internal.NewValidationFieldError("permissions", "permissions is required", internal.ErrCodeValidationFailed)
	}
	if err := s.catalog.Validate(dto.Permissions); err != nil {
		s.logger.WarnContext(ctx, "rejected override with unknown keys", "user_id", userID, "error", err.GetDetailedMessage())
		return nil, err
	}

	o, err := s.resolver.Update(ctx, userID, dto.Permissions, actorID, dto.Notes)
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewOverrideUpdatedEvent(userID, actorID))
	}
	return o, nil
}

func (s *Service) Backfill(ctx context.Context) (BackfillResult, error) {
	return s.resolver.MaterializeAll(ctx, 0)
}

// Check evaluates a single pair for the given user.
func (s *Service) Check(ctx context.Context, userID int64, resource Resource, action Action) Decision {
	return s.resolver.HasPermission(ctx, userID, resource, action)
}
