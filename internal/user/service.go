package user

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/equipment-approvals/internal/permission"
	"golang.org/x/text/cases"
)

// Service is the team resolver and the read side of users.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) GetByIDs(ctx context.Context, ids []int64) (map[int64]*User, error) {
	if len(ids) == 0 {
		return map[int64]*User{}, nil
	}
	return s.repo.GetByIDs(ctx, ids)
}

// TeamOf lists the enabled users naming approverID as one of their approvers.
func (s *Service) TeamOf(ctx context.Context, approverID int64, filter TeamFilter) ([]*User, error) {
	members, err := s.repo.ListByApprover(ctx, approverID, filter)
	if err != nil {
		return nil, err
	}

	if needle := strings.TrimSpace(filter.Search); needle != "" {
		fold := cases.Fold()
		needle = fold.String(needle)
		matched := make([]*User, 0, len(members))
		for _, m := range members {
			if strings.Contains(fold.String(m.Name), needle) || strings.Contains(fold.String(m.Email), needle) {
				matched = append(matched, m)
			}
		}
		members = matched
	}

	return paginate(members, filter.Limit, filter.Offset), nil
}

// IsInTeam reports whether userID is an enabled member of approverID's team.
func (s *Service) IsInTeam(ctx context.Context, approverID, userID int64) (bool, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return !u.Disabled && u.HasApprover(approverID), nil
}

// FirstActiveApprover walks the employee's normalized approver list and
// returns the first enabled approver, or nil when none qualifies.
func (s *Service) FirstActiveApprover(ctx context.Context, employee *User) (*User, error) {
	if len(employee.Approvers) == 0 {
		return nil, nil
	}

	approvers, err := s.repo.GetByIDs(ctx, employee.Approvers)
	if err != nil {
		return nil, err
	}
	for _, id := range employee.Approvers {
		a, ok := approvers[id]
		if !ok {
			s.logger.WarnContext(ctx, "approver reference points to a missing user", "user_id", employee.ID, "approver_id", id)
			continue
		}
		if a.Disabled {
			continue
		}
		return a, nil
	}
	return nil, nil
}

func (s *Service) FirstActiveAdmin(ctx context.Context) (*User, error) {
	return s.repo.FirstActiveByRole(ctx, permission.RoleAdmin)
}

// Subject implements permission.SubjectLookup.
func (s *Service) Subject(ctx context.Context, userID int64) (permission.Subject, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return permission.Subject{}, err
	}
	return permission.Subject{UserID: u.ID, Role: u.Role, Disabled: u.Disabled}, nil
}

func paginate(users []*User, limit, offset int) []*User {
	if offset >= len(users) {
		return []*User{}
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users
}
