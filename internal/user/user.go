package user

import (
	"context"
	"sort"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal/core/common/validation"
	userDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/user"
)

// User is the domain view of a person. Approvers is the single normalized,
// ordered approver list regardless of how the row stores it.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Approvers    []int64   `json:"approver_ids"`
	CompanyID    *int64    `json:"company_id,omitempty"`
	AreaID       *int64    `json:"area_id,omitempty"`
	PositionID   *int64    `json:"position_id,omitempty"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary is the reference shape embedded in other resources.
type Summary struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

func (u *User) HasApprover(approverID int64) bool {
	for _, id := range u.Approvers {
		if id == approverID {
			return true
		}
	}
	return false
}

// TeamFilter narrows a team listing.
type TeamFilter struct {
	Search    string
	CompanyID *int64
	AreaID    *int64
	Limit     int
	Offset    int
}

type Repository interface {
	// GetByID returns a NOT_FOUND AppError when the user does not exist.
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*User, error)
	// ListByApprover returns non-disabled users naming approverID in either
	// approver shape, filtered by company and area.
	ListByApprover(ctx context.Context, approverID int64, filter TeamFilter) ([]*User, error)
	// FirstActiveByRole returns nil, nil when no enabled user holds role.
	FirstActiveByRole(ctx context.Context, role string) (*User, error)
	Create(ctx context.Context, u *User) error
}

// NormalizeApprovers merges the ordered user_approvers rows with the legacy
// approver_id column. List entries come first; the legacy reference is
// appended when the list does not already name it.
func NormalizeApprovers(legacy *int64, rows []userDatamodel.UserApprover) []int64 {
	sorted := make([]userDatamodel.UserApprover, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	seen := make(map[int64]struct{}, len(sorted)+1)
	out := make([]int64, 0, len(sorted)+1)
	for _, r := range sorted {
		if _, dup := seen[r.ApproverID]; dup {
			continue
		}
		seen[r.ApproverID] = struct{}{}
		out = append(out, r.ApproverID)
	}
	if legacy != nil && *legacy > 0 {
		if _, dup := seen[*legacy]; !dup {
			out = append(out, *legacy)
		}
	}
	return out
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Approvers:    NormalizeApprovers(u.ApproverID, u.Approvers),
		CompanyID:    u.CompanyID,
		AreaID:       u.AreaID,
		PositionID:   u.PositionID,
		Disabled:     u.Disabled,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// ToDataModel writes the normalized list as user_approvers rows; the legacy
// column is left empty for new writes. The email is stored in its normalized form.
func ToDataModel(u *User) *userDatamodel.User {
	rows := make([]userDatamodel.UserApprover, len(u.Approvers))
	for i, id := range u.Approvers {
		rows[i] = userDatamodel.UserApprover{ApproverID: id, Position: i}
	}
	return &userDatamodel.User{
		ID:           u.ID,
		Email:        validation.NormalizeEmail(u.Email),
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Approvers:    rows,
		CompanyID:    u.CompanyID,
		AreaID:       u.AreaID,
		PositionID:   u.PositionID,
		Disabled:     u.Disabled,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
