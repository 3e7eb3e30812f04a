package permission

import "context"

const (
	RoleAdmin      = "admin"
	RoleApprover   = "approver"
	RoleSupervisor = "supervisor"
	RoleUser       = "user"
)

func ValidRoles() []string {
	return []string{RoleAdmin, RoleApprover, RoleSupervisor, RoleUser}
}

// Grants lists the capabilities a role holds; anything not listed is denied.
type Grants map[Resource][]Action

// DefaultGrants is the role default table shipped with the service.
func DefaultGrants() map[string]Grants {
	return map[string]Grants{
		RoleAdmin: nil, // expanded to every catalog pair
		RoleApprover: {
			ResourceUsers:      {ActionView},
			ResourceWarehouses: {ActionView},
			ResourceEquipment:  {ActionView},
			ResourceRequests:   {ActionView, ActionCreate, ActionEdit, ActionDelete, ActionApprove, ActionReject},
			ResourceReports:    {ActionView},
		},
		RoleSupervisor: {
			ResourceUsers:      {ActionView},
			ResourceWarehouses: {ActionView, ActionEdit},
			ResourceEquipment:  {ActionView, ActionCreate, ActionEdit},
			ResourceRequests:   {ActionView, ActionCreate, ActionEdit, ActionDelete, ActionViewAll, ActionDeliver},
			ResourceReports:    {ActionView, ActionExport},
			ResourceSettings:   {ActionView},
		},
		RoleUser: {
			ResourceWarehouses: {ActionView},
			ResourceEquipment:  {ActionView},
			ResourceRequests:   {ActionView, ActionCreate, ActionEdit, ActionDelete},
		},
	}
}

// RoleDefaults is the static role -> matrix table. Every matrix it hands out
// spells out every catalog pair explicitly, so a seeded override and the
// legacy lookup answer identically.
type RoleDefaults struct {
	catalog  *Catalog
	matrices map[string]Matrix
}

func NewRoleDefaults(catalog *Catalog, grants map[string]Grants) *RoleDefaults {
	rd := &RoleDefaults{
		catalog:  catalog,
		matrices: make(map[string]Matrix, len(grants)),
	}
	for role, g := range grants {
		m := rd.emptyMatrix()
		if role == RoleAdmin {
			for _, p := range catalog.Pairs() {
				m.Set(p.Resource, p.Action, true)
			}
		}
		for resource, actions := range g {
			for _, a := range actions {
				if catalog.Has(resource, a) {
					m.Set(resource, a, true)
				}
			}
		}
		rd.matrices[role] = m
	}
	return rd
}

func (rd *RoleDefaults) emptyMatrix() Matrix {
	m := make(Matrix)
	for _, p := range rd.catalog.Pairs() {
		m.Set(p.Resource, p.Action, false)
	}
	return m
}

// MatrixFor returns a private copy; unknown roles get an all-false matrix.
func (rd *RoleDefaults) MatrixFor(role string) Matrix {
	if m, ok := rd.matrices[role]; ok {
		return m.Clone()
	}
	return rd.emptyMatrix()
}

func (rd *RoleDefaults) Allows(role string, resource Resource, action Action) bool {
	m, ok := rd.matrices[role]
	if !ok {
		return false
	}
	return m.Allows(resource, action)
}

// Matrix implements Source.
func (rd *RoleDefaults) Matrix(_ context.Context, subject Subject) (Matrix, error) {
	return rd.MatrixFor(subject.Role), nil
}
