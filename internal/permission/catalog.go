package permission

import (
	"fmt"
	"sort"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/common/validation"
)

type Resource string

type Action string

const (
	ResourceUsers      Resource = "users"
	ResourceWarehouses Resource = "warehouses"
	ResourceEquipment  Resource = "equipment"
	ResourceRequests   Resource = "requests"
	ResourceReports    Resource = "reports"
	ResourceSettings   Resource = "settings"
	ResourceAdminPanel Resource = "adminPanel"
)

const (
	ActionView    Action = "canView"
	ActionCreate  Action = "canCreate"
	ActionEdit    Action = "canEdit"
	ActionDelete  Action = "canDelete"
	ActionManage  Action = "canManage"
	ActionViewAll Action = "canViewAll"
	ActionApprove Action = "canApprove"
	ActionReject  Action = "canReject"
	ActionDeliver Action = "canDeliver"
	ActionExport  Action = "canExport"
)

type ActionSpec struct {
	Key   Action `json:"key"`
	Label string `json:"label"`
}

type Section struct {
	Key     Resource     `json:"key"`
	Label   string       `json:"label"`
	Actions []ActionSpec `json:"actions"`
}

// Pair is one grantable capability.
type Pair struct {
	Resource Resource
	Action   Action
}

func (p Pair) String() string {
	return fmt.Sprintf("%s.%s", p.Resource, p.Action)
}

// Catalog is the immutable set of valid (resource, action) pairs.
type Catalog struct {
	sections []Section
	index    map[Resource]map[Action]struct{}
}

func NewCatalog(sections []Section) *Catalog {
	c := &Catalog{
		sections: make([]Section, 0, len(sections)),
		index:    make(map[Resource]map[Action]struct{}, len(sections)),
	}
	for _, s := range sections {
		actions := make([]ActionSpec, len(s.Actions))
		copy(actions, s.Actions)
		c.sections = append(c.sections, Section{Key: s.Key, Label: s.Label, Actions: actions})

		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a.Key] = struct{}{}
		}
		c.index[s.Key] = set
	}
	return c
}

func DefaultCatalog() *Catalog {
	return NewCatalog([]Section{
		{Key: ResourceUsers, Label: "Users", Actions: []ActionSpec{
			{ActionView, "View users"},
			{ActionCreate, "Create users"},
			{ActionEdit, "Edit users"},
			{ActionDelete, "Delete users"},
			{ActionManage, "Manage user permissions"},
		}},
		{Key: ResourceWarehouses, Label: "Warehouses", Actions: []ActionSpec{
			{ActionView, "View warehouses"},
			{ActionCreate, "Create warehouses"},
			{ActionEdit, "Edit warehouses"},
			{ActionDelete, "Delete warehouses"},
		}},
		{Key: ResourceEquipment, Label: "Equipment", Actions: []ActionSpec{
			{ActionView, "View equipment"},
			{ActionCreate, "Create equipment"},
			{ActionEdit, "Edit equipment"},
			{ActionDelete, "Delete equipment"},
		}},
		{Key: ResourceRequests, Label: "Requests", Actions: []ActionSpec{
			{ActionView, "View own requests"},
			{ActionCreate, "Create requests"},
			{ActionEdit, "Edit own pending requests"},
			{ActionDelete, "Delete own pending requests"},
			{ActionViewAll, "View every request"},
			{ActionApprove, "Approve requests"},
			{ActionReject, "Reject requests"},
			{ActionDeliver, "Mark requests delivered"},
		}},
		{Key: ResourceReports, Label: "Reports", Actions: []ActionSpec{
			{ActionView, "View reports"},
			{ActionExport, "Export reports"},
		}},
		{Key: ResourceSettings, Label: "Settings", Actions: []ActionSpec{
			{ActionView, "View settings"},
			{ActionEdit, "Edit settings"},
		}},
		{Key: ResourceAdminPanel, Label: "Admin panel", Actions: []ActionSpec{
			{ActionView, "Open the admin panel"},
			{ActionManage, "Run administrative operations"},
		}},
	})
}

// Sections returns a copy safe for callers to mutate.
func (c *Catalog) Sections() []Section {
	out := make([]Section, len(c.sections))
	for i, s := range c.sections {
		actions := make([]ActionSpec, len(s.Actions))
		copy(actions, s.Actions)
		out[i] = Section{Key: s.Key, Label: s.Label, Actions: actions}
	}
	return out
}

func (c *Catalog) Has(resource Resource, action Action) bool {
	actions, ok := c.index[resource]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// Pairs lists every catalog pair in section order.
func (c *Catalog) Pairs() []Pair {
	var pairs []Pair
	for _, s := range c.sections {
		for _, a := range s.Actions {
			pairs = append(pairs, Pair{Resource: s.Key, Action: a.Key})
		}
	}
	return pairs
}

// Validate checks that every key in m names a catalog pair.
func (c *Catalog) Validate(m Matrix) *internal.AppError {
	v := validation.NewValidator()

	resources := make([]string, 0, len(m))
	for r := range m {
		resources = append(resources, string(r))
	}
	sort.Strings(resources)

	for _, r := range resources {
		actionSet, known := c.index[Resource(r)]
		if !known {
			v.Fail(r, fmt.Sprintf("unknown section %q", r), internal.ErrCodeUnknownSection)
			continue
		}

		actions := make([]string, 0, len(m[Resource(r)]))
		for a := range m[Resource(r)] {
			actions = append(actions, string(a))
		}
		sort.Strings(actions)

		for _, a := range actions {
			if _, ok := actionSet[Action(a)]; !ok {
				field := r + "." + a
				v.Fail(field, fmt.Sprintf("unknown action %q in section %q", a, r), internal.ErrCodeUnknownAction)
			}
		}
	}

	return v.Validate()
}
