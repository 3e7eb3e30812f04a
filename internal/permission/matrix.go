package permission

// Matrix maps each section to its named boolean capabilities.
type Matrix map[Resource]map[Action]bool

// Allows reports the capability, treating unset pairs as denied.
func (m Matrix) Allows(resource Resource, action Action) bool {
	if m == nil {
		return false
	}
	return m[resource][action]
}

func (m Matrix) Set(resource Resource, action Action, granted bool) {
	actions, ok := m[resource]
	if !ok {
		actions = make(map[Action]bool)
		m[resource] = actions
	}
	actions[action] = granted
}

func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for r, actions := range m {
		copied := make(map[Action]bool, len(actions))
		for a, v := range actions {
			copied[a] = v
		}
		out[r] = copied
	}
	return out
}

// ToRaw converts to the storage shape.
func (m Matrix) ToRaw() map[string]map[string]bool {
	raw := make(map[string]map[string]bool, len(m))
	for r, actions := range m {
		inner := make(map[string]bool, len(actions))
		for a, v := range actions {
			inner[string(a)] = v
		}
		raw[string(r)] = inner
	}
	return raw
}

func MatrixFromRaw(raw map[string]map[string]bool) Matrix {
	m := make(Matrix, len(raw))
	for r, actions := range raw {
		inner := make(map[Action]bool, len(actions))
		for a, v := range actions {
			inner[Action(a)] = v
		}
		m[Resource(r)] = inner
	}
	return m
}
