package permission

// Entity is a resource category subject to permission gating.
type Entity string

const (
	EntityEvent         Entity = "event"
	EntityMember        Entity = "member"
	EntityUser          Entity = "user"
	EntityAlbum         Entity = "album"
	EntityFinancial     Entity = "financial"
	EntityAdvertisement Entity = "advertisement"
)

// Entities returns every gated entity in snapshot order.
func Entities() []Entity {
	return []Entity{
		EntityEvent,
		EntityMember,
		EntityUser,
		EntityAlbum,
		EntityFinancial,
		EntityAdvertisement,
	}
}

// ParseEntity validates a raw entity name.
func ParseEntity(s string) (Entity, bool) {
	for _, e := range Entities() {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

// Action is the unit of permission granularity per entity.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions returns every recognized action.
func Actions() []Action {
	return []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}
}

// ParseAction validates a raw action name.
func ParseAction(s string) (Action, bool) {
	for _, a := range Actions() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// EntityPermission is one entity's capability tuple.
type EntityPermission struct {
	Entity Entity `json:"entity"`
	View   bool   `json:"view"`
	Create bool   `json:"create"`
	Update bool   `json:"update"`
	Delete bool   `json:"delete"`
}

// Allows reports whether the tuple grants the given action.
func (p EntityPermission) Allows(action Action) bool {
	switch action {
	case ActionView:
		return p.View
	case ActionCreate:
		return p.Create
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	}
	return false
}

// Apply sets the boolean for the given action.
func (p *EntityPermission) Apply(action Action, value bool) {
	switch action {
	case ActionView:
		p.View = value
	case ActionCreate:
		p.Create = value
	case ActionUpdate:
		p.Update = value
	case ActionDelete:
		p.Delete = value
	}
}

// Set is an ordered capability matrix over the six gated entities. A user's
// permission snapshot and a role template are both Sets.
type Set []EntityPermission

// NewSet returns a Set covering every entity with all actions denied.
func NewSet() Set {
	entities := Entities()
	s := make(Set, 0, len(entities))
	for _, e := range entities {
		s = append(s, EntityPermission{Entity: e})
	}
	return s
}

// Find returns a pointer to the tuple for the given entity, or nil.
func (s Set) Find(entity Entity) *EntityPermission {
	for i := range s {
		if s[i].Entity == entity {
			return &s[i]
		}
	}
	return nil
}

// Allows reports whether the set grants the (entity, action) pair. A missing
// tuple denies.
func (s Set) Allows(entity Entity, action Action) bool {
	p := s.Find(entity)
	return p != nil && p.Allows(action)
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Normalized returns a copy of the set covering every entity exactly once, in
// snapshot order. Tuples for unknown entities are dropped.
func (s Set) Normalized() Set {
	out := NewSet()
	for i := range out {
		if p := s.Find(out[i].Entity); p != nil {
			out[i].View = p.View
			out[i].Create = p.Create
			out[i].Update = p.Update
			out[i].Delete = p.Delete
		}
	}
	return out
}

// Merge ORs another set into a copy of this one, tuple by tuple.
func (s Set) Merge(other Set) Set {
	out := s.Normalized()
	for _, p := range other {
		if t := out.Find(p.Entity); t != nil {
			t.View = t.View || p.View
			t.Create = t.Create || p.Create
			t.Update = t.Update || p.Update
			t.Delete = t.Delete || p.Delete
		}
	}
	return out
}
