package access

import "taskdesk-api/domain"

// RoleSet is the normalized set of role tags held by an actor, regardless of
// whether the stored record used bare tags or department-qualified pairs.
type RoleSet map[domain.Role]struct{}

// Has reports whether the set contains the role.
func (s RoleSet) Has(r domain.Role) bool {
	_, ok := s[r]
	return ok
}

// executiveRoles have universal read access. The legacy admin tag is kept in
// the tier so pre-migration accounts keep working.
var executiveRoles = map[domain.Role]struct{}{
	domain.RoleCEO:   {},
	domain.RoleCOO:   {},
	domain.RoleCTO:   {},
	domain.RoleAdmin: {},
}

// ActorContext is the precomputed, normalized view of a user that every
// decision in this package operates on. Build it once per request and pass
// it to evaluators and filter builders.
type ActorContext struct {
	ID            string
	Name          string
	Roles         RoleSet
	Executive     bool
	DepartmentIDs []string
	GroupIDs      []string

	roleDepartments map[domain.Role][]string
}

// PrimaryDepartmentID returns the actor's first department, or "" when the
// actor has none.
func (a ActorContext) PrimaryDepartmentID() string {
	if len(a.DepartmentIDs) == 0 {
		return ""
	}
	return a.DepartmentIDs[0]
}

// RoleDepartments returns the departments a specific role assignment was
// qualified with, in assignment order.
func (a ActorContext) RoleDepartments(r domain.Role) []string {
	return a.roleDepartments[r]
}

// ResolveActor normalizes a user snapshot into an ActorContext. Pure; a
// well-formed user never produces an error. The primary department, when
// set, is always first in DepartmentIDs.
func ResolveActor(u domain.User) ActorContext {
	actor := ActorContext{
		ID:              u.ID,
		Name:            u.FullName,
		Roles:           make(RoleSet, len(u.Roles)),
		GroupIDs:        append([]string(nil), u.Groups...),
		roleDepartments: make(map[domain.Role][]string),
	}

	seenDept := make(map[string]struct{})
	addDept := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seenDept[id]; ok {
			return
		}
		seenDept[id] = struct{}{}
		actor.DepartmentIDs = append(actor.DepartmentIDs, id)
	}

	addDept(u.PrimaryDepartmentID)
	for _, ref := range u.Roles {
		if ref.Role == "" {
			continue
		}
		actor.Roles[ref.Role] = struct{}{}
		if _, ok := executiveRoles[ref.Role]; ok {
			actor.Executive = true
		}
		if ref.DepartmentID != "" {
			actor.roleDepartments[ref.Role] = append(actor.roleDepartments[ref.Role], ref.DepartmentID)
			addDept(ref.DepartmentID)
		}
	}
	return actor
}
