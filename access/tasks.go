package access

import "taskdesk-api/domain"

// TaskListFilter builds a predicate restricting which tasks on the board the
// actor may see. Precedence, first match wins: executive (no filter),
// expense boards (self-scope for everyone, overriding every role rule),
// head (department scope), lead (own plus buyer-created), buyer (own
// everywhere), tech on the tech board and designer on the design board (no
// filter), default self-scope.
//
// The directory lookups are invoked once, at filter construction; the
// returned predicate itself does no I/O.
func (e *Engine) TaskListFilter(actor ActorContext, board domain.Board) func(domain.Task) bool {
	if actor.Executive {
		return unfiltered
	}
	if board.Type == domain.BoardExpenses {
		return ownTasks(actor)
	}
	switch {
	case actor.Roles.Has(domain.RoleHead):
		return e.departmentScope(actor)
	case actor.Roles.Has(domain.RoleLead):
		return e.leadScope(actor)
	case actor.Roles.Has(domain.RoleBuyer):
		return ownTasks(actor)
	case actor.Roles.Has(domain.RoleTech) && board.Key == e.cfg.TechBoardKey:
		return unfiltered
	case actor.Roles.Has(domain.RoleDesigner) && board.Key == e.cfg.DesignBoardKey:
		return unfiltered
	}
	return ownTasks(actor)
}

func unfiltered(domain.Task) bool { return true }

func ownTasks(actor ActorContext) func(domain.Task) bool {
	id := actor.ID
	return func(t domain.Task) bool {
		return t.CreatorID == id || (t.AssigneeID != "" && t.AssigneeID == id)
	}
}

// departmentScope admits tasks created by or assigned to anyone in the
// head's department. With no resolvable department the scope collapses to
// the head's own tasks.
func (e *Engine) departmentScope(actor ActorContext) func(domain.Task) bool {
	dept := actor.PrimaryDepartmentID()
	if dept == "" || e.dir.UsersByDepartment == nil {
		return ownTasks(actor)
	}
	members := toSet(e.dir.UsersByDepartment(dept))
	members[actor.ID] = struct{}{}
	return func(t domain.Task) bool {
		if _, ok := members[t.CreatorID]; ok {
			return true
		}
		if t.AssigneeID == "" {
			return false
		}
		_, ok := members[t.AssigneeID]
		return ok
	}
}

// leadScope admits the lead's own tasks plus every task created by a buyer.
func (e *Engine) leadScope(actor ActorContext) func(domain.Task) bool {
	own := ownTasks(actor)
	if e.dir.UsersByRole == nil {
		return own
	}
	buyers := toSet(e.dir.UsersByRole(domain.RoleBuyer))
	return func(t domain.Task) bool {
		if own(t) {
			return true
		}
		_, ok := buyers[t.CreatorID]
		return ok
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// ResolveTaskDepartment resolves the department a new task belongs to:
// actor's primary department, then any department a role assignment is
// qualified with, then the board's default department, then any existing
// department. Reports false when the chain is exhausted; the engine never
// invents a department.
func (e *Engine) ResolveTaskDepartment(actor ActorContext, board domain.Board) (string, bool) {
	if dept := actor.PrimaryDepartmentID(); dept != "" {
		return dept, true
	}
	if board.DefaultDepartmentID != "" {
		return board.DefaultDepartmentID, true
	}
	if e.dir.AnyDepartmentID != nil {
		if dept, ok := e.dir.AnyDepartmentID(); ok && dept != "" {
			return dept, true
		}
	}
	return "", false
}
