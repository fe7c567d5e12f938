package access

import "taskdesk-api/domain"

// Evaluate decides whether the actor may see the board. First match wins:
// executive tier, bypass table, modern visibility policy (which fully
// overrides the legacy fields when present, even if its own invariant is
// violated by stored data), then the legacy role/member/owner lists. A board
// with neither policy nor legacy fields is denied.
func (e *Engine) Evaluate(actor ActorContext, board domain.Board) Decision {
	if actor.Executive {
		return Granted
	}
	if keys := e.cfg.Bypass.boardKeys(actor); keys != nil {
		if _, ok := keys[board.Key]; ok {
			return Granted
		}
	}
	if board.Visibility != nil {
		return evaluatePolicy(actor, *board.Visibility)
	}
	return evaluateLegacy(actor, board)
}

func evaluatePolicy(actor ActorContext, pol domain.VisibilityPolicy) Decision {
	switch pol.Mode {
	case domain.VisibilityUsers:
		for _, id := range pol.AllowedUserIDs {
			if id == actor.ID {
				return Granted
			}
		}
	case domain.VisibilityGroups:
		allowed := make(map[string]struct{}, len(pol.AllowedGroupIDs))
		for _, id := range pol.AllowedGroupIDs {
			allowed[id] = struct{}{}
		}
		for _, id := range actor.GroupIDs {
			if _, ok := allowed[id]; ok {
				return Granted
			}
		}
	}
	return Denied
}

func evaluateLegacy(actor ActorContext, board domain.Board) Decision {
	for _, tag := range board.AllowedRoles {
		if actor.Roles.Has(domain.Role(tag)) {
			return Granted
		}
	}
	for _, id := range board.Members {
		if id == actor.ID {
			return Granted
		}
	}
	if board.IsOwner(actor.ID) {
		return Granted
	}
	return Denied
}

// BoardListFilter builds a predicate over boards that admits exactly the set
// Evaluate grants. Bulk listing and single-item lookup must never disagree,
// so the predicate is assembled from the same clauses Evaluate checks, with
// the bypass boards injected as an explicit key-membership clause.
func (e *Engine) BoardListFilter(actor ActorContext) func(domain.Board) bool {
	if actor.Executive {
		return func(domain.Board) bool { return true }
	}
	bypass := e.cfg.Bypass.boardKeys(actor)
	return func(board domain.Board) bool {
		if bypass != nil {
			if _, ok := bypass[board.Key]; ok {
				return true
			}
		}
		if board.Visibility != nil {
			return evaluatePolicy(actor, *board.Visibility) == Granted
		}
		return evaluateLegacy(actor, board) == Granted
	}
}
