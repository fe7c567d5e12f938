package access

import "taskdesk-api/domain"

// Operation identifies a write the mutation guard can authorize.
type Operation int

const (
	OpBoardCreate Operation = iota
	OpBoardUpdate
	OpBoardDelete
	OpColumnCreate
	OpColumnUpdate
	OpColumnDelete
	OpTaskCreate
	OpTaskMove
	OpTaskAssign
	OpVisibilityUpdate
	OpUserDelete
)

// Mutation describes a write to authorize. Board is required for every
// board, column and task operation; the remaining fields apply to specific
// operations only.
type Mutation struct {
	Op    Operation
	Board *domain.Board
	Task  *domain.Task

	// ColumnTaskCount is the number of tasks still in the column being
	// deleted.
	ColumnTaskCount int

	// Visibility is the policy being written by OpVisibilityUpdate.
	Visibility *domain.VisibilityPolicy

	// TargetUserID is the account being deleted by OpUserDelete.
	TargetUserID string
}

// AuthorizeMutation authorizes a write. A nil return grants the operation;
// otherwise the error is ErrForbidden (no authority) or ErrConflict (the
// write would violate a structural invariant). The two are never merged.
func (e *Engine) AuthorizeMutation(actor ActorContext, m Mutation) error {
	switch m.Op {
	case OpBoardCreate, OpBoardUpdate, OpBoardDelete, OpColumnCreate, OpColumnUpdate:
		return e.authorizeBoardAdmin(actor, m.Board)

	case OpColumnDelete:
		// A non-empty column is a structural conflict for every caller,
		// authorized or not.
		if m.ColumnTaskCount > 0 {
			return ErrConflict
		}
		return e.authorizeBoardAdmin(actor, m.Board)

	case OpTaskCreate:
		if m.Board == nil {
			return ErrForbidden
		}
		if e.Evaluate(actor, *m.Board) != Granted {
			return ErrForbidden
		}
		return nil

	case OpTaskMove:
		if m.Board == nil {
			return ErrForbidden
		}
		if m.Board.Type == domain.BoardExpenses {
			if !actor.Executive {
				return ErrForbidden
			}
			return nil
		}
		if e.Evaluate(actor, *m.Board) != Granted {
			return ErrForbidden
		}
		return nil

	case OpTaskAssign:
		if m.Board == nil {
			return ErrForbidden
		}
		if m.Board.Type == domain.BoardExpenses {
			if !actor.Executive {
				return ErrForbidden
			}
			return nil
		}
		if actor.Executive || m.Board.IsOwner(actor.ID) {
			return nil
		}
		if m.Task != nil && m.Task.CreatorID == actor.ID {
			return nil
		}
		return ErrForbidden

	case OpVisibilityUpdate:
		if !actor.Executive {
			return ErrForbidden
		}
		if pol := m.Visibility; pol != nil {
			if pol.Mode == domain.VisibilityUsers && len(pol.AllowedGroupIDs) > 0 {
				return ErrConflict
			}
			if pol.Mode == domain.VisibilityGroups && len(pol.AllowedUserIDs) > 0 {
				return ErrConflict
			}
		}
		return nil

	case OpUserDelete:
		// Nobody deletes their own account, executives included.
		if m.TargetUserID == actor.ID {
			return ErrForbidden
		}
		if !actor.Executive {
			return ErrForbidden
		}
		return nil
	}
	return ErrForbidden
}

// authorizeBoardAdmin grants board and column administration to executives
// and to that board's owners. Ownership grants rights only over the owned
// board.
func (e *Engine) authorizeBoardAdmin(actor ActorContext, board *domain.Board) error {
	if actor.Executive {
		return nil
	}
	if board != nil && board.IsOwner(actor.ID) {
		return nil
	}
	return ErrForbidden
}
