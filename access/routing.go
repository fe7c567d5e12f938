package access

import (
	"time"

	"taskdesk-api/domain"
)

// RoutingOutcome is the result of resolving a column move against the
// routing table. When Relocated is false the move is an ordinary
// same-board column change and none of the other fields are set.
type RoutingOutcome struct {
	Relocated bool
	BoardKey  string
	ColumnID  string
	Stamp     *domain.RoutedFrom
}

// ResolveRouting computes the relocation, if any, for a task moved into the
// target column. Moving a task into a routing column relocates it to the
// destination board's intake column and stamps its origin; a task already on
// the destination board is moved like any other column change, with no
// second stamp. An unresolvable destination fails closed with *ConfigError
// and the task stays where it is.
func (e *Engine) ResolveRouting(actor ActorContext, task domain.Task, target domain.Column, now time.Time) (RoutingOutcome, error) {
	dest, ok := e.cfg.Routing[target.Key]
	if !ok {
		return RoutingOutcome{}, nil
	}
	if task.BoardKey == dest.BoardKey {
		return RoutingOutcome{}, nil
	}
	if e.dir.IntakeColumn == nil {
		return RoutingOutcome{}, &ConfigError{RoutingKey: target.Key, Reason: "no intake column lookup configured"}
	}
	intake, ok := e.dir.IntakeColumn(dest.BoardKey, dest.IntakeColumnKey)
	if !ok {
		return RoutingOutcome{}, &ConfigError{RoutingKey: target.Key, Reason: "destination board " + dest.BoardKey + " has no " + dest.IntakeColumnKey + " column"}
	}
	return RoutingOutcome{
		Relocated: true,
		BoardKey:  dest.BoardKey,
		ColumnID:  intake.ID,
		Stamp: &domain.RoutedFrom{
			BoardKey:  task.BoardKey,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			RoutedAt:  now,
		},
	}, nil
}
