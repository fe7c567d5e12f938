package api

import (
	"context"

	"taskdesk-api/domain"
)

// Storage abstracts persistence for handlers. Implementations must return
// NotFoundError-compatible errors for absent entities so handlers can keep
// 404 distinct from 403.
type Storage interface {
	User(ctx context.Context, id string) (domain.User, error)
	Users(ctx context.Context) ([]domain.User, error)
	UsersByDepartment(ctx context.Context, departmentID string) ([]domain.User, error)
	UsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	DeleteUser(ctx context.Context, id string) error

	Board(ctx context.Context, id string) (domain.Board, error)
	BoardByKey(ctx context.Context, key string) (domain.Board, error)
	Boards(ctx context.Context) ([]domain.Board, error)
	InsertBoard(ctx context.Context, board domain.Board) error
	UpdateBoard(ctx context.Context, board domain.Board) error
	DeleteBoard(ctx context.Context, id string) error

	Columns(ctx context.Context, boardID string) ([]domain.Column, error)
	Column(ctx context.Context, id string) (domain.Column, error)
	ColumnByKey(ctx context.Context, boardID, key string) (domain.Column, error)
	InsertColumn(ctx context.Context, col domain.Column) error
	UpdateColumn(ctx context.Context, col domain.Column) error
	DeleteColumn(ctx context.Context, id string) error
	CountTasksInColumn(ctx context.Context, columnID string) (int, error)

	Tasks(ctx context.Context, boardKey string) ([]domain.Task, error)
	TasksByAssignee(ctx context.Context, userID string) ([]domain.Task, error)
	Task(ctx context.Context, id string) (domain.Task, error)
	InsertTask(ctx context.Context, task domain.Task) error
	UpdateTask(ctx context.Context, task domain.Task) error

	Group(ctx context.Context, id string) (domain.Group, error)
	UpdateGroup(ctx context.Context, group domain.Group) error

	AnyDepartmentID(ctx context.Context) (string, error)

	PublishRoutingEvent(ctx context.Context, ev domain.RoutingEvent) error
}

// NotFoundError marks storage errors for entities that do not exist.
type NotFoundError interface {
	error
	NotFound()
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
