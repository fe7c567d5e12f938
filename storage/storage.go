package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"taskdesk-api/domain"
)

// Partition keys. Entities of one kind share a partition; query columns
// (board key, column id, assignee) are duplicated out of the JSON payload
// into entity properties so list filters stay server-side.
const (
	userPartition       = "user"
	boardPartition      = "board"
	taskPartition       = "task"
	departmentPartition = "department"
	groupPartition      = "group"
)

// Config names the tables and the routing queue a Storage works against.
type Config struct {
	UsersTable       string
	BoardsTable      string
	ColumnsTable     string
	TasksTable       string
	DepartmentsTable string
	GroupsTable      string
	RoutingQueue     string
}

// Storage provides access to the underlying persistence mechanisms.
type Storage struct {
	users        *aztables.Client
	boards       *aztables.Client
	columns      *aztables.Client
	tasks        *aztables.Client
	departments  *aztables.Client
	groups       *aztables.Client
	routingQueue *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr string, cfg Config) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	rq, err := azqueue.NewQueueClientFromConnectionString(connStr, cfg.RoutingQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		users:        svc.NewClient(cfg.UsersTable),
		boards:       svc.NewClient(cfg.BoardsTable),
		columns:      svc.NewClient(cfg.ColumnsTable),
		tasks:        svc.NewClient(cfg.TasksTable),
		departments:  svc.NewClient(cfg.DepartmentsTable),
		groups:       svc.NewClient(cfg.GroupsTable),
		routingQueue: rq,
	}, nil
}

// notFoundError satisfies the api.NotFoundError interface.
type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string { return e.kind + " " + e.id + " not found" }
func (e notFoundError) NotFound()     {}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// quote escapes a value for use inside an OData filter string literal.
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

type userEntity struct {
	aztables.Entity
	Data         string `json:"Data"`
	DepartmentID string `json:"DepartmentID"`
}

type boardEntity struct {
	aztables.Entity
	Data string `json:"Data"`
	Key  string `json:"Key"`
}

type columnEntity struct {
	aztables.Entity
	Data string `json:"Data"`
	Key  string `json:"Key"`
}

type taskEntity struct {
	aztables.Entity
	Data       string `json:"Data"`
	BoardKey   string `json:"BoardKey"`
	ColumnID   string `json:"ColumnID"`
	AssigneeID string `json:"AssigneeID"`
}

type groupEntity struct {
	aztables.Entity
	Data string `json:"Data"`
}

type departmentEntity struct {
	aztables.Entity
	Data string `json:"Data"`
}

func decodePayload[T any](raw []byte) (T, error) {
	var ent struct {
		Data string `json:"Data"`
	}
	var out T
	if err := json.Unmarshal(raw, &ent); err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(ent.Data), &out); err != nil {
		return out, err
	}
	return out, nil
}

func encodeData(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Storage) upsert(ctx context.Context, client *aztables.Client, entity any) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return err
	}
	_, err = client.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (s *Storage) getPayload(ctx context.Context, client *aztables.Client, pk, rk, kind string, out any) error {
	resp, err := client.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return notFoundError{kind: kind, id: rk}
		}
		return err
	}
	var ent struct {
		Data string `json:"Data"`
	}
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return err
	}
	return json.Unmarshal([]byte(ent.Data), out)
}

func listPayloads[T any](ctx context.Context, client *aztables.Client, filter string) ([]T, error) {
	opts := &aztables.ListEntitiesOptions{}
	if filter != "" {
		opts.Filter = &filter
	}
	pager := client.NewListEntitiesPager(opts)
	out := []T{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			item, err := decodePayload[T](raw)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
	}
	return out, nil
}

// User returns the user with the given id.
func (s *Storage) User(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.getPayload(ctx, s.users, userPartition, id, "user", &u)
	return u, err
}

// Users returns all users.
func (s *Storage) Users(ctx context.Context) ([]domain.User, error) {
	return listPayloads[domain.User](ctx, s.users, "PartitionKey eq "+quote(userPartition))
}

// UsersByDepartment returns users whose primary department matches.
func (s *Storage) UsersByDepartment(ctx context.Context, departmentID string) ([]domain.User, error) {
	filter := "PartitionKey eq " + quote(userPartition) + " and DepartmentID eq " + quote(departmentID)
	return listPayloads[domain.User](ctx, s.users, filter)
}

// UsersByRole returns users holding the given role. Role assignments live
// inside the JSON payload, so the scan filters client-side.
func (s *Storage) UsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}
	matched := users[:0]
	for _, u := range users {
		for _, ref := range u.Roles {
			if ref.Role == role {
				matched = append(matched, u)
				break
			}
		}
	}
	return matched, nil
}

// UpsertUser stores a user snapshot.
func (s *Storage) UpsertUser(ctx context.Context, u domain.User) error {
	data, err := encodeData(u)
	if err != nil {
		return err
	}
	return s.upsert(ctx, s.users, userEntity{
		Entity:       aztables.Entity{PartitionKey: userPartition, RowKey: u.ID},
		Data:         data,
		DepartmentID: u.PrimaryDepartmentID,
	})
}

// DeleteUser removes a user.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.users.DeleteEntity(ctx, userPartition, id, nil); err != nil {
		if isAzureNotFound(err) {
			return notFoundError{kind: "user", id: id}
		}
		return err
	}
	return nil
}

// Board returns the board with the given id.
func (s *Storage) Board(ctx context.Context, id string) (domain.Board, error) {
	var b domain.Board
	err := s.getPayload(ctx, s.boards, boardPartition, id, "board", &b)
	return b, err
}

// BoardByKey returns the board with the given unique key.
func (s *Storage) BoardByKey(ctx context.Context, key string) (domain.Board, error) {
	filter := "PartitionKey eq " + quote(boardPartition) + " and Key eq " + quote(key)
	boards, err := listPayloads[domain.Board](ctx, s.boards, filter)
	if err != nil {
		return domain.Board{}, err
	}
	if len(boards) == 0 {
		return domain.Board{}, notFoundError{kind: "board", id: key}
	}
	return boards[0], nil
}

// Boards returns all boards.
func (s *Storage) Boards(ctx context.Context) ([]domain.Board, error) {
	return listPayloads[domain.Board](ctx, s.boards, "PartitionKey eq "+quote(boardPartition))
}

// InsertBoard stores a new board.
func (s *Storage) InsertBoard(ctx context.Context, b domain.Board) error {
	return s.putBoard(ctx, b)
}

// UpdateBoard replaces a board snapshot.
func (s *Storage) UpdateBoard(ctx context.Context, b domain.Board) error {
	return s.putBoard(ctx, b)
}

func (s *Storage) putBoard(ctx context.Context, b domain.Board) error {
	data, err := encodeData(b)
	if err != nil {
		return err
	}
	return s.upsert(ctx, s.boards, boardEntity{
		Entity: aztables.Entity{PartitionKey: boardPartition, RowKey: b.ID},
		Data:   data,
		Key:    b.Key,
	})
}

// DeleteBoard removes a board together with its columns and tasks.
func (s *Storage) DeleteBoard(ctx context.Context, id string) error {
	board, err := s.Board(ctx, id)
	if err != nil {
		return err
	}
	cols, err := s.Columns(ctx, id)
	if err != nil {
		return err
	}
	for _, col := range cols {
		if _, err := s.columns.DeleteEntity(ctx, col.BoardID, col.ID, nil); err != nil && !isAzureNotFound(err) {
			return err
		}
	}
	tasks, err := s.Tasks(ctx, board.Key)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if _, err := s.tasks.DeleteEntity(ctx, taskPartition, t.ID, nil); err != nil && !isAzureNotFound(err) {
			return err
		}
	}
	if _, err := s.boards.DeleteEntity(ctx, boardPartition, id, nil); err != nil && !isAzureNotFound(err) {
		return err
	}
	return nil
}

// Columns returns the columns of a board, ordered.
func (s *Storage) Columns(ctx context.Context, boardID string) ([]domain.Column, error) {
	cols, err := listPayloads[domain.Column](ctx, s.columns, "PartitionKey eq "+quote(boardID))
	if err != nil {
		return nil, err
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })
	return cols, nil
}

// Column returns a column by id. Columns are partitioned by board, so the
// lookup filters on RowKey across partitions.
func (s *Storage) Column(ctx context.Context, id string) (domain.Column, error) {
	cols, err := listPayloads[domain.Column](ctx, s.columns, "RowKey eq "+quote(id))
	if err != nil {
		return domain.Column{}, err
	}
	if len(cols) == 0 {
		return domain.Column{}, notFoundError{kind: "column", id: id}
	}
	return cols[0], nil
}

// ColumnByKey returns the column with the given key on a board.
func (s *Storage) ColumnByKey(ctx context.Context, boardID, key string) (domain.Column, error) {
	filter := "PartitionKey eq " + quote(boardID) + " and Key eq " + quote(key)
	cols, err := listPayloads[domain.Column](ctx, s.columns, filter)
	if err != nil {
		return domain.Column{}, err
	}
	if len(cols) == 0 {
		return domain.Column{}, notFoundError{kind: "column", id: key}
	}
	return cols[0], nil
}

// InsertColumn stores a new column.
func (s *Storage) InsertColumn(ctx context.Context, col domain.Column) error {
	return s.putColumn(ctx, col)
}

// UpdateColumn replaces a column snapshot.
func (s *Storage) UpdateColumn(ctx context.Context, col domain.Column) error {
	return s.putColumn(ctx, col)
}

func (s *Storage) putColumn(ctx context.Context, col domain.Column) error {
	data, err := encodeData(col)
	if err != nil {
		return err
	}
	return s.upsert(ctx, s.columns, columnEntity{
		Entity: aztables.Entity{PartitionKey: col.BoardID, RowKey: col.ID},
		Data:   data,
		Key:    col.Key,
	})
}

// DeleteColumn removes a column.
func (s *Storage) DeleteColumn(ctx context.Context, id string) error {
	col, err := s.Column(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.columns.DeleteEntity(ctx, col.BoardID, col.ID, nil); err != nil && !isAzureNotFound(err) {
		return err
	}
	return nil
}

// CountTasksInColumn counts the tasks still sitting in a column.
func (s *Storage) CountTasksInColumn(ctx context.Context, columnID string) (int, error) {
	filter := "PartitionKey eq " + quote(taskPartition) + " and ColumnID eq " + quote(columnID)
	tasks, err := listPayloads[domain.Task](ctx, s.tasks, filter)
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}

// Tasks returns all tasks on a board.
func (s *Storage) Tasks(ctx context.Context, boardKey string) ([]domain.Task, error) {
	filter := "PartitionKey eq " + quote(taskPartition) + " and BoardKey eq " + quote(boardKey)
	return listPayloads[domain.Task](ctx, s.tasks, filter)
}

// TasksByAssignee returns all tasks assigned to a user, across boards.
func (s *Storage) TasksByAssignee(ctx context.Context, userID string) ([]domain.Task, error) {
	filter := "PartitionKey eq " + quote(taskPartition) + " and AssigneeID eq " + quote(userID)
	return listPayloads[domain.Task](ctx, s.tasks, filter)
}

// Task returns a task by id.
func (s *Storage) Task(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	err := s.getPayload(ctx, s.tasks, taskPartition, id, "task", &t)
	return t, err
}

// InsertTask stores a new task.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	return s.putTask(ctx, t)
}

// UpdateTask replaces a task snapshot. A cross-board relocation (board key,
// column and routing stamp together) lands in this single entity write.
func (s *Storage) UpdateTask(ctx context.Context, t domain.Task) error {
	return s.putTask(ctx, t)
}

func (s *Storage) putTask(ctx context.Context, t domain.Task) error {
	data, err := encodeData(t)
	if err != nil {
		return err
	}
	return s.upsert(ctx, s.tasks, taskEntity{
		Entity:     aztables.Entity{PartitionKey: taskPartition, RowKey: t.ID},
		Data:       data,
		BoardKey:   t.BoardKey,
		ColumnID:   t.ColumnID,
		AssigneeID: t.AssigneeID,
	})
}

// Group returns a group by id.
func (s *Storage) Group(ctx context.Context, id string) (domain.Group, error) {
	var g domain.Group
	err := s.getPayload(ctx, s.groups, groupPartition, id, "group", &g)
	return g, err
}

// UpdateGroup replaces a group snapshot.
func (s *Storage) UpdateGroup(ctx context.Context, g domain.Group) error {
	data, err := encodeData(g)
	if err != nil {
		return err
	}
	return s.upsert(ctx, s.groups, groupEntity{
		Entity: aztables.Entity{PartitionKey: groupPartition, RowKey: g.ID},
		Data:   data,
	})
}

// UpsertDepartment stores a department snapshot.
func (s *Storage) UpsertDepartment(ctx context.Context, d domain.Department) error {
	data, err := encodeData(d)
	if err != nil {
		return err
	}
	return s.upsert(ctx, s.departments, departmentEntity{
		Entity: aztables.Entity{PartitionKey: departmentPartition, RowKey: d.ID},
		Data:   data,
	})
}

// AnyDepartmentID returns an arbitrary existing department id, or "" when
// none exist.
func (s *Storage) AnyDepartmentID(ctx context.Context) (string, error) {
	depts, err := listPayloads[domain.Department](ctx, s.departments, "PartitionKey eq "+quote(departmentPartition))
	if err != nil {
		return "", err
	}
	if len(depts) == 0 {
		return "", nil
	}
	return depts[0].ID, nil
}

// PublishRoutingEvent sends a routing event envelope to the routing queue.
func (s *Storage) PublishRoutingEvent(ctx context.Context, ev domain.RoutingEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.routingQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}
