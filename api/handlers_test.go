package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskdesk-api/access"
	"taskdesk-api/domain"
)

type mockNotFound struct{ kind string }

func (e mockNotFound) Error() string { return e.kind + " not found" }
func (e mockNotFound) NotFound()     {}

type mockStore struct {
	users       map[string]domain.User
	boards      []domain.Board
	columns     []domain.Column
	tasks       map[string]domain.Task
	departments []string
	groups      map[string]domain.Group

	insertedTasks  []domain.Task
	updatedTasks   []domain.Task
	updatedBoards  []domain.Board
	deletedUsers   []string
	deletedColumns []string
	events         []domain.RoutingEvent
}

func (m *mockStore) User(ctx context.Context, id string) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, mockNotFound{kind: "user"}
	}
	return u, nil
}

func (m *mockStore) Users(ctx context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockStore) UsersByDepartment(ctx context.Context, departmentID string) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.users {
		if u.PrimaryDepartmentID == departmentID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockStore) UsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.users {
		for _, ref := range u.Roles {
			if ref.Role == role {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (m *mockStore) DeleteUser(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return mockNotFound{kind: "user"}
	}
	delete(m.users, id)
	m.deletedUsers = append(m.deletedUsers, id)
	return nil
}

func (m *mockStore) Board(ctx context.Context, id string) (domain.Board, error) {
	for _, b := range m.boards {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Board{}, mockNotFound{kind: "board"}
}

func (m *mockStore) BoardByKey(ctx context.Context, key string) (domain.Board, error) {
	for _, b := range m.boards {
		if b.Key == key {
			return b, nil
		}
	}
	return domain.Board{}, mockNotFound{kind: "board"}
}

func (m *mockStore) Boards(ctx context.Context) ([]domain.Board, error) {
	return m.boards, nil
}

func (m *mockStore) InsertBoard(ctx context.Context, board domain.Board) error {
	m.boards = append(m.boards, board)
	return nil
}

func (m *mockStore) UpdateBoard(ctx context.Context, board domain.Board) error {
	for i, b := range m.boards {
		if b.ID == board.ID {
			m.boards[i] = board
		}
	}
	m.updatedBoards = append(m.updatedBoards, board)
	return nil
}

func (m *mockStore) DeleteBoard(ctx context.Context, id string) error {
	kept := m.boards[:0]
	for _, b := range m.boards {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	m.boards = kept
	return nil
}

func (m *mockStore) Columns(ctx context.Context, boardID string) ([]domain.Column, error) {
	var out []domain.Column
	for _, col := range m.columns {
		if col.BoardID == boardID {
			out = append(out, col)
		}
	}
	return out, nil
}

func (m *mockStore) Column(ctx context.Context, id string) (domain.Column, error) {
	for _, col := range m.columns {
		if col.ID == id {
			return col, nil
		}
	}
	return domain.Column{}, mockNotFound{kind: "column"}
}

func (m *mockStore) ColumnByKey(ctx context.Context, boardID, key string) (domain.Column, error) {
	for _, col := range m.columns {
		if col.BoardID == boardID && col.Key == key {
			return col, nil
		}
	}
	return domain.Column{}, mockNotFound{kind: "column"}
}

func (m *mockStore) InsertColumn(ctx context.Context, col domain.Column) error {
	m.columns = append(m.columns, col)
	return nil
}

func (m *mockStore) UpdateColumn(ctx context.Context, col domain.Column) error {
	for i, existing := range m.columns {
		if existing.ID == col.ID {
			m.columns[i] = col
		}
	}
	return nil
}

func (m *mockStore) DeleteColumn(ctx context.Context, id string) error {
	kept := m.columns[:0]
	for _, col := range m.columns {
		if col.ID != id {
			kept = append(kept, col)
		}
	}
	m.columns = kept
	m.deletedColumns = append(m.deletedColumns, id)
	return nil
}

func (m *mockStore) CountTasksInColumn(ctx context.Context, columnID string) (int, error) {
	count := 0
	for _, t := range m.tasks {
		if t.ColumnID == columnID {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) Tasks(ctx context.Context, boardKey string) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range m.tasks {
		if t.BoardKey == boardKey {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) TasksByAssignee(ctx context.Context, userID string) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range m.tasks {
		if t.AssigneeID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) Task(ctx context.Context, id string) (domain.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, mockNotFound{kind: "task"}
	}
	return t, nil
}

func (m *mockStore) InsertTask(ctx context.Context, task domain.Task) error {
	if m.tasks == nil {
		m.tasks = map[string]domain.Task{}
	}
	m.tasks[task.ID] = task
	m.insertedTasks = append(m.insertedTasks, task)
	return nil
}

func (m *mockStore) UpdateTask(ctx context.Context, task domain.Task) error {
	if m.tasks == nil {
		m.tasks = map[string]domain.Task{}
	}
	m.tasks[task.ID] = task
	m.updatedTasks = append(m.updatedTasks, task)
	return nil
}

func (m *mockStore) Group(ctx context.Context, id string) (domain.Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return domain.Group{}, mockNotFound{kind: "group"}
	}
	return g, nil
}

func (m *mockStore) UpdateGroup(ctx context.Context, g domain.Group) error {
	if m.groups == nil {
		m.groups = map[string]domain.Group{}
	}
	m.groups[g.ID] = g
	return nil
}

func (m *mockStore) AnyDepartmentID(ctx context.Context) (string, error) {
	if len(m.departments) == 0 {
		return "", nil
	}
	return m.departments[0], nil
}

func (m *mockStore) PublishRoutingEvent(ctx context.Context, ev domain.RoutingEvent) error {
	m.events = append(m.events, ev)
	return nil
}

type mockAuth struct{ id string }

func (a mockAuth) UserIDFromAuthHeader(string) (string, error) {
	if a.id == "" {
		return "", errMissingAuthorization
	}
	return a.id, nil
}

func newTestHandlers(store Storage, userID string) *handlers {
	return &handlers{store: store, auth: mockAuth{id: userID}, cfg: access.DefaultConfig(), log: log.New()}
}

func invoke(e *echo.Echo, c echo.Context, fn echo.HandlerFunc) {
	if err := fn(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
}

func execUser(id string) domain.User {
	return domain.User{ID: id, FullName: id, Roles: []domain.RoleAssignment{{Role: domain.RoleCEO}}}
}

func buyerUser(id, dept string) domain.User {
	return domain.User{ID: id, FullName: id, PrimaryDepartmentID: dept, Roles: []domain.RoleAssignment{{Role: domain.RoleBuyer}}}
}

func headUser(id, dept string) domain.User {
	return domain.User{ID: id, FullName: id, PrimaryDepartmentID: dept, Roles: []domain.RoleAssignment{{Role: domain.RoleHead}}}
}

func jsonRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestGetBoardsFiltersByAccess(t *testing.T) {
	store := &mockStore{
		users: map[string]domain.User{
			"ceo":   execUser("ceo"),
			"buyer": buyerUser("buyer", "dept-gambling"),
		},
		boards: []domain.Board{
			{ID: "b1", Key: "TECH"},
			{ID: "b2", Key: "GAM_DES"},
			{ID: "b3", Key: "SWE_DES"},
			{ID: "b4", Key: "HR"},
		},
	}

	cases := []struct {
		userID string
		want   map[string]bool
	}{
		{"ceo", map[string]bool{"TECH": true, "GAM_DES": true, "SWE_DES": true, "HR": true}},
		{"buyer", map[string]bool{"TECH": true, "GAM_DES": true}},
	}
	for _, tc := range cases {
		t.Run(tc.userID, func(t *testing.T) {
			e := echo.New()
			h := newTestHandlers(store, tc.userID)
			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodGet, "/api/boards", ""), rec)

			invoke(e, c, h.getBoards)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200 got %d", rec.Code)
			}
			var boards []domain.Board
			if err := sonic.Unmarshal(rec.Body.Bytes(), &boards); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if len(boards) != len(tc.want) {
				t.Fatalf("expected %d boards, got %d: %#v", len(tc.want), len(boards), boards)
			}
			for _, b := range boards {
				if !tc.want[b.Key] {
					t.Fatalf("board %s should not be listed for %s", b.Key, tc.userID)
				}
			}
		})
	}
}

func TestGetBoardByKeyNotFoundVsForbidden(t *testing.T) {
	store := &mockStore{
		users: map[string]domain.User{
			"buyer": buyerUser("buyer", "dept-gambling"),
		},
		boards: []domain.Board{{ID: "b4", Key: "HR"}},
	}
	h := newTestHandlers(store, "buyer")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/api/boards/by-key/NOPE", ""), rec)
	c.SetParamNames("key")
	c.SetParamValues("NOPE")
	invoke(e, c, h.getBoardByKey)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing board, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodGet, "/api/boards/by-key/HR", ""), rec)
	c.SetParamNames("key")
	c.SetParamValues("HR")
	invoke(e, c, h.getBoardByKey)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for inaccessible board, got %d", rec.Code)
	}
}

func TestGetBoardTasksHeadSeesDepartment(t *testing.T) {
	store := &mockStore{
		users: map[string]domain.User{
			"head":     headUser("head", "dept-tech"),
			"dev":      {ID: "dev", PrimaryDepartmentID: "dept-tech", Roles: []domain.RoleAssignment{{Role: domain.RoleTech}}},
			"stranger": {ID: "stranger", PrimaryDepartmentID: "dept-office"},
		},
		boards: []domain.Board{{ID: "b1", Key: "DEPT", AllowedRoles: []string{"head"}}},
		tasks: map[string]domain.Task{
			"t1": {ID: "t1", BoardKey: "DEPT", CreatorID: "dev"},
			"t2": {ID: "t2", BoardKey: "DEPT", CreatorID: "stranger", AssigneeID: "stranger"},
			"t3": {ID: "t3", BoardKey: "DEPT", CreatorID: "stranger", AssigneeID: "dev"},
		},
	}
	h := newTestHandlers(store, "head")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/api/boards/DEPT/tasks", ""), rec)
	c.SetParamNames("key")
	c.SetParamValues("DEPT")
	invoke(e, c, h.getBoardTasks)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	seen := map[string]bool{}
	for _, task := range tasks {
		seen[task.ID] = true
	}
	if len(tasks) != 2 || !seen["t1"] || !seen["t3"] {
		t.Fatalf("unexpected visible tasks: %#v", tasks)
	}
}

func TestCreateTaskResolvesDepartmentAndDefaults(t *testing.T) {
	store := &mockStore{
		users: map[string]domain.User{
			"buyer": buyerUser("buyer", "dept-gambling"),
		},
		boards: []domain.Board{{ID: "b1", Key: "TECH"}},
		columns: []domain.Column{
			{ID: "c2", BoardID: "b1", Key: "DOING", Order: 1},
			{ID: "c1", BoardID: "b1", Key: "TODO", Order: 0},
		},
	}
	h := newTestHandlers(store, "buyer")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/tasks", `{"board_key":"TECH","title":"fix login"}`), rec)
	invoke(e, c, h.createTask)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.insertedTasks) != 1 {
		t.Fatalf("expected one inserted task, got %d", len(store.insertedTasks))
	}
	task := store.insertedTasks[0]
	if task.DepartmentID != "dept-gambling" {
		t.Fatalf("unexpected department: %q", task.DepartmentID)
	}
	if task.ColumnID != "c1" {
		t.Fatalf("expected first column by order, got %q", task.ColumnID)
	}
	if task.Priority != domain.PriorityMedium {
		t.Fatalf("expected default priority, got %q", task.Priority)
	}
	if task.CreatorID != "buyer" {
		t.Fatalf("unexpected creator: %q", task.CreatorID)
	}
}

func routingFixture() *mockStore {
	return &mockStore{
		users: map[string]domain.User{
			"buyer": buyerUser("buyer", "dept-gambling"),
		},
		boards: []domain.Board{
			{ID: "b-src", Key: "BUYERS", AllowedRoles: []string{"buyer"}},
			{ID: "b-tech", Key: "TECH"},
		},
		columns: []domain.Column{
			{ID: "c-backlog", BoardID: "b-src", Key: "BACKLOG"},
			{ID: "c-route", BoardID: "b-src", Key: "TO_TECH"},
			{ID: "c-todo", BoardID: "b-tech", Key: "TODO"},
		},
		tasks: map[string]domain.Task{
			"t1": {ID: "t1", BoardKey: "BUYERS", ColumnID: "c-backlog", CreatorID: "buyer"},
		},
	}
}

func TestUpdateTaskRoutesAcrossBoards(t *testing.T) {
	store := routingFixture()
	h := newTestHandlers(store, "buyer")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPatch, "/api/tasks/t1", `{"column_id":"c-route"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("t1")
	invoke(e, c, h.updateTask)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	task := store.tasks["t1"]
	if task.BoardKey != "TECH" {
		t.Fatalf("expected task relocated to TECH, got %q", task.BoardKey)
	}
	if task.ColumnID != "c-todo" {
		t.Fatalf("expected intake column, got %q", task.ColumnID)
	}
	if task.RoutedFrom == nil || task.RoutedFrom.BoardKey != "BUYERS" || task.RoutedFrom.ActorID != "buyer" {
		t.Fatalf("unexpected routing stamp: %#v", task.RoutedFrom)
	}
	if len(store.updatedTasks) != 1 {
		t.Fatalf("relocation must be a single write, got %d", len(store.updatedTasks))
	}
	if len(store.events) != 1 {
		t.Fatalf("expected one routing event, got %d", len(store.events))
	}
	ev := store.events[0]
	if ev.TaskID != "t1" || ev.FromBoard != "BUYERS" || ev.ToBoard != "TECH" || ev.ActorID != "buyer" {
		t.Fatalf("unexpected routing event: %#v", ev)
	}
}

func TestUpdateTaskRoutingMisconfigured(t *testing.T) {
	store := routingFixture()
	// Destination board exists but its intake column does not.
	kept := store.columns[:0]
	for _, col := range store.columns {
		if col.ID != "c-todo" {
			kept = append(kept, col)
		}
	}
	store.columns = kept
	h := newTestHandlers(store, "buyer")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPatch, "/api/tasks/t1", `{"column_id":"c-route"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("t1")
	invoke(e, c, h.updateTask)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
	if len(store.updatedTasks) != 0 {
		t.Fatalf("misconfigured routing must not write, got %d writes", len(store.updatedTasks))
	}
	if len(store.events) != 0 {
		t.Fatalf("misconfigured routing must not publish, got %d events", len(store.events))
	}
	if got := store.tasks["t1"].BoardKey; got != "BUYERS" {
		t.Fatalf("task must stay on source board, got %q", got)
	}
}

func TestDeleteColumnNonEmptyConflict(t *testing.T) {
	store := &mockStore{
		users: map[string]domain.User{
			"owner": {ID: "owner", Roles: []domain.RoleAssignment{{Role: domain.RoleLead}}},
		},
		boards:  []domain.Board{{ID: "b1", Key: "TEAM", Owners: []string{"owner"}}},
		columns: []domain.Column{{ID: "c1", BoardID: "b1", Key: "TODO"}},
		tasks: map[string]domain.Task{
			"t1": {ID: "t1", BoardKey: "TEAM", ColumnID: "c1", CreatorID: "owner"},
		},
	}
	h := newTestHandlers(store, "owner")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodDelete, "/api/columns/c1", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues("c1")
	invoke(e, c, h.deleteColumn)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for non-empty column, got %d", rec.Code)
	}

	delete(store.tasks, "t1")
	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodDelete, "/api/columns/c1", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues("c1")
	invoke(e, c, h.deleteColumn)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty column, got %d", rec.Code)
	}
	if len(store.deletedColumns) != 1 || store.deletedColumns[0] != "c1" {
		t.Fatalf("unexpected deletions: %#v", store.deletedColumns)
	}
}

func TestDeleteUser(t *testing.T) {
	newStore := func() *mockStore {
		return &mockStore{
			users: map[string]domain.User{
				"ceo":   execUser("ceo"),
				"buyer": buyerUser("buyer", "dept-gambling"),
			},
		}
	}

	t.Run("self delete forbidden even for executives", func(t *testing.T) {
		store := newStore()
		h := newTestHandlers(store, "ceo")
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodDelete, "/api/users/ceo", ""), rec)
		c.SetParamNames("id")
		c.SetParamValues("ceo")
		invoke(e, c, h.deleteUser)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("non executive forbidden", func(t *testing.T) {
		store := newStore()
		h := newTestHandlers(store, "buyer")
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodDelete, "/api/users/ceo", ""), rec)
		c.SetParamNames("id")
		c.SetParamValues("ceo")
		invoke(e, c, h.deleteUser)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("executive deletes another account", func(t *testing.T) {
		store := newStore()
		h := newTestHandlers(store, "ceo")
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodDelete, "/api/users/buyer", ""), rec)
		c.SetParamNames("id")
		c.SetParamValues("buyer")
		invoke(e, c, h.deleteUser)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(store.deletedUsers) != 1 || store.deletedUsers[0] != "buyer" {
			t.Fatalf("unexpected deletions: %#v", store.deletedUsers)
		}
	})

	t.Run("missing target is 404", func(t *testing.T) {
		store := newStore()
		h := newTestHandlers(store, "ceo")
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodDelete, "/api/users/ghost", ""), rec)
		c.SetParamNames("id")
		c.SetParamValues("ghost")
		invoke(e, c, h.deleteUser)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestUpdateBoardVisibility(t *testing.T) {
	newStore := func() *mockStore {
		return &mockStore{
			users: map[string]domain.User{
				"ceo":   execUser("ceo"),
				"buyer": buyerUser("buyer", "dept-gambling"),
			},
			boards: []domain.Board{{ID: "b1", Key: "TEAM"}},
		}
	}

	t.Run("non executive forbidden", func(t *testing.T) {
		store := newStore()
		h := newTestHandlers(store, "buyer")
		e := echo.New()
		rec := httptest.NewRecorder()
		body := `{"visibility":{"mode":"users","allowed_user_ids":["buyer"],"allowed_group_ids":[],"permissions":{}}}`
		c := e.NewContext(jsonRequest(http.MethodPatch, "/api/boards/b1/visibility", body), rec)
		c.SetParamNames("id")
		c.SetParamValues("b1")
		invoke(e, c, h.updateBoardVisibility)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("mode and allow-list mismatch is a conflict", func(t *testing.T) {
		store := newStore()
		h := newTestHandlers(store, "ceo")
		e := echo.New()
		rec := httptest.NewRecorder()
		body := `{"visibility":{"mode":"users","allowed_user_ids":[],"allowed_group_ids":["g1"],"permissions":{}}}`
		c := e.NewContext(jsonRequest(http.MethodPatch, "/api/boards/b1/visibility", body), rec)
		c.SetParamNames("id")
		c.SetParamValues("b1")
		invoke(e, c, h.updateBoardVisibility)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("executive sets policy", func(t *testing.T) {
		store := newStore()
		h := newTestHandlers(store, "ceo")
		e := echo.New()
		rec := httptest.NewRecorder()
		body := `{"visibility":{"mode":"users","allowed_user_ids":["buyer"],"allowed_group_ids":[],"permissions":{"read":true}}}`
		c := e.NewContext(jsonRequest(http.MethodPatch, "/api/boards/b1/visibility", body), rec)
		c.SetParamNames("id")
		c.SetParamValues("b1")
		invoke(e, c, h.updateBoardVisibility)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(store.updatedBoards) != 1 {
			t.Fatalf("expected one board update, got %d", len(store.updatedBoards))
		}
		pol := store.updatedBoards[0].Visibility
		if pol == nil || pol.Mode != domain.VisibilityUsers || len(pol.AllowedUserIDs) != 1 {
			t.Fatalf("unexpected policy: %#v", pol)
		}
	})
}

func TestGetMyTasksScopedToAccessibleBoards(t *testing.T) {
	store := &mockStore{
		users: map[string]domain.User{
			"buyer": buyerUser("buyer", "dept-gambling"),
		},
		boards: []domain.Board{
			{ID: "b1", Key: "TECH"},
			{ID: "b2", Key: "HR"},
		},
		tasks: map[string]domain.Task{
			"t1": {ID: "t1", BoardKey: "TECH", AssigneeID: "buyer", CreatorID: "x"},
			"t2": {ID: "t2", BoardKey: "HR", AssigneeID: "buyer", CreatorID: "x"},
		},
	}
	h := newTestHandlers(store, "buyer")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/api/me/tasks", ""), rec)
	invoke(e, c, h.getMyTasks)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("expected only the accessible board's task, got %#v", tasks)
	}
}

func TestDecodeRequestRejectsUnknownFields(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/tasks", `{"board_key":"TECH","title":"x","bogus":1}`), rec)

	var req taskCreateRequest
	err := decodeRequest(c, &req)
	if err == nil {
		t.Fatalf("expected decode error for unknown field")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTP error, got %#v", err)
	}
}
