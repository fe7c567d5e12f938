package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskdesk-api/access"
	"taskdesk-api/domain"
)

func (h *handlers) getBoardTasks(c echo.Context) (err error) {
	ctx := c.Request().Context()
	metrics, spanCtx := newTaskRequestMetrics(ctx, h.log)
	if spanCtx != nil {
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
	}
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	authStart := time.Now()
	actor, actorErr := h.actor(c)
	metrics.ObserveAuth(time.Since(authStart))
	if actorErr != nil {
		metrics.SetErrorStage("auth")
		err = actorErr
		return err
	}

	board, boardErr := h.boardForActor(c, actor, c.Param("key"))
	if boardErr != nil {
		metrics.SetErrorStage("board_access")
		err = boardErr
		return err
	}

	fetchStart := time.Now()
	tasks, fetchErr := h.store.Tasks(ctx, board.Key)
	metrics.ObserveFetch(time.Since(fetchStart))
	if fetchErr != nil {
		metrics.SetErrorStage("storage")
		c.Logger().Error(fetchErr)
		err = c.String(http.StatusInternalServerError, fetchErr.Error())
		return err
	}

	filter := h.engine(ctx).TaskListFilter(actor, board)
	narrow := narrowingFilter(c)
	visible := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if filter(t) && narrow(t) {
			visible = append(visible, t)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].CreatedAt.After(visible[j].CreatedAt) })

	metrics.SetTasksReturned(len(visible))
	encodeStart := time.Now()
	err = c.JSON(http.StatusOK, visible)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

// narrowingFilter applies the optional columns/assignees/q query filters on
// top of the role-based visibility filter. It only ever narrows.
func narrowingFilter(c echo.Context) func(domain.Task) bool {
	columns := splitParam(c.QueryParam("columns"))
	assignees := splitParam(c.QueryParam("assignees"))
	q := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))
	if columns == nil && assignees == nil && q == "" {
		return func(domain.Task) bool { return true }
	}
	return func(t domain.Task) bool {
		if columns != nil {
			if _, ok := columns[t.ColumnID]; !ok {
				return false
			}
		}
		if assignees != nil {
			if _, ok := assignees[t.AssigneeID]; !ok {
				return false
			}
		}
		if q != "" {
			if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
				return false
			}
		}
		return true
	}
}

func splitParam(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}
	set := make(map[string]struct{})
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

type taskCreateRequest struct {
	BoardKey    string          `json:"board_key"`
	ColumnID    string          `json:"column_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority"`
	Tags        []string        `json:"tags"`
	DueDate     string          `json:"due_date"`
	AssigneeID  string          `json:"assignee_id"`
	Amount      float64         `json:"amount"`
	Category    string          `json:"category"`
	ReceiptURL  string          `json:"receipt_url"`
}

func (h *handlers) createTask(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}

	var req taskCreateRequest
	if err := decodeRequest(c, &req); err != nil {
		return err
	}
	if req.BoardKey == "" || req.Title == "" {
		return c.String(http.StatusBadRequest, "board_key and title are required")
	}

	board, err := h.store.BoardByKey(ctx, req.BoardKey)
	if err != nil {
		return mutationError(c, err)
	}

	eng := h.engine(ctx)
	if err := eng.AuthorizeMutation(actor, access.Mutation{Op: access.OpTaskCreate, Board: &board}); err != nil {
		return mutationError(c, err)
	}

	columnID, err := h.resolveCreateColumn(c, board, req.ColumnID)
	if err != nil {
		return err
	}

	departmentID, ok := eng.ResolveTaskDepartment(actor, board)
	if !ok {
		return c.String(http.StatusBadRequest, "unable to determine department for task")
	}

	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	}
	now := time.Now().UTC()
	task := domain.Task{
		ID:           uuid.NewString(),
		BoardKey:     board.Key,
		ColumnID:     columnID,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Tags:         req.Tags,
		DueDate:      req.DueDate,
		AssigneeID:   req.AssigneeID,
		CreatorID:    actor.ID,
		DepartmentID: departmentID,
		Amount:       req.Amount,
		Category:     req.Category,
		ReceiptURL:   req.ReceiptURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.InsertTask(ctx, task); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, task)
}

// resolveCreateColumn validates an explicit column or picks a default:
// expense boards default to their WAITING intake, others to the first
// column in order.
func (h *handlers) resolveCreateColumn(c echo.Context, board domain.Board, columnID string) (string, error) {
	ctx := c.Request().Context()
	if columnID != "" {
		col, err := h.store.Column(ctx, columnID)
		if err != nil {
			if isNotFound(err) {
				return "", echo.NewHTTPError(http.StatusNotFound, "column not found")
			}
			return "", echo.NewHTTPError(http.StatusInternalServerError, "storage failure")
		}
		return col.ID, nil
	}
	if board.Type == domain.BoardExpenses {
		if col, err := h.store.ColumnByKey(ctx, board.ID, "WAITING"); err == nil {
			return col.ID, nil
		}
	}
	cols, err := h.store.Columns(ctx, board.ID)
	if err != nil || len(cols) == 0 {
		return "", echo.NewHTTPError(http.StatusBadRequest, "no columns found in board")
	}
	first := cols[0]
	for _, col := range cols[1:] {
		if col.Order < first.Order {
			first = col
		}
	}
	return first.ID, nil
}

type taskUpdateRequest struct {
	ColumnID    *string          `json:"column_id"`
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Priority    *domain.Priority `json:"priority"`
	Tags        []string         `json:"tags"`
	DueDate     *string          `json:"due_date"`
	AssigneeID  *string          `json:"assignee_id"`
	Amount      *float64         `json:"amount"`
	Category    *string          `json:"category"`
	ReceiptURL  *string          `json:"receipt_url"`
}

func (req *taskUpdateRequest) apply(task *domain.Task) {
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.Tags != nil {
		task.Tags = req.Tags
	}
	if req.DueDate != nil {
		task.DueDate = *req.DueDate
	}
	if req.AssigneeID != nil {
		task.AssigneeID = *req.AssigneeID
	}
	if req.Amount != nil {
		task.Amount = *req.Amount
	}
	if req.Category != nil {
		task.Category = *req.Category
	}
	if req.ReceiptURL != nil {
		task.ReceiptURL = *req.ReceiptURL
	}
}

func (h *handlers) updateTask(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	task, err := h.store.Task(ctx, c.Param("id"))
	if err != nil {
		if isNotFound(err) {
			return c.String(http.StatusNotFound, "task not found")
		}
		return mutationError(c, err)
	}
	board, err := h.boardForActor(c, actor, task.BoardKey)
	if err != nil {
		return err
	}

	var req taskUpdateRequest
	if err := decodeRequest(c, &req); err != nil {
		return err
	}

	eng := h.engine(ctx)
	if req.ColumnID != nil {
		if err := eng.AuthorizeMutation(actor, access.Mutation{Op: access.OpTaskMove, Board: &board, Task: &task}); err != nil {
			return mutationError(c, err)
		}
	}
	if req.AssigneeID != nil {
		if err := eng.AuthorizeMutation(actor, access.Mutation{Op: access.OpTaskAssign, Board: &board, Task: &task}); err != nil {
			return mutationError(c, err)
		}
	}

	if req.ColumnID != nil && *req.ColumnID != "" {
		target, err := h.store.Column(ctx, *req.ColumnID)
		if err != nil {
			if isNotFound(err) {
				return c.String(http.StatusNotFound, "column not found")
			}
			return mutationError(c, err)
		}
		if eng.IsRoutingColumn(target.Key) {
			return h.routeTask(c, eng, actor, task, target, &req)
		}
		task.ColumnID = target.ID
	}

	req.apply(&task)
	task.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateTask(ctx, task); err != nil {
		return mutationError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

// routeTask applies a cross-team relocation together with whatever other
// fields arrived in the same update, as one storage write. The routing
// event is published after the write; publication failure is logged, not
// surfaced, since the relocation already happened.
func (h *handlers) routeTask(c echo.Context, eng *access.Engine, actor access.ActorContext, task domain.Task, target domain.Column, req *taskUpdateRequest) error {
	ctx := c.Request().Context()
	now := time.Now().UTC()
	outcome, err := eng.ResolveRouting(actor, task, target, now)
	if err != nil {
		return mutationError(c, err)
	}

	sourceBoard := task.BoardKey
	req.ColumnID = nil // the resolver owns column placement on this path
	req.apply(&task)

	if !outcome.Relocated {
		task.ColumnID = target.ID
	} else {
		task.BoardKey = outcome.BoardKey
		task.ColumnID = outcome.ColumnID
		task.RoutedFrom = outcome.Stamp
	}
	task.UpdatedAt = now

	if err := h.store.UpdateTask(ctx, task); err != nil {
		return mutationError(c, err)
	}

	if outcome.Relocated {
		ev := domain.RoutingEvent{
			TaskID:    task.ID,
			FromBoard: sourceBoard,
			ToBoard:   outcome.BoardKey,
			ActorID:   actor.ID,
			RoutedAt:  now,
		}
		if err := h.store.PublishRoutingEvent(ctx, ev); err != nil {
			h.log.WithError(err).WithField("task_id", task.ID).Error("routing event publish failed")
		}
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) getMyTasks(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	boards, err := h.store.Boards(ctx)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	filter := h.engine(ctx).BoardListFilter(actor)
	accessible := make(map[string]struct{}, len(boards))
	for _, b := range boards {
		if filter(b) {
			accessible[b.Key] = struct{}{}
		}
	}

	tasks, err := h.store.TasksByAssignee(ctx, actor.ID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	visible := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := accessible[t.BoardKey]; ok {
			visible = append(visible, t)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].CreatedAt.After(visible[j].CreatedAt) })
	return c.JSON(http.StatusOK, visible)
}
