package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskdesk-api/access"
	"taskdesk-api/domain"
)

func (h *handlers) getBoards(c echo.Context) error {
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
	visible := make([]domain.Board, 0, len(boards))
	for _, b := range boards {
		if filter(b) {
			visible = append(visible, b)
		}
	}
	return c.JSON(http.StatusOK, visible)
}

// boardForActor loads a board by key and applies the access evaluator,
// keeping 404 and 403 distinct: an absent board is NotFound, a denied one
// Forbidden.
func (h *handlers) boardForActor(c echo.Context, actor access.ActorContext, key string) (domain.Board, error) {
	ctx := c.Request().Context()
	board, err := h.store.BoardByKey(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return domain.Board{}, echo.NewHTTPError(http.StatusNotFound, "board not found")
		}
		c.Logger().Error(err)
		return domain.Board{}, echo.NewHTTPError(http.StatusInternalServerError, "storage failure")
	}
	if h.engine(ctx).Evaluate(actor, board) != access.Granted {
		return domain.Board{}, echo.NewHTTPError(http.StatusForbidden, "access denied to this board")
	}
	return board, nil
}

func (h *handlers) getBoardByKey(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	board, err := h.boardForActor(c, actor, c.Param("key"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, board)
}

type boardCreateRequest struct {
	Name                string                   `json:"name"`
	Key                 string                   `json:"key"`
	Type                domain.BoardType         `json:"type"`
	DefaultDepartmentID string                   `json:"default_department_id"`
	Visibility          *domain.VisibilityPolicy `json:"visibility"`
}

func (h *handlers) createBoard(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}

	var req boardCreateRequest
	if err := decodeRequest(c, &req); err != nil {
		return err
	}
	if req.Key == "" || req.Name == "" {
		return c.String(http.StatusBadRequest, "name and key are required")
	}
	if req.Type == "" {
		req.Type = domain.BoardTasks
	}

	eng := h.engine(ctx)
	if err := eng.AuthorizeMutation(actor, access.Mutation{Op: access.OpBoardCreate}); err != nil {
		return mutationError(c, err)
	}
	// New boards carry a modern policy only; the legacy fields are not
	// constructible through this endpoint.
	if req.Visibility != nil {
		if err := eng.AuthorizeMutation(actor, access.Mutation{Op: access.OpVisibilityUpdate, Visibility: req.Visibility}); err != nil {
			return mutationError(c, err)
		}
	}

	if _, err := h.store.BoardByKey(ctx, req.Key); err == nil {
		return c.String(http.StatusConflict, "board key already exists")
	} else if !isNotFound(err) {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}

	now := time.Now().UTC()
	board := domain.Board{
		ID:                  uuid.NewString(),
		Name:                req.Name,
		Key:                 req.Key,
		Type:                req.Type,
		DefaultDepartmentID: req.DefaultDepartmentID,
		Visibility:          req.Visibility,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := h.store.InsertBoard(ctx, board); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, board)
}

type boardUpdateRequest struct {
	Name                *string `json:"name"`
	DefaultDepartmentID *string `json:"default_department_id"`
	IsArchived          *bool   `json:"is_archived"`
}

func (h *handlers) updateBoard(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	board, err := h.store.Board(ctx, c.Param("id"))
	if err != nil {
		return mutationError(c, err)
	}
	if err := h.engine(ctx).AuthorizeMutation(actor, access.Mutation{Op: access.OpBoardUpdate, Board: &board}); err != nil {
		return mutationError(c, err)
	}

	var req boardUpdateRequest
	if err := decodeRequest(c, &req); err != nil {
		return err
	}
	if req.Name != nil {
		board.Name = *req.Name
	}
	if req.DefaultDepartmentID != nil {
		board.DefaultDepartmentID = *req.DefaultDepartmentID
	}
	if req.IsArchived != nil {
		board.IsArchived = *req.IsArchived
	}
	board.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateBoard(ctx, board); err != nil {
		return mutationError(c, err)
	}
	return c.JSON(http.StatusOK, board)
}

func (h *handlers) deleteBoard(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	board, err := h.store.Board(ctx, c.Param("id"))
	if err != nil {
		return mutationError(c, err)
	}
	if err := h.engine(ctx).AuthorizeMutation(actor, access.Mutation{Op: access.OpBoardDelete, Board: &board}); err != nil {
		return mutationError(c, err)
	}
	if err := h.store.DeleteBoard(ctx, board.ID); err != nil {
		return mutationError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "board deleted"})
}

type visibilityUpdateRequest struct {
	Visibility domain.VisibilityPolicy `json:"visibility"`
}

func (h *handlers) updateBoardVisibility(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	board, err := h.store.Board(ctx, c.Param("id"))
	if err != nil {
		return mutationError(c, err)
	}

	var req visibilityUpdateRequest
	if err := decodeRequest(c, &req); err != nil {
		return err
	}
	if req.Visibility.Mode == "" {
		req.Visibility.Mode = domain.VisibilityUsers
	}

	if err := h.engine(ctx).AuthorizeMutation(actor, access.Mutation{
		Op:         access.OpVisibilityUpdate,
		Board:      &board,
		Visibility: &req.Visibility,
	}); err != nil {
		return mutationError(c, err)
	}

	board.Visibility = &req.Visibility
	board.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateBoard(ctx, board); err != nil {
		return mutationError(c, err)
	}
	return c.JSON(http.StatusOK, board)
}

func (h *handlers) getColumns(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	board, err := h.store.Board(ctx, c.Param("id"))
	if err != nil {
		return mutationError(c, err)
	}
	if h.engine(ctx).Evaluate(actor, board) != access.Granted {
		return c.String(http.StatusForbidden, "access denied to this board")
	}
	cols, err := h.store.Columns(ctx, board.ID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cols)
}

type columnCreateRequest struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

func (h *handlers) createColumn(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	board, err := h.store.Board(ctx, c.Param("id"))
	if err != nil {
		return mutationError(c, err)
	}
	if err := h.engine(ctx).AuthorizeMutation(actor, access.Mutation{Op: access.OpColumnCreate, Board: &board}); err != nil {
		return mutationError(c, err)
	}

	var req columnCreateRequest
	if err := decodeRequest(c, &req); err != nil {
		return err
	}
	if req.Key == "" {
		return c.String(http.StatusBadRequest, "column key is required")
	}

	now := time.Now().UTC()
	col := domain.Column{
		ID:        uuid.NewString(),
		BoardID:   board.ID,
		Key:       req.Key,
		Name:      req.Name,
		Order:     req.Order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.InsertColumn(ctx, col); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, col)
}

type columnUpdateRequest struct {
	Name  *string `json:"name"`
	Order *int    `json:"order"`
}

func (h *handlers) updateColumn(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	col, err := h.store.Column(ctx, c.Param("id"))
	if err != nil {
		return mutationError(c, err)
	}
	board, err := h.store.Board(ctx, col.BoardID)
	if err != nil {
		return mutationError(c, err)
	}
	if err := h.engine(ctx).AuthorizeMutation(actor, access.Mutation{Op: access.OpColumnUpdate, Board: &board}); err != nil {
		return mutationError(c, err)
	}

	var req columnUpdateRequest
	if err := decodeRequest(c, &req); err != nil {
		return err
	}
	if req.Name != nil {
		col.Name = *req.Name
	}
	if req.Order != nil {
		col.Order = *req.Order
	}
	col.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateColumn(ctx, col); err != nil {
		return mutationError(c, err)
	}
	return c.JSON(http.StatusOK, col)
}

func (h *handlers) deleteColumn(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	col, err := h.store.Column(ctx, c.Param("id"))
	if err != nil {
		return mutationError(c, err)
	}
	board, err := h.store.Board(ctx, col.BoardID)
	if err != nil {
		return mutationError(c, err)
	}
	count, err := h.store.CountTasksInColumn(ctx, col.ID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if err := h.engine(ctx).AuthorizeMutation(actor, access.Mutation{
		Op:              access.OpColumnDelete,
		Board:           &board,
		ColumnTaskCount: count,
	}); err != nil {
		return mutationError(c, err)
	}
	if err := h.store.DeleteColumn(ctx, col.ID); err != nil {
		return mutationError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "column deleted"})
}
