package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/bytedance/sonic"

	"taskdesk-api/access"
	"taskdesk-api/domain"
)

const requestMaxSize = 64 * 1024 // 64 KiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, cfg access.Config, logger *log.Logger) {
	h := &handlers{store: store, auth: auth, cfg: cfg, log: logger}

	e.GET("/api/boards", h.getBoards)
	e.GET("/api/boards/by-key/:key", h.getBoardByKey)
	e.POST("/api/boards", h.createBoard)
	e.PATCH("/api/boards/:id", h.updateBoard)
	e.DELETE("/api/boards/:id", h.deleteBoard)
	e.PATCH("/api/boards/:id/visibility", h.updateBoardVisibility)

	e.GET("/api/boards/:id/columns", h.getColumns)
	e.POST("/api/boards/:id/columns", h.createColumn)
	e.PATCH("/api/columns/:id", h.updateColumn)
	e.DELETE("/api/columns/:id", h.deleteColumn)

	e.GET("/api/boards/:key/tasks", h.getBoardTasks)
	e.POST("/api/tasks", h.createTask)
	e.PATCH("/api/tasks/:id", h.updateTask)
	e.GET("/api/me/tasks", h.getMyTasks)
	e.GET("/api/stream/tasks", h.streamTasks)

	e.GET("/api/users", h.getUsers)
	e.DELETE("/api/users/:id", h.deleteUser)
	e.PATCH("/api/groups/:id/members", h.updateGroupMembers)

	e.GET("/healthz", h.healthz)
}

type handlers struct {
	store Storage
	auth  Authenticator
	cfg   access.Config
	log   *log.Logger
}

func (h *handlers) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// engine builds a per-request engine whose directory lookups are bound to
// the request context. The engine itself holds no state beyond the closures.
func (h *handlers) engine(ctx context.Context) *access.Engine {
	return access.New(h.cfg, access.Directory{
		UsersByDepartment: func(departmentID string) []string {
			users, err := h.store.UsersByDepartment(ctx, departmentID)
			if err != nil {
				h.log.WithError(err).Warn("directory: users by department")
				return nil
			}
			return userIDs(users)
		},
		UsersByRole: func(role domain.Role) []string {
			users, err := h.store.UsersByRole(ctx, role)
			if err != nil {
				h.log.WithError(err).Warn("directory: users by role")
				return nil
			}
			return userIDs(users)
		},
		IntakeColumn: func(boardKey, columnKey string) (domain.Column, bool) {
			board, err := h.store.BoardByKey(ctx, boardKey)
			if err != nil {
				return domain.Column{}, false
			}
			col, err := h.store.ColumnByKey(ctx, board.ID, columnKey)
			if err != nil {
				return domain.Column{}, false
			}
			return col, true
		},
		AnyDepartmentID: func() (string, bool) {
			id, err := h.store.AnyDepartmentID(ctx)
			if err != nil || id == "" {
				return "", false
			}
			return id, true
		},
	})
}

func userIDs(users []domain.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// actor authenticates the request and resolves the account into an
// ActorContext. Errors are *echo.HTTPError values ready to return.
func (h *handlers) actor(c echo.Context) (access.ActorContext, error) {
	userID, err := h.auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return access.ActorContext{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	user, err := h.store.User(c.Request().Context(), userID)
	if err != nil {
		if isNotFound(err) {
			return access.ActorContext{}, echo.NewHTTPError(http.StatusUnauthorized, "user not found")
		}
		c.Logger().Error(err)
		return access.ActorContext{}, echo.NewHTTPError(http.StatusInternalServerError, "storage failure")
	}
	return access.ResolveActor(user), nil
}

func isNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// mutationError translates engine and storage errors to HTTP responses.
// Forbidden, NotFound, Conflict and ConfigError stay distinct; nothing is
// collapsed into a generic failure.
func mutationError(c echo.Context, err error) error {
	var cfgErr *access.ConfigError
	switch {
	case errors.Is(err, access.ErrForbidden):
		return c.String(http.StatusForbidden, "permission denied")
	case errors.Is(err, access.ErrConflict):
		return c.String(http.StatusConflict, err.Error())
	case errors.As(err, &cfgErr):
		return c.String(http.StatusInternalServerError, cfgErr.Error())
	case isNotFound(err):
		return c.String(http.StatusNotFound, err.Error())
	}
	c.Logger().Error(err)
	return c.String(http.StatusInternalServerError, err.Error())
}

// decodeRequest parses a JSON request body, rejecting unknown fields and
// bodies above requestMaxSize.
func decodeRequest(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return nil
}
