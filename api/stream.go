package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"taskdesk-api/domain"
)

const streamPollInterval = 5 * time.Second

// streamTasks serves the actor's visible tasks on a board as a server-sent
// event stream, re-reading storage and re-applying the visibility filter on
// every tick so relocations and new tasks show up without a reload. EventSource
// clients cannot set headers, so the token may arrive as a query parameter.
func (h *handlers) streamTasks(c echo.Context) error {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if token := c.QueryParam("token"); token != "" {
			c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		}
	}
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	boardKey := c.QueryParam("board")
	if boardKey == "" {
		return c.String(http.StatusBadRequest, "board query parameter is required")
	}
	board, err := h.boardForActor(c, actor, boardKey)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}

	ctx := c.Request().Context()
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	send := func() error {
		tasks, err := h.store.Tasks(ctx, board.Key)
		if err != nil {
			return err
		}
		filter := h.engine(ctx).TaskListFilter(actor, board)
		visible := make([]domain.Task, 0, len(tasks))
		for _, t := range tasks {
			if filter(t) {
				visible = append(visible, t)
			}
		}
		payload, err := sonic.Marshal(visible)
		if err != nil {
			return err
		}
		if _, err := c.Response().Write([]byte("data: ")); err != nil {
			return err
		}
		if _, err := c.Response().Write(payload); err != nil {
			return err
		}
		if _, err := c.Response().Write([]byte("\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(); err != nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := send(); err != nil {
				return nil
			}
		}
	}
}
