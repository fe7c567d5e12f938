package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskdesk-api/access"
)

func (h *handlers) getUsers(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.actor(c); err != nil {
		return err
	}
	// Every authenticated user can list users, for assignee pickers.
	users, err := h.store.Users(ctx)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, users)
}

func (h *handlers) deleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	targetID := c.Param("id")
	if err := h.engine(ctx).AuthorizeMutation(actor, access.Mutation{Op: access.OpUserDelete, TargetUserID: targetID}); err != nil {
		return mutationError(c, err)
	}
	if _, err := h.store.User(ctx, targetID); err != nil {
		return mutationError(c, err)
	}
	if err := h.store.DeleteUser(ctx, targetID); err != nil {
		return mutationError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}

type groupMembersRequest struct {
	AddMembers    []string `json:"add_members"`
	RemoveMembers []string `json:"remove_members"`
}

// updateGroupMembers adds or removes group members. Allowed for executives
// and for the group's lead; plain membership grants nothing.
func (h *handlers) updateGroupMembers(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	group, err := h.store.Group(ctx, c.Param("id"))
	if err != nil {
		return mutationError(c, err)
	}
	if !actor.Executive && group.LeadUserID != actor.ID {
		return c.String(http.StatusForbidden, "permission denied")
	}

	var req groupMembersRequest
	if err := decodeRequest(c, &req); err != nil {
		return err
	}

	present := make(map[string]struct{}, len(group.MemberIDs))
	for _, id := range group.MemberIDs {
		present[id] = struct{}{}
	}
	for _, id := range req.AddMembers {
		if _, ok := present[id]; !ok {
			present[id] = struct{}{}
			group.MemberIDs = append(group.MemberIDs, id)
		}
	}
	if len(req.RemoveMembers) > 0 {
		drop := make(map[string]struct{}, len(req.RemoveMembers))
		for _, id := range req.RemoveMembers {
			drop[id] = struct{}{}
		}
		kept := group.MemberIDs[:0]
		for _, id := range group.MemberIDs {
			if _, ok := drop[id]; !ok {
				kept = append(kept, id)
			}
		}
		group.MemberIDs = kept
	}

	if err := h.store.UpdateGroup(ctx, group); err != nil {
		return mutationError(c, err)
	}
	return c.JSON(http.StatusOK, group)
}
