package controllers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/openedx/edxoffline/internal/app"
)

type CoursesController struct {
	App *app.Context
}

func (ctrl *CoursesController) Status(c *echo.Context) error {
	view, err := ctrl.App.Service.Status(c.Request().Context(), param(c, "courseId"))
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Sync refetches the course structure and returns the fresh view.
func (ctrl *CoursesController) Sync(c *echo.Context) error {
	ctx := c.Request().Context()
	tree, err := ctrl.App.Service.Sync(ctx, param(c, "courseId"))
	if err != nil {
		return writeDomainError(c, err)
	}
	view, err := ctrl.App.Service.Status(ctx, tree.CourseID())
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (ctrl *CoursesController) Download(c *echo.Context) error {
	var req BlocksRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_request")
	}
	res, err := ctrl.App.Service.Download(c.Request().Context(), param(c, "courseId"), req.BlockIDs)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusAccepted, res)
}

func (ctrl *CoursesController) Remove(c *echo.Context) error {
	var req BlocksRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_request")
	}
	removed, err := ctrl.App.Service.Remove(c.Request().Context(), param(c, "courseId"), req.BlockIDs)
	if err != nil {
		return writeDomainError(c, err)
	}
	if removed == nil {
		removed = []string{}
	}
	return c.JSON(http.StatusOK, RemoveResponse{Removed: removed})
}
