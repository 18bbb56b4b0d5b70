package controllers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/openedx/edxoffline/internal/app"
	"github.com/openedx/edxoffline/internal/domain"
)

type DownloadsController struct {
	App *app.Context
}

// List returns every record in the ledger.
func (ctrl *DownloadsController) List(c *echo.Context) error {
	recs := ctrl.App.Service.Downloads(c.Request().Context()).Records()
	if recs == nil {
		recs = []domain.DownloadRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

func (ctrl *DownloadsController) Cancel(c *echo.Context) error {
	id := param(c, "id")
	if id == "" {
		return writeError(c, http.StatusBadRequest, "missing_id")
	}
	if err := ctrl.App.Service.Cancel(c.Request().Context(), id); err != nil {
		return writeDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a single download and its files, whatever its course.
func (ctrl *DownloadsController) Delete(c *echo.Context) error {
	id := param(c, "id")
	if id == "" {
		return writeError(c, http.StatusBadRequest, "missing_id")
	}
	if err := ctrl.App.Queue.Remove(c.Request().Context(), []string{id}); err != nil {
		return writeDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
