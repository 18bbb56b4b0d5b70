package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v5"

	"github.com/openedx/edxoffline/internal/domain"
)

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// BlocksRequest selects blocks of a course. An empty list means the whole course.
type BlocksRequest struct {
	BlockIDs []string `json:"block_ids"`
}

type RemoveResponse struct {
	Removed []string `json:"removed"`
}

type NetworkSettings struct {
	WifiOnly   *bool  `json:"wifi_only,omitempty"`
	Connection string `json:"connection,omitempty"`
}

func writeError(c *echo.Context, code int, msg string) error {
	return c.JSON(code, ErrorResponse{Status: "error", Message: msg})
}

// writeDomainError maps sentinel errors to status codes.
func writeDomainError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTree):
		return writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrWifiRequired), errors.Is(err, domain.ErrOffline):
		return writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientStorage):
		return writeError(c, http.StatusInsufficientStorage, err.Error())
	case errors.Is(err, domain.ErrShuttingDown):
		return writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, "internal_error")
	}
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(c *echo.Context, v any) error {
	err := json.NewDecoder(io.LimitReader(c.Request().Body, 1<<20)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// param returns a path parameter with any percent-encoding removed.
func param(c *echo.Context, name string) string {
	raw := c.Param(name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
