package controllers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/openedx/edxoffline/internal/app"
	"github.com/openedx/edxoffline/internal/policy"
)

type SettingsController struct {
	App *app.Context
}

func (ctrl *SettingsController) current() NetworkSettings {
	wifiOnly := ctrl.App.Policy.WifiOnly()
	return NetworkSettings{
		WifiOnly:   &wifiOnly,
		Connection: string(ctrl.App.Monitor.Connection()),
	}
}

func (ctrl *SettingsController) GetNetwork(c *echo.Context) error {
	return c.JSON(http.StatusOK, ctrl.current())
}

// PutNetwork updates the Wi-Fi only preference and the reported connection.
// Omitted fields keep their value.
func (ctrl *SettingsController) PutNetwork(c *echo.Context) error {
	var req NetworkSettings
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_request")
	}

	if req.Connection != "" {
		conn, err := policy.ParseConnection(req.Connection)
		if err != nil {
			return writeError(c, http.StatusBadRequest, err.Error())
		}
		ctrl.App.Monitor.Set(conn)
	}
	if req.WifiOnly != nil {
		ctrl.App.Policy.SetWifiOnly(*req.WifiOnly)
	}

	ctrl.App.Logger.Info("Network settings changed: wifi_only=%v connection=%s", ctrl.App.Policy.WifiOnly(), ctrl.App.Monitor.Connection())
	return c.JSON(http.StatusOK, ctrl.current())
}
