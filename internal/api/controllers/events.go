package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/openedx/edxoffline/internal/app"
	"github.com/openedx/edxoffline/internal/domain"
)

const keepAliveInterval = 15 * time.Second

type EventsController struct {
	App *app.Context
}

// Stream sends progress, ledger, failure and message events as server-sent
// events. The current ledger is always the first event.
func (ctrl *EventsController) Stream(c *echo.Context) error {
	ctx := c.Request().Context()

	snapshots, unsubLedger := ctrl.App.Ledger.Changes(1)
	defer unsubLedger()
	progress, unsubProgress := ctrl.App.Queue.Progress(256)
	defer unsubProgress()
	failures, unsubFailures := ctrl.App.Queue.Failures(32)
	defer unsubFailures()
	messages, unsubMessages := ctrl.App.Service.Messages(32)
	defer unsubMessages()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	send := func(event string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			recs := snap.Records()
			if recs == nil {
				recs = []domain.DownloadRecord{}
			}
			err = send("ledger", recs)
		case ev, ok := <-progress:
			if !ok {
				return nil
			}
			err = send("progress", ev)
		case ev, ok := <-failures:
			if !ok {
				return nil
			}
			err = send("failed", ev)
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			err = send("message", msg)
		case <-keepAlive.C:
			if _, err = fmt.Fprint(w, ": keep-alive\n\n"); err == nil {
				err = rc.Flush()
			}
		}
		if err != nil {
			ctrl.App.Logger.Debug("Event stream closed: %v", err)
			return nil
		}
	}
}
