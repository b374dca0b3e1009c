package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"prism-task-editor/notify"
)

// streamNotifications pushes the toasts of one session as server-sent events.
// An open stream keeps its session from being swept.
func streamNotifications(sessions *Registry, hub *notify.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := lookupSession(c, sessions)
		if s == nil {
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
		c.Response().WriteHeader(http.StatusOK)
		flusher.Flush()

		toasts, cancel := hub.Subscribe(s.ID())
		defer cancel()

		keepAlive := time.NewTicker(sessions.interval())
		defer keepAlive.Stop()

		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.Done():
				return nil
			case <-keepAlive.C:
				sessions.Touch(s)
				if _, err := c.Response().Write([]byte(": keep-alive\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			case t := <-toasts:
				sessions.Touch(s)
				data, err := sonic.Marshal(t)
				if err != nil {
					c.Logger().Error(err)
					return err
				}
				if _, err := c.Response().Write([]byte("event: toast\ndata: ")); err != nil {
					return nil
				}
				if _, err := c.Response().Write(data); err != nil {
					return nil
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}
