package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"prism-task-editor/domain"
	"prism-task-editor/form"
	"prism-task-editor/notify"
	"prism-task-editor/storage"
)

const maxBodySize = 64 * 1024 // 64 KiB

// Deps are the collaborators of the editor routes.
type Deps struct {
	Sessions *Registry
	Tags     storage.TagSource
	Hub      *notify.Hub
	Schema   *form.Schema
	Logger   *log.Logger
}

// Register wires up all editor routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	if d.Logger == nil {
		d.Logger = log.StandardLogger()
	}
	e.GET("/healthz", healthz())
	e.GET("/api/editor/schema", getSchema(d.Schema))
	e.GET("/api/editor/options", getOptions(d.Tags))

	g := e.Group("/api/editor/sessions")
	g.POST("", createSession(d.Sessions, d.Logger))
	g.GET("/:id", getSession(d.Sessions))
	g.PATCH("/:id/fields/:field", setField(d.Sessions, d.Logger))
	g.POST("/:id/submit", submit(d.Sessions, d.Logger))
	g.POST("/:id/reset", reset(d.Sessions))
	g.DELETE("/:id", deleteSession(d.Sessions))
	g.GET("/:id/notifications", streamNotifications(d.Sessions, d.Hub))
}

type sessionResponse struct {
	ID    string            `json:"id"`
	State form.Snapshot     `json:"state"`
	Task  *domain.TaskDraft `json:"task,omitempty"`
}

type createSessionRequest struct {
	Task *domain.TaskDraft `json:"task,omitempty"`
}

type setFieldRequest struct {
	Value *any `json:"value"`
}

type submitResponse struct {
	Submitted *domain.TaskDraft      `json:"submitted,omitempty"`
	Errors    []form.ValidationError `json:"errors,omitempty"`
	State     form.Snapshot          `json:"state"`
}

type optionsResponse struct {
	Categories []domain.Category `json:"categories"`
	Tags       []domain.Tag      `json:"tags"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getSchema(schema *form.Schema) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, schema.Document())
	}
}

func getOptions(tags storage.TagSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := tags.FetchTags(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, optionsResponse{Categories: domain.Categories(), Tags: list})
	}
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(c echo.Context, dst any) error {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize+1))
	if err != nil {
		return err
	}
	if len(data) > maxBodySize {
		return errors.New("body too large")
	}
	if len(data) == 0 {
		return nil
	}
	return sonic.ConfigStd.Unmarshal(data, dst)
}

func lookupSession(c echo.Context, sessions *Registry) (*Session, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, c.String(http.StatusBadRequest, "invalid session id")
	}
	s, err := sessions.Get(id)
	if err != nil {
		return nil, c.String(http.StatusNotFound, err.Error())
	}
	return s, nil
}

func createSession(sessions *Registry, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, _ := newEditorRequestMetrics(c.Request().Context(), logger, "create_session")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req createSessionRequest
		if decodeErr := decodeBody(c, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			return c.String(http.StatusBadRequest, "invalid body")
		}
		s, createErr := sessions.Create(req.Task)
		if createErr != nil {
			metrics.SetErrorStage("capacity")
			return c.String(http.StatusServiceUnavailable, createErr.Error())
		}
		metrics.SetSession(s.ID())
		return c.JSON(http.StatusCreated, newSessionResponse(s))
	}
}

func newSessionResponse(s *Session) sessionResponse {
	resp := sessionResponse{ID: s.ID(), State: s.Form().Snapshot()}
	if hint, ok := s.Form().Hint(); ok {
		resp.Task = &hint
	}
	return resp
}

func getSession(sessions *Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := lookupSession(c, sessions)
		if s == nil {
			return err
		}
		return c.JSON(http.StatusOK, newSessionResponse(s))
	}
}

func setField(sessions *Registry, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, _ := newEditorRequestMetrics(c.Request().Context(), logger, "set_field")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		s, lookupErr := lookupSession(c, sessions)
		if s == nil {
			metrics.SetErrorStage("session")
			return lookupErr
		}
		metrics.SetSession(s.ID())
		name := c.Param("field")
		metrics.SetField(name)

		var req setFieldRequest
		if decodeErr := decodeBody(c, &req); decodeErr != nil || req.Value == nil {
			metrics.SetErrorStage("decode")
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if setErr := s.Form().SetField(name, *req.Value); setErr != nil {
			metrics.SetErrorStage("field")
			if errors.Is(setErr, form.ErrUnknownField) {
				return c.String(http.StatusBadRequest, setErr.Error())
			}
			return c.String(http.StatusInternalServerError, setErr.Error())
		}
		snap := s.Form().Snapshot()
		metrics.SetValidationErrors(len(snap.Errors))
		return c.JSON(http.StatusOK, sessionResponse{ID: s.ID(), State: snap})
	}
}

func submit(sessions *Registry, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newEditorRequestMetrics(c.Request().Context(), logger, "submit")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		s, lookupErr := lookupSession(c, sessions)
		if s == nil {
			metrics.SetErrorStage("session")
			return lookupErr
		}
		metrics.SetSession(s.ID())

		draft, submitErr := s.Form().Submit(ctx)
		var fe form.FieldErrors
		if errors.As(submitErr, &fe) {
			metrics.SetValidationErrors(len(fe))
			return c.JSON(http.StatusUnprocessableEntity, submitResponse{Errors: fe.List(), State: s.Form().Snapshot()})
		}
		if submitErr != nil {
			metrics.SetErrorStage("submit")
			return c.String(http.StatusInternalServerError, submitErr.Error())
		}
		metrics.SetSubmitted(true)
		return c.JSON(http.StatusOK, submitResponse{Submitted: &draft, State: s.Form().Snapshot()})
	}
}

func reset(sessions *Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := lookupSession(c, sessions)
		if s == nil {
			return err
		}
		s.Form().Reset()
		return c.JSON(http.StatusOK, newSessionResponse(s))
	}
}

func deleteSession(sessions *Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if _, err := uuid.Parse(id); err != nil {
			return c.String(http.StatusBadRequest, "invalid session id")
		}
		if err := sessions.Delete(id); err != nil {
			return c.String(http.StatusNotFound, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}
