package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/chat"
	"github.com/atelierhq/atelier/core/project"
)

var streamHeartbeat = 25 * time.Second

type chatApi struct {
	*Server
}

func registerChatAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := chatApi{s}
	cg := g.Group("/channels", append(authed, staffMiddleware())...)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/:id", api.retrieve)
	cg.DELETE("/:id", api.destroy, adminMiddleware())
	cg.GET("/:id/messages", api.messages)
	cg.POST("/:id/messages", api.post)
	cg.GET("/:id/stream", api.stream)
}

func (api chatApi) create(ctx echo.Context) error {
	var data chat.NewChannel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChannel")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	if data.ProjectID != "" {
		if _, err := api.deps.ProjectSvc.Get(reqCtx, data.ProjectID); err != nil {
			if errors.Cause(err) == project.ErrNotFound {
				return core.NewFieldError("project_id", err)
			}
			return errors.Wrap(err, "finding project")
		}
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	ch, err := api.deps.ChatSvc.CreateChannel(reqCtx, data, usr.ID)
	if err != nil {
		return errors.Wrap(err, "creating channel")
	}
	return ctx.JSON(http.StatusCreated, ch)
}

func (api chatApi) query(ctx echo.Context) error {
	channels, err := api.deps.ChatSvc.Channels(ctx.Request().Context(), ctx.QueryParam("project_id"))
	if err != nil {
		return errors.Wrap(err, "querying channels")
	}
	if channels == nil {
		channels = []chat.Channel{}
	}
	return ctx.JSON(http.StatusOK, channels)
}

func (api chatApi) retrieve(ctx echo.Context) error {
	ch, err := api.deps.ChatSvc.Channel(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding channel by ID")
	}
	return ctx.JSON(http.StatusOK, ch)
}

func (api chatApi) destroy(ctx echo.Context) error {
	if err := api.deps.ChatSvc.DeleteChannel(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting channel")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// messages pages backwards: `?before=<RFC3339>&limit=50` returns the page in chronological order.
func (api chatApi) messages(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	ch, err := api.deps.ChatSvc.Channel(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding channel by ID")
	}
	var mq chat.MessageQuery
	b := echo.QueryParamsBinder(ctx).Int("limit", &mq.Limit)
	dateParam(b, "before", &mq.Before)
	if err := b.BindError(); err != nil {
		return err
	}

	msgs, err := api.deps.ChatSvc.Messages(reqCtx, ch.ID, mq)
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api chatApi) post(ctx echo.Context) error {
	var data chat.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	m, err := api.deps.ChatSvc.Post(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, m)
}

// stream pushes the channel's new messages as Server-Sent Events until the client goes away.
func (api chatApi) stream(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	sub, err := api.deps.ChatSvc.Subscribe(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "subscribing to channel")
	}
	defer sub.Close()

	w := ctx.Response()
	// streams outlive the server's write timeout
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return errors.Wrap(err, "clearing write deadline")
	}
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-reqCtx.Done():
			return nil
		case m, ok := <-sub.C:
			if !ok { // hub closed
				return nil
			}
			data, err := json.Marshal(m)
			if err != nil {
				return errors.Wrap(err, "encoding message")
			}
			if _, err = fmt.Fprintf(w, "id: %s\nevent: message\ndata: %s\n\n", m.ID, data); err != nil {
				return nil // client gone
			}
			w.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
