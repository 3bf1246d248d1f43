package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core/client"
)

type clientApi struct {
	*Server
}

func registerClientAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := clientApi{s}
	cg := g.Group("/clients", append(authed, staffMiddleware())...)
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)

	// admin endpoints
	cg.POST("", api.create, adminMiddleware())
	cg.PUT("/:id", api.update, adminMiddleware())
	cg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api clientApi) create(ctx echo.Context) error {
	var data client.NewClient
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClient")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	c, err := api.deps.ClientSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating client")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api clientApi) query(ctx echo.Context) error {
	filter := new(client.QueryFilter)
	b := echo.QueryParamsBinder(ctx).String("search", &filter.Search)
	if ctx.QueryParam("is_active") != "" {
		filter.IsActive = new(bool)
		b.Bool("is_active", filter.IsActive)
	}
	if err := b.BindError(); err != nil {
		return err
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	clients, err := api.deps.ClientSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying clients")
	}
	if clients == nil {
		clients = []client.Client{}
	}
	return ctx.JSON(http.StatusOK, clients)
}

func (api clientApi) retrieve(ctx echo.Context) error {
	c, err := api.deps.ClientSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding client by ID")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api clientApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	c, err := api.deps.ClientSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding client by ID")
	}

	var data client.UpdateClient
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClient")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	c, err = api.deps.ClientSvc.Update(reqCtx, c, data)
	if err != nil {
		return errors.Wrap(err, "updating client")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api clientApi) destroy(ctx echo.Context) error {
	if err := api.deps.ClientSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting client")
	}
	return ctx.NoContent(http.StatusNoContent)
}
