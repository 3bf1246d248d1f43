package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core/dashboard"
	"github.com/atelierhq/atelier/core/staff"
)

type staffApi struct {
	*Server
}

func registerStaffAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := staffApi{s}
	sg := g.Group("/staff", append(authed, staffMiddleware())...)
	sg.GET("", api.query)
	sg.GET("/directory", api.directory)
	sg.GET("/utilisation", api.utilisation)
	sg.GET("/:id", api.retrieve)

	// admin endpoints
	sg.POST("", api.create, adminMiddleware())
	sg.PUT("/:id", api.update, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api staffApi) create(ctx echo.Context) error {
	var data staff.NewStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStaff")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.deps.Validate, api.deps.StaffSvc); err != nil {
		return err
	}

	s, err := api.deps.StaffSvc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating staff")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api staffApi) query(ctx echo.Context) error {
	filter := new(staff.QueryFilter)
	b := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		String("role", &filter.Role)
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

	members, err := api.deps.StaffSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying staff")
	}
	if members == nil {
		members = []staff.Staff{}
	}
	return ctx.JSON(http.StatusOK, members)
}

// directory serves the cached list of active staff used by chat and the calendar.
func (api staffApi) directory(ctx echo.Context) error {
	members, err := api.deps.StaffSvc.Directory(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "loading staff directory")
	}
	if members == nil {
		members = []staff.Staff{}
	}
	return ctx.JSON(http.StatusOK, members)
}

// utilisation defaults to the current week.
func (api staffApi) utilisation(ctx echo.Context) error {
	from, to := dashboard.Week(time.Now().UTC())
	from, to, err := bindDateRange(ctx, from, to)
	if err != nil {
		return err
	}
	reports, err := api.deps.DashboardSvc.Utilisation(ctx.Request().Context(), from, to)
	if err != nil {
		return errors.Wrap(err, "computing utilisation")
	}
	if reports == nil {
		reports = []staff.UtilisationReport{}
	}
	return ctx.JSON(http.StatusOK, reports)
}

func (api staffApi) retrieve(ctx echo.Context) error {
	s, err := api.deps.StaffSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding staff by ID")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api staffApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	s, err := api.deps.StaffSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding staff by ID")
	}

	var data staff.UpdateStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStaff")
	}
	if err := data.Validate(reqCtx, s, api.deps.Validate, api.deps.StaffSvc); err != nil {
		return err
	}

	s, err = api.deps.StaffSvc.Update(reqCtx, s, data)
	if err != nil {
		return errors.Wrap(err, "updating staff")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api staffApi) destroy(ctx echo.Context) error {
	if err := api.deps.StaffSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting staff")
	}
	return ctx.NoContent(http.StatusNoContent)
}
