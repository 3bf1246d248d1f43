package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/dashboard"
	"github.com/atelierhq/atelier/core/schedule"
	"github.com/atelierhq/atelier/core/staff"
)

type scheduleApi struct {
	*Server
}

func registerScheduleAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := scheduleApi{s}

	tg := g.Group("/timeoff", append(authed, staffMiddleware())...)
	tg.GET("", api.queryTimeOff)
	tg.POST("", api.requestTimeOff)
	tg.GET("/:id", api.retrieveTimeOff)
	tg.PUT("/:id/review", api.review, adminMiddleware())
	tg.DELETE("/:id", api.cancelTimeOff)

	cg := g.Group("/calendar", append(authed, staffMiddleware())...)
	cg.GET("", api.queryEntries)
	cg.POST("", api.createEntry)
	cg.GET("/agenda", api.agenda)
	cg.GET("/:id", api.retrieveEntry)
	cg.PUT("/:id", api.updateEntry)
	cg.DELETE("/:id", api.destroyEntry)
}

// Time-off

func (api scheduleApi) queryTimeOff(ctx echo.Context) error {
	filter := new(schedule.TimeOffFilter)
	b := echo.QueryParamsBinder(ctx).
		String("staff_id", &filter.StaffID).
		Strings("status", &filter.Status)
	dateParam(b, "from", &filter.From)
	dateParam(b, "to", &filter.To)
	if err := b.BindError(); err != nil {
		return err
	}

	timeOffs, err := api.deps.ScheduleSvc.TimeOffs(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying time-off")
	}
	if timeOffs == nil {
		timeOffs = []schedule.TimeOff{}
	}
	return ctx.JSON(http.StatusOK, timeOffs)
}

// requestTimeOff files for the caller. Admins may file on behalf of anyone.
func (api scheduleApi) requestTimeOff(ctx echo.Context) error {
	var data schedule.NewTimeOff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTimeOff")
	}
	self, hasProfile := getContextStaff(ctx)
	if data.StaffID == "" && hasProfile {
		data.StaffID = self.ID
	}
	if !isAdmin(ctx) && (!hasProfile || data.StaffID != self.ID) {
		return errHttpForbidden
	}
	if data.StaffID == "" {
		return core.NewFieldError("staff_id", staff.ErrNotFound)
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if _, err := api.deps.StaffSvc.Get(reqCtx, data.StaffID); err != nil {
		if errors.Cause(err) == staff.ErrNotFound {
			return core.NewFieldError("staff_id", err)
		}
		return errors.Wrap(err, "finding staff")
	}

	to, err := api.deps.ScheduleSvc.RequestTimeOff(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "requesting time-off")
	}
	return ctx.JSON(http.StatusCreated, to)
}

func (api scheduleApi) retrieveTimeOff(ctx echo.Context) error {
	to, err := api.deps.ScheduleSvc.TimeOff(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding time-off by ID")
	}
	return ctx.JSON(http.StatusOK, to)
}

func (api scheduleApi) review(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	to, err := api.deps.ScheduleSvc.TimeOff(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding time-off by ID")
	}

	var data schedule.ReviewTimeOff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewTimeOff")
	}
	data.Status = core.CleanString(data.Status, true /* lower */)
	if err := api.validate(&data); err != nil {
		return err
	}
	reviewer, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	to, err = api.deps.ScheduleSvc.Review(reqCtx, to, data.Status, reviewer.ID)
	if err != nil {
		return errors.Wrap(err, "reviewing time-off")
	}
	return ctx.JSON(http.StatusOK, to)
}

func (api scheduleApi) cancelTimeOff(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	to, err := api.deps.ScheduleSvc.TimeOff(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding time-off by ID")
	}
	self, _ := getContextStaff(ctx)
	if err := api.deps.ScheduleSvc.CancelTimeOff(reqCtx, to, self.ID, isAdmin(ctx)); err != nil {
		return errors.Wrap(err, "cancelling time-off")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Calendar

func (api scheduleApi) queryEntries(ctx echo.Context) error {
	filter := new(schedule.EntryFilter)
	b := echo.QueryParamsBinder(ctx).
		String("staff_id", &filter.StaffID).
		String("project_id", &filter.ProjectID)
	dateParam(b, "from", &filter.From)
	dateParam(b, "to", &filter.To)
	if err := b.BindError(); err != nil {
		return err
	}

	entries, err := api.deps.ScheduleSvc.Entries(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying calendar entries")
	}
	if entries == nil {
		entries = []schedule.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api scheduleApi) createEntry(ctx echo.Context) error {
	var data schedule.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	e, err := api.deps.ScheduleSvc.CreateEntry(ctx.Request().Context(), data, usr.ID)
	if err != nil {
		return errors.Wrap(err, "creating calendar entry")
	}
	return ctx.JSON(http.StatusCreated, e)
}

// agenda defaults to the current week; `staff_id` narrows it to one person plus shared entries.
func (api scheduleApi) agenda(ctx echo.Context) error {
	from, to := dashboard.Week(time.Now().UTC())
	from, to, err := bindDateRange(ctx, from, to)
	if err != nil {
		return err
	}
	items, err := api.deps.ScheduleSvc.Agenda(ctx.Request().Context(), from, to, ctx.QueryParam("staff_id"))
	if err != nil {
		return errors.Wrap(err, "building agenda")
	}
	if items == nil {
		items = []schedule.AgendaItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api scheduleApi) retrieveEntry(ctx echo.Context) error {
	e, err := api.deps.ScheduleSvc.Entry(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding calendar entry by ID")
	}
	return ctx.JSON(http.StatusOK, e)
}

// canEdit lets admins and the entry's author change it.
func canEdit(ctx echo.Context, e schedule.Entry) bool {
	if isAdmin(ctx) {
		return true
	}
	usr, err := getContextUser(ctx)
	return err == nil && e.CreatedBy == usr.ID
}

func (api scheduleApi) updateEntry(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	e, err := api.deps.ScheduleSvc.Entry(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding calendar entry by ID")
	}
	if !canEdit(ctx, e) {
		return errHttpForbidden
	}

	var data schedule.UpdateEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEntry")
	}
	if err := data.Validate(e, api.deps.Validate); err != nil {
		return err
	}

	e, err = api.deps.ScheduleSvc.UpdateEntry(reqCtx, e, data)
	if err != nil {
		return errors.Wrap(err, "updating calendar entry")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api scheduleApi) destroyEntry(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	e, err := api.deps.ScheduleSvc.Entry(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding calendar entry by ID")
	}
	if !canEdit(ctx, e) {
		return errHttpForbidden
	}
	if err := api.deps.ScheduleSvc.DeleteEntry(reqCtx, e.ID); err != nil {
		return errors.Wrap(err, "deleting calendar entry")
	}
	return ctx.NoContent(http.StatusNoContent)
}
