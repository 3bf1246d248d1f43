package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/billing"
	"github.com/atelierhq/atelier/core/client"
	"github.com/atelierhq/atelier/core/project"
	"github.com/atelierhq/atelier/core/staff"
)

// ChangeStageResponse carries the billing record drafted by the stage change, if any.
type ChangeStageResponse struct {
	Project project.Project `json:"project"`
	Stage   project.Stage   `json:"stage"`
	Record  *billing.Record `json:"billing_record,omitempty"`
}

type projectApi struct {
	*Server
}

func registerProjectAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := projectApi{s}
	admin := adminMiddleware()

	pg := g.Group("/projects", append(authed, staffMiddleware())...)
	pg.GET("", api.query)
	pg.POST("", api.create, admin)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update, admin)
	pg.DELETE("/:id", api.destroy, admin)
	pg.PUT("/:id/stage", api.changeStage, admin)
	pg.GET("/:id/bookings", api.projectBookings)
	pg.POST("/:id/bookings", api.bookProject)
	pg.GET("/:id/billing", api.projectBilling)

	sg := g.Group("/stages", append(authed, staffMiddleware())...)
	sg.GET("", api.queryStages)
	sg.POST("", api.createStage, admin)
	sg.PUT("/:name", api.updateStage, admin)
	sg.DELETE("/:name", api.destroyStage, admin)

	bg := g.Group("/bookings", append(authed, staffMiddleware())...)
	bg.GET("", api.queryBookings)
	bg.POST("", api.book)
	bg.GET("/:id", api.retrieveBooking)
	bg.DELETE("/:id", api.cancelBooking)
}

// Projects

func (api projectApi) create(ctx echo.Context) error {
	var data project.NewProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	if err := api.checkRefs(reqCtx, data.ClientID, data.LeadStaffID); err != nil {
		return err
	}

	p, err := api.deps.ProjectSvc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, p)
}

// checkRefs turns unknown client or lead staff IDs into field errors.
func (api projectApi) checkRefs(ctx context.Context, clientID, leadStaffID string) error {
	if clientID != "" {
		if _, err := api.deps.ClientSvc.Get(ctx, clientID); err != nil {
			if errors.Cause(err) == client.ErrNotFound {
				return core.NewFieldError("client_id", err)
			}
			return errors.Wrap(err, "finding client")
		}
	}
	if leadStaffID != "" {
		if _, err := api.deps.StaffSvc.Get(ctx, leadStaffID); err != nil {
			if errors.Cause(err) == staff.ErrNotFound {
				return core.NewFieldError("lead_staff_id", err)
			}
			return errors.Wrap(err, "finding lead staff")
		}
	}
	return nil
}

func (api projectApi) query(ctx echo.Context) error {
	filter := new(project.QueryFilter)
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		String("client_id", &filter.ClientID).
		Strings("stage", &filter.Stages).
		String("lead_staff_id", &filter.LeadStaffID).
		BindError()
	if err != nil {
		return err
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	projects, err := api.deps.ProjectSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api projectApi) retrieve(ctx echo.Context) error {
	p, err := api.deps.ProjectSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding project by ID")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api projectApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	p, err := api.deps.ProjectSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding project by ID")
	}

	var data project.UpdateProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProject")
	}
	if err := data.Validate(p, api.deps.Validate); err != nil {
		return err
	}
	var clientID, leadID string
	if data.ClientID != nil {
		clientID = *data.ClientID
	}
	if data.LeadStaffID != nil {
		leadID = *data.LeadStaffID
	}
	if err := api.checkRefs(reqCtx, clientID, leadID); err != nil {
		return err
	}

	p, err = api.deps.ProjectSvc.Update(reqCtx, p, data)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api projectApi) destroy(ctx echo.Context) error {
	if err := api.deps.ProjectSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// changeStage moves the project and drafts the stage's billing record in the same transaction.
func (api projectApi) changeStage(ctx echo.Context) error {
	var data project.ChangeStage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangeStage")
	}
	if err := api.validate(&data); err != nil {
		return err
	}

	var resp ChangeStageResponse
	err := api.deps.Tx.WithinTx(ctx.Request().Context(), func(txCtx context.Context) error {
		orig, err := api.deps.ProjectSvc.Get(txCtx, ctx.Param("id"))
		if err != nil {
			return err
		}
		if resp.Project, resp.Stage, err = api.deps.ProjectSvc.ChangeStage(txCtx, orig, data.Stage); err != nil {
			return err
		}
		rec, err := api.deps.BillingSvc.GenerateForStage(txCtx, resp.Project, resp.Stage)
		switch errors.Cause(err) {
		case nil:
			resp.Record = &rec
		case billing.ErrNothingToBill, billing.ErrAlreadyBilled:
		default:
			return errors.Wrap(err, "generating stage billing")
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "changing project stage")
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api projectApi) projectBookings(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	p, err := api.deps.ProjectSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding project by ID")
	}
	filter := project.BookingFilter{ProjectID: p.ID}
	b := echo.QueryParamsBinder(ctx).String("staff_id", &filter.StaffID)
	dateParam(b, "from", &filter.From)
	dateParam(b, "to", &filter.To)
	if err := b.BindError(); err != nil {
		return err
	}
	return api.respondBookings(ctx, filter)
}

func (api projectApi) bookProject(ctx echo.Context) error {
	p, err := api.deps.ProjectSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding project by ID")
	}
	var data project.NewBooking
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	data.ProjectID = p.ID
	return api.createBooking(ctx, data)
}

func (api projectApi) projectBilling(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	p, err := api.deps.ProjectSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding project by ID")
	}
	records, err := api.deps.BillingSvc.Query(reqCtx, &billing.QueryFilter{ProjectID: p.ID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying billing records")
	}
	if records == nil {
		records = []billing.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

// Stages

func (api projectApi) queryStages(ctx echo.Context) error {
	stages, err := api.deps.ProjectSvc.Stages(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying stages")
	}
	if stages == nil {
		stages = []project.Stage{}
	}
	return ctx.JSON(http.StatusOK, stages)
}

func (api projectApi) createStage(ctx echo.Context) error {
	var data project.NewStage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStage")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	st, err := api.deps.ProjectSvc.CreateStage(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating stage")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api projectApi) updateStage(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	st, err := api.deps.ProjectSvc.Stage(reqCtx, ctx.Param("name"))
	if err != nil {
		return errors.Wrap(err, "finding stage")
	}

	var data project.UpdateStage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStage")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	st, err = api.deps.ProjectSvc.UpdateStage(reqCtx, st, data)
	if err != nil {
		return errors.Wrap(err, "updating stage")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api projectApi) destroyStage(ctx echo.Context) error {
	if err := api.deps.ProjectSvc.DeleteStage(ctx.Request().Context(), ctx.Param("name")); err != nil {
		return errors.Wrap(err, "deleting stage")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Bookings

func (api projectApi) queryBookings(ctx echo.Context) error {
	var filter project.BookingFilter
	b := echo.QueryParamsBinder(ctx).
		String("project_id", &filter.ProjectID).
		String("staff_id", &filter.StaffID)
	dateParam(b, "from", &filter.From)
	dateParam(b, "to", &filter.To)
	if err := b.BindError(); err != nil {
		return err
	}
	return api.respondBookings(ctx, filter)
}

func (api projectApi) respondBookings(ctx echo.Context, filter project.BookingFilter) error {
	bookings, err := api.deps.ProjectSvc.Bookings(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying bookings")
	}
	if bookings == nil {
		bookings = []project.Booking{}
	}
	return ctx.JSON(http.StatusOK, bookings)
}

func (api projectApi) book(ctx echo.Context) error {
	var data project.NewBooking
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	return api.createBooking(ctx, data)
}

// createBooking books staff time. Non-admins may only book themselves and default to it.
func (api projectApi) createBooking(ctx echo.Context, data project.NewBooking) error {
	if !isAdmin(ctx) {
		self, ok := getContextStaff(ctx)
		if !ok {
			return errHttpForbidden
		}
		if data.StaffID == "" {
			data.StaffID = self.ID
		}
		if data.StaffID != self.ID {
			return errHttpForbidden
		}
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

	b, err := api.deps.ProjectSvc.Book(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "booking staff")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api projectApi) retrieveBooking(ctx echo.Context) error {
	b, err := api.deps.ProjectSvc.Booking(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding booking by ID")
	}
	return ctx.JSON(http.StatusOK, b)
}

// cancelBooking is open to admins and to the booked staff member.
func (api projectApi) cancelBooking(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	b, err := api.deps.ProjectSvc.Booking(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding booking by ID")
	}
	if !isAdmin(ctx) {
		if self, ok := getContextStaff(ctx); !ok || self.ID != b.StaffID {
			return errHttpForbidden
		}
	}
	if err := api.deps.ProjectSvc.CancelBooking(reqCtx, b.ID); err != nil {
		return errors.Wrap(err, "cancelling booking")
	}
	return ctx.NoContent(http.StatusNoContent)
}
