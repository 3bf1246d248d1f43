package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier/core/billing"
	"github.com/atelierhq/atelier/core/client"
	"github.com/atelierhq/atelier/core/dashboard"
	"github.com/atelierhq/atelier/core/project"
)

type dashboardApi struct {
	*Server
}

func registerDashboardAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := dashboardApi{s}
	dg := g.Group("/dashboard", append(authed, staffMiddleware())...)
	dg.GET("/todos", api.todos)
	dg.GET("/overview", api.overview)
}

// todos lists the caller's work; admins see the whole agency.
func (api dashboardApi) todos(ctx echo.Context) error {
	self, _ := getContextStaff(ctx)
	todos, err := api.deps.DashboardSvc.Todos(ctx.Request().Context(), dashboard.Viewer{
		StaffID: self.ID,
		IsAdmin: isAdmin(ctx),
	})
	if err != nil {
		return errors.Wrap(err, "building to-dos")
	}
	if todos == nil {
		todos = []dashboard.Todo{}
	}
	return ctx.JSON(http.StatusOK, todos)
}

func (api dashboardApi) overview(ctx echo.Context) error {
	ov, err := api.deps.DashboardSvc.Overview(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}

// Client portal

type PortalBilling struct {
	Records     []billing.Record `json:"records"`
	VATRate     decimal.Decimal  `json:"vat_rate"`
	Outstanding decimal.Decimal  `json:"outstanding"`
}

type portalApi struct {
	*Server
}

func registerPortalAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := portalApi{s}
	pg := g.Group("/portal", append(authed, clientMiddleware())...)
	pg.GET("/projects", api.projects)
	pg.GET("/projects/:id", api.project)
	pg.GET("/billing", api.billing)
}

func portalClient(ctx echo.Context) (client.Client, error) {
	c, ok := getContextClient(ctx)
	if !ok {
		return client.Client{}, errHttpForbidden
	}
	return c, nil
}

func (api portalApi) projects(ctx echo.Context) error {
	c, err := portalClient(ctx)
	if err != nil {
		return err
	}
	projects, err := api.deps.ProjectSvc.Query(ctx.Request().Context(), &project.QueryFilter{ClientID: c.ID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api portalApi) project(ctx echo.Context) error {
	c, err := portalClient(ctx)
	if err != nil {
		return err
	}
	p, err := api.deps.ProjectSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding project by ID")
	}
	if p.ClientID != c.ID {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, p)
}

// billing shows the client what was invoiced to them. Drafts stay internal.
func (api portalApi) billing(ctx echo.Context) error {
	c, err := portalClient(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	records, err := api.deps.BillingSvc.Query(reqCtx, &billing.QueryFilter{
		ClientID: c.ID,
		Status:   []string{billing.StatusInvoiced, billing.StatusPaid},
	}, nil)
	if err != nil {
		return errors.Wrap(err, "querying billing records")
	}
	if records == nil {
		records = []billing.Record{}
	}
	outstanding, err := api.deps.BillingSvc.Outstanding(reqCtx, c.ID)
	if err != nil {
		return errors.Wrap(err, "computing outstanding amount")
	}
	return ctx.JSON(http.StatusOK, PortalBilling{
		Records:     records,
		VATRate:     api.deps.BillingSvc.VATRate(),
		Outstanding: outstanding,
	})
}
