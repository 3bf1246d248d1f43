package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/billing"
	"github.com/atelierhq/atelier/core/project"
)

type billingApi struct {
	*Server
}

func registerBillingAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := billingApi{s}
	admin := adminMiddleware()

	bg := g.Group("/billing", append(authed, staffMiddleware())...)
	bg.GET("", api.query)
	bg.POST("", api.create, admin)
	bg.GET("/summary", api.summary)
	bg.GET("/:id", api.retrieve)
	bg.PUT("/:id/status", api.setStatus, admin)
	bg.DELETE("/:id", api.destroy, admin)

	eg := g.Group("/expenses", append(authed, staffMiddleware())...)
	eg.GET("", api.queryExpenses)
	eg.POST("", api.createExpense, admin)
	eg.GET("/:id", api.retrieveExpense)
	eg.PUT("/:id", api.updateExpense, admin)
	eg.DELETE("/:id", api.destroyExpense, admin)
}

// Records

func (api billingApi) create(ctx echo.Context) error {
	var data billing.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	r, err := api.deps.BillingSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating billing record")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api billingApi) query(ctx echo.Context) error {
	filter := new(billing.QueryFilter)
	b := echo.QueryParamsBinder(ctx).
		String("project_id", &filter.ProjectID).
		String("client_id", &filter.ClientID).
		Strings("status", &filter.Status)
	dateParam(b, "from", &filter.From)
	dateParam(b, "to", &filter.To)
	if err := b.BindError(); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	records, err := api.deps.BillingSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying billing records")
	}
	if records == nil {
		records = []billing.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

// summary defaults to the current month.
func (api billingApi) summary(ctx echo.Context) error {
	from, to := monthRange(time.Now().UTC())
	from, to, err := bindDateRange(ctx, from, to)
	if err != nil {
		return err
	}
	sum, err := api.deps.BillingSvc.Summary(ctx.Request().Context(), from, to)
	if err != nil {
		return errors.Wrap(err, "summarising billing")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api billingApi) retrieve(ctx echo.Context) error {
	r, err := api.deps.BillingSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding billing record by ID")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api billingApi) setStatus(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	r, err := api.deps.BillingSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding billing record by ID")
	}

	var data billing.SetStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetStatus")
	}
	data.Status = core.CleanString(data.Status, true /* lower */)
	if err := api.validate(&data); err != nil {
		return err
	}

	r, err = api.deps.BillingSvc.SetStatus(reqCtx, r, data.Status)
	if err != nil {
		return errors.Wrap(err, "setting billing status")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api billingApi) destroy(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	r, err := api.deps.BillingSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding billing record by ID")
	}
	if err := api.deps.BillingSvc.Delete(reqCtx, r); err != nil {
		return errors.Wrap(err, "deleting billing record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Expenses

func (api billingApi) createExpense(ctx echo.Context) error {
	var data billing.NewExpense
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExpense")
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

	e, err := api.deps.BillingSvc.CreateExpense(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating expense")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api billingApi) queryExpenses(ctx echo.Context) error {
	filter := new(billing.ExpenseFilter)
	b := echo.QueryParamsBinder(ctx).
		String("project_id", &filter.ProjectID).
		String("category", &filter.Category)
	dateParam(b, "from", &filter.From)
	dateParam(b, "to", &filter.To)
	if err := b.BindError(); err != nil {
		return err
	}
	filter.Category = core.CleanString(filter.Category, true /* lower */)

	expenses, err := api.deps.BillingSvc.Expenses(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying expenses")
	}
	if expenses == nil {
		expenses = []billing.Expense{}
	}
	return ctx.JSON(http.StatusOK, expenses)
}

func (api billingApi) retrieveExpense(ctx echo.Context) error {
	e, err := api.deps.BillingSvc.Expense(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding expense by ID")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api billingApi) updateExpense(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	e, err := api.deps.BillingSvc.Expense(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding expense by ID")
	}

	var data billing.UpdateExpense
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExpense")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	e, err = api.deps.BillingSvc.UpdateExpense(reqCtx, e, data)
	if err != nil {
		return errors.Wrap(err, "updating expense")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api billingApi) destroyExpense(ctx echo.Context) error {
	if err := api.deps.BillingSvc.DeleteExpense(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting expense")
	}
	return ctx.NoContent(http.StatusNoContent)
}
