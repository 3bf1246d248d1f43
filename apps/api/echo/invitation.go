package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/invitation"
)

// InvitationPreview is what the password setup page shows before the account exists.
type InvitationPreview struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type invitationApi struct {
	*Server
}

func registerInvitationAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *Server) {
	api := invitationApi{s}

	// un-authed endpoints
	g.GET("/invitations/token/:token", api.lookup)

	ig := g.Group("/invitations", append(authed, adminMiddleware())...)
	ig.GET("", api.query)
	ig.POST("", api.create)
	ig.GET("/:id", api.retrieve)
	ig.POST("/:id/resend", api.resend)
	ig.DELETE("/:id", api.revoke)
}

func (api invitationApi) create(ctx echo.Context) error {
	var data invitation.NewInvitation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvitation")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	inviter, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	inv, err := api.deps.InvitationSvc.Invite(ctx.Request().Context(), inviter, data)
	if err != nil {
		return errors.Wrap(err, "inviting")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api invitationApi) query(ctx echo.Context) error {
	filter := new(invitation.QueryFilter)
	err := echo.QueryParamsBinder(ctx).
		String("email", &filter.Email).
		Bool("pending", &filter.Pending).
		BindError()
	if err != nil {
		return err
	}

	invs, err := api.deps.InvitationSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying invitations")
	}
	if invs == nil {
		invs = []invitation.Invitation{}
	}
	return ctx.JSON(http.StatusOK, invs)
}

func (api invitationApi) retrieve(ctx echo.Context) error {
	inv, err := api.deps.InvitationSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding invitation by ID")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api invitationApi) resend(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	inv, err := api.deps.InvitationSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding invitation by ID")
	}
	inviter, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	inv, err = api.deps.InvitationSvc.Resend(reqCtx, inv, inviter.Name)
	if err != nil {
		return errors.Wrap(err, "resending invitation")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api invitationApi) revoke(ctx echo.Context) error {
	if err := api.deps.InvitationSvc.Revoke(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "revoking invitation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// lookup validates a setup link. Unusable tokens answer 400 with the reason.
func (api invitationApi) lookup(ctx echo.Context) error {
	inv, err := api.deps.InvitationSvc.Validate(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		if invitation.IsTokenError(err) {
			return core.NewFieldError("token", errors.Cause(err))
		}
		return errors.Wrap(err, "validating invitation")
	}
	return ctx.JSON(http.StatusOK, InvitationPreview{
		Email:     inv.Email,
		Name:      inv.Name,
		Role:      inv.Role,
		ExpiresAt: inv.ExpiresAt,
	})
}
