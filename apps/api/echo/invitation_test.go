package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/atelierhq/atelier/apps/api/echo"
	"github.com/atelierhq/atelier/core/invitation"
	"github.com/atelierhq/atelier/core/user"
	testutil "github.com/atelierhq/atelier/tests"
)

func (env *testEnv) lastInvitationToken(t *testing.T) string {
	t.Helper()
	sent := env.mail.SentMessages()
	require.NotEmpty(t, sent)
	msg := sent[len(sent)-1]
	require.Equal(t, "invitation", msg.TemplateName)
	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)
	link, err := url.Parse(data["Link"].(string))
	require.NoError(t, err)
	return link.Query().Get("token")
}

func Test_invitationApi(t *testing.T) {
	env := setup(t)
	admin, _ := env.staffUser(t, "Ada Admin", "ada@atelier.test", user.RoleAdmin)
	staffUsr, _ := env.staffUser(t, "Sam Staff", "sam@atelier.test", user.RoleStaff)
	kim := testutil.CreateStaff(t, env.staffRepo, "Kim Designer", "kim@atelier.test", user.RoleStaff)
	token := env.token(t, admin)

	env.run(t, []httpTest{
		{
			name: "admins only", method: http.MethodPost, path: "/v1/invitations", token: env.token(t, staffUsr),
			body:     invitation.NewInvitation{Email: "kim@atelier.test", Name: "Kim", Role: user.RoleStaff, StaffID: kim.ID},
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
		{
			name: "staff profile required", method: http.MethodPost, path: "/v1/invitations", token: token,
			body:     invitation.NewInvitation{Email: "kim@atelier.test", Name: "Kim", Role: user.RoleStaff},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"staff_id": "this field is required for the role"}`),
		},
		{
			name: "existing login", method: http.MethodPost, path: "/v1/invitations", token: token,
			body:     invitation.NewInvitation{Email: "sam@atelier.test", Name: "Sam", Role: user.RoleStaff, StaffID: kim.ID},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"email": "a user with this email already exists"}`),
		},
		{
			name: "unknown role", method: http.MethodPost, path: "/v1/invitations", token: token,
			body:     invitation.NewInvitation{Email: "kim@atelier.test", Name: "Kim", Role: "owner", StaffID: kim.ID},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"role": "invalid role"}`),
		},
		{
			name: "bad token", path: "/v1/invitations/token/nope",
			wantCode: http.StatusBadRequest, wantData: []byte(`{"token": "the invitation link is invalid"}`),
		},
	})

	rec := env.do(t, http.MethodPost, "/v1/invitations", token, invitation.NewInvitation{
		Email: " Kim@Atelier.test ", Name: "Kim", Role: user.RoleStaff, StaffID: kim.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[invitation.Invitation](t, rec)
	assert.Equal(t, "kim@atelier.test", inv.Email)
	assert.Equal(t, admin.ID, inv.InvitedBy)
	assert.Nil(t, inv.AcceptedAt)
	invToken := env.lastInvitationToken(t)
	require.NotEmpty(t, invToken)

	t.Run("duplicate invitation", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/invitations", token, invitation.NewInvitation{
			Email: "kim@atelier.test", Name: "Kim", Role: user.RoleStaff, StaffID: kim.ID,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"email": "a pending invitation exists for this email"}`, rec.Body.String())
	})

	t.Run("pending filter", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/invitations?pending=true", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		invs := decode[[]invitation.Invitation](t, rec)
		require.Len(t, invs, 1)
		assert.Equal(t, inv.ID, invs[0].ID)
	})

	t.Run("lookup", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/invitations/token/"+url.PathEscape(invToken), "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		preview := decode[InvitationPreview](t, rec)
		assert.Equal(t, "kim@atelier.test", preview.Email)
		assert.Equal(t, user.RoleStaff, preview.Role)
	})

	t.Run("signup", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/auth/signup", "", invitation.AcceptInvitation{
			Token: invToken, Password: "123456", PasswordConfirm: "123456",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"password"`)

		rec = env.do(t, http.MethodPost, "/v1/auth/signup", "", invitation.AcceptInvitation{
			Token: invToken, Name: "Kim Designer", Password: testutil.Password, PasswordConfirm: testutil.Password,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[LoginResponse](t, rec)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "kim@atelier.test", resp.User.Email)
		assert.Equal(t, user.RoleStaff, resp.User.Role)

		linked, err := env.staffSvc.Get(context.Background(), kim.ID)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, linked.UserID)

		rec = env.do(t, http.MethodGet, "/v1/auth/me", resp.Token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("links are single use", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/auth/signup", "", invitation.AcceptInvitation{
			Token: invToken, Password: testutil.Password, PasswordConfirm: testutil.Password,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"token": "the invitation has already been accepted"}`, rec.Body.String())

		rec = env.do(t, http.MethodGet, "/v1/invitations/token/"+url.PathEscape(invToken), "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("resend and revoke", func(t *testing.T) {
		pat := testutil.CreateStaff(t, env.staffRepo, "Pat Producer", "pat@atelier.test", user.RoleStaff)
		rec := env.do(t, http.MethodPost, "/v1/invitations", token, invitation.NewInvitation{
			Email: "pat@atelier.test", Name: "Pat", Role: user.RoleStaff, StaffID: pat.ID,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		patInv := decode[invitation.Invitation](t, rec)
		first := env.lastInvitationToken(t)

		rec = env.do(t, http.MethodPost, "/v1/invitations/"+patInv.ID+"/resend", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		second := env.lastInvitationToken(t)
		assert.NotEqual(t, first, second)

		rec = env.do(t, http.MethodGet, "/v1/invitations/token/"+url.PathEscape(first), "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodDelete, "/v1/invitations/"+patInv.ID, token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, http.MethodGet, "/v1/invitations/token/"+url.PathEscape(second), "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
