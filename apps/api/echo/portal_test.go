package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/atelierhq/atelier/apps/api/echo"
	"github.com/atelierhq/atelier/core/billing"
	"github.com/atelierhq/atelier/core/project"
	"github.com/atelierhq/atelier/core/user"
	testutil "github.com/atelierhq/atelier/tests"
)

func Test_portalApi(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	acmeUsr, acme := env.clientUser(t, "Acme", "acme@client.test")
	other := testutil.CreateClient(t, env.clientRepo, "Globex")
	mine := testutil.CreateProject(t, env.projectRepo, acme.ID, "Rebrand", project.StageIncoming, 1000, nil)
	theirs := testutil.CreateProject(t, env.projectRepo, other.ID, "Website", project.StageIncoming, 500, nil)
	staffUsr, _ := env.staffUser(t, "Sam Staff", "sam@atelier.test", user.RoleStaff)
	token := env.token(t, acmeUsr)

	invoiced, err := env.billingSvc.Create(ctx, billing.NewRecord{ProjectID: mine.ID, Description: "Deposit", Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, err = env.billingSvc.SetStatus(ctx, invoiced, billing.StatusInvoiced)
	require.NoError(t, err)
	_, err = env.billingSvc.Create(ctx, billing.NewRecord{ProjectID: mine.ID, Description: "Draft", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	_, err = env.billingSvc.Create(ctx, billing.NewRecord{ProjectID: theirs.ID, Description: "Other", Amount: decimal.NewFromInt(70)})
	require.NoError(t, err)

	env.run(t, []httpTest{
		{name: "staff routes are closed", path: "/v1/projects", token: token, wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
		{name: "dashboard is closed", path: "/v1/dashboard/todos", token: token, wantCode: http.StatusForbidden},
		{name: "staff have no portal", path: "/v1/portal/projects", token: env.token(t, staffUsr), wantCode: http.StatusForbidden},
		{name: "another client's project", path: "/v1/portal/projects/" + theirs.ID, token: token, wantCode: http.StatusNotFound},
		{name: "unknown project", path: "/v1/portal/projects/0b5c7a3e-1f0a-4d8e-9b7f-2c3d4e5f6a7b", token: token, wantCode: http.StatusNotFound},
	})

	t.Run("projects", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/portal/projects", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		projects := decode[[]project.Project](t, rec)
		require.Len(t, projects, 1)
		assert.Equal(t, mine.ID, projects[0].ID)

		rec = env.do(t, http.MethodGet, "/v1/portal/projects/"+mine.ID, token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("billing hides drafts", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/portal/billing", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		pb := decode[PortalBilling](t, rec)
		require.Len(t, pb.Records, 1)
		assert.Equal(t, invoiced.ID, pb.Records[0].ID)
		assert.True(t, decimal.RequireFromString("0.2").Equal(pb.VATRate), pb.VATRate.String())
		assert.True(t, decimal.NewFromInt(120).Equal(pb.Outstanding), pb.Outstanding.String())
	})

	t.Run("client without a profile", func(t *testing.T) {
		orphan := testutil.CreateUser(t, env.userRepo, "Orphan", "orphan@client.test", testutil.Password, user.RoleClient, true)
		rec := env.do(t, http.MethodGet, "/v1/portal/projects", env.token(t, orphan), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
