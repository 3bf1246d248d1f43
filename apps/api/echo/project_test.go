package echoapi_test

import (
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

func Test_projectApi_create(t *testing.T) {
	env := setup(t)
	admin, lead := env.staffUser(t, "Ada Admin", "ada@atelier.test", user.RoleAdmin)
	staffUsr, _ := env.staffUser(t, "Sam Staff", "sam@atelier.test", user.RoleStaff)
	acme := testutil.CreateClient(t, env.clientRepo, "Acme")
	adminToken := env.token(t, admin)
	unknownID := "0b5c7a3e-1f0a-4d8e-9b7f-2c3d4e5f6a7b"

	env.run(t, []httpTest{
		{
			name: "staff cannot create", method: http.MethodPost, path: "/v1/projects", token: env.token(t, staffUsr),
			body:     project.NewProject{ClientID: acme.ID, Name: "Rebrand"},
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
		{
			name: "name required", method: http.MethodPost, path: "/v1/projects", token: adminToken,
			body:     project.NewProject{ClientID: acme.ID},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name": "this field is required"}`),
		},
		{
			name: "unknown client", method: http.MethodPost, path: "/v1/projects", token: adminToken,
			body:     project.NewProject{ClientID: unknownID, Name: "Rebrand"},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"client_id": "client not found"}`),
		},
		{
			name: "unknown stage", method: http.MethodPost, path: "/v1/projects", token: adminToken,
			body:     project.NewProject{ClientID: acme.ID, Name: "Rebrand", Stage: "limbo"},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"stage": "stage not found"}`),
		},
	})

	t.Run("success", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/projects", adminToken, project.NewProject{
			ClientID:    acme.ID,
			Name:        "  Rebrand ",
			Value:       decimal.RequireFromString("1200.499"),
			LeadStaffID: lead.ID,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		p := decode[project.Project](t, rec)
		assert.Equal(t, "Rebrand", p.Name)
		assert.Equal(t, project.StageIncoming, p.Stage)
		assert.True(t, decimal.RequireFromString("1200.5").Equal(p.Value), p.Value.String())

		rec = env.do(t, http.MethodGet, "/v1/projects/"+p.ID, env.token(t, staffUsr), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_projectApi_changeStage(t *testing.T) {
	env := setup(t)
	admin, _ := env.staffUser(t, "Ada Admin", "ada@atelier.test", user.RoleAdmin)
	acme := testutil.CreateClient(t, env.clientRepo, "Acme")
	p := testutil.CreateProject(t, env.projectRepo, acme.ID, "Rebrand", project.StageIncoming, 1000, nil)
	token := env.token(t, admin)
	path := "/v1/projects/" + p.ID + "/stage"

	env.run(t, []httpTest{
		{
			name: "unknown project", method: http.MethodPut, path: "/v1/projects/0b5c7a3e-1f0a-4d8e-9b7f-2c3d4e5f6a7b/stage", token: token,
			body:     project.ChangeStage{Stage: project.StageInProgress},
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "project not found"}),
		},
		{
			name: "unknown stage", method: http.MethodPut, path: path, token: token,
			body:     project.ChangeStage{Stage: "limbo"},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"stage": "stage not found"}`),
		},
	})

	t.Run("billable stage drafts a record", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, path, token, project.ChangeStage{Stage: project.StageInProgress})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[ChangeStageResponse](t, rec)
		assert.Equal(t, project.StageInProgress, resp.Project.Stage)
		require.NotNil(t, resp.Record)
		assert.Equal(t, billing.StatusDraft, resp.Record.Status)
		assert.Equal(t, project.StageInProgress, resp.Record.Stage)
		assert.True(t, decimal.NewFromInt(500).Equal(resp.Record.Amount), resp.Record.Amount.String())
	})

	t.Run("unbilled stage", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, path, token, project.ChangeStage{Stage: project.StageReview})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Nil(t, decode[ChangeStageResponse](t, rec).Record)
	})

	t.Run("re-entering a stage bills once", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, path, token, project.ChangeStage{Stage: project.StageInProgress})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Nil(t, decode[ChangeStageResponse](t, rec).Record)

		rec = env.do(t, http.MethodGet, "/v1/projects/"+p.ID+"/billing", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]billing.Record](t, rec), 1)
	})
}

func Test_projectApi_bookings(t *testing.T) {
	env := setup(t)
	admin, _ := env.staffUser(t, "Ada Admin", "ada@atelier.test", user.RoleAdmin)
	samUsr, sam := env.staffUser(t, "Sam Staff", "sam@atelier.test", user.RoleStaff)
	_, kim := env.staffUser(t, "Kim Staff", "kim@atelier.test", user.RoleStaff)
	acme := testutil.CreateClient(t, env.clientRepo, "Acme")
	p := testutil.CreateProject(t, env.projectRepo, acme.ID, "Rebrand", project.StageIncoming, 1000, nil)
	samToken := env.token(t, samUsr)
	day := testutil.Date(2030, 3, 4)
	path := "/v1/projects/" + p.ID + "/bookings"

	env.run(t, []httpTest{
		{
			name: "staff cannot book others", method: http.MethodPost, path: path, token: samToken,
			body:     project.NewBooking{StaffID: kim.ID, Date: day, Hours: 4},
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
		{
			name: "hours out of range", method: http.MethodPost, path: path, token: samToken,
			body:     project.NewBooking{Date: day, Hours: 25},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "admin books unknown staff", method: http.MethodPost, path: path, token: env.token(t, admin),
			body:     project.NewBooking{StaffID: "0b5c7a3e-1f0a-4d8e-9b7f-2c3d4e5f6a7b", Date: day, Hours: 2},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"staff_id": "staff member not found"}`),
		},
	})

	// staff book themselves by default
	rec := env.do(t, http.MethodPost, path, samToken, project.NewBooking{Date: day, Hours: 4, Notes: "kick-off"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	samBooking := decode[project.Booking](t, rec)
	assert.Equal(t, sam.ID, samBooking.StaffID)
	assert.Equal(t, p.ID, samBooking.ProjectID)

	rec = env.do(t, http.MethodPost, "/v1/bookings", env.token(t, admin), project.NewBooking{ProjectID: p.ID, StaffID: kim.ID, Date: day, Hours: 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	kimBooking := decode[project.Booking](t, rec)

	rec = env.do(t, http.MethodGet, path+"?from=2030-03-01&to=2030-03-31", samToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]project.Booking](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/v1/bookings?staff_id="+sam.ID, samToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]project.Booking](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/v1/bookings?from=someday", samToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.run(t, []httpTest{
		{
			name: "cannot cancel someone else's booking", method: http.MethodDelete, path: "/v1/bookings/" + kimBooking.ID, token: samToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "cancel own booking", method: http.MethodDelete, path: "/v1/bookings/" + samBooking.ID, token: samToken,
			wantCode: http.StatusNoContent,
		},
		{
			name: "gone", path: "/v1/bookings/" + samBooking.ID, token: samToken,
			wantCode: http.StatusNotFound,
		},
	})
}

func Test_projectApi_stages(t *testing.T) {
	env := setup(t)
	admin, _ := env.staffUser(t, "Ada Admin", "ada@atelier.test", user.RoleAdmin)
	staffUsr, _ := env.staffUser(t, "Sam Staff", "sam@atelier.test", user.RoleStaff)
	token := env.token(t, admin)

	rec := env.do(t, http.MethodGet, "/v1/stages", env.token(t, staffUsr), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stages := decode[[]project.Stage](t, rec)
	require.Len(t, stages, 5)
	assert.Equal(t, project.StageIncoming, stages[0].Name)
	assert.True(t, stages[len(stages)-1].IsClosed)

	env.run(t, []httpTest{
		{
			name: "bad name", method: http.MethodPost, path: "/v1/stages", token: token,
			body:     project.NewStage{Name: "on hold", Position: 9},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "duplicate", method: http.MethodPost, path: "/v1/stages", token: token,
			body:     project.NewStage{Name: "Review", Position: 9},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name": "a stage with this name already exists"}`),
		},
		{
			name: "create", method: http.MethodPost, path: "/v1/stages", token: token,
			body:     project.NewStage{Name: "on_hold", Position: 9, Colour: "#aabbcc"},
			wantCode: http.StatusCreated,
		},
		{
			name: "delete unused", method: http.MethodDelete, path: "/v1/stages/on_hold", token: token,
			wantCode: http.StatusNoContent,
		},
	})
}
