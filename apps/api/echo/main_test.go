package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/atelierhq/atelier/apps/api/echo"
	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/billing"
	"github.com/atelierhq/atelier/core/chat"
	"github.com/atelierhq/atelier/core/client"
	"github.com/atelierhq/atelier/core/dashboard"
	"github.com/atelierhq/atelier/core/invitation"
	"github.com/atelierhq/atelier/core/project"
	"github.com/atelierhq/atelier/core/schedule"
	"github.com/atelierhq/atelier/core/staff"
	"github.com/atelierhq/atelier/core/user"
	emailsvc "github.com/atelierhq/atelier/services/email"
	inmemdb "github.com/atelierhq/atelier/storage/database/inmem"
	testutil "github.com/atelierhq/atelier/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData []byte
}

type testEnv struct {
	srv  *Server
	conf *core.Config
	mail *emailsvc.ConsoleServiceMock
	hub  *chat.Hub

	userRepo    user.Repository
	staffRepo   staff.Repository
	clientRepo  client.Repository
	projectRepo project.Repository

	staffSvc   *staff.Service
	clientSvc  *client.Service
	projectSvc *project.Service
	billingSvc *billing.Service
}

func setup(t *testing.T, configure ...func(conf *core.Config)) *testEnv {
	t.Helper()
	conf := testutil.NewConfig()
	conf.Server.AuthRateLimit = 0 // rate limiting has its own test
	for _, fn := range configure {
		fn(conf)
	}
	logger := testutil.NewLogger(conf)

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	db := inmemdb.NewDB()
	tx := inmemdb.Transactor{}
	env := &testEnv{
		conf:        conf,
		mail:        emailsvc.NewConsoleServiceMock(logger, conf),
		hub:         chat.NewHub(16),
		userRepo:    inmemdb.NewUserRepository(db),
		staffRepo:   inmemdb.NewStaffRepository(db),
		clientRepo:  inmemdb.NewClientRepository(db),
		projectRepo: inmemdb.NewProjectRepository(db),
	}
	t.Cleanup(env.hub.Close)

	usrSvc := user.NewService(env.userRepo, env.mail, conf)
	env.staffSvc = staff.NewService(env.staffRepo, conf)
	env.clientSvc = client.NewService(env.clientRepo)
	env.projectSvc = project.NewService(env.projectRepo)
	env.billingSvc = billing.NewService(inmemdb.NewBillingRepository(db), env.projectSvc, conf)
	scheduleSvc := schedule.NewService(inmemdb.NewScheduleRepository(db))

	env.srv = NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		Tx:            tx,
		StatusCheck:   func(context.Context) error { return nil },
		Hub:           env.hub,
		UserSvc:       usrSvc,
		StaffSvc:      env.staffSvc,
		ClientSvc:     env.clientSvc,
		ProjectSvc:    env.projectSvc,
		BillingSvc:    env.billingSvc,
		InvitationSvc: invitation.NewService(inmemdb.NewInvitationRepository(db), usrSvc, env.staffSvc, env.clientSvc, tx, env.mail, conf),
		ScheduleSvc:   scheduleSvc,
		ChatSvc:       chat.NewService(inmemdb.NewChatRepository(db), env.hub, conf),
		DashboardSvc:  dashboard.NewService(env.projectSvc, env.staffSvc, scheduleSvc, env.billingSvc, env.clientSvc, conf),
	})
	t.Cleanup(func() { _ = env.srv.Shutdown(context.Background()) })
	return env
}

// staffUser creates a login linked to a staff record. role is user.RoleAdmin or user.RoleStaff.
func (env *testEnv) staffUser(t *testing.T, name, email, role string) (user.User, staff.Staff) {
	t.Helper()
	usr := testutil.CreateUser(t, env.userRepo, name, email, testutil.Password, role, true)
	s := testutil.CreateStaff(t, env.staffRepo, name, email, role)
	require.NoError(t, env.staffSvc.LinkUser(context.Background(), s.ID, usr.ID))
	s.UserID = usr.ID
	return usr, s
}

// clientUser creates a portal login for a new client organisation.
func (env *testEnv) clientUser(t *testing.T, name, email string) (user.User, client.Client) {
	t.Helper()
	usr := testutil.CreateUser(t, env.userRepo, name, email, testutil.Password, user.RoleClient, true)
	c := testutil.CreateClient(t, env.clientRepo, name)
	require.NoError(t, env.clientSvc.LinkUser(context.Background(), c.ID, usr.ID))
	c.UserID = usr.ID
	return usr, c
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := env.srv.Tokens().Token(usr)
	require.NoError(t, err)
	return token
}

func newAuthRequest(t *testing.T, method, path, token string, data interface{}) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	switch d := data.(type) {
	case nil:
	case []byte:
		body.Write(d)
	case string:
		body.WriteString(d)
	default:
		require.NoError(t, json.NewEncoder(&body).Encode(d))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

// do serves one request.
func (env *testEnv) do(t *testing.T, method, path, token string, data interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(t, method, path, token, data)
	env.srv.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := env.do(t, method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err, "jsonBytesEqual() failed to compare") {
		assert.True(t, ok, "data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
