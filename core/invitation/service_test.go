package invitation_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/client"
	"github.com/atelierhq/atelier/core/invitation"
	"github.com/atelierhq/atelier/core/staff"
	"github.com/atelierhq/atelier/core/user"
	emailsvc "github.com/atelierhq/atelier/services/email"
	inmemdb "github.com/atelierhq/atelier/storage/database/inmem"
	testutil "github.com/atelierhq/atelier/tests"
)

type fixture struct {
	svc      *invitation.Service
	users    *user.Service
	staff    *staff.Service
	clients  *client.Service
	mail     *emailsvc.ConsoleServiceMock
	userRepo user.Repository
	db       *inmemdb.DB
	admin    user.User
}

func newFixture(t *testing.T) *fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	db := inmemdb.NewDB()
	mail := emailsvc.NewConsoleServiceMock(logger, conf)

	userRepo := inmemdb.NewUserRepository(db)
	users := user.NewService(userRepo, mail, conf)
	staffSvc := staff.NewService(inmemdb.NewStaffRepository(db), conf)
	clientSvc := client.NewService(inmemdb.NewClientRepository(db))
	svc := invitation.NewService(inmemdb.NewInvitationRepository(db), users, staffSvc, clientSvc, inmemdb.Transactor{}, mail, conf)

	return &fixture{
		svc:      svc,
		users:    users,
		staff:    staffSvc,
		clients:  clientSvc,
		mail:     mail,
		userRepo: userRepo,
		db:       db,
		admin:    testutil.CreateUser(t, userRepo, "Admin", "admin@atelier.test", testutil.Password, user.RoleAdmin, true),
	}
}

// lastToken extracts the token from the last invitation email.
func (f *fixture) lastToken(t *testing.T) string {
	sent := f.mail.SentMessages()
	require.NotEmpty(t, sent)
	data, ok := sent[len(sent)-1].TemplateData.(map[string]interface{})
	require.True(t, ok)
	link, err := url.Parse(data["Link"].(string))
	require.NoError(t, err)
	return link.Query().Get("token")
}

func fieldOf(t *testing.T, err error) string {
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
	require.NotEmpty(t, verr.Fields)
	return verr.Fields[0].Field
}

func newUser(name string) user.NewUser {
	return user.NewUser{Name: name, Password: testutil.Password, PasswordConfirm: testutil.Password}
}

func TestService_InviteAndAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := testutil.CreateStaff(t, inmemdb.NewStaffRepository(f.db), "Grace", "grace@atelier.test", staff.RoleStaff)

	inv, err := f.svc.Invite(ctx, f.admin, invitation.NewInvitation{
		Email: "grace@atelier.test", Name: "Grace", Role: user.RoleStaff, StaffID: s.ID,
	})
	require.NoError(t, err)
	assert.True(t, inv.IsPending(time.Now()))
	assert.Equal(t, f.admin.ID, inv.InvitedBy)
	assert.NotEmpty(t, inv.TokenHash)

	sent := f.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "grace@atelier.test", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "/setup-password?token=")

	token := f.lastToken(t)
	got, err := f.svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)

	usr, err := f.svc.Accept(ctx, token, newUser(""))
	require.NoError(t, err)
	assert.Equal(t, "Grace", usr.Name)
	assert.Equal(t, "grace@atelier.test", usr.Email)
	assert.Equal(t, user.RoleStaff, usr.Role)
	assert.NoError(t, usr.CheckPassword(testutil.Password))

	linked, err := f.staff.LinkedUserID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, linked)

	inv, err = f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, inv.IsAccepted())

	_, err = f.svc.Accept(ctx, token, newUser(""))
	assert.Equal(t, "token", fieldOf(t, err))
	assert.Equal(t, invitation.ErrAccepted, errors.Cause(err.(*core.ValidationError).Err))
}

func TestService_InviteClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := testutil.CreateClient(t, inmemdb.NewClientRepository(f.db), "Acme")

	_, err := f.svc.Invite(ctx, f.admin, invitation.NewInvitation{
		Email: "buyer@acme.test", Name: "Buyer", Role: user.RoleClient, ClientID: c.ID,
	})
	require.NoError(t, err)
	assert.Contains(t, f.mail.SentMessages()[0].TextContent, "/client/setup-password?token=")

	usr, err := f.svc.Accept(ctx, f.lastToken(t), newUser("Bea Buyer"))
	require.NoError(t, err)
	assert.Equal(t, "Bea Buyer", usr.Name)
	assert.Equal(t, user.RoleClient, usr.Role)

	portal, err := f.clients.GetByUserID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, portal.ID)
}

func TestService_InviteRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	staffRepo := inmemdb.NewStaffRepository(f.db)
	s := testutil.CreateStaff(t, staffRepo, "Grace", "grace@atelier.test", staff.RoleStaff)
	member := testutil.CreateUser(t, f.userRepo, "Member", "member@atelier.test", testutil.Password, user.RoleStaff, true)

	ni := invitation.NewInvitation{Email: "grace@atelier.test", Name: "Grace", Role: user.RoleAdmin, StaffID: s.ID}
	_, err := f.svc.Invite(ctx, member, ni)
	assert.Equal(t, "role", fieldOf(t, err), "staff cannot invite admins")

	ni.Role = user.RoleStaff
	ni.Email = "member@atelier.test"
	_, err = f.svc.Invite(ctx, f.admin, ni)
	assert.Equal(t, "email", fieldOf(t, err), "email already has an account")

	ni.Email = "grace@atelier.test"
	ni.StaffID = "3c0d8b9e-8f57-4c1e-9a43-000000000000"
	_, err = f.svc.Invite(ctx, f.admin, ni)
	assert.Equal(t, "staff_id", fieldOf(t, err), "unknown staff record")

	ni.StaffID = s.ID
	_, err = f.svc.Invite(ctx, f.admin, ni)
	require.NoError(t, err)
	_, err = f.svc.Invite(ctx, f.admin, ni)
	assert.Equal(t, "email", fieldOf(t, err), "already invited")

	require.NoError(t, f.staff.LinkUser(ctx, s.ID, member.ID))
	ni.Email = "other@atelier.test"
	_, err = f.svc.Invite(ctx, f.admin, ni)
	assert.Equal(t, "staff_id", fieldOf(t, err), "profile already linked")
}

func TestService_ResendAndRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := testutil.CreateStaff(t, inmemdb.NewStaffRepository(f.db), "Grace", "grace@atelier.test", staff.RoleStaff)

	inv, err := f.svc.Invite(ctx, f.admin, invitation.NewInvitation{
		Email: "grace@atelier.test", Name: "Grace", Role: user.RoleStaff, StaffID: s.ID,
	})
	require.NoError(t, err)
	oldToken := f.lastToken(t)

	_, err = f.svc.Resend(ctx, inv, f.admin.Name)
	require.NoError(t, err)
	newToken := f.lastToken(t)
	assert.NotEqual(t, oldToken, newToken)

	_, err = f.svc.Validate(ctx, oldToken)
	assert.Equal(t, invitation.ErrInvalidToken, err)
	_, err = f.svc.Validate(ctx, newToken)
	assert.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, inv.ID))
	_, err = f.svc.Validate(ctx, newToken)
	assert.Equal(t, invitation.ErrInvalidToken, err)
	assert.Equal(t, invitation.ErrNotFound, f.svc.Revoke(ctx, inv.ID))
}

func TestService_ValidateEmptyToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Validate(context.Background(), "")
	assert.Equal(t, invitation.ErrInvalidToken, err)
	assert.True(t, invitation.IsTokenError(err))
	assert.False(t, invitation.IsTokenError(invitation.ErrNotFound))
}
