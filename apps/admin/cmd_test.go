package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/core/staff"
	"github.com/atelierhq/atelier/core/user"
	inmemdb "github.com/atelierhq/atelier/storage/database/inmem"
	testutil "github.com/atelierhq/atelier/tests"
)

func setup(t *testing.T) *commandLine {
	t.Helper()
	db := inmemdb.NewDB()
	return &commandLine{
		usrRepo:  inmemdb.NewUserRepository(db),
		staffSvc: staff.NewService(inmemdb.NewStaffRepository(db), testutil.NewConfig()),
	}
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
}

func (cli *commandLine) runTests(t *testing.T, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var got []string
	orig := migrateFunc
	migrateFunc = func(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
		if command == "lol" {
			return fmt.Errorf("%q: no such command", command)
		}
		got = append([]string{command}, args...)
		return nil
	}
	t.Cleanup(func() { migrateFunc = orig })

	cli.runTests(t, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}},
	})
	assert.Equal(t, []string{"up"}, got)

	cli.runTests(t, []cliTest{{name: "up-to", args: []string{"migrate", "up-to", "3"}}})
	assert.Equal(t, []string{"up-to", "3"}, got)

	err := cli.run([]string{"admin", "migrate", "lol"})
	assert.EqualError(t, err, `"lol": no such command`)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	cli.runTests(t, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-name", "Ada"}, pwd: testutil.Password, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Ada", "-email", "ada@atelier.test"}, wantErr: errHelp},
		{name: "create admin", args: []string{"adduser", "-name", " Ada Admin ", "-email", "ADA@atelier.test", "-admin"}, pwd: testutil.Password},
	})

	usr, err := cli.usrRepo.GetUserByEmail(ctx, "ada@atelier.test")
	require.NoError(t, err)
	assert.Equal(t, "Ada Admin", usr.Name)
	assert.Equal(t, user.RoleAdmin, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(testutil.Password))

	s, err := cli.staffSvc.GetByUserID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@atelier.test", s.Email)
	assert.Equal(t, staff.RoleAdmin, s.Role)

	t.Run("update keeps the profile", func(t *testing.T) {
		mockPassword(t, "n3w-Secret!")
		require.NoError(t, cli.run([]string{"admin", "adduser", "-name", "Ada", "-email", "ada@atelier.test"}))

		updated, err := cli.usrRepo.GetUserByEmail(ctx, "ada@atelier.test")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, updated.ID)
		assert.Equal(t, user.RoleStaff, updated.Role)
		assert.NoError(t, updated.CheckPassword("n3w-Secret!"))

		members, err := cli.staffSvc.Query(ctx, &staff.QueryFilter{}, nil)
		require.NoError(t, err)
		assert.Len(t, members, 1)
	})

	t.Run("links an existing staff record", func(t *testing.T) {
		_, err := cli.staffSvc.Create(ctx, staff.NewStaff{Name: "Sam", Email: "sam@atelier.test", Role: staff.RoleStaff})
		require.NoError(t, err)
		mockPassword(t, testutil.Password)
		require.NoError(t, cli.run([]string{"admin", "adduser", "-name", "Sam", "-email", "sam@atelier.test"}))

		sam, err := cli.usrRepo.GetUserByEmail(ctx, "sam@atelier.test")
		require.NoError(t, err)
		s, err := cli.staffSvc.GetByUserID(ctx, sam.ID)
		require.NoError(t, err)
		assert.Equal(t, "Sam", s.Name)

		members, err := cli.staffSvc.Query(ctx, &staff.QueryFilter{}, nil)
		require.NoError(t, err)
		assert.Len(t, members, 2)
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, cli.usrRepo, "Ada", "ada@atelier.test", testutil.Password, user.RoleAdmin, true)

	cli.runTests(t, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "ada@atelier.test"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "ghost@atelier.test"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", " ADA@atelier.test"}, pwd: "lmao-123"},
	})

	refreshed, err := cli.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao-123"))
	assert.Error(t, refreshed.CheckPassword(testutil.Password))
}
