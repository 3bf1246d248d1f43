package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/staff"
	"github.com/atelierhq/atelier/core/user"
)

// addUser updates or creates an active staff login, along with its staff profile.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	role := user.RoleStaff
	if isAdmin {
		role = user.RoleAdmin
	}

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	exists := err == nil
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}

	now := time.Now().UTC()
	if !exists {
		usr = user.User{Email: email, CreatedAt: now}
	}
	usr.Name = name
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	if err != nil {
		return errors.Wrap(err, "saving user")
	}
	return cli.ensureStaffProfile(ctx, usr)
}

// ensureStaffProfile links usr to the staff record sharing its email, creating the record if needed.
func (cli *commandLine) ensureStaffProfile(ctx context.Context, usr user.User) error {
	if _, err := cli.staffSvc.GetByUserID(ctx, usr.ID); err == nil {
		return nil
	}

	members, err := cli.staffSvc.Query(ctx, &staff.QueryFilter{Search: usr.Email}, nil)
	if err != nil {
		return errors.Wrap(err, "querying staff")
	}
	for _, s := range members {
		if s.Email == usr.Email {
			return errors.Wrap(cli.staffSvc.LinkUser(ctx, s.ID, usr.ID), "linking staff profile")
		}
	}

	s, err := cli.staffSvc.Create(ctx, staff.NewStaff{Name: usr.Name, Email: usr.Email, Role: usr.Role})
	if err != nil {
		return errors.Wrap(err, "creating staff profile")
	}
	return errors.Wrap(cli.staffSvc.LinkUser(ctx, s.ID, usr.ID), "linking staff profile")
}
