package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/client"
	"github.com/atelierhq/atelier/core/project"
	"github.com/atelierhq/atelier/core/staff"
	"github.com/atelierhq/atelier/core/user"
	logsvc "github.com/atelierhq/atelier/services/logger"
)

// Password satisfies the password policy.
const Password = "Xk9#vWq2!z"

// NewConfig returns the defaults with test mode on.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.Database.Engine = "memory"
	conf.Realtime.ListenNotify = false
	return conf
}

// NewLogger returns a logger that discards everything.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd, role string, isActive bool, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStaff(t *testing.T, repo staff.Repository, name, email, role string) staff.Staff {
	t.Helper()
	now := time.Now().UTC()
	s, err := repo.CreateStaff(context.Background(), staff.Staff{
		Name:           name,
		Email:          email,
		Role:           role,
		AvailableHours: 37.5,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreateStaff() failed: %v", err)
	}
	return s
}

func CreateClient(t *testing.T, repo client.Repository, name string) client.Client {
	t.Helper()
	now := time.Now().UTC()
	c, err := repo.CreateClient(context.Background(), client.Client{
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateClient() failed: %v", err)
	}
	return c
}

func CreateProject(t *testing.T, repo project.Repository, clientID, name, stage string, value int64, due *time.Time) project.Project {
	t.Helper()
	now := time.Now().UTC()
	p, err := repo.CreateProject(context.Background(), project.Project{
		ClientID:  clientID,
		Name:      name,
		Stage:     stage,
		Value:     decimal.NewFromInt(value),
		DueDate:   due,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	return p
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
