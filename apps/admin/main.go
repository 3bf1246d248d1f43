package main

import (
	"fmt"
	"log"
	"os"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/staff"
	logsvc "github.com/atelierhq/atelier/services/logger"
	"github.com/atelierhq/atelier/storage/database"
	pgdb "github.com/atelierhq/atelier/storage/database/postgres"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	if conf.Database.Engine != "postgres" {
		logger.Fatal(fmt.Sprintf("the admin commands need the postgres engine, got %q", conf.Database.Engine))
	}

	// set up DB
	errAndDie(logger, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(logger, err)

	// start CLI
	cli := commandLine{
		db:       db,
		usrRepo:  pgdb.NewUserRepository(db),
		staffSvc: staff.NewService(pgdb.NewStaffRepository(db), conf),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
