package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux

	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	dig_container "github.com/atelierhq/atelier/apps/api/di/dig"
	echoapi "github.com/atelierhq/atelier/apps/api/echo"
	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/chat"
	"github.com/atelierhq/atelier/core/user"
	"github.com/atelierhq/atelier/storage/database"
	pgdb "github.com/atelierhq/atelier/storage/database/postgres"
)

type app struct {
	dig.In

	Conf     *core.Config
	Logger   core.Logger
	DBLogger core.Logger `name:"dbLogger"`
	DB       *sqlx.DB // nil with the memory engine
	Hub      *chat.Hub
	Server   *echoapi.Server
}

func main() {
	c := dig_container.New()
	must(c.Invoke(run))
}

func run(a app) {
	conf, logger := a.Conf, a.Logger

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	core.ParseEmailTemplates(logger, !conf.Debug)
	user.LoadCommonPasswords(logger)

	defer func() {
		if a.DB == nil {
			return
		}
		if err := a.DB.Close(); err != nil {
			a.DBLogger.Error("failed to close", err)
		}
	}()
	defer a.Hub.Close()
	defer logger.Info("Application stopped")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("dbEngine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Chat Relay
	//
	// With LISTEN/NOTIFY every instance receives the messages inserted by the others.

	if conf.Realtime.ListenNotify && a.DB != nil {
		listener := pgdb.NewChatListener(
			database.ConnString(conf.Database.Name, false, conf), pgdb.NewChatRepository(a.DB), a.Hub, a.DBLogger)
		go func() {
			if err := listener.Run(ctx); err != nil {
				logger.Error(fmt.Sprintf("chat listener stopped: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	go a.Server.Start()
	logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Addr))

	// =========================================================================
	// Shutdown

	select {
	case err := <-a.Server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-a.Server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		// asking listener to shut down and shed load
		if err := a.Server.Shutdown(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = a.Server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
