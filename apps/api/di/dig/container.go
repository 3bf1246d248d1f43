package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/atelierhq/atelier/apps/api/echo"
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
	logsvc "github.com/atelierhq/atelier/services/logger"
	"github.com/atelierhq/atelier/storage/database"
	inmemdb "github.com/atelierhq/atelier/storage/database/inmem"
	pgdb "github.com/atelierhq/atelier/storage/database/postgres"
)

const hubBuffer = 64

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is the repository set of the configured engine.
type Storage struct {
	dig.Out

	DB          *sqlx.DB // nil with the memory engine
	Tx          core.Transactor
	StatusCheck echoapi.StatusChecker

	Users       user.Repository
	Staff       staff.Repository
	Clients     client.Repository
	Projects    project.Repository
	Billing     billing.Repository
	Invitations invitation.Repository
	Schedule    schedule.Repository
	Chat        chat.Repository
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == "memory" {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on restart")
		db := inmemdb.NewDB()
		return Storage{
			Tx:          inmemdb.Transactor{},
			StatusCheck: func(context.Context) error { return nil },
			Users:       inmemdb.NewUserRepository(db),
			Staff:       inmemdb.NewStaffRepository(db),
			Clients:     inmemdb.NewClientRepository(db),
			Projects:    inmemdb.NewProjectRepository(db),
			Billing:     inmemdb.NewBillingRepository(db),
			Invitations: inmemdb.NewInvitationRepository(db),
			Schedule:    inmemdb.NewScheduleRepository(db),
			Chat:        inmemdb.NewChatRepository(db),
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Storage{
		DB:          db,
		Tx:          pgdb.NewTransactor(db),
		StatusCheck: func(ctx context.Context) error { return database.StatusCheck(ctx, db) },
		Users:       pgdb.NewUserRepository(db),
		Staff:       pgdb.NewStaffRepository(db),
		Clients:     pgdb.NewClientRepository(db),
		Projects:    pgdb.NewProjectRepository(db),
		Billing:     pgdb.NewBillingRepository(db),
		Invitations: pgdb.NewInvitationRepository(db),
		Schedule:    pgdb.NewScheduleRepository(db),
		Chat:        pgdb.NewChatRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

func newValidate(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newHub() *chat.Hub {
	return chat.NewHub(hubBuffer)
}

func newBillingService(repo billing.Repository, projects *project.Service, conf *core.Config) *billing.Service {
	return billing.NewService(repo, projects, conf)
}

func newInvitationService(
	repo invitation.Repository,
	users *user.Service,
	staffSvc *staff.Service,
	clients *client.Service,
	tx core.Transactor,
	mailSvc core.EmailService,
	conf *core.Config,
) *invitation.Service {
	return invitation.NewService(repo, users, staffSvc, clients, tx, mailSvc, conf)
}

func newDashboardService(
	projects *project.Service,
	staffSvc *staff.Service,
	scheduleSvc *schedule.Service,
	billingSvc *billing.Service,
	clients *client.Service,
	conf *core.Config,
) *dashboard.Service {
	return dashboard.NewService(projects, staffSvc, scheduleSvc, billingSvc, clients, conf)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))
	must(c.Provide(newHub))

	must(c.Provide(user.NewService))
	must(c.Provide(staff.NewService))
	must(c.Provide(client.NewService))
	must(c.Provide(project.NewService))
	must(c.Provide(schedule.NewService))
	must(c.Provide(chat.NewService))
	must(c.Provide(newBillingService))
	must(c.Provide(newInvitationService))
	must(c.Provide(newDashboardService))

	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
