package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

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
)

// StatusChecker reports whether the storage backend is reachable.
type StatusChecker func(ctx context.Context) error

type ServerDeps struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	Tx          core.Transactor
	StatusCheck StatusChecker
	Hub         *chat.Hub

	UserSvc       *user.Service
	StaffSvc      *staff.Service
	ClientSvc     *client.Service
	ProjectSvc    *project.Service
	BillingSvc    *billing.Service
	InvitationSvc *invitation.Service
	ScheduleSvc   *schedule.Service
	ChatSvc       *chat.Service
	DashboardSvc  *dashboard.Service
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	tokens   *Tokenizer
	registry *prometheus.Registry
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		tokens:   NewTokenizer(deps.Conf),
		registry: prometheus.NewRegistry(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf
	debug := conf.Debug

	s.app.HideBanner = true
	s.app.Debug = debug
	s.app.Server.Addr = conf.Server.Addr
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.IPExtractor = newIPExtractor(conf.Server.TrustedProxies, s.deps.Logger)

	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if s.deps.Hub != nil {
		hub := s.deps.Hub
		s.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "atelier",
			Subsystem: "chat",
			Name:      "dropped_messages_total",
			Help:      "Chat messages dropped because a subscriber fell behind.",
		}, func() float64 { return float64(hub.Dropped()) }))
	}
	metrics := newHTTPMetrics(s.registry)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metrics.middleware())
	if conf.Server.RequestTimeout > 0 {
		s.app.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Skipper: isStream,
			Timeout: conf.Server.RequestTimeout,
		}))
	}

	s.app.GET("/", home)
	s.app.GET("/healthz", s.healthz)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})))

	v1 := s.app.Group("/v1")
	jwt := s.tokens.Middleware()
	authed := []echo.MiddlewareFunc{jwt, userMiddleware(s.deps.UserSvc, s.deps.StaffSvc, s.deps.ClientSvc)}
	limiter := newIPRateLimiter(conf.Server.AuthRateLimit, conf.Server.AuthRateBurst)

	registerAuthAPI(v1, authed, limiter.middleware(), s)
	registerUserAPI(v1, authed, s)
	registerStaffAPI(v1, authed, s)
	registerClientAPI(v1, authed, s)
	registerProjectAPI(v1, authed, s)
	registerBillingAPI(v1, authed, s)
	registerInvitationAPI(v1, authed, s)
	registerScheduleAPI(v1, authed, s)
	registerChatAPI(v1, authed, s)
	registerDashboardAPI(v1, authed, s)
	registerPortalAPI(v1, authed, s)
}

// isStream skips the request timeout for long-lived event streams.
func isStream(ctx echo.Context) bool {
	return strings.HasSuffix(ctx.Request().URL.Path, "/stream")
}

// Start listens until the server is shut down. Listen errors are reported on Errors.
func (s *Server) Start() {
	if err := s.app.StartServer(s.app.Server); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// Tokens exposes the token issuer, for tests and tooling.
func (s *Server) Tokens() *Tokenizer { return s.tokens }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Atelier API!")
}

func (s *Server) healthz(ctx echo.Context) error {
	status := echo.Map{"status": "ok", "build": s.deps.Conf.Build}
	if s.deps.StatusCheck != nil {
		if err := s.deps.StatusCheck(ctx.Request().Context()); err != nil {
			s.deps.Logger.Warn("health check failed", err)
			status["status"] = "db not ready"
			return ctx.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return ctx.JSON(http.StatusOK, status)
}

// helpers shared by the handlers

func (s *Server) validate(i interface{}) error {
	return s.deps.Validate.Struct(i)
}

// isAdmin reports whether the current user is an admin.
func isAdmin(ctx echo.Context) bool {
	claims, err := getContextClaims(ctx)
	return err == nil && claims.IsAdmin()
}
