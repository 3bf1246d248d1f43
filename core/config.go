package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Addr                      string
		Host                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		RequestTimeout            time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AuthRateLimit             float64 // requests per second per client IP
		AuthRateBurst             int
		TrustedProxies            []string // CIDRs allowed to set X-Forwarded-For
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	BillingConfig struct {
		VATRate     float64
		PaymentDays int
	}

	StaffConfig struct {
		DirectoryTTL          time.Duration
		DefaultAvailableHours float64
	}

	DashboardConfig struct {
		DueSoonDays        int
		BookingHorizonDays int
	}

	RealtimeConfig struct {
		ListenNotify bool
	}

	Config struct {
		AppName                   string
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          string
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration
		InvitationTimeoutDelta    time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		Billing   BillingConfig
		Staff     StaffConfig
		Dashboard DashboardConfig
		Realtime  RealtimeConfig
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

// DefaultFromAddress parses DefaultFromEmail, falling back to a bare address.
func (c *Config) DefaultFromAddress() mail.Address {
	if addr, err := mail.ParseAddress(c.DefaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("appName", "Atelier")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "k3v&9m#x!pl2+w8q@z0r(5t)b7n^c4e=hy6u$j1s*fd%ga")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Atelier <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("invitationTimeoutDelta", 7*24*time.Hour)

	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.requestTimeout", 15*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.authRateLimit", 1.0)
	v.SetDefault("server.authRateBurst", 5)
	v.SetDefault("server.trustedProxies", []string{})

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "atelier")
	v.SetDefault("database.user", "atelier")
	v.SetDefault("database.password", "atelier")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 20)

	v.SetDefault("billing.vatRate", 0.20)
	v.SetDefault("billing.paymentDays", 30)

	v.SetDefault("staff.directoryTTL", 5*time.Minute)
	v.SetDefault("staff.defaultAvailableHours", 37.5)

	v.SetDefault("dashboard.dueSoonDays", 3)
	v.SetDefault("dashboard.bookingHorizonDays", 7)

	v.SetDefault("realtime.listenNotify", false)
}

// NewConfig loads the configuration from defaults, an optional `config/.env.<env>` file and the environment.
// The ENV variable selects the environment (DEV by default) which is also the env vars prefix:
// `server.addr` is read from DEV_SERVER_ADDR.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(ProjectRoot(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	if conf.Env == "" {
		conf.Env = env
	}
	return conf
}
