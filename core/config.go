package core

import (
	"fmt"
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
	serverConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		ShutdownTimeout           time.Duration
		DisableReqLogs            bool
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	databaseConfig struct {
		Engine        string
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

	blobConfig struct {
		Driver        string // local | s3
		LocalDir      string
		PublicBaseURL string
		S3Bucket      string
		S3Region      string
		S3Endpoint    string
		S3AccessKey   string
		S3SecretKey   string
		S3UseSSL      bool
	}

	Config struct {
		AppName          string
		Build            string
		Env              string
		Debug            bool
		TestMode         bool
		WorkDir          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		PasswordResetTimeoutDelta time.Duration

		Server   serverConfig
		Database databaseConfig
		Blob     blobConfig
	}
)

func (c databaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c serverConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func newViper() *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("APP_NAME", "Notas")
	v.SetDefault("BUILD", "dev")
	v.SetDefault("DEBUG", true)
	v.SetDefault("TEST_MODE", false)
	v.SetDefault("SECRET_KEY", "k1d0-vq$7t8w+ms=3b&un4zl!x)#p9c2(#yg4h^$ce0a2fgn")
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")
	v.SetDefault("DEFAULT_FROM_EMAIL", "Notas <noreply@localhost>")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("PASSWORD_RESET_TIMEOUT_DELTA", 3*24*time.Hour)

	v.SetDefault("SERVER_HOST", "")
	v.SetDefault("SERVER_PORT", 8000)
	v.SetDefault("SERVER_DEBUG_HOST", "localhost:4000")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second)
	v.SetDefault("SERVER_DISABLE_REQ_LOGS", false)
	v.SetDefault("JWT_EXPIRATION_DELTA", 7*24*time.Hour)
	v.SetDefault("JWT_REFRESH_EXPIRATION_DELTA", 4*time.Hour)

	v.SetDefault("DATABASE_ENGINE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_NAME", "notas")
	v.SetDefault("DATABASE_USER", "notas")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_ADMIN_USER", "")
	v.SetDefault("DATABASE_ADMIN_PASSWORD", "")
	v.SetDefault("DATABASE_DISABLE_TLS", true)
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 20)

	v.SetDefault("BLOB_DRIVER", "local")
	v.SetDefault("BLOB_LOCAL_DIR", "media")
	v.SetDefault("BLOB_PUBLIC_BASE_URL", "http://localhost:8000/media")
	v.SetDefault("BLOB_S3_BUCKET", "avatars")
	v.SetDefault("BLOB_S3_REGION", "us-east-1")
	v.SetDefault("BLOB_S3_ENDPOINT", "")
	v.SetDefault("BLOB_S3_ACCESS_KEY", "")
	v.SetDefault("BLOB_S3_SECRET_KEY", "")
	v.SetDefault("BLOB_S3_USE_SSL", true)
	return v
}

// NewConfig loads the configuration from the environment.
// ENV selects the environment (DEV by default; TEST, QA, PROD) and its variables prefix, e.g. PROD_DATABASE_HOST.
// A `config/.env.<env>` file is loaded first when present.
func NewConfig() *Config {
	v := newViper()

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("TEST_MODE", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return configFromViper(v, env, wd)
}

func configFromViper(v *viper.Viper, env, wd string) *Config {
	from, err := mail.ParseAddress(v.GetString("DEFAULT_FROM_EMAIL"))
	if err != nil {
		log.Fatal(fmt.Errorf("config: invalid DEFAULT_FROM_EMAIL: %v", err))
	}

	return &Config{
		AppName:          v.GetString("APP_NAME"),
		Build:            v.GetString("BUILD"),
		Env:              env,
		Debug:            v.GetBool("DEBUG"),
		TestMode:         v.GetBool("TEST_MODE"),
		WorkDir:          wd,
		SecretKey:        v.GetString("SECRET_KEY"),
		FrontendBaseURL:  v.GetString("FRONTEND_BASE_URL"),
		DefaultFromEmail: *from,
		SendgridApiKey:   v.GetString("SENDGRID_API_KEY"),
		RollbarToken:     v.GetString("ROLLBAR_TOKEN"),

		PasswordResetTimeoutDelta: v.GetDuration("PASSWORD_RESET_TIMEOUT_DELTA"),
		Server: serverConfig{
			Host:                      v.GetString("SERVER_HOST"),
			Port:                      v.GetInt("SERVER_PORT"),
			DebugHost:                 v.GetString("SERVER_DEBUG_HOST"),
			ShutdownTimeout:           v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			DisableReqLogs:            v.GetBool("SERVER_DISABLE_REQ_LOGS"),
			JWTExpirationDelta:        v.GetDuration("JWT_EXPIRATION_DELTA"),
			JWTRefreshExpirationDelta: v.GetDuration("JWT_REFRESH_EXPIRATION_DELTA"),
		},
		Database: databaseConfig{
			Engine:        v.GetString("DATABASE_ENGINE"),
			Host:          v.GetString("DATABASE_HOST"),
			Port:          v.GetInt("DATABASE_PORT"),
			Name:          v.GetString("DATABASE_NAME"),
			User:          v.GetString("DATABASE_USER"),
			Password:      v.GetString("DATABASE_PASSWORD"),
			AdminUser:     v.GetString("DATABASE_ADMIN_USER"),
			AdminPassword: v.GetString("DATABASE_ADMIN_PASSWORD"),
			DisableTLS:    v.GetBool("DATABASE_DISABLE_TLS"),
			MaxOpenConns:  v.GetInt("DATABASE_MAX_OPEN_CONNS"),
		},
		Blob: blobConfig{
			Driver:        v.GetString("BLOB_DRIVER"),
			LocalDir:      v.GetString("BLOB_LOCAL_DIR"),
			PublicBaseURL: v.GetString("BLOB_PUBLIC_BASE_URL"),
			S3Bucket:      v.GetString("BLOB_S3_BUCKET"),
			S3Region:      v.GetString("BLOB_S3_REGION"),
			S3Endpoint:    v.GetString("BLOB_S3_ENDPOINT"),
			S3AccessKey:   v.GetString("BLOB_S3_ACCESS_KEY"),
			S3SecretKey:   v.GetString("BLOB_S3_SECRET_KEY"),
			S3UseSSL:      v.GetBool("BLOB_S3_USE_SSL"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: debug off, test mode on and no external services.
func NewTestConfig() *Config {
	v := newViper()
	v.Set("DEBUG", false)
	v.Set("TEST_MODE", true)
	v.Set("SECRET_KEY", "secret")
	v.Set("JWT_EXPIRATION_DELTA", 10*time.Minute)
	wd, _ := os.Getwd()
	return configFromViper(v, "TEST", wd)
}
