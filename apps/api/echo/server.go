package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/portal"
	"github.com/trezcool/notas/core/profile"
)

const bodyLimit = "10M"

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		ProfileSvc    *profile.Service
		TeacherPortal *portal.Teacher
		StudentPortal *portal.Student
	}

	Server struct {
		app      *echo.Echo
		conf     *core.Config
		auth     *Auth
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		conf:     deps.Conf,
		auth:     NewAuth(deps.Conf),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Logger.SetLevel(log.INFO)
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.BodyLimit(bodyLimit))
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: []string{conf.FrontendBaseURL}}))

	if conf.Blob.Driver == "" || conf.Blob.Driver == "local" {
		s.app.Static("/media", conf.Blob.LocalDir)
	}

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := s.auth.Middleware()

	registerProfileAPI(v1, jwt, s.auth, deps.ProfileSvc, deps.Validate)
	registerClassAPI(v1, jwt, deps.TeacherPortal, deps.StudentPortal, deps.Validate)
	registerGradebookAPI(v1, jwt, deps.TeacherPortal, deps.StudentPortal, deps.Validate)
	registerAttendanceAPI(v1, jwt, deps.TeacherPortal, deps.StudentPortal, deps.Validate)
}

func (s *Server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

// Start listens on the configured address. Failures are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors returns the channel receiving the listener failures.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal returns the channel receiving interrupt and terminate signals, and shutdown requests from handlers.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	return s.shutdown
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
