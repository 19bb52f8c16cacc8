package dig_container

import (
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/notas/apps/api/echo"
	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/attendance"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/portal"
	"github.com/trezcool/notas/core/profile"
	emailsvc "github.com/trezcool/notas/services/email"
	logsvc "github.com/trezcool/notas/services/logger"
	"github.com/trezcool/notas/storage/blob"
	"github.com/trezcool/notas/storage/database"
	"github.com/trezcool/notas/storage/database/inmem"
	sqlxrepos "github.com/trezcool/notas/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBParam holds the SQL database, absent when running on in-memory repositories.
	DBParam struct {
		dig.In
		DB *sqlx.DB `optional:"true"`
	}

	repositories struct {
		dig.Out
		Profiles   profile.Repository
		Classes    class.Repository
		Gradebook  gradebook.Repository
		Attendance attendance.Repository
	}

	serverParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		ProfileSvc    *profile.Service
		TeacherPortal *portal.Teacher
		StudentPortal *portal.Student
	}
)

func newOutput(conf *core.Config, component string) zerolog.Logger {
	var out zerolog.Logger
	if conf.Debug {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		out = zerolog.New(os.Stdout)
	}
	return out.With().Timestamp().Str("component", component).Logger()
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(newOutput(conf, "API"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(newOutput(conf, "DB"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	return db
}

func newSQLRepositories(db *sqlx.DB) repositories {
	return repositories{
		Profiles:   sqlxrepos.NewProfileRepository(db),
		Classes:    sqlxrepos.NewClassRepository(db),
		Gradebook:  sqlxrepos.NewGradebookRepository(db),
		Attendance: sqlxrepos.NewAttendanceRepository(db),
	}
}

func newInmemRepositories() repositories {
	db := inmemdb.Open()
	return repositories{
		Profiles:   inmemdb.NewProfileRepository(db),
		Classes:    inmemdb.NewClassRepository(db),
		Gradebook:  inmemdb.NewGradebookRepository(db),
		Attendance: inmemdb.NewAttendanceRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, newOutput(conf, "MAIL"))
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newBlobStore(conf *core.Config, logger core.Logger) profile.BlobStore {
	store, err := blob.New(conf)
	if err != nil {
		logger.Fatal("setting up blob store", err)
	}
	return store
}

func newGradebookService(repo gradebook.Repository, classes *class.Service) *gradebook.Service {
	return gradebook.NewService(repo, classes)
}

func newAttendanceService(repo attendance.Repository, classes *class.Service) *attendance.Service {
	return attendance.NewService(repo, classes)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		ProfileSvc:    p.ProfileSvc,
		TeacherPortal: p.TeacherPortal,
		StudentPortal: p.StudentPortal,
	})
}

// New returns a new dependency injection dig.Container.
// With inmem, the repositories keep their data in memory and no database is set up.
func New(inmem bool) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	if inmem {
		must(c.Provide(newInmemRepositories))
	} else {
		must(c.Provide(newDB))
		must(c.Provide(newSQLRepositories))
	}
	must(c.Provide(newEmailService))
	must(c.Provide(newBlobStore))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(profile.NewService))
	must(c.Provide(class.NewService))
	must(c.Provide(newGradebookService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(portal.NewTeacher))
	must(c.Provide(portal.NewStudent))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
