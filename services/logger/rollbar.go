package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/rs/zerolog"

	"github.com/trezcool/notas/core"
)

// RollbarLogger reports to rollbar and writes every entry to a zerolog output.
type RollbarLogger struct {
	out zerolog.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(out zerolog.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{out: out}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare extracts the request actor from args. expected fmt: msg | error, map[string]interface{}, core.Actor
func (l RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, actor *core.Actor) {
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		if a, ok := arg.(core.Actor); ok {
			if actor == nil { // only set one Actor
				rollbar.SetPerson(a.ID, string(a.Role), a.Email)
				actor = &a
			}
		} else {
			rbArgs = append(rbArgs, arg)
		}
	}
	if actor == nil {
		rollbar.ClearPerson()
	}
	return rbArgs, actor
}

func (l RollbarLogger) print(evt *zerolog.Event, msg string, rbArgs []interface{}, actor *core.Actor) {
	if actor != nil {
		evt = evt.Str("actor_id", actor.ID).Str("actor_role", string(actor.Role))
	}
	for _, arg := range rbArgs[1:] {
		switch v := arg.(type) {
		case error:
			evt = evt.Str("error", fmt.Sprintf("%+v", v))
		case map[string]interface{}:
			evt = evt.Fields(v)
		default:
			evt = evt.Interface("extra", v)
		}
	}
	evt.Msg(msg)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, actor := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.print(l.out.Debug(), msg, rbArgs, actor)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, actor := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.print(l.out.Info(), msg, rbArgs, actor)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, actor := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.print(l.out.Warn(), msg, rbArgs, actor)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, actor := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.print(l.out.Error(), msg, rbArgs, actor)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, actor := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.print(l.out.Fatal(), msg, rbArgs, actor)
}
