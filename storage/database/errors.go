package database

import (
	"context"
	"database/sql/driver"
	"io"
	"net"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
)

const uniqueViolation = "23505"

// transient postgres error classes: connection exception, insufficient resources, operator intervention
var transientClasses = map[pq.ErrorClass]struct{}{
	"08": {},
	"53": {},
	"57": {},
}

// MapError translates driver errors into core.ConflictError and core.TransientError. Other errors are returned as is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == uniqueViolation {
			return core.NewConflictError(err, pqErr.Constraint)
		}
		if _, ok := transientClasses[pqErr.Code.Class()]; ok {
			return core.NewTransientError(err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return core.NewTransientError(err)
	}
	return err
}
