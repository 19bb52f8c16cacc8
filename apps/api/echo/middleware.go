package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
)

// roleMiddleware restricts the routes to the portal of role.
func roleMiddleware(role core.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Role == role {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

var (
	teacherOnly = roleMiddleware(core.RoleTeacher)
	studentOnly = roleMiddleware(core.RoleStudent)
)
