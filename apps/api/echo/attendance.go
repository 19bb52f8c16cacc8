package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core/attendance"
	"github.com/trezcool/notas/core/portal"
)

type attendanceApi struct {
	teacher  *portal.Teacher
	student  *portal.Student
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, teacher *portal.Teacher, student *portal.Student, validate *validator.Validate) {
	api := attendanceApi{teacher: teacher, student: student, validate: validate}

	// teacher portal
	g.GET("/classes/:id/attendance", api.sheet, jwt, teacherOnly)
	g.PUT("/classes/:id/attendance", api.save, jwt, teacherOnly)
	g.GET("/classes/:id/students/:studentId/attendance", api.studentHistory, jwt, teacherOnly)

	// student portal
	g.GET("/classes/:id/my-attendance", api.myHistory, jwt, studentOnly)
}

// Handlers

func (api *attendanceApi) sheet(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	sheet, err := api.teacher.AttendanceSheet(ctx.Request().Context(), actor, ctx.Param("id"), ctx.QueryParam("date"))
	if err != nil {
		return errors.Wrap(err, "building attendance sheet")
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *attendanceApi) save(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data attendance.SaveRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	records, err := api.teacher.SaveAttendance(ctx.Request().Context(), actor, ctx.Param("id"), ctx.QueryParam("date"), data.Marks)
	if err != nil {
		return errors.Wrap(err, "saving attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) studentHistory(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	hist, err := api.teacher.StudentAttendance(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "querying attendance history")
	}
	return ctx.JSON(http.StatusOK, hist)
}

func (api *attendanceApi) myHistory(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	hist, err := api.student.Attendance(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying attendance history")
	}
	return ctx.JSON(http.StatusOK, hist)
}
