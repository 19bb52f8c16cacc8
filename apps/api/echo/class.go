package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/portal"
)

type classApi struct {
	teacher  *portal.Teacher
	student  *portal.Student
	validate *validator.Validate
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, teacher *portal.Teacher, student *portal.Student, validate *validator.Validate) {
	api := classApi{teacher: teacher, student: student, validate: validate}

	g.GET("/classes", api.query, jwt)
	g.GET("/classes/:id", api.retrieve, jwt)

	// teacher portal
	g.POST("/classes", api.create, jwt, teacherOnly)
	g.DELETE("/classes/:id", api.destroy, jwt, teacherOnly)
	g.GET("/classes/:id/students", api.roster, jwt, teacherOnly)

	// student portal
	g.POST("/enrollments", api.join, jwt, studentOnly)
}

// Handlers

func (api *classApi) query(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var classes []class.Class
	if actor.IsTeacher() {
		classes, err = api.teacher.Classes(ctx.Request().Context(), actor)
	} else {
		classes, err = api.student.Classes(ctx.Request().Context(), actor)
	}
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var c class.Class
	if actor.IsTeacher() {
		c, err = api.teacher.Class(ctx.Request().Context(), actor, ctx.Param("id"))
	} else {
		c, err = api.student.Class(ctx.Request().Context(), actor, ctx.Param("id"))
	}
	if err != nil {
		return errors.Wrap(err, "retrieving class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) create(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data class.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.teacher.CreateClass(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *classApi) destroy(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	if err = api.teacher.DeleteClass(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) roster(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	roster, err := api.teacher.Roster(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying roster")
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *classApi) join(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data class.JoinRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.student.JoinClass(ctx.Request().Context(), actor, data.Code)
	if err != nil {
		return errors.Wrap(err, "joining class")
	}
	return ctx.JSON(http.StatusCreated, c)
}
