package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/grading"
	"github.com/trezcool/notas/core/portal"
	exportsvc "github.com/trezcool/notas/services/export"
)

type gradebookApi struct {
	teacher  *portal.Teacher
	student  *portal.Student
	validate *validator.Validate
}

func registerGradebookAPI(g *echo.Group, jwt echo.MiddlewareFunc, teacher *portal.Teacher, student *portal.Student, validate *validator.Validate) {
	api := gradebookApi{teacher: teacher, student: student, validate: validate}

	// no middleware groups here: they catch every path under their prefix, /classes/:id included
	teacherMw := []echo.MiddlewareFunc{jwt, teacherOnly}
	g.GET("/classes/:id/grade-items", api.queryItems, teacherMw...)
	g.POST("/classes/:id/grade-items", api.createItem, teacherMw...)
	g.GET("/classes/:id/grade-items/budget", api.budget, teacherMw...)
	g.DELETE("/classes/:id/grade-items/:itemId", api.destroyItem, teacherMw...)
	g.GET("/classes/:id/grades", api.sheet, teacherMw...)
	g.PUT("/classes/:id/grades", api.saveGrades, teacherMw...)
	g.GET("/classes/:id/report", api.classReport, teacherMw...)
	g.GET("/classes/:id/report.xlsx", api.exportClassReport, teacherMw...)
	g.GET("/classes/:id/students/:studentId/report", api.studentReport, teacherMw...)

	// student portal
	g.GET("/classes/:id/my-report", api.myReport, jwt, studentOnly)
}

// queryCorte reads the corte query param. ok is false when it is absent.
func queryCorte(ctx echo.Context) (corte grading.Corte, ok bool, err error) {
	raw := ctx.QueryParam("corte")
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || !grading.Corte(n).Valid() {
		return 0, false, core.NewValidationError(grading.ErrInvalidCorte, core.FieldError{
			Field: "corte", Error: grading.ErrInvalidCorte.Error(),
		})
	}
	return grading.Corte(n), true, nil
}

func requiredCorte(ctx echo.Context) (grading.Corte, error) {
	corte, ok, err := queryCorte(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "corte", Error: "this field is required"})
	}
	return corte, nil
}

// Handlers

func (api *gradebookApi) queryItems(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	corte, ok, err := queryCorte(ctx)
	if err != nil {
		return err
	}

	var cortes []grading.Corte
	if ok {
		cortes = append(cortes, corte)
	}
	items, err := api.teacher.GradeItems(ctx.Request().Context(), actor, ctx.Param("id"), cortes...)
	if err != nil {
		return errors.Wrap(err, "querying grade items")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *gradebookApi) createItem(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data gradebook.NewGradeItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGradeItem")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.teacher.CreateGradeItem(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating grade item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *gradebookApi) budget(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	corte, err := requiredCorte(ctx)
	if err != nil {
		return err
	}

	usage, err := api.teacher.GradeBudget(ctx.Request().Context(), actor, ctx.Param("id"), corte)
	if err != nil {
		return errors.Wrap(err, "computing budget")
	}
	return ctx.JSON(http.StatusOK, usage)
}

func (api *gradebookApi) destroyItem(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	if err = api.teacher.DeleteGradeItem(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("itemId")); err != nil {
		return errors.Wrap(err, "deleting grade item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradebookApi) sheet(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	corte, err := requiredCorte(ctx)
	if err != nil {
		return err
	}

	sheet, err := api.teacher.GradeSheet(ctx.Request().Context(), actor, ctx.Param("id"), corte)
	if err != nil {
		return errors.Wrap(err, "building grade sheet")
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *gradebookApi) saveGrades(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data gradebook.SaveGradesRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveGradesRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	grades, err := api.teacher.SaveGrades(ctx.Request().Context(), actor, ctx.Param("id"), data.Grades)
	if err != nil {
		return errors.Wrap(err, "saving grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradebookApi) classReport(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	_, rep, err := api.teacher.ClassReport(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building class report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *gradebookApi) exportClassReport(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	c, rep, err := api.teacher.ClassReport(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building class report")
	}

	data, err := exportsvc.Gradebook(c, rep)
	if err != nil {
		return errors.Wrap(err, "exporting class report")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+exportsvc.GradebookFileName(c)+`"`)
	return ctx.Blob(http.StatusOK, exportsvc.XLSXContentType, data)
}

func (api *gradebookApi) studentReport(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	rep, err := api.teacher.StudentReport(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "building student report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *gradebookApi) myReport(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	rep, err := api.student.Report(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building report")
	}
	return ctx.JSON(http.StatusOK, rep)
}
