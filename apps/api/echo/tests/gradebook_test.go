package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/grading"
	"github.com/trezcool/notas/core/portal"
	exportsvc "github.com/trezcool/notas/services/export"
	"github.com/trezcool/notas/tests"
)

const delta = 1e-9

type gradebookFixture struct {
	app testApp

	// tokens
	teacher  string
	other    string
	student  string
	outsider string

	classID    string
	studentID  string
	student2ID string
	outsiderID string
	parcial    gradebook.GradeItem
	quiz       gradebook.GradeItem
	taller     gradebook.GradeItem
}

func newGradebookFixture(t *testing.T) gradebookFixture {
	app := setup(t)
	teacher := testutil.CreateProfile(t, app.profiles, "Laura Gómez", "laura@notas.edu", strongPwd, core.RoleTeacher)
	other := testutil.CreateProfile(t, app.profiles, "Pedro Ruiz", "pedro@notas.edu", strongPwd, core.RoleTeacher)
	ana := testutil.CreateProfile(t, app.profiles, "Ana Pérez", "ana@notas.edu", strongPwd, core.RoleStudent)
	beto := testutil.CreateProfile(t, app.profiles, "Beto Díaz", "beto@notas.edu", strongPwd, core.RoleStudent)
	outsider := testutil.CreateProfile(t, app.profiles, "Carla Ríos", "carla@notas.edu", strongPwd, core.RoleStudent)

	c := testutil.CreateClass(t, app.classes, teacher.ID, "Álgebra", "ALG101")
	testutil.Enroll(t, app.classes, c.ID, ana.ID)
	testutil.Enroll(t, app.classes, c.ID, beto.ID)

	return gradebookFixture{
		app:        app,
		teacher:    getToken(t, app, teacher),
		other:      getToken(t, app, other),
		student:    getToken(t, app, ana),
		outsider:   getToken(t, app, outsider),
		classID:    c.ID,
		studentID:  ana.ID,
		student2ID: beto.ID,
		outsiderID: outsider.ID,
		parcial:    testutil.CreateGradeItem(t, app.gradebook, c.ID, "Parcial", 1, 20),
		quiz:       testutil.CreateGradeItem(t, app.gradebook, c.ID, "Quiz", 1, 5),
		taller:     testutil.CreateGradeItem(t, app.gradebook, c.ID, "Taller", 2, 35),
	}
}

func (f gradebookFixture) path(format string, args ...interface{}) string {
	return "/v1/classes/" + f.classID + fmt.Sprintf(format, args...)
}

func TestGradeItemsAPI(t *testing.T) {
	f := newGradebookFixture(t)

	f.app.run(t, []httpTest{
		{
			name:     "as student",
			path:     f.path("/grade-items"),
			token:    f.student,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "as other teacher",
			path:     f.path("/grade-items"),
			token:    f.other,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "invalid corte filter",
			path:     f.path("/grade-items?corte=4"),
			token:    f.teacher,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"corte": grading.ErrInvalidCorte.Error()}),
		},
		{
			name:     "budget without corte",
			path:     f.path("/grade-items/budget"),
			token:    f.teacher,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"corte": "this field is required"}),
		},
		{
			name:     "budget",
			path:     f.path("/grade-items/budget?corte=1"),
			token:    f.teacher,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, grading.Usage{Corte: 1, Cap: 30, Used: 25, Remaining: 5}),
		},
		{
			name:     "create over budget",
			method:   http.MethodPost,
			path:     f.path("/grade-items"),
			token:    f.teacher,
			body:     []byte(`{"name": "Taller", "corte": 1, "percentage": 6}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"percentage": "total percentage of corte 1 cannot exceed 30%: 25% already used, 31% attempted",
			}),
		},
		{
			name:     "create with invalid data",
			method:   http.MethodPost,
			path:     f.path("/grade-items"),
			token:    f.teacher,
			body:     []byte(`{"name": "", "corte": 5, "percentage": 0}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "create filling the budget",
			method:   http.MethodPost,
			path:     f.path("/grade-items"),
			token:    f.teacher,
			body:     []byte(`{"name": "Exposición", "corte": 1, "percentage": 5}`),
			wantCode: http.StatusCreated,
		},
		{
			name:     "budget is full",
			path:     f.path("/grade-items/budget?corte=1"),
			token:    f.teacher,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, grading.Usage{Corte: 1, Cap: 30, Used: 30, Remaining: 0}),
		},
		{
			name:     "delete unknown item",
			method:   http.MethodDelete,
			path:     f.path("/grade-items/nope"),
			token:    f.teacher,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: gradebook.ErrItemNotFound.Error()}),
		},
		{
			name:     "delete item",
			method:   http.MethodDelete,
			path:     f.path("/grade-items/%s", f.quiz.ID),
			token:    f.teacher,
			wantCode: http.StatusNoContent,
		},
	})

	t.Run("list by corte", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, f.path("/grade-items?corte=1"), f.teacher))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []gradebook.GradeItem
		unmarshal(t, rec.Body, &got)
		require.Len(t, got, 2)
		assert.Equal(t, "Parcial", got[0].Name)
		assert.Equal(t, "Exposición", got[1].Name)
	})

	t.Run("list all", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, f.path("/grade-items"), f.teacher))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []gradebook.GradeItem
		unmarshal(t, rec.Body, &got)
		require.Len(t, got, 3)
		assert.Equal(t, f.taller.ID, got[2].ID)
	})
}

func TestGradesAPI(t *testing.T) {
	f := newGradebookFixture(t)

	save := func(inputs ...gradebook.GradeInput) []byte {
		return marchallObj(t, gradebook.SaveGradesRequest{Grades: inputs})
	}

	f.app.run(t, []httpTest{
		{
			name:     "sheet without corte",
			path:     f.path("/grades"),
			token:    f.teacher,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "save for a student outside the class",
			method:   http.MethodPut,
			path:     f.path("/grades"),
			token:    f.teacher,
			body:     save(gradebook.GradeInput{StudentID: f.outsiderID, GradeItemID: f.parcial.ID, Score: 3}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"grades[0].student_id": "student is not enrolled in this class"}),
		},
		{
			name:     "save for an unknown item",
			method:   http.MethodPut,
			path:     f.path("/grades"),
			token:    f.teacher,
			body:     save(gradebook.GradeInput{StudentID: f.studentID, GradeItemID: "nope", Score: 3}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"grades[0].grade_item_id": gradebook.ErrItemNotFound.Error()}),
		},
		{
			name:     "save as other teacher",
			method:   http.MethodPut,
			path:     f.path("/grades"),
			token:    f.other,
			body:     save(gradebook.GradeInput{StudentID: f.studentID, GradeItemID: f.parcial.ID, Score: 3}),
			wantCode: http.StatusNotFound,
		},
	})

	t.Run("save clamps scores", func(t *testing.T) {
		body := save(
			gradebook.GradeInput{StudentID: f.studentID, GradeItemID: f.parcial.ID, Score: 4},
			gradebook.GradeInput{StudentID: f.studentID, GradeItemID: f.quiz.ID, Score: 5},
			gradebook.GradeInput{StudentID: f.studentID, GradeItemID: f.taller.ID, Score: 3},
			gradebook.GradeInput{StudentID: f.student2ID, GradeItemID: f.parcial.ID, Score: 7},
			gradebook.GradeInput{StudentID: f.student2ID, GradeItemID: f.quiz.ID, Score: -1},
		)
		rec := f.app.do(newAuthRequest(http.MethodPut, f.path("/grades"), f.teacher, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got []gradebook.Grade
		unmarshal(t, rec.Body, &got)
		require.Len(t, got, 5)
		assert.Equal(t, 5.0, got[3].Score)
		assert.Equal(t, 0.0, got[4].Score)
	})

	t.Run("sheet", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, f.path("/grades?corte=1"), f.teacher))
		require.Equal(t, http.StatusOK, rec.Code)

		var got gradebook.Sheet
		unmarshal(t, rec.Body, &got)
		assert.Equal(t, grading.Corte(1), got.Corte)
		assert.Equal(t, grading.Usage{Corte: 1, Cap: 30, Used: 25, Remaining: 5}, got.Budget)
		require.Len(t, got.Items, 2)
		require.Len(t, got.Rows, 2)
		assert.Equal(t, f.studentID, got.Rows[0].Student.StudentID)
		assert.Equal(t, map[string]float64{f.parcial.ID: 4, f.quiz.ID: 5}, got.Rows[0].Scores)
		assert.Equal(t, map[string]float64{f.parcial.ID: 5, f.quiz.ID: 0}, got.Rows[1].Scores)
	})

	t.Run("student report", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, f.path("/students/%s/report", f.studentID), f.teacher))
		require.Equal(t, http.StatusOK, rec.Code)

		var got gradebook.Report
		unmarshal(t, rec.Body, &got)
		require.Len(t, got.Cortes, 3)
		require.NotNil(t, got.Cortes[0].Average)
		assert.InDelta(t, 4.2, *got.Cortes[0].Average, delta)
		assert.InDelta(t, 1.26, got.Cortes[0].Contribution, delta)
		require.NotNil(t, got.Cortes[1].Average)
		assert.InDelta(t, 1.05, got.Cortes[1].Contribution, delta)
		assert.Nil(t, got.Cortes[2].Average)
		assert.InDelta(t, 2.31, got.FinalGrade, delta)
	})

	t.Run("report of a student outside the class", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, f.path("/students/%s/report", f.outsiderID), f.teacher))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: portal.ErrStudentNotFound.Error()}),
		}, rec)
	})

	t.Run("class report", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, f.path("/report"), f.teacher))
		require.Equal(t, http.StatusOK, rec.Code)

		var got gradebook.ClassReport
		unmarshal(t, rec.Body, &got)
		require.Len(t, got.Items, 3)
		require.Len(t, got.Rows, 2)
		assert.InDelta(t, 2.31, got.Rows[0].Report.FinalGrade, delta)
		// beto: (5*20 + 0*5) / 25 = 4 in corte 1 only
		assert.InDelta(t, 1.2, got.Rows[1].Report.FinalGrade, delta)
	})

	t.Run("class report export", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, f.path("/report.xlsx"), f.teacher))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, exportsvc.XLSXContentType, rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="alg101-grades.xlsx"`, rec.Header().Get("Content-Disposition"))
		assert.NotEmpty(t, rec.Body.Bytes())
	})

	t.Run("my report", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, f.path("/my-report"), f.student))
		require.Equal(t, http.StatusOK, rec.Code)

		var got gradebook.Report
		unmarshal(t, rec.Body, &got)
		assert.Equal(t, f.studentID, got.StudentID)
		assert.InDelta(t, 2.31, got.FinalGrade, delta)
	})

	t.Run("my report when not enrolled", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, f.path("/my-report"), f.outsider))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("my report as teacher", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, f.path("/my-report"), f.teacher))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
