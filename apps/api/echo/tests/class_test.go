package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/tests"
)

type classFixture struct {
	app testApp

	// tokens
	teacher  string
	other    string
	student  string
	outsider string

	studentID string
	algebra   class.Class
	chemistry class.Class
}

func newClassFixture(t *testing.T) classFixture {
	app := setup(t)
	teacher := testutil.CreateProfile(t, app.profiles, "Laura Gómez", "laura@notas.edu", strongPwd, core.RoleTeacher)
	other := testutil.CreateProfile(t, app.profiles, "Pedro Ruiz", "pedro@notas.edu", strongPwd, core.RoleTeacher)
	student := testutil.CreateProfile(t, app.profiles, "Ana Pérez", "ana@notas.edu", strongPwd, core.RoleStudent)
	outsider := testutil.CreateProfile(t, app.profiles, "Beto Díaz", "beto@notas.edu", strongPwd, core.RoleStudent)

	now := time.Now()
	f := classFixture{
		app:       app,
		teacher:   getToken(t, app, teacher),
		other:     getToken(t, app, other),
		student:   getToken(t, app, student),
		outsider:  getToken(t, app, outsider),
		studentID: student.ID,
		algebra:   testutil.CreateClass(t, app.classes, teacher.ID, "Álgebra", "ALG101", now.Add(-time.Hour)),
		chemistry: testutil.CreateClass(t, app.classes, teacher.ID, "Química", "QUI202", now),
	}
	testutil.Enroll(t, app.classes, f.algebra.ID, student.ID)
	return f
}

func TestClassAPI(t *testing.T) {
	f := newClassFixture(t)

	f.app.run(t, []httpTest{
		{
			name:     "list without token",
			path:     "/v1/classes",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "create as student",
			method:   http.MethodPost,
			path:     "/v1/classes",
			token:    f.student,
			body:     []byte(`{"name": "Física"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "create without name",
			method:   http.MethodPost,
			path:     "/v1/classes",
			token:    f.teacher,
			body:     []byte(`{"name": "   "}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "retrieve other teacher's class",
			path:     "/v1/classes/" + f.algebra.ID,
			token:    f.other,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: class.ErrNotFound.Error()}),
		},
		{
			name:     "retrieve not enrolled class",
			path:     "/v1/classes/" + f.chemistry.ID,
			token:    f.student,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: class.ErrNotFound.Error()}),
		},
		{
			name:     "retrieve unknown class",
			path:     "/v1/classes/nope",
			token:    f.teacher,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "roster as student",
			path:     "/v1/classes/" + f.algebra.ID + "/students",
			token:    f.student,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "delete other teacher's class",
			method:   http.MethodDelete,
			path:     "/v1/classes/" + f.algebra.ID,
			token:    f.other,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "join as teacher",
			method:   http.MethodPost,
			path:     "/v1/enrollments",
			token:    f.teacher,
			body:     []byte(`{"code": "QUI202"}`),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "join with unknown code",
			method:   http.MethodPost,
			path:     "/v1/enrollments",
			token:    f.student,
			body:     []byte(`{"code": "ZZZ999"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": class.ErrInvalidCode.Error()}),
		},
		{
			name:     "join twice",
			method:   http.MethodPost,
			path:     "/v1/enrollments",
			token:    f.student,
			body:     []byte(`{"code": "alg101"}`),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: class.ErrAlreadyEnrolled.Error()}),
		},
	})

	t.Run("teacher lists owned classes, newest first", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, "/v1/classes", f.teacher))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []class.Class
		unmarshal(t, rec.Body, &got)
		require.Len(t, got, 2)
		assert.Equal(t, f.chemistry.ID, got[0].ID)
		assert.Equal(t, f.algebra.ID, got[1].ID)
		assert.Equal(t, 1, got[1].StudentCount)
	})

	t.Run("other teacher lists nothing", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, "/v1/classes", f.other))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)
	})

	t.Run("student joins with a sloppy code", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodPost, "/v1/enrollments", f.student, []byte(`{"code": " qui202 "}`)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got class.Class
		unmarshal(t, rec.Body, &got)
		assert.Equal(t, f.chemistry.ID, got.ID)

		rec = f.app.do(newAuthRequest(http.MethodGet, "/v1/classes", f.student))
		require.Equal(t, http.StatusOK, rec.Code)
		var classes []class.Class
		unmarshal(t, rec.Body, &classes)
		require.Len(t, classes, 2)
		assert.Equal(t, f.chemistry.ID, classes[0].ID)
	})

	t.Run("teacher creates a class", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodPost, "/v1/classes", f.teacher, []byte(`{"name": " Física ", "description": "Mecánica"}`)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got class.Class
		unmarshal(t, rec.Body, &got)
		assert.Equal(t, "Física", got.Name)
		assert.Regexp(t, "^[A-Z0-9]{6}$", got.Code)
		assert.Zero(t, got.StudentCount)
	})

	t.Run("teacher reads the roster", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodGet, "/v1/classes/"+f.algebra.ID+"/students", f.teacher))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []class.RosterEntry
		unmarshal(t, rec.Body, &got)
		require.Len(t, got, 1)
		assert.Equal(t, f.studentID, got[0].StudentID)
		assert.Equal(t, "Ana Pérez", got[0].FullName)
	})

	t.Run("teacher deletes a class", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodDelete, "/v1/classes/"+f.algebra.ID, f.teacher))
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.app.do(newAuthRequest(http.MethodGet, "/v1/classes/"+f.algebra.ID, f.student))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
