package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	. "github.com/trezcool/notas/apps/api/echo"
	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/attendance"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/portal"
	"github.com/trezcool/notas/core/profile"
	"github.com/trezcool/notas/services/email"
	"github.com/trezcool/notas/services/logger"
	"github.com/trezcool/notas/storage/blob"
	"github.com/trezcool/notas/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server     *Server
	auth       *Auth
	profiles   profile.Repository
	classes    class.Repository
	gradebook  gradebook.Repository
	attendance attendance.Repository
}

func setup(t *testing.T) testApp {
	conf := core.NewTestConfig()
	conf.Server.DisableReqLogs = true
	conf.Blob.LocalDir = t.TempDir()
	conf.Blob.PublicBaseURL = "http://localhost:8000/media"

	logger := logsvc.NewRollbarLogger(zerolog.Nop(), conf)
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	profile.InitValidators(validate, translator)
	gradebook.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)
	emailsvc.ResetSentMessages()

	// set up DB & repos
	db := inmemdb.Open()
	app := testApp{
		profiles:   inmemdb.NewProfileRepository(db),
		classes:    inmemdb.NewClassRepository(db),
		gradebook:  inmemdb.NewGradebookRepository(db),
		attendance: inmemdb.NewAttendanceRepository(db),
		auth:       NewAuth(conf),
	}

	// set up services
	classSvc := class.NewService(app.classes)
	gradebookSvc := gradebook.NewService(app.gradebook, classSvc)
	attendanceSvc := attendance.NewService(app.attendance, classSvc)
	profileSvc := profile.NewService(
		app.profiles,
		blob.NewLocalStore(conf.Blob.LocalDir, conf.Blob.PublicBaseURL),
		emailsvc.NewConsoleServiceMock(conf),
		logger,
		conf,
	)

	// set up server
	app.server = NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		ProfileSvc:    profileSvc,
		TeacherPortal: portal.NewTeacher(classSvc, gradebookSvc, attendanceSvc),
		StudentPortal: portal.NewStudent(classSvc, gradebookSvc, attendanceSvc),
	})
	return app
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.server.ServeHTTP(rec, req)
	return rec
}

// run executes the table of tests against the server, checking codes and bodies.
func (app testApp) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(newAuthRequest(method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}
}

func getToken(t *testing.T, app testApp, p profile.Profile) string {
	token, err := app.auth.GenerateToken(app.auth.Claims(p))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, r io.Reader, obj interface{}) {
	if err := json.NewDecoder(r).Decode(obj); err != nil {
		t.Fatalf("unmarshal(): %v", err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
