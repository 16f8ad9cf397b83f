package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/exam"
	"github.com/trezcool/darasa/core/staff"
	"github.com/trezcool/darasa/core/student"
	"github.com/trezcool/darasa/core/token"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server *Server
	conf   *core.Config

	adminSvc      staff.ServiceInterface
	studentSvc    student.ServiceInterface
	tokenSvc      *token.Service
	attendanceSvc *attendance.Service
	examSvc       *exam.Service
	stuRepo       student.Repository
	admRepo       staff.Repository
	mail          *testutil.EmailRecorder
}

// setup wires the full API against the in-memory repositories.
func setup(t *testing.T) *testApp {
	t.Helper()

	conf := testutil.NewConfig()
	validate, translator := testutil.NewValidator()
	logger := testutil.NopLogger{}

	stuRepo := inmemdb.NewStudentRepository(testutil.DefaultClasses()...)
	admRepo := inmemdb.NewAdminRepository()
	attRepo := inmemdb.NewAttendanceRepository()
	examRepo := inmemdb.NewExamRepository(stuRepo,
		exam.Slot{ID: 1, Label: "Morning Session", BenchCount: 15},
		exam.Slot{ID: 2, Label: "Afternoon Session", BenchCount: 15},
	)

	mail := &testutil.EmailRecorder{}
	tokenSvc := token.NewService(stuRepo, logger)
	adminSvc := staff.NewService(admRepo)
	studentSvc := student.NewService(stuRepo, tokenSvc, mail, validate)
	attendanceSvc := attendance.NewService(attRepo, stuRepo)
	examSvc := exam.NewService(examRepo, stuRepo, conf.Exam.EligibleGrades)

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		AdminSvc:       adminSvc,
		StudentSvc:     studentSvc,
		TokenSvc:       tokenSvc,
		AttendanceSvc:  attendanceSvc,
		ExamSvc:        examSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return &testApp{
		server:        server,
		conf:          conf,
		adminSvc:      adminSvc,
		studentSvc:    studentSvc,
		tokenSvc:      tokenSvc,
		attendanceSvc: attendanceSvc,
		examSvc:       examSvc,
		stuRepo:       stuRepo,
		admRepo:       admRepo,
		mail:          mail,
	}
}

func (a *testApp) adminToken(t *testing.T, adm staff.Admin) string {
	t.Helper()
	return getToken(t, GetAdminClaims(a.conf, adm))
}

func (a *testApp) studentToken(t *testing.T, stu student.Student) string {
	t.Helper()
	return getToken(t, GetStudentClaims(a.conf, stu))
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
	extra    interface{}
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

func getToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token, err := GenerateToken(claims)
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

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
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
	t.Helper()
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
