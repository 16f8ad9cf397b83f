// Package testutil provides shared helpers for test suites; everything
// runs against the in-memory repositories so no postgres is needed.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/staff"
	"github.com/trezcool/darasa/core/student"
)

// NewConfig returns a self-contained config for tests.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:            true,
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Darasa",
		SecretKey:        "test-secret-key",
		DefaultFromEmail: "noreply@test.local",
		Server: core.ServerConfig{
			Host:                      "localhost",
			Port:                      8000,
			JWTExpirationDelta:        1 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           1 * time.Second,
		},
		Exam: core.ExamConfig{EligibleGrades: []string{"7", "8", "9", "10", "11", "12"}},
	}
}

// NewValidator returns a fully initialized validator and translator.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	staff.RegisterValidators(validate, translator)
	return validate, translator
}

// DefaultClasses mirrors the seeded cohort set.
func DefaultClasses() []student.Class {
	grades := []string{"7", "8", "9", "10", "11", "12"}
	classes := make([]student.Class, 0, len(grades))
	for i, g := range grades {
		classes = append(classes, student.Class{
			ID:         i + 1,
			Grade:      g,
			Name:       "Grade " + g,
			MonthlyFee: 50 + 5*i,
		})
	}
	return classes
}

func CreateStudent(t *testing.T, svc student.ServiceInterface, name, phone, grade string) student.Student {
	t.Helper()
	stu, err := svc.Create(context.Background(), student.NewStudent{Name: name, Phone: phone, Grade: grade})
	if err != nil {
		t.Fatalf("CreateStudent(%s): %v", name, err)
	}
	return stu
}

func CreateAdmin(t *testing.T, svc staff.ServiceInterface, name, uname, email, pwd string) staff.Admin {
	t.Helper()
	adm, err := svc.Create(context.Background(), staff.NewAdmin{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		t.Fatalf("CreateAdmin(%s): %v", uname, err)
	}
	return adm
}

// NopLogger discards all output; Fatal panics so tests fail fast.
type NopLogger struct{}

var _ core.Logger = (*NopLogger)(nil)

func (NopLogger) Enable(bool)                      {}
func (NopLogger) Debug(string, ...interface{})     {}
func (NopLogger) Info(string, ...interface{})      {}
func (NopLogger) Warn(string, ...interface{})      {}
func (NopLogger) Error(string, ...interface{})     {}
func (NopLogger) Fatal(msg string, _ ...interface{}) { panic(msg) }

// EmailRecorder is a core.EmailService that records messages synchronously.
type EmailRecorder struct {
	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*EmailRecorder)(nil)

func (r *EmailRecorder) SendMessages(messages ...*core.EmailMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range messages {
		r.sent = append(r.sent, *msg)
	}
}

func (r *EmailRecorder) Messages() []core.EmailMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EmailMessage, len(r.sent))
	copy(out, r.sent)
	return out
}
