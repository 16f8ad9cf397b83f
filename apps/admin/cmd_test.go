package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/darasa/core/staff"
	"github.com/trezcool/darasa/core/student"
	"github.com/trezcool/darasa/core/token"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

var (
	admRepo staff.Repository
	stuSvc  student.ServiceInterface
)

func setup(t *testing.T) *commandLine {
	t.Helper()
	logger = log.New(io.Discard, "ADMIN : ", log.LstdFlags)

	admRepo = inmemdb.NewAdminRepository()
	stuRepo := inmemdb.NewStudentRepository(testutil.DefaultClasses()...)
	tokenSvc := token.NewService(stuRepo, testutil.NopLogger{})
	validate, _ := testutil.NewValidator()
	stuSvc = student.NewService(stuRepo, tokenSvc, &testutil.EmailRecorder{}, validate)

	// migrations are mocked; the handle is never dereferenced
	return &commandLine{
		db:         &sqlx.DB{},
		validate:   validate,
		adminSvc:   staff.NewService(admRepo),
		studentSvc: stuSvc,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a VERSION argument", command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create requires a NAME argument")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to requires a VERSION argument"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to requires a VERSION argument"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create requires a NAME argument"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "exam_slot", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addAdmin(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"addadmin"}, wantErr: errHelp},
		{name: "missing email", args: []string{"addadmin", "-name", "Jane", "-username", "jane"}, wantErr: errHelp},
		{
			name: "no password", args: []string{"addadmin", "-name", "Jane", "-username", "jane", "-email", "jane@test.cd"},
			wantErr: errHelp,
		},
		{
			name: "create", args: []string{"addadmin", "-name", "Jane", "-username", "jane", "-email", "jane@test.cd"},
			extra: extra{pwd: "S3cr3t-pass"},
		},
		{
			name: "existing username resets password",
			args: []string{"addadmin", "-name", "Jane", "-username", "JANE", "-email", "jane@test.cd"},
			extra: extra{pwd: "n3w-s3cr3t"},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			adm, err := cli.adminSvc.GetByUsernameOrEmail(context.Background(), "jane")
			if err != nil {
				t.Fatalf("GetByUsernameOrEmail(): %v", err)
			}
			pwd := tt.extra.(extra).pwd
			if cerr := adm.CheckPassword(pwd); cerr != nil {
				t.Errorf("password %q does not verify: %v", pwd, cerr)
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	adm := testutil.CreateAdmin(t, cli.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "admin not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: staff.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", adm.Username}, extra: extra{pwd: "lol-s3cr3t"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", adm.Email}, extra: extra{pwd: "lmao-s3cr3t"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := admRepo.GetAdminByID(context.Background(), adm.ID)
				if err != nil {
					t.Fatalf("GetAdminByID(): %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, adm.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_resetQR(t *testing.T) {
	cli := setup(t)

	stu := testutil.CreateStudent(t, stuSvc, "Asha", "+243991242001", "10")

	tests := []cliTest{
		{name: "no args", args: []string{"resetqr"}, wantErr: errHelp},
		{name: "student not found", args: []string{"resetqr", "-student", "nope"}, wantErr: student.ErrNotFound},
		{name: "rotate", args: []string{"resetqr", "-student", stu.ID}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := stuSvc.GetByID(context.Background(), stu.ID)
				if err != nil {
					t.Fatalf("GetByID(): %v", err)
				}
				if refreshed.QRToken == stu.QRToken {
					t.Error("failed to rotate QR token")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
