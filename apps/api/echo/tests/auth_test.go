package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/staff"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_authApi_login(t *testing.T) {
	app := setup(t)
	testutil.CreateAdmin(t, app.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")

	// a deactivated account authenticates but may not log in
	sleeper := staff.Admin{
		Name: "Sleeper", Username: "sleeper", Email: "sleeper@test.cd",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, sleeper.SetPassword("s3cr3t-pass"))
	_, err := app.admRepo.CreateAdmin(context.Background(), sleeper)
	require.NoError(t, err)

	tests := []httpTest{
		{
			name: "ok", body: marchallObj(t, LoginRequest{Username: "jane", Password: "s3cr3t-pass"}),
			wantCode: http.StatusOK,
		},
		{
			name: "username is case-insensitive", body: marchallObj(t, LoginRequest{Username: "JANE", Password: "s3cr3t-pass"}),
			wantCode: http.StatusOK,
		},
		{
			name: "login by email", body: marchallObj(t, LoginRequest{Username: "jane@test.cd", Password: "s3cr3t-pass"}),
			wantCode: http.StatusOK,
		},
		{
			name: "wrong password", body: marchallObj(t, LoginRequest{Username: "jane", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "unknown user", body: marchallObj(t, LoginRequest{Username: "ghost", Password: "s3cr3t-pass"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", body: marchallObj(t, LoginRequest{Username: "sleeper", Password: "s3cr3t-pass"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "missing fields", body: marchallObj(t, LoginRequest{}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/login", tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func Test_authApi_studentLogin(t *testing.T) {
	app := setup(t)
	stu := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991238001", "10")

	tests := []httpTest{
		{name: "ok", body: marchallObj(t, StudentLoginRequest{Token: stu.QRToken}), wantCode: http.StatusOK},
		{
			name: "scanned value is trimmed", body: marchallObj(t, StudentLoginRequest{Token: "  " + stu.QRToken + " "}),
			wantCode: http.StatusOK,
		},
		{
			name: "invalid token", body: marchallObj(t, StudentLoginRequest{Token: "NOTAVALIDTOKEN"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid token"}),
		},
		{name: "missing token", body: marchallObj(t, StudentLoginRequest{}), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/student-login", tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				require.NotEmpty(t, resp.Token)

				// the session works on a student endpoint
				req, rec := newAuthRequest(http.MethodGet, "/v1/exam/slots", resp.Token)
				app.server.ServeHTTP(rec, req)
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}

func Test_authApi_refreshToken(t *testing.T) {
	app := setup(t)
	adm := testutil.CreateAdmin(t, app.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")
	stu := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991238002", "10")

	staleIat := time.Now().Add(-app.conf.Server.JWTRefreshExpirationDelta - time.Minute).Unix()

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin ok", token: app.adminToken(t, adm), wantCode: http.StatusOK},
		{name: "student ok", token: app.studentToken(t, stu), wantCode: http.StatusOK},
		{
			name: "refresh window expired", token: getToken(t, GetAdminClaims(app.conf, adm, staleIat)),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_register(t *testing.T) {
	app := setup(t)
	adm := testutil.CreateAdmin(t, app.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")
	stu := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991238003", "10")

	newAdm := staff.NewAdmin{
		Name: "John Roe", Username: "john", Email: "john@test.cd",
		Password: "S3cr3t-pass", PasswordConfirm: "S3cr3t-pass",
	}

	tests := []httpTest{
		{
			name: "Auth required", body: marchallObj(t, newAdm),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", body: marchallObj(t, newAdm), token: app.studentToken(t, stu),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "ok", body: marchallObj(t, newAdm), token: app.adminToken(t, adm), wantCode: http.StatusCreated},
		{
			name: "duplicate username", body: marchallObj(t, newAdm), token: app.adminToken(t, adm),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "an admin with this username already exists"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/auth/register", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var created staff.Admin
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
				assert.Equal(t, "john", created.Username)
				assert.True(t, created.IsActive)
			}
		})
	}
}
