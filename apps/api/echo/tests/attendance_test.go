package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/student"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_attendanceApi_scan(t *testing.T) {
	app := setup(t)
	adm := testutil.CreateAdmin(t, app.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")
	stu := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991240001", "10")
	adminToken := app.adminToken(t, adm)

	cls, err := app.stuRepo.GetClassByGrade(context.Background(), "10")
	require.NoError(t, err)

	scanBody := marchallObj(t, ScanRequest{Token: stu.QRToken})

	tests := []httpTest{
		{
			name: "Auth required", body: scanBody,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", body: scanBody, token: app.studentToken(t, stu),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "first scan marks and reports dues", body: scanBody, token: adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, ScanResponse{
				StudentName: "Asha", ClassName: cls.Name, AlreadyMarked: false, Paid: false, AmountDue: cls.MonthlyFee,
			}),
		},
		{
			name: "repeat scan is a no-op", body: scanBody, token: adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, ScanResponse{
				StudentName: "Asha", ClassName: cls.Name, AlreadyMarked: true, Paid: false, AmountDue: cls.MonthlyFee,
			}),
		},
		{
			name: "invalid token", body: marchallObj(t, ScanRequest{Token: "BOGUS"}), token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid token"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/scan", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_attendanceApi_markUnmark(t *testing.T) {
	app := setup(t)
	adm := testutil.CreateAdmin(t, app.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")
	stu := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991240010", "9")
	adminToken := app.adminToken(t, adm)

	body := marchallObj(t, attendance.MarkRequest{StudentID: stu.ID, Date: "2026-03-10"})

	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", adminToken, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// marking twice is fine
	req, rec = newAuthRequest(http.MethodPost, "/v1/attendance", adminToken, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/attendance", adminToken, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// a garbled date never reaches the service
	badBody := marchallObj(t, attendance.MarkRequest{StudentID: stu.ID, Date: "10/03/2026"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/attendance", adminToken, badBody)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_attendanceApi_recordPayment(t *testing.T) {
	app := setup(t)
	adm := testutil.CreateAdmin(t, app.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")
	stu := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991240020", "11")
	adminToken := app.adminToken(t, adm)

	cls, err := app.stuRepo.GetClassByGrade(context.Background(), "11")
	require.NoError(t, err)

	body := marchallObj(t, attendance.NewPayment{
		StudentID: stu.ID, Month: "2026-03", Amount: cls.MonthlyFee, Method: "mobile",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/payments", adminToken, body)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p attendance.Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, stu.ID, p.StudentID)
	assert.Equal(t, "2026-03", p.Month)
	assert.Equal(t, "mobile", p.Method)

	// the paid month reflects on the next scan
	req, rec = newAuthRequest(http.MethodPost, "/v1/scan", adminToken, marchallObj(t, ScanRequest{Token: stu.QRToken}))
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var res ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Paid)
	assert.Equal(t, 0, res.AmountDue)

	// month format is validated
	badBody := marchallObj(t, attendance.NewPayment{StudentID: stu.ID, Month: "03-2026", Amount: 50})
	req, rec = newAuthRequest(http.MethodPost, "/v1/payments", adminToken, badBody)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_attendanceApi_classes(t *testing.T) {
	app := setup(t)
	adm := testutil.CreateAdmin(t, app.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")
	adminToken := app.adminToken(t, adm)

	req, rec := newAuthRequest(http.MethodGet, "/v1/classes", adminToken)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var classes []student.Class
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &classes))
	require.Len(t, classes, 6)

	// fee update
	target := classes[0]
	body := marchallObj(t, student.UpdateClass{MonthlyFee: 120})
	req, rec = newAuthRequest(http.MethodPut, "/v1/classes/"+strconv.Itoa(target.ID), adminToken, body)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated student.Class
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, 120, updated.MonthlyFee)

	req, rec = newAuthRequest(http.MethodPut, "/v1/classes/999", adminToken, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_attendanceApi_monthlySheet(t *testing.T) {
	app := setup(t)
	adm := testutil.CreateAdmin(t, app.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")
	stu := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991240030", "12")
	adminToken := app.adminToken(t, adm)

	cls, err := app.stuRepo.GetClassByGrade(context.Background(), "12")
	require.NoError(t, err)

	markBody := marchallObj(t, attendance.MarkRequest{StudentID: stu.ID, Date: "2026-05-04"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", adminToken, markBody)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	sheetPath := fmt.Sprintf("/v1/classes/%d/sheet?month=2026-05", cls.ID)
	req, rec = newAuthRequest(http.MethodGet, sheetPath, adminToken)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sheet attendance.Sheet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sheet))
	assert.Equal(t, cls.ID, sheet.Class.ID)
	assert.Equal(t, "2026-05", sheet.Month)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, stu.ID, sheet.Rows[0].Student.ID)
	assert.Len(t, sheet.Rows[0].Dates, 1)
	assert.False(t, sheet.Rows[0].Paid)

	// month is required
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/classes/%d/sheet", cls.ID), adminToken)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown class
	req, rec = newAuthRequest(http.MethodGet, "/v1/classes/999/sheet?month=2026-05", adminToken)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_attendanceApi_monthlySheetXLSX(t *testing.T) {
	app := setup(t)
	adm := testutil.CreateAdmin(t, app.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")
	stu := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991240040", "12")
	adminToken := app.adminToken(t, adm)

	cls, err := app.stuRepo.GetClassByGrade(context.Background(), "12")
	require.NoError(t, err)

	markBody := marchallObj(t, attendance.MarkRequest{StudentID: stu.ID, Date: "2026-05-04"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", adminToken, markBody)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	path := fmt.Sprintf("/v1/classes/%d/sheet.xlsx?month=2026-05", cls.ID)
	req, rec = newAuthRequest(http.MethodGet, path, adminToken)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance-2026-05.xlsx")

	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()
	rows, err := wb.GetRows(wb.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 2) // header + 1 student
}
