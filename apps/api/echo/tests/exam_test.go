package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/exam"
	"github.com/trezcool/darasa/core/student"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_examApi_querySlots(t *testing.T) {
	app := setup(t)
	stu := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991241001", "10")

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "ok", token: app.studentToken(t, stu), wantCode: http.StatusOK,
			wantData: marchallList(t,
				exam.Slot{ID: 1, Label: "Morning Session", BenchCount: 15},
				exam.Slot{ID: 2, Label: "Afternoon Session", BenchCount: 15},
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/exam/slots", tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_examApi_book(t *testing.T) {
	app := setup(t)
	adm := testutil.CreateAdmin(t, app.adminSvc, "Jane Doe", "jane", "jane@test.cd", "s3cr3t-pass")
	s1 := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991241010", "10")
	s2 := testutil.CreateStudent(t, app.studentSvc, "Baraka", "+243991241011", "9")

	body := marchallObj(t, exam.NewBooking{Bench: 3, Position: 2})

	tests := []httpTest{
		{
			name: "Auth required", body: body,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Student session required", body: body, token: app.adminToken(t, adm),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "ok", body: body, token: app.studentToken(t, s1), wantCode: http.StatusCreated},
		{
			name: "seat already taken", body: body, token: app.studentToken(t, s2),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "seat already taken, refresh and pick another"}),
		},
		{
			name: "seat out of range", body: marchallObj(t, exam.NewBooking{Bench: 16, Position: 1}),
			token: app.studentToken(t, s2), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "bench or position out of range"}),
		},
		{
			name: "position rejected early", body: marchallObj(t, exam.NewBooking{Bench: 1, Position: 5}),
			token: app.studentToken(t, s2), wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/exam/slots/1/bookings", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var b exam.Booking
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
				assert.Equal(t, 1, b.SlotID)
				assert.Equal(t, 3, b.Bench)
				assert.Equal(t, 2, b.Position)
				assert.Equal(t, s1.ID, b.StudentID)
			}
		})
	}

	// after the conflict, polling the layout shows the winner only
	req, rec := newAuthRequest(http.MethodGet, "/v1/exam/slots/1", app.studentToken(t, s2))
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var layout exam.Layout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &layout))
	require.Len(t, layout.Seats, 1)
	assert.Equal(t, s1.ID, layout.Seats[0].StudentID)
	assert.Equal(t, "Asha", layout.Seats[0].StudentName)
}

func Test_examApi_book_ineligibleGrade(t *testing.T) {
	app := setup(t)

	// no class exists for this grade, so it is seeded straight in the repo
	now := time.Now().UTC()
	junior, err := app.stuRepo.CreateStudent(context.Background(), student.Student{
		Name: "Kato", Phone: "+243991241020", Grade: "3", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	body := marchallObj(t, exam.NewBooking{Bench: 1, Position: 1})
	req, rec := newAuthRequest(http.MethodPost, "/v1/exam/slots/1/bookings", app.studentToken(t, junior), body)
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "this grade may not book exam seats"}),
	}, rec)
}

func Test_examApi_cancel(t *testing.T) {
	app := setup(t)
	stu := testutil.CreateStudent(t, app.studentSvc, "Asha", "+243991241030", "11")
	token := app.studentToken(t, stu)

	body := marchallObj(t, exam.NewBooking{Bench: 2, Position: 1})
	req, rec := newAuthRequest(http.MethodPost, "/v1/exam/slots/1/bookings", token, body)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodDelete, "/v1/exam/slots/1/bookings", token)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// cancelling an already-free seat is fine
	req, rec = newAuthRequest(http.MethodDelete, "/v1/exam/slots/1/bookings", token)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// unknown slot
	req, rec = newAuthRequest(http.MethodDelete, "/v1/exam/slots/99/bookings", token)
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "exam slot not found"}),
	}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/exam/slots/1", token)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var layout exam.Layout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &layout))
	assert.Empty(t, layout.Seats)
}
