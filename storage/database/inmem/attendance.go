package inmemdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trezcool/darasa/core/attendance"
)

type (
	attKey struct {
		studentID string
		classID   int
		date      string // YYYY-MM-DD
	}

	payKey struct {
		studentID string
		classID   int
		month     string // YYYY-MM
	}

	attendanceRepository struct {
		mu       sync.Mutex
		marks    map[attKey]attendance.Attendance
		payments map[payKey]attendance.Payment
	}
)

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository() *attendanceRepository {
	return &attendanceRepository{
		marks:    make(map[attKey]attendance.Attendance),
		payments: make(map[payKey]attendance.Payment),
	}
}

// MarkAttendance is atomic under the lock: concurrent duplicates yield one
// row and exactly one created=true.
func (repo *attendanceRepository) MarkAttendance(ctx context.Context, att attendance.Attendance) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	key := attKey{att.StudentID, att.ClassID, att.Date.Format(attendance.DateLayout)}
	if _, exists := repo.marks[key]; exists {
		return false, nil
	}
	repo.marks[key] = att
	return true, nil
}

func (repo *attendanceRepository) UnmarkAttendance(ctx context.Context, studentID string, classID int, date time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	delete(repo.marks, attKey{studentID, classID, date.Format(attendance.DateLayout)})
	return nil
}

func (repo *attendanceRepository) HasPayment(ctx context.Context, studentID string, classID int, month string) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	_, ok := repo.payments[payKey{studentID, classID, month}]
	return ok, nil
}

func (repo *attendanceRepository) UpsertPayment(ctx context.Context, p attendance.Payment) (attendance.Payment, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.payments[payKey{p.StudentID, p.ClassID, p.Month}] = p
	return p, nil
}

func (repo *attendanceRepository) AttendanceDates(ctx context.Context, classID int, month string) (map[string][]time.Time, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	dates := make(map[string][]time.Time)
	for key, att := range repo.marks {
		if key.classID == classID && att.Date.Format(attendance.MonthLayout) == month {
			dates[key.studentID] = append(dates[key.studentID], att.Date)
		}
	}
	for id := range dates {
		sort.Slice(dates[id], func(i, j int) bool { return dates[id][i].Before(dates[id][j]) })
	}
	return dates, nil
}

func (repo *attendanceRepository) GetPayments(ctx context.Context, classID int, month string) (map[string]attendance.Payment, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	payments := make(map[string]attendance.Payment)
	for key, p := range repo.payments {
		if key.classID == classID && key.month == month {
			payments[key.studentID] = p
		}
	}
	return payments, nil
}
