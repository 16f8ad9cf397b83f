package attendance

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/darasa/core/student"
)

var (
	// errors
	ErrNotFound = errors.New("student or class not found")
)

type (
	Repository interface {
		// MarkAttendance is an atomic check-then-insert: it reports whether
		// a row was created (false means the key already existed). Two
		// concurrent calls for the same key must yield exactly one row and
		// no error.
		MarkAttendance(ctx context.Context, att Attendance) (created bool, err error)
		UnmarkAttendance(ctx context.Context, studentID string, classID int, date time.Time) error
		HasPayment(ctx context.Context, studentID string, classID int, month string) (bool, error)
		// UpsertPayment is an insert-or-replace at the store boundary;
		// a second payment for the same (student, class, month) replaces
		// amount/method without creating a duplicate ledger entry.
		UpsertPayment(ctx context.Context, p Payment) (Payment, error)
		// AttendanceDates returns, per student, the dates attended in the
		// given class and month.
		AttendanceDates(ctx context.Context, classID int, month string) (map[string][]time.Time, error)
		GetPayments(ctx context.Context, classID int, month string) (map[string]Payment, error)
	}

	// Directory is the narrow student/class lookup surface the reconciler
	// needs; satisfied by the student repositories.
	Directory interface {
		GetStudentByID(ctx context.Context, id string) (student.Student, error)
		GetClassByGrade(ctx context.Context, grade string) (student.Class, error)
		GetClassByID(ctx context.Context, id int) (student.Class, error)
		ListStudentsByClass(ctx context.Context, classID int) ([]student.Student, error)
	}

	Service struct {
		repo Repository
		dir  Directory
	}
)

func NewService(repo Repository, dir Directory) *Service {
	return &Service{repo: repo, dir: dir}
}

// Reconcile resolves the student's fee-bearing class, marks attendance for
// the given date if not yet marked, and reports the month's payment state.
// "Already marked" and "unpaid" are expected steady-state outcomes, never
// errors. The attendance write and the payment read are independent facts;
// only the check-then-insert itself is atomic at the store level.
func (svc *Service) Reconcile(ctx context.Context, studentID string, date time.Time) (ScanResult, error) {
	stu, cls, err := svc.resolve(ctx, studentID)
	if err != nil {
		return ScanResult{}, err
	}

	created, err := svc.repo.MarkAttendance(ctx, Attendance{
		StudentID: stu.ID,
		ClassID:   cls.ID,
		Date:      truncateDate(date),
		MarkedAt:  time.Now().UTC(),
	})
	if err != nil {
		return ScanResult{}, errors.Wrap(err, "marking attendance")
	}

	paid, err := svc.repo.HasPayment(ctx, stu.ID, cls.ID, date.Format(MonthLayout))
	if err != nil {
		return ScanResult{}, errors.Wrap(err, "checking payment")
	}

	res := ScanResult{
		Student:       stu,
		Class:         cls,
		AlreadyMarked: !created,
		Paid:          paid,
	}
	if !paid {
		res.AmountDue = cls.MonthlyFee
	}
	return res, nil
}

// Mark is the manual admin toggle; marking an already-marked key is a no-op.
func (svc *Service) Mark(ctx context.Context, studentID string, date time.Time) error {
	stu, cls, err := svc.resolve(ctx, studentID)
	if err != nil {
		return err
	}
	_, err = svc.repo.MarkAttendance(ctx, Attendance{
		StudentID: stu.ID,
		ClassID:   cls.ID,
		Date:      truncateDate(date),
		MarkedAt:  time.Now().UTC(),
	})
	return errors.Wrap(err, "marking attendance")
}

// Unmark removes the attendance row if present; absence is not an error.
func (svc *Service) Unmark(ctx context.Context, studentID string, date time.Time) error {
	stu, cls, err := svc.resolve(ctx, studentID)
	if err != nil {
		return err
	}
	return svc.repo.UnmarkAttendance(ctx, stu.ID, cls.ID, truncateDate(date))
}

// RecordPayment upserts the student's payment for the month; a repeat
// payment for the same key replaces amount/method.
func (svc *Service) RecordPayment(ctx context.Context, np NewPayment) (Payment, error) {
	stu, cls, err := svc.resolve(ctx, np.StudentID)
	if err != nil {
		return Payment{}, err
	}
	return svc.repo.UpsertPayment(ctx, Payment{
		StudentID: stu.ID,
		ClassID:   cls.ID,
		Month:     np.Month,
		Amount:    np.Amount,
		Method:    np.Method,
		PaidAt:    time.Now().UTC(),
	})
}

// MonthlySheet builds the class register for a month: per enrolled student,
// the dates attended and the payment state.
func (svc *Service) MonthlySheet(ctx context.Context, classID int, month string) (Sheet, error) {
	cls, err := svc.dir.GetClassByID(ctx, classID)
	if err != nil {
		if errors.Cause(err) == student.ErrClassNotFound {
			return Sheet{}, ErrNotFound
		}
		return Sheet{}, err
	}
	students, err := svc.dir.ListStudentsByClass(ctx, cls.ID)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "listing class students")
	}
	dates, err := svc.repo.AttendanceDates(ctx, cls.ID, month)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "listing attendance")
	}
	payments, err := svc.repo.GetPayments(ctx, cls.ID, month)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "listing payments")
	}

	sheet := Sheet{Class: cls, Month: month, Rows: make([]SheetRow, 0, len(students))}
	for _, stu := range students {
		row := SheetRow{Student: stu, Dates: dates[stu.ID]}
		if p, ok := payments[stu.ID]; ok {
			row.Paid = true
			row.Amount = p.Amount
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// ExportXLSX renders the sheet as an xlsx workbook.
func ExportXLSX(sheet Sheet) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	name := f.GetSheetName(0)
	headers := []string{"Name", "Phone", "Days Present", "Dates", "Paid", "Amount"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(name, cell, h); err != nil {
			return nil, errors.Wrap(err, "writing header")
		}
	}

	for i, row := range sheet.Rows {
		dates := make([]string, 0, len(row.Dates))
		for _, d := range row.Dates {
			dates = append(dates, d.Format(DateLayout))
		}
		paid := "no"
		if row.Paid {
			paid = "yes"
		}
		values := []interface{}{
			row.Student.Name, row.Student.Phone, len(row.Dates),
			strings.Join(dates, ", "), paid, row.Amount,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellValue(name, cell, v); err != nil {
				return nil, errors.Wrapf(err, "writing row %d", i+1)
			}
		}
	}

	if err := f.SetSheetName(name, fmt.Sprintf("%s %s", sheet.Class.Name, sheet.Month)); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	return f.WriteToBuffer()
}

func (svc *Service) resolve(ctx context.Context, studentID string) (student.Student, student.Class, error) {
	stu, err := svc.dir.GetStudentByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return student.Student{}, student.Class{}, ErrNotFound
		}
		return student.Student{}, student.Class{}, errors.Wrap(err, "finding student")
	}
	cls, err := svc.dir.GetClassByGrade(ctx, stu.Grade)
	if err != nil {
		if errors.Cause(err) == student.ErrClassNotFound {
			return student.Student{}, student.Class{}, ErrNotFound
		}
		return student.Student{}, student.Class{}, errors.Wrap(err, "resolving grade class")
	}
	return stu, cls, nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
