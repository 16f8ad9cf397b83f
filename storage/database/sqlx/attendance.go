package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// MarkAttendance is the atomic check-then-insert; the primary key on
// (student_id, class_id, date) makes a concurrent duplicate a no-op,
// never a second row or a propagated error.
func (repo attendanceRepository) MarkAttendance(ctx context.Context, att attendance.Attendance) (bool, error) {
	res, err := repo.db.ExecContext(ctx,
		`INSERT INTO attendance (student_id, class_id, date, marked_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (student_id, class_id, date) DO NOTHING`,
		att.StudentID, att.ClassID, att.Date, att.MarkedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "inserting attendance")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "inserting attendance")
	}
	return n > 0, nil
}

func (repo attendanceRepository) UnmarkAttendance(ctx context.Context, studentID string, classID int, date time.Time) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM attendance WHERE student_id = $1 AND class_id = $2 AND date = $3`,
		studentID, classID, date,
	)
	return errors.Wrap(err, "deleting attendance")
}

func (repo attendanceRepository) HasPayment(ctx context.Context, studentID string, classID int, month string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM payment WHERE student_id = $1 AND class_id = $2 AND month = $3)`,
		studentID, classID, month,
	)
	if err != nil {
		return false, errors.Wrap(err, "checking payment")
	}
	return exists, nil
}

// UpsertPayment is a conditional write, not read-modify-write: two admins
// paying the same (student, class, month) simultaneously cannot lose an
// update or create a duplicate ledger entry.
func (repo attendanceRepository) UpsertPayment(ctx context.Context, p attendance.Payment) (attendance.Payment, error) {
	err := repo.db.GetContext(ctx, &p,
		`INSERT INTO payment (student_id, class_id, month, amount, method, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (student_id, class_id, month)
		 DO UPDATE SET amount = EXCLUDED.amount, method = EXCLUDED.method, paid_at = EXCLUDED.paid_at
		 RETURNING student_id, class_id, trim(month) AS month, amount, method, paid_at`,
		p.StudentID, p.ClassID, p.Month, p.Amount, p.Method, p.PaidAt,
	)
	if err != nil {
		return attendance.Payment{}, errors.Wrap(err, "upserting payment")
	}
	return p, nil
}

func (repo attendanceRepository) AttendanceDates(ctx context.Context, classID int, month string) (map[string][]time.Time, error) {
	rows, err := repo.db.QueryxContext(ctx,
		`SELECT student_id, date FROM attendance
		 WHERE class_id = $1 AND to_char(date, 'YYYY-MM') = $2
		 ORDER BY date`,
		classID, month,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance dates")
	}
	defer func() { _ = rows.Close() }()

	dates := make(map[string][]time.Time)
	for rows.Next() {
		var studentID string
		var date time.Time
		if err := rows.Scan(&studentID, &date); err != nil {
			return nil, errors.Wrap(err, "scanning attendance date")
		}
		dates[studentID] = append(dates[studentID], date)
	}
	return dates, errors.Wrap(rows.Err(), "querying attendance dates")
}

func (repo attendanceRepository) GetPayments(ctx context.Context, classID int, month string) (map[string]attendance.Payment, error) {
	var rows []attendance.Payment
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT student_id, class_id, trim(month) AS month, amount, method, paid_at
		 FROM payment WHERE class_id = $1 AND month = $2`,
		classID, month,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make(map[string]attendance.Payment, len(rows))
	for _, p := range rows {
		payments[p.StudentID] = p
	}
	return payments, nil
}
