package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/exam"
)

type examRepository struct {
	db *sqlx.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) *examRepository {
	return &examRepository{db: db}
}

func (repo examRepository) GetSlot(ctx context.Context, id int) (exam.Slot, error) {
	var slot exam.Slot
	if err := repo.db.GetContext(ctx, &slot, `SELECT * FROM exam_slot WHERE id = $1`, id); err != nil {
		return exam.Slot{}, trapNoRowsErr(err, exam.ErrSlotNotFound, "finding exam slot")
	}
	return slot, nil
}

func (repo examRepository) QueryAllSlots(ctx context.Context) ([]exam.Slot, error) {
	var slots []exam.Slot
	if err := repo.db.SelectContext(ctx, &slots, `SELECT * FROM exam_slot ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying exam slots")
	}
	return slots, nil
}

// ReplaceBooking releases the student's seat in the slot and inserts the
// new one in a single transaction. A conflicting insert rolls everything
// back, so a failed move never leaves the student seatless; the primary
// key on (slot_id, bench, position) is the arbiter between concurrent
// writers, first committed wins. A rebook racing the same student's
// other rebook trips the (slot_id, student_id) key instead and is
// surfaced as the same seat conflict.
func (repo examRepository) ReplaceBooking(ctx context.Context, b exam.Booking) (exam.Booking, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return exam.Booking{}, errors.Wrap(err, "beginning booking tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM exam_booking WHERE slot_id = $1 AND student_id = $2`,
		b.SlotID, b.StudentID,
	); err != nil {
		return exam.Booking{}, errors.Wrap(err, "releasing previous booking")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO exam_booking (slot_id, bench, position, student_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		b.SlotID, b.Bench, b.Position, b.StudentID, b.CreatedAt,
	); err != nil {
		if isBookingConflict(err) {
			return exam.Booking{}, exam.ErrSeatTaken
		}
		return exam.Booking{}, errors.Wrap(err, "inserting booking")
	}

	if err := tx.Commit(); err != nil {
		if isBookingConflict(err) {
			return exam.Booking{}, exam.ErrSeatTaken
		}
		return exam.Booking{}, errors.Wrap(err, "committing booking tx")
	}
	return b, nil
}

// isBookingConflict reports whether err is a unique violation on either
// exam_booking constraint: the seat primary key (another student won the
// seat) or the (slot_id, student_id) key (a concurrent rebook by the
// same student).
func isBookingConflict(err error) bool {
	return isUniqueViolation(err, "exam_booking_pkey") ||
		isUniqueViolation(err, "exam_booking_slot_student_key")
}

func (repo examRepository) DeleteBooking(ctx context.Context, studentID string, slotID int) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM exam_booking WHERE slot_id = $1 AND student_id = $2`, slotID, studentID,
	)
	return errors.Wrap(err, "deleting booking")
}

func (repo examRepository) SlotSeats(ctx context.Context, slotID int) ([]exam.Seat, error) {
	var seats []exam.Seat
	err := repo.db.SelectContext(ctx, &seats,
		`SELECT b.bench, b.position, b.student_id, s.name AS student_name, s.grade
		 FROM exam_booking b
		 JOIN student s ON s.id = b.student_id
		 WHERE b.slot_id = $1
		 ORDER BY b.bench, b.position`,
		slotID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying slot seats")
	}
	return seats, nil
}
