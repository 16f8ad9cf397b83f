package exam

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/student"
)

var (
	// errors
	ErrSlotNotFound    = errors.New("exam slot not found")
	ErrStudentNotFound = errors.New("student not found")
	ErrIneligible      = errors.New("this grade may not book exam seats")
	ErrInvalidSeat     = errors.New("bench or position out of range")
	// ErrSeatTaken is an expected steady-state race, not a bug: the caller
	// should refresh the layout and pick another seat.
	ErrSeatTaken = errors.New("seat already taken, refresh and pick another")
)

type (
	Repository interface {
		GetSlot(ctx context.Context, id int) (Slot, error)
		QueryAllSlots(ctx context.Context) ([]Slot, error)
		// ReplaceBooking releases any booking the student holds in the slot
		// and inserts the new one as a single atomic unit; a seat conflict
		// rolls the whole thing back (the prior seat is preserved) and
		// returns ErrSeatTaken.
		ReplaceBooking(ctx context.Context, b Booking) (Booking, error)
		// DeleteBooking removes the student's booking in the slot if any;
		// absence is not an error.
		DeleteBooking(ctx context.Context, studentID string, slotID int) error
		// SlotSeats returns a single consistent snapshot of the slot's
		// occupied seats.
		SlotSeats(ctx context.Context, slotID int) ([]Seat, error)
	}

	// StudentGetter is the narrow lookup surface the engine needs;
	// satisfied by the student repositories.
	StudentGetter interface {
		GetStudentByID(ctx context.Context, id string) (student.Student, error)
	}

	Service struct {
		repo     Repository
		students StudentGetter
		eligible map[string]bool // immutable after construction
	}
)

// NewService builds the engine; eligibleGrades is the fixed cohort
// allow-list loaded from configuration at process start.
func NewService(repo Repository, students StudentGetter, eligibleGrades []string) *Service {
	eligible := make(map[string]bool, len(eligibleGrades))
	for _, g := range eligibleGrades {
		eligible[g] = true
	}
	return &Service{repo: repo, students: students, eligible: eligible}
}

// Book assigns the seat to the student, moving them if they already hold a
// seat in the slot. First committed writer wins a contested seat; the
// loser keeps their previous booking and must re-query the layout before
// retrying — the engine does not queue or auto-reassign.
func (svc *Service) Book(ctx context.Context, studentID string, slotID, bench, position int) (Booking, error) {
	stu, err := svc.students.GetStudentByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return Booking{}, ErrStudentNotFound
		}
		return Booking{}, errors.Wrap(err, "finding student")
	}
	if !svc.eligible[stu.Grade] {
		return Booking{}, ErrIneligible
	}

	slot, err := svc.repo.GetSlot(ctx, slotID)
	if err != nil {
		return Booking{}, err
	}
	if bench < 1 || bench > slot.BenchCount || position < 1 || position > MaxPositions {
		return Booking{}, ErrInvalidSeat
	}

	return svc.repo.ReplaceBooking(ctx, Booking{
		SlotID:    slot.ID,
		Bench:     bench,
		Position:  position,
		StudentID: stu.ID,
		CreatedAt: time.Now().UTC(),
	})
}

// Cancel releases the student's seat in the slot; idempotent.
func (svc *Service) Cancel(ctx context.Context, studentID string, slotID int) error {
	if _, err := svc.repo.GetSlot(ctx, slotID); err != nil {
		return err
	}
	return svc.repo.DeleteBooking(ctx, studentID, slotID)
}

// Layout returns the slot's seating snapshot; safe to poll.
func (svc *Service) Layout(ctx context.Context, slotID int) (Layout, error) {
	slot, err := svc.repo.GetSlot(ctx, slotID)
	if err != nil {
		return Layout{}, err
	}
	seats, err := svc.repo.SlotSeats(ctx, slot.ID)
	if err != nil {
		return Layout{}, errors.Wrap(err, "loading slot seats")
	}
	if seats == nil {
		seats = []Seat{}
	}
	return Layout{Slot: slot, Seats: seats}, nil
}

// Slots lists the seeded exam slots.
func (svc *Service) Slots(ctx context.Context) ([]Slot, error) {
	return svc.repo.QueryAllSlots(ctx)
}
