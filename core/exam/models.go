package exam

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Positions per bench is fixed by the physical bench layout.
const MaxPositions = 4

type (
	// Slot is a fixed exam session window with a bench capacity; seeded at
	// startup, not created by end users.
	Slot struct {
		ID         int    `db:"id" json:"id"`
		Label      string `db:"label" json:"label"`
		BenchCount int    `db:"bench_count" json:"bench_count"`
	}

	// Booking is a seat assignment; unique per (slot, bench, position) and
	// per (slot, student).
	Booking struct {
		SlotID    int       `db:"slot_id" json:"slot_id"`
		Bench     int       `db:"bench" json:"bench"`
		Position  int       `db:"position" json:"position"`
		StudentID string    `db:"student_id" json:"student_id"`
		CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	}

	// Seat is a layout projection entry.
	Seat struct {
		Bench       int    `db:"bench" json:"bench"`
		Position    int    `db:"position" json:"position"`
		StudentID   string `db:"student_id" json:"student_id"`
		StudentName string `db:"student_name" json:"student_name"`
		Grade       string `db:"grade" json:"grade"`
	}

	// Layout is a single consistent snapshot of a slot's seating.
	Layout struct {
		Slot  Slot   `json:"slot"`
		Seats []Seat `json:"seats"`
	}
)

// NewBooking is a student's seat pick; range checks against the slot's
// capacity happen in the service, these tags only reject garbage early.
type NewBooking struct {
	Bench    int `json:"bench" validate:"required,min=1"`
	Position int `json:"position" validate:"required,min=1,max=4"`
}

func (nb NewBooking) Validate(validate *validator.Validate) error {
	return validate.Struct(nb)
}
