package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/student"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

type (
	// Attendance is a fact keyed by (student, class, date); presence is
	// boolean by existence of the row.
	Attendance struct {
		StudentID string    `db:"student_id" json:"student_id"`
		ClassID   int       `db:"class_id" json:"class_id"`
		Date      time.Time `db:"date" json:"date"`
		MarkedAt  time.Time `db:"marked_at" json:"marked_at"` // UTC
	}

	// Payment is a fact keyed by (student, class, month); at most one row
	// per key, a later payment replaces amount/method.
	Payment struct {
		StudentID string    `db:"student_id" json:"student_id"`
		ClassID   int       `db:"class_id" json:"class_id"`
		Month     string    `db:"month" json:"month"` // YYYY-MM
		Amount    int       `db:"amount" json:"amount"`
		Method    string    `db:"method" json:"method"`
		PaidAt    time.Time `db:"paid_at" json:"paid_at"` // UTC
	}

	// ScanResult is what a QR scan resolves to: the student, their class,
	// whether attendance had already been marked today and the payment
	// state for the current month.
	ScanResult struct {
		Student       student.Student `json:"student"`
		Class         student.Class   `json:"class"`
		AlreadyMarked bool            `json:"already_marked"`
		Paid          bool            `json:"paid"`
		AmountDue     int             `json:"amount_due"`
	}

	// Sheet is a per-class monthly register of attendance and payments.
	Sheet struct {
		Class student.Class `json:"class"`
		Month string        `json:"month"`
		Rows  []SheetRow    `json:"rows"`
	}

	SheetRow struct {
		Student student.Student `json:"student"`
		Dates   []time.Time     `json:"dates"`
		Paid    bool            `json:"paid"`
		Amount  int             `json:"amount"`
	}
)

// MarkRequest is a manual attendance mark/unmark by an admin.
type MarkRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
}

func (mr *MarkRequest) Validate(validate *validator.Validate) error {
	mr.StudentID = core.CleanString(mr.StudentID)
	mr.Date = core.CleanString(mr.Date)
	return validate.Struct(mr)
}

func (mr MarkRequest) ParsedDate() time.Time {
	d, _ := time.Parse(DateLayout, mr.Date)
	return d
}

// NewPayment records (or replaces) a monthly payment.
type NewPayment struct {
	StudentID string `json:"student_id" validate:"required"`
	Month     string `json:"month" validate:"required,month"`
	Amount    int    `json:"amount" validate:"required,min=1"`
	Method    string `json:"method" validate:"omitempty,oneof=cash mobile card"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.Month = core.CleanString(np.Month)
	if np.Method == "" {
		np.Method = "cash"
	}
	return validate.Struct(np)
}
