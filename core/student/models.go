package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type (
	// Class is a fee-bearing cohort group; grade and class are the same
	// key in this domain (exactly one class per grade label).
	Class struct {
		ID         int    `db:"id" json:"id"`
		Grade      string `db:"grade" json:"grade"`
		Name       string `db:"name" json:"name"`
		MonthlyFee int    `db:"monthly_fee" json:"monthly_fee"`
	}

	Student struct {
		ID        string    `db:"id" json:"id"`
		Name      string    `db:"name" json:"name"`
		Phone     string    `db:"phone" json:"phone"`
		Email     string    `db:"email" json:"email"`
		Grade     string    `db:"grade" json:"grade"`
		QRToken   string    `db:"qr_token" json:"-"` // current identity token; never serialized
		CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
		UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
	}
)

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required,phone"`
	Email string `json:"email" validate:"omitempty,email"`
	Grade string `json:"grade" validate:"required,grade"`
}

func (ns *NewStudent) Validate(validate *validator.Validate, svc ServiceInterface) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Grade = core.CleanString(ns.Grade)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ns.Phone)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
type UpdateStudent struct {
	Name  string `json:"name"`
	Phone string `json:"phone" validate:"omitempty,phone"`
	Email string `json:"email" validate:"omitempty,email"`
	Grade string `json:"grade" validate:"omitempty,grade"`
}

func (us *UpdateStudent) Validate(origStu Student, validate *validator.Validate, svc ServiceInterface) error {
	name := core.CleanString(us.Name)
	if name != "" {
		us.Name = name
	} else {
		us.Name = origStu.Name
	}

	phone := core.CleanString(us.Phone)
	if phone != "" {
		us.Phone = phone
	} else {
		us.Phone = origStu.Phone
	}

	email := core.CleanString(us.Email, true /* lower */)
	if email != "" {
		us.Email = email
	} else {
		us.Email = origStu.Email
	}

	grade := core.CleanString(us.Grade)
	if grade != "" {
		us.Grade = grade
	} else {
		us.Grade = origStu.Grade
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	return svc.CheckUniqueness(us.Phone, origStu)
}

// UpdateClass defines the mutable part of a Class.
type UpdateClass struct {
	MonthlyFee int `json:"monthly_fee" validate:"min=0"`
}

func (uc UpdateClass) Validate(validate *validator.Validate) error {
	return validate.Struct(uc)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Grade       string    `query:"grade"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Grade == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Grade = core.CleanString(qf.Grade)
}
