package student

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/token"
)

var (
	// errors
	ErrNotFound      = errors.New("student not found")
	ErrPhoneExists   = errors.New("a student with this phone number already exists")
	ErrClassNotFound = errors.New("class not found")
)

const qrBadgeSize = 256 // px

type (
	Repository interface {
		CheckPhoneUniqueness(ctx context.Context, phone string, excluded ...Student) error
		CreateStudent(ctx context.Context, stu Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		// FilterStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Student.Name or Student.Phone.
		FilterStudents(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, stu Student) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) error
		Enroll(ctx context.Context, studentID string, classID int) error
		ListStudentsByClass(ctx context.Context, classID int) ([]Student, error)
		GetClassByID(ctx context.Context, id int) (Class, error)
		GetClassByGrade(ctx context.Context, grade string) (Class, error)
		QueryAllClasses(ctx context.Context) ([]Class, error)
		UpdateClassFee(ctx context.Context, classID, fee int) (Class, error)
	}

	ServiceInterface interface {
		CheckUniqueness(phone string, excluded ...Student) error
		Create(ctx context.Context, ns NewStudent) (Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Filter(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, ids ...string) error
		ResetQR(ctx context.Context, id string) (Student, error)
		QRBadge(ctx context.Context, id string) ([]byte, error)
		ImportStudents(ctx context.Context, r io.Reader) (imported, skipped int, err error)
		GetClassByID(ctx context.Context, id int) (Class, error)
		QueryAllClasses(ctx context.Context) ([]Class, error)
		UpdateClassFee(ctx context.Context, classID, fee int) (Class, error)
	}

	Service struct {
		repo     Repository
		tokenSvc *token.Service
		mailSvc  core.EmailService
		validate *validator.Validate
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, tokenSvc *token.Service, mailSvc core.EmailService, validate *validator.Validate) *Service {
	return &Service{repo: repo, tokenSvc: tokenSvc, mailSvc: mailSvc, validate: validate}
}

func (svc *Service) CheckUniqueness(phone string, excluded ...Student) error {
	if err := svc.repo.CheckPhoneUniqueness(context.Background(), phone, excluded...); err != nil {
		if errors.Cause(err) != ErrPhoneExists {
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: "phone", Error: err.Error()})
	}
	return nil
}

// Create registers the student, issues their identity token, enrolls them
// in their grade's class and emails them their QR badge.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	stu := Student{
		Name:      ns.Name,
		Phone:     ns.Phone,
		Email:     ns.Email,
		Grade:     ns.Grade,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stu, err := svc.repo.CreateStudent(ctx, stu)
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}

	tok, err := svc.tokenSvc.Issue(ctx, stu.ID)
	if err != nil {
		return Student{}, errors.Wrap(err, "issuing token")
	}
	stu.QRToken = tok

	cls, err := svc.repo.GetClassByGrade(ctx, stu.Grade)
	if err != nil {
		return Student{}, errors.Wrap(err, "resolving grade class")
	}
	if err := svc.repo.Enroll(ctx, stu.ID, cls.ID); err != nil {
		return Student{}, errors.Wrap(err, "enrolling student")
	}

	svc.sendWelcomeEmail(stu, cls)
	return stu, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.FilterStudents(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	stu := Student{
		ID:        id,
		Name:      us.Name,
		Phone:     us.Phone,
		Email:     us.Email,
		Grade:     us.Grade,
		UpdatedAt: time.Now().UTC(),
	}
	stu, err := svc.repo.UpdateStudent(ctx, stu)
	if err != nil {
		return Student{}, err
	}

	// keep the grade class enrollment in sync
	cls, err := svc.repo.GetClassByGrade(ctx, stu.Grade)
	if err != nil {
		return Student{}, errors.Wrap(err, "resolving grade class")
	}
	if err := svc.repo.Enroll(ctx, stu.ID, cls.ID); err != nil {
		return Student{}, errors.Wrap(err, "enrolling student")
	}
	return stu, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteStudentsByID(ctx, ids...)
}

// ResetQR rotates the student's identity token; the previous QR badge
// stops resolving the moment the new one is issued.
func (svc *Service) ResetQR(ctx context.Context, id string) (Student, error) {
	stu, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	tok, err := svc.tokenSvc.Rotate(ctx, stu.ID)
	if err != nil {
		return Student{}, errors.Wrap(err, "rotating token")
	}
	stu.QRToken = tok

	if cls, cerr := svc.repo.GetClassByGrade(ctx, stu.Grade); cerr == nil {
		svc.sendWelcomeEmail(stu, cls)
	}
	return stu, nil
}

// QRBadge renders the student's current identity token as a QR PNG.
func (svc *Service) QRBadge(ctx context.Context, id string) ([]byte, error) {
	stu, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(stu.QRToken, qrcode.Medium, qrBadgeSize)
	if err != nil {
		return nil, errors.Wrap(err, "encoding QR badge")
	}
	return png, nil
}

// ImportStudents reads an xlsx stream with columns (Name, Phone, Grade, Email)
// and registers each row; rows failing validation are skipped, not fatal.
func (svc *Service) ImportStudents(ctx context.Context, r io.Reader) (imported, skipped int, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return 0, 0, errors.Wrap(err, "opening xlsx stream")
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return 0, 0, errors.New("xlsx file has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "reading sheet %s", sheet)
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		ns := NewStudent{}
		if len(row) > 0 {
			ns.Name = row[0]
		}
		if len(row) > 1 {
			ns.Phone = row[1]
		}
		if len(row) > 2 {
			ns.Grade = row[2]
		}
		if len(row) > 3 {
			ns.Email = row[3]
		}
		if err := ns.Validate(svc.validate, svc); err != nil {
			skipped++
			continue
		}
		if _, err := svc.Create(ctx, ns); err != nil {
			if errors.Cause(err) == token.ErrExhausted {
				return imported, skipped, err
			}
			skipped++
			continue
		}
		imported++
	}
	return imported, skipped, nil
}

func (svc *Service) GetClassByID(ctx context.Context, id int) (Class, error) {
	return svc.repo.GetClassByID(ctx, id)
}

func (svc *Service) QueryAllClasses(ctx context.Context) ([]Class, error) {
	return svc.repo.QueryAllClasses(ctx)
}

func (svc *Service) UpdateClassFee(ctx context.Context, classID, fee int) (Class, error) {
	return svc.repo.UpdateClassFee(ctx, classID, fee)
}

func (svc *Service) sendWelcomeEmail(stu Student, cls Class) {
	if stu.Email == "" {
		return
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: stu.Name, Address: stu.Email}},
		Subject: "Your attendance QR badge",
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nYou are enrolled in %s. Your QR badge is attached; "+
				"present it at the gate to mark your attendance.\n", stu.Name, cls.Name),
	}
	if png, err := qrcode.Encode(stu.QRToken, qrcode.Medium, qrBadgeSize); err == nil {
		_ = msg.Attach(bytes.NewReader(png), "qr-badge.png", "image/png")
	}
	svc.mailSvc.SendMessages(msg)
}
