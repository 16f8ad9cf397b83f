package staff

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("admin not found")
	ErrUsernameExists = errors.New("an admin with this username already exists")
	ErrEmailExists    = errors.New("an admin with this email already exists")
)

type (
	Repository interface {
		CheckAdminUniqueness(ctx context.Context, username, email string, excluded ...Admin) error
		CreateAdmin(ctx context.Context, adm Admin) (Admin, error)
		GetAdminByID(ctx context.Context, id string) (Admin, error)
		GetAdminByUsernameOrEmail(ctx context.Context, username string) (Admin, error)
		SetAdminPassword(ctx context.Context, adm Admin) (Admin, error)
		SetAdminLastLogin(ctx context.Context, adm Admin) (Admin, error)
	}

	ServiceInterface interface {
		CheckUniqueness(uname, email string, excluded ...Admin) error
		Create(ctx context.Context, na NewAdmin) (Admin, error)
		GetByID(ctx context.Context, id string) (Admin, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (Admin, error)
		SetLastLogin(ctx context.Context, adm Admin) (Admin, error)
		ResetPassword(ctx context.Context, uname, pwd string) error
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckUniqueness(uname, email string, excluded ...Admin) error {
	if err := svc.repo.CheckAdminUniqueness(context.Background(), uname, email, excluded...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, na NewAdmin) (Admin, error) {
	now := time.Now().UTC()
	adm := Admin{
		Name:      na.Name,
		Username:  na.Username,
		Email:     na.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := adm.SetPassword(na.Password); err != nil {
		return Admin{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateAdmin(ctx, adm)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Admin, error) {
	return svc.repo.GetAdminByID(ctx, id)
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (Admin, error) {
	return svc.repo.GetAdminByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) SetLastLogin(ctx context.Context, adm Admin) (Admin, error) {
	adm.LastLogin = time.Now().UTC()
	return svc.repo.SetAdminLastLogin(ctx, adm)
}

func (svc *Service) ResetPassword(ctx context.Context, uname, pwd string) error {
	adm, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err := adm.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	adm.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.SetAdminPassword(ctx, adm)
	return err
}
