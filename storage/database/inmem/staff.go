package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/staff"
)

type adminRepository struct {
	mu     sync.Mutex
	admins map[string]staff.Admin // by ID
}

var _ staff.Repository = (*adminRepository)(nil) // interface compliance check

func NewAdminRepository() *adminRepository {
	return &adminRepository{admins: make(map[string]staff.Admin)}
}

func (repo *adminRepository) CheckAdminUniqueness(ctx context.Context, username, email string, excluded ...staff.Admin) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	skip := make(map[string]bool, len(excluded))
	for _, adm := range excluded {
		skip[adm.ID] = true
	}
	for _, adm := range repo.admins {
		if skip[adm.ID] {
			continue
		}
		if adm.Username == username {
			return staff.ErrUsernameExists
		}
		if adm.Email == email {
			return staff.ErrEmailExists
		}
	}
	return nil
}

func (repo *adminRepository) CreateAdmin(ctx context.Context, adm staff.Admin) (staff.Admin, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	adm.ID = uuid.New().String()
	repo.admins[adm.ID] = adm
	return adm, nil
}

func (repo *adminRepository) GetAdminByID(ctx context.Context, id string) (staff.Admin, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	adm, ok := repo.admins[id]
	if !ok {
		return staff.Admin{}, staff.ErrNotFound
	}
	return adm, nil
}

func (repo *adminRepository) GetAdminByUsernameOrEmail(ctx context.Context, username string) (staff.Admin, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, adm := range repo.admins {
		if adm.Username == username || adm.Email == username {
			return adm, nil
		}
	}
	return staff.Admin{}, staff.ErrNotFound
}

func (repo *adminRepository) SetAdminPassword(ctx context.Context, adm staff.Admin) (staff.Admin, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	orig, ok := repo.admins[adm.ID]
	if !ok {
		return staff.Admin{}, staff.ErrNotFound
	}
	orig.PasswordHash = adm.PasswordHash
	orig.UpdatedAt = adm.UpdatedAt
	repo.admins[adm.ID] = orig
	return orig, nil
}

func (repo *adminRepository) SetAdminLastLogin(ctx context.Context, adm staff.Admin) (staff.Admin, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	orig, ok := repo.admins[adm.ID]
	if !ok {
		return staff.Admin{}, staff.ErrNotFound
	}
	orig.LastLogin = adm.LastLogin
	repo.admins[adm.ID] = orig
	return orig, nil
}
