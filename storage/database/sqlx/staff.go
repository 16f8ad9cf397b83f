package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/staff"
)

type adminRepository struct {
	db *sqlx.DB
}

var _ staff.Repository = (*adminRepository)(nil) // interface compliance check

func NewAdminRepository(db *sqlx.DB) *adminRepository {
	return &adminRepository{db: db}
}

// dbAdmin carries the nullable last_login column.
type dbAdmin struct {
	staff.Admin
	LastLogin sql.NullTime `db:"last_login"`
}

func (row dbAdmin) admin() staff.Admin {
	adm := row.Admin
	if row.LastLogin.Valid {
		adm.LastLogin = row.LastLogin.Time
	}
	return adm
}

func (repo adminRepository) CheckAdminUniqueness(ctx context.Context, username, email string, excluded ...staff.Admin) error {
	query := `SELECT username = $1, email = $2 FROM admin WHERE (username = $1 OR email = $2)`
	args := []interface{}{username, email}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, adm := range excluded {
			ids = append(ids, adm.ID)
		}
		q, inArgs, err := sqlx.In(query+` AND id NOT IN (?)`, username, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query = repo.db.Rebind(q)
		args = inArgs
	}

	var unameTaken, emailTaken bool
	err := repo.db.QueryRowContext(ctx, query+` LIMIT 1`, args...).Scan(&unameTaken, &emailTaken)
	if errors.Cause(err) == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "checking admin uniqueness")
	}
	if unameTaken {
		return staff.ErrUsernameExists
	}
	if emailTaken {
		return staff.ErrEmailExists
	}
	return nil
}

func (repo adminRepository) CreateAdmin(ctx context.Context, adm staff.Admin) (staff.Admin, error) {
	adm.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO admin (id, name, username, email, is_active, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		adm.ID, adm.Name, adm.Username, adm.Email, adm.IsActive, adm.PasswordHash, adm.CreatedAt, adm.UpdatedAt,
	)
	if err != nil {
		return staff.Admin{}, errors.Wrap(err, "inserting admin")
	}
	return adm, nil
}

func (repo adminRepository) GetAdminByID(ctx context.Context, id string) (staff.Admin, error) {
	var row dbAdmin
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM admin WHERE id = $1`, id)
	if err != nil {
		return staff.Admin{}, trapNoRowsErr(err, staff.ErrNotFound, "finding admin by ID")
	}
	return row.admin(), nil
}

func (repo adminRepository) GetAdminByUsernameOrEmail(ctx context.Context, username string) (staff.Admin, error) {
	var row dbAdmin
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM admin WHERE username = $1 OR email = $1`, username)
	if err != nil {
		return staff.Admin{}, trapNoRowsErr(err, staff.ErrNotFound, "finding admin by username or email")
	}
	return row.admin(), nil
}

func (repo adminRepository) SetAdminPassword(ctx context.Context, adm staff.Admin) (staff.Admin, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE admin SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		adm.PasswordHash, adm.UpdatedAt, adm.ID,
	)
	if err != nil {
		return staff.Admin{}, errors.Wrap(err, "updating admin password")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return staff.Admin{}, staff.ErrNotFound
	}
	return adm, nil
}

func (repo adminRepository) SetAdminLastLogin(ctx context.Context, adm staff.Admin) (staff.Admin, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE admin SET last_login = $1 WHERE id = $2`, adm.LastLogin, adm.ID,
	)
	if err != nil {
		return staff.Admin{}, errors.Wrap(err, "updating admin last login")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return staff.Admin{}, staff.ErrNotFound
	}
	return adm, nil
}
