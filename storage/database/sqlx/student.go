package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/student"
	"github.com/trezcool/darasa/core/token"
)

type studentRepository struct {
	db *sqlx.DB
}

var (
	_ student.Repository = (*studentRepository)(nil) // interface compliance checks
	_ token.Repository   = (*studentRepository)(nil)
)

// orderable whitelists FilterStudents ordering fields.
var orderable = map[string]bool{
	"name":       true,
	"phone":      true,
	"grade":      true,
	"created_at": true,
}

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) CheckPhoneUniqueness(ctx context.Context, phone string, excluded ...student.Student) error {
	query := `SELECT EXISTS (SELECT 1 FROM student WHERE phone = ?`
	args := []interface{}{phone}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, stu := range excluded {
			ids = append(ids, stu.ID)
		}
		query += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	query += `)`

	q, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, repo.db.Rebind(q), inArgs...); err != nil {
		return errors.Wrap(err, "checking phone uniqueness")
	}
	if exists {
		return student.ErrPhoneExists
	}
	return nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	stu.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO student (id, name, phone, email, grade, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		stu.ID, stu.Name, stu.Phone, stu.Email, stu.Grade, stu.CreatedAt, stu.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "student_phone_key") {
			return student.Student{}, student.ErrPhoneExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return stu, nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	var stu student.Student
	if err := repo.db.GetContext(ctx, &stu, `SELECT * FROM student WHERE id = $1`, id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student by ID")
	}
	return stu, nil
}

func (repo studentRepository) FilterStudents(ctx context.Context, filter student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	query := `SELECT * FROM student`
	var clauses []string
	var args []interface{}

	if filter.Search != "" {
		clauses = append(clauses, `(name ILIKE ? OR phone ILIKE ?)`)
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Grade != "" {
		clauses = append(clauses, `grade = ?`)
		args = append(args, filter.Grade)
	}
	if !filter.CreatedFrom.IsZero() {
		clauses = append(clauses, `created_at >= ?`)
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		clauses = append(clauses, `created_at <= ?`)
		args = append(args, filter.CreatedTo.UTC())
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}

	orderBy := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if orderable[ord.Field] {
			orderBy = append(orderBy, ord.String())
		}
	}
	if len(orderBy) == 0 {
		orderBy = append(orderBy, core.DBOrdering{Field: "created_at"}.String())
	}
	query += ` ORDER BY ` + strings.Join(orderBy, `, `)

	var students []student.Student
	if err := repo.db.SelectContext(ctx, &students, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	err := repo.db.GetContext(ctx, &stu,
		`UPDATE student SET name = $1, phone = $2, email = $3, grade = $4, updated_at = $5
		 WHERE id = $6
		 RETURNING *`,
		stu.Name, stu.Phone, stu.Email, stu.Grade, stu.UpdatedAt, stu.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "student_phone_key") {
			return student.Student{}, student.ErrPhoneExists
		}
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "updating student")
	}
	return stu, nil
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM student WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}

func (repo studentRepository) Enroll(ctx context.Context, studentID string, classID int) error {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO enrollment (student_id, class_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		studentID, classID,
	)
	return errors.Wrap(err, "enrolling student")
}

func (repo studentRepository) ListStudentsByClass(ctx context.Context, classID int) ([]student.Student, error) {
	var students []student.Student
	err := repo.db.SelectContext(ctx, &students,
		`SELECT s.* FROM student s
		 JOIN enrollment e ON e.student_id = s.id
		 WHERE e.class_id = $1
		 ORDER BY s.name`,
		classID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing class students")
	}
	return students, nil
}

func (repo studentRepository) GetClassByID(ctx context.Context, id int) (student.Class, error) {
	var cls student.Class
	if err := repo.db.GetContext(ctx, &cls, `SELECT * FROM class WHERE id = $1`, id); err != nil {
		return student.Class{}, trapNoRowsErr(err, student.ErrClassNotFound, "finding class by ID")
	}
	return cls, nil
}

func (repo studentRepository) GetClassByGrade(ctx context.Context, grade string) (student.Class, error) {
	var cls student.Class
	if err := repo.db.GetContext(ctx, &cls, `SELECT * FROM class WHERE grade = $1`, grade); err != nil {
		return student.Class{}, trapNoRowsErr(err, student.ErrClassNotFound, "finding class by grade")
	}
	return cls, nil
}

func (repo studentRepository) QueryAllClasses(ctx context.Context) ([]student.Class, error) {
	var classes []student.Class
	if err := repo.db.SelectContext(ctx, &classes, `SELECT * FROM class ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	return classes, nil
}

func (repo studentRepository) UpdateClassFee(ctx context.Context, classID, fee int) (student.Class, error) {
	var cls student.Class
	err := repo.db.GetContext(ctx, &cls,
		`UPDATE class SET monthly_fee = $1 WHERE id = $2 RETURNING *`, fee, classID,
	)
	if err != nil {
		return student.Class{}, trapNoRowsErr(err, student.ErrClassNotFound, "updating class fee")
	}
	return cls, nil
}

// token.Repository

func (repo studentRepository) StudentIDByToken(ctx context.Context, tok string) (string, error) {
	var id string
	err := repo.db.GetContext(ctx, &id,
		`SELECT id FROM student WHERE qr_token = $1 AND qr_token <> ''`, tok,
	)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return "", token.ErrInvalidToken
		}
		return "", errors.Wrap(err, "resolving token")
	}
	return id, nil
}

// SetStudentToken atomically swaps the student's current token for tok;
// the partial unique index on qr_token arbitrates collisions.
func (repo studentRepository) SetStudentToken(ctx context.Context, studentID, tok string) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE student SET qr_token = $1, updated_at = now() WHERE id = $2`, tok, studentID,
	)
	if err != nil {
		if isUniqueViolation(err, "student_qr_token_key") {
			return token.ErrTokenExists
		}
		return errors.Wrap(err, "setting student token")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.ErrNotFound
	}
	return nil
}
