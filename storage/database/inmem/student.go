// Package inmemdb provides in-memory repositories for tests and local
// hacking; they honor the same atomicity contracts as the postgres layer.
package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/student"
	"github.com/trezcool/darasa/core/token"
)

type studentRepository struct {
	mu          sync.Mutex
	students    map[string]student.Student // by ID
	classes     map[int]student.Class      // by ID
	enrollments map[string]map[int]bool    // studentID -> classIDs
	tokenIdx    map[string]string          // token -> studentID
	nextClassID int
}

var (
	_ student.Repository = (*studentRepository)(nil) // interface compliance checks
	_ token.Repository   = (*studentRepository)(nil)
)

func NewStudentRepository(classes ...student.Class) *studentRepository {
	repo := &studentRepository{
		students:    make(map[string]student.Student),
		classes:     make(map[int]student.Class),
		enrollments: make(map[string]map[int]bool),
		tokenIdx:    make(map[string]string),
		nextClassID: 1,
	}
	for _, cls := range classes {
		if cls.ID == 0 {
			cls.ID = repo.nextClassID
		}
		repo.classes[cls.ID] = cls
		if cls.ID >= repo.nextClassID {
			repo.nextClassID = cls.ID + 1
		}
	}
	return repo
}

func (repo *studentRepository) CheckPhoneUniqueness(ctx context.Context, phone string, excluded ...student.Student) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	skip := make(map[string]bool, len(excluded))
	for _, stu := range excluded {
		skip[stu.ID] = true
	}
	for _, stu := range repo.students {
		if stu.Phone == phone && !skip[stu.ID] {
			return student.ErrPhoneExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, existing := range repo.students {
		if existing.Phone == stu.Phone {
			return student.Student{}, student.ErrPhoneExists
		}
	}
	stu.ID = uuid.New().String()
	repo.students[stu.ID] = stu
	return stu, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stu, ok := repo.students[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	return stu, nil
}

func (repo *studentRepository) FilterStudents(ctx context.Context, filter student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	search := strings.ToLower(filter.Search)
	var students []student.Student
	for _, stu := range repo.students {
		if search != "" &&
			!strings.Contains(strings.ToLower(stu.Name), search) &&
			!strings.Contains(strings.ToLower(stu.Phone), search) {
			continue
		}
		if filter.Grade != "" && stu.Grade != filter.Grade {
			continue
		}
		if !filter.CreatedFrom.IsZero() && stu.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && stu.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		students = append(students, stu)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(students, func(i, j int) bool { return studentLess(students[i], students[j], ordering) })
	return students, nil
}

func studentLess(a, b student.Student, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var av, bv string
		switch ord.Field {
		case "name":
			av, bv = a.Name, b.Name
		case "phone":
			av, bv = a.Phone, b.Phone
		case "grade":
			av, bv = a.Grade, b.Grade
		case "created_at":
			av, bv = a.CreatedAt.Format("2006-01-02T15:04:05.000000000"), b.CreatedAt.Format("2006-01-02T15:04:05.000000000")
		default:
			continue
		}
		if av == bv {
			continue
		}
		if ord.Ascending {
			return av < bv
		}
		return av > bv
	}
	return false
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	orig, ok := repo.students[stu.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	for _, existing := range repo.students {
		if existing.Phone == stu.Phone && existing.ID != stu.ID {
			return student.Student{}, student.ErrPhoneExists
		}
	}
	stu.QRToken = orig.QRToken
	stu.CreatedAt = orig.CreatedAt
	repo.students[stu.ID] = stu
	return stu, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, id := range ids {
		if stu, ok := repo.students[id]; ok {
			delete(repo.tokenIdx, stu.QRToken)
			delete(repo.students, id)
			delete(repo.enrollments, id)
		}
	}
	return nil
}

func (repo *studentRepository) Enroll(ctx context.Context, studentID string, classID int) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if repo.enrollments[studentID] == nil {
		repo.enrollments[studentID] = make(map[int]bool)
	}
	repo.enrollments[studentID][classID] = true
	return nil
}

func (repo *studentRepository) ListStudentsByClass(ctx context.Context, classID int) ([]student.Student, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var students []student.Student
	for id, classIDs := range repo.enrollments {
		if classIDs[classID] {
			students = append(students, repo.students[id])
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (repo *studentRepository) GetClassByID(ctx context.Context, id int) (student.Class, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	cls, ok := repo.classes[id]
	if !ok {
		return student.Class{}, student.ErrClassNotFound
	}
	return cls, nil
}

func (repo *studentRepository) GetClassByGrade(ctx context.Context, grade string) (student.Class, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, cls := range repo.classes {
		if cls.Grade == grade {
			return cls, nil
		}
	}
	return student.Class{}, student.ErrClassNotFound
}

func (repo *studentRepository) QueryAllClasses(ctx context.Context) ([]student.Class, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	classes := make([]student.Class, 0, len(repo.classes))
	for _, cls := range repo.classes {
		classes = append(classes, cls)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	return classes, nil
}

func (repo *studentRepository) UpdateClassFee(ctx context.Context, classID, fee int) (student.Class, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	cls, ok := repo.classes[classID]
	if !ok {
		return student.Class{}, student.ErrClassNotFound
	}
	cls.MonthlyFee = fee
	repo.classes[classID] = cls
	return cls, nil
}

// token.Repository

func (repo *studentRepository) StudentIDByToken(ctx context.Context, tok string) (string, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	id, ok := repo.tokenIdx[tok]
	if !ok {
		return "", token.ErrInvalidToken
	}
	return id, nil
}

// SetStudentToken performs the check-and-swap under one lock, matching the
// unique-index guarantee of the postgres layer.
func (repo *studentRepository) SetStudentToken(ctx context.Context, studentID, tok string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if holder, taken := repo.tokenIdx[tok]; taken && holder != studentID {
		return token.ErrTokenExists
	}
	stu, ok := repo.students[studentID]
	if !ok {
		return student.ErrNotFound
	}
	delete(repo.tokenIdx, stu.QRToken)
	stu.QRToken = tok
	repo.students[studentID] = stu
	repo.tokenIdx[tok] = studentID
	return nil
}
