package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/trezcool/darasa/core/exam"
)

type (
	seatKey struct {
		slotID   int
		bench    int
		position int
	}

	examRepository struct {
		mu       sync.Mutex
		slots    map[int]exam.Slot
		seats    map[seatKey]exam.Booking
		students exam.StudentGetter
	}
)

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

// NewExamRepository takes the student lookup for the seat layout join.
func NewExamRepository(students exam.StudentGetter, slots ...exam.Slot) *examRepository {
	repo := &examRepository{
		slots:    make(map[int]exam.Slot, len(slots)),
		seats:    make(map[seatKey]exam.Booking),
		students: students,
	}
	for _, slot := range slots {
		repo.slots[slot.ID] = slot
	}
	return repo
}

func (repo *examRepository) GetSlot(ctx context.Context, id int) (exam.Slot, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	slot, ok := repo.slots[id]
	if !ok {
		return exam.Slot{}, exam.ErrSlotNotFound
	}
	return slot, nil
}

func (repo *examRepository) QueryAllSlots(ctx context.Context) ([]exam.Slot, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	slots := make([]exam.Slot, 0, len(repo.slots))
	for _, slot := range repo.slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots, nil
}

// ReplaceBooking is atomic under the lock: on a seat conflict nothing
// changes, so the student keeps whatever seat they already held.
func (repo *examRepository) ReplaceBooking(ctx context.Context, b exam.Booking) (exam.Booking, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	key := seatKey{b.SlotID, b.Bench, b.Position}
	if holder, taken := repo.seats[key]; taken && holder.StudentID != b.StudentID {
		return exam.Booking{}, exam.ErrSeatTaken
	}
	for k, existing := range repo.seats {
		if k.slotID == b.SlotID && existing.StudentID == b.StudentID {
			delete(repo.seats, k)
		}
	}
	repo.seats[key] = b
	return b, nil
}

func (repo *examRepository) DeleteBooking(ctx context.Context, studentID string, slotID int) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for k, existing := range repo.seats {
		if k.slotID == slotID && existing.StudentID == studentID {
			delete(repo.seats, k)
		}
	}
	return nil
}

func (repo *examRepository) SlotSeats(ctx context.Context, slotID int) ([]exam.Seat, error) {
	repo.mu.Lock()
	bookings := make([]exam.Booking, 0)
	for k, b := range repo.seats {
		if k.slotID == slotID {
			bookings = append(bookings, b)
		}
	}
	repo.mu.Unlock()

	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Bench != bookings[j].Bench {
			return bookings[i].Bench < bookings[j].Bench
		}
		return bookings[i].Position < bookings[j].Position
	})

	seats := make([]exam.Seat, 0, len(bookings))
	for _, b := range bookings {
		seat := exam.Seat{Bench: b.Bench, Position: b.Position, StudentID: b.StudentID}
		if stu, err := repo.students.GetStudentByID(ctx, b.StudentID); err == nil {
			seat.StudentName = stu.Name
			seat.Grade = stu.Grade
		}
		seats = append(seats, seat)
	}
	return seats, nil
}
