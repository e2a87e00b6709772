package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TicketRepository interface {
	Transaction(fn func(repo TicketRepository) error) error
	GetDoctor(doctorId uint) (*domain.Doctor, error)
	ListDoctors() ([]domain.Doctor, error)
	GetDefaultSchedule(doctorId uint) (*domain.DefaultSchedule, error)
	FindActiveTicket(doctorId uint, patientId int) (*domain.Ticket, error)
	SchedulesInRange(doctorId uint, from, to time.Time) ([]domain.DaySchedule, error)
	ReserveSlot(schedule *domain.DaySchedule, patientId int) error
	CreateTicket(ticket *domain.Ticket) error
	FetchTicketsByPatient(patientId int) ([]domain.Ticket, error)
	GenerateSchedule(doctorId uint, date time.Time, capacity int) (bool, error)
	BulkExpire(before time.Time) (int64, error)
}

type ticketRepository struct {
	db *gorm.DB
	// locking is set on transaction-scoped repositories so that ranged schedule
	// reads take row locks for the reservation that follows.
	locking bool
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{
		db: db,
	}
}

// Transaction runs fn against a repository bound to a single database
// transaction. Schedule reads inside it use SELECT ... FOR UPDATE, so two
// allocations for the same doctor serialize on the doctor's week rows while
// allocations for different doctors proceed in parallel.
func (r *ticketRepository) Transaction(fn func(repo TicketRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&ticketRepository{db: tx, locking: true})
	})
}

func (r *ticketRepository) GetDoctor(doctorId uint) (*domain.Doctor, error) {
	var doctor domain.Doctor
	if err := r.db.First(&doctor, doctorId).Error; err != nil {
		return nil, err
	}
	return &doctor, nil
}

func (r *ticketRepository) ListDoctors() ([]domain.Doctor, error) {
	var doctors []domain.Doctor
	if err := r.db.Find(&doctors).Error; err != nil {
		return nil, err
	}
	return doctors, nil
}

func (r *ticketRepository) GetDefaultSchedule(doctorId uint) (*domain.DefaultSchedule, error) {
	var schedule domain.DefaultSchedule
	if err := r.db.Where("doctor_id = ?", doctorId).First(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindActiveTicket returns the patient's active ticket with the given doctor,
// or nil when there is none. Doctor scoping goes through the day_schedules
// relation because tickets only reference their schedule.
func (r *ticketRepository) FindActiveTicket(doctorId uint, patientId int) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := r.db.Model(&domain.Ticket{}).
		Joins("JOIN day_schedules ON day_schedules.id = tickets.day_schedule_id").
		Where("day_schedules.doctor_id = ? AND tickets.patient_id = ? AND tickets.expired = ? AND tickets.canceled = ?",
			doctorId, patientId, false, false).
		First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// SchedulesInRange returns the doctor's schedules with from <= date <= to,
// ascending by date. An empty result is not an error.
func (r *ticketRepository) SchedulesInRange(doctorId uint, from, to time.Time) ([]domain.DaySchedule, error) {
	schedules := []domain.DaySchedule{}
	query := r.db.
		Where("doctor_id = ? AND date BETWEEN ? AND ?", doctorId, from, to).
		Order("date ASC")
	if r.locking {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

// ReserveSlot appends the patient to the schedule's occupied list. The
// capacity invariant is re-validated here, inside the caller's transaction and
// under the row lock, right before the write; a concurrent winner surfaces as
// ErrStorageConflict and nothing is persisted.
func (r *ticketRepository) ReserveSlot(schedule *domain.DaySchedule, patientId int) error {
	if !schedule.HasCapacity() {
		return domain.ErrStorageConflict
	}
	schedule.Patients = append(schedule.Patients, int64(patientId))
	if len(schedule.Patients) > schedule.MaxPatients {
		return domain.ErrStorageConflict
	}
	if err := r.db.Model(schedule).Update("patients", schedule.Patients).Error; err != nil {
		return fmt.Errorf("failed to reserve slot on schedule %d: %w", schedule.ID, err)
	}
	return nil
}

func (r *ticketRepository) CreateTicket(ticket *domain.Ticket) error {
	return r.db.Create(ticket).Error
}

func (r *ticketRepository) FetchTicketsByPatient(patientId int) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := r.db.Preload("DaySchedule").
		Where("patient_id = ?", patientId).
		Order("created_at DESC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// GenerateSchedule creates an empty day schedule unless one already exists for
// the doctor and date. Returns whether a row was created, so re-runs are
// no-ops.
func (r *ticketRepository) GenerateSchedule(doctorId uint, date time.Time, capacity int) (bool, error) {
	schedule := domain.DaySchedule{
		DoctorId:    doctorId,
		Date:        date,
		MaxPatients: capacity,
		Patients:    []int64{},
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doctor_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(&schedule)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// BulkExpire flips expired on every active ticket whose schedule date is
// strictly before the given date. Already expired or canceled tickets are left
// alone, so overlapping runs converge on the same state.
func (r *ticketRepository) BulkExpire(before time.Time) (int64, error) {
	result := r.db.Model(&domain.Ticket{}).
		Where("expired = ? AND canceled = ?", false, false).
		Where("day_schedule_id IN (?)",
			r.db.Model(&domain.DaySchedule{}).Select("id").Where("date < ?", before)).
		Update("expired", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
