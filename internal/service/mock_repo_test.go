package service

import (
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/domain"
	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/repository"
)

// mockTicketRepo is an in-memory TicketRepository for service tests.
type mockTicketRepo struct {
	doctors   []*domain.Doctor
	templates map[uint]*domain.DefaultSchedule
	schedules []*domain.DaySchedule
	tickets   []*domain.Ticket

	nextScheduleId uint
	nextTicketId   uint

	// failReserve makes ReserveSlot act like a concurrent winner took the
	// last slot between the scan and the write.
	failReserve bool
	// duplicateCodes forces the next N CreateTicket calls to report a
	// unique-code collision.
	duplicateCodes int
	// afterLockedScan runs once after a transactional SchedulesInRange,
	// standing in for a concurrent allocation that committed while this one
	// waited on the row locks.
	afterLockedScan func()

	// Postgres aborts the whole transaction when a statement fails; only a
	// rollback (to a savepoint or of the transaction) clears that state.
	// The mock mirrors this so transactional flows cannot rely on running
	// statements past a failure.
	txDepth int
	aborted bool
}

var errTxAborted = errors.New("current transaction is aborted, commands ignored until end of transaction block")

func (m *mockTicketRepo) statementCheck() error {
	if m.txDepth > 0 && m.aborted {
		return errTxAborted
	}
	return nil
}

func (m *mockTicketRepo) failStatement(err error) error {
	if m.txDepth > 0 {
		m.aborted = true
	}
	return err
}

func newMockTicketRepo() *mockTicketRepo {
	return &mockTicketRepo{
		templates:      make(map[uint]*domain.DefaultSchedule),
		nextScheduleId: 1,
		nextTicketId:   1,
	}
}

func (m *mockTicketRepo) addDoctor(id uint) {
	doctor := &domain.Doctor{FirstName: "Test", LastName: "Doctor"}
	doctor.ID = id
	m.doctors = append(m.doctors, doctor)
}

func (m *mockTicketRepo) addTemplate(doctorId uint, activeDays []int, patientCount int) {
	template := &domain.DefaultSchedule{
		DoctorId:            doctorId,
		ActiveDays:          activeDays,
		DefaultPatientCount: patientCount,
	}
	m.templates[doctorId] = template
}

func (m *mockTicketRepo) addSchedule(doctorId uint, date time.Time, maxPatients int, patients ...int64) *domain.DaySchedule {
	schedule := &domain.DaySchedule{
		DoctorId:    doctorId,
		Date:        date,
		MaxPatients: maxPatients,
		Patients:    append([]int64{}, patients...),
	}
	schedule.ID = m.nextScheduleId
	m.nextScheduleId++
	m.schedules = append(m.schedules, schedule)
	return schedule
}

func (m *mockTicketRepo) addTicket(scheduleId uint, patientId int, code string, expired, canceled bool) *domain.Ticket {
	ticket := &domain.Ticket{
		DayScheduleId: scheduleId,
		PatientId:     patientId,
		UniqueCode:    code,
		Expired:       expired,
		Canceled:      canceled,
	}
	ticket.ID = m.nextTicketId
	m.nextTicketId++
	m.tickets = append(m.tickets, ticket)
	return ticket
}

func (m *mockTicketRepo) scheduleByID(id uint) *domain.DaySchedule {
	for _, s := range m.schedules {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *mockTicketRepo) Transaction(fn func(repo repository.TicketRepository) error) error {
	m.txDepth++
	err := fn(m)
	m.txDepth--
	if err != nil {
		// Rolling back, to a savepoint when nested, clears the abort.
		m.aborted = false
	}
	return err
}

func (m *mockTicketRepo) GetDoctor(doctorId uint) (*domain.Doctor, error) {
	for _, d := range m.doctors {
		if d.ID == doctorId {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTicketRepo) ListDoctors() ([]domain.Doctor, error) {
	result := make([]domain.Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		result = append(result, *d)
	}
	return result, nil
}

func (m *mockTicketRepo) GetDefaultSchedule(doctorId uint) (*domain.DefaultSchedule, error) {
	if t, ok := m.templates[doctorId]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTicketRepo) FindActiveTicket(doctorId uint, patientId int) (*domain.Ticket, error) {
	if err := m.statementCheck(); err != nil {
		return nil, err
	}
	for _, t := range m.tickets {
		if t.Expired || t.Canceled || t.PatientId != patientId {
			continue
		}
		schedule := m.scheduleByID(t.DayScheduleId)
		if schedule != nil && schedule.DoctorId == doctorId {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockTicketRepo) SchedulesInRange(doctorId uint, from, to time.Time) ([]domain.DaySchedule, error) {
	if err := m.statementCheck(); err != nil {
		return nil, err
	}
	result := []domain.DaySchedule{}
	for _, s := range m.schedules {
		if s.DoctorId != doctorId {
			continue
		}
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	if m.txDepth > 0 && m.afterLockedScan != nil {
		hook := m.afterLockedScan
		m.afterLockedScan = nil
		hook()
	}
	return result, nil
}

func (m *mockTicketRepo) ReserveSlot(schedule *domain.DaySchedule, patientId int) error {
	if err := m.statementCheck(); err != nil {
		return err
	}
	if m.failReserve {
		return domain.ErrStorageConflict
	}
	stored := m.scheduleByID(schedule.ID)
	if stored == nil {
		return gorm.ErrRecordNotFound
	}
	if !stored.HasCapacity() {
		return domain.ErrStorageConflict
	}
	stored.Patients = append(stored.Patients, int64(patientId))
	schedule.Patients = stored.Patients
	return nil
}

func (m *mockTicketRepo) CreateTicket(ticket *domain.Ticket) error {
	if err := m.statementCheck(); err != nil {
		return err
	}
	if m.duplicateCodes > 0 {
		m.duplicateCodes--
		return m.failStatement(gorm.ErrDuplicatedKey)
	}
	for _, t := range m.tickets {
		if t.UniqueCode == ticket.UniqueCode {
			return m.failStatement(gorm.ErrDuplicatedKey)
		}
	}
	ticket.ID = m.nextTicketId
	m.nextTicketId++
	m.tickets = append(m.tickets, ticket)
	return nil
}

func (m *mockTicketRepo) FetchTicketsByPatient(patientId int) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for _, t := range m.tickets {
		if t.PatientId != patientId {
			continue
		}
		ticket := *t
		if schedule := m.scheduleByID(t.DayScheduleId); schedule != nil {
			ticket.DaySchedule = *schedule
		}
		result = append(result, ticket)
	}
	return result, nil
}

func (m *mockTicketRepo) GenerateSchedule(doctorId uint, date time.Time, capacity int) (bool, error) {
	for _, s := range m.schedules {
		if s.DoctorId == doctorId && s.Date.Equal(date) {
			return false, nil
		}
	}
	m.addSchedule(doctorId, date, capacity)
	return true, nil
}

func (m *mockTicketRepo) BulkExpire(before time.Time) (int64, error) {
	var count int64
	for _, t := range m.tickets {
		if t.Expired || t.Canceled {
			continue
		}
		schedule := m.scheduleByID(t.DayScheduleId)
		if schedule != nil && schedule.Date.Before(before) {
			t.Expired = true
			count++
		}
	}
	return count, nil
}

// mockProducer records published events.
type mockProducer struct {
	events []domain.TicketEvent
	err    error
}

func (m *mockProducer) TicketIssued(event domain.TicketEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}
