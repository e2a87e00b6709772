package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/domain"
	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/repository"
)

const (
	ticketCodeLength = 20
	ticketCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// Retries when a freshly generated code hits the unique constraint.
	maxCodeAttempts = 5
	// Schedule generation runs one week ahead of "today", inclusive.
	generationHorizonDays = 7
)

type TicketService interface {
	CreateTicket(doctorId, patientId int) (*domain.Ticket, error)
	WeekSchedules(doctorId int, reference time.Time) ([]domain.DaySchedule, error)
	ListTicketsByPatient(patientId int) ([]domain.Ticket, error)
	GenerateDaySchedules(today time.Time) error
	ExpireOldTickets(today time.Time) (int64, error)
}

// EventProducer publishes ticket lifecycle events for downstream services.
type EventProducer interface {
	TicketIssued(event domain.TicketEvent) error
}

type ticketService struct {
	repo     repository.TicketRepository
	producer EventProducer
	Logger   *logrus.Logger
	now      func() time.Time
}

func NewTicketService(repo repository.TicketRepository, producer EventProducer, logger *logrus.Logger) TicketService {
	return &ticketService{
		repo:     repo,
		producer: producer,
		Logger:   logger,
		now:      time.Now,
	}
}

// CreateTicket reserves the soonest free slot this week for the patient with
// the given doctor and issues a ticket for it. The duplicate-ticket guard, the
// capacity scan, the slot reservation and the ticket insert all run in one
// transaction with the doctor's week rows locked, so concurrent requests for
// the same doctor cannot overshoot a schedule's capacity. Any failure leaves
// no new ticket and no mutated schedule.
func (s *ticketService) CreateTicket(doctorId, patientId int) (*domain.Ticket, error) {
	s.Logger.WithFields(logrus.Fields{
		"Function":  "CreateTicket",
		"DoctorId":  doctorId,
		"PatientId": patientId,
	}).Info("Received ticket creation request")

	if doctorId <= 0 || patientId <= 0 {
		return nil, domain.ErrInvalidInput
	}

	if _, err := s.repo.GetDoctor(uint(doctorId)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDoctorNotFound
		}
		s.Logger.WithError(err).Error("Failed to look up doctor")
		return nil, err
	}

	var ticket *domain.Ticket
	err := s.repo.Transaction(func(tx repository.TicketRepository) error {
		existing, err := tx.FindActiveTicket(uint(doctorId), patientId)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateActiveTicket
		}

		today := dateOnly(s.now())
		schedules, err := tx.SchedulesInRange(uint(doctorId), today, endOfWeek(today))
		if err != nil {
			return err
		}
		if len(schedules) == 0 {
			return domain.ErrNoScheduleThisWeek
		}

		// The scan above holds the row locks for the doctor's week, so a
		// concurrent allocation for the same doctor has either committed or
		// is still blocked on them. The first guard ran before any lock was
		// taken and can be stale under read committed; re-check it here,
		// where the answer can no longer change under us.
		existing, err = tx.FindActiveTicket(uint(doctorId), patientId)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateActiveTicket
		}

		// First fit: earliest date with room wins, remaining capacity is
		// never compared.
		var chosen *domain.DaySchedule
		for i := range schedules {
			if schedules[i].HasCapacity() {
				chosen = &schedules[i]
				break
			}
		}
		if chosen == nil {
			return domain.ErrCapacityExhausted
		}

		if err := tx.ReserveSlot(chosen, patientId); err != nil {
			return err
		}

		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			candidate := &domain.Ticket{
				DayScheduleId: chosen.ID,
				PatientId:     patientId,
				UniqueCode:    generateTicketCode(ticketCodeLength),
			}
			// Each attempt gets its own savepoint: on postgres a unique
			// violation aborts the enclosing transaction, and without the
			// savepoint every statement after the collision would fail
			// until rollback, leaving the regenerated code no live retry.
			err = tx.Transaction(func(txn repository.TicketRepository) error {
				return txn.CreateTicket(candidate)
			})
			if err == nil {
				candidate.DaySchedule = *chosen
				ticket = candidate
				return nil
			}
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
		}
		return fmt.Errorf("could not generate a unique ticket code after %d attempts: %w", maxCodeAttempts, err)
	})
	if err != nil {
		s.Logger.WithFields(logrus.Fields{
			"Function":  "CreateTicket",
			"DoctorId":  doctorId,
			"PatientId": patientId,
			"Error":     err,
		}).Warn("Ticket creation failed")
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"Function":     "CreateTicket",
		"TicketCode":   ticket.UniqueCode,
		"ScheduleDate": ticket.DaySchedule.Date.Format("2006-01-02"),
	}).Info("Ticket successfully created")

	if s.producer != nil {
		event := domain.TicketEvent{
			TicketCode:   ticket.UniqueCode,
			PatientId:    ticket.PatientId,
			DoctorId:     ticket.DaySchedule.DoctorId,
			ScheduleDate: ticket.DaySchedule.Date.Format("2006-01-02"),
		}
		if err := s.producer.TicketIssued(event); err != nil {
			s.Logger.WithError(err).Warn("Failed to produce ticket issued event")
		}
	}

	return ticket, nil
}

// WeekSchedules returns the doctor's schedules from the reference date through
// the end of the current week, ascending by date. An empty week is ordinary
// data here; only the allocator treats it as a failure.
func (s *ticketService) WeekSchedules(doctorId int, reference time.Time) ([]domain.DaySchedule, error) {
	if doctorId <= 0 {
		return nil, domain.ErrInvalidInput
	}
	from := dateOnly(reference)
	return s.repo.SchedulesInRange(uint(doctorId), from, endOfWeek(from))
}

func (s *ticketService) ListTicketsByPatient(patientId int) ([]domain.Ticket, error) {
	if patientId <= 0 {
		return nil, domain.ErrInvalidInput
	}
	tickets, err := s.repo.FetchTicketsByPatient(patientId)
	if err != nil {
		s.Logger.WithError(err).Error("Failed to fetch tickets for patient")
		return nil, err
	}
	return tickets, nil
}

// GenerateDaySchedules expands every doctor's weekly template into concrete
// day schedules for the week ahead of today, inclusive. Doctors without a
// template are skipped, existing rows are left untouched, so the job is safe
// to re-run.
func (s *ticketService) GenerateDaySchedules(today time.Time) error {
	s.Logger.WithFields(logrus.Fields{
		"Function": "GenerateDaySchedules",
		"Today":    today.Format("2006-01-02"),
	}).Info("Generating day schedules for the upcoming week")

	doctors, err := s.repo.ListDoctors()
	if err != nil {
		s.Logger.WithError(err).Error("Failed to list doctors")
		return err
	}

	start := dateOnly(today)
	horizon := start.AddDate(0, 0, generationHorizonDays)
	var created int

	for _, doctor := range doctors {
		template, err := s.repo.GetDefaultSchedule(doctor.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// A doctor without a weekly template is a valid partial
				// configuration, not a failure.
				s.Logger.WithField("DoctorId", doctor.ID).Debug("Doctor has no default schedule, skipping")
				continue
			}
			return err
		}

		for day := start; !day.After(horizon); day = day.AddDate(0, 0, 1) {
			if !containsDay(template.ActiveDays, isoWeekday(day)) {
				continue
			}
			ok, err := s.repo.GenerateSchedule(doctor.ID, day, template.DefaultPatientCount)
			if err != nil {
				s.Logger.WithFields(logrus.Fields{
					"DoctorId": doctor.ID,
					"Date":     day.Format("2006-01-02"),
					"Error":    err,
				}).Error("Failed to generate day schedule")
				return err
			}
			if ok {
				created++
			}
		}
	}

	s.Logger.WithFields(logrus.Fields{
		"Function": "GenerateDaySchedules",
		"Created":  created,
	}).Info("Day schedule generation finished")
	return nil
}

// ExpireOldTickets marks every active ticket whose schedule date has passed as
// expired. Re-runs over already expired tickets change nothing.
func (s *ticketService) ExpireOldTickets(today time.Time) (int64, error) {
	count, err := s.repo.BulkExpire(dateOnly(today))
	if err != nil {
		s.Logger.WithError(err).Error("Failed to expire old tickets")
		return 0, err
	}
	s.Logger.WithFields(logrus.Fields{
		"Function": "ExpireOldTickets",
		"Expired":  count,
	}).Info("Expired old tickets")
	return count, nil
}

// weekdayIndex maps Monday to 0 through Sunday to 6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// isoWeekday maps Monday to 1 through Sunday to 7, matching the numbers stored
// in DefaultSchedule.ActiveDays.
func isoWeekday(t time.Time) int {
	return weekdayIndex(t) + 1
}

// endOfWeek returns the last day of the scan window that starts at t:
// t plus (7 - weekdayIndex) days. On a Monday that reaches a full seven days
// out; on a Sunday it reaches the next day. Consumers depend on this exact
// cutoff, so it must not be rounded to the calendar week's Sunday.
func endOfWeek(t time.Time) time.Time {
	return t.AddDate(0, 0, 7-weekdayIndex(t))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// generateTicketCode returns a cryptographically random alphanumeric code.
func generateTicketCode(length int) string {
	code := make([]byte, length)
	max := big.NewInt(int64(len(ticketCodeChars)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
		}
		code[i] = ticketCodeChars[n.Int64()]
	}
	return string(code)
}
