package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/domain"
	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/service"
)

// Overridable in tests.
var timeNow = time.Now

type TicketHandler struct {
	service service.TicketService
}

func NewTicketHandler(service service.TicketService) *TicketHandler {
	return &TicketHandler{
		service: service,
	}
}

type CreateTicketRequest struct {
	PatientId int `json:"patient_id" binding:"required"`
	DoctorId  int `json:"doctor_id" binding:"required"`
}

// CreateTicket handles POST /api/v1/tickets.
func (h *TicketHandler) CreateTicket(c *gin.Context) {
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("InvalidInput", domain.ErrInvalidInput.Error()))
		return
	}

	ticket, err := h.service.CreateTicket(req.DoctorId, req.PatientId)
	if err != nil {
		status, kind := mapError(err)
		c.JSON(status, errorResponse(kind, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":       "Ticket successfully created",
		"ticket_code":   ticket.UniqueCode,
		"schedule_date": ticket.DaySchedule.Date.Format("2006-01-02"),
		"doctor_id":     ticket.DaySchedule.DoctorId,
	})
}

// ListTickets handles GET /api/v1/tickets?patient_id=.
func (h *TicketHandler) ListTickets(c *gin.Context) {
	patientId, err := strconv.Atoi(c.Query("patient_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("InvalidInput", domain.ErrInvalidInput.Error()))
		return
	}

	tickets, err := h.service.ListTicketsByPatient(patientId)
	if err != nil {
		status, kind := mapError(err)
		c.JSON(status, errorResponse(kind, err.Error()))
		return
	}

	payload := make([]gin.H, 0, len(tickets))
	for _, ticket := range tickets {
		payload = append(payload, gin.H{
			"ticket_code":   ticket.UniqueCode,
			"schedule_date": ticket.DaySchedule.Date.Format("2006-01-02"),
			"doctor_id":     ticket.DaySchedule.DoctorId,
			"expired":       ticket.Expired,
			"canceled":      ticket.Canceled,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tickets": payload})
}

// WeekSchedules handles GET /api/v1/doctors/:doctor_id/schedules.
func (h *TicketHandler) WeekSchedules(c *gin.Context) {
	doctorId, err := strconv.Atoi(c.Param("doctor_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("InvalidInput", domain.ErrInvalidInput.Error()))
		return
	}

	schedules, err := h.service.WeekSchedules(doctorId, timeNow())
	if err != nil {
		status, kind := mapError(err)
		c.JSON(status, errorResponse(kind, err.Error()))
		return
	}

	payload := make([]gin.H, 0, len(schedules))
	for _, schedule := range schedules {
		payload = append(payload, gin.H{
			"date":         schedule.Date.Format("2006-01-02"),
			"max_patients": schedule.MaxPatients,
			"booked":       len(schedule.Patients),
			"available":    schedule.MaxPatients - len(schedule.Patients),
		})
	}
	c.JSON(http.StatusOK, gin.H{"doctor_id": doctorId, "schedules": payload})
}

func errorResponse(kind, message string) gin.H {
	return gin.H{"error": gin.H{"kind": kind, "message": message}}
}

// mapError translates allocation failures into an HTTP status and the error
// kind reported to callers. Anything unrecognized is an UnexpectedFailure.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "InvalidInput"
	case errors.Is(err, domain.ErrDoctorNotFound):
		return http.StatusNotFound, "DoctorNotFound"
	case errors.Is(err, domain.ErrDuplicateActiveTicket):
		return http.StatusBadRequest, "DuplicateActiveTicket"
	case errors.Is(err, domain.ErrNoScheduleThisWeek):
		return http.StatusBadRequest, "NoScheduleThisWeek"
	case errors.Is(err, domain.ErrCapacityExhausted):
		return http.StatusBadRequest, "CapacityExhausted"
	case errors.Is(err, domain.ErrStorageConflict):
		return http.StatusConflict, "StorageConflict"
	default:
		return http.StatusInternalServerError, "UnexpectedFailure"
	}
}
