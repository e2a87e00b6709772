package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Doctor struct {
	gorm.Model
	FirstName   string
	LastName    string
	Speciality  string
	Address     string
	PhoneNumber string
}

// DefaultSchedule is a doctor's recurring weekly availability. ActiveDays holds
// ISO weekday numbers: 1=Monday .. 7=Sunday.
type DefaultSchedule struct {
	gorm.Model
	DoctorId            uint `gorm:"uniqueIndex"`
	Doctor              Doctor
	ActiveDays          datatypes.JSONSlice[int] `gorm:"type:jsonb"`
	DefaultPatientCount int
}

// DaySchedule is a doctor's concrete capacity for one calendar date. Patients
// never grows past MaxPatients; reserving writes check this before persisting.
type DaySchedule struct {
	gorm.Model
	DoctorId    uint `gorm:"uniqueIndex:idx_day_schedule_doctor_date"`
	Doctor      Doctor
	Date        time.Time `gorm:"type:date;uniqueIndex:idx_day_schedule_doctor_date"`
	MaxPatients int
	Patients    datatypes.JSONSlice[int64] `gorm:"type:jsonb"`
}

// HasCapacity reports whether the day still has a free slot.
func (d *DaySchedule) HasCapacity() bool {
	return len(d.Patients) < d.MaxPatients
}

// Ticket is a patient's reservation against one DaySchedule slot. A ticket is
// active while both Expired and Canceled are false.
type Ticket struct {
	gorm.Model
	DayScheduleId uint
	DaySchedule   DaySchedule
	PatientId     int
	UniqueCode    string `gorm:"size:20;uniqueIndex"`
	Expired       bool   `gorm:"default:false"`
	Canceled      bool   `gorm:"default:false"`
}

type TicketEvent struct {
	TicketCode   string `json:"ticket_code"`
	PatientId    int    `json:"patient_id"`
	DoctorId     uint   `json:"doctor_id"`
	ScheduleDate string `json:"schedule_date"`
}
