package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ruralcare/telemed/internal/domain/triage"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrDuplicateActiveEntry = errors.New("patient already has an active queue entry")
	ErrDoctorUnavailable    = errors.New("doctor is not available")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

// DefaultConsultationMinutes is the per-rank wait estimate.
const DefaultConsultationMinutes = 15

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusWaiting:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the entry still holds the patient's queue slot.
func (s Status) Active() bool {
	return s == StatusWaiting || s == StatusInProgress
}

// CanTransition reports whether from -> to is an edge of the state machine.
// Completed and cancelled are final.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Entry is one consultation request. Entries are never deleted; completion
// and cancellation close them.
type Entry struct {
	ID                uuid.UUID       `json:"id"`
	Seq               int64           `json:"-"`
	PatientID         uuid.UUID       `json:"patient_id"`
	DoctorID          *uuid.UUID      `json:"doctor_id,omitempty"`
	Status            Status          `json:"status"`
	Priority          triage.Priority `json:"priority"`
	SymptomsBrief     string          `json:"symptoms_brief"`
	EstimatedWaitTime *int            `json:"estimated_wait_time"`
	QueuePosition     int             `json:"queue_position,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Patient is the profile row the queue needs. Profiles are owned by the
// registration service.
type Patient struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	FullName       string    `json:"full_name"`
	Age            int       `json:"age"`
	Gender         string    `json:"gender,omitempty"`
	Village        string    `json:"village,omitempty"`
	MedicalHistory string    `json:"medical_history,omitempty"`
}

type Doctor struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	FullName       string    `json:"full_name"`
	Specialization string    `json:"specialization,omitempty"`
	IsAvailable    bool      `json:"is_available"`
}

// JoinRequest is the body of a join call. PatientID may be omitted when a
// patient joins for themselves.
type JoinRequest struct {
	PatientID     *uuid.UUID `json:"patient_id,omitempty"`
	DoctorID      *uuid.UUID `json:"doctor_id,omitempty"`
	SymptomsBrief string     `json:"symptoms_brief"`
}

type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

type PriorityWait struct {
	Priority       triage.Priority `json:"priority"`
	AvgWaitMinutes float64         `json:"avg_wait_minutes"`
}

type DailyCount struct {
	Date       string `json:"date"`
	QueueCount int    `json:"queue_count"`
}

// Statistics summarizes queue load for administrators.
type Statistics struct {
	StatusDistribution []StatusCount  `json:"status_distribution"`
	AverageWaitTimes   []PriorityWait `json:"average_wait_times"`
	DailyTrends        []DailyCount   `json:"daily_trends"`
}

// StatisticsWindow bounds the daily trend series.
const StatisticsWindow = 30 * 24 * time.Hour
