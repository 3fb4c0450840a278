package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Transition is a conditional status change. It applies only while the row
// is still in From and, when DoctorID is set, unbound or bound to DoctorID.
type Transition struct {
	ID       uuid.UUID
	From     Status
	To       Status
	DoctorID *uuid.UUID
	At       time.Time
}

type Repository interface {
	// Insert assigns ID, Seq and CreatedAt. A second active entry for the
	// same patient fails with ErrDuplicateActiveEntry.
	Insert(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	HasActive(ctx context.Context, patientID uuid.UUID) (bool, error)
	// Transition returns ErrInvalidTransition when no row matched.
	Transition(ctx context.Context, t Transition) (*Entry, error)
	// WaitingRank is the 1-based position of a waiting entry.
	WaitingRank(ctx context.Context, id uuid.UUID) (int, error)
	SetEstimatedWait(ctx context.Context, id uuid.UUID, minutes int) error

	ListWaiting(ctx context.Context) ([]*Entry, error)
	List(ctx context.Context, status Status, limit, offset int) ([]*Entry, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Entry, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Entry, error)
	Statistics(ctx context.Context, since time.Time) (*Statistics, error)
}

// Directory reads patient and doctor profiles.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	PatientByUserID(ctx context.Context, userID string) (*Patient, error)
	DoctorByUserID(ctx context.Context, userID string) (*Doctor, error)
}
