package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ruralcare/telemed/internal/domain/triage"
	"github.com/ruralcare/telemed/internal/platform/auth"
	"github.com/ruralcare/telemed/internal/platform/db"
)

type Service struct {
	repo        Repository
	dir         Directory
	tx          db.TxRunner
	prioritizer *triage.Prioritizer
	minutes     int
	now         func() time.Time
	logger      zerolog.Logger
}

type Option func(*Service)

// WithConsultationMinutes sets the minutes added per waiting-list rank.
func WithConsultationMinutes(m int) Option {
	return func(s *Service) {
		if m > 0 {
			s.minutes = m
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, dir Directory, tx db.TxRunner, prioritizer *triage.Prioritizer, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		dir:         dir,
		tx:          tx,
		prioritizer: prioritizer,
		minutes:     DefaultConsultationMinutes,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ConsultationMinutes is the configured per-rank estimate.
func (s *Service) ConsultationMinutes() int { return s.minutes }

func (s *Service) waitFor(rank int) int { return rank * s.minutes }

// Join queues a patient. Patients join for themselves; doctors and admins
// name the patient. The duplicate check, insert and wait snapshot share one
// transaction.
func (s *Service) Join(ctx context.Context, p auth.Principal, req JoinRequest) (*Entry, error) {
	brief := strings.TrimSpace(req.SymptomsBrief)
	if brief == "" {
		return nil, fmt.Errorf("%w: symptoms_brief is required", ErrValidation)
	}

	var entry *Entry
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		patient, err := s.joiningPatient(ctx, p, req.PatientID)
		if err != nil {
			return err
		}

		active, err := s.repo.HasActive(ctx, patient.ID)
		if err != nil {
			return err
		}
		if active {
			return ErrDuplicateActiveEntry
		}

		priority := s.prioritizer.Prioritize(brief, patient.Age, patient.MedicalHistory)

		if req.DoctorID != nil {
			doc, err := s.dir.GetDoctor(ctx, *req.DoctorID)
			if err != nil {
				return err
			}
			if !doc.IsAvailable {
				return fmt.Errorf("%w: %s", ErrDoctorUnavailable, doc.ID)
			}
		}

		e := &Entry{
			PatientID:     patient.ID,
			DoctorID:      req.DoctorID,
			Status:        StatusWaiting,
			Priority:      priority,
			SymptomsBrief: brief,
			CreatedAt:     s.now(),
		}
		if err := s.repo.Insert(ctx, e); err != nil {
			return err
		}

		rank, err := s.repo.WaitingRank(ctx, e.ID)
		if err != nil {
			return err
		}
		wait := s.waitFor(rank)
		if err := s.repo.SetEstimatedWait(ctx, e.ID, wait); err != nil {
			return fmt.Errorf("store wait estimate: %w", err)
		}
		e.EstimatedWaitTime = &wait
		e.QueuePosition = rank
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("entry_id", entry.ID.String()).
		Str("patient_id", entry.PatientID.String()).
		Int("priority", int(entry.Priority)).
		Int("position", entry.QueuePosition).
		Msg("patient joined queue")
	return entry, nil
}

func (s *Service) joiningPatient(ctx context.Context, p auth.Principal, patientID *uuid.UUID) (*Patient, error) {
	switch p.Role {
	case auth.RolePatient:
		own, err := s.dir.PatientByUserID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if patientID != nil && *patientID != own.ID {
			return nil, fmt.Errorf("%w: patients can only join the queue for themselves", ErrNotAuthorized)
		}
		return own, nil
	case auth.RoleDoctor, auth.RoleAdmin:
		if patientID == nil {
			return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
		}
		return s.dir.GetPatient(ctx, *patientID)
	default:
		return nil, fmt.Errorf("%w: role %s cannot add queue entries", ErrNotAuthorized, p.Role)
	}
}

// Start moves a waiting entry to in_progress and binds the acting doctor.
func (s *Service) Start(ctx context.Context, p auth.Principal, id uuid.UUID) (*Entry, error) {
	if !p.Is(auth.RoleDoctor) {
		return nil, fmt.Errorf("%w: only doctors can start consultations", ErrNotAuthorized)
	}
	doc, err := s.dir.DoctorByUserID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, Transition{ID: id, From: StatusWaiting, To: StatusInProgress, DoctorID: &doc.ID})
}

// Complete closes an in-progress consultation. Doctors may only complete
// entries bound to them.
func (s *Service) Complete(ctx context.Context, p auth.Principal, id uuid.UUID) (*Entry, error) {
	t := Transition{ID: id, From: StatusInProgress, To: StatusCompleted}
	switch p.Role {
	case auth.RoleAdmin:
	case auth.RoleDoctor:
		doc, err := s.dir.DoctorByUserID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		e, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if e.DoctorID != nil && *e.DoctorID != doc.ID {
			return nil, fmt.Errorf("%w: consultation belongs to another doctor", ErrNotAuthorized)
		}
		t.DoctorID = &doc.ID
	default:
		return nil, fmt.Errorf("%w: only doctors can complete consultations", ErrNotAuthorized)
	}
	return s.transition(ctx, t)
}

// Cancel withdraws a waiting entry. Patients may only cancel their own.
func (s *Service) Cancel(ctx context.Context, p auth.Principal, id uuid.UUID) (*Entry, error) {
	switch p.Role {
	case auth.RoleAdmin, auth.RoleDoctor:
	case auth.RolePatient:
		if _, err := s.Get(ctx, p, id); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: role %s cannot cancel queue entries", ErrNotAuthorized, p.Role)
	}
	return s.transition(ctx, Transition{ID: id, From: StatusWaiting, To: StatusCancelled})
}

func (s *Service) transition(ctx context.Context, t Transition) (*Entry, error) {
	if !CanTransition(t.From, t.To) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.From, t.To)
	}
	t.At = s.now()
	e, err := s.repo.Transition(ctx, t)
	if errors.Is(err, ErrInvalidTransition) {
		return nil, s.explainRejected(ctx, t)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("entry_id", e.ID.String()).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Msg("queue entry transitioned")
	return e, nil
}

// explainRejected re-reads an entry whose conditional update matched no row.
func (s *Service) explainRejected(ctx context.Context, t Transition) error {
	e, err := s.repo.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	if e.Status != t.From {
		return fmt.Errorf("%w: entry is %s, not %s", ErrInvalidTransition, e.Status, t.From)
	}
	if t.DoctorID != nil && e.DoctorID != nil && *e.DoctorID != *t.DoctorID {
		return fmt.Errorf("%w: entry is assigned to another doctor", ErrNotAuthorized)
	}
	return ErrInvalidTransition
}

// Get returns one entry. Patients only see their own.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Entry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Is(auth.RolePatient) {
		own, err := s.dir.PatientByUserID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if e.PatientID != own.ID {
			return nil, fmt.Errorf("%w: entry belongs to another patient", ErrNotAuthorized)
		}
	}
	return e, nil
}

// WaitingList returns waiting entries by priority then arrival, with the
// wait estimate derived from each entry's current rank.
func (s *Service) WaitingList(ctx context.Context) ([]*Entry, error) {
	entries, err := s.repo.ListWaiting(ctx)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		wait := s.waitFor(i + 1)
		e.EstimatedWaitTime = &wait
		e.QueuePosition = i + 1
	}
	return entries, nil
}

func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]*Entry, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.repo.List(ctx, status, limit, offset)
}

// DoctorQueue lists entries bound to a doctor. Doctors may only read their own.
func (s *Service) DoctorQueue(ctx context.Context, p auth.Principal, doctorID uuid.UUID) ([]*Entry, error) {
	if p.Is(auth.RoleDoctor) {
		doc, err := s.dir.DoctorByUserID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if doc.ID != doctorID {
			return nil, fmt.Errorf("%w: not this doctor's queue", ErrNotAuthorized)
		}
	}
	return s.repo.ListByDoctor(ctx, doctorID)
}

// PatientHistory lists a patient's entries, newest first.
func (s *Service) PatientHistory(ctx context.Context, p auth.Principal, patientID uuid.UUID) ([]*Entry, error) {
	if p.Is(auth.RolePatient) {
		own, err := s.dir.PatientByUserID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if own.ID != patientID {
			return nil, fmt.Errorf("%w: not this patient's history", ErrNotAuthorized)
		}
	}
	return s.repo.ListByPatient(ctx, patientID)
}

// Mine is the caller's own history (patients) or assigned queue (doctors).
func (s *Service) Mine(ctx context.Context, p auth.Principal) ([]*Entry, error) {
	switch p.Role {
	case auth.RolePatient:
		own, err := s.dir.PatientByUserID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return s.repo.ListByPatient(ctx, own.ID)
	case auth.RoleDoctor:
		doc, err := s.dir.DoctorByUserID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return s.repo.ListByDoctor(ctx, doc.ID)
	default:
		return nil, fmt.Errorf("%w: only patients and doctors have a personal queue", ErrNotAuthorized)
	}
}

// Statistics covers the last 30 days of joins.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	return s.repo.Statistics(ctx, s.now().Add(-StatisticsWindow))
}
