package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ruralcare/telemed/internal/domain/triage"
	"github.com/ruralcare/telemed/internal/platform/auth"
)

// -- Mock Repository --

// mockRepo mirrors the Postgres guarantees: one active entry per patient and
// conditional transitions, both under a single lock.
type mockRepo struct {
	mu       sync.Mutex
	entries  map[uuid.UUID]*Entry
	seq      int64
	since    time.Time
	failList error
}

func newMockRepo() *mockRepo {
	return &mockRepo{entries: make(map[uuid.UUID]*Entry)}
}

func clone(e *Entry) *Entry {
	c := *e
	if e.EstimatedWaitTime != nil {
		w := *e.EstimatedWaitTime
		c.EstimatedWaitTime = &w
	}
	return &c
}

func (m *mockRepo) Insert(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.entries {
		if other.PatientID == e.PatientID && other.Status.Active() {
			return ErrDuplicateActiveEntry
		}
	}
	m.seq++
	e.ID = uuid.New()
	e.Seq = m.seq
	e.UpdatedAt = e.CreatedAt
	m.entries[e.ID] = clone(e)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

func (m *mockRepo) HasActive(_ context.Context, patientID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.PatientID == patientID && e.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) Transition(_ context.Context, t Transition) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[t.ID]
	if !ok || e.Status != t.From {
		return nil, ErrInvalidTransition
	}
	if t.DoctorID != nil && e.DoctorID != nil && *e.DoctorID != *t.DoctorID {
		return nil, ErrInvalidTransition
	}
	e.Status = t.To
	if e.DoctorID == nil && t.DoctorID != nil {
		d := *t.DoctorID
		e.DoctorID = &d
	}
	at := t.At
	switch t.To {
	case StatusInProgress:
		e.StartedAt = &at
	case StatusCompleted, StatusCancelled:
		e.CompletedAt = &at
	}
	e.UpdatedAt = at
	return clone(e), nil
}

func (m *mockRepo) sortedWaiting() []*Entry {
	var out []*Entry
	for _, e := range m.entries {
		if e.Status == StatusWaiting {
			out = append(out, e)
		}
	}
	sortQueue(out)
	return out
}

func sortQueue(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
}

func (m *mockRepo) WaitingRank(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.sortedWaiting() {
		if e.ID == id {
			return i + 1, nil
		}
	}
	return 0, ErrNotFound
}

func (m *mockRepo) SetEstimatedWait(_ context.Context, id uuid.UUID, minutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.EstimatedWaitTime = &minutes
	}
	return nil
}

func (m *mockRepo) ListWaiting(_ context.Context) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	var out []*Entry
	for _, e := range m.sortedWaiting() {
		out = append(out, clone(e))
	}
	return out, nil
}

func (m *mockRepo) filter(keep func(*Entry) bool) []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Entry
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, clone(e))
		}
	}
	sortQueue(out)
	return out
}

func (m *mockRepo) List(_ context.Context, status Status, limit, offset int) ([]*Entry, int, error) {
	all := m.filter(func(e *Entry) bool { return status == "" || e.Status == status })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*Entry, error) {
	return m.filter(func(e *Entry) bool { return e.DoctorID != nil && *e.DoctorID == doctorID }), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Entry, error) {
	out := m.filter(func(e *Entry) bool { return e.PatientID == patientID })
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

func (m *mockRepo) Statistics(_ context.Context, since time.Time) (*Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = since
	counts := map[Status]int{}
	for _, e := range m.entries {
		counts[e.Status]++
	}
	stats := &Statistics{}
	for _, s := range []Status{StatusCancelled, StatusCompleted, StatusInProgress, StatusWaiting} {
		if counts[s] > 0 {
			stats.StatusDistribution = append(stats.StatusDistribution, StatusCount{Status: s, Count: counts[s]})
		}
	}
	return stats, nil
}

// -- Mock Directory --

type mockDirectory struct {
	patients map[uuid.UUID]*Patient
	doctors  map[uuid.UUID]*Doctor
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		patients: make(map[uuid.UUID]*Patient),
		doctors:  make(map[uuid.UUID]*Doctor),
	}
}

func (d *mockDirectory) addPatient(userID string, age int) *Patient {
	p := &Patient{ID: uuid.New(), UserID: userID, FullName: userID, Age: age}
	d.patients[p.ID] = p
	return p
}

func (d *mockDirectory) addDoctor(userID string, available bool) *Doctor {
	doc := &Doctor{ID: uuid.New(), UserID: userID, FullName: userID, IsAvailable: available}
	d.doctors[doc.ID] = doc
	return doc
}

func (d *mockDirectory) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	if p, ok := d.patients[id]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (d *mockDirectory) GetDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	if doc, ok := d.doctors[id]; ok {
		return doc, nil
	}
	return nil, ErrNotFound
}

func (d *mockDirectory) PatientByUserID(_ context.Context, userID string) (*Patient, error) {
	for _, p := range d.patients {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (d *mockDirectory) DoctorByUserID(_ context.Context, userID string) (*Doctor, error) {
	for _, doc := range d.doctors {
		if doc.UserID == userID {
			return doc, nil
		}
	}
	return nil, ErrNotFound
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo, *mockDirectory) {
	repo := newMockRepo()
	dir := newMockDirectory()
	svc := NewService(repo, dir, passthroughTx{}, triage.DefaultPrioritizer(),
		WithClock(func() time.Time { return testNow }))
	return svc, repo, dir
}

func patientPrincipal(p *Patient) auth.Principal {
	return auth.Principal{ID: p.UserID, Role: auth.RolePatient}
}

func doctorPrincipal(d *Doctor) auth.Principal {
	return auth.Principal{ID: d.UserID, Role: auth.RoleDoctor}
}

var adminPrincipal = auth.Principal{ID: "admin-1", Role: auth.RoleAdmin}

func mustJoin(t *testing.T, svc *Service, p *Patient, symptoms string) *Entry {
	t.Helper()
	e, err := svc.Join(context.Background(), patientPrincipal(p), JoinRequest{SymptomsBrief: symptoms})
	if err != nil {
		t.Fatalf("join %s: %v", p.UserID, err)
	}
	return e
}

// -- Join --

func TestJoin_PriorityAndWait(t *testing.T) {
	svc, _, dir := newTestService()
	p := dir.addPatient("u-p1", 30)

	e := mustJoin(t, svc, p, "High fever since yesterday")
	if e.Status != StatusWaiting {
		t.Errorf("expected waiting, got %s", e.Status)
	}
	if e.Priority != triage.PriorityHigh {
		t.Errorf("expected priority 3, got %d", e.Priority)
	}
	if e.EstimatedWaitTime == nil || *e.EstimatedWaitTime != 15 {
		t.Errorf("expected 15 minute wait, got %v", e.EstimatedWaitTime)
	}
	if e.QueuePosition != 1 {
		t.Errorf("expected position 1, got %d", e.QueuePosition)
	}
	if !e.CreatedAt.Equal(testNow) {
		t.Errorf("expected created_at %s, got %s", testNow, e.CreatedAt)
	}
}

func TestJoin_UsesPatientAge(t *testing.T) {
	svc, _, dir := newTestService()
	e := mustJoin(t, svc, dir.addPatient("u-elder", 72), "mild cough")
	if e.Priority != triage.PriorityMedium {
		t.Errorf("expected priority 2 for elderly patient, got %d", e.Priority)
	}
}

func TestJoin_WaitSnapshotUsesRank(t *testing.T) {
	svc, _, dir := newTestService()

	first := mustJoin(t, svc, dir.addPatient("u-1", 30), "mild cough")
	urgent := mustJoin(t, svc, dir.addPatient("u-2", 30), "crushing chest pain")
	third := mustJoin(t, svc, dir.addPatient("u-3", 30), "runny nose")

	if *first.EstimatedWaitTime != 15 {
		t.Errorf("first: expected 15, got %d", *first.EstimatedWaitTime)
	}
	if urgent.Priority != triage.PriorityEmergency || *urgent.EstimatedWaitTime != 15 {
		t.Errorf("emergency should rank first: priority %d wait %d", urgent.Priority, *urgent.EstimatedWaitTime)
	}
	if third.QueuePosition != 3 || *third.EstimatedWaitTime != 45 {
		t.Errorf("third: expected rank 3 / 45 min, got %d / %d", third.QueuePosition, *third.EstimatedWaitTime)
	}
}

func TestJoin_CustomConsultationMinutes(t *testing.T) {
	repo, dir := newMockRepo(), newMockDirectory()
	svc := NewService(repo, dir, passthroughTx{}, triage.DefaultPrioritizer(), WithConsultationMinutes(20))

	e := mustJoin(t, svc, dir.addPatient("u-1", 30), "rash")
	if *e.EstimatedWaitTime != 20 {
		t.Errorf("expected 20, got %d", *e.EstimatedWaitTime)
	}
}

func TestJoin_DuplicateThenAfterCancel(t *testing.T) {
	svc, _, dir := newTestService()
	p := dir.addPatient("u-1", 30)
	ctx := context.Background()

	e := mustJoin(t, svc, p, "headache")
	if _, err := svc.Join(ctx, patientPrincipal(p), JoinRequest{SymptomsBrief: "headache again"}); !errors.Is(err, ErrDuplicateActiveEntry) {
		t.Fatalf("expected ErrDuplicateActiveEntry, got %v", err)
	}

	if _, err := svc.Cancel(ctx, patientPrincipal(p), e.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Join(ctx, patientPrincipal(p), JoinRequest{SymptomsBrief: "headache again"}); err != nil {
		t.Fatalf("join after cancel should succeed, got %v", err)
	}
}

func TestJoin_DuplicateWhileInProgress(t *testing.T) {
	svc, _, dir := newTestService()
	p := dir.addPatient("u-1", 30)
	doc := dir.addDoctor("u-doc", true)
	ctx := context.Background()

	e := mustJoin(t, svc, p, "headache")
	if _, err := svc.Start(ctx, doctorPrincipal(doc), e.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Join(ctx, patientPrincipal(p), JoinRequest{SymptomsBrief: "still here"}); !errors.Is(err, ErrDuplicateActiveEntry) {
		t.Errorf("expected ErrDuplicateActiveEntry, got %v", err)
	}
}

func TestJoin_ConcurrentDuplicates(t *testing.T) {
	svc, repo, dir := newTestService()
	p := dir.addPatient("u-1", 30)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Join(context.Background(), patientPrincipal(p), JoinRequest{SymptomsBrief: "cough"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrDuplicateActiveEntry):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one successful join, got %d", ok)
	}
	if len(repo.entries) != 1 {
		t.Errorf("expected one stored entry, got %d", len(repo.entries))
	}
}

func TestJoin_RequestedDoctor(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	busy := dir.addDoctor("u-busy", false)
	free := dir.addDoctor("u-free", true)

	p1 := dir.addPatient("u-1", 30)
	_, err := svc.Join(ctx, patientPrincipal(p1), JoinRequest{SymptomsBrief: "cough", DoctorID: &busy.ID})
	if !errors.Is(err, ErrDoctorUnavailable) {
		t.Errorf("expected ErrDoctorUnavailable, got %v", err)
	}

	missing := uuid.New()
	_, err = svc.Join(ctx, patientPrincipal(p1), JoinRequest{SymptomsBrief: "cough", DoctorID: &missing})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	e, err := svc.Join(ctx, patientPrincipal(p1), JoinRequest{SymptomsBrief: "cough", DoctorID: &free.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.DoctorID == nil || *e.DoctorID != free.ID {
		t.Errorf("expected entry bound to requested doctor")
	}
}

func TestJoin_Authorization(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	p1 := dir.addPatient("u-1", 30)
	p2 := dir.addPatient("u-2", 30)

	tests := []struct {
		name      string
		principal auth.Principal
		req       JoinRequest
		want      error
	}{
		{"patient for someone else", patientPrincipal(p1), JoinRequest{PatientID: &p2.ID, SymptomsBrief: "cough"}, ErrNotAuthorized},
		{"gov official", auth.Principal{ID: "gov", Role: auth.RoleGovOfficial}, JoinRequest{PatientID: &p2.ID, SymptomsBrief: "cough"}, ErrNotAuthorized},
		{"admin without patient", adminPrincipal, JoinRequest{SymptomsBrief: "cough"}, ErrValidation},
		{"empty symptoms", patientPrincipal(p1), JoinRequest{SymptomsBrief: "   "}, ErrValidation},
		{"patient without profile", auth.Principal{ID: "ghost", Role: auth.RolePatient}, JoinRequest{SymptomsBrief: "cough"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Join(ctx, tt.principal, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	e, err := svc.Join(ctx, adminPrincipal, JoinRequest{PatientID: &p2.ID, SymptomsBrief: "vomiting"})
	if err != nil {
		t.Fatalf("admin join on behalf: %v", err)
	}
	if e.PatientID != p2.ID {
		t.Errorf("expected entry for p2")
	}
}

// -- Transitions --

func TestStart_BindsDoctor(t *testing.T) {
	svc, _, dir := newTestService()
	doc := dir.addDoctor("u-doc", true)
	e := mustJoin(t, svc, dir.addPatient("u-1", 30), "cough")

	started, err := svc.Start(context.Background(), doctorPrincipal(doc), e.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", started.Status)
	}
	if started.DoctorID == nil || *started.DoctorID != doc.ID {
		t.Error("expected acting doctor bound")
	}
	if started.StartedAt == nil || !started.StartedAt.Equal(testNow) {
		t.Errorf("expected started_at set, got %v", started.StartedAt)
	}
}

func TestStart_CompletedEntry(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	doc := dir.addDoctor("u-doc", true)
	e := mustJoin(t, svc, dir.addPatient("u-1", 30), "cough")

	if _, err := svc.Start(ctx, doctorPrincipal(doc), e.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Complete(ctx, doctorPrincipal(doc), e.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.Start(ctx, doctorPrincipal(doc), e.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestStart_ConcurrentDoctors(t *testing.T) {
	svc, _, dir := newTestService()
	e := mustJoin(t, svc, dir.addPatient("u-1", 30), "cough")
	doctors := []*Doctor{dir.addDoctor("u-a", true), dir.addDoctor("u-b", true), dir.addDoctor("u-c", true)}

	var wg sync.WaitGroup
	errs := make(chan error, len(doctors))
	for _, doc := range doctors {
		wg.Add(1)
		go func(doc *Doctor) {
			defer wg.Done()
			_, err := svc.Start(context.Background(), doctorPrincipal(doc), e.ID)
			errs <- err
		}(doc)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrInvalidTransition):
			t.Errorf("loser should see ErrInvalidTransition, got %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one start to win, got %d", ok)
	}
}

func TestStart_BoundToAnotherDoctor(t *testing.T) {
	svc, _, dir := newTestService()
	requested := dir.addDoctor("u-req", true)
	other := dir.addDoctor("u-other", true)
	p := dir.addPatient("u-1", 30)

	e, err := svc.Join(context.Background(), patientPrincipal(p), JoinRequest{SymptomsBrief: "cough", DoctorID: &requested.ID})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.Start(context.Background(), doctorPrincipal(other), e.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := svc.Start(context.Background(), doctorPrincipal(requested), e.ID); err != nil {
		t.Errorf("requested doctor should start: %v", err)
	}
}

func TestStart_Errors(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	p := dir.addPatient("u-1", 30)
	doc := dir.addDoctor("u-doc", true)
	e := mustJoin(t, svc, p, "cough")

	if _, err := svc.Start(ctx, patientPrincipal(p), e.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("patient start: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := svc.Start(ctx, doctorPrincipal(doc), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown entry: expected ErrNotFound, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	doc := dir.addDoctor("u-doc", true)
	other := dir.addDoctor("u-other", true)
	e := mustJoin(t, svc, dir.addPatient("u-1", 30), "cough")

	if _, err := svc.Complete(ctx, doctorPrincipal(doc), e.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("complete from waiting: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.Start(ctx, doctorPrincipal(doc), e.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Complete(ctx, doctorPrincipal(other), e.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("other doctor: expected ErrNotAuthorized, got %v", err)
	}

	done, err := svc.Complete(ctx, doctorPrincipal(doc), e.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == nil {
		t.Errorf("expected completed with timestamp, got %s %v", done.Status, done.CompletedAt)
	}
}

func TestComplete_Admin(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	doc := dir.addDoctor("u-doc", true)
	e := mustJoin(t, svc, dir.addPatient("u-1", 30), "cough")
	if _, err := svc.Start(ctx, doctorPrincipal(doc), e.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Complete(ctx, adminPrincipal, e.ID); err != nil {
		t.Errorf("admin complete: %v", err)
	}
}

func TestCancel(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	p1 := dir.addPatient("u-1", 30)
	p2 := dir.addPatient("u-2", 30)
	doc := dir.addDoctor("u-doc", true)

	e1 := mustJoin(t, svc, p1, "cough")
	e2 := mustJoin(t, svc, p2, "rash")

	if _, err := svc.Cancel(ctx, patientPrincipal(p2), e1.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := svc.Cancel(ctx, auth.Principal{ID: "gov", Role: auth.RoleGovOfficial}, e1.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("gov official: expected ErrNotAuthorized, got %v", err)
	}

	cancelled, err := svc.Cancel(ctx, patientPrincipal(p1), e1.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.CompletedAt == nil {
		t.Errorf("expected cancelled with closed-at, got %s %v", cancelled.Status, cancelled.CompletedAt)
	}
	if _, err := svc.Cancel(ctx, patientPrincipal(p1), e1.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double cancel: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := svc.Start(ctx, doctorPrincipal(doc), e2.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Cancel(ctx, doctorPrincipal(doc), e2.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel in_progress: expected ErrInvalidTransition, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusWaiting, StatusInProgress, true},
		{StatusWaiting, StatusCancelled, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, false},
		{StatusWaiting, StatusCompleted, false},
		{StatusCompleted, StatusWaiting, false},
		{StatusCancelled, StatusWaiting, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

// -- Listings --

func TestWaitingList_OrderAndRanks(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()

	a := mustJoin(t, svc, dir.addPatient("u-a", 30), "cough")
	b := mustJoin(t, svc, dir.addPatient("u-b", 30), "fever")
	c := mustJoin(t, svc, dir.addPatient("u-c", 30), "rash")
	d := mustJoin(t, svc, dir.addPatient("u-d", 30), "seizure")

	want := []uuid.UUID{d.ID, b.ID, a.ID, c.ID}
	for round := 0; round < 3; round++ {
		list, err := svc.WaitingList(ctx)
		if err != nil {
			t.Fatalf("waiting list: %v", err)
		}
		if len(list) != len(want) {
			t.Fatalf("expected %d entries, got %d", len(want), len(list))
		}
		for i, e := range list {
			if e.ID != want[i] {
				t.Fatalf("round %d position %d: unexpected entry", round, i)
			}
			if e.QueuePosition != i+1 || *e.EstimatedWaitTime != (i+1)*15 {
				t.Errorf("position %d: rank %d wait %d", i, e.QueuePosition, *e.EstimatedWaitTime)
			}
		}
	}
}

func TestWaitingList_ExcludesClosed(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	p := dir.addPatient("u-a", 30)
	e := mustJoin(t, svc, p, "cough")
	mustJoin(t, svc, dir.addPatient("u-b", 30), "cough")

	if _, err := svc.Cancel(ctx, patientPrincipal(p), e.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	list, err := svc.WaitingList(ctx)
	if err != nil {
		t.Fatalf("waiting list: %v", err)
	}
	if len(list) != 1 || *list[0].EstimatedWaitTime != 15 {
		t.Errorf("expected one entry at 15 minutes, got %d entries", len(list))
	}
}

func TestWaitingList_RepoError(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.failList = errors.New("connection reset")
	if _, err := svc.WaitingList(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestList_StatusFilter(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	p := dir.addPatient("u-a", 30)
	e := mustJoin(t, svc, p, "cough")
	mustJoin(t, svc, dir.addPatient("u-b", 30), "cough")
	if _, err := svc.Cancel(ctx, patientPrincipal(p), e.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, total, err := svc.List(ctx, StatusCancelled, 20, 0)
	if err != nil || total != 1 {
		t.Errorf("expected 1 cancelled, got %d (%v)", total, err)
	}
	_, total, _ = svc.List(ctx, "", 20, 0)
	if total != 2 {
		t.Errorf("expected 2 overall, got %d", total)
	}
	if _, _, err := svc.List(ctx, "archived", 20, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestDoctorQueueAndMine(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	doc := dir.addDoctor("u-doc", true)
	other := dir.addDoctor("u-other", true)
	p := dir.addPatient("u-1", 30)

	if _, err := svc.Join(ctx, patientPrincipal(p), JoinRequest{SymptomsBrief: "cough", DoctorID: &doc.ID}); err != nil {
		t.Fatalf("join: %v", err)
	}

	entries, err := svc.DoctorQueue(ctx, doctorPrincipal(doc), doc.ID)
	if err != nil || len(entries) != 1 {
		t.Errorf("expected 1 entry in doctor queue, got %d (%v)", len(entries), err)
	}
	if _, err := svc.DoctorQueue(ctx, doctorPrincipal(other), doc.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
	if entries, _ := svc.DoctorQueue(ctx, auth.Principal{ID: "gov", Role: auth.RoleGovOfficial}, doc.ID); len(entries) != 1 {
		t.Error("gov official should read any doctor's queue")
	}

	mine, err := svc.Mine(ctx, doctorPrincipal(doc))
	if err != nil || len(mine) != 1 {
		t.Errorf("doctor mine: got %d (%v)", len(mine), err)
	}
	mine, err = svc.Mine(ctx, patientPrincipal(p))
	if err != nil || len(mine) != 1 {
		t.Errorf("patient mine: got %d (%v)", len(mine), err)
	}
	if _, err := svc.Mine(ctx, adminPrincipal); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("admin mine: expected ErrNotAuthorized, got %v", err)
	}
}

func TestPatientHistory(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	p1 := dir.addPatient("u-1", 30)
	p2 := dir.addPatient("u-2", 30)

	first := mustJoin(t, svc, p1, "cough")
	if _, err := svc.Cancel(ctx, patientPrincipal(p1), first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	second := mustJoin(t, svc, p1, "fever")

	history, err := svc.PatientHistory(ctx, patientPrincipal(p1), p1.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].ID != second.ID {
		t.Errorf("expected newest first, got %d entries", len(history))
	}
	if _, err := svc.PatientHistory(ctx, patientPrincipal(p2), p1.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestGet_PatientScope(t *testing.T) {
	svc, _, dir := newTestService()
	ctx := context.Background()
	p1 := dir.addPatient("u-1", 30)
	p2 := dir.addPatient("u-2", 30)
	e := mustJoin(t, svc, p1, "cough")

	if _, err := svc.Get(ctx, patientPrincipal(p1), e.ID); err != nil {
		t.Errorf("owner get: %v", err)
	}
	if _, err := svc.Get(ctx, patientPrincipal(p2), e.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := svc.Get(ctx, adminPrincipal, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStatistics_Window(t *testing.T) {
	svc, repo, dir := newTestService()
	mustJoin(t, svc, dir.addPatient("u-1", 30), "cough")

	stats, err := svc.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if !repo.since.Equal(testNow.Add(-30 * 24 * time.Hour)) {
		t.Errorf("unexpected window start %s", repo.since)
	}
	if len(stats.StatusDistribution) != 1 || stats.StatusDistribution[0].Count != 1 {
		t.Errorf("unexpected distribution %+v", stats.StatusDistribution)
	}
}
