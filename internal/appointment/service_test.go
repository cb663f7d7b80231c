package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/medcore/clinic-scheduling/internal/redis"
	"github.com/medcore/clinic-scheduling/internal/schedule"
)

// -- Mock repository --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	appts    map[uuid.UUID]*Appointment
	avail    map[int64]*AvailabilitySlot // keyed by bucket start unix seconds
	settings *SchedulingSettings
	history  []StatusHistory
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients: make(map[uuid.UUID]*Patient),
		appts:    make(map[uuid.UUID]*Appointment),
		avail:    make(map[int64]*AvailabilitySlot),
	}
}

func (m *mockRepo) addPatient() uuid.UUID {
	id := uuid.New()
	m.patients[id] = &Patient{ID: id, Name: "Test Patient"}
	return id
}

func (m *mockRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *mockRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	cp := *appt
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.appts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockRepo) UpdateAppointmentSchedule(_ context.Context, id uuid.UUID, scheduledAt time.Time) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.ScheduledAt = scheduledAt
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *mockRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status, actorID uuid.UUID, at time.Time) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	actor := actorID
	stamp := at
	switch to {
	case StatusCheckedIn:
		a.CheckedInAt, a.CheckedInBy = &stamp, &actor
	case StatusInProgress:
		a.StartedAt, a.StartedBy = &stamp, &actor
	case StatusCompleted:
		a.CompletedAt, a.CompletedBy = &stamp, &actor
	case StatusCanceled:
		a.CanceledAt, a.CanceledBy = &stamp, &actor
	case StatusNoShow:
		a.NoShowAt, a.NoShowBy = &stamp, &actor
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *mockRepo) RevertAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	switch from {
	case StatusCheckedIn:
		a.CheckedInAt, a.CheckedInBy = nil, nil
	case StatusInProgress:
		a.StartedAt, a.StartedBy = nil, nil
	case StatusCompleted:
		a.CompletedAt, a.CompletedBy = nil, nil
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *mockRepo) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	if _, ok := m.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *mockRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	var result []Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockRepo) CountBlockingInRange(_ context.Context, start, end time.Time) (int, error) {
	count := 0
	for _, a := range m.appts {
		if !a.ScheduledAt.Before(start) && a.ScheduledAt.Before(end) && a.Status.Blocking() {
			count++
		}
	}
	return count, nil
}

func (m *mockRepo) GetAvailabilityByBucket(_ context.Context, bucketStart time.Time) (*AvailabilitySlot, error) {
	s, ok := m.avail[bucketStart.Unix()]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) ListAvailabilityInRange(_ context.Context, start, end time.Time) ([]AvailabilitySlot, error) {
	var result []AvailabilitySlot
	for _, s := range m.avail {
		if !s.BucketStart.Before(start) && s.BucketStart.Before(end) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockRepo) UpsertAvailability(_ context.Context, slot *AvailabilitySlot) (*AvailabilitySlot, error) {
	cp := *slot
	cp.UpdatedAt = time.Now()
	m.avail[cp.BucketStart.Unix()] = &cp
	out := cp
	return &out, nil
}

func (m *mockRepo) InsertAvailabilityIfAbsent(_ context.Context, slot *AvailabilitySlot) (bool, error) {
	if _, ok := m.avail[slot.BucketStart.Unix()]; ok {
		return false, nil
	}
	cp := *slot
	cp.UpdatedAt = time.Now()
	m.avail[cp.BucketStart.Unix()] = &cp
	return true, nil
}

func (m *mockRepo) DeleteAvailability(_ context.Context, bucketStart time.Time) error {
	if _, ok := m.avail[bucketStart.Unix()]; !ok {
		return ErrAvailabilityNotFound
	}
	delete(m.avail, bucketStart.Unix())
	return nil
}

func (m *mockRepo) EnsureSettings(_ context.Context, defaultMax int) (*SchedulingSettings, error) {
	if m.settings == nil {
		m.settings = &SchedulingSettings{ID: 1, MaxPatientsPerHour: defaultMax, UpdatedAt: time.Now()}
	}
	cp := *m.settings
	return &cp, nil
}

func (m *mockRepo) UpdateSettings(_ context.Context, maxPerHour int, actorID uuid.UUID) (*SchedulingSettings, error) {
	actor := actorID
	m.settings = &SchedulingSettings{ID: 1, MaxPatientsPerHour: maxPerHour, UpdatedAt: time.Now(), UpdatedBy: &actor}
	cp := *m.settings
	return &cp, nil
}

func (m *mockRepo) InsertStatusHistory(_ context.Context, h StatusHistory) error {
	h.ID = int64(len(m.history) + 1)
	m.history = append(m.history, h)
	return nil
}

func (m *mockRepo) ListStatusHistory(_ context.Context, appointmentID uuid.UUID) ([]StatusHistory, error) {
	var result []StatusHistory
	for _, h := range m.history {
		if h.AppointmentID == appointmentID {
			result = append(result, h)
		}
	}
	return result, nil
}

// -- Lockers --

type noopLocker struct{}

func (noopLocker) WithBucketLock(ctx context.Context, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type contendedLocker struct{}

func (contendedLocker) WithBucketLock(context.Context, time.Time, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// -- Fixtures --

// testNow is a Monday 12:00 UTC (08:00 clinic time).
var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

// mondayMorning is the following Monday at 10:30 clinic time.
var mondayMorning = time.Date(2025, 6, 9, 14, 30, 0, 0, time.UTC)

func newTestService(repo *mockRepo) *Service {
	clinic := schedule.NewClinicTime(time.FixedZone("UTC-4", -4*60*60))
	svc := NewService(repo, noopLocker{}, clinic, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func mustBook(t *testing.T, svc *Service, patientID uuid.UUID, at time.Time) *Appointment {
	t.Helper()
	appt, err := svc.Book(context.Background(), BookRequest{
		PatientID:   patientID,
		ScheduledAt: at,
		Type:        "blood_panel",
		ActorID:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("Book(%s) error: %v", at, err)
	}
	return appt
}

// -- Tests --

func TestBookCreatesScheduledAppointment(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	appt := mustBook(t, svc, patientID, mondayMorning.Add(45*time.Second))

	if appt.Status != StatusScheduled {
		t.Errorf("status = %q, want scheduled", appt.Status)
	}
	if !appt.ScheduledAt.Equal(mondayMorning) {
		t.Errorf("scheduled_at = %s, want normalized %s", appt.ScheduledAt, mondayMorning)
	}
}

func TestBookRejectsInvalidTimes(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	tests := []struct {
		name string
		at   time.Time
		want error
	}{
		{"sunday", time.Date(2025, 6, 8, 14, 0, 0, 0, time.UTC), schedule.ErrSundayClosed},
		{"lunch hour", time.Date(2025, 6, 9, 16, 30, 0, 0, time.UTC), schedule.ErrLunchClosure},
		// the previous Friday, 10:00 local: inside business hours but gone
		{"past", time.Date(2025, 5, 30, 14, 0, 0, 0, time.UTC), schedule.ErrPastTimestamp},
		{"zero", time.Time{}, schedule.ErrUninitializedTime},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Book(context.Background(), BookRequest{PatientID: patientID, ScheduledAt: tc.at})
			if !errors.Is(err, tc.want) {
				t.Fatalf("Book = %v, want %v", err, tc.want)
			}
		})
	}

	if len(repo.appts) != 0 {
		t.Fatalf("rejected bookings wrote %d appointments", len(repo.appts))
	}
}

func TestBookUnknownPatient(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	_, err := svc.Book(context.Background(), BookRequest{PatientID: uuid.New(), ScheduledAt: mondayMorning})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("Book = %v, want ErrPatientNotFound", err)
	}
}

func TestBookEnforcesDefaultCapacity(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	// Fill the bucket up to the default of 10.
	for i := 0; i < DefaultMaxPerHour; i++ {
		mustBook(t, svc, patientID, mondayMorning)
	}

	_, err := svc.Book(context.Background(), BookRequest{PatientID: patientID, ScheduledAt: mondayMorning})
	if !errors.Is(err, ErrBucketFull) {
		t.Fatalf("11th booking = %v, want ErrBucketFull", err)
	}

	// Cancel one occupant; the freed slot must become bookable again.
	var victim uuid.UUID
	for id := range repo.appts {
		victim = id
		break
	}
	if _, err := svc.CancelAppointment(context.Background(), victim, uuid.New()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	mustBook(t, svc, patientID, mondayMorning)
}

func TestBookRespectsOverrideCapacity(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	if _, err := svc.UpsertAvailability(context.Background(), mondayMorning, 1, uuid.New()); err != nil {
		t.Fatalf("upsert availability: %v", err)
	}

	mustBook(t, svc, patientID, mondayMorning)

	_, err := svc.Book(context.Background(), BookRequest{PatientID: patientID, ScheduledAt: mondayMorning})
	if !errors.Is(err, ErrBucketFull) {
		t.Fatalf("second booking = %v, want ErrBucketFull", err)
	}
}

func TestBookClosedBucket(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	// Capacity 0 closes the bucket outright.
	if _, err := svc.UpsertAvailability(context.Background(), mondayMorning, 0, uuid.New()); err != nil {
		t.Fatalf("upsert availability: %v", err)
	}

	_, err := svc.Book(context.Background(), BookRequest{PatientID: patientID, ScheduledAt: mondayMorning})
	if !errors.Is(err, ErrBucketFull) {
		t.Fatalf("booking into closed bucket = %v, want ErrBucketFull", err)
	}
}

func TestBookLockContention(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	svc.locker = contendedLocker{}
	patientID := repo.addPatient()

	_, err := svc.Book(context.Background(), BookRequest{PatientID: patientID, ScheduledAt: mondayMorning})
	if !errors.Is(err, ErrBucketBeingBooked) {
		t.Fatalf("Book under contention = %v, want ErrBucketBeingBooked", err)
	}
}

func TestReschedule(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	appt := mustBook(t, svc, patientID, mondayMorning)

	// Lunch hour is rejected on reschedule too.
	lunch := time.Date(2025, 6, 9, 16, 15, 0, 0, time.UTC)
	if _, err := svc.Reschedule(context.Background(), appt.ID, lunch, uuid.New()); !errors.Is(err, schedule.ErrLunchClosure) {
		t.Fatalf("reschedule into lunch = %v, want ErrLunchClosure", err)
	}

	// A full target bucket blocks the move.
	tuesday := time.Date(2025, 6, 10, 13, 0, 0, 0, time.UTC) // 09:00 local
	if _, err := svc.UpsertAvailability(context.Background(), tuesday, 0, uuid.New()); err != nil {
		t.Fatalf("close tuesday bucket: %v", err)
	}
	if _, err := svc.Reschedule(context.Background(), appt.ID, tuesday, uuid.New()); !errors.Is(err, ErrBucketFull) {
		t.Fatalf("reschedule into closed bucket = %v, want ErrBucketFull", err)
	}

	// A valid move lands normalized.
	wednesday := time.Date(2025, 6, 11, 13, 30, 30, 0, time.UTC)
	updated, err := svc.Reschedule(context.Background(), appt.ID, wednesday, uuid.New())
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	want := time.Date(2025, 6, 11, 13, 30, 0, 0, time.UTC)
	if !updated.ScheduledAt.Equal(want) {
		t.Fatalf("scheduled_at = %s, want %s", updated.ScheduledAt, want)
	}
}

func TestRescheduleWithinSameBucketSkipsCapacityCheck(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	// Bucket capacity 1 and fully occupied by this same appointment.
	if _, err := svc.UpsertAvailability(context.Background(), mondayMorning, 1, uuid.New()); err != nil {
		t.Fatalf("upsert availability: %v", err)
	}
	appt := mustBook(t, svc, patientID, mondayMorning)

	// Moving 15 minutes within the hour must not collide with itself.
	if _, err := svc.Reschedule(context.Background(), appt.ID, mondayMorning.Add(15*time.Minute), uuid.New()); err != nil {
		t.Fatalf("same-bucket reschedule: %v", err)
	}
}

func TestRescheduleTerminalAppointment(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	appt := mustBook(t, svc, patientID, mondayMorning)
	if _, err := svc.ChangeStatus(context.Background(), appt.ID, StatusCompleted, uuid.New()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := svc.Reschedule(context.Background(), appt.ID, mondayMorning.Add(24*time.Hour), uuid.New())
	if !errors.Is(err, ErrNotReschedulable) {
		t.Fatalf("reschedule completed = %v, want ErrNotReschedulable", err)
	}
}

func TestChangeStatusStampsAuditAndHistory(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()
	actorID := uuid.New()

	appt := mustBook(t, svc, patientID, mondayMorning)

	updated, err := svc.ChangeStatus(context.Background(), appt.ID, StatusCheckedIn, actorID)
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if updated.Status != StatusCheckedIn {
		t.Errorf("status = %q, want checked_in", updated.Status)
	}
	if updated.CheckedInAt == nil || updated.CheckedInBy == nil || *updated.CheckedInBy != actorID {
		t.Error("check-in audit stamp missing or wrong actor")
	}

	rows, err := svc.StatusHistory(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("history rows = %d, want 1", len(rows))
	}
	if rows[0].FromStatus != StatusScheduled || rows[0].ToStatus != StatusCheckedIn {
		t.Errorf("history row = %q -> %q", rows[0].FromStatus, rows[0].ToStatus)
	}
	if rows[0].Reason != nil {
		t.Error("forward transition should not carry a reason")
	}
}

func TestChangeStatusSelfTransitionIsNoop(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	appt := mustBook(t, svc, patientID, mondayMorning)

	if _, err := svc.ChangeStatus(context.Background(), appt.ID, StatusScheduled, uuid.New()); err != nil {
		t.Fatalf("self-transition: %v", err)
	}
	if len(repo.history) != 0 {
		t.Fatalf("self-transition wrote %d history rows", len(repo.history))
	}
}

func TestChangeStatusRejectsIllegalTransitions(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	appt := mustBook(t, svc, patientID, mondayMorning)
	if _, err := svc.ChangeStatus(context.Background(), appt.ID, StatusCompleted, uuid.New()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := svc.ChangeStatus(context.Background(), appt.ID, StatusCheckedIn, uuid.New()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed -> checked_in = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), appt.ID, "bogus", uuid.New()); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bogus status = %v, want ErrInvalidStatus", err)
	}

	// Rejections leave no audit trail.
	if len(repo.history) != 1 {
		t.Fatalf("history rows = %d, want only the accepted completion", len(repo.history))
	}
}

func TestRevertStatus(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	appt := mustBook(t, svc, patientID, mondayMorning)
	other := mustBook(t, svc, patientID, mondayMorning)

	if _, err := svc.ChangeStatus(context.Background(), appt.ID, StatusCheckedIn, uuid.New()); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), appt.ID, StatusInProgress, uuid.New()); err != nil {
		t.Fatalf("start: %v", err)
	}

	before := len(repo.history)

	updated, err := svc.RevertStatus(context.Background(), appt.ID, StatusCheckedIn, uuid.New(), "paciente salió temporalmente")
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if updated.Status != StatusCheckedIn {
		t.Errorf("status = %q, want checked_in", updated.Status)
	}
	if updated.StartedAt != nil || updated.StartedBy != nil {
		t.Error("reversion did not clear the in-progress stamp")
	}

	if got := len(repo.history) - before; got != 1 {
		t.Fatalf("reversion appended %d rows, want 1", got)
	}
	last := repo.history[len(repo.history)-1]
	if last.FromStatus != StatusInProgress || last.ToStatus != StatusCheckedIn {
		t.Errorf("history row = %q -> %q", last.FromStatus, last.ToStatus)
	}
	if last.Reason == nil || *last.Reason != "paciente salió temporalmente" {
		t.Error("reversion reason not recorded")
	}

	// The sibling appointment is untouched.
	sibling, _ := repo.GetAppointmentByID(context.Background(), other.ID)
	if sibling.Status != StatusScheduled {
		t.Errorf("sibling status = %q, want scheduled", sibling.Status)
	}
}

func TestRevertStatusValidation(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	appt := mustBook(t, svc, patientID, mondayMorning)
	if _, err := svc.ChangeStatus(context.Background(), appt.ID, StatusCanceled, uuid.New()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := svc.RevertStatus(context.Background(), appt.ID, StatusInProgress, uuid.New(), "valid reason here"); !errors.Is(err, ErrInvalidReversion) {
		t.Fatalf("revert out of canceled = %v, want ErrInvalidReversion", err)
	}

	appt2 := mustBook(t, svc, patientID, mondayMorning)
	if _, err := svc.ChangeStatus(context.Background(), appt2.ID, StatusCheckedIn, uuid.New()); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := svc.RevertStatus(context.Background(), appt2.ID, StatusScheduled, uuid.New(), "  no  "); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("short reason = %v, want ErrReasonRequired", err)
	}
}

func TestSettingsLazyDefault(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	settings, err := svc.Settings(context.Background())
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.MaxPatientsPerHour != DefaultMaxPerHour {
		t.Fatalf("default max = %d, want %d", settings.MaxPatientsPerHour, DefaultMaxPerHour)
	}

	if _, err := svc.UpdateSettings(context.Background(), 0, uuid.New()); !errors.Is(err, ErrInvalidMaxPerHour) {
		t.Fatalf("zero max = %v, want ErrInvalidMaxPerHour", err)
	}

	updated, err := svc.UpdateSettings(context.Background(), 4, uuid.New())
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if updated.MaxPatientsPerHour != 4 {
		t.Fatalf("updated max = %d, want 4", updated.MaxPatientsPerHour)
	}
}

func TestUpsertAvailabilityLabelsAndValidation(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	if _, err := svc.UpsertAvailability(context.Background(), mondayMorning, -1, uuid.New()); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("negative capacity = %v, want ErrInvalidCapacity", err)
	}

	slot, err := svc.UpsertAvailability(context.Background(), mondayMorning, 5, uuid.New())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if slot.LocalDay != "Monday" || slot.LocalTime != "10:00" {
		t.Errorf("labels = %s %s, want Monday 10:00", slot.LocalDay, slot.LocalTime)
	}
	if !slot.BucketStart.Equal(time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("bucket start = %s, not aligned to the local hour", slot.BucketStart)
	}

	// Deleting the override restores the default capacity.
	if err := svc.DeleteAvailability(context.Background(), mondayMorning); err != nil {
		t.Fatalf("delete availability: %v", err)
	}
	load, err := svc.BucketLoad(context.Background(), mondayMorning)
	if err != nil {
		t.Fatalf("bucket load: %v", err)
	}
	if load.Capacity != DefaultMaxPerHour || load.Overridden {
		t.Fatalf("after delete capacity = %d overridden = %v, want default", load.Capacity, load.Overridden)
	}
}

func TestMaterializeCalendarIdempotent(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	start := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

	if err := svc.MaterializeCalendar(context.Background(), start, 7); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	first := len(repo.avail)
	if first == 0 {
		t.Fatal("no availability rows materialized")
	}

	if err := svc.MaterializeCalendar(context.Background(), start, 7); err != nil {
		t.Fatalf("second materialize: %v", err)
	}
	if len(repo.avail) != first {
		t.Fatalf("second run changed row count: %d -> %d", first, len(repo.avail))
	}
}

func TestCalendarReportsLoad(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	mustBook(t, svc, patientID, mondayMorning)
	mustBook(t, svc, patientID, mondayMorning)

	start := time.Date(2025, 6, 9, 4, 0, 0, 0, time.UTC) // local Monday 00:00
	loads, err := svc.Calendar(context.Background(), start, 1)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(loads) != 8 {
		t.Fatalf("weekday bucket count = %d, want 8", len(loads))
	}

	bucket := time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC)
	found := false
	for _, l := range loads {
		if l.BucketStart.Equal(bucket) {
			found = true
			if l.Booked != 2 || l.Remaining != DefaultMaxPerHour-2 {
				t.Errorf("bucket load = booked %d remaining %d", l.Booked, l.Remaining)
			}
		} else if l.Booked != 0 {
			t.Errorf("unexpected occupancy in bucket %s", l.BucketStart)
		}
	}
	if !found {
		t.Fatal("10:00 bucket missing from calendar")
	}
}

func TestDeleteAppointment(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := repo.addPatient()

	appt := mustBook(t, svc, patientID, mondayMorning)

	if err := svc.DeleteAppointment(context.Background(), appt.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteAppointment(context.Background(), appt.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("second delete = %v, want ErrAppointmentNotFound", err)
	}
}
