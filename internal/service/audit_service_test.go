package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeniedWrite_LeavesStateUnchangedAndRecordsOneForbiddenEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	_, p := f.seedPatient(t, admin)
	nurse := f.seedUser(t, domain.RoleNurse).Identity()

	_, err := f.consultations.CreateConsultation(ctx, nurse, &consultation.CreateConsultationCommand{
		PatientID: p.ID,
		DoctorID:  admin.ID,
		Reason:    "Checkup",
	})
	// The admin is not a doctor, so the reference check fails first.
	require.ErrorIs(t, err, domain.ErrDoctorNotFound)

	doctor := f.seedUser(t, domain.RoleDoctor)
	before := f.store.snapshot()

	_, err = f.consultations.CreateConsultation(ctx, nurse, &consultation.CreateConsultationCommand{
		PatientID: p.ID,
		DoctorID:  doctor.ID,
		Reason:    "Checkup",
	})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, access.ReasonRole, access.ReasonOf(err))

	after := f.store.snapshot()
	assert.Equal(t, before.consultations, after.consultations)
	assert.Equal(t, before.patients, after.patients)
	assert.Equal(t, before.users, after.users)

	require.Len(t, after.audit, len(before.audit)+1)
	entry := after.audit[len(after.audit)-1]
	assert.Equal(t, domain.AuditForbidden, entry.Status)
	assert.Equal(t, domain.ActionCreate, entry.Action)
	assert.Equal(t, domain.ResourceConsultation, entry.ResourceType)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, nurse.ID, *entry.UserID)
	assert.Equal(t, domain.RoleNurse, entry.UserRole)
	assert.NotEmpty(t, entry.ErrorMessage)
}

func TestDeniedUpdate_ReferencesTargetRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	_, p := f.seedPatient(t, admin)
	other := f.seedUser(t, domain.RolePatient).Identity()

	n := len(f.store.auditLog())
	_, err := f.patients.UpdatePatient(ctx, other, p.ID, &patient.UpdatePatientCommand{FamilyHistory: ptr("none")})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, access.ReasonOwnership, access.ReasonOf(err))

	got := f.entriesSince(n)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ResourceID)
	assert.Equal(t, p.ID, *got[0].ResourceID)
	assert.Equal(t, domain.AuditForbidden, got[0].Status)

	stored, err := f.patients.GetPatient(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.FamilyHistory)
}

func TestAuditWriteFailure_RollsBackMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	owner := f.seedUser(t, domain.RolePatient)

	f.store.failAudit = true
	_, err := f.patients.CreatePatient(ctx, admin, &patient.CreatePatientCommand{UserID: owner.ID})
	require.ErrorIs(t, err, errAuditWrite)

	f.store.failAudit = false
	state := f.store.snapshot()
	assert.Empty(t, state.patients)
	assert.Empty(t, state.audit)
}

func TestRun_CallbackErrorLeavesNoEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	boom := errors.New("boom")

	err := f.audit.Run(ctx, &admin, func(tx Repositories, rec *Recorder) error {
		require.NoError(t, rec.Record(ctx, AuditEntry{
			Action:       domain.ActionUpdate,
			ResourceType: domain.ResourceUser,
			Description:  "about to fail",
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, f.store.auditLog())
}

func TestRecorder_FillsActorAndRequestMeta(t *testing.T) {
	f := newFixture(t)
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	ctx := WithRequestMeta(context.Background(), RequestMeta{
		IPAddress: "10.0.0.7",
		UserAgent: "curl/8.0",
		RequestID: "req-42",
	})

	err := f.audit.Run(ctx, &admin, func(tx Repositories, rec *Recorder) error {
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionRead,
			ResourceType: domain.ResourcePatient,
			Description:  "Listed 0 patients",
		})
	})
	require.NoError(t, err)

	entries := f.store.auditLog()
	require.Len(t, entries, 1)
	e := entries[0]
	require.NotNil(t, e.UserID)
	assert.Equal(t, admin.ID, *e.UserID)
	assert.Equal(t, domain.RoleAdmin, e.UserRole)
	assert.Equal(t, domain.AuditSuccess, e.Status)
	assert.Equal(t, "10.0.0.7", e.IPAddress)
	assert.Equal(t, "curl/8.0", e.UserAgent)
	assert.Equal(t, "req-42", e.RequestID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestQuery_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	f.audit.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	for i := 0; i < 3; i++ {
		f.seedPatient(t, admin)
	}

	entries, err := f.audit.Query(ctx, admin, domain.AuditFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.After(entries[i-1].Timestamp), "entry %d is newer than entry %d", i, i-1)
	}
}

func TestQuery_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	_, p := f.seedPatient(t, admin)
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	f.seedConsultation(t, doctor, p.ID)

	rt := domain.ResourceConsultation
	entries, err := f.audit.Query(ctx, admin, domain.AuditFilter{ResourceType: &rt}, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, doctor.ID, *entries[0].UserID)

	entries, err = f.audit.Query(ctx, admin, domain.AuditFilter{ResourceID: &p.ID}, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ResourcePatient, entries[0].ResourceType)
}

func TestQuery_RecordsTheRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	f.seedPatient(t, admin)

	entries, err := f.audit.Query(ctx, admin, domain.AuditFilter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	log := f.store.auditLog()
	require.Len(t, log, 2)
	last := log[1]
	assert.Equal(t, domain.ActionRead, last.Action)
	assert.Equal(t, domain.ResourceAuditLog, last.ResourceType)
	assert.Equal(t, domain.AuditSuccess, last.Status)
	assert.Equal(t, admin.ID, *last.UserID)
	assert.Nil(t, last.ResourceID)
	assert.Equal(t, "Listed 1 audit entries", last.Description)
}

func TestQuery_AdminOnly(t *testing.T) {
	f := newFixture(t)
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()

	_, err := f.audit.Query(context.Background(), doctor, domain.AuditFilter{}, 0, 10)
	require.ErrorIs(t, err, ErrForbidden)

	entries := f.store.auditLog()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ResourceAuditLog, entries[0].ResourceType)
	assert.Equal(t, domain.AuditForbidden, entries[0].Status)
}

func TestExportWorker_ShipsCommittedEntries(t *testing.T) {
	f := newFixture(t)
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	_, p := f.seedPatient(t, admin)

	f.audit.Shutdown()

	exported := f.exporter.exported()
	require.Len(t, exported, 1)
	assert.Equal(t, p.ID, *exported[0].ResourceID)
	assert.Equal(t, f.store.auditLog()[0].ID, exported[0].ID)
}

func TestExportWorker_FailureDoesNotAffectOperation(t *testing.T) {
	f := newFixture(t)
	f.exporter.ExportFn = func(context.Context, []*domain.AuditLog) error {
		return errors.New("broker down")
	}
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	_, p := f.seedPatient(t, admin)

	f.audit.Shutdown()

	assert.GreaterOrEqual(t, f.exporter.calls.Load(), int32(1))
	got, err := f.patients.GetPatient(context.Background(), admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestExportWorker_RolledBackEntriesAreNotExported(t *testing.T) {
	f := newFixture(t)
	admin := f.seedUser(t, domain.RoleAdmin).Identity()

	_ = f.audit.Run(context.Background(), &admin, func(tx Repositories, rec *Recorder) error {
		_ = rec.Record(context.Background(), AuditEntry{Action: domain.ActionDelete, ResourceType: domain.ResourceUser})
		return errors.New("rolled back")
	})
	f.audit.Shutdown()

	assert.Empty(t, f.exporter.exported())
}
