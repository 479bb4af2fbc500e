package service

import (
	"context"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/prescription"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePrescription(t *testing.T) {
	f := newFixture(t)
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	_, p := f.seedPatient(t, admin)

	rx := f.seedPrescription(t, doctor, p.ID)
	assert.Equal(t, prescription.StatusActive, rx.Status)
	assert.Equal(t, prescription.RouteOral, rx.Route)
	assert.Equal(t, doctor.ID, rx.DoctorID)
	assert.Nil(t, rx.DispensedBy)

	entries := f.store.auditLog()
	assert.Equal(t,
		"Created prescription for patient: "+p.ID.String()+", medication: Amoxicillin",
		entries[len(entries)-1].Description,
	)
}

func TestCreatePrescription_ConsultationMustMatchPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	_, p := f.seedPatient(t, admin)
	_, q := f.seedPatient(t, admin)
	c := f.seedConsultation(t, doctor, q.ID)

	cmd := rxCommand(p.ID)
	cmd.ConsultationID = &c.ID
	_, err := f.prescriptions.CreatePrescription(ctx, doctor, cmd)
	require.ErrorIs(t, err, prescription.ErrConsultationMismatch)

	cmd = rxCommand(q.ID)
	cmd.ConsultationID = &c.ID
	rx, err := f.prescriptions.CreatePrescription(ctx, doctor, cmd)
	require.NoError(t, err)
	assert.Equal(t, c.ID, *rx.ConsultationID)
}

func TestCreatePrescription_Validation(t *testing.T) {
	f := newFixture(t)
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	past := time.Now().Add(-time.Hour)

	_, err := f.prescriptions.CreatePrescription(context.Background(), doctor, &prescription.CreatePrescriptionCommand{
		PatientID:  uuid.New(),
		Route:      "nasal",
		Quantity:   ptr(0),
		Refills:    -1,
		ExpiryDate: &past,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		"medication_name is required and must be at most 255 characters",
		"dosage is required and must be at most 100 characters",
		"frequency is required and must be at most 100 characters",
		"duration is required and must be at most 100 characters",
		"route is invalid",
		"quantity must be positive",
		prescription.ErrInvalidRefills.Error(),
		"expiry_date must be in the future",
	}, verr.Fields)
}

func TestCreatePrescription_NurseAndPharmacistCannotPrescribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	_, p := f.seedPatient(t, admin)

	for _, role := range []domain.Role{domain.RoleNurse, domain.RolePharmacist, domain.RolePatient} {
		cmd := rxCommand(p.ID)
		cmd.DoctorID = doctor.ID
		_, err := f.prescriptions.CreatePrescription(ctx, f.seedUser(t, role).Identity(), cmd)
		assert.ErrorIs(t, err, ErrForbidden, role)
	}
}

func TestDispensePrescription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	pharmacist := f.seedUser(t, domain.RolePharmacist).Identity()
	_, p := f.seedPatient(t, admin)
	rx := f.seedPrescription(t, doctor, p.ID)

	got, err := f.prescriptions.DispensePrescription(ctx, pharmacist, rx.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, prescription.StatusCompleted, got.Status)
	require.NotNil(t, got.DispensedBy)
	assert.Equal(t, pharmacist.ID, *got.DispensedBy)
	require.NotNil(t, got.DispensedDate)
	assert.WithinDuration(t, time.Now(), *got.DispensedDate, 5*time.Second)

	stored := f.store.snapshot().prescriptions[rx.ID]
	assert.Equal(t, prescription.StatusCompleted, stored.Status)
	assert.Equal(t, pharmacist.ID, *stored.DispensedBy)

	entries := f.store.auditLog()
	last := entries[len(entries)-1]
	assert.Equal(t, domain.ActionDispense, last.Action)
	assert.Equal(t, "Dispensed prescription: "+rx.ID.String()+", medication: Amoxicillin", last.Description)
}

func TestDispensePrescription_SecondDispenseIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	first := f.seedUser(t, domain.RolePharmacist).Identity()
	second := f.seedUser(t, domain.RolePharmacist).Identity()
	_, p := f.seedPatient(t, admin)
	rx := f.seedPrescription(t, doctor, p.ID)

	_, err := f.prescriptions.DispensePrescription(ctx, first, rx.ID, nil)
	require.NoError(t, err)
	before := f.store.snapshot().prescriptions[rx.ID]

	_, err = f.prescriptions.DispensePrescription(ctx, second, rx.ID, nil)
	require.ErrorIs(t, err, prescription.ErrAlreadyDispensed)

	after := f.store.snapshot().prescriptions[rx.ID]
	assert.Equal(t, before, after)
	assert.Equal(t, first.ID, *after.DispensedBy)
}

func TestDispensePrescription_RejectsInactiveStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	pharmacist := f.seedUser(t, domain.RolePharmacist).Identity()
	_, p := f.seedPatient(t, admin)

	cancelled := f.seedPrescription(t, doctor, p.ID)
	_, err := f.prescriptions.UpdatePrescription(ctx, doctor, cancelled.ID, &prescription.UpdatePrescriptionCommand{
		Status: ptr(prescription.StatusCancelled),
	})
	require.NoError(t, err)
	_, err = f.prescriptions.DispensePrescription(ctx, pharmacist, cancelled.ID, nil)
	require.ErrorIs(t, err, prescription.ErrNotDispensable)

	lapsed := f.seedPrescription(t, doctor, p.ID)
	_, err = f.prescriptions.UpdatePrescription(ctx, doctor, lapsed.ID, &prescription.UpdatePrescriptionCommand{
		ExpiryDate: ptr(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)
	_, err = f.prescriptions.DispensePrescription(ctx, pharmacist, lapsed.ID, nil)
	require.ErrorIs(t, err, prescription.ErrPrescriptionExpired)

	_, err = f.prescriptions.DispensePrescription(ctx, pharmacist, uuid.New(), nil)
	require.ErrorIs(t, err, prescription.ErrPrescriptionNotFound)
}

func TestDispensePrescription_RoleAndDeclaredPharmacist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	pharmacist := f.seedUser(t, domain.RolePharmacist).Identity()
	colleague := f.seedUser(t, domain.RolePharmacist).Identity()
	_, p := f.seedPatient(t, admin)

	rx := f.seedPrescription(t, doctor, p.ID)
	_, err := f.prescriptions.DispensePrescription(ctx, doctor, rx.ID, nil)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.prescriptions.DispensePrescription(ctx, pharmacist, rx.ID, &prescription.DispenseCommand{DispensedBy: &colleague.ID})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.prescriptions.DispensePrescription(ctx, admin, rx.ID, &prescription.DispenseCommand{DispensedBy: &doctor.ID})
	require.ErrorIs(t, err, prescription.ErrPharmacistNotFound)

	got, err := f.prescriptions.DispensePrescription(ctx, admin, rx.ID, &prescription.DispenseCommand{DispensedBy: &colleague.ID})
	require.NoError(t, err)
	assert.Equal(t, colleague.ID, *got.DispensedBy)
}

func TestUpdatePrescription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	_, p := f.seedPatient(t, admin)
	rx := f.seedPrescription(t, doctor, p.ID)

	got, err := f.prescriptions.UpdatePrescription(ctx, doctor, rx.ID, &prescription.UpdatePrescriptionCommand{
		Notes:   ptr("Take with food"),
		Refills: ptr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "Take with food", got.Notes)
	assert.Equal(t, 2, got.Refills)

	// Completion only happens through dispensing.
	_, err = f.prescriptions.UpdatePrescription(ctx, doctor, rx.ID, &prescription.UpdatePrescriptionCommand{
		Status: ptr(prescription.StatusCompleted),
	})
	require.ErrorIs(t, err, prescription.ErrInvalidStatusTransition)

	_, err = f.prescriptions.UpdatePrescription(ctx, f.seedUser(t, domain.RoleDoctor).Identity(), rx.ID, &prescription.UpdatePrescriptionCommand{
		Notes: ptr("not mine"),
	})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.prescriptions.UpdatePrescription(ctx, f.seedUser(t, domain.RolePharmacist).Identity(), rx.ID, &prescription.UpdatePrescriptionCommand{
		Notes: ptr("dispensed elsewhere"),
	})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, access.ReasonRole, access.ReasonOf(err))
}

func TestListPrescriptions_Narrowing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	colleague := f.seedUser(t, domain.RoleDoctor).Identity()
	owner, p := f.seedPatient(t, admin)
	_, q := f.seedPatient(t, admin)

	f.seedPrescription(t, doctor, p.ID)
	f.seedPrescription(t, colleague, q.ID)

	tests := []struct {
		name  string
		actor domain.Identity
		want  int
	}{
		{"admin", admin, 2},
		{"pharmacist sees all", f.seedUser(t, domain.RolePharmacist).Identity(), 2},
		{"doctor sees authored", doctor, 1},
		{"patient sees own", owner.Identity(), 1},
		{"unrelated patient", f.seedUser(t, domain.RolePatient).Identity(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.prescriptions.ListPrescriptions(ctx, tt.actor, &prescription.ListPrescriptionsQuery{})
			require.NoError(t, err)
			assert.Len(t, out.Prescriptions, tt.want)
		})
	}
}

func TestDeletePrescription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	pharmacist := f.seedUser(t, domain.RolePharmacist).Identity()
	_, p := f.seedPatient(t, admin)
	rx := f.seedPrescription(t, doctor, p.ID)

	require.ErrorIs(t, f.prescriptions.DeletePrescription(ctx, pharmacist, rx.ID), ErrForbidden)
	require.NoError(t, f.prescriptions.DeletePrescription(ctx, doctor, rx.ID))

	_, err := f.prescriptions.GetPrescription(ctx, admin, rx.ID)
	require.ErrorIs(t, err, prescription.ErrPrescriptionNotFound)
}
