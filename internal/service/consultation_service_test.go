package service

import (
	"context"
	"testing"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateConsultation_Defaults(t *testing.T) {
	f := newFixture(t)
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	_, p := f.seedPatient(t, admin)

	c := f.seedConsultation(t, doctor, p.ID)
	assert.Equal(t, doctor.ID, c.DoctorID)
	assert.Equal(t, consultation.StatusScheduled, c.Status)
	assert.False(t, c.ConsultationDate.IsZero())
}

func TestCreateConsultation_ReferenceChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	nurse := f.seedUser(t, domain.RoleNurse)
	_, p := f.seedPatient(t, admin)

	_, err := f.consultations.CreateConsultation(ctx, doctor, &consultation.CreateConsultationCommand{PatientID: uuid.New()})
	require.ErrorIs(t, err, patient.ErrPatientNotFound)

	_, err = f.consultations.CreateConsultation(ctx, admin, &consultation.CreateConsultationCommand{
		PatientID: p.ID,
		DoctorID:  nurse.ID,
	})
	require.ErrorIs(t, err, domain.ErrDoctorNotFound)
}

func TestCreateConsultation_DoctorAuthorsOnlyOwn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	colleague := f.seedUser(t, domain.RoleDoctor).Identity()
	_, p := f.seedPatient(t, admin)

	_, err := f.consultations.CreateConsultation(ctx, doctor, &consultation.CreateConsultationCommand{
		PatientID: p.ID,
		DoctorID:  colleague.ID,
	})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, access.ReasonOwnership, access.ReasonOf(err))

	c, err := f.consultations.CreateConsultation(ctx, admin, &consultation.CreateConsultationCommand{
		PatientID: p.ID,
		DoctorID:  colleague.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, colleague.ID, c.DoctorID)
}

func TestGetConsultation_Participants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	owner, p := f.seedPatient(t, admin)
	c := f.seedConsultation(t, doctor, p.ID)

	for _, actor := range []domain.Identity{admin, doctor, owner.Identity()} {
		got, err := f.consultations.GetConsultation(ctx, actor, c.ID)
		require.NoError(t, err, actor.Role)
		assert.Equal(t, c.ID, got.ID)
	}

	for _, actor := range []domain.Identity{
		f.seedUser(t, domain.RoleDoctor).Identity(),
		f.seedUser(t, domain.RolePatient).Identity(),
		f.seedUser(t, domain.RolePharmacist).Identity(),
	} {
		_, err := f.consultations.GetConsultation(ctx, actor, c.ID)
		assert.ErrorIs(t, err, ErrForbidden, actor.Role)
	}
}

func TestUpdateConsultation_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	_, p := f.seedPatient(t, admin)
	c := f.seedConsultation(t, doctor, p.ID)

	_, err := f.consultations.UpdateConsultation(ctx, doctor, c.ID, &consultation.UpdateConsultationCommand{
		Status: ptr(consultation.StatusCompleted),
	})
	require.ErrorIs(t, err, consultation.ErrInvalidStatusTransition)

	got, err := f.consultations.UpdateConsultation(ctx, doctor, c.ID, &consultation.UpdateConsultationCommand{
		Status:    ptr(consultation.StatusInProgress),
		Diagnosis: ptr("Seasonal allergy"),
	})
	require.NoError(t, err)
	assert.Equal(t, consultation.StatusInProgress, got.Status)
	assert.Equal(t, "Seasonal allergy", got.Diagnosis)

	got, err = f.consultations.UpdateConsultation(ctx, doctor, c.ID, &consultation.UpdateConsultationCommand{
		Status: ptr(consultation.StatusCompleted),
	})
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt)

	_, err = f.consultations.UpdateConsultation(ctx, f.seedUser(t, domain.RoleDoctor).Identity(), c.ID, &consultation.UpdateConsultationCommand{
		ClinicalNotes: ptr("not mine"),
	})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.consultations.UpdateConsultation(ctx, f.seedUser(t, domain.RoleNurse).Identity(), c.ID, &consultation.UpdateConsultationCommand{
		ClinicalNotes: ptr("vitals taken"),
	})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, access.ReasonRole, access.ReasonOf(err))
}

func TestListConsultations_Narrowing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	colleague := f.seedUser(t, domain.RoleDoctor).Identity()
	owner, p := f.seedPatient(t, admin)
	_, q := f.seedPatient(t, admin)

	f.seedConsultation(t, doctor, p.ID)
	f.seedConsultation(t, doctor, q.ID)
	f.seedConsultation(t, colleague, p.ID)

	tests := []struct {
		name  string
		actor domain.Identity
		query consultation.ListConsultationsQuery
		want  int
	}{
		{"admin sees all", admin, consultation.ListConsultationsQuery{}, 3},
		{"doctor sees authored", doctor, consultation.ListConsultationsQuery{}, 2},
		{"patient sees own", owner.Identity(), consultation.ListConsultationsQuery{}, 2},
		{"filter by patient", doctor, consultation.ListConsultationsQuery{PatientID: &q.ID}, 1},
		{"filter by status", admin, consultation.ListConsultationsQuery{Status: ptr(consultation.StatusCompleted)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			out, err := f.consultations.ListConsultations(ctx, tt.actor, &q)
			require.NoError(t, err)
			assert.Len(t, out.Consultations, tt.want)
		})
	}

	_, err := f.consultations.ListConsultations(ctx, f.seedUser(t, domain.RolePharmacist).Identity(), &consultation.ListConsultationsQuery{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.consultations.ListConsultations(ctx, admin, &consultation.ListConsultationsQuery{Status: ptr(consultation.Status("paused"))})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDeleteConsultation_AuthorOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, domain.RoleAdmin).Identity()
	doctor := f.seedUser(t, domain.RoleDoctor).Identity()
	_, p := f.seedPatient(t, admin)
	c := f.seedConsultation(t, doctor, p.ID)

	require.ErrorIs(t, f.consultations.DeleteConsultation(ctx, f.seedUser(t, domain.RoleDoctor).Identity(), c.ID), ErrForbidden)
	require.NoError(t, f.consultations.DeleteConsultation(ctx, doctor, c.ID))

	_, err := f.consultations.GetConsultation(ctx, admin, c.ID)
	require.ErrorIs(t, err, consultation.ErrConsultationNotFound)
}
