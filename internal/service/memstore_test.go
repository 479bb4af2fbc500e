package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/consultation"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain/prescription"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errAuditWrite = errors.New("audit table unavailable")

// memState is one snapshot of every table.
type memState struct {
	users         map[uuid.UUID]domain.User
	patients      map[uuid.UUID]patient.Patient
	consultations map[uuid.UUID]consultation.Consultation
	prescriptions map[uuid.UUID]prescription.Prescription
	audit         []domain.AuditLog
}

func newMemState() *memState {
	return &memState{
		users:         map[uuid.UUID]domain.User{},
		patients:      map[uuid.UUID]patient.Patient{},
		consultations: map[uuid.UUID]consultation.Consultation{},
		prescriptions: map[uuid.UUID]prescription.Prescription{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.consultations {
		c.consultations[k] = v
	}
	for k, v := range s.prescriptions {
		c.prescriptions[k] = v
	}
	c.audit = append([]domain.AuditLog(nil), s.audit...)
	return c
}

// memStore is a Store whose transactions work on a copy of the state and
// swap it in on commit. Transactions are serialized.
type memStore struct {
	mu    sync.Mutex
	state *memState

	// failAudit makes every audit insert fail.
	failAudit bool
	txCount   int
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	work := s.state.clone()
	if err := fn(&memTx{state: work, failAudit: s.failAudit}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *memStore) auditLog() []domain.AuditLog {
	return s.snapshot().audit
}

func (s *memStore) putUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = u
}

type memTx struct {
	state     *memState
	failAudit bool
}

func (t *memTx) Users() UserRepository                  { return memUsers{t} }
func (t *memTx) Patients() patient.Repository           { return memPatients{t} }
func (t *memTx) Consultations() consultation.Repository { return memConsultations{t} }
func (t *memTx) Prescriptions() prescription.Repository { return memPrescriptions{t} }
func (t *memTx) Audit() AuditRepository                 { return memAudit{t} }

func deleted(at time.Time) gorm.DeletedAt {
	return gorm.DeletedAt{Time: at, Valid: true}
}

func window[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

type memUsers struct{ tx *memTx }

func (r memUsers) Create(_ context.Context, u *domain.User) error {
	for _, existing := range r.tx.state.users {
		if existing.DeletedAt.Valid {
			continue
		}
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
		if existing.Username == u.Username {
			return domain.ErrUsernameTaken
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.UpdatedAt = u.CreatedAt
	r.tx.state.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := r.tx.state.users[id]
	if !ok || u.DeletedAt.Valid {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.tx.state.users {
		if !u.DeletedAt.Valid && u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r memUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	for _, u := range r.tx.state.users {
		if !u.DeletedAt.Valid && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r memUsers) Update(_ context.Context, u *domain.User) error {
	existing, ok := r.tx.state.users[u.ID]
	if !ok || existing.DeletedAt.Valid {
		return domain.ErrUserNotFound
	}
	u.UpdatedAt = time.Now()
	r.tx.state.users[u.ID] = *u
	return nil
}

func (r memUsers) SoftDelete(_ context.Context, id uuid.UUID) error {
	u, ok := r.tx.state.users[id]
	if !ok || u.DeletedAt.Valid {
		return domain.ErrUserNotFound
	}
	u.DeletedAt = deleted(time.Now())
	r.tx.state.users[id] = u
	return nil
}

func (r memUsers) List(_ context.Context, q *domain.ListUsersQuery) (*domain.PagedUsers, error) {
	var rows []*domain.User
	for _, u := range r.tx.state.users {
		if u.DeletedAt.Valid {
			continue
		}
		if q.Role != nil && u.Role != *q.Role {
			continue
		}
		if q.Ownership != nil && !(q.Ownership.Subject && u.ID == q.Ownership.UserID) {
			continue
		}
		u := u
		rows = append(rows, &u)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID.String() < rows[j].ID.String() })
	return &domain.PagedUsers{
		Users:      window(rows, q.Offset, q.Limit),
		TotalCount: int64(len(rows)),
		Offset:     q.Offset,
		Limit:      q.Limit,
	}, nil
}

type memPatients struct{ tx *memTx }

func (r memPatients) Create(_ context.Context, p *patient.Patient) error {
	for _, existing := range r.tx.state.patients {
		if !existing.DeletedAt.Valid && existing.UserID == p.UserID {
			return patient.ErrPatientAlreadyExists
		}
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.tx.state.patients[p.ID] = *p
	return nil
}

func (r memPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := r.tx.state.patients[id]
	if !ok || p.DeletedAt.Valid {
		return nil, patient.ErrPatientNotFound
	}
	return &p, nil
}

func (r memPatients) GetByUserID(_ context.Context, userID uuid.UUID) (*patient.Patient, error) {
	for _, p := range r.tx.state.patients {
		if !p.DeletedAt.Valid && p.UserID == userID {
			return &p, nil
		}
	}
	return nil, patient.ErrPatientNotFound
}

func (r memPatients) ExistsByUserID(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, err := r.GetByUserID(ctx, userID)
	return err == nil, nil
}

func (r memPatients) Update(_ context.Context, p *patient.Patient) error {
	existing, ok := r.tx.state.patients[p.ID]
	if !ok || existing.DeletedAt.Valid {
		return patient.ErrPatientNotFound
	}
	p.UpdatedAt = time.Now()
	r.tx.state.patients[p.ID] = *p
	return nil
}

func (r memPatients) SoftDelete(_ context.Context, id uuid.UUID) error {
	p, ok := r.tx.state.patients[id]
	if !ok || p.DeletedAt.Valid {
		return patient.ErrPatientNotFound
	}
	p.DeletedAt = deleted(time.Now())
	r.tx.state.patients[id] = p
	return nil
}

func (r memPatients) List(_ context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	var rows []*patient.Patient
	for _, p := range r.tx.state.patients {
		if p.DeletedAt.Valid {
			continue
		}
		// Patient records have no author.
		if q.Ownership != nil && !(q.Ownership.Subject && p.UserID == q.Ownership.UserID) {
			continue
		}
		p := p
		rows = append(rows, &p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID.String() < rows[j].ID.String() })
	return &patient.PagedPatients{
		Patients:   window(rows, q.Offset, q.Limit),
		TotalCount: int64(len(rows)),
		Offset:     q.Offset,
		Limit:      q.Limit,
	}, nil
}

// livePatient mimics a preload: soft-deleted patients are not attached.
func (t *memTx) livePatient(id uuid.UUID) *patient.Patient {
	p, ok := t.state.patients[id]
	if !ok || p.DeletedAt.Valid {
		return nil
	}
	return &p
}

// matches reports whether a clinical record passes an ownership filter.
func (t *memTx) matches(own *domain.Ownership, patientID, doctorID uuid.UUID) bool {
	if own == nil {
		return true
	}
	if own.Author && doctorID == own.UserID {
		return true
	}
	if own.Subject {
		if p := t.livePatient(patientID); p != nil && p.UserID == own.UserID {
			return true
		}
	}
	return false
}

type memConsultations struct{ tx *memTx }

func (r memConsultations) Create(_ context.Context, c *consultation.Consultation) error {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	row := *c
	row.Patient = nil
	r.tx.state.consultations[c.ID] = row
	return nil
}

func (r memConsultations) GetByID(_ context.Context, id uuid.UUID) (*consultation.Consultation, error) {
	c, ok := r.tx.state.consultations[id]
	if !ok || c.DeletedAt.Valid {
		return nil, consultation.ErrConsultationNotFound
	}
	c.Patient = r.tx.livePatient(c.PatientID)
	return &c, nil
}

func (r memConsultations) Update(_ context.Context, c *consultation.Consultation) error {
	existing, ok := r.tx.state.consultations[c.ID]
	if !ok || existing.DeletedAt.Valid {
		return consultation.ErrConsultationNotFound
	}
	row := *c
	row.Patient = nil
	row.UpdatedAt = time.Now()
	r.tx.state.consultations[c.ID] = row
	return nil
}

func (r memConsultations) SoftDelete(_ context.Context, id uuid.UUID) error {
	c, ok := r.tx.state.consultations[id]
	if !ok || c.DeletedAt.Valid {
		return consultation.ErrConsultationNotFound
	}
	c.DeletedAt = deleted(time.Now())
	r.tx.state.consultations[id] = c
	return nil
}

func (r memConsultations) SoftDeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	for id, c := range r.tx.state.consultations {
		if c.PatientID == patientID && !c.DeletedAt.Valid {
			c.DeletedAt = deleted(time.Now())
			r.tx.state.consultations[id] = c
		}
	}
	return nil
}

func (r memConsultations) List(_ context.Context, q *consultation.ListConsultationsQuery) (*consultation.PagedConsultations, error) {
	var rows []*consultation.Consultation
	for _, c := range r.tx.state.consultations {
		if c.DeletedAt.Valid {
			continue
		}
		if q.PatientID != nil && c.PatientID != *q.PatientID {
			continue
		}
		if q.Status != nil && c.Status != *q.Status {
			continue
		}
		if !r.tx.matches(q.Ownership, c.PatientID, c.DoctorID) {
			continue
		}
		c := c
		c.Patient = r.tx.livePatient(c.PatientID)
		rows = append(rows, &c)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID.String() < rows[j].ID.String() })
	return &consultation.PagedConsultations{
		Consultations: window(rows, q.Offset, q.Limit),
		TotalCount:    int64(len(rows)),
		Offset:        q.Offset,
		Limit:         q.Limit,
	}, nil
}

type memPrescriptions struct{ tx *memTx }

func (r memPrescriptions) Create(_ context.Context, p *prescription.Prescription) error {
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	row := *p
	row.Patient = nil
	r.tx.state.prescriptions[p.ID] = row
	return nil
}

func (r memPrescriptions) GetByID(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	p, ok := r.tx.state.prescriptions[id]
	if !ok || p.DeletedAt.Valid {
		return nil, prescription.ErrPrescriptionNotFound
	}
	p.Patient = r.tx.livePatient(p.PatientID)
	return &p, nil
}

func (r memPrescriptions) Update(_ context.Context, p *prescription.Prescription) error {
	existing, ok := r.tx.state.prescriptions[p.ID]
	if !ok || existing.DeletedAt.Valid {
		return prescription.ErrPrescriptionNotFound
	}
	row := *p
	row.Patient = nil
	row.UpdatedAt = time.Now()
	r.tx.state.prescriptions[p.ID] = row
	return nil
}

func (r memPrescriptions) MarkDispensed(_ context.Context, id, pharmacistID uuid.UUID, at time.Time) error {
	p, ok := r.tx.state.prescriptions[id]
	if !ok || p.DeletedAt.Valid {
		return prescription.ErrPrescriptionNotFound
	}
	if p.Status != prescription.StatusActive || p.DispensedBy != nil {
		return prescription.ErrAlreadyDispensed
	}
	p.Status = prescription.StatusCompleted
	p.DispensedBy = &pharmacistID
	p.DispensedDate = &at
	r.tx.state.prescriptions[id] = p
	return nil
}

func (r memPrescriptions) SoftDelete(_ context.Context, id uuid.UUID) error {
	p, ok := r.tx.state.prescriptions[id]
	if !ok || p.DeletedAt.Valid {
		return prescription.ErrPrescriptionNotFound
	}
	p.DeletedAt = deleted(time.Now())
	r.tx.state.prescriptions[id] = p
	return nil
}

func (r memPrescriptions) SoftDeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	for id, p := range r.tx.state.prescriptions {
		if p.PatientID == patientID && !p.DeletedAt.Valid {
			p.DeletedAt = deleted(time.Now())
			r.tx.state.prescriptions[id] = p
		}
	}
	return nil
}

func (r memPrescriptions) List(_ context.Context, q *prescription.ListPrescriptionsQuery) (*prescription.PagedPrescriptions, error) {
	var rows []*prescription.Prescription
	for _, p := range r.tx.state.prescriptions {
		if p.DeletedAt.Valid {
			continue
		}
		if q.PatientID != nil && p.PatientID != *q.PatientID {
			continue
		}
		if q.Status != nil && p.Status != *q.Status {
			continue
		}
		if !r.tx.matches(q.Ownership, p.PatientID, p.DoctorID) {
			continue
		}
		p := p
		p.Patient = r.tx.livePatient(p.PatientID)
		rows = append(rows, &p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID.String() < rows[j].ID.String() })
	return &prescription.PagedPrescriptions{
		Prescriptions: window(rows, q.Offset, q.Limit),
		TotalCount:    int64(len(rows)),
		Offset:        q.Offset,
		Limit:         q.Limit,
	}, nil
}

type memAudit struct{ tx *memTx }

func (r memAudit) Create(_ context.Context, e *domain.AuditLog) error {
	if r.tx.failAudit {
		return errAuditWrite
	}
	r.tx.state.audit = append(r.tx.state.audit, *e)
	return nil
}

func (r memAudit) List(_ context.Context, f domain.AuditFilter, offset, limit int) ([]*domain.AuditLog, error) {
	var rows []*domain.AuditLog
	// Newest first; insertion order breaks timestamp ties.
	for i := len(r.tx.state.audit) - 1; i >= 0; i-- {
		e := r.tx.state.audit[i]
		if f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID) {
			continue
		}
		if f.ResourceType != nil && e.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && (e.ResourceID == nil || *e.ResourceID != *f.ResourceID) {
			continue
		}
		rows = append(rows, &e)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp.After(rows[j].Timestamp) })
	return window(rows, offset, limit), nil
}
