package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const (
	exportBufferSize = 10_000
	exportBatchSize  = 100
)

// RequestMeta describes the transport request behind an operation.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type requestMetaKey struct{}

func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m
}

// Exporter ships committed audit entries to an external sink. The slice is
// reused after Export returns.
type Exporter interface {
	Export(ctx context.Context, entries []*domain.AuditLog) error
}

type AuditEntry struct {
	// Defaults to the actor of the enclosing Run.
	UserID   *uuid.UUID
	UserRole domain.Role

	Action       domain.AuditAction
	ResourceType domain.ResourceType
	ResourceID   *uuid.UUID
	Description  string
	// Defaults to domain.AuditSuccess.
	Status       domain.AuditStatus
	ErrorMessage string
}

// Recorder appends audit entries inside the transaction of one operation.
type Recorder struct {
	repo    AuditRepository
	actor   *domain.Identity
	meta    RequestMeta
	now     func() time.Time
	entries []*domain.AuditLog
	denial  *denial
}

type denial struct {
	decision   access.Decision
	resourceID *uuid.UUID
}

// Record inserts one entry. A failure must be returned from the enclosing
// Run callback so the operation rolls back with it.
func (r *Recorder) Record(ctx context.Context, e AuditEntry) error {
	if e.UserID == nil && r.actor != nil {
		id := r.actor.ID
		e.UserID = &id
		e.UserRole = r.actor.Role
	}
	if e.Status == "" {
		e.Status = domain.AuditSuccess
	}

	entry := &domain.AuditLog{
		ID:           uuid.New(),
		Timestamp:    r.now(),
		UserID:       e.UserID,
		UserRole:     e.UserRole,
		IPAddress:    r.meta.IPAddress,
		UserAgent:    r.meta.UserAgent,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Description:  e.Description,
		Status:       e.Status,
		ErrorMessage: e.ErrorMessage,
		RequestID:    r.meta.RequestID,
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Deny keeps a refused decision for Run to record once the transaction has
// rolled back, and returns the decision's error.
func (r *Recorder) Deny(d access.Decision, resourceID *uuid.UUID) error {
	r.denial = &denial{decision: d, resourceID: resourceID}
	return d.Err()
}

type AuditService struct {
	store   Store
	authz   *authorizer
	metrics *metrics.Collector
	log     *zap.Logger
	now     func() time.Time

	exporter Exporter
	entries  chan *domain.AuditLog
	done     chan struct{}
	mu       sync.RWMutex
	closed   bool
}

// NewAuditService starts the export worker when exporter is non-nil.
func NewAuditService(store Store, evaluator *access.Evaluator, exporter Exporter, m *metrics.Collector, log *zap.Logger) *AuditService {
	svc := &AuditService{
		store:    store,
		authz:    newAuthorizer(evaluator, m),
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		exporter: exporter,
	}
	if exporter != nil {
		svc.entries = make(chan *domain.AuditLog, exportBufferSize)
		svc.done = make(chan struct{})
		go svc.worker()
	}
	return svc
}

// Run executes fn in one transaction together with every entry fn records.
// If fn was refused through rec.Deny, a single forbidden entry is written in
// a separate transaction after the rollback.
func (s *AuditService) Run(ctx context.Context, actor *domain.Identity, fn func(tx Repositories, rec *Recorder) error) error {
	var rec *Recorder
	err := s.store.WithinTx(ctx, func(tx Repositories) error {
		rec = s.recorder(ctx, tx.Audit(), actor)
		return fn(tx, rec)
	})
	if err != nil {
		if rec != nil && rec.denial != nil && errors.Is(err, access.ErrForbidden) {
			s.recordDenial(ctx, actor, rec.denial)
		}
		return err
	}
	s.committed(rec.entries)
	return nil
}

// Query returns entries matching f, newest first. Administrators only; the
// read itself is recorded after the listing.
func (s *AuditService) Query(ctx context.Context, actor domain.Identity, f domain.AuditFilter, offset, limit int) ([]*domain.AuditLog, error) {
	ctx, span := otel.Tracer("audit-service").Start(ctx, "AuditService.Query")
	defer span.End()

	offset, limit = page(offset, limit)

	var out []*domain.AuditLog
	err := s.Run(ctx, &actor, func(tx Repositories, rec *Recorder) error {
		if _, err := s.authz.checkType(rec, actor, access.ActionRead, domain.ResourceAuditLog); err != nil {
			return err
		}
		var err error
		if out, err = tx.Audit().List(ctx, f, offset, limit); err != nil {
			return err
		}
		return rec.Record(ctx, AuditEntry{
			Action:       domain.ActionRead,
			ResourceType: domain.ResourceAuditLog,
			Description:  fmt.Sprintf("Listed %d audit entries", len(out)),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AuditService) Shutdown() {
	s.mu.Lock()
	if s.closed || s.entries == nil {
		s.closed = true
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.entries)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.log.Warn("audit export shutdown timed out; some entries may not be exported")
	}
}

func (s *AuditService) recorder(ctx context.Context, repo AuditRepository, actor *domain.Identity) *Recorder {
	return &Recorder{repo: repo, actor: actor, meta: requestMetaFrom(ctx), now: s.now}
}

func (s *AuditService) recordDenial(ctx context.Context, actor *domain.Identity, d *denial) {
	var entries []*domain.AuditLog
	err := s.store.WithinTx(ctx, func(tx Repositories) error {
		rec := s.recorder(ctx, tx.Audit(), actor)
		if err := rec.Record(ctx, AuditEntry{
			Action:       domain.AuditAction(d.decision.Action),
			ResourceType: d.decision.Resource,
			ResourceID:   d.resourceID,
			Description:  fmt.Sprintf("Denied %s on %s", d.decision.Action, d.decision.Resource),
			Status:       domain.AuditForbidden,
			ErrorMessage: d.decision.Err().Error(),
		}); err != nil {
			return err
		}
		entries = rec.entries
		return nil
	})
	if err != nil {
		s.log.Error("failed to record denied access",
			zap.String("resource", string(d.decision.Resource)),
			zap.String("action", string(d.decision.Action)),
			zap.Error(err),
		)
		return
	}
	s.committed(entries)
}

// committed runs after a successful commit.
func (s *AuditService) committed(entries []*domain.AuditLog) {
	for _, e := range entries {
		s.metrics.AuditEntriesTotal.WithLabelValues(string(e.Status)).Inc()
		s.enqueue(e)
	}
}

// enqueue hands an entry to the export worker. If the buffer is full, the
// entry is dropped from export; it is already persisted.
func (s *AuditService) enqueue(entry *domain.AuditLog) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entries == nil || s.closed {
		return
	}

	select {
	case s.entries <- entry:
	default:
		s.metrics.AuditExportDropped.Inc()
		s.log.Warn("audit export buffer full, dropping entry",
			zap.String("action", string(entry.Action)),
			zap.String("resource", string(entry.ResourceType)),
		)
	}
}

func (s *AuditService) worker() {
	defer close(s.done)
	batch := make([]*domain.AuditLog, 0, exportBatchSize)
	for entry := range s.entries {
		batch = append(batch[:0], entry)
	drain:
		for len(batch) < exportBatchSize {
			select {
			case e, ok := <-s.entries:
				if !ok {
					break drain
				}
				batch = append(batch, e)
			default:
				break drain
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.exporter.Export(ctx, batch); err != nil {
			s.metrics.AuditExportFailed.Inc()
			s.log.Error("failed to export audit entries", zap.Int("count", len(batch)), zap.Error(err))
		}
		cancel()
	}
}
