package service

import (
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/access"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/metrics"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 100
	maxPageSize     = 100
)

// authorizer couples the evaluator with decision metrics and denial recording.
type authorizer struct {
	evaluator *access.Evaluator
	metrics   *metrics.Collector
}

func newAuthorizer(evaluator *access.Evaluator, m *metrics.Collector) *authorizer {
	return &authorizer{evaluator: evaluator, metrics: m}
}

// check authorizes action on one loaded (or about to be created) record.
func (a *authorizer) check(rec *Recorder, actor domain.Identity, action access.Action, res access.Resource, id *uuid.UUID) error {
	return a.observe(rec, a.evaluator.Authorize(actor, action, res), id)
}

// checkType authorizes an operation without a single target. The returned
// ownership is nil when the actor may see every record.
func (a *authorizer) checkType(rec *Recorder, actor domain.Identity, action access.Action, rt domain.ResourceType) (*domain.Ownership, error) {
	scope, d := a.evaluator.AuthorizeType(actor, action, rt)
	if err := a.observe(rec, d, nil); err != nil {
		return nil, err
	}
	return access.Narrow(scope, actor.ID), nil
}

func (a *authorizer) observe(rec *Recorder, d access.Decision, id *uuid.UUID) error {
	outcome := "allowed"
	if !d.Allowed {
		outcome = "denied_" + string(d.Reason)
	}
	a.metrics.AccessDecisions.WithLabelValues(string(d.Resource), string(d.Action), outcome).Inc()

	if d.Allowed {
		return nil
	}
	return rec.Deny(d, id)
}

func page(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}
