package access

import (
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/google/uuid"
)

// Resource is a record instance the evaluator can reason about. Each type
// reports who stands in which relation to it.
type Resource interface {
	ResourceType() domain.ResourceType
	OwnerOf(rel domain.Relation) (uuid.UUID, bool)
}

type Decision struct {
	Allowed  bool
	Reason   Reason
	Resource domain.ResourceType
	Action   Action
}

// Err returns nil for an allowed decision and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason, Resource: string(d.Resource), Action: d.Action}
}

type Evaluator struct {
	table *Table
}

func NewEvaluator(table *Table) *Evaluator {
	return &Evaluator{table: table}
}

// Authorize decides whether actor may perform action on res. Rules apply in order:
// inactive actors are refused, administrators are allowed, the role table must
// hold the capability, and scoped grants need the matching ownership relation.
func (e *Evaluator) Authorize(actor domain.Identity, action Action, res Resource) Decision {
	rt := res.ResourceType()
	scope, d := e.roleDecision(actor, action, rt)
	if !d.Allowed || actor.Role == domain.RoleAdmin {
		return d
	}
	if !owns(actor.ID, res, scope) {
		return deny(ReasonOwnership, rt, action)
	}
	return d
}

// AuthorizeType decides at role level, for operations without a single target
// such as listing. The returned scope tells the caller how to narrow results.
func (e *Evaluator) AuthorizeType(actor domain.Identity, action Action, rt domain.ResourceType) (Scope, Decision) {
	return e.roleDecision(actor, action, rt)
}

func (e *Evaluator) roleDecision(actor domain.Identity, action Action, rt domain.ResourceType) (Scope, Decision) {
	if !actor.Active {
		return 0, deny(ReasonInactive, rt, action)
	}
	if actor.Role == domain.RoleAdmin {
		return ScopeAny, allow(rt, action)
	}
	scope, ok := e.table.Lookup(actor.Role, Capability{Resource: rt, Action: action})
	if !ok {
		return 0, deny(ReasonRole, rt, action)
	}
	return scope, allow(rt, action)
}

// Narrow converts a list scope into a row filter. ScopeAny needs none.
func Narrow(scope Scope, actorID uuid.UUID) *domain.Ownership {
	switch scope {
	case ScopeSubject:
		return &domain.Ownership{UserID: actorID, Subject: true}
	case ScopeAuthor:
		return &domain.Ownership{UserID: actorID, Author: true}
	case ScopeParticipant:
		return &domain.Ownership{UserID: actorID, Subject: true, Author: true}
	}
	return nil
}

func owns(actorID uuid.UUID, res Resource, scope Scope) bool {
	switch scope {
	case ScopeAny:
		return true
	case ScopeSubject:
		return related(actorID, res, domain.RelationSubject)
	case ScopeAuthor:
		return related(actorID, res, domain.RelationAuthor)
	case ScopeParticipant:
		return related(actorID, res, domain.RelationSubject) || related(actorID, res, domain.RelationAuthor)
	}
	return false
}

func related(actorID uuid.UUID, res Resource, rel domain.Relation) bool {
	owner, ok := res.OwnerOf(rel)
	return ok && owner != uuid.Nil && owner == actorID
}

func allow(rt domain.ResourceType, a Action) Decision {
	return Decision{Allowed: true, Resource: rt, Action: a}
}

func deny(r Reason, rt domain.ResourceType, a Action) Decision {
	return Decision{Reason: r, Resource: rt, Action: a}
}
