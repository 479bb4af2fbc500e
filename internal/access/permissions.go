package access

import (
	"sort"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
)

type Action string

const (
	ActionCreate   Action = "create"
	ActionRead     Action = "read"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionDispense Action = "dispense"
)

// Scope says which instances of a resource a grant reaches.
type Scope int

const (
	// ScopeAny reaches every instance.
	ScopeAny Scope = iota
	// ScopeSubject reaches records the actor is the subject of (own account, own patient record).
	ScopeSubject
	// ScopeAuthor reaches records the actor wrote.
	ScopeAuthor
	// ScopeParticipant reaches records the actor is subject or author of.
	ScopeParticipant
)

func (s Scope) String() string {
	switch s {
	case ScopeAny:
		return "any"
	case ScopeSubject:
		return "subject"
	case ScopeAuthor:
		return "author"
	case ScopeParticipant:
		return "participant"
	}
	return "unknown"
}

type Capability struct {
	Resource domain.ResourceType
	Action   Action
}

type Grant struct {
	Capability
	Scope Scope
}

// Table maps each role to the capabilities it holds. It is built once and
// never mutated; share it by pointer.
type Table struct {
	grants map[domain.Role]map[Capability]Scope
}

func NewTable(grants map[domain.Role][]Grant) *Table {
	t := &Table{grants: make(map[domain.Role]map[Capability]Scope, len(grants))}
	for role, list := range grants {
		caps := make(map[Capability]Scope, len(list))
		for _, g := range list {
			caps[g.Capability] = g.Scope
		}
		t.grants[role] = caps
	}
	return t
}

// Lookup returns the scope of a role's grant for a capability. Unknown roles
// and missing capabilities report false.
func (t *Table) Lookup(role domain.Role, c Capability) (Scope, bool) {
	caps, ok := t.grants[role]
	if !ok {
		return 0, false
	}
	s, ok := caps[c]
	return s, ok
}

// Permissions lists a role's grants in a stable order.
func (t *Table) Permissions(role domain.Role) []Grant {
	caps := t.grants[role]
	out := make([]Grant, 0, len(caps))
	for c, s := range caps {
		out = append(out, Grant{Capability: c, Scope: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

func grant(rt domain.ResourceType, a Action, s Scope) Grant {
	return Grant{Capability: Capability{Resource: rt, Action: a}, Scope: s}
}

func crud(rt domain.ResourceType, s Scope) []Grant {
	return []Grant{
		grant(rt, ActionCreate, s),
		grant(rt, ActionRead, s),
		grant(rt, ActionUpdate, s),
		grant(rt, ActionDelete, s),
	}
}

// DefaultTable is the platform's role table.
//
//	Role        User          Patient            Consultation        Prescription
//	admin       CRUD          CRUD               CRUD                CRUD + dispense
//	doctor      R/U(self)     CRUD               CRUD(author,        C/U/D(author)
//	                                             R participant)      R(participant)
//	nurse       R/U(self)     C, R, U(self)      R(participant)      R(participant)
//	pharmacist  R/U(self)     C, R(self)         -                   R, dispense
//	patient     R/U(self)     C/R/U(self)        R(self)             R(self)
//
// Every account may read and update itself. Audit log reads belong to
// administrators only.
func DefaultTable() *Table {
	admin := []Grant{grant(domain.ResourcePrescription, ActionDispense, ScopeAny), grant(domain.ResourceAuditLog, ActionRead, ScopeAny)}
	for _, rt := range []domain.ResourceType{domain.ResourceUser, domain.ResourcePatient, domain.ResourceConsultation, domain.ResourcePrescription} {
		admin = append(admin, crud(rt, ScopeAny)...)
	}

	return NewTable(map[domain.Role][]Grant{
		domain.RoleAdmin: admin,
		domain.RoleDoctor: {
			grant(domain.ResourceUser, ActionRead, ScopeSubject),
			grant(domain.ResourceUser, ActionUpdate, ScopeSubject),

			grant(domain.ResourcePatient, ActionCreate, ScopeAny),
			grant(domain.ResourcePatient, ActionRead, ScopeAny),
			grant(domain.ResourcePatient, ActionUpdate, ScopeAny),
			grant(domain.ResourcePatient, ActionDelete, ScopeAny),

			grant(domain.ResourceConsultation, ActionCreate, ScopeAuthor),
			grant(domain.ResourceConsultation, ActionRead, ScopeParticipant),
			grant(domain.ResourceConsultation, ActionUpdate, ScopeAuthor),
			grant(domain.ResourceConsultation, ActionDelete, ScopeAuthor),

			grant(domain.ResourcePrescription, ActionCreate, ScopeAuthor),
			grant(domain.ResourcePrescription, ActionRead, ScopeParticipant),
			grant(domain.ResourcePrescription, ActionUpdate, ScopeAuthor),
			grant(domain.ResourcePrescription, ActionDelete, ScopeAuthor),
		},
		domain.RoleNurse: {
			grant(domain.ResourceUser, ActionRead, ScopeSubject),
			grant(domain.ResourceUser, ActionUpdate, ScopeSubject),

			grant(domain.ResourcePatient, ActionCreate, ScopeAny),
			grant(domain.ResourcePatient, ActionRead, ScopeAny),
			grant(domain.ResourcePatient, ActionUpdate, ScopeSubject),

			grant(domain.ResourceConsultation, ActionRead, ScopeParticipant),
			grant(domain.ResourcePrescription, ActionRead, ScopeParticipant),
		},
		domain.RolePharmacist: {
			grant(domain.ResourceUser, ActionRead, ScopeSubject),
			grant(domain.ResourceUser, ActionUpdate, ScopeSubject),

			grant(domain.ResourcePatient, ActionCreate, ScopeAny),
			grant(domain.ResourcePatient, ActionRead, ScopeSubject),

			grant(domain.ResourcePrescription, ActionRead, ScopeAny),
			grant(domain.ResourcePrescription, ActionDispense, ScopeAny),
		},
		domain.RolePatient: {
			grant(domain.ResourceUser, ActionRead, ScopeSubject),
			grant(domain.ResourceUser, ActionUpdate, ScopeSubject),

			grant(domain.ResourcePatient, ActionCreate, ScopeSubject),
			grant(domain.ResourcePatient, ActionRead, ScopeSubject),
			grant(domain.ResourcePatient, ActionUpdate, ScopeSubject),

			grant(domain.ResourceConsultation, ActionRead, ScopeSubject),
			grant(domain.ResourcePrescription, ActionRead, ScopeSubject),
		},
	})
}
