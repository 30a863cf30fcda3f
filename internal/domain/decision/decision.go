// Package decision defines the Decision ledger entity and its state rules.
package decision

import (
	"fmt"
	"time"

	"github.com/doctorauto/sophia/internal/domain"
)

// Status is the approval state of a decision.
type Status string

const (
	StatusPending  Status = "pendente"
	StatusApproved Status = "aprovado"
	StatusRejected Status = "rejeitado"
	StatusExecuted Status = "executado"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExecuted:
		return true
	}
	return false
}

// Terminal reports whether no operator transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusExecuted
}

// Mode selects how newly proposed decisions enter the ledger.
type Mode string

const (
	ModeSemiAuto Mode = "semi-auto"
	ModeAuto     Mode = "auto"
)

// InitialStatus returns the status a new decision gets under m.
func (m Mode) InitialStatus() Status {
	if m == ModeAuto {
		return StatusApproved
	}
	return StatusPending
}

// DefaultRejectReason is stored when a rejection carries no reason.
const DefaultRejectReason = "Rejeitado pelo operador"

// Decision is a proposed autonomous action awaiting human sign-off.
type Decision struct {
	ID            string    `json:"id"`
	Type          string    `json:"tipo_decisao"`
	Context       string    `json:"contexto"`
	Proposal      string    `json:"decisao"`
	Status        Status    `json:"status"`
	Result        string    `json:"resultado,omitempty"`
	AffectedAgent string    `json:"agente_afetado,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateRequest holds a proposal produced by agent reasoning.
type CreateRequest struct {
	Type     string
	Context  string
	Proposal string
	Status   Status
}

// OperatorCanSet reports whether a human operator may move a decision
// from "from" to "to". Operators may flip freely between pending,
// approved and rejected so that a mis-click can be corrected; only
// executed decisions are frozen. Moving back to pending is never an
// operator action.
func OperatorCanSet(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	return to == StatusApproved || to == StatusRejected
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListFilter narrows a decision listing. Results are newest first.
type ListFilter struct {
	Status Status
	Limit  int
}

// Normalize validates the filter and clamps the limit.
func (f *ListFilter) Normalize() error {
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, f.Status)
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	return nil
}
