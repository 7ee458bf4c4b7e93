// Package governance holds the in-memory model of the multi-signature
// proposal lifecycle and the components that keep it consistent with the
// chain: the proposal projection, the authorization oracle, the action
// executor and the degradation controller, wired together by the
// Coordinator.
package governance

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liberdus/lp-governance/contract"
)

// ProposalTTL is the fixed on-chain lifetime of a proposal: expiresAt is
// always proposedAt plus seven days.
const ProposalTTL = 7 * 24 * time.Hour

// Status is the derived lifecycle state of a proposal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReady    Status = "ready"
	StatusExpired  Status = "expired"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected || s == StatusExpired
}

// Proposal is one multi-sig action as projected from chain state.
type Proposal struct {
	ID         uint64
	Kind       contract.ActionKind
	Payload    contract.Payload
	Approvals  []common.Address
	ProposedAt time.Time
	ExpiresAt  time.Time
	Executed   bool
	Rejected   bool
}

// proposalFromAction builds a Proposal from a decoded contract action.
func proposalFromAction(a contract.Action) Proposal {
	return Proposal{
		ID:         a.ID,
		Kind:       a.Kind,
		Payload:    a.Payload,
		Approvals:  a.Approvers,
		ProposedAt: a.ProposedAt,
		ExpiresAt:  a.ProposedAt.Add(ProposalTTL),
		Executed:   a.Executed,
		Rejected:   a.Rejected,
	}
}

// StatusAt derives the proposal's status at the given instant against the
// signer set's approval threshold. A proposal at exactly expiresAt is
// expired; one approval short of the threshold is pending.
func (p Proposal) StatusAt(now time.Time, requiredApprovals int) Status {
	switch {
	case p.Executed:
		return StatusExecuted
	case p.Rejected:
		return StatusRejected
	case !now.Before(p.ExpiresAt):
		return StatusExpired
	case len(p.Approvals) >= requiredApprovals:
		return StatusReady
	default:
		return StatusPending
	}
}

// HasApproval reports whether signer already approved p.
func (p Proposal) HasApproval(signer common.Address) bool {
	for _, a := range p.Approvals {
		if a == signer {
			return true
		}
	}

	return false
}
