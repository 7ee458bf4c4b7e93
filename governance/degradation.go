package governance

import (
	"sync"

	"github.com/liberdus/lp-governance/contract"
	"github.com/liberdus/lp-governance/faults"
	"github.com/liberdus/lp-governance/pkg/logger"
)

// Capability groups and fine-grained capability names. Fine-grained names
// are contract method names; groups partition the rest of the surface.
const (
	CapRead            = "read"
	CapWrite           = "write"
	CapGovernanceWrite = "governance-write"
)

// governanceUnavailableReason is the human message for per-method
// degradation.
const governanceUnavailableReason = "governance features are not available"

// governanceMethods maps every fine-grained governance capability to its
// group.
var governanceMethods = map[string]string{
	contract.MethodActionCounter:         CapRead,
	contract.MethodActions:               CapRead,
	contract.MethodHasRole:               CapRead,
	contract.MethodOwner:                 CapRead,
	contract.MethodGetSigners:            CapRead,
	contract.MethodRequiredApprovals:     CapRead,
	contract.MethodGetPairs:              CapRead,
	contract.MethodGetPairInfo:           CapRead,
	contract.MethodApproveAction:         CapGovernanceWrite,
	contract.MethodRejectAction:          CapGovernanceWrite,
	contract.MethodExecuteAction:         CapGovernanceWrite,
	contract.MethodCleanupExpired:        CapGovernanceWrite,
	contract.MethodProposeSetRate:        CapGovernanceWrite,
	contract.MethodProposeUpdateWeights:  CapGovernanceWrite,
	contract.MethodProposeAddPair:        CapGovernanceWrite,
	contract.MethodProposeRemovePair:     CapGovernanceWrite,
	contract.MethodProposeChangeSigner:   CapGovernanceWrite,
	contract.MethodProposeWithdrawReward: CapGovernanceWrite,
}

// CapabilityStatus is the answer the controller gives the UI for one
// capability.
type CapabilityStatus struct {
	Enabled bool
	Reason  string
}

type disabledEntry struct {
	reason string
	// sticky entries survive probe recoveries; method-unavailable and
	// not-deployed degradation lasts the whole session.
	sticky bool
}

// Degradation tracks capability loss so the rest of the system can refuse
// unsafe writes while still presenting reads.
type Degradation struct {
	lggr logger.Logger

	mu       sync.RWMutex
	disabled map[string]disabledEntry
	// staleReads is set while no healthy endpoint exists: reads stay
	// enabled but serve last-known data only.
	staleReads bool
}

func NewDegradation(lggr logger.Logger) *Degradation {
	return &Degradation{
		lggr:     lggr.Named("Degradation"),
		disabled: map[string]disabledEntry{},
	}
}

// Observe classifies a failure against the capability it hit and degrades
// accordingly. Transport failures do not disable capabilities here; they
// are handled by endpoint health (SetEndpointHealth).
func (d *Degradation) Observe(capability string, err error) {
	class, ok := faults.ClassOf(err)
	if !ok {
		class = faults.Classify(err).Class
	}

	switch class {
	case faults.NotDeployed:
		d.mu.Lock()
		for _, group := range []string{CapRead, CapWrite, CapGovernanceWrite} {
			d.disabled[group] = disabledEntry{reason: "contract is not deployed", sticky: true}
		}
		d.mu.Unlock()
		d.lggr.Errorw("contract not deployed, governance disabled for the session", "err", err)
	case faults.MethodUnavailable:
		d.mu.Lock()
		d.disabled[capability] = disabledEntry{reason: governanceUnavailableReason, sticky: true}
		d.mu.Unlock()
		d.lggr.Warnw("capability disabled, method unavailable", "capability", capability, "err", err)
	default:
	}
}

// SetEndpointHealth reflects the probe cycle outcome: with no healthy
// endpoint, writes are refused and reads degrade to stale-only. Recovery
// re-enables everything that was not stickily disabled.
func (d *Degradation) SetEndpointHealth(healthy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !healthy {
		reason := "no healthy RPC endpoint"
		for _, group := range []string{CapWrite, CapGovernanceWrite} {
			if entry, ok := d.disabled[group]; !ok || !entry.sticky {
				d.disabled[group] = disabledEntry{reason: reason}
			}
		}
		d.staleReads = true
		d.lggr.Warn("all endpoints down, writes disabled and reads stale-only")

		return
	}

	for name, entry := range d.disabled {
		if !entry.sticky {
			delete(d.disabled, name)
		}
	}
	d.staleReads = false
}

// DisableWrites turns off both write groups, e.g. on a wallet chain-id
// mismatch. Not sticky; a later EnableWrites reverses it.
func (d *Degradation) DisableWrites(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, group := range []string{CapWrite, CapGovernanceWrite} {
		if entry, ok := d.disabled[group]; !ok || !entry.sticky {
			d.disabled[group] = disabledEntry{reason: reason}
		}
	}
}

// EnableWrites reverses a non-sticky DisableWrites.
func (d *Degradation) EnableWrites() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, group := range []string{CapWrite, CapGovernanceWrite} {
		if entry, ok := d.disabled[group]; ok && !entry.sticky {
			delete(d.disabled, group)
		}
	}
}

// Capability answers whether a named capability is usable. A fine-grained
// capability is disabled when either itself or its group is disabled.
func (d *Degradation) Capability(name string) CapabilityStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if entry, ok := d.disabled[name]; ok {
		return CapabilityStatus{Reason: entry.reason}
	}
	if group, ok := governanceMethods[name]; ok {
		if entry, ok := d.disabled[group]; ok {
			return CapabilityStatus{Reason: entry.reason}
		}
	}

	return CapabilityStatus{Enabled: true}
}

// Check returns an error when the capability is disabled, for call sites
// that gate on it.
func (d *Degradation) Check(name string) error {
	status := d.Capability(name)
	if status.Enabled {
		return nil
	}

	return faults.Newf(faults.MethodUnavailable, "capability %s disabled: %s", name, status.Reason)
}

// StaleReads reports whether reads are serving last-known data only.
func (d *Degradation) StaleReads() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.staleReads
}
