package contract

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ActionKind is the discriminated kind tag of a governance action. Values
// mirror the contract's actionType encoding.
type ActionKind uint8

const (
	KindSetHourlyRewardRate ActionKind = iota
	KindUpdatePairWeights
	KindAddPair
	KindRemovePair
	KindChangeSigner
	KindWithdrawRewards
)

func (k ActionKind) String() string {
	switch k {
	case KindSetHourlyRewardRate:
		return "SetHourlyRewardRate"
	case KindUpdatePairWeights:
		return "UpdatePairWeights"
	case KindAddPair:
		return "AddPair"
	case KindRemovePair:
		return "RemovePair"
	case KindChangeSigner:
		return "ChangeSigner"
	case KindWithdrawRewards:
		return "WithdrawRewards"
	default:
		return "Unknown"
	}
}

// Valid reports whether k is a known kind tag.
func (k ActionKind) Valid() bool { return k <= KindWithdrawRewards }

// Payload is the kind-specific content of an action. Exactly one concrete
// payload type is populated per action; the contract's flat union shape
// never leaves this package.
type Payload interface {
	isPayload()
}

// SetHourlyRewardRate carries the new rate as an 18-decimal string.
type SetHourlyRewardRate struct {
	Rate string
}

// UpdatePairWeights carries parallel pair/weight lists.
type UpdatePairWeights struct {
	Pairs   []common.Address
	Weights []uint64
}

// AddPair registers a new LP pair.
type AddPair struct {
	LPToken  common.Address
	Name     string
	Platform string
	Weight   uint64
}

// RemovePair deactivates an LP pair.
type RemovePair struct {
	LPToken common.Address
}

// ChangeSigner swaps one governance signer for another.
type ChangeSigner struct {
	Old common.Address
	New common.Address
}

// WithdrawRewards sends reward tokens to a recipient; Amount is an
// 18-decimal string.
type WithdrawRewards struct {
	Recipient common.Address
	Amount    string
}

func (SetHourlyRewardRate) isPayload() {}
func (UpdatePairWeights) isPayload()   {}
func (AddPair) isPayload()             {}
func (RemovePair) isPayload()          {}
func (ChangeSigner) isPayload()        {}
func (WithdrawRewards) isPayload()     {}

// Action is one decoded governance action as read from the chain.
type Action struct {
	ID         uint64
	Kind       ActionKind
	Payload    Payload
	Approvers  []common.Address
	ProposedAt time.Time
	Executed   bool
	Rejected   bool
}

// ApprovalCount returns the number of distinct approvers.
func (a Action) ApprovalCount() int { return len(a.Approvers) }

// PairInfo is the decoded getPairInfo result.
type PairInfo struct {
	LPToken  common.Address
	Name     string
	Platform string
	Weight   uint64
	Active   bool
}
