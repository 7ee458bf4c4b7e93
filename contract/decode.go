package contract

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liberdus/lp-governance/faults"
)

// rawAction mirrors the contract's flat union storage: every possible field
// of every kind, with the actionType tag selecting which ones are meaningful.
// Fields outside the tagged kind are indeterminate and must be ignored.
type rawAction struct {
	ActionType          uint8
	NewHourlyRewardRate *big.Int
	PairToAdd           common.Address
	PairNameToAdd       string
	PlatformToAdd       string
	WeightToAdd         *big.Int
	PairToRemove        common.Address
	Recipient           common.Address
	WithdrawAmount      *big.Int
	NewSigner           common.Address
	OldSigner           common.Address
	ProposedTime        *big.Int
	Executed            bool
	Rejected            bool
	Approvals           *big.Int
}

// decodeAction projects a rawAction into a tagged Action, reading only the
// fields meaningful for its kind. Array-valued members arrive separately
// from the companion getters.
func decodeAction(id uint64, raw rawAction, pairs []common.Address, weights []*big.Int, approvers []common.Address) (Action, error) {
	kind := ActionKind(raw.ActionType)
	if !kind.Valid() {
		return Action{}, faults.Newf(faults.Invariant, "action %d: unknown action type %d", id, raw.ActionType)
	}

	action := Action{
		ID:         id,
		Kind:       kind,
		Approvers:  approvers,
		ProposedAt: time.Unix(raw.ProposedTime.Int64(), 0).UTC(),
		Executed:   raw.Executed,
		Rejected:   raw.Rejected,
	}

	switch kind {
	case KindSetHourlyRewardRate:
		action.Payload = SetHourlyRewardRate{Rate: WeiToDecimal(raw.NewHourlyRewardRate)}
	case KindUpdatePairWeights:
		ws := make([]uint64, len(weights))
		for i, w := range weights {
			ws[i] = w.Uint64()
		}
		action.Payload = UpdatePairWeights{Pairs: pairs, Weights: ws}
	case KindAddPair:
		action.Payload = AddPair{
			LPToken:  raw.PairToAdd,
			Name:     raw.PairNameToAdd,
			Platform: raw.PlatformToAdd,
			Weight:   raw.WeightToAdd.Uint64(),
		}
	case KindRemovePair:
		action.Payload = RemovePair{LPToken: raw.PairToRemove}
	case KindChangeSigner:
		action.Payload = ChangeSigner{Old: raw.OldSigner, New: raw.NewSigner}
	case KindWithdrawRewards:
		action.Payload = WithdrawRewards{
			Recipient: raw.Recipient,
			Amount:    WeiToDecimal(raw.WithdrawAmount),
		}
	}

	return action, nil
}

// encodeAction is the inverse projection, filling only the fields meaningful
// for the action's kind and zeroing the rest. The projection tests rely on
// decode(encode(a)) being the identity for valid payloads.
func encodeAction(a Action) (raw rawAction, pairs []common.Address, weights []*big.Int, approvers []common.Address) {
	raw = rawAction{
		ActionType:          uint8(a.Kind),
		NewHourlyRewardRate: big.NewInt(0),
		WeightToAdd:         big.NewInt(0),
		WithdrawAmount:      big.NewInt(0),
		ProposedTime:        big.NewInt(a.ProposedAt.Unix()),
		Executed:            a.Executed,
		Rejected:            a.Rejected,
		Approvals:           big.NewInt(int64(len(a.Approvers))),
	}
	approvers = a.Approvers

	switch p := a.Payload.(type) {
	case SetHourlyRewardRate:
		raw.NewHourlyRewardRate, _ = DecimalToWei(p.Rate)
	case UpdatePairWeights:
		pairs = p.Pairs
		weights = make([]*big.Int, len(p.Weights))
		for i, w := range p.Weights {
			weights[i] = new(big.Int).SetUint64(w)
		}
	case AddPair:
		raw.PairToAdd = p.LPToken
		raw.PairNameToAdd = p.Name
		raw.PlatformToAdd = p.Platform
		raw.WeightToAdd = new(big.Int).SetUint64(p.Weight)
	case RemovePair:
		raw.PairToRemove = p.LPToken
	case ChangeSigner:
		raw.OldSigner = p.Old
		raw.NewSigner = p.New
	case WithdrawRewards:
		raw.Recipient = p.Recipient
		raw.WithdrawAmount, _ = DecimalToWei(p.Amount)
	}

	return raw, pairs, weights, approvers
}
