// Package contract is the typed view of the LP staking contract's governance
// surface: named read and write operations, role queries and the flat-union
// action decoding. It sits directly on the chain client adapter.
package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/liberdus/lp-governance/faults"
	"github.com/liberdus/lp-governance/pkg/logger"
)

// AdminRole is the contract's ADMIN_ROLE: the all-zero 32-byte value.
var AdminRole [32]byte

// Method names double as capability names for the degradation controller.
const (
	MethodActionCounter         = "actionCounter"
	MethodActions               = "actions"
	MethodApproveAction         = "approveAction"
	MethodRejectAction          = "rejectAction"
	MethodExecuteAction         = "executeAction"
	MethodCleanupExpired        = "cleanupExpiredActions"
	MethodHasRole               = "hasRole"
	MethodOwner                 = "owner"
	MethodGetSigners            = "getSigners"
	MethodRequiredApprovals     = "REQUIRED_APPROVALS"
	MethodGetPairs              = "getPairs"
	MethodGetPairInfo           = "getPairInfo"
	MethodProposeSetRate        = "proposeSetHourlyRewardRate"
	MethodProposeUpdateWeights  = "proposeUpdatePairWeights"
	MethodProposeAddPair        = "proposeAddPair"
	MethodProposeRemovePair     = "proposeRemovePair"
	MethodProposeChangeSigner   = "proposeChangeSigner"
	MethodProposeWithdrawReward = "proposeWithdrawRewards"
)

// Backend is the slice of the chain client the binding needs.
type Backend interface {
	bind.ContractBackend
}

// Binding exposes the staking contract's governance surface as typed
// operations. Construction validates that code exists at the address; a
// codeless address fails NotDeployed and callers must treat governance as
// unavailable.
type Binding struct {
	lggr    logger.Logger
	address common.Address
	backend Backend
	abi     abi.ABI
	bound   *bind.BoundContract
}

// NewBinding binds the contract at address over the given backend. When
// the address carries no code the binding is still returned, together
// with a NotDeployed fault, so callers can keep a degraded session alive.
func NewBinding(ctx context.Context, lggr logger.Logger, backend Backend, address common.Address) (*Binding, error) {
	if address == (common.Address{}) {
		return nil, faults.New(faults.NotDeployed, "contract address is the zero address")
	}

	parsed, err := StakingABI()
	if err != nil {
		return nil, fmt.Errorf("parse staking ABI: %w", err)
	}

	b := &Binding{
		lggr:    lggr.Named("Binding"),
		address: address,
		backend: backend,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
	}

	code, err := backend.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, faults.Classify(err)
	}
	if len(code) == 0 {
		return b, faults.Newf(faults.NotDeployed, "no code at %s", NormalizeAddress(address))
	}

	return b, nil
}

// Address returns the bound contract address.
func (b *Binding) Address() common.Address { return b.address }

// PackInput ABI-encodes a method call, for gas estimation.
func (b *Binding) PackInput(method string, params ...any) ([]byte, error) {
	data, err := b.abi.Pack(method, params...)
	if err != nil {
		return nil, faults.WrapReason(faults.MethodUnavailable, method, err)
	}

	return data, nil
}

func (b *Binding) call(ctx context.Context, method string, params ...any) ([]any, error) {
	var out []any
	if err := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, faults.Classify(fmt.Errorf("%s: %w", method, err))
	}

	return out, nil
}

// RewardToken returns the reward token address.
func (b *Binding) RewardToken(ctx context.Context) (common.Address, error) {
	out, err := b.call(ctx, "rewardToken")
	if err != nil {
		return common.Address{}, err
	}

	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// HourlyRewardRate returns the current rate as an 18-decimal string.
func (b *Binding) HourlyRewardRate(ctx context.Context) (string, error) {
	out, err := b.call(ctx, "hourlyRewardRate")
	if err != nil {
		return "", err
	}

	return WeiToDecimal(*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)), nil
}

// RequiredApprovals returns the multi-sig execution threshold.
func (b *Binding) RequiredApprovals(ctx context.Context) (int, error) {
	out, err := b.call(ctx, MethodRequiredApprovals)
	if err != nil {
		return 0, err
	}
	threshold := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)

	return int(threshold.Int64()), nil
}

// ActionCounter returns the monotonic proposal counter.
func (b *Binding) ActionCounter(ctx context.Context) (uint64, error) {
	out, err := b.call(ctx, MethodActionCounter)
	if err != nil {
		return 0, err
	}
	counter := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)

	return counter.Uint64(), nil
}

// Action fetches and decodes action id into its tagged form, reading the
// companion array getters the flat struct cannot carry.
func (b *Binding) Action(ctx context.Context, id uint64) (Action, error) {
	bigID := new(big.Int).SetUint64(id)

	out, err := b.call(ctx, MethodActions, bigID)
	if err != nil {
		return Action{}, err
	}
	raw := rawAction{
		ActionType:          *abi.ConvertType(out[0], new(uint8)).(*uint8),
		NewHourlyRewardRate: *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		PairToAdd:           *abi.ConvertType(out[2], new(common.Address)).(*common.Address),
		PairNameToAdd:       *abi.ConvertType(out[3], new(string)).(*string),
		PlatformToAdd:       *abi.ConvertType(out[4], new(string)).(*string),
		WeightToAdd:         *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
		PairToRemove:        *abi.ConvertType(out[6], new(common.Address)).(*common.Address),
		Recipient:           *abi.ConvertType(out[7], new(common.Address)).(*common.Address),
		WithdrawAmount:      *abi.ConvertType(out[8], new(*big.Int)).(**big.Int),
		NewSigner:           *abi.ConvertType(out[9], new(common.Address)).(*common.Address),
		OldSigner:           *abi.ConvertType(out[10], new(common.Address)).(*common.Address),
		ProposedTime:        *abi.ConvertType(out[11], new(*big.Int)).(**big.Int),
		Executed:            *abi.ConvertType(out[12], new(bool)).(*bool),
		Rejected:            *abi.ConvertType(out[13], new(bool)).(*bool),
		Approvals:           *abi.ConvertType(out[14], new(*big.Int)).(**big.Int),
	}

	approvers, err := b.actionAddresses(ctx, "getActionApprovers", bigID)
	if err != nil {
		return Action{}, err
	}

	var pairs []common.Address
	var weights []*big.Int
	if ActionKind(raw.ActionType) == KindUpdatePairWeights {
		if pairs, err = b.actionAddresses(ctx, "getActionPairs", bigID); err != nil {
			return Action{}, err
		}
		wout, werr := b.call(ctx, "getActionWeights", bigID)
		if werr != nil {
			return Action{}, werr
		}
		weights = *abi.ConvertType(wout[0], new([]*big.Int)).(*[]*big.Int)
	}

	return decodeAction(id, raw, pairs, weights, approvers)
}

func (b *Binding) actionAddresses(ctx context.Context, method string, id *big.Int) ([]common.Address, error) {
	out, err := b.call(ctx, method, id)
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// IsActionExpired asks the contract's own expiry view for action id.
func (b *Binding) IsActionExpired(ctx context.Context, id uint64) (bool, error) {
	out, err := b.call(ctx, "isActionExpired", new(big.Int).SetUint64(id))
	if err != nil {
		return false, err
	}

	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// HasRole checks role membership for account.
func (b *Binding) HasRole(ctx context.Context, role [32]byte, account common.Address) (bool, error) {
	out, err := b.call(ctx, MethodHasRole, role, account)
	if err != nil {
		return false, err
	}

	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Owner returns the contract owner.
func (b *Binding) Owner(ctx context.Context) (common.Address, error) {
	out, err := b.call(ctx, MethodOwner)
	if err != nil {
		return common.Address{}, err
	}

	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Signers returns the current governance signer set, in contract order.
func (b *Binding) Signers(ctx context.Context) ([]common.Address, error) {
	out, err := b.call(ctx, MethodGetSigners)
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// Pairs returns every registered LP pair address.
func (b *Binding) Pairs(ctx context.Context) ([]common.Address, error) {
	out, err := b.call(ctx, MethodGetPairs)
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// PairInfo returns the registration record for one LP pair.
func (b *Binding) PairInfo(ctx context.Context, lpToken common.Address) (PairInfo, error) {
	out, err := b.call(ctx, MethodGetPairInfo, lpToken)
	if err != nil {
		return PairInfo{}, err
	}
	weight := *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)

	return PairInfo{
		LPToken:  *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		Name:     *abi.ConvertType(out[1], new(string)).(*string),
		Platform: *abi.ConvertType(out[2], new(string)).(*string),
		Weight:   weight.Uint64(),
		Active:   *abi.ConvertType(out[4], new(bool)).(*bool),
	}, nil
}

func (b *Binding) transact(opts *bind.TransactOpts, method string, params ...any) (*types.Transaction, error) {
	tx, err := b.bound.Transact(opts, method, params...)
	if err != nil {
		return nil, faults.Classify(fmt.Errorf("%s: %w", method, err))
	}
	b.lggr.Infow("submitted governance transaction", "method", method, "tx", tx.Hash().Hex())

	return tx, nil
}

// ProposeSetHourlyRewardRate proposes a new reward rate given as an
// 18-decimal string.
func (b *Binding) ProposeSetHourlyRewardRate(opts *bind.TransactOpts, rate string) (*types.Transaction, error) {
	wei, err := DecimalToWei(rate)
	if err != nil {
		return nil, err
	}

	return b.transact(opts, MethodProposeSetRate, wei)
}

// ProposeUpdatePairWeights proposes new weights for the given pairs.
func (b *Binding) ProposeUpdatePairWeights(opts *bind.TransactOpts, pairs []common.Address, weights []uint64) (*types.Transaction, error) {
	ws := make([]*big.Int, len(weights))
	for i, w := range weights {
		ws[i] = new(big.Int).SetUint64(w)
	}

	return b.transact(opts, MethodProposeUpdateWeights, pairs, ws)
}

// ProposeAddPair proposes registering a new LP pair.
func (b *Binding) ProposeAddPair(opts *bind.TransactOpts, lpToken common.Address, name, platform string, weight uint64) (*types.Transaction, error) {
	return b.transact(opts, MethodProposeAddPair, lpToken, name, platform, new(big.Int).SetUint64(weight))
}

// ProposeRemovePair proposes deactivating an LP pair.
func (b *Binding) ProposeRemovePair(opts *bind.TransactOpts, lpToken common.Address) (*types.Transaction, error) {
	return b.transact(opts, MethodProposeRemovePair, lpToken)
}

// ProposeChangeSigner proposes swapping oldSigner for newSigner.
func (b *Binding) ProposeChangeSigner(opts *bind.TransactOpts, oldSigner, newSigner common.Address) (*types.Transaction, error) {
	return b.transact(opts, MethodProposeChangeSigner, oldSigner, newSigner)
}

// ProposeWithdrawRewards proposes withdrawing rewards; amount is an
// 18-decimal string.
func (b *Binding) ProposeWithdrawRewards(opts *bind.TransactOpts, recipient common.Address, amount string) (*types.Transaction, error) {
	wei, err := DecimalToWei(amount)
	if err != nil {
		return nil, err
	}

	return b.transact(opts, MethodProposeWithdrawReward, recipient, wei)
}

// ApproveAction approves action id.
func (b *Binding) ApproveAction(opts *bind.TransactOpts, id uint64) (*types.Transaction, error) {
	return b.transact(opts, MethodApproveAction, new(big.Int).SetUint64(id))
}

// RejectAction rejects action id; any single signer rejection is terminal.
func (b *Binding) RejectAction(opts *bind.TransactOpts, id uint64) (*types.Transaction, error) {
	return b.transact(opts, MethodRejectAction, new(big.Int).SetUint64(id))
}

// ExecuteAction executes a ready action.
func (b *Binding) ExecuteAction(opts *bind.TransactOpts, id uint64) (*types.Transaction, error) {
	return b.transact(opts, MethodExecuteAction, new(big.Int).SetUint64(id))
}

// CleanupExpiredActions prunes expired actions from contract storage.
func (b *Binding) CleanupExpiredActions(opts *bind.TransactOpts) (*types.Transaction, error) {
	return b.transact(opts, MethodCleanupExpired)
}
