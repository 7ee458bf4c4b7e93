package governance

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liberdus/lp-governance/contract"
	"github.com/liberdus/lp-governance/faults"
)

// knownPlatforms are the platform labels accepted for new pairs. Anything
// else must be submitted as "Other".
var knownPlatforms = map[string]struct{}{
	"Uniswap V2": {},
	"Uniswap V3": {},
	"SushiSwap":  {},
	"QuickSwap":  {},
	"Other":      {},
}

const (
	minPairNameLen = 2
	maxPairNameLen = 50
	minPairWeight  = 1
	maxPairWeight  = 10_000
)

// PairReader is the slice of the contract binding validation needs for
// pair-level checks.
type PairReader interface {
	Pairs(ctx context.Context) ([]common.Address, error)
}

// validatePayload runs the per-kind pre-submit checks. Failures are
// Invariant faults and never reach the chain.
func validatePayload(ctx context.Context, pairs PairReader, signers *signerCache, payload contract.Payload) error {
	switch p := payload.(type) {
	case contract.SetHourlyRewardRate:
		return validateRate(p.Rate)
	case contract.UpdatePairWeights:
		return validateWeightUpdate(ctx, pairs, p)
	case contract.AddPair:
		return validateAddPair(p)
	case contract.RemovePair:
		return validateRemovePair(ctx, pairs, p)
	case contract.ChangeSigner:
		return validateChangeSigner(ctx, signers, p)
	case contract.WithdrawRewards:
		return validateWithdraw(p)
	default:
		return faults.Newf(faults.Invariant, "unsupported payload type %T", payload)
	}
}

func validateRate(rate string) error {
	wei, err := contract.DecimalToWei(rate)
	if err != nil {
		return err
	}
	if wei.Sign() <= 0 {
		return faults.New(faults.Invariant, "reward rate must be positive")
	}

	return nil
}

func validateAddPair(p contract.AddPair) error {
	addr, err := contract.ParseAddress(p.LPToken.Hex())
	if err != nil {
		return err
	}
	if contract.IsPlaceholder(addr) {
		return faults.New(faults.Invariant, "LP token address is a placeholder")
	}
	if n := len(p.Name); n < minPairNameLen || n > maxPairNameLen {
		return faults.Newf(faults.Invariant, "pair name must be %d to %d characters", minPairNameLen, maxPairNameLen)
	}
	if _, ok := knownPlatforms[p.Platform]; !ok {
		return faults.Newf(faults.Invariant, "unknown platform %q", p.Platform)
	}
	if p.Weight < minPairWeight || p.Weight > maxPairWeight {
		return faults.Newf(faults.Invariant, "pair weight must be %d to %d", minPairWeight, maxPairWeight)
	}

	return nil
}

func validateWeightUpdate(ctx context.Context, pairs PairReader, p contract.UpdatePairWeights) error {
	if len(p.Pairs) == 0 {
		return faults.New(faults.Invariant, "weight update needs at least one pair")
	}
	if len(p.Pairs) != len(p.Weights) {
		return faults.New(faults.Invariant, "pairs and weights length mismatch")
	}
	for _, w := range p.Weights {
		if w < minPairWeight || w > maxPairWeight {
			return faults.Newf(faults.Invariant, "pair weight must be %d to %d", minPairWeight, maxPairWeight)
		}
	}

	active, err := pairs.Pairs(ctx)
	if err != nil {
		return err
	}
	activeSet := make(map[common.Address]struct{}, len(active))
	for _, a := range active {
		activeSet[a] = struct{}{}
	}
	for _, pair := range p.Pairs {
		if _, ok := activeSet[pair]; !ok {
			return faults.Newf(faults.Invariant, "pair %s is not active", pair.Hex())
		}
	}

	return nil
}

func validateRemovePair(ctx context.Context, pairs PairReader, p contract.RemovePair) error {
	active, err := pairs.Pairs(ctx)
	if err != nil {
		return err
	}
	for _, a := range active {
		if a == p.LPToken {
			return nil
		}
	}

	return faults.Newf(faults.Invariant, "pair %s is not active", p.LPToken.Hex())
}

func validateChangeSigner(ctx context.Context, signers *signerCache, p contract.ChangeSigner) error {
	if p.New == (common.Address{}) {
		return faults.New(faults.Invariant, "new signer must not be the zero address")
	}
	if p.New == p.Old {
		return faults.New(faults.Invariant, "new signer must differ from old signer")
	}

	set, err := signers.Get(ctx)
	if err != nil {
		return err
	}
	if !set.Contains(p.Old) {
		return faults.Newf(faults.Invariant, "old signer %s is not in the signer set", p.Old.Hex())
	}
	if set.Contains(p.New) {
		return faults.Newf(faults.Invariant, "new signer %s is already in the signer set", p.New.Hex())
	}

	return nil
}

func validateWithdraw(p contract.WithdrawRewards) error {
	if p.Recipient == (common.Address{}) {
		return faults.New(faults.Invariant, "recipient must not be the zero address")
	}
	wei, err := contract.DecimalToWei(p.Amount)
	if err != nil {
		return err
	}
	if wei.Sign() <= 0 {
		return faults.New(faults.Invariant, "withdrawal amount must be positive")
	}

	return nil
}
