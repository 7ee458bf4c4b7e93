package chain

import (
	"context"

	"github.com/ethereum/go-ethereum"
)

// TxKind indexes the fallback gas table. Unknown kinds fall back to
// TxGeneric.
type TxKind string

const (
	TxApprove TxKind = "approve"
	TxStake   TxKind = "stake"
	TxUnstake TxKind = "unstake"
	TxClaim   TxKind = "claim"
	TxGeneric TxKind = "generic"
)

var fallbackGasTable = map[TxKind]uint64{
	TxApprove: 60_000,
	TxStake:   150_000,
	TxUnstake: 120_000,
	TxClaim:   100_000,
	TxGeneric: 200_000,
}

// FallbackGas returns the conservative gas limit for a transaction kind.
func FallbackGas(kind TxKind) uint64 {
	if gas, ok := fallbackGasTable[kind]; ok {
		return gas
	}

	return fallbackGasTable[TxGeneric]
}

// GasEstimate is the result of estimating a transaction's gas. UsedFallback
// is set when estimation failed and the kind-indexed table was used instead.
type GasEstimate struct {
	Gas          uint64
	UsedFallback bool
}

// EstimateGasWithFallback estimates gas for msg; on any estimation failure it
// returns the fallback table value for kind and flags the estimate, letting
// the caller proceed while keeping the degradation observable.
func (mc *MultiClient) EstimateGasWithFallback(ctx context.Context, msg ethereum.CallMsg, kind TxKind) GasEstimate {
	gas, err := mc.EstimateGas(ctx, msg)
	if err != nil {
		mc.lggr.Warnw("gas estimation failed, using fallback",
			"chain", mc.chainName, "kind", kind, "fallback", FallbackGas(kind), "err", err)

		return GasEstimate{Gas: FallbackGas(kind), UsedFallback: true}
	}

	return GasEstimate{Gas: gas}
}
