package governance

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberdus/lp-governance/contract"
	"github.com/liberdus/lp-governance/faults"
)

type fakePairReader struct {
	pairs []common.Address
	err   error
}

func (f *fakePairReader) Pairs(_ context.Context) ([]common.Address, error) {
	return f.pairs, f.err
}

var lpToken = common.HexToAddress("0x4444444444444444444444444444444444444444")

func Test_validatePayload_AddPair(t *testing.T) {
	t.Parallel()

	valid := contract.AddPair{
		LPToken:  lpToken,
		Name:     "LIB-USDT",
		Platform: "Uniswap V2",
		Weight:   100,
	}

	tests := []struct {
		name    string
		mutate  func(p *contract.AddPair)
		wantErr string
	}{
		{
			name: "valid",
		},
		{
			name: "placeholder address",
			mutate: func(p *contract.AddPair) {
				p.LPToken = common.HexToAddress("0x1234567890123456789012345678901234567890")
			},
			wantErr: "placeholder",
		},
		{
			name: "zero address",
			mutate: func(p *contract.AddPair) {
				p.LPToken = common.Address{}
			},
			wantErr: "zero address",
		},
		{
			name: "name too short",
			mutate: func(p *contract.AddPair) {
				p.Name = "X"
			},
			wantErr: "2 to 50 characters",
		},
		{
			name: "name too long",
			mutate: func(p *contract.AddPair) {
				p.Name = strings.Repeat("a", 51)
			},
			wantErr: "2 to 50 characters",
		},
		{
			name: "name at max length",
			mutate: func(p *contract.AddPair) {
				p.Name = strings.Repeat("a", 50)
			},
		},
		{
			name: "unknown platform",
			mutate: func(p *contract.AddPair) {
				p.Platform = "PancakeSwap"
			},
			wantErr: "unknown platform",
		},
		{
			name: "other platform accepted",
			mutate: func(p *contract.AddPair) {
				p.Platform = "Other"
			},
		},
		{
			name: "quickswap accepted",
			mutate: func(p *contract.AddPair) {
				p.Platform = "QuickSwap"
			},
		},
		{
			name: "weight zero",
			mutate: func(p *contract.AddPair) {
				p.Weight = 0
			},
			wantErr: "weight must be 1 to 10000",
		},
		{
			name: "weight above maximum",
			mutate: func(p *contract.AddPair) {
				p.Weight = 10_001
			},
			wantErr: "weight must be 1 to 10000",
		},
		{
			name: "weight at maximum",
			mutate: func(p *contract.AddPair) {
				p.Weight = 10_000
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := valid
			if tt.mutate != nil {
				tt.mutate(&p)
			}

			err := validatePayload(context.Background(), &fakePairReader{}, newSignerCache(&fakeSignerSource{}), p)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, faults.Is(err, faults.Invariant))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func Test_validatePayload_UpdatePairWeights(t *testing.T) {
	t.Parallel()

	pairs := &fakePairReader{pairs: []common.Address{lpToken}}
	cache := newSignerCache(&fakeSignerSource{})

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		err := validatePayload(context.Background(), pairs, cache, contract.UpdatePairWeights{
			Pairs:   []common.Address{lpToken},
			Weights: []uint64{500},
		})
		require.NoError(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		err := validatePayload(context.Background(), pairs, cache, contract.UpdatePairWeights{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one pair")
	})

	t.Run("length mismatch", func(t *testing.T) {
		t.Parallel()

		err := validatePayload(context.Background(), pairs, cache, contract.UpdatePairWeights{
			Pairs:   []common.Address{lpToken},
			Weights: []uint64{500, 600},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "length mismatch")
	})

	t.Run("inactive pair", func(t *testing.T) {
		t.Parallel()

		err := validatePayload(context.Background(), pairs, cache, contract.UpdatePairWeights{
			Pairs:   []common.Address{signerA},
			Weights: []uint64{500},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not active")
	})

	t.Run("weight out of range", func(t *testing.T) {
		t.Parallel()

		err := validatePayload(context.Background(), pairs, cache, contract.UpdatePairWeights{
			Pairs:   []common.Address{lpToken},
			Weights: []uint64{10_001},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "weight must be 1 to 10000")
	})
}

func Test_validatePayload_ChangeSigner(t *testing.T) {
	t.Parallel()

	cache := newSignerCache(&fakeSignerSource{
		signers:  []common.Address{signerA, signerB},
		required: 2,
	})
	pairs := &fakePairReader{}

	tests := []struct {
		name    string
		payload contract.ChangeSigner
		wantErr string
	}{
		{
			name:    "valid",
			payload: contract.ChangeSigner{Old: signerA, New: signerC},
		},
		{
			name:    "zero new signer",
			payload: contract.ChangeSigner{Old: signerA},
			wantErr: "zero address",
		},
		{
			name:    "same old and new",
			payload: contract.ChangeSigner{Old: signerA, New: signerA},
			wantErr: "must differ",
		},
		{
			name:    "old signer not a member",
			payload: contract.ChangeSigner{Old: signerC, New: lpToken},
			wantErr: "not in the signer set",
		},
		{
			name:    "new signer already a member",
			payload: contract.ChangeSigner{Old: signerA, New: signerB},
			wantErr: "already in the signer set",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validatePayload(context.Background(), pairs, cache, tt.payload)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func Test_validatePayload_Amounts(t *testing.T) {
	t.Parallel()

	pairs := &fakePairReader{}
	cache := newSignerCache(&fakeSignerSource{})

	t.Run("zero reward rate", func(t *testing.T) {
		t.Parallel()

		err := validatePayload(context.Background(), pairs, cache, contract.SetHourlyRewardRate{Rate: "0"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	})

	t.Run("fractional reward rate accepted", func(t *testing.T) {
		t.Parallel()

		err := validatePayload(context.Background(), pairs, cache, contract.SetHourlyRewardRate{Rate: "0.5"})
		require.NoError(t, err)
	})

	t.Run("withdrawal to zero recipient", func(t *testing.T) {
		t.Parallel()

		err := validatePayload(context.Background(), pairs, cache, contract.WithdrawRewards{Amount: "1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "zero address")
	})

	t.Run("zero withdrawal amount", func(t *testing.T) {
		t.Parallel()

		err := validatePayload(context.Background(), pairs, cache, contract.WithdrawRewards{
			Recipient: signerA,
			Amount:    "0",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	})
}

func Test_validatePayload_RemovePair(t *testing.T) {
	t.Parallel()

	pairs := &fakePairReader{pairs: []common.Address{lpToken}}
	cache := newSignerCache(&fakeSignerSource{})

	require.NoError(t, validatePayload(context.Background(), pairs, cache, contract.RemovePair{LPToken: lpToken}))

	err := validatePayload(context.Background(), pairs, cache, contract.RemovePair{LPToken: signerA})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}
