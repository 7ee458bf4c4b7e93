package governance

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberdus/lp-governance/contract"
	"github.com/liberdus/lp-governance/faults"
	"github.com/liberdus/lp-governance/pkg/logger"
)

type fakeRoleReader struct {
	hasRole      bool
	hasRoleErr   error
	hasRoleCalls int
	owner        common.Address
	ownerErr     error
	ownerCalls   int
}

func (f *fakeRoleReader) HasRole(_ context.Context, _ [32]byte, _ common.Address) (bool, error) {
	f.hasRoleCalls++
	return f.hasRole, f.hasRoleErr
}

func (f *fakeRoleReader) Owner(_ context.Context) (common.Address, error) {
	f.ownerCalls++
	return f.owner, f.ownerErr
}

type fakeSignerSource struct {
	signers  []common.Address
	required int
	err      error
}

func (f *fakeSignerSource) Signers(_ context.Context) ([]common.Address, error) {
	return f.signers, f.err
}

func (f *fakeSignerSource) RequiredApprovals(_ context.Context) (int, error) {
	return f.required, f.err
}

func Test_Oracle_AllowListSkipsChain(t *testing.T) {
	t.Parallel()

	reader := &fakeRoleReader{}
	o := NewOracle(logger.Test(t), reader, newSignerCache(&fakeSignerSource{}), []string{signerA.Hex()})

	ok, err := o.MayPropose(context.Background(), signerA)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, reader.hasRoleCalls)
}

func Test_Oracle_HasRoleVerdictCached(t *testing.T) {
	t.Parallel()

	reader := &fakeRoleReader{hasRole: true}
	o := NewOracle(logger.Test(t), reader, newSignerCache(&fakeSignerSource{}), nil)

	for i := 0; i < 3; i++ {
		ok, err := o.MayPropose(context.Background(), signerB)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 1, reader.hasRoleCalls)
}

func Test_Oracle_DenialNotCached(t *testing.T) {
	t.Parallel()

	reader := &fakeRoleReader{hasRole: false}
	o := NewOracle(logger.Test(t), reader, newSignerCache(&fakeSignerSource{}), nil)

	for i := 0; i < 2; i++ {
		ok, err := o.MayPropose(context.Background(), signerB)
		require.NoError(t, err)
		require.False(t, ok)
	}
	assert.Equal(t, 2, reader.hasRoleCalls)
}

func Test_Oracle_CacheExpires(t *testing.T) {
	t.Parallel()

	reader := &fakeRoleReader{hasRole: true}
	o := NewOracle(logger.Test(t), reader, newSignerCache(&fakeSignerSource{}), nil)

	now := time.Now()
	o.now = func() time.Time { return now }

	_, err := o.MayPropose(context.Background(), signerB)
	require.NoError(t, err)

	now = now.Add(adminCacheTTL + time.Second)

	_, err = o.MayPropose(context.Background(), signerB)
	require.NoError(t, err)
	assert.Equal(t, 2, reader.hasRoleCalls)
}

func Test_Oracle_OwnerFallback(t *testing.T) {
	t.Parallel()

	t.Run("owner matches", func(t *testing.T) {
		t.Parallel()

		reader := &fakeRoleReader{
			hasRoleErr: faults.New(faults.MethodUnavailable, "method not found"),
			owner:      signerB,
		}
		o := NewOracle(logger.Test(t), reader, newSignerCache(&fakeSignerSource{}), nil)

		ok, err := o.MayPropose(context.Background(), signerB)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, reader.ownerCalls)
	})

	t.Run("owner differs", func(t *testing.T) {
		t.Parallel()

		reader := &fakeRoleReader{
			hasRoleErr: faults.New(faults.MethodUnavailable, "method not found"),
			owner:      signerC,
		}
		o := NewOracle(logger.Test(t), reader, newSignerCache(&fakeSignerSource{}), nil)

		ok, err := o.MayPropose(context.Background(), signerB)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("neither method exists denies without error", func(t *testing.T) {
		t.Parallel()

		reader := &fakeRoleReader{
			hasRoleErr: faults.New(faults.MethodUnavailable, "method not found"),
			ownerErr:   faults.New(faults.MethodUnavailable, "method not found"),
		}
		o := NewOracle(logger.Test(t), reader, newSignerCache(&fakeSignerSource{}), nil)

		ok, err := o.MayPropose(context.Background(), signerB)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("transport error surfaces", func(t *testing.T) {
		t.Parallel()

		reader := &fakeRoleReader{
			hasRoleErr: faults.New(faults.Transport, "connection refused"),
		}
		o := NewOracle(logger.Test(t), reader, newSignerCache(&fakeSignerSource{}), nil)

		_, err := o.MayPropose(context.Background(), signerB)
		require.Error(t, err)
		assert.True(t, faults.Is(err, faults.Transport))
		assert.Zero(t, reader.ownerCalls)
	})
}

func Test_Oracle_Invalidate(t *testing.T) {
	t.Parallel()

	reader := &fakeRoleReader{hasRole: true}
	o := NewOracle(logger.Test(t), reader, newSignerCache(&fakeSignerSource{}), nil)

	_, err := o.MayPropose(context.Background(), signerB)
	require.NoError(t, err)

	o.Invalidate()

	_, err = o.MayPropose(context.Background(), signerB)
	require.NoError(t, err)
	assert.Equal(t, 2, reader.hasRoleCalls)
}

func Test_Oracle_MayApprove(t *testing.T) {
	t.Parallel()

	cache := newSignerCache(&fakeSignerSource{
		signers:  []common.Address{signerA, signerB},
		required: 2,
	})
	o := NewOracle(logger.Test(t), &fakeRoleReader{}, cache, nil)

	ok, err := o.MayApprove(context.Background(), signerA)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = o.MayApprove(context.Background(), signerC)
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Oracle_AllowListGrantsApprove(t *testing.T) {
	t.Parallel()

	// An allow-listed operator may approve even outside the signer set,
	// and without any chain round-trip.
	reader := &fakeRoleReader{}
	cache := newSignerCache(&fakeSignerSource{
		signers:  []common.Address{signerA, signerB},
		required: 2,
	})
	o := NewOracle(logger.Test(t), reader, cache, []string{contract.NormalizeAddress(signerC)})

	ok, err := o.MayApprove(context.Background(), signerC)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, reader.hasRoleCalls)
	assert.Zero(t, reader.ownerCalls)
}

func Test_Oracle_AdminMayApprove(t *testing.T) {
	t.Parallel()

	// Admin rights cover approvals for accounts outside the signer set.
	reader := &fakeRoleReader{hasRole: true}
	cache := newSignerCache(&fakeSignerSource{
		signers: []common.Address{signerA, signerB},
	})
	o := NewOracle(logger.Test(t), reader, cache, nil)

	ok, err := o.MayApprove(context.Background(), signerC)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, reader.hasRoleCalls)
}

func Test_Oracle_InvalidAllowListEntriesIgnored(t *testing.T) {
	t.Parallel()

	o := NewOracle(logger.Test(t), &fakeRoleReader{}, newSignerCache(&fakeSignerSource{}),
		[]string{"not-an-address", contract.NormalizeAddress(signerA)})

	ok, err := o.MayPropose(context.Background(), signerA)
	require.NoError(t, err)
	assert.True(t, ok)
}
