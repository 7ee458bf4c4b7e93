package governance

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberdus/lp-governance/faults"
)

func Test_signerCache_RefreshAndFallback(t *testing.T) {
	t.Parallel()

	source := &fakeSignerSource{
		signers:  []common.Address{signerA, signerB},
		required: 2,
	}
	cache := newSignerCache(source)

	set, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, set.Signers, 2)
	assert.Equal(t, 2, set.RequiredApprovals)
	assert.True(t, set.Contains(signerA))
	assert.False(t, set.Contains(signerC))

	// Within the refresh interval the snapshot is reused even when the
	// source breaks.
	source.err = faults.New(faults.Transport, "connection refused")
	set, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, set.Signers, 2)

	// After expiry the failed refresh still falls back to the snapshot.
	cache.now = func() time.Time { return time.Now().Add(signerRefreshInterval + time.Minute) }
	set, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, set.Signers, 2)
}

func Test_signerCache_FirstFetchFailureSurfaces(t *testing.T) {
	t.Parallel()

	cache := newSignerCache(&fakeSignerSource{err: faults.New(faults.Transport, "connection refused")})

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.True(t, faults.Is(err, faults.Transport))
}

func Test_signerCache_InvalidateForcesRefetch(t *testing.T) {
	t.Parallel()

	source := &fakeSignerSource{signers: []common.Address{signerA}, required: 1}
	cache := newSignerCache(source)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	source.signers = []common.Address{signerA, signerB}
	cache.Invalidate()

	set, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, set.Signers, 2)
}
