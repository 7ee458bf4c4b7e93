package governance

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Signer is an address holding governance privileges.
type Signer struct {
	Address     common.Address
	DisplayHint string
}

// SignerSet is the current governance membership with its approval
// threshold. Membership changes only through a ChangeSigner proposal.
type SignerSet struct {
	Signers           []Signer
	RequiredApprovals int
}

// Contains reports whether addr is a member of the set.
func (s SignerSet) Contains(addr common.Address) bool {
	for _, signer := range s.Signers {
		if signer.Address == addr {
			return true
		}
	}

	return false
}

// SignerSource reads governance membership from the contract.
type SignerSource interface {
	Signers(ctx context.Context) ([]common.Address, error)
	RequiredApprovals(ctx context.Context) (int, error)
}

const signerRefreshInterval = 5 * time.Minute

// signerCache is the lazily refreshed SignerSet snapshot owned by the
// binding side of the coordinator.
type signerCache struct {
	source SignerSource
	now    func() time.Time

	mu        sync.Mutex
	snapshot  SignerSet
	fetchedAt time.Time
}

func newSignerCache(source SignerSource) *signerCache {
	return &signerCache{source: source, now: time.Now}
}

// Get returns the cached SignerSet, refreshing it when the snapshot is
// older than the refresh interval. A refresh failure with a usable snapshot
// falls back to the snapshot.
func (c *signerCache) Get(ctx context.Context) (SignerSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < signerRefreshInterval {
		return c.snapshot, nil
	}

	addrs, err := c.source.Signers(ctx)
	if err != nil {
		if !c.fetchedAt.IsZero() {
			return c.snapshot, nil
		}

		return SignerSet{}, err
	}
	required, err := c.source.RequiredApprovals(ctx)
	if err != nil {
		if !c.fetchedAt.IsZero() {
			return c.snapshot, nil
		}

		return SignerSet{}, err
	}

	signers := make([]Signer, len(addrs))
	for i, addr := range addrs {
		signers[i] = Signer{Address: addr}
	}
	c.snapshot = SignerSet{Signers: signers, RequiredApprovals: required}
	c.fetchedAt = c.now()

	return c.snapshot, nil
}

// Invalidate drops the snapshot so the next Get refetches.
func (c *signerCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}
