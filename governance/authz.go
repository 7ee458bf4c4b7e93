package governance

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liberdus/lp-governance/contract"
	"github.com/liberdus/lp-governance/faults"
	"github.com/liberdus/lp-governance/pkg/logger"
)

// adminCacheTTL bounds how long a positive admin verdict is reused before
// the chain is consulted again. Denials are never cached.
const adminCacheTTL = 60 * time.Second

// RoleReader is the slice of the contract binding the oracle needs.
type RoleReader interface {
	HasRole(ctx context.Context, role [32]byte, account common.Address) (bool, error)
	Owner(ctx context.Context) (common.Address, error)
}

type adminVerdict struct {
	at time.Time
}

// Oracle decides whether a wallet address may propose and approve
// governance actions.
type Oracle struct {
	lggr      logger.Logger
	reader    RoleReader
	signers   *signerCache
	allowList map[string]struct{}

	mu    sync.Mutex
	cache map[common.Address]adminVerdict
	now   func() time.Time
}

func NewOracle(lggr logger.Logger, reader RoleReader, signers *signerCache, allowList []string) *Oracle {
	lggr = lggr.Named("Oracle")
	allow := make(map[string]struct{}, len(allowList))
	for _, entry := range allowList {
		addr, err := contract.ParseAddress(entry)
		if err != nil {
			lggr.Warnw("ignoring invalid allow-list entry", "entry", entry, "err", err)
			continue
		}
		allow[contract.NormalizeAddress(addr)] = struct{}{}
	}

	return &Oracle{
		lggr:      lggr,
		reader:    reader,
		signers:   signers,
		allowList: allow,
		cache:     map[common.Address]adminVerdict{},
		now:       time.Now,
	}
}

// MayPropose reports whether account holds admin rights on the contract.
// The allow-list short-circuits the chain; otherwise hasRole(ADMIN_ROLE)
// decides, with owner() as fallback when the role method does not exist.
func (o *Oracle) MayPropose(ctx context.Context, account common.Address) (bool, error) {
	if o.allowed(account) {
		return true, nil
	}

	return o.isAdmin(ctx, account)
}

// MayApprove reports whether account may approve, reject or execute
// actions. The allow-list wins outright; otherwise membership in the
// current signer set decides, with the admin check as a last resort.
func (o *Oracle) MayApprove(ctx context.Context, account common.Address) (bool, error) {
	if o.allowed(account) {
		return true, nil
	}

	set, err := o.signers.Get(ctx)
	if err != nil {
		return false, err
	}
	if set.Contains(account) {
		return true, nil
	}

	return o.isAdmin(ctx, account)
}

func (o *Oracle) allowed(account common.Address) bool {
	_, ok := o.allowList[contract.NormalizeAddress(account)]

	return ok
}

func (o *Oracle) isAdmin(ctx context.Context, account common.Address) (bool, error) {
	o.mu.Lock()
	if verdict, ok := o.cache[account]; ok && o.now().Sub(verdict.at) < adminCacheTTL {
		o.mu.Unlock()
		return true, nil
	}
	o.mu.Unlock()

	ok, err := o.reader.HasRole(ctx, contract.AdminRole, account)
	switch {
	case err == nil:
		if ok {
			o.remember(account)
		}
		return ok, nil
	case faults.Is(err, faults.MethodUnavailable):
		// Ownable contracts without AccessControl still have an owner.
		owner, ownerErr := o.reader.Owner(ctx)
		if ownerErr != nil {
			if faults.Is(ownerErr, faults.MethodUnavailable) {
				o.lggr.Warnw("no role or owner method on contract, denying", "account", account)
				return false, nil
			}
			return false, ownerErr
		}
		if owner == account {
			o.remember(account)
			return true, nil
		}
		return false, nil
	default:
		return false, err
	}
}

// Invalidate drops all cached verdicts. Called when the connected wallet
// changes.
func (o *Oracle) Invalidate() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cache = map[common.Address]adminVerdict{}
}

func (o *Oracle) remember(account common.Address) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cache[account] = adminVerdict{at: o.now()}
}
