package governance

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liberdus/lp-governance/chain"
	"github.com/liberdus/lp-governance/contract"
	"github.com/liberdus/lp-governance/faults"
	"github.com/liberdus/lp-governance/pkg/logger"
)

// Config assembles a coordinator.
type Config struct {
	// Endpoints are the candidate RPC URLs, in preference order.
	Endpoints []string
	// ChainID is the expected chain, e.g. 80002 for Polygon Amoy.
	ChainID uint64
	// ContractAddress is the staking contract.
	ContractAddress string
	// AdminAllowList short-circuits the on-chain admin check for these
	// addresses.
	AdminAllowList []string
	// ExplorerBase is the block explorer prefix for transaction links.
	ExplorerBase string
	// MinHealthy is the startup probe target; zero uses the chain default.
	MinHealthy int
	// Timeouts overrides the per-call RPC budgets; zero uses the defaults.
	Timeouts chain.Timeouts
	// Projection tunes the reconciliation loop.
	Projection ProjectionConfig
}

// Coordinator owns the full governance stack for one wallet session.
type Coordinator struct {
	lggr     logger.Logger
	cfg      Config
	client   *chain.MultiClient
	binding  *contract.Binding
	signers  *signerCache
	oracle   *Oracle
	degr     *Degradation
	project  *Projection
	executor *Executor
	session  WalletSession
}

// NewCoordinator dials the chain, binds the contract and wires the
// governance components. It fails when no healthy endpoint exists; a
// contract address without code starts the session degraded instead,
// with every capability disabled and only endpoint diagnostics live.
func NewCoordinator(ctx context.Context, lggr logger.Logger, cfg Config, session WalletSession) (*Coordinator, error) {
	lggr = lggr.Named("Coordinator")

	degr := NewDegradation(lggr)

	client, err := chain.NewMultiClient(ctx, lggr, chain.Config{
		URLs:       cfg.Endpoints,
		ChainID:    cfg.ChainID,
		MinHealthy: cfg.MinHealthy,
		Timeouts:   cfg.Timeouts,
	}, chain.WithHealthListener(degr.SetEndpointHealth))
	if err != nil {
		return nil, err
	}

	address, err := contract.ParseAddress(cfg.ContractAddress)
	if err != nil {
		return nil, err
	}
	binding, err := contract.NewBinding(ctx, lggr, client, address)
	if err != nil {
		if binding == nil || !faults.Is(err, faults.NotDeployed) {
			return nil, err
		}
		degr.Observe(CapGovernanceWrite, err)
	}

	signers := newSignerCache(binding)
	oracle := NewOracle(lggr, binding, signers, cfg.AdminAllowList)
	project := NewProjection(lggr, binding, cfg.Projection, degr.Observe)

	c := &Coordinator{
		lggr:    lggr,
		cfg:     cfg,
		client:  client,
		binding: binding,
		signers: signers,
		oracle:  oracle,
		degr:    degr,
		project: project,
		session: session,
	}
	c.executor = NewExecutor(lggr, client, binding, oracle, degr, session, signers, func() {
		c.project.Reconcile(context.WithoutCancel(ctx))
	})

	if session.ChainID() != cfg.ChainID {
		degr.DisableWrites("wallet is connected to the wrong network")
	}

	return c, nil
}

// Run starts the projection loop, the executor and the wallet event loop,
// blocking until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	go c.project.Run(ctx)
	go c.executor.Run(ctx)

	c.watchWallet(ctx)
}

// watchWallet reacts to wallet-side changes. An account switch drops all
// authorization state; a network switch away from the configured chain
// disables writes until the wallet returns.
func (c *Coordinator) watchWallet(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case addr := <-c.session.AddressChanges():
			c.lggr.Infow("wallet account changed", "address", addr.Hex())
			c.oracle.Invalidate()
			c.signers.Invalidate()
		case chainID := <-c.session.ChainChanges():
			if chainID != c.cfg.ChainID {
				c.lggr.Warnw("wallet switched to the wrong network", "got", chainID, "want", c.cfg.ChainID)
				c.degr.DisableWrites("wallet is connected to the wrong network")
			} else {
				c.lggr.Infow("wallet back on the configured network", "chainID", chainID)
				c.degr.EnableWrites()
			}
		case <-c.session.Disconnects():
			c.lggr.Warn("wallet disconnected, writes disabled")
			c.degr.DisableWrites("wallet disconnected")
		}
	}
}

// Proposals returns the current projection snapshot.
func (c *Coordinator) Proposals() Snapshot { return c.project.Snapshot() }

// Proposal returns one proposal from the window.
func (c *Coordinator) Proposal(id uint64) (Proposal, bool) { return c.project.Proposal(id) }

// Subscribe returns a conflating stream of projection snapshots, one per
// reconciliation outcome.
func (c *Coordinator) Subscribe() <-chan Snapshot { return c.project.Subscribe() }

// Refresh forces an immediate reconciliation.
func (c *Coordinator) Refresh(ctx context.Context) { c.project.Reconcile(ctx) }

// Signers returns the current governance membership.
func (c *Coordinator) Signers(ctx context.Context) (SignerSet, error) { return c.signers.Get(ctx) }

// Capability reports whether a capability is currently usable.
func (c *Coordinator) Capability(name string) CapabilityStatus { return c.degr.Capability(name) }

// Endpoints reports the probe state of every configured endpoint.
func (c *Coordinator) Endpoints() []chain.Endpoint { return c.client.Endpoints() }

// ExplorerURL returns the explorer link for a transaction hash.
func (c *Coordinator) ExplorerURL(hash common.Hash) string {
	return chain.ExplorerTxURL(c.cfg.ExplorerBase, hash)
}

// Propose submits a new governance proposal.
func (c *Coordinator) Propose(ctx context.Context, payload contract.Payload) Result {
	return c.executor.Submit(ctx, Command{Op: OpPropose, Payload: payload})
}

// Approve approves proposal id with the connected signer.
func (c *Coordinator) Approve(ctx context.Context, id uint64) Result {
	return c.executor.Submit(ctx, Command{Op: OpApprove, ProposalID: id})
}

// Reject rejects proposal id. A single rejection is terminal.
func (c *Coordinator) Reject(ctx context.Context, id uint64) Result {
	return c.executor.Submit(ctx, Command{Op: OpReject, ProposalID: id})
}

// Execute executes a proposal that reached its approval threshold.
func (c *Coordinator) Execute(ctx context.Context, id uint64) Result {
	return c.executor.Submit(ctx, Command{Op: OpExecute, ProposalID: id})
}

// Cleanup prunes expired actions from contract storage.
func (c *Coordinator) Cleanup(ctx context.Context) Result {
	return c.executor.Submit(ctx, Command{Op: OpCleanup})
}
