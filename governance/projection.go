package governance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/liberdus/lp-governance/contract"
	"github.com/liberdus/lp-governance/faults"
	"github.com/liberdus/lp-governance/pkg/logger"
)

// ActionReader is the slice of the contract binding the projection polls.
type ActionReader interface {
	ActionCounter(ctx context.Context) (uint64, error)
	Action(ctx context.Context, id uint64) (contract.Action, error)
	RequiredApprovals(ctx context.Context) (int, error)
}

// ProjectionConfig tunes the reconciliation loop.
type ProjectionConfig struct {
	// WindowSize is how many of the most recent actions are kept live.
	WindowSize uint64
	// TickInterval is the reconciliation period.
	TickInterval time.Duration
}

func (c *ProjectionConfig) applyDefaults() {
	if c.WindowSize == 0 {
		c.WindowSize = 20
	}
	if c.TickInterval == 0 {
		c.TickInterval = 30 * time.Second
	}
}

// Snapshot is the projection's published view. Proposals are ordered by
// descending ID.
type Snapshot struct {
	Proposals []Proposal
	Required  int
	// Stale is set when the last reconciliation could not reach the
	// chain and the snapshot carries last-known data.
	Stale bool
	// UnavailableReason is set when the contract does not expose the
	// governance read surface at all.
	UnavailableReason string
	RefreshedAt       time.Time
}

// Projection maintains the local view of recent on-chain actions.
type Projection struct {
	lggr   logger.Logger
	reader ActionReader
	cfg    ProjectionConfig

	mu         sync.Mutex
	inflight   bool
	pending    bool
	generation uint64
	counter    uint64
	required   int
	proposals  map[uint64]Proposal
	stale      bool
	reason     string
	refreshed  time.Time

	// onFault receives non-transport reconciliation faults, typically
	// wired to the degradation controller.
	onFault func(capability string, err error)

	subscribers []chan Snapshot
}

func NewProjection(lggr logger.Logger, reader ActionReader, cfg ProjectionConfig, onFault func(string, error)) *Projection {
	cfg.applyDefaults()
	if onFault == nil {
		onFault = func(string, error) {}
	}

	return &Projection{
		lggr:      lggr.Named("Projection"),
		reader:    reader,
		cfg:       cfg,
		proposals: map[uint64]Proposal{},
		onFault:   onFault,
	}
}

// Run reconciles once immediately, then on every tick until ctx is done.
func (p *Projection) Run(ctx context.Context) {
	p.Reconcile(ctx)

	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Reconcile(ctx)
		}
	}
}

// Reconcile fetches the action window and merges it into the snapshot.
// With a reconciliation already in flight the call queues exactly one
// follow-up run instead, so a refresh requested after a confirmed send
// always begins after that send's receipt; the later completion wins
// wholesale.
func (p *Projection) Reconcile(ctx context.Context) {
	p.mu.Lock()
	if p.inflight {
		p.pending = true
		p.mu.Unlock()
		return
	}
	p.inflight = true
	p.generation++
	gen := p.generation
	prevCounter := p.counter
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inflight = false
		rerun := p.pending
		p.pending = false
		p.mu.Unlock()
		if rerun {
			p.Reconcile(ctx)
		}
	}()

	counter, err := p.reader.ActionCounter(ctx)
	if err != nil {
		p.recordFailure(contract.MethodActionCounter, err)
		return
	}
	if counter < prevCounter {
		// The counter is append-only on chain. A decrease means the
		// endpoint served data for a different deployment; keep the
		// previous window.
		err := faults.Newf(faults.Invariant, "action counter decreased from %d to %d", prevCounter, counter)
		p.lggr.Errorw("discarding reconciliation", "err", err)
		p.recordFailure(contract.MethodActionCounter, err)
		return
	}

	required, err := p.reader.RequiredApprovals(ctx)
	if err != nil {
		p.recordFailure(contract.MethodRequiredApprovals, err)
		return
	}

	lo := uint64(1)
	if counter > p.cfg.WindowSize {
		lo = counter - p.cfg.WindowSize + 1
	}

	fetched := make(map[uint64]Proposal, counter-lo+1)
	var (
		fetchMu  sync.Mutex
		fetchErr error
		wg       sync.WaitGroup
	)
	for id := lo; id <= counter; id++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()

			action, err := p.reader.Action(ctx, id)
			fetchMu.Lock()
			defer fetchMu.Unlock()
			if err != nil {
				if fetchErr == nil {
					fetchErr = err
				}
				return
			}
			fetched[id] = proposalFromAction(action)
		}(id)
	}
	wg.Wait()

	if fetchErr != nil {
		p.recordFailure(contract.MethodActions, fetchErr)
		return
	}

	p.merge(gen, counter, required, fetched)
}

func (p *Projection) merge(gen, counter uint64, required int, fetched map[uint64]Proposal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		// A newer reconciliation started; its result supersedes ours.
		return
	}

	for id, next := range fetched {
		if prev, ok := p.proposals[id]; ok && prev.StatusAt(p.refreshed, p.required).Terminal() {
			// Terminal outcomes never revert. Fresh reads that claim
			// otherwise are serving inconsistent state.
			if !next.Executed && prev.Executed || !next.Rejected && prev.Rejected {
				p.lggr.Warnw("ignoring non-terminal read for terminal proposal", "id", id)
				continue
			}
		}
		p.proposals[id] = next
	}
	// Evict everything that fell out of the window.
	for id := range p.proposals {
		if _, ok := fetched[id]; !ok {
			delete(p.proposals, id)
		}
	}

	p.counter = counter
	p.required = required
	p.stale = false
	p.reason = ""
	p.refreshed = time.Now()

	p.notifyLocked()
}

// Subscribe returns a channel that conflates snapshots: a slow consumer
// always sees the latest state, never a backlog.
func (p *Projection) Subscribe() <-chan Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Snapshot, 1)
	p.subscribers = append(p.subscribers, ch)

	return ch
}

func (p *Projection) notifyLocked() {
	snap := p.snapshotLocked()
	for _, ch := range p.subscribers {
		select {
		case ch <- snap:
		default:
			// Replace the pending snapshot with the fresh one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (p *Projection) recordFailure(capability string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case faults.Is(err, faults.MethodUnavailable), faults.Is(err, faults.NotDeployed):
		p.reason = "governance features are not available"
		p.onFault(capability, err)
	case faults.Is(err, faults.Invariant):
		// Counter anomalies are logged at the call site; the previous
		// window stays published untouched.
		return
	default:
		// Transport trouble. Keep last-known data and mark it stale.
		p.stale = true
		p.lggr.Warnw("reconciliation failed, snapshot is stale", "err", err)
	}

	p.notifyLocked()
}

// Snapshot returns the current projection, proposals newest first.
func (p *Projection) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.snapshotLocked()
}

func (p *Projection) snapshotLocked() Snapshot {
	proposals := make([]Proposal, 0, len(p.proposals))
	for _, proposal := range p.proposals {
		proposals = append(proposals, proposal)
	}
	sort.Slice(proposals, func(i, j int) bool { return proposals[i].ID > proposals[j].ID })

	return Snapshot{
		Proposals:         proposals,
		Required:          p.required,
		Stale:             p.stale,
		UnavailableReason: p.reason,
		RefreshedAt:       p.refreshed,
	}
}

// Proposal returns one proposal from the window by ID.
func (p *Projection) Proposal(id uint64) (Proposal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	proposal, ok := p.proposals[id]

	return proposal, ok
}
