// Package chain implements the chain client adapter: a single read/write
// channel to one EVM chain of known id, hiding endpoint multiplicity,
// timeouts and transient RPC faults behind ordered failover.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/liberdus/lp-governance/faults"
	"github.com/liberdus/lp-governance/pkg/logger"
)

const (
	// DefaultProbeTimeout bounds the network-id probe.
	DefaultProbeTimeout = 8 * time.Second
	// DefaultCallTimeout bounds every read and write RPC.
	DefaultCallTimeout = 15 * time.Second
	// DefaultBlockNumberTimeout bounds the block-number half of a probe.
	DefaultBlockNumberTimeout = 5 * time.Second

	// DefaultRetryAttempts is the failover budget K for retryable reads.
	DefaultRetryAttempts = 3
	// DefaultRetryBaseDelay seeds the exponential backoff (base 2).
	DefaultRetryBaseDelay = 1 * time.Second

	// DefaultMinHealthy is how many healthy endpoints startup probing aims
	// for before it stops early.
	DefaultMinHealthy = 3
)

// Timeouts are the per-call budgets for the adapter.
type Timeouts struct {
	Probe       time.Duration
	Call        time.Duration
	BlockNumber time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Probe:       DefaultProbeTimeout,
		Call:        DefaultCallTimeout,
		BlockNumber: DefaultBlockNumberTimeout,
	}
}

// RetryConfig controls retryable-read failover.
type RetryConfig struct {
	Attempts  uint
	BaseDelay time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: DefaultRetryAttempts, BaseDelay: DefaultRetryBaseDelay}
}

// Config configures a MultiClient. The adapter does not read environment
// variables; everything arrives here.
type Config struct {
	// URLs is the ordered endpoint list. Order is the failover order.
	URLs []string
	// ChainID is the expected EVM chain id. Endpoints answering a
	// different id are marked down for the session.
	ChainID uint64
	// MinHealthy is the startup probing target; zero means the default.
	MinHealthy int

	Timeouts Timeouts
	Retry    RetryConfig
}

// MultiClient satisfies the contract-binding backends so the binding layer
// can sit directly on top of it.
var (
	_ bind.ContractBackend = &MultiClient{}
	_ bind.DeployBackend   = &MultiClient{}
)

// MultiClient presents one reliable channel to the chain. The current
// endpoint index only moves forward on failure; it wraps around through a
// fresh probe cycle when all later endpoints are down too.
type MultiClient struct {
	lggr      logger.Logger
	chainID   uint64
	chainName string
	timeouts  Timeouts
	retry     RetryConfig
	minOK     int

	mu        sync.RWMutex
	endpoints []*Endpoint
	current   int // -1 when no endpoint is healthy

	// onHealth, when set, is told whether any healthy endpoint exists
	// after every probe cycle. The degradation controller hangs off this.
	onHealth func(healthy bool)
}

// Option configures a MultiClient.
type Option func(*MultiClient)

// WithTimeouts overrides the per-call budgets.
func WithTimeouts(t Timeouts) Option {
	return func(mc *MultiClient) { mc.timeouts = t }
}

// WithRetryConfig overrides the failover retry budget.
func WithRetryConfig(r RetryConfig) Option {
	return func(mc *MultiClient) { mc.retry = r }
}

// WithHealthListener registers a callback invoked after every probe cycle
// with whether any healthy endpoint remains.
func WithHealthListener(fn func(healthy bool)) Option {
	return func(mc *MultiClient) { mc.onHealth = fn }
}

// NewMultiClient builds the adapter and runs the startup probe cycle:
// endpoints are probed in order until MinHealthy are known healthy or the
// list is exhausted. The earliest healthy endpoint becomes current.
func NewMultiClient(ctx context.Context, lggr logger.Logger, cfg Config, opts ...Option) (*MultiClient, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.New("no RPC endpoints provided, need at least one")
	}
	if cfg.ChainID == 0 {
		return nil, errors.New("expected chain id is required")
	}

	mc := &MultiClient{
		lggr:      lggr.Named("MultiClient"),
		chainID:   cfg.ChainID,
		chainName: chainName(cfg.ChainID),
		timeouts:  cfg.Timeouts,
		retry:     cfg.Retry,
		minOK:     cfg.MinHealthy,
		current:   -1,
	}
	if mc.timeouts == (Timeouts{}) {
		mc.timeouts = DefaultTimeouts()
	}
	if mc.retry == (RetryConfig{}) {
		mc.retry = DefaultRetryConfig()
	}
	if mc.minOK <= 0 {
		mc.minOK = DefaultMinHealthy
	}
	for _, opt := range opts {
		opt(mc)
	}

	for _, url := range cfg.URLs {
		mc.endpoints = append(mc.endpoints, &Endpoint{URL: url, State: EndpointUntested})
	}

	if err := mc.ProbeAll(ctx); err != nil {
		return nil, err
	}

	return mc, nil
}

func chainName(chainID uint64) string {
	if chain, ok := chainsel.ChainByEvmChainID(chainID); ok {
		return chain.Name
	}

	return strconv.FormatUint(chainID, 10)
}

// ChainID returns the expected chain id.
func (mc *MultiClient) ChainID() uint64 { return mc.chainID }

// ChainName returns the resolved chain name, for log fields.
func (mc *MultiClient) ChainName() string { return mc.chainName }

// Endpoints returns a snapshot of the endpoint list with current health.
func (mc *MultiClient) Endpoints() []Endpoint {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make([]Endpoint, len(mc.endpoints))
	for i, ep := range mc.endpoints {
		out[i] = Endpoint{URL: ep.URL, State: ep.State, LastProbe: ep.LastProbe, LastLatency: ep.LastLatency}
	}

	return out
}

// ProbeAll probes endpoints in insertion order until at least MinHealthy are
// healthy or the list is exhausted, then selects the earliest healthy
// endpoint as current. Endpoints already marked down (wrong chain) are
// skipped for the rest of the session.
func (mc *MultiClient) ProbeAll(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return mc.probeAllLocked(ctx)
}

func (mc *MultiClient) probeAllLocked(ctx context.Context) error {
	healthy := 0
	for i, ep := range mc.endpoints {
		if ep.State == EndpointDown {
			continue
		}
		res := mc.probe(ctx, ep)
		if res.Err != nil {
			mc.lggr.Warnw("endpoint probe failed",
				"chain", mc.chainName, "index", i, "url", ep.URL, "err", res.Err)

			continue
		}
		mc.lggr.Debugw("endpoint probe ok",
			"chain", mc.chainName, "index", i, "url", ep.URL, "latency", res.Latency)
		healthy++
		if healthy >= mc.minOK {
			break
		}
	}

	mc.current = mc.earliestHealthyLocked()
	if mc.onHealth != nil {
		mc.onHealth(mc.current >= 0)
	}
	if mc.current < 0 {
		return faults.Newf(faults.Transport, "no healthy RPC endpoint for chain %s", mc.chainName)
	}

	return nil
}

func (mc *MultiClient) earliestHealthyLocked() int {
	for i, ep := range mc.endpoints {
		if ep.State == EndpointHealthy {
			return i
		}
	}

	return -1
}

// CurrentEndpoint returns the URL of the current endpoint, or "" when no
// endpoint is healthy.
func (mc *MultiClient) CurrentEndpoint() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mc.current < 0 {
		return ""
	}

	return mc.endpoints[mc.current].URL
}

// acquire returns the current healthy endpoint's client, running a probe
// cycle first if nothing is healthy.
func (mc *MultiClient) acquire(ctx context.Context) (*ethclient.Client, int, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.current < 0 || mc.endpoints[mc.current].State != EndpointHealthy {
		if err := mc.probeAllLocked(ctx); err != nil {
			return nil, -1, err
		}
	}
	ep := mc.endpoints[mc.current]
	client, err := ep.dial(ctx)
	if err != nil {
		return nil, -1, err
	}

	return client, mc.current, nil
}

// rotate moves current forward past the failed index to the next healthy
// endpoint. It never moves backward; when no later endpoint is healthy the
// probe cycle restarts from the top.
func (mc *MultiClient) rotate(ctx context.Context, failed int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if failed >= 0 && failed < len(mc.endpoints) && mc.endpoints[failed].State == EndpointHealthy {
		mc.endpoints[failed].State = EndpointDegraded
	}
	for i := failed + 1; i < len(mc.endpoints); i++ {
		if mc.endpoints[i].State == EndpointHealthy {
			mc.current = i
			mc.lggr.Infow("rotated to next healthy endpoint",
				"chain", mc.chainName, "index", i, "url", mc.endpoints[i].URL)

			return
		}
	}
	// Everything after the failed endpoint is down too; restart the cycle.
	if err := mc.probeAllLocked(ctx); err != nil {
		mc.lggr.Warnw("probe cycle found no healthy endpoint", "chain", mc.chainName, "err", err)
	}
}

// withFailover runs op against the current endpoint, retrying transport-class
// failures on the next healthy endpoint with exponential backoff. Fatal
// failures (wrong chain, reverts, method-unavailable) return immediately.
func (mc *MultiClient) withFailover(ctx context.Context, opName string, op func(context.Context, *ethclient.Client) error) error {
	traceID := uuid.New()

	err := retry.Do(
		func() error {
			client, idx, err := mc.acquire(ctx)
			if err != nil {
				return err
			}

			callCtx, cancel := ensureTimeout(ctx, mc.timeouts.Call)
			defer cancel()

			if err := op(callCtx, client); err != nil {
				fault := faults.Classify(err)
				if faults.Retryable(fault) {
					mc.lggr.Warnw("retryable RPC failure, rotating",
						"traceID", traceID.String(), "chain", mc.chainName,
						"op", opName, "index", idx, "err", fault)
					mc.rotate(ctx, idx)
				}

				return fault
			}

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(mc.retry.Attempts+1),
		retry.Delay(mc.retry.BaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(faults.Retryable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%s on chain %s: %w", opName, mc.chainName, err)
	}

	return nil
}

func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var result []byte
	err := mc.withFailover(ctx, "CallContract", func(ct context.Context, client *ethclient.Client) error {
		var err error
		result, err = client.CallContract(ct, msg, blockNumber)

		return err
	})

	return result, err
}

func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	var code []byte
	err := mc.withFailover(ctx, "CodeAt", func(ct context.Context, client *ethclient.Client) error {
		var err error
		code, err = client.CodeAt(ct, account, blockNumber)

		return err
	})

	return code, err
}

func (mc *MultiClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	var code []byte
	err := mc.withFailover(ctx, "PendingCodeAt", func(ct context.Context, client *ethclient.Client) error {
		var err error
		code, err = client.PendingCodeAt(ct, account)

		return err
	})

	return code, err
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := mc.withFailover(ctx, "PendingNonceAt", func(ct context.Context, client *ethclient.Client) error {
		var err error
		nonce, err = client.PendingNonceAt(ct, account)

		return err
	})

	return nonce, err
}

func (mc *MultiClient) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	var nonce uint64
	err := mc.withFailover(ctx, "NonceAt", func(ct context.Context, client *ethclient.Client) error {
		var err error
		nonce, err = client.NonceAt(ct, account, blockNumber)

		return err
	})

	return nonce, err
}

func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := mc.withFailover(ctx, "HeaderByNumber", func(ct context.Context, client *ethclient.Client) error {
		var err error
		header, err = client.HeaderByNumber(ct, number)

		return err
	})

	return header, err
}

func (mc *MultiClient) BlockNumber(ctx context.Context) (uint64, error) {
	var num uint64
	err := mc.withFailover(ctx, "BlockNumber", func(ct context.Context, client *ethclient.Client) error {
		var err error
		num, err = client.BlockNumber(ct)

		return err
	})

	return num, err
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := mc.withFailover(ctx, "SuggestGasPrice", func(ct context.Context, client *ethclient.Client) error {
		var err error
		price, err = client.SuggestGasPrice(ct)

		return err
	})

	return price, err
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tip *big.Int
	err := mc.withFailover(ctx, "SuggestGasTipCap", func(ct context.Context, client *ethclient.Client) error {
		var err error
		tip, err = client.SuggestGasTipCap(ct)

		return err
	})

	return tip, err
}

func (mc *MultiClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := mc.withFailover(ctx, "EstimateGas", func(ct context.Context, client *ethclient.Client) error {
		var err error
		gas, err = client.EstimateGas(ct, call)

		return err
	})

	return gas, err
}

func (mc *MultiClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := mc.withFailover(ctx, "FilterLogs", func(ct context.Context, client *ethclient.Client) error {
		var err error
		logs, err = client.FilterLogs(ct, q)

		return err
	})

	return logs, err
}

// SubscribeFilterLogs is single-endpoint: subscriptions cannot be transparently
// moved between endpoints mid-stream.
func (mc *MultiClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	client, _, err := mc.acquire(ctx)
	if err != nil {
		return nil, err
	}

	return client.SubscribeFilterLogs(ctx, q, ch)
}

func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := mc.withFailover(ctx, "TransactionReceipt", func(ct context.Context, client *ethclient.Client) error {
		var err error
		receipt, err = client.TransactionReceipt(ct, txHash)

		return err
	})

	return receipt, err
}

// SendTransaction submits a signed transaction. Failover applies only while
// submission itself fails with a retryable class; once any endpoint has
// accepted the transaction it is never re-sent.
func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return mc.withFailover(ctx, "SendTransaction", func(ct context.Context, client *ethclient.Client) error {
		return client.SendTransaction(ct, tx)
	})
}

// WaitMined waits for one receipt of tx, racing every healthy endpoint. It
// does not chase reorgs; the first receipt wins. Cancellation is the
// caller's context only: the transaction itself is out of our hands.
func (mc *MultiClient) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	mc.lggr.Debugw("waiting for receipt", "chain", mc.chainName, "tx", tx.Hash().Hex())

	resultCh := make(chan *types.Receipt)
	doneCh := make(chan struct{})

	waitOne := func(client *ethclient.Client) {
		receipt, err := bind.WaitMined(ctx, client, tx)
		if err != nil {
			mc.lggr.Warnw("receipt wait failed", "chain", mc.chainName, "tx", tx.Hash().Hex(), "err", err)

			return
		}
		select {
		case resultCh <- receipt:
		case <-doneCh:
		}
	}

	launched := 0
	mc.mu.RLock()
	for _, ep := range mc.endpoints {
		if ep.State != EndpointHealthy || ep.client == nil {
			continue
		}
		launched++
		go waitOne(ep.client)
	}
	mc.mu.RUnlock()

	if launched == 0 {
		client, _, err := mc.acquire(ctx)
		if err != nil {
			return nil, err
		}
		go waitOne(client)
	}

	select {
	case receipt := <-resultCh:
		close(doneCh)
		mc.lggr.Debugw("receipt observed", "chain", mc.chainName, "tx", tx.Hash().Hex(),
			"block", receipt.BlockNumber, "status", receipt.Status)

		return receipt, nil
	case <-ctx.Done():
		close(doneCh)

		return nil, ctx.Err()
	}
}

// ensureTimeout derives a bounded context: the parent's own deadline when it
// has one, otherwise the given timeout.
func ensureTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := parent.Deadline(); hasDeadline {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, timeout)
}
