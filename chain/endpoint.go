package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/liberdus/lp-governance/faults"
)

// EndpointState is the health state of a single RPC endpoint.
type EndpointState string

const (
	EndpointUntested EndpointState = "untested"
	EndpointHealthy  EndpointState = "healthy"
	EndpointDegraded EndpointState = "degraded"
	EndpointDown     EndpointState = "down"
)

// Endpoint is one RPC URL together with its last observed health.
type Endpoint struct {
	URL         string
	State       EndpointState
	LastProbe   time.Time
	LastLatency time.Duration

	client *ethclient.Client
}

// ProbeResult is the outcome of probing a single endpoint.
type ProbeResult struct {
	OK      bool
	Latency time.Duration
	ChainID uint64
	Err     error
}

// dial lazily opens the underlying client. Dialing an HTTP URL does not touch
// the network, so errors here are malformed-URL only.
func (e *Endpoint) dial(ctx context.Context) (*ethclient.Client, error) {
	if e.client != nil {
		return e.client, nil
	}
	client, err := ethclient.DialContext(ctx, e.URL)
	if err != nil {
		return nil, faults.WrapReason(faults.Transport, fmt.Sprintf("dial %s", e.URL), err)
	}
	e.client = client

	return client, nil
}

// probe checks the endpoint against the expected chain id: first the network
// id within the probe budget, then the block number within the shorter
// block-number budget. A mismatched chain id marks the endpoint down for the
// session; transport failures leave it degraded and eligible for re-probe.
func (mc *MultiClient) probe(ctx context.Context, ep *Endpoint) ProbeResult {
	start := time.Now()
	ep.LastProbe = start

	client, err := ep.dial(ctx)
	if err != nil {
		ep.State = EndpointDegraded

		return ProbeResult{Err: err}
	}

	probeCtx, cancel := context.WithTimeout(ctx, mc.timeouts.Probe)
	defer cancel()

	chainID, err := client.ChainID(probeCtx)
	if err != nil {
		ep.State = EndpointDegraded

		return ProbeResult{Err: faults.WrapReason(faults.Transport, fmt.Sprintf("probe %s", ep.URL), err)}
	}
	if chainID.Uint64() != mc.chainID {
		ep.State = EndpointDown

		return ProbeResult{
			ChainID: chainID.Uint64(),
			Err: faults.Newf(faults.WrongChain, "endpoint %s answered chain id %d, want %d",
				ep.URL, chainID.Uint64(), mc.chainID),
		}
	}

	blockCtx, cancel2 := context.WithTimeout(ctx, mc.timeouts.BlockNumber)
	defer cancel2()

	if _, err := client.BlockNumber(blockCtx); err != nil {
		ep.State = EndpointDegraded

		return ProbeResult{
			ChainID: chainID.Uint64(),
			Err:     faults.WrapReason(faults.Transport, fmt.Sprintf("probe %s: block number", ep.URL), err),
		}
	}

	ep.State = EndpointHealthy
	ep.LastLatency = time.Since(start)

	return ProbeResult{OK: true, Latency: ep.LastLatency, ChainID: chainID.Uint64()}
}
