package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberdus/lp-governance/faults"
	"github.com/liberdus/lp-governance/pkg/logger"
)

const testChainID uint64 = 80002

// rpcStub is a programmable JSON-RPC server. Methods without an override
// answer with sane defaults for the expected chain.
type rpcStub struct {
	chainID   uint64
	mu        sync.Mutex
	overrides map[string]func() (result string, errMsg string)
	callCount map[string]int
}

func newRPCStub(chainID uint64) *rpcStub {
	return &rpcStub{
		chainID:   chainID,
		overrides: map[string]func() (string, string){},
		callCount: map[string]int{},
	}
}

func (s *rpcStub) on(method string, fn func() (string, string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method] = fn
}

func (s *rpcStub) failWith(method, msg string) {
	s.on(method, func() (string, string) { return "", msg })
}

func (s *rpcStub) calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.callCount[method]
}

func (s *rpcStub) serve(t *testing.T) *httptest.Server {
	t.Helper()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}
		s.mu.Lock()
		s.callCount[req.Method]++
		fn, hasOverride := s.overrides[req.Method]
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if hasOverride {
			result, errMsg := fn()
			if errMsg != "" {
				fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":%q}}`, req.ID, errMsg)

				return
			}
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%q}`, req.ID, result)

			return
		}

		switch req.Method {
		case "eth_chainId":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x%x"}`, req.ID, s.chainID)
		case "eth_blockNumber":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x10"}`, req.ID)
		case "eth_call":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x"}`, req.ID)
		case "eth_estimateGas":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x5208"}`, req.ID)
		default:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
		}
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func fastRetry() Option {
	return WithRetryConfig(RetryConfig{Attempts: 2, BaseDelay: time.Millisecond})
}

func newTestClient(t *testing.T, urls ...string) *MultiClient {
	t.Helper()

	mc, err := NewMultiClient(context.Background(), logger.Test(t), Config{
		URLs:    urls,
		ChainID: testChainID,
	}, fastRetry())
	require.NoError(t, err)

	return mc
}

func TestChainName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "polygon-testnet-amoy", chainName(testChainID))
	// Unknown ids fall back to the decimal form.
	assert.Equal(t, "999999999999", chainName(999999999999))
}

func TestNewMultiClient_selectsEarliestHealthy(t *testing.T) {
	t.Parallel()

	bad := newRPCStub(testChainID)
	bad.failWith("eth_chainId", "internal error")
	badSrv := bad.serve(t)

	good := newRPCStub(testChainID)
	goodSrv := good.serve(t)

	mc := newTestClient(t, badSrv.URL, goodSrv.URL)

	assert.Equal(t, goodSrv.URL, mc.CurrentEndpoint())

	eps := mc.Endpoints()
	require.Len(t, eps, 2)
	assert.Equal(t, EndpointDegraded, eps[0].State)
	assert.Equal(t, EndpointHealthy, eps[1].State)
}

func TestNewMultiClient_noEndpoints(t *testing.T) {
	t.Parallel()

	_, err := NewMultiClient(context.Background(), logger.Test(t), Config{ChainID: testChainID})
	require.Error(t, err)
}

func TestNewMultiClient_wrongChainMarkedDown(t *testing.T) {
	t.Parallel()

	wrong := newRPCStub(1) // mainnet id, not the expected chain
	wrongSrv := wrong.serve(t)

	_, err := NewMultiClient(context.Background(), logger.Test(t), Config{
		URLs:    []string{wrongSrv.URL},
		ChainID: testChainID,
	}, fastRetry())
	require.Error(t, err)
	assert.True(t, faults.Is(err, faults.Transport))
}

func TestNewMultiClient_wrongChainEndpointNeverUsed(t *testing.T) {
	t.Parallel()

	wrong := newRPCStub(1)
	wrongSrv := wrong.serve(t)

	good := newRPCStub(testChainID)
	goodSrv := good.serve(t)

	mc := newTestClient(t, wrongSrv.URL, goodSrv.URL)

	eps := mc.Endpoints()
	assert.Equal(t, EndpointDown, eps[0].State)
	assert.Equal(t, goodSrv.URL, mc.CurrentEndpoint())

	// A fresh probe cycle skips down endpoints entirely.
	require.NoError(t, mc.ProbeAll(context.Background()))
	assert.Equal(t, 1, wrong.calls("eth_chainId"))
}

func TestMultiClient_failoverOnRetryableError(t *testing.T) {
	t.Parallel()

	flaky := newRPCStub(testChainID)
	flaky.failWith("eth_call", "missing trie node deadbeef")
	flakySrv := flaky.serve(t)

	good := newRPCStub(testChainID)
	goodSrv := good.serve(t)

	mc := newTestClient(t, flakySrv.URL, goodSrv.URL)
	require.Equal(t, flakySrv.URL, mc.CurrentEndpoint())

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	_, err := mc.CallContract(context.Background(), ethereum.CallMsg{To: &to}, nil)
	require.NoError(t, err)

	// Subsequent calls route to the endpoint that worked.
	assert.Equal(t, goodSrv.URL, mc.CurrentEndpoint())
	assert.Positive(t, good.calls("eth_call"))
}

func TestMultiClient_revertNotRetried(t *testing.T) {
	t.Parallel()

	stub := newRPCStub(testChainID)
	stub.failWith("eth_call", "execution reverted: not enough approvals")
	srv := stub.serve(t)

	backup := newRPCStub(testChainID)
	backupSrv := backup.serve(t)

	mc := newTestClient(t, srv.URL, backupSrv.URL)

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	_, err := mc.CallContract(context.Background(), ethereum.CallMsg{To: &to}, nil)
	require.Error(t, err)
	assert.True(t, faults.Is(err, faults.Revert))

	// A revert is decisive; the backup must not have been consulted.
	assert.Equal(t, 0, backup.calls("eth_call"))
	assert.Equal(t, 1, stub.calls("eth_call"))
}

func TestEstimateGasWithFallback(t *testing.T) {
	t.Parallel()

	stub := newRPCStub(testChainID)
	srv := stub.serve(t)
	mc := newTestClient(t, srv.URL)

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	msg := ethereum.CallMsg{To: &to}

	est := mc.EstimateGasWithFallback(context.Background(), msg, TxApprove)
	assert.False(t, est.UsedFallback)
	assert.Equal(t, uint64(0x5208), est.Gas)

	stub.failWith("eth_estimateGas", "intrinsic gas too low")
	est = mc.EstimateGasWithFallback(context.Background(), msg, TxApprove)
	assert.True(t, est.UsedFallback)
	assert.Equal(t, uint64(60_000), est.Gas)
}

func TestFallbackGas(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind TxKind
		want uint64
	}{
		{TxApprove, 60_000},
		{TxStake, 150_000},
		{TxUnstake, 120_000},
		{TxClaim, 100_000},
		{TxGeneric, 200_000},
		{TxKind("unknown"), 200_000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FallbackGas(tt.kind), "kind %s", tt.kind)
	}
}

func TestExplorerTxURL(t *testing.T) {
	t.Parallel()

	hash := common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000001")
	want := "https://amoy.polygonscan.com/tx/" + hash.Hex()

	assert.Equal(t, want, ExplorerTxURL("https://amoy.polygonscan.com", hash))
	assert.Equal(t, want, ExplorerTxURL("https://amoy.polygonscan.com/", hash))
}

func TestEnsureTimeout(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithDeadline(context.Background(), time.Now().Add(time.Minute))
	defer cancel()

	ctx, cancel2 := ensureTimeout(parent, time.Second)
	defer cancel2()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	ctx2, cancel3 := ensureTimeout(context.Background(), time.Second)
	defer cancel3()
	_, ok = ctx2.Deadline()
	assert.True(t, ok)
}
