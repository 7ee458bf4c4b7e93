package governance

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/liberdus/lp-governance/chain"
	"github.com/liberdus/lp-governance/contract"
	"github.com/liberdus/lp-governance/faults"
	"github.com/liberdus/lp-governance/pkg/logger"
)

// OpKind names a governance operation.
type OpKind string

const (
	OpPropose OpKind = "propose"
	OpApprove OpKind = "approve"
	OpReject  OpKind = "reject"
	OpExecute OpKind = "execute"
	OpCleanup OpKind = "cleanup"
)

// Phase is one stage of a transaction's lifecycle.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseAuthorizing Phase = "authorizing"
	PhaseEstimating  Phase = "estimating"
	PhaseSubmitting  Phase = "submitting"
	PhasePending     Phase = "pending"
	PhaseConfirmed   Phase = "confirmed"
	PhaseFailed      Phase = "failed"
)

// PhaseChange is one recorded lifecycle transition.
type PhaseChange struct {
	Phase Phase
	At    time.Time
}

// Command is one governance operation to run against the contract.
// ProposalID applies to approve, reject and execute; Payload to propose.
type Command struct {
	Op         OpKind
	ProposalID uint64
	Payload    contract.Payload
}

// Result is the outcome of one command. Trail records every phase the
// command passed through.
type Result struct {
	ID          uuid.UUID
	Command     Command
	TxHash      common.Hash
	Receipt     *types.Receipt
	GasFallback bool
	Trail       []PhaseChange
	Err         error
}

// Phase returns the last recorded phase.
func (r *Result) Phase() Phase {
	if len(r.Trail) == 0 {
		return PhaseIdle
	}

	return r.Trail[len(r.Trail)-1].Phase
}

// ContractWriter is the slice of the contract binding the executor drives.
type ContractWriter interface {
	PairReader
	Address() common.Address
	PackInput(method string, params ...any) ([]byte, error)
	ProposeSetHourlyRewardRate(opts *bind.TransactOpts, rate string) (*types.Transaction, error)
	ProposeUpdatePairWeights(opts *bind.TransactOpts, pairs []common.Address, weights []uint64) (*types.Transaction, error)
	ProposeAddPair(opts *bind.TransactOpts, lpToken common.Address, name, platform string, weight uint64) (*types.Transaction, error)
	ProposeRemovePair(opts *bind.TransactOpts, lpToken common.Address) (*types.Transaction, error)
	ProposeChangeSigner(opts *bind.TransactOpts, oldSigner, newSigner common.Address) (*types.Transaction, error)
	ProposeWithdrawRewards(opts *bind.TransactOpts, recipient common.Address, amount string) (*types.Transaction, error)
	ApproveAction(opts *bind.TransactOpts, id uint64) (*types.Transaction, error)
	RejectAction(opts *bind.TransactOpts, id uint64) (*types.Transaction, error)
	ExecuteAction(opts *bind.TransactOpts, id uint64) (*types.Transaction, error)
	CleanupExpiredActions(opts *bind.TransactOpts) (*types.Transaction, error)
}

// TxBackend is the slice of the chain client the executor needs.
type TxBackend interface {
	EstimateGasWithFallback(ctx context.Context, msg ethereum.CallMsg, kind chain.TxKind) chain.GasEstimate
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type job struct {
	cmd  Command
	done chan Result
}

// Executor runs governance commands through the full transaction
// lifecycle. Commands for one wallet are strictly serialized so nonce
// ordering on chain matches submission order.
type Executor struct {
	lggr    logger.Logger
	backend TxBackend
	writer  ContractWriter
	oracle  *Oracle
	degr    *Degradation
	session WalletSession
	signers *signerCache

	// onConfirmed runs after every confirmed transaction, wired to an
	// immediate projection reconcile.
	onConfirmed func()

	queue chan job
}

func NewExecutor(
	lggr logger.Logger,
	backend TxBackend,
	writer ContractWriter,
	oracle *Oracle,
	degr *Degradation,
	session WalletSession,
	signers *signerCache,
	onConfirmed func(),
) *Executor {
	if onConfirmed == nil {
		onConfirmed = func() {}
	}

	return &Executor{
		lggr:        lggr.Named("Executor"),
		backend:     backend,
		writer:      writer,
		oracle:      oracle,
		degr:        degr,
		session:     session,
		signers:     signers,
		onConfirmed: onConfirmed,
		queue:       make(chan job, 16),
	}
}

// Run drains the command queue until ctx is done. Exactly one Run loop
// must be active per executor.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-e.queue:
			j.done <- e.process(ctx, j.cmd)
		}
	}
}

// Submit enqueues cmd and blocks until it finishes or ctx is canceled.
// A canceled wait does not abort a transaction that already reached the
// chain.
func (e *Executor) Submit(ctx context.Context, cmd Command) Result {
	j := job{cmd: cmd, done: make(chan Result, 1)}
	select {
	case e.queue <- j:
	case <-ctx.Done():
		return Result{ID: uuid.New(), Command: cmd, Err: ctx.Err()}
	}

	select {
	case res := <-j.done:
		return res
	case <-ctx.Done():
		return Result{ID: uuid.New(), Command: cmd, Err: ctx.Err()}
	}
}

func (e *Executor) process(ctx context.Context, cmd Command) Result {
	res := Result{ID: uuid.New(), Command: cmd}
	advance := func(p Phase) {
		res.Trail = append(res.Trail, PhaseChange{Phase: p, At: time.Now()})
	}
	fail := func(err error) Result {
		advance(PhaseFailed)
		res.Err = err
		e.lggr.Warnw("command failed", "op", cmd.Op, "id", res.ID, "phase", res.Phase(), "err", err)

		return res
	}

	method, err := e.method(cmd)
	if err != nil {
		return fail(err)
	}
	if err := e.degr.Check(method); err != nil {
		return fail(err)
	}

	advance(PhaseAuthorizing)
	if err := e.authorize(ctx, cmd); err != nil {
		return fail(err)
	}
	if cmd.Op == OpPropose {
		if err := validatePayload(ctx, e.writer, e.signers, cmd.Payload); err != nil {
			return fail(err)
		}
	}

	advance(PhaseEstimating)
	input, err := e.packInput(cmd, method)
	if err != nil {
		return fail(err)
	}
	to := e.writer.Address()
	est := e.backend.EstimateGasWithFallback(ctx, ethereum.CallMsg{
		From: e.session.Address(),
		To:   &to,
		Data: input,
	}, txKind(cmd.Op))
	res.GasFallback = est.UsedFallback

	advance(PhaseSubmitting)
	opts, err := e.session.TransactOpts(ctx)
	if err != nil {
		return fail(err)
	}
	opts.Context = ctx
	opts.GasLimit = est.Gas

	tx, err := e.send(opts, cmd)
	if err != nil {
		return fail(err)
	}
	res.TxHash = tx.Hash()

	advance(PhasePending)
	receipt, err := e.backend.WaitMined(ctx, tx)
	if err != nil {
		return fail(err)
	}
	res.Receipt = receipt

	if receipt.Status == types.ReceiptStatusFailed {
		return fail(e.revertReason(ctx, tx, receipt))
	}

	advance(PhaseConfirmed)
	e.lggr.Infow("command confirmed", "op", cmd.Op, "id", res.ID, "tx", res.TxHash.Hex(),
		"block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
	e.onConfirmed()

	return res
}

func (e *Executor) authorize(ctx context.Context, cmd Command) error {
	switch cmd.Op {
	case OpPropose:
		ok, err := e.oracle.MayPropose(ctx, e.session.Address())
		if err != nil {
			return err
		}
		if !ok {
			return faults.New(faults.AuthzDenied, "wallet is not a governance admin")
		}
	case OpApprove, OpReject, OpExecute:
		ok, err := e.oracle.MayApprove(ctx, e.session.Address())
		if err != nil {
			return err
		}
		if !ok {
			return faults.New(faults.AuthzDenied, "wallet is not a governance signer")
		}
	case OpCleanup:
		// Cleanup is permissionless maintenance.
	default:
		return faults.Newf(faults.Invariant, "unknown operation %q", cmd.Op)
	}

	return nil
}

func (e *Executor) method(cmd Command) (string, error) {
	switch cmd.Op {
	case OpApprove:
		return contract.MethodApproveAction, nil
	case OpReject:
		return contract.MethodRejectAction, nil
	case OpExecute:
		return contract.MethodExecuteAction, nil
	case OpCleanup:
		return contract.MethodCleanupExpired, nil
	case OpPropose:
		switch cmd.Payload.(type) {
		case contract.SetHourlyRewardRate:
			return contract.MethodProposeSetRate, nil
		case contract.UpdatePairWeights:
			return contract.MethodProposeUpdateWeights, nil
		case contract.AddPair:
			return contract.MethodProposeAddPair, nil
		case contract.RemovePair:
			return contract.MethodProposeRemovePair, nil
		case contract.ChangeSigner:
			return contract.MethodProposeChangeSigner, nil
		case contract.WithdrawRewards:
			return contract.MethodProposeWithdrawReward, nil
		default:
			return "", faults.Newf(faults.Invariant, "proposal payload missing or unsupported: %T", cmd.Payload)
		}
	default:
		return "", faults.Newf(faults.Invariant, "unknown operation %q", cmd.Op)
	}
}

func (e *Executor) packInput(cmd Command, method string) ([]byte, error) {
	switch cmd.Op {
	case OpApprove, OpReject, OpExecute:
		return e.writer.PackInput(method, new(big.Int).SetUint64(cmd.ProposalID))
	case OpCleanup:
		return e.writer.PackInput(method)
	}

	switch p := cmd.Payload.(type) {
	case contract.SetHourlyRewardRate:
		wei, err := contract.DecimalToWei(p.Rate)
		if err != nil {
			return nil, err
		}
		return e.writer.PackInput(method, wei)
	case contract.UpdatePairWeights:
		ws := make([]*big.Int, len(p.Weights))
		for i, w := range p.Weights {
			ws[i] = new(big.Int).SetUint64(w)
		}
		return e.writer.PackInput(method, p.Pairs, ws)
	case contract.AddPair:
		return e.writer.PackInput(method, p.LPToken, p.Name, p.Platform, new(big.Int).SetUint64(p.Weight))
	case contract.RemovePair:
		return e.writer.PackInput(method, p.LPToken)
	case contract.ChangeSigner:
		return e.writer.PackInput(method, p.Old, p.New)
	case contract.WithdrawRewards:
		wei, err := contract.DecimalToWei(p.Amount)
		if err != nil {
			return nil, err
		}
		return e.writer.PackInput(method, p.Recipient, wei)
	default:
		return nil, faults.Newf(faults.Invariant, "proposal payload missing or unsupported: %T", cmd.Payload)
	}
}

func (e *Executor) send(opts *bind.TransactOpts, cmd Command) (*types.Transaction, error) {
	switch cmd.Op {
	case OpApprove:
		return e.writer.ApproveAction(opts, cmd.ProposalID)
	case OpReject:
		return e.writer.RejectAction(opts, cmd.ProposalID)
	case OpExecute:
		return e.writer.ExecuteAction(opts, cmd.ProposalID)
	case OpCleanup:
		return e.writer.CleanupExpiredActions(opts)
	}

	switch p := cmd.Payload.(type) {
	case contract.SetHourlyRewardRate:
		return e.writer.ProposeSetHourlyRewardRate(opts, p.Rate)
	case contract.UpdatePairWeights:
		return e.writer.ProposeUpdatePairWeights(opts, p.Pairs, p.Weights)
	case contract.AddPair:
		return e.writer.ProposeAddPair(opts, p.LPToken, p.Name, p.Platform, p.Weight)
	case contract.RemovePair:
		return e.writer.ProposeRemovePair(opts, p.LPToken)
	case contract.ChangeSigner:
		return e.writer.ProposeChangeSigner(opts, p.Old, p.New)
	case contract.WithdrawRewards:
		return e.writer.ProposeWithdrawRewards(opts, p.Recipient, p.Amount)
	default:
		return nil, faults.Newf(faults.Invariant, "proposal payload missing or unsupported: %T", cmd.Payload)
	}
}

// revertReason replays the failed transaction as a call at its mined block
// to recover the revert string the receipt does not carry.
func (e *Executor) revertReason(ctx context.Context, tx *types.Transaction, receipt *types.Receipt) error {
	msg := ethereum.CallMsg{
		From:     e.session.Address(),
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}

	_, err := e.backend.CallContract(ctx, msg, receipt.BlockNumber)
	if err == nil {
		return faults.New(faults.Revert, "transaction reverted without a reason")
	}
	if reason := faults.RevertReason(err); reason != "" {
		return faults.New(faults.Revert, reason)
	}

	return faults.WrapReason(faults.Revert, "transaction reverted", err)
}

func txKind(op OpKind) chain.TxKind {
	if op == OpApprove {
		return chain.TxApprove
	}

	return chain.TxGeneric
}
