package governance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// WalletSession is the already-opened wallet the coordinator signs with.
// Wallet connection UX lives outside this module; the coordinator only
// consumes the session and reacts to its change signals.
type WalletSession interface {
	// Address returns the active account.
	Address() common.Address
	// ChainID returns the chain the wallet is connected to.
	ChainID() uint64
	// TransactOpts returns signing options for the active account.
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)

	// AddressChanges delivers the new address on account switch.
	AddressChanges() <-chan common.Address
	// ChainChanges delivers the new chain id on network switch.
	ChainChanges() <-chan uint64
	// Disconnects fires once when the wallet disconnects.
	Disconnects() <-chan struct{}
}

// localSession is a WalletSession backed by a raw in-process private key,
// used by the CLI. It never switches accounts or chains.
type localSession struct {
	address    common.Address
	chainID    uint64
	transactor *bind.TransactOpts

	addrCh  chan common.Address
	chainCh chan uint64
	discCh  chan struct{}
}

// NewLocalSession builds a wallet session from a hex private key.
func NewLocalSession(privKeyHex string, chainID uint64) (WalletSession, error) {
	privKey, err := crypto.HexToECDSA(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key to ECDSA: %w", err)
	}

	transactor, err := bind.NewKeyedTransactorWithChainID(privKey, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, err
	}

	return &localSession{
		address:    crypto.PubkeyToAddress(privKey.PublicKey),
		chainID:    chainID,
		transactor: transactor,
		addrCh:     make(chan common.Address),
		chainCh:    make(chan uint64),
		discCh:     make(chan struct{}),
	}, nil
}

func (s *localSession) Address() common.Address { return s.address }
func (s *localSession) ChainID() uint64         { return s.chainID }

func (s *localSession) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts := *s.transactor
	opts.Context = ctx

	return &opts, nil
}

func (s *localSession) AddressChanges() <-chan common.Address { return s.addrCh }
func (s *localSession) ChainChanges() <-chan uint64           { return s.chainCh }
func (s *localSession) Disconnects() <-chan struct{}          { return s.discCh }
