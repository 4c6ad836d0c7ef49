package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUserRejected      = errors.New("user rejected the request")
	ErrNotConnected      = errors.New("wallet is not connected to a chain")
	ErrUnsupportedChain  = errors.New("chain not configured in wallet")
	ErrExecutionReverted = errors.New("execution reverted")
	ErrWrongChain        = errors.New("wallet is connected to another chain")
)

// Session is the wallet as seen by the transaction controller: who signs,
// which chain it is on, and a sign-and-broadcast call. SendTransaction only
// broadcasts on chainId and fails with ErrWrongChain when the wallet is
// connected to any other chain.
type Session interface {
	Address() common.Address
	ChainID() (uint64, bool)
	SendTransaction(ctx context.Context, chainId uint64, to common.Address, data []byte) (common.Hash, error)
}

// Switcher is the chain-switch capability the wrong-network remediation
// points at.
type Switcher interface {
	SwitchChain(chainId uint64) error
}

// Backend is the part of ethclient.Client the wallet needs per chain.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Approver stands in for the user's signature prompt. Returning false
// rejects the transaction.
type Approver func(chainId uint64, tx *types.Transaction) bool

// KeyedWallet signs with a local private key and broadcasts through the
// backend of the chain it is currently switched to.
type KeyedWallet struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	backends map[uint64]Backend
	tip      *big.Int
	approver Approver
	chainId  atomic.Uint64
	logger   *log.Entry
}

var (
	_ Session  = (*KeyedWallet)(nil)
	_ Switcher = (*KeyedWallet)(nil)
)

func NewKeyedWallet(privateKeyHex string, backends map[uint64]Backend, chainId uint64, tip *big.Int) (*KeyedWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid wallet private key: %w", err)
	}
	if tip == nil {
		tip = big.NewInt(5000000)
	}
	w := &KeyedWallet{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		backends: backends,
		tip:      new(big.Int).Set(tip),
		logger: log.WithFields(log.Fields{
			"module": "wallet",
		}),
	}
	if err := w.SwitchChain(chainId); err != nil {
		return nil, err
	}
	return w, nil
}

// WithApprover installs a signature prompt. Without one every request is
// approved.
func (w *KeyedWallet) WithApprover(approver Approver) *KeyedWallet {
	w.approver = approver
	return w
}

func (w *KeyedWallet) Address() common.Address {
	return w.address
}

func (w *KeyedWallet) ChainID() (uint64, bool) {
	id := w.chainId.Load()
	return id, id != 0
}

func (w *KeyedWallet) SwitchChain(chainId uint64) error {
	if _, ok := w.backends[chainId]; !ok {
		return fmt.Errorf("%w: %d", ErrUnsupportedChain, chainId)
	}
	prev := w.chainId.Swap(chainId)
	if prev != chainId {
		w.logger.Infof("Wallet switched chain %d -> %d", prev, chainId)
	}
	return nil
}

func (w *KeyedWallet) SendTransaction(ctx context.Context, chainId uint64, to common.Address, data []byte) (common.Hash, error) {
	connected, ok := w.ChainID()
	if !ok {
		return common.Hash{}, ErrNotConnected
	}
	if connected != chainId {
		return common.Hash{}, fmt.Errorf("%w: on %d, asked for %d", ErrWrongChain, connected, chainId)
	}
	// signing and broadcast stay on chainId even if the wallet switches meanwhile
	backend, ok := w.backends[chainId]
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrUnsupportedChain, chainId)
	}

	nonce, err := backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get pending nonce: %w", err)
	}
	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get latest header: %w", err)
	}
	if header.BaseFee == nil {
		return common.Hash{}, fmt.Errorf("chain %d has no base fee, dynamic fee tx unsupported", chainId)
	}
	// leave room for two base fee increases
	maxFeePerGas := new(big.Int).Add(new(big.Int).Mul(header.BaseFee, big.NewInt(2)), w.tip)

	gasLimit, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      w.address,
		To:        &to,
		Data:      data,
		Value:     big.NewInt(0),
		GasFeeCap: maxFeePerGas,
		GasTipCap: w.tip,
	})
	if err != nil {
		if strings.Contains(err.Error(), "execution reverted") {
			return common.Hash{}, fmt.Errorf("%w: %v", ErrExecutionReverted, err)
		}
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	chainIdBig := new(big.Int).SetUint64(chainId)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainIdBig,
		Nonce:     nonce,
		GasTipCap: w.tip,
		GasFeeCap: maxFeePerGas,
		Gas:       gasLimit,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})
	if w.approver != nil && !w.approver(chainId, tx) {
		return common.Hash{}, ErrUserRejected
	}

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainIdBig), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast tx: %w", err)
	}

	w.logger.WithFields(log.Fields{
		"chain": chainId,
		"nonce": nonce,
		"gas":   gasLimit,
		"to":    to.Hex(),
	}).Infof("Transaction broadcast %s", signedTx.Hash().Hex())
	return signedTx.Hash(), nil
}
