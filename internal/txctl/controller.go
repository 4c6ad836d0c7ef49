package txctl

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chainreactor/quest-relayer/internal/aggregator"
	"github.com/chainreactor/quest-relayer/internal/chain/abis"
	"github.com/chainreactor/quest-relayer/internal/db"
	"github.com/chainreactor/quest-relayer/internal/guard"
	"github.com/chainreactor/quest-relayer/internal/metrics"
	"github.com/chainreactor/quest-relayer/internal/registry"
	"github.com/chainreactor/quest-relayer/internal/state"
	"github.com/chainreactor/quest-relayer/internal/wallet"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultConfirmTimeout = 120 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultSubmitTimeout  = 60 * time.Second
)

type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Refresher interface {
	RefreshQuestCount(ctx context.Context, player common.Address) *aggregator.PlayerState
}

type Notifier interface {
	OnConfirmed(txHash string)
}

type Journal interface {
	RecordTransition(entry *db.TxJournal) error
}

type Config struct {
	Session        wallet.Session
	Receipts       ReceiptSource
	QuestContract  common.Address
	WriteChainId   uint64
	Player         common.Address
	Refresher      Refresher
	Notifier       Notifier
	Journal        Journal
	EventBus       *state.EventBus
	Clock          clock.Clock
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	// SubmitTimeout bounds the wallet prompt and broadcast.
	SubmitTimeout time.Duration
}

// Controller owns the one outstanding quest write of the session.
type Controller struct {
	session        wallet.Session
	receipts       ReceiptSource
	questContract  common.Address
	writeChainId   uint64
	player         common.Address
	refresher      Refresher
	notifier       Notifier
	journal        Journal
	eventBus       *state.EventBus
	clock          clock.Clock
	confirmTimeout time.Duration
	pollInterval   time.Duration
	submitTimeout  time.Duration
	questAbi       *abi.ABI
	logger         *log.Entry

	lifecycle atomic.Pointer[Lifecycle]

	// mu orders wg.Add in Submit against Stop
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Session == nil || cfg.Receipts == nil {
		return nil, errors.New("controller needs a wallet session and a receipt source")
	}
	questAbi, err := abis.QuestContractMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("parse quest abi: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cfg.Player == (common.Address{}) {
		cfg.Player = cfg.Session.Address()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		session:        cfg.Session,
		receipts:       cfg.Receipts,
		questContract:  cfg.QuestContract,
		writeChainId:   cfg.WriteChainId,
		player:         cfg.Player,
		refresher:      cfg.Refresher,
		notifier:       cfg.Notifier,
		journal:        cfg.Journal,
		eventBus:       cfg.EventBus,
		clock:          cfg.Clock,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		submitTimeout:  cfg.SubmitTimeout,
		questAbi:       questAbi,
		logger:         log.WithFields(log.Fields{"module": "txctl"}),
		ctx:            ctx,
		cancel:         cancel,
	}
	c.lifecycle.Store(&Lifecycle{Phase: Idle, UpdatedAt: c.clock.Now()})
	return c, nil
}

func (c *Controller) Lifecycle() Lifecycle {
	return *c.lifecycle.Load()
}

// Decision evaluates the guard against the wallet's current chain.
func (c *Controller) Decision() guard.NetworkDecision {
	var current *uint64
	if id, ok := c.session.ChainID(); ok {
		current = &id
	}
	return guard.Evaluate(current, c.writeChainId)
}

func (c *Controller) ActionEnabled() bool {
	return ActionEnabled(c.Lifecycle().Phase, c.Decision())
}

// Submit sends completeQuest(questId) and returns once the transaction is
// broadcast. Confirmation is tracked in the background. The wallet step is
// bounded by SubmitTimeout and by Stop; either one fails the attempt as
// Unreachable so the action is re-enabled.
func (c *Controller) Submit(ctx context.Context, questId uint64) (Lifecycle, error) {
	decision := c.Decision()
	if !decision.Allowed {
		metrics.ObserveSubmission(ReasonWrongNetwork.String())
		return c.Lifecycle(), &WriteFailure{
			Reason: ReasonWrongNetwork,
			Err:    errors.New(decision.Remediation()),
		}
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return c.Lifecycle(), &WriteFailure{Reason: ReasonUnreachable, Err: errors.New("controller stopped")}
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	prev := c.lifecycle.Load()
	if prev.Phase.InFlight() {
		metrics.ObserveSubmission(ReasonAlreadyInFlight.String())
		return *prev, &WriteFailure{Reason: ReasonAlreadyInFlight}
	}
	submitting := &Lifecycle{
		Phase:        Submitting,
		SubmissionId: uuid.New().String(),
		QuestId:      questId,
		ChainId:      c.writeChainId,
		UpdatedAt:    c.clock.Now(),
	}
	if !c.transition(prev, submitting) {
		metrics.ObserveSubmission(ReasonAlreadyInFlight.String())
		return c.Lifecycle(), &WriteFailure{Reason: ReasonAlreadyInFlight}
	}

	logger := c.logger.WithFields(log.Fields{"submission": submitting.SubmissionId, "questId": questId})
	data, err := c.questAbi.Pack(registry.MethodCompleteQuest, new(big.Int).SetUint64(questId))
	if err != nil {
		return c.fail(submitting, &WriteFailure{Reason: ReasonUnreachable, Err: fmt.Errorf("pack completeQuest: %w", err)})
	}

	logger.Info("Requesting wallet signature for completeQuest")
	hash, err := c.send(ctx, logger, data)
	if err != nil {
		logger.Warnf("Quest transaction not broadcast: %v", err)
		return c.fail(submitting, &WriteFailure{Reason: classify(err), Err: err})
	}

	pending := submitting.next(PendingConfirmation, c.clock.Now())
	pending.TxHash = hash.Hex()
	if !c.transition(submitting, pending) {
		return c.Lifecycle(), &WriteFailure{Reason: ReasonUnreachable, Err: errors.New("submission was superseded")}
	}
	metrics.ObserveSubmission("broadcast")
	logger.WithField("txHash", pending.TxHash).Info("Quest transaction broadcast, waiting for confirmation")

	c.wg.Add(1)
	go c.awaitConfirmation(pending, hash)
	return *pending, nil
}

type sendResult struct {
	hash common.Hash
	err  error
}

// send asks the wallet to broadcast on the write chain. It gives up when the
// submit timeout passes or the controller stops, even if the wallet never
// returns.
func (c *Controller) send(ctx context.Context, logger *log.Entry, data []byte) (common.Hash, error) {
	sendCtx, cancel := c.clock.WithTimeout(ctx, c.submitTimeout)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	result := make(chan sendResult, 1)
	go func() {
		hash, err := c.session.SendTransaction(sendCtx, c.writeChainId, c.questContract, data)
		result <- sendResult{hash: hash, err: err}
	}()

	select {
	case r := <-result:
		return r.hash, r.err
	case <-sendCtx.Done():
	}

	go func() {
		if r := <-result; r.err == nil {
			logger.WithField("txHash", r.hash.Hex()).Warn("Wallet broadcast after the submission was abandoned")
		}
	}()
	switch {
	case c.ctx.Err() != nil:
		return common.Hash{}, fmt.Errorf("controller stopped: %w", c.ctx.Err())
	case ctx.Err() != nil:
		return common.Hash{}, ctx.Err()
	default:
		return common.Hash{}, fmt.Errorf("no wallet response after %v: %w", c.submitTimeout, sendCtx.Err())
	}
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		return ReasonUserRejected
	case errors.Is(err, wallet.ErrExecutionReverted):
		return ReasonReverted
	case errors.Is(err, wallet.ErrWrongChain), errors.Is(err, wallet.ErrNotConnected):
		return ReasonWrongNetwork
	default:
		return ReasonUnreachable
	}
}

func (c *Controller) awaitConfirmation(pending *Lifecycle, hash common.Hash) {
	defer c.wg.Done()

	logger := c.logger.WithFields(log.Fields{"submission": pending.SubmissionId, "txHash": pending.TxHash})
	start := c.clock.Now()
	deadline := start.Add(c.confirmTimeout)
	ticker := c.clock.Ticker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.receipts.TransactionReceipt(c.ctx, hash)
		switch {
		case err == nil:
			metrics.ObserveConfirmationWait(c.clock.Since(start))
			if receipt.Status == types.ReceiptStatusSuccessful {
				c.confirm(pending, receipt)
				return
			}
			logger.Warnf("Quest transaction reverted in block %v", receipt.BlockNumber)
			c.fail(pending, &WriteFailure{Reason: ReasonReverted})
			return
		case errors.Is(err, ethereum.NotFound):
		default:
			logger.Warnf("Receipt lookup failed: %v", err)
		}

		if !c.clock.Now().Before(deadline) {
			logger.Errorf("No receipt after %v", c.confirmTimeout)
			c.fail(pending, &WriteFailure{Reason: ReasonUnreachable, Err: fmt.Errorf("no receipt after %v", c.confirmTimeout)})
			return
		}

		select {
		case <-c.ctx.Done():
			c.fail(pending, &WriteFailure{Reason: ReasonUnreachable, Err: c.ctx.Err()})
			return
		case <-ticker.C:
		}
	}
}

func (c *Controller) confirm(pending *Lifecycle, receipt *types.Receipt) {
	confirmed := pending.next(Confirmed, c.clock.Now())
	if !c.transition(pending, confirmed) {
		return
	}
	metrics.ObserveSubmission("confirmed")
	c.logger.WithFields(log.Fields{"txHash": confirmed.TxHash, "block": receipt.BlockNumber}).Info("Quest transaction confirmed")

	// only the write chain's own counter changes synchronously
	if c.refresher != nil {
		c.refresher.RefreshQuestCount(c.ctx, c.player)
	}
	if c.notifier != nil {
		c.notifier.OnConfirmed(confirmed.TxHash)
	}
}

func (c *Controller) fail(from *Lifecycle, failure *WriteFailure) (Lifecycle, error) {
	failed := from.failed(failure, c.clock.Now())
	c.transition(from, failed)
	metrics.ObserveSubmission(failure.Reason.String())
	return *failed, failure
}

// transition swaps the lifecycle only if it still holds from.
func (c *Controller) transition(from, to *Lifecycle) bool {
	if !c.lifecycle.CompareAndSwap(from, to) {
		return false
	}
	metrics.ObserveTransition(to.Phase.String())
	c.record(to)
	c.eventBus.Publish(state.LifecycleTransition, *to)
	return true
}

func (c *Controller) record(l *Lifecycle) {
	if c.journal == nil {
		return
	}
	err := c.journal.RecordTransition(&db.TxJournal{
		SubmissionId: l.SubmissionId,
		QuestId:      l.QuestId,
		ChainId:      l.ChainId,
		Phase:        l.Phase.String(),
		TxHash:       l.TxHash,
		Reason:       l.Reason.String(),
		Error:        l.Error,
		CreatedAt:    l.UpdatedAt,
	})
	if err != nil {
		c.logger.Warnf("Failed to journal %s transition: %v", l.Phase, err)
	}
}

// Stop ends the wallet step and pending confirmation waits, which fail as
// Unreachable. Later submits are refused.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}
