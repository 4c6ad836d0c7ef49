package aggregator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chainreactor/quest-relayer/internal/chain"
	"github.com/chainreactor/quest-relayer/internal/metrics"
	"github.com/chainreactor/quest-relayer/internal/registry"
	"github.com/chainreactor/quest-relayer/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"
)

type EndpointResolver interface {
	Resolve(role registry.Role) (registry.Endpoint, error)
}

// Aggregator merges the four endpoints into PlayerState snapshots.
//
// Every refresh takes a sequence number when it starts and publishes only if
// no snapshot with a higher sequence is already out, so a slow refresh that
// loses the race to a newer one is dropped instead of overwriting it.
type Aggregator struct {
	endpoints EndpointResolver
	reader    chain.Reader
	questId   uint64
	eventBus  *state.EventBus
	clock     clock.Clock
	logger    *log.Entry

	seq    atomic.Uint64
	latest atomic.Pointer[PlayerState]
}

// NewAggregator builds an aggregator. A nil clk uses the wall clock.
func NewAggregator(endpoints EndpointResolver, reader chain.Reader, questId uint64, eventBus *state.EventBus, clk clock.Clock) *Aggregator {
	if clk == nil {
		clk = clock.New()
	}
	return &Aggregator{
		endpoints: endpoints,
		reader:    reader,
		questId:   questId,
		eventBus:  eventBus,
		clock:     clk,
		logger: log.WithFields(log.Fields{
			"module": "aggregator",
		}),
	}
}

// Snapshot returns the latest published snapshot, nil before the first one.
func (a *Aggregator) Snapshot() *PlayerState {
	return a.latest.Load()
}

func (a *Aggregator) QuestId() uint64 {
	return a.questId
}

// Refresh reads all endpoints concurrently and publishes the merged result.
// When a newer snapshot was published while this one was in flight, the
// newer snapshot is returned and this result is discarded.
func (a *Aggregator) Refresh(ctx context.Context, player common.Address) *PlayerState {
	start := a.clock.Now()
	draft := &PlayerState{
		Player:   player,
		Sequence: a.seq.Add(1),
	}

	var (
		wg sync.WaitGroup

		questCount uint64
		quest      chain.Quest
		nftCount   uint64
		balance    *uint256.Int
		badges     chain.BadgeCounts

		errs [5]error
	)
	questId := new(big.Int).SetUint64(a.questId)

	wg.Add(5)
	go func() {
		defer wg.Done()
		errs[0] = a.read(ctx, registry.QuestSource, chain.QueryQuestCount, &questCount, player)
	}()
	go func() {
		defer wg.Done()
		errs[1] = a.read(ctx, registry.QuestSource, chain.QueryQuest, &quest, questId)
	}()
	go func() {
		defer wg.Done()
		errs[2] = a.read(ctx, registry.AchievementBadgeOfRecord, chain.QueryNFTBalance, &nftCount, player)
	}()
	go func() {
		defer wg.Done()
		errs[3] = a.read(ctx, registry.RewardLedger, chain.QueryTokenBalance, &balance, player)
	}()
	go func() {
		defer wg.Done()
		errs[4] = a.read(ctx, registry.BadgeTracker, chain.QueryBadges, &badges, player)
	}()
	wg.Wait()

	a.merge(draft, FieldQuestsCompleted, registry.QuestSource, errs[0], func() { draft.QuestsCompleted = &questCount })
	a.merge(draft, FieldQuest, registry.QuestSource, errs[1], func() {
		if quest.RewardAmount == nil {
			quest = chain.EmptyQuest(a.questId)
		}
		draft.Quest = &quest
	})
	a.merge(draft, FieldNFTCount, registry.AchievementBadgeOfRecord, errs[2], func() { draft.NFTCount = &nftCount })
	a.merge(draft, FieldTokenBalance, registry.RewardLedger, errs[3], func() {
		if balance == nil {
			balance = new(uint256.Int)
		}
		draft.TokenBalance = balance
	})
	a.merge(draft, FieldBadges, registry.BadgeTracker, errs[4], func() { draft.Badges = &badges })

	draft.RefreshedAt = a.clock.Now()
	published, ok := a.publish(draft.Sequence, func(*PlayerState) *PlayerState { return draft })
	metrics.ObserveRefresh("full", ok, a.clock.Since(start))
	return published
}

// RefreshQuestCount re-reads only the write chain's quest counter and
// publishes the latest snapshot with that one field replaced. Without a
// snapshot for player there is nothing to patch, so it does a full Refresh.
func (a *Aggregator) RefreshQuestCount(ctx context.Context, player common.Address) *PlayerState {
	if base := a.latest.Load(); base == nil || base.Player != player {
		return a.Refresh(ctx, player)
	}
	start := a.clock.Now()
	seq := a.seq.Add(1)

	var questCount uint64
	err := a.read(ctx, registry.QuestSource, chain.QueryQuestCount, &questCount, player)
	var chainId uint64
	if err != nil {
		chainId = a.logFailure(FieldQuestsCompleted, registry.QuestSource, err)
	}
	refreshedAt := a.clock.Now()

	// the patch is reapplied to whichever snapshot is current at each CAS attempt
	published, ok := a.publish(seq, questCountPatch(player, seq, refreshedAt, questCount, chainId, err))
	metrics.ObserveRefresh("quest_count", ok, a.clock.Since(start))
	if published == nil || published.Player != player {
		return a.Refresh(ctx, player)
	}
	return published
}

// questCountPatch copies base with the quest counter replaced by count, or
// marked unknown when err is set. It returns nil for another player's base.
func questCountPatch(player common.Address, seq uint64, at time.Time, count, chainId uint64, err error) func(*PlayerState) *PlayerState {
	return func(base *PlayerState) *PlayerState {
		if base == nil || base.Player != player {
			return nil
		}
		draft := base.clone()
		draft.Sequence = seq
		draft.RefreshedAt = at
		draft.QuestsCompleted = nil
		draft.clearFailure(FieldQuestsCompleted)
		if err != nil {
			draft.setFailure(FieldQuestsCompleted, registry.QuestSource, chainId, err)
			return draft
		}
		draft.QuestsCompleted = &count
		return draft
	}
}

// Quest reads one quest from the write chain without touching the snapshot.
// A quest that was never created comes back as EmptyQuest.
func (a *Aggregator) Quest(ctx context.Context, id uint64) (chain.Quest, error) {
	var quest chain.Quest
	if err := a.read(ctx, registry.QuestSource, chain.QueryQuest, &quest, new(big.Int).SetUint64(id)); err != nil {
		return chain.Quest{}, err
	}
	if quest.RewardAmount == nil {
		quest = chain.EmptyQuest(id)
	}
	return quest, nil
}

// read resolves the role and stores the typed value in out. NotFound leaves
// out at its zero value and returns nil.
func (a *Aggregator) read(ctx context.Context, role registry.Role, query chain.Query, out interface{}, args ...interface{}) error {
	ep, err := a.endpoints.Resolve(role)
	if err != nil {
		return &chain.ReadFailure{Kind: chain.Malformed, Role: role, Query: query, Err: err}
	}
	v, err := a.reader.Read(ctx, ep, query, args...)
	if err != nil {
		kind := chain.KindOf(err)
		if kind == 0 {
			// readers are expected to classify, treat anything else as transport
			err = &chain.ReadFailure{Kind: chain.Unreachable, Role: role, Query: query, ChainId: ep.ChainId, Err: err}
			kind = chain.Unreachable
		}
		metrics.ObserveRead(role.String(), kind.String())
		if kind == chain.NotFound {
			a.logger.WithFields(log.Fields{"role": role.String(), "query": query.String()}).Debugf("Read not found, using default: %v", err)
			return nil
		}
		return err
	}
	metrics.ObserveRead(role.String(), "ok")

	ok := false
	switch dst := out.(type) {
	case *uint64:
		var n uint64
		n, ok = v.(uint64)
		*dst = n
	case *chain.Quest:
		var q chain.Quest
		q, ok = v.(chain.Quest)
		*dst = q
	case **uint256.Int:
		var b *uint256.Int
		b, ok = v.(*uint256.Int)
		*dst = b
	case *chain.BadgeCounts:
		var b chain.BadgeCounts
		b, ok = v.(chain.BadgeCounts)
		*dst = b
	}
	if !ok {
		return &chain.ReadFailure{Kind: chain.Malformed, Role: role, Query: query, ChainId: ep.ChainId, Err: fmt.Errorf("unexpected value type %T", v)}
	}
	return nil
}

func (a *Aggregator) merge(draft *PlayerState, field string, role registry.Role, err error, set func()) {
	if err == nil {
		set()
		return
	}
	draft.setFailure(field, role, a.logFailure(field, role, err), err)
}

// logFailure reports a field left unknown and returns the chain it was read from.
func (a *Aggregator) logFailure(field string, role registry.Role, err error) uint64 {
	var chainId uint64
	if ep, rerr := a.endpoints.Resolve(role); rerr == nil {
		chainId = ep.ChainId
	}
	a.logger.WithFields(log.Fields{
		"field": field,
		"role":  role.String(),
		"chain": chainId,
	}).Warnf("Field unknown in snapshot: %v", err)
	return chainId
}

// publish installs the snapshot build derives from the current one, unless a
// newer snapshot than seq is already published, in which case the newer one
// is returned with ok false. build runs again after every lost CAS and may
// return nil to give up.
func (a *Aggregator) publish(seq uint64, build func(base *PlayerState) *PlayerState) (*PlayerState, bool) {
	for {
		cur := a.latest.Load()
		if cur != nil && cur.Sequence > seq {
			a.logger.Debugf("Discard stale snapshot %d, %d already published", seq, cur.Sequence)
			return cur, false
		}
		s := build(cur)
		if s == nil {
			return cur, false
		}
		if a.latest.CompareAndSwap(cur, s) {
			a.eventBus.Publish(state.SnapshotPublished, s)
			return s, true
		}
	}
}

// Start re-polls all endpoints at a fixed interval until ctx is done. No
// backoff: reads are idempotent.
func (a *Aggregator) Start(ctx context.Context, player common.Address, interval time.Duration) {
	if interval <= 0 {
		a.logger.Info("Aggregator poller disabled")
		<-ctx.Done()
		return
	}
	ticker := a.clock.Ticker(interval)
	defer ticker.Stop()

	a.logger.Infof("Aggregator poller started, interval %v", interval)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Aggregator poller stopped")
			return
		case <-ticker.C:
			a.Refresh(ctx, player)
		}
	}
}
