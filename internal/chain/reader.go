package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chainreactor/quest-relayer/internal/chain/abis"
	"github.com/chainreactor/quest-relayer/internal/registry"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"
)

// Reader performs one read-only query against the chain of an endpoint.
//
// Values by query: QueryQuestCount and QueryNFTBalance return uint64,
// QueryTokenBalance returns *uint256.Int, QueryQuest returns Quest and
// QueryBadges returns BadgeCounts.
type Reader interface {
	Read(ctx context.Context, ep registry.Endpoint, query Query, args ...interface{}) (interface{}, error)
}

type EthReader struct {
	callers map[uint64]bind.ContractCaller
	abis    map[registry.Role]*abi.ABI
	timeout time.Duration
	logger  *log.Entry
}

var _ Reader = (*EthReader)(nil)

// NewEthReader binds one caller per chain id. Reads never go through the
// wallet, so any endpoint can be queried regardless of the connected chain.
func NewEthReader(callers map[uint64]bind.ContractCaller, timeout time.Duration) (*EthReader, error) {
	metas := map[registry.Role]*bind.MetaData{
		registry.QuestSource:              abis.QuestContractMetaData,
		registry.AchievementBadgeOfRecord: abis.AchievementNFTMetaData,
		registry.RewardLedger:             abis.RewardTokenMetaData,
		registry.BadgeTracker:             abis.BadgeTrackerMetaData,
	}
	parsed := make(map[registry.Role]*abi.ABI, len(metas))
	for role, meta := range metas {
		contractAbi, err := meta.GetAbi()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s abi: %w", role, err)
		}
		parsed[role] = contractAbi
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EthReader{
		callers: callers,
		abis:    parsed,
		timeout: timeout,
		logger: log.WithFields(log.Fields{
			"module": "chain_reader",
		}),
	}, nil
}

func (r *EthReader) Read(ctx context.Context, ep registry.Endpoint, query Query, args ...interface{}) (interface{}, error) {
	fail := func(kind FailureKind, err error) (interface{}, error) {
		return nil, &ReadFailure{Kind: kind, Role: ep.Role, Query: query, ChainId: ep.ChainId, Err: err}
	}

	caller, ok := r.callers[ep.ChainId]
	if !ok {
		return fail(Unreachable, fmt.Errorf("no client for chain %d", ep.ChainId))
	}
	method := query.Method()
	if method == "" || !ep.CanRead(method) {
		return fail(Malformed, fmt.Errorf("%s is not readable on %s", query, ep.Role))
	}
	contractAbi, ok := r.abis[ep.Role]
	if !ok {
		return fail(Malformed, fmt.Errorf("no abi for %s", ep.Role))
	}
	m, ok := contractAbi.Methods[method]
	if !ok {
		return fail(Malformed, fmt.Errorf("method %s missing from abi", method))
	}
	input, err := contractAbi.Pack(method, args...)
	if err != nil {
		return fail(Malformed, fmt.Errorf("pack %s: %w", method, err))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	to := ep.Address
	output, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return fail(Unreachable, err)
	}
	if len(output) == 0 {
		code, err := caller.CodeAt(ctx, ep.Address, nil)
		if err != nil {
			return fail(Unreachable, err)
		}
		if len(code) == 0 {
			return fail(NotFound, bind.ErrNoCode)
		}
		return fail(Malformed, errors.New("empty response from contract"))
	}

	values, err := m.Outputs.Unpack(output)
	if err != nil {
		return fail(Malformed, err)
	}
	value, kind, err := decode(query, values, args)
	if err != nil {
		return fail(kind, err)
	}
	r.logger.WithFields(log.Fields{
		"role":  ep.Role.String(),
		"query": query.String(),
		"chain": ep.ChainId,
	}).Debug("Read ok")
	return value, nil
}

func decode(query Query, values []interface{}, args []interface{}) (interface{}, FailureKind, error) {
	switch query {
	case QueryQuestCount, QueryNFTBalance:
		n, err := uint64At(values, 0)
		if err != nil {
			return nil, Malformed, err
		}
		return n, 0, nil
	case QueryTokenBalance:
		raw, err := bigAt(values, 0)
		if err != nil {
			return nil, Malformed, err
		}
		balance, overflow := uint256.FromBig(raw)
		if overflow {
			return nil, Malformed, fmt.Errorf("balance %s overflows uint256", raw)
		}
		return balance, 0, nil
	case QueryQuest:
		if len(values) != 3 {
			return nil, Malformed, fmt.Errorf("quest has %d fields, want 3", len(values))
		}
		name, ok1 := values[0].(string)
		reward, ok2 := values[1].(*big.Int)
		active, ok3 := values[2].(bool)
		if !ok1 || !ok2 || !ok3 {
			return nil, Malformed, errors.New("unexpected quest field types")
		}
		var id uint64
		if len(args) > 0 {
			if questId, ok := args[0].(*big.Int); ok && questId.IsUint64() {
				id = questId.Uint64()
			}
		}
		quest := Quest{Id: id, Name: name, RewardAmount: reward, Active: active}
		if quest.IsZero() {
			return nil, NotFound, fmt.Errorf("quest %d is not defined", id)
		}
		return quest, 0, nil
	case QueryBadges:
		var counts [5]uint64
		if len(values) != len(counts) {
			return nil, Malformed, fmt.Errorf("badges has %d fields, want 5", len(values))
		}
		for i := range counts {
			n, err := uint64At(values, i)
			if err != nil {
				return nil, Malformed, err
			}
			counts[i] = n
		}
		return BadgeCounts{
			Total:      counts[0],
			Bronze:     counts[1],
			Silver:     counts[2],
			Gold:       counts[3],
			LastUpdate: counts[4],
		}, 0, nil
	}
	return nil, Malformed, fmt.Errorf("unsupported query %s", query)
}

func bigAt(values []interface{}, i int) (*big.Int, error) {
	if i >= len(values) {
		return nil, fmt.Errorf("missing output %d", i)
	}
	v, ok := values[i].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("output %d is %T, want *big.Int", i, values[i])
	}
	return v, nil
}

func uint64At(values []interface{}, i int) (uint64, error) {
	v, err := bigAt(values, i)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("output %d value %s exceeds uint64", i, v)
	}
	return v.Uint64(), nil
}
