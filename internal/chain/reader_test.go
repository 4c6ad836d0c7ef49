package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/chainreactor/quest-relayer/internal/chain/abis"
	"github.com/chainreactor/quest-relayer/internal/registry"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var player = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type fakeCaller struct {
	output []byte
	code   []byte
	err    error
	calls  int
}

func (f *fakeCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return f.code, nil
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	return f.output, f.err
}

func endpoint(t *testing.T, role registry.Role, chainId uint64) registry.Endpoint {
	reg, err := registry.New(registry.PolygonAmoy, map[registry.Role]registry.EndpointConfig{
		registry.QuestSource:              {ChainId: registry.PolygonAmoy, Address: "0x1000000000000000000000000000000000000001"},
		registry.AchievementBadgeOfRecord: {ChainId: registry.EthereumSepolia, Address: "0x1000000000000000000000000000000000000002"},
		registry.RewardLedger:             {ChainId: registry.BnbTestnet, Address: "0x1000000000000000000000000000000000000003"},
		registry.BadgeTracker:             {ChainId: registry.ArbitrumSepolia, Address: "0x1000000000000000000000000000000000000004"},
	})
	require.NoError(t, err)
	ep, err := reg.Resolve(role)
	require.NoError(t, err)
	require.Equal(t, chainId, ep.ChainId)
	return ep
}

func packOutputs(t *testing.T, meta *bind.MetaData, method string, values ...interface{}) []byte {
	contractAbi, err := meta.GetAbi()
	require.NoError(t, err)
	out, err := contractAbi.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func newReader(t *testing.T, chainId uint64, caller bind.ContractCaller) *EthReader {
	r, err := NewEthReader(map[uint64]bind.ContractCaller{chainId: caller}, 0)
	require.NoError(t, err)
	return r
}

func TestReadQuestCount(t *testing.T) {
	caller := &fakeCaller{output: packOutputs(t, abis.QuestContractMetaData, registry.MethodGetPlayerQuestCount, big.NewInt(3))}
	r := newReader(t, registry.PolygonAmoy, caller)

	v, err := r.Read(context.Background(), endpoint(t, registry.QuestSource, registry.PolygonAmoy), QueryQuestCount, player)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)
	assert.Equal(t, 1, caller.calls)
}

func TestReadTokenBalance(t *testing.T) {
	raw, _ := new(big.Int).SetString("20000000000000000000", 10)
	caller := &fakeCaller{output: packOutputs(t, abis.RewardTokenMetaData, registry.MethodBalanceOf, raw)}
	r := newReader(t, registry.BnbTestnet, caller)

	v, err := r.Read(context.Background(), endpoint(t, registry.RewardLedger, registry.BnbTestnet), QueryTokenBalance, player)
	require.NoError(t, err)
	assert.Equal(t, uint256.MustFromBig(raw), v)
}

func TestReadBadges(t *testing.T) {
	caller := &fakeCaller{output: packOutputs(t, abis.BadgeTrackerMetaData, registry.MethodGetPlayerBadges,
		big.NewInt(2), big.NewInt(1), big.NewInt(1), big.NewInt(0), big.NewInt(1700000000))}
	r := newReader(t, registry.ArbitrumSepolia, caller)

	v, err := r.Read(context.Background(), endpoint(t, registry.BadgeTracker, registry.ArbitrumSepolia), QueryBadges, player)
	require.NoError(t, err)
	assert.Equal(t, BadgeCounts{Total: 2, Bronze: 1, Silver: 1, Gold: 0, LastUpdate: 1700000000}, v)
}

func TestReadQuest(t *testing.T) {
	caller := &fakeCaller{output: packOutputs(t, abis.QuestContractMetaData, registry.MethodQuests, "Collect 5 Items", big.NewInt(100), true)}
	r := newReader(t, registry.PolygonAmoy, caller)

	v, err := r.Read(context.Background(), endpoint(t, registry.QuestSource, registry.PolygonAmoy), QueryQuest, big.NewInt(1))
	require.NoError(t, err)
	quest := v.(Quest)
	assert.Equal(t, uint64(1), quest.Id)
	assert.Equal(t, "Collect 5 Items", quest.Name)
	assert.Equal(t, int64(100), quest.RewardAmount.Int64())
	assert.True(t, quest.Active)
}

func TestReadQuestUndefinedIsNotFound(t *testing.T) {
	caller := &fakeCaller{output: packOutputs(t, abis.QuestContractMetaData, registry.MethodQuests, "", big.NewInt(0), false)}
	r := newReader(t, registry.PolygonAmoy, caller)

	_, err := r.Read(context.Background(), endpoint(t, registry.QuestSource, registry.PolygonAmoy), QueryQuest, big.NewInt(9))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, NotFound, KindOf(err))
}

func TestReadFailureClassification(t *testing.T) {
	ep := endpoint(t, registry.AchievementBadgeOfRecord, registry.EthereumSepolia)

	tests := []struct {
		name   string
		caller *fakeCaller
		want   error
	}{
		{"rpc error", &fakeCaller{err: errors.New("dial tcp: connection refused")}, ErrUnreachable},
		{"no code", &fakeCaller{}, ErrNotFound},
		{"empty output with code", &fakeCaller{code: []byte{0x60}}, ErrMalformed},
		{"short output", &fakeCaller{output: []byte{0x01, 0x02}}, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReader(t, registry.EthereumSepolia, tt.caller)
			v, err := r.Read(context.Background(), ep, QueryNFTBalance, player)
			assert.Nil(t, v)
			assert.ErrorIs(t, err, tt.want)

			var failure *ReadFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, registry.AchievementBadgeOfRecord, failure.Role)
			assert.Equal(t, registry.EthereumSepolia, failure.ChainId)
		})
	}
}

func TestReadWithoutClientIsUnreachable(t *testing.T) {
	r := newReader(t, registry.PolygonAmoy, &fakeCaller{})
	_, err := r.Read(context.Background(), endpoint(t, registry.BadgeTracker, registry.ArbitrumSepolia), QueryBadges, player)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestReadRejectsForeignSelector(t *testing.T) {
	caller := &fakeCaller{}
	r := newReader(t, registry.BnbTestnet, caller)
	_, err := r.Read(context.Background(), endpoint(t, registry.RewardLedger, registry.BnbTestnet), QueryBadges, player)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Zero(t, caller.calls, "schema mismatch never reaches the chain")
}
