package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfigs() map[Role]EndpointConfig {
	return map[Role]EndpointConfig{
		QuestSource:              {ChainId: PolygonAmoy, Address: "0x1000000000000000000000000000000000000001", RPCURL: "http://amoy"},
		AchievementBadgeOfRecord: {ChainId: EthereumSepolia, Address: "0x1000000000000000000000000000000000000002", RPCURL: "http://sepolia"},
		RewardLedger:             {ChainId: BnbTestnet, Address: "0x1000000000000000000000000000000000000003", RPCURL: "http://bnb"},
		BadgeTracker:             {ChainId: ArbitrumSepolia, Address: "0x1000000000000000000000000000000000000004", RPCURL: "http://arb"},
	}
}

func TestResolve(t *testing.T) {
	reg, err := New(PolygonAmoy, testConfigs())
	require.NoError(t, err)

	ep, err := reg.Resolve(RewardLedger)
	require.NoError(t, err)
	assert.Equal(t, BnbTestnet, ep.ChainId)
	assert.Equal(t, common.HexToAddress("0x1000000000000000000000000000000000000003"), ep.Address)
	assert.True(t, ep.CanRead(MethodBalanceOf))
	assert.False(t, ep.CanRead(MethodGetPlayerBadges))

	quest, err := reg.Resolve(QuestSource)
	require.NoError(t, err)
	assert.True(t, quest.CanRead(MethodQuests))
	assert.False(t, quest.CanRead(MethodCompleteQuest), "write method is not a read selector")

	_, err = reg.Resolve(RoleUnknown)
	assert.ErrorIs(t, err, ErrUnknownRole)
	_, err = reg.Resolve(Role(42))
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfgs := testConfigs()
	cfgs[BadgeTracker] = EndpointConfig{ChainId: ArbitrumSepolia, Address: "0x"}
	_, err := New(PolygonAmoy, cfgs)
	assert.Error(t, err)

	cfgs = testConfigs()
	delete(cfgs, RewardLedger)
	_, err = New(PolygonAmoy, cfgs)
	assert.Error(t, err)

	_, err = New(EthereumSepolia, testConfigs())
	assert.Error(t, err, "quest source must live on the write chain")
}

func TestExplorerTxURL(t *testing.T) {
	assert.Equal(t, "https://amoy.polygonscan.com/tx/0xabc", ExplorerTxURL(PolygonAmoy, "0xabc"))
	assert.Equal(t, "https://sepolia.arbiscan.io/tx/0x01", ExplorerTxURL(ArbitrumSepolia, "0x01"))
	assert.Equal(t, "", ExplorerTxURL(1, "0xabc"))
	assert.Equal(t, "", ExplorerTxURL(PolygonAmoy, ""))
}

func TestChainInfo(t *testing.T) {
	assert.Equal(t, "Polygon Amoy", ChainInfo(PolygonAmoy).Name)
	assert.Equal(t, "chain 1", ChainInfo(1).Name)
	assert.Equal(t, "Unknown", Role(9).String())
}
