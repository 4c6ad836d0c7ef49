package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chainreactor/quest-relayer/internal/config"
	"github.com/ethereum/go-ethereum/common"
)

var ErrUnknownRole = errors.New("unknown endpoint role")

type Role int

const (
	RoleUnknown Role = iota
	QuestSource
	AchievementBadgeOfRecord
	RewardLedger
	BadgeTracker
)

func (r Role) String() string {
	names := [...]string{"Unknown", "QuestSource", "AchievementBadgeOfRecord", "RewardLedger", "BadgeTracker"}
	if r < 0 || int(r) >= len(names) {
		return names[0]
	}
	return names[r]
}

// Roles lists the fixed endpoint roles in display order.
func Roles() []Role {
	return []Role{QuestSource, AchievementBadgeOfRecord, RewardLedger, BadgeTracker}
}

// Read selectors, named after the contract methods.
const (
	MethodCompleteQuest       = "completeQuest"
	MethodGetPlayerQuestCount = "getPlayerQuestCount"
	MethodQuests              = "quests"
	MethodBalanceOf           = "balanceOf"
	MethodTotalMinted         = "totalMinted"
	MethodGetPlayerBadges     = "getPlayerBadges"
)

// Chain ids of the deployment.
const (
	PolygonAmoy     uint64 = 80002
	EthereumSepolia uint64 = 11155111
	BnbTestnet      uint64 = 97
	ArbitrumSepolia uint64 = 421614
)

type Chain struct {
	Id          uint64
	Name        string
	ExplorerURL string
}

var chains = map[uint64]Chain{
	PolygonAmoy:     {Id: PolygonAmoy, Name: "Polygon Amoy", ExplorerURL: "https://amoy.polygonscan.com"},
	EthereumSepolia: {Id: EthereumSepolia, Name: "Ethereum Sepolia", ExplorerURL: "https://sepolia.etherscan.io"},
	BnbTestnet:      {Id: BnbTestnet, Name: "BNB Testnet", ExplorerURL: "https://testnet.bscscan.com"},
	ArbitrumSepolia: {Id: ArbitrumSepolia, Name: "Arbitrum Sepolia", ExplorerURL: "https://sepolia.arbiscan.io"},
}

type Endpoint struct {
	Role          Role
	ChainId       uint64
	Address       common.Address
	RPCURL        string
	ReadSelectors map[string]struct{}
}

func (e Endpoint) CanRead(method string) bool {
	_, ok := e.ReadSelectors[method]
	return ok
}

// Registry is the immutable role to endpoint table for one process.
type Registry struct {
	writeChainId uint64
	endpoints    map[Role]Endpoint
}

type EndpointConfig struct {
	ChainId uint64
	Address string
	RPCURL  string
}

func New(writeChainId uint64, cfgs map[Role]EndpointConfig) (*Registry, error) {
	reg := &Registry{
		writeChainId: writeChainId,
		endpoints:    make(map[Role]Endpoint, len(cfgs)),
	}
	for _, role := range Roles() {
		cfg, ok := cfgs[role]
		if !ok {
			return nil, fmt.Errorf("missing endpoint config for %s", role)
		}
		if !common.IsHexAddress(cfg.Address) {
			return nil, fmt.Errorf("invalid %s contract address %q", role, cfg.Address)
		}
		reg.endpoints[role] = Endpoint{
			Role:          role,
			ChainId:       cfg.ChainId,
			Address:       common.HexToAddress(cfg.Address),
			RPCURL:        cfg.RPCURL,
			ReadSelectors: selectorsFor(role),
		}
	}
	if reg.endpoints[QuestSource].ChainId != writeChainId {
		return nil, fmt.Errorf("quest source is on chain %d, write chain is %d", reg.endpoints[QuestSource].ChainId, writeChainId)
	}
	return reg, nil
}

// NewFromConfig builds the registry from config.AppConfig using the
// deployment's chain layout.
func NewFromConfig() (*Registry, error) {
	cfg := config.AppConfig
	return New(cfg.WriteChainId, map[Role]EndpointConfig{
		QuestSource:              {ChainId: cfg.WriteChainId, Address: cfg.QuestContract, RPCURL: cfg.PolygonRPC},
		AchievementBadgeOfRecord: {ChainId: EthereumSepolia, Address: cfg.AchievementNFTContract, RPCURL: cfg.EthereumRPC},
		RewardLedger:             {ChainId: BnbTestnet, Address: cfg.RewardTokenContract, RPCURL: cfg.BnbRPC},
		BadgeTracker:             {ChainId: ArbitrumSepolia, Address: cfg.BadgeTrackerContract, RPCURL: cfg.ArbitrumRPC},
	})
}

func selectorsFor(role Role) map[string]struct{} {
	var methods []string
	switch role {
	case QuestSource:
		methods = []string{MethodGetPlayerQuestCount, MethodQuests}
	case AchievementBadgeOfRecord:
		methods = []string{MethodBalanceOf, MethodTotalMinted}
	case RewardLedger:
		methods = []string{MethodBalanceOf}
	case BadgeTracker:
		methods = []string{MethodGetPlayerBadges}
	}
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	return set
}

func (r *Registry) Resolve(role Role) (Endpoint, error) {
	ep, ok := r.endpoints[role]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %d", ErrUnknownRole, int(role))
	}
	return ep, nil
}

func (r *Registry) WriteChainId() uint64 {
	return r.writeChainId
}

// RPCURLs returns the configured RPC url per chain id.
func (r *Registry) RPCURLs() map[uint64]string {
	urls := make(map[uint64]string, len(r.endpoints))
	for _, ep := range r.endpoints {
		if ep.RPCURL != "" {
			urls[ep.ChainId] = ep.RPCURL
		}
	}
	return urls
}

// ChainInfo returns the metadata of a known chain, or a placeholder named
// after the id.
func ChainInfo(id uint64) Chain {
	if c, ok := chains[id]; ok {
		return c
	}
	return Chain{Id: id, Name: fmt.Sprintf("chain %d", id)}
}

// ExplorerTxURL builds {explorerBaseUrl}/tx/{hash}. Returns "" when the chain
// has no known explorer.
func ExplorerTxURL(chainId uint64, txHash string) string {
	c, ok := chains[chainId]
	if !ok || txHash == "" {
		return ""
	}
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + txHash
}
