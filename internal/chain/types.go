package chain

import (
	"math/big"

	"github.com/chainreactor/quest-relayer/internal/registry"
)

type Query int

const (
	QueryUnknown Query = iota
	QueryQuestCount
	QueryQuest
	QueryNFTBalance
	QueryTokenBalance
	QueryBadges
)

func (q Query) String() string {
	names := [...]string{"Unknown", "QuestCount", "Quest", "NFTBalance", "TokenBalance", "Badges"}
	if q < 0 || int(q) >= len(names) {
		return names[0]
	}
	return names[q]
}

// Method is the contract method backing the query.
func (q Query) Method() string {
	switch q {
	case QueryQuestCount:
		return registry.MethodGetPlayerQuestCount
	case QueryQuest:
		return registry.MethodQuests
	case QueryNFTBalance, QueryTokenBalance:
		return registry.MethodBalanceOf
	case QueryBadges:
		return registry.MethodGetPlayerBadges
	}
	return ""
}

// Quest mirrors the quests(id) storage slot of the quest contract.
type Quest struct {
	Id           uint64   `json:"id"`
	Name         string   `json:"name"`
	RewardAmount *big.Int `json:"rewardAmount"`
	Active       bool     `json:"active"`
}

// EmptyQuest is the default for a quest id that was never created.
func EmptyQuest(id uint64) Quest {
	return Quest{Id: id, RewardAmount: new(big.Int)}
}

func (q Quest) IsZero() bool {
	return q.Name == "" && !q.Active && (q.RewardAmount == nil || q.RewardAmount.Sign() == 0)
}

type BadgeCounts struct {
	Total      uint64 `json:"total"`
	Bronze     uint64 `json:"bronze"`
	Silver     uint64 `json:"silver"`
	Gold       uint64 `json:"gold"`
	LastUpdate uint64 `json:"lastUpdate"`
}
