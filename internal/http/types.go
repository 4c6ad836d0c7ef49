package http

import (
	"time"

	"github.com/chainreactor/quest-relayer/internal/aggregator"
	"github.com/chainreactor/quest-relayer/internal/chain"
	"github.com/chainreactor/quest-relayer/internal/guard"
	"github.com/chainreactor/quest-relayer/internal/txctl"
)

// StateView is the wire form of a snapshot. Unknown fields are null.
type StateView struct {
	Player          string                 `json:"player"`
	Sequence        uint64                 `json:"sequence"`
	RefreshedAt     time.Time              `json:"refreshedAt"`
	QuestsCompleted *uint64                `json:"questsCompleted"`
	Quest           *chain.Quest           `json:"quest"`
	NFTCount        *uint64                `json:"nftCount"`
	TokenBalance    *string                `json:"tokenBalance"`
	TokenDisplay    *string                `json:"tokenDisplay"`
	Badges          *chain.BadgeCounts     `json:"badges"`
	Failures        map[string]FailureView `json:"failures"`
}

type FailureView struct {
	Role    string `json:"role"`
	ChainId uint64 `json:"chainId"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

type NetworkView struct {
	guard.NetworkDecision
	RequiredChainName string `json:"requiredChainName"`
	Remediation       string `json:"remediation,omitempty"`
	SwitchLabel       string `json:"switchLabel,omitempty"`
}

type LifecycleView struct {
	Lifecycle     txctl.Lifecycle `json:"lifecycle"`
	ActionEnabled bool            `json:"actionEnabled"`
	ExplorerLink  string          `json:"explorerLink,omitempty"`
}

type SwitchRequest struct {
	ChainId uint64 `json:"chainId"`
}

func newStateView(s *aggregator.PlayerState) *StateView {
	if s == nil {
		return nil
	}
	v := &StateView{
		Player:          s.Player.Hex(),
		Sequence:        s.Sequence,
		RefreshedAt:     s.RefreshedAt,
		QuestsCompleted: s.QuestsCompleted,
		Quest:           s.Quest,
		NFTCount:        s.NFTCount,
		Badges:          s.Badges,
		Failures:        make(map[string]FailureView, len(s.Failures)),
	}
	if s.TokenBalance != nil {
		raw, display := s.TokenBalance.Dec(), s.TokenDisplay()
		v.TokenBalance, v.TokenDisplay = &raw, &display
	}
	for _, f := range s.Failures {
		fv := FailureView{Role: f.Role, ChainId: f.ChainId, Kind: f.Kind.String()}
		if f.Err != nil {
			fv.Error = f.Err.Error()
		}
		v.Failures[f.Field] = fv
	}
	return v
}

func newLifecycleView(l txctl.Lifecycle, decision guard.NetworkDecision) LifecycleView {
	return LifecycleView{
		Lifecycle:     l,
		ActionEnabled: txctl.ActionEnabled(l.Phase, decision),
		ExplorerLink:  l.ExplorerLink(),
	}
}
