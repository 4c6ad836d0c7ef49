package guard

import (
	"fmt"

	"github.com/chainreactor/quest-relayer/internal/registry"
)

// NetworkDecision says whether a write may be sent from the wallet's current
// chain. CurrentChainId is nil when no wallet is connected.
type NetworkDecision struct {
	Allowed         bool    `json:"allowed"`
	RequiredChainId uint64  `json:"requiredChainId"`
	CurrentChainId  *uint64 `json:"currentChainId"`
}

func Evaluate(current *uint64, required uint64) NetworkDecision {
	d := NetworkDecision{
		Allowed:         current != nil && *current == required,
		RequiredChainId: required,
	}
	if current != nil {
		c := *current
		d.CurrentChainId = &c
	}
	return d
}

// Remediation is the wrong-network guidance, empty when allowed.
func (d NetworkDecision) Remediation() string {
	if d.Allowed {
		return ""
	}
	return fmt.Sprintf("Please switch to %s network", registry.ChainInfo(d.RequiredChainId).Name)
}

// SwitchLabel names the chain-switch action the caller should offer.
func (d NetworkDecision) SwitchLabel() string {
	if d.Allowed {
		return ""
	}
	return "Switch to " + registry.ChainInfo(d.RequiredChainId).Name
}
