package aggregator

import (
	"fmt"
	"strings"
	"time"

	"github.com/chainreactor/quest-relayer/internal/chain"
	"github.com/chainreactor/quest-relayer/internal/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RewardTokenDecimals is the fixed point scale of the reward ledger.
const RewardTokenDecimals = 18

// Snapshot field names, used to key failures.
const (
	FieldQuestsCompleted = "questsCompleted"
	FieldQuest           = "quest"
	FieldNFTCount        = "nftCount"
	FieldTokenBalance    = "tokenBalance"
	FieldBadges          = "badges"
)

type FieldFailure struct {
	Field   string            `json:"field"`
	Role    string            `json:"role"`
	ChainId uint64            `json:"chainId"`
	Kind    chain.FailureKind `json:"-"`
	Err     error             `json:"-"`
}

func (f FieldFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Field, f.Err)
}

// PlayerState is one published snapshot. A nil field is unknown: its
// endpoint was unreachable or answered with something undecodable. A
// published PlayerState is never modified.
type PlayerState struct {
	Player      common.Address
	Sequence    uint64
	RefreshedAt time.Time

	QuestsCompleted *uint64
	Quest           *chain.Quest
	NFTCount        *uint64
	TokenBalance    *uint256.Int
	Badges          *chain.BadgeCounts

	Failures []FieldFailure
}

// TokenDisplay renders the token balance in whole tokens, "" when unknown.
func (s *PlayerState) TokenDisplay() string {
	if s == nil || s.TokenBalance == nil {
		return ""
	}
	return FormatUnits(s.TokenBalance, RewardTokenDecimals)
}

func (s *PlayerState) Failure(field string) (FieldFailure, bool) {
	for _, f := range s.Failures {
		if f.Field == field {
			return f, true
		}
	}
	return FieldFailure{}, false
}

func (s *PlayerState) clone() *PlayerState {
	cp := *s
	cp.Failures = append([]FieldFailure(nil), s.Failures...)
	return &cp
}

func (s *PlayerState) setFailure(field string, role registry.Role, chainId uint64, err error) {
	s.clearFailure(field)
	s.Failures = append(s.Failures, FieldFailure{
		Field:   field,
		Role:    role.String(),
		ChainId: chainId,
		Kind:    chain.KindOf(err),
		Err:     err,
	})
}

func (s *PlayerState) clearFailure(field string) {
	kept := s.Failures[:0:0]
	for _, f := range s.Failures {
		if f.Field != field {
			kept = append(kept, f)
		}
	}
	s.Failures = kept
}

// FormatUnits scales v down by 10^decimals, trimming trailing zeros of the
// fraction: 20000000000000000000 with 18 decimals is "20".
func FormatUnits(v *uint256.Int, decimals uint8) string {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	whole := new(uint256.Int).Div(v, scale)
	frac := new(uint256.Int).Mod(v, scale)
	if frac.IsZero() {
		return whole.Dec()
	}
	fracStr := frac.Dec()
	if pad := int(decimals) - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	return whole.Dec() + "." + strings.TrimRight(fracStr, "0")
}
