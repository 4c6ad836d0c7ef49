package txctl

import (
	"errors"
	"fmt"
	"time"

	"github.com/chainreactor/quest-relayer/internal/guard"
	"github.com/chainreactor/quest-relayer/internal/registry"
)

type Phase int

const (
	Idle Phase = iota
	Submitting
	PendingConfirmation
	Confirmed
	Failed
)

func (p Phase) String() string {
	names := [...]string{"Idle", "Submitting", "PendingConfirmation", "Confirmed", "Failed"}
	if p < 0 || int(p) >= len(names) {
		return "Unknown"
	}
	return names[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// InFlight reports whether a submission owns the lifecycle.
func (p Phase) InFlight() bool {
	return p == Submitting || p == PendingConfirmation
}

func Phases() []Phase {
	return []Phase{Idle, Submitting, PendingConfirmation, Confirmed, Failed}
}

// ActionEnabled is the single predicate for the complete-quest affordance.
func ActionEnabled(phase Phase, decision guard.NetworkDecision) bool {
	return (phase == Idle || phase == Confirmed || phase == Failed) && decision.Allowed
}

type Reason int

const (
	ReasonNone Reason = iota
	ReasonWrongNetwork
	ReasonAlreadyInFlight
	ReasonUserRejected
	ReasonReverted
	ReasonUnreachable
)

var (
	ErrWrongNetwork    = errors.New("wallet is on the wrong network")
	ErrAlreadyInFlight = errors.New("a quest transaction is already in flight")
	ErrUserRejected    = errors.New("user rejected the transaction")
	ErrReverted        = errors.New("transaction reverted")
	ErrUnreachable     = errors.New("write chain unreachable")
)

func (r Reason) String() string {
	names := [...]string{"", "WrongNetwork", "AlreadyInFlight", "UserRejected", "Reverted", "Unreachable"}
	if r < 0 || int(r) >= len(names) {
		return ""
	}
	return names[r]
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r Reason) sentinel() error {
	switch r {
	case ReasonWrongNetwork:
		return ErrWrongNetwork
	case ReasonAlreadyInFlight:
		return ErrAlreadyInFlight
	case ReasonUserRejected:
		return ErrUserRejected
	case ReasonReverted:
		return ErrReverted
	case ReasonUnreachable:
		return ErrUnreachable
	}
	return nil
}

// WriteFailure ends one submission attempt. It matches its reason sentinel
// with errors.Is.
type WriteFailure struct {
	Reason Reason
	Err    error
}

func (f *WriteFailure) Error() string {
	if f.Err == nil {
		return f.Reason.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", f.Reason.sentinel(), f.Err)
}

func (f *WriteFailure) Unwrap() []error {
	errs := []error{f.Reason.sentinel()}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// Lifecycle is an immutable view of the session's single write. A transition
// replaces the whole value.
type Lifecycle struct {
	Phase        Phase     `json:"phase"`
	SubmissionId string    `json:"submissionId,omitempty"`
	QuestId      uint64    `json:"questId,omitempty"`
	ChainId      uint64    `json:"chainId,omitempty"`
	TxHash       string    `json:"txHash,omitempty"`
	Reason       Reason    `json:"reason,omitempty"`
	Error        string    `json:"error,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ExplorerLink is {explorerBaseUrl}/tx/{hash} for the tracked transaction.
func (l Lifecycle) ExplorerLink() string {
	return registry.ExplorerTxURL(l.ChainId, l.TxHash)
}

func (l *Lifecycle) next(phase Phase, now time.Time) *Lifecycle {
	n := *l
	n.Phase = phase
	n.UpdatedAt = now
	return &n
}

func (l *Lifecycle) failed(failure *WriteFailure, now time.Time) *Lifecycle {
	n := l.next(Failed, now)
	n.Reason = failure.Reason
	n.Error = failure.Error()
	return n
}
