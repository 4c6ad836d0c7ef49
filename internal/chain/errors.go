package chain

import (
	"errors"
	"fmt"

	"github.com/chainreactor/quest-relayer/internal/registry"
)

var (
	ErrUnreachable = errors.New("chain unreachable")
	ErrMalformed   = errors.New("malformed response")
	ErrNotFound    = errors.New("not found")
)

type FailureKind int

const (
	Unreachable FailureKind = iota + 1
	Malformed
	NotFound
)

func (k FailureKind) String() string {
	switch k {
	case Unreachable:
		return "Unreachable"
	case Malformed:
		return "Malformed"
	case NotFound:
		return "NotFound"
	}
	return "Unknown"
}

func (k FailureKind) sentinel() error {
	switch k {
	case Unreachable:
		return ErrUnreachable
	case Malformed:
		return ErrMalformed
	case NotFound:
		return ErrNotFound
	}
	return nil
}

// ReadFailure is the classified outcome of a failed read. It matches
// ErrUnreachable, ErrMalformed or ErrNotFound with errors.Is.
type ReadFailure struct {
	Kind    FailureKind
	Role    registry.Role
	Query   Query
	ChainId uint64
	Err     error
}

func (f *ReadFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s %s on chain %d: %s", f.Role, f.Query, f.ChainId, f.Kind)
	}
	return fmt.Sprintf("%s %s on chain %d: %s: %v", f.Role, f.Query, f.ChainId, f.Kind, f.Err)
}

func (f *ReadFailure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind.sentinel()}
	}
	return []error{f.Kind.sentinel(), f.Err}
}

// KindOf returns the failure kind carried by err, or 0 when err is not a read failure.
func KindOf(err error) FailureKind {
	var f *ReadFailure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}
