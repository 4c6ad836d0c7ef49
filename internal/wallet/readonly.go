package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ReadOnly is a session with no signing key. It is never connected, so every
// write is refused as wrong network before reaching it.
type ReadOnly struct {
	Player common.Address
}

var _ Session = ReadOnly{}

func (r ReadOnly) Address() common.Address { return r.Player }

func (r ReadOnly) ChainID() (uint64, bool) { return 0, false }

func (r ReadOnly) SendTransaction(ctx context.Context, chainId uint64, to common.Address, data []byte) (common.Hash, error) {
	return common.Hash{}, ErrNotConnected
}
