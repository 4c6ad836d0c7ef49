package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// DialEthClient dials one EVM RPC endpoint.
func DialEthClient(ctx context.Context, url string) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(client), nil
}

// DialClients dials one client per chain id. Already dialed clients are
// closed when a later dial fails.
func DialClients(ctx context.Context, urls map[uint64]string) (map[uint64]*ethclient.Client, error) {
	clients := make(map[uint64]*ethclient.Client, len(urls))
	for chainId, url := range urls {
		client, err := DialEthClient(ctx, url)
		if err != nil {
			CloseClients(clients)
			return nil, fmt.Errorf("dial chain %d: %w", chainId, err)
		}
		clients[chainId] = client
	}
	return clients, nil
}

func CloseClients(clients map[uint64]*ethclient.Client) {
	for _, c := range clients {
		c.Close()
	}
}

// Callers narrows the clients to the read-only contract caller surface.
func Callers(clients map[uint64]*ethclient.Client) map[uint64]bind.ContractCaller {
	callers := make(map[uint64]bind.ContractCaller, len(clients))
	for chainId, c := range clients {
		callers[chainId] = c
	}
	return callers
}
