package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/arcana-network/nodelistctl/rpc/nodelist"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const dialTimeout = 15 * time.Second

// wrapper over RPC client providing NodeList contract state at the fixed
// block.
type remoteBlockchain struct {
	client *ethclient.Client
	reader *nodelist.ContractReader

	currentBlock uint64
}

// newRemoteBlockChain dials RPC server and returns remoteBlockchain based on
// the opened connection. All contract calls are made at the block which was
// the latest one at dial time.
func newRemoteBlockChain(ctx context.Context, endpoint string, contract common.Address) (*remoteBlockchain, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c, err := ethclient.DialContext(dialCtx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("RPC client dial: %w", err)
	}

	nLatestBlock, err := c.BlockNumber(dialCtx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("get number of the latest block: %w", err)
	}

	return &remoteBlockchain{
		client:       c,
		reader:       nodelist.NewReader(atBlock(c, nLatestBlock), contract),
		currentBlock: nLatestBlock,
	}, nil
}

func (x *remoteBlockchain) close() {
	x.client.Close()
}

// blockInvoker makes all calls at the fixed block.
type blockInvoker struct {
	inv   nodelist.Invoker
	block *big.Int
}

func atBlock(inv nodelist.Invoker, block uint64) blockInvoker {
	return blockInvoker{inv: inv, block: new(big.Int).SetUint64(block)}
}

// CallContract implements nodelist.Invoker ignoring requested block.
func (x blockInvoker) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return x.inv.CallContract(ctx, call, x.block)
}
