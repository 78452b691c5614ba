/*
Package chaintest provides in-memory blockchain backend serving NodeList
contract calls for tests.
*/
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/arcana-network/nodelistctl/rpc/nodelist"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Call is a decoded contract call.
type Call struct {
	Method string
	Args   []any
}

// Handler returns values of the contract method outputs for the given call
// arguments.
type Handler func(args []any) ([]any, error)

// Backend imitates Ethereum JSON-RPC client. Zero value is not usable, use
// NewBackend.
type Backend struct {
	mtx sync.Mutex

	chainID *big.Int
	// nil means pre-London chain
	baseFee  *big.Int
	gasPrice *big.Int
	gasTip   *big.Int
	gas      uint64

	handlers map[string]Handler
	calls    []Call
	nonces   map[common.Address]uint64
	balances map[common.Address]*big.Int

	sent         []*types.Transaction
	blockNumber  *big.Int
	pendingPolls int
	polls        map[common.Hash]int
	failTx       bool
	logs         func(*types.Transaction) []*types.Log

	// errors to return from the corresponding methods
	CallErr    error
	SendErr    error
	ReceiptErr error
}

// NewBackend returns Backend of a London chain with the given ID. Receipts of
// sent transactions are available immediately and point to block 100.
func NewBackend(chainID int64) *Backend {
	return &Backend{
		chainID:     big.NewInt(chainID),
		baseFee:     big.NewInt(100_000_000),
		gasPrice:    big.NewInt(200_000_000),
		gasTip:      big.NewInt(1_000_000),
		gas:         50_000,
		handlers:    make(map[string]Handler),
		nonces:      make(map[common.Address]uint64),
		balances:    make(map[common.Address]*big.Int),
		blockNumber: big.NewInt(100),
		polls:       make(map[common.Hash]int),
	}
}

// Handle sets handler of the contract method.
func (b *Backend) Handle(method string, h Handler) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.handlers[method] = h
}

// Return makes the contract method return the given values.
func (b *Backend) Return(method string, vals ...any) {
	b.Handle(method, func([]any) ([]any, error) { return vals, nil })
}

// SetLegacy switches backend to the chain without base fee.
func (b *Backend) SetLegacy() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.baseFee = nil
}

// SetNonce sets nonce of the account.
func (b *Backend) SetNonce(acc common.Address, nonce uint64) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.nonces[acc] = nonce
}

// SetBalance sets balance of the account in wei.
func (b *Backend) SetBalance(acc common.Address, bal *big.Int) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.balances[acc] = bal
}

// SetBlockNumber sets block number of receipts.
func (b *Backend) SetBlockNumber(n int64) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.blockNumber = big.NewInt(n)
}

// SetPendingPolls makes receipt unavailable for the first n requests.
func (b *Backend) SetPendingPolls(n int) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.pendingPolls = n
}

// FailTransactions makes receipts of all transactions failed.
func (b *Backend) FailTransactions() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.failTx = true
}

// SetLogs sets function producing receipt logs of the transaction.
func (b *Backend) SetLogs(f func(*types.Transaction) []*types.Log) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.logs = f
}

// Calls returns all contract calls made so far.
func (b *Backend) Calls() []Call {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return append([]Call(nil), b.calls...)
}

// Sent returns all transactions sent so far.
func (b *Backend) Sent() []*types.Transaction {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// ChainIDValue returns chain ID of the backend.
func (b *Backend) ChainIDValue() *big.Int {
	return new(big.Int).Set(b.chainID)
}

// CallContract decodes NodeList method call and returns packed result of its
// handler.
func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if b.CallErr != nil {
		return nil, b.CallErr
	}

	call, err := DecodeCall(msg.Data)
	if err != nil {
		return nil, err
	}

	b.mtx.Lock()
	b.calls = append(b.calls, call)
	h, ok := b.handlers[call.Method]
	b.mtx.Unlock()

	if !ok {
		return nil, fmt.Errorf("execution reverted: no handler for %s", call.Method)
	}

	vals, err := h(call.Args)
	if err != nil {
		return nil, err
	}

	return nodelist.ABI.Methods[call.Method].Outputs.Pack(vals...)
}

// ChainID implements actor.RPCActor.
func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	return b.ChainIDValue(), nil
}

// NonceAt implements actor.RPCActor.
func (b *Backend) NonceAt(_ context.Context, acc common.Address, _ *big.Int) (uint64, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.nonces[acc], nil
}

// HeaderByNumber implements actor.RPCActor.
func (b *Backend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	var h = &types.Header{Number: new(big.Int).Set(b.blockNumber)}
	if b.baseFee != nil {
		h.BaseFee = new(big.Int).Set(b.baseFee)
	}
	return h, nil
}

// SuggestGasPrice implements actor.RPCActor.
func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.gasPrice), nil
}

// SuggestGasTipCap implements actor.RPCActor.
func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.gasTip), nil
}

// EstimateGas implements actor.RPCActor.
func (b *Backend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.gas, nil
}

// SendTransaction stores the transaction and increments nonce of its signer.
func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if b.SendErr != nil {
		return b.SendErr
	}

	from, err := Sender(tx)
	if err != nil {
		return err
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	if tx.Nonce() != b.nonces[from] {
		return fmt.Errorf("invalid nonce %d, expected %d", tx.Nonce(), b.nonces[from])
	}

	b.nonces[from]++
	b.sent = append(b.sent, tx)
	return nil
}

// TransactionReceipt returns receipt of the sent transaction or
// ethereum.NotFound.
func (b *Backend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	if b.ReceiptErr != nil {
		return nil, b.ReceiptErr
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	var tx *types.Transaction
	for i := range b.sent {
		if b.sent[i].Hash() == txHash {
			tx = b.sent[i]
			break
		}
	}
	if tx == nil {
		return nil, ethereum.NotFound
	}

	if b.polls[txHash] < b.pendingPolls {
		b.polls[txHash]++
		return nil, ethereum.NotFound
	}

	r := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		GasUsed:     tx.Gas(),
		BlockNumber: new(big.Int).Set(b.blockNumber),
	}
	if b.failTx {
		r.Status = types.ReceiptStatusFailed
	}
	if b.logs != nil {
		r.Logs = b.logs(tx)
	}

	return r, nil
}

// BalanceAt returns balance set by SetBalance or zero.
func (b *Backend) BalanceAt(_ context.Context, acc common.Address, _ *big.Int) (*big.Int, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if bal, ok := b.balances[acc]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

// DecodeCall decodes NodeList method call data.
func DecodeCall(data []byte) (Call, error) {
	if len(data) < 4 {
		return Call{}, errors.New("call data is too short")
	}

	m, err := nodelist.ABI.MethodById(data[:4])
	if err != nil {
		return Call{}, err
	}

	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return Call{}, fmt.Errorf("unpack %s arguments: %w", m.Name, err)
	}

	return Call{Method: m.Name, Args: args}, nil
}

// Sender recovers signer of the transaction.
func Sender(tx *types.Transaction) (common.Address, error) {
	return types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
}
