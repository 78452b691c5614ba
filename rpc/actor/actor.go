/*
Package actor provides an Actor that composes, signs and sends transactions
to an EVM-compatible blockchain on behalf of a single local account.

Nonce is fetched from the chain for each transaction, gas limit is estimated
and fees are taken from the node suggestions, so no fee policy is applied
here. Sent transactions are never retried.
*/
package actor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultPollInterval is the interval between receipt requests made by
// [Actor.Wait] when no other is specified in [Options].
const DefaultPollInterval = time.Second

// ErrTxFailed is returned by [Actor.Wait] for transactions included in a block
// with failed execution status.
var ErrTxFailed = errors.New("transaction execution failed")

// RPCActor groups blockchain client functions needed to compose and send
// transactions. It's implemented by *ethclient.Client.
type RPCActor interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Options are tuning parameters of the [Actor].
type Options struct {
	// Interval between receipt polls, DefaultPollInterval if zero.
	PollInterval time.Duration
}

// Actor signs transactions with a single private key.
type Actor struct {
	client       RPCActor
	key          *ecdsa.PrivateKey
	sender       common.Address
	chainID      *big.Int
	pollInterval time.Duration
}

// New creates an Actor with default Options. Chain ID is requested from the
// network once.
func New(ctx context.Context, client RPCActor, key *ecdsa.PrivateKey) (*Actor, error) {
	return NewTuned(ctx, client, key, Options{})
}

// NewTuned is similar to New, but allows to specify Options.
func NewTuned(ctx context.Context, client RPCActor, key *ecdsa.PrivateKey, opts Options) (*Actor, error) {
	if key == nil {
		return nil, errors.New("missing private key")
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain ID: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Actor{
		client:       client,
		key:          key,
		sender:       crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		pollInterval: opts.PollInterval,
	}, nil
}

// Sender returns address of the account transactions are signed by.
func (a *Actor) Sender() common.Address {
	return a.sender
}

// ChainID returns chain ID transactions are signed for.
func (a *Actor) ChainID() *big.Int {
	return new(big.Int).Set(a.chainID)
}

// CallContract implements nodelist.Invoker by passing the call to the
// underlying client.
func (a *Actor) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return a.client.CallContract(ctx, call, blockNumber)
}

// MakeUnsignedCall creates an unsigned transaction calling the given contract
// with the given call data.
func (a *Actor) MakeUnsignedCall(ctx context.Context, contract common.Address, data []byte) (*types.Transaction, error) {
	return a.makeUnsigned(ctx, &contract, new(big.Int), data)
}

// MakeCall is similar to MakeUnsignedCall, but also signs the transaction.
func (a *Actor) MakeCall(ctx context.Context, contract common.Address, data []byte) (*types.Transaction, error) {
	tx, err := a.MakeUnsignedCall(ctx, contract, data)
	if err != nil {
		return nil, err
	}
	return a.Sign(tx)
}

// SendCall creates a transaction calling the given contract, signs it and
// sends to the network. The value returned is the transaction hash.
func (a *Actor) SendCall(ctx context.Context, contract common.Address, data []byte) (common.Hash, error) {
	tx, err := a.MakeCall(ctx, contract, data)
	if err != nil {
		return common.Hash{}, err
	}
	return a.Send(ctx, tx)
}

// MakeValueTransfer creates a signed transaction transferring amount of the
// native currency (in its smallest units) to the given address.
func (a *Actor) MakeValueTransfer(ctx context.Context, to common.Address, amount *big.Int) (*types.Transaction, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %v", amount)
	}

	tx, err := a.makeUnsigned(ctx, &to, amount, nil)
	if err != nil {
		return nil, err
	}
	return a.Sign(tx)
}

// SendValue is similar to MakeValueTransfer, but also sends the transaction.
func (a *Actor) SendValue(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	tx, err := a.MakeValueTransfer(ctx, to, amount)
	if err != nil {
		return common.Hash{}, err
	}
	return a.Send(ctx, tx)
}

// Sign signs the transaction with the Actor's key for its chain.
func (a *Actor) Sign(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.chainID), a.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

// Send submits the signed transaction to the network.
func (a *Actor) Send(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	err := a.client.SendTransaction(ctx, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return tx.Hash(), nil
}

// Wait blocks until the receipt of the transaction with the given hash is
// available or the context is done. Receipt of the failed transaction is
// returned along with ErrTxFailed.
func (a *Actor) Wait(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		r, err := a.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			if r.Status != types.ReceiptStatusSuccessful {
				return r, fmt.Errorf("%w: %s in block %v", ErrTxFailed, txHash, r.BlockNumber)
			}
			return r, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("get receipt of %s: %w", txHash, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *Actor) makeUnsigned(ctx context.Context, to *common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	nonce, err := a.client.NonceAt(ctx, a.sender, nil)
	if err != nil {
		return nil, fmt.Errorf("get nonce of %s: %w", a.sender, err)
	}

	gas, err := a.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  a.sender,
		To:    to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	head, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get latest header: %w", err)
	}

	if head.BaseFee == nil {
		// pre-London network
		gasPrice, err := a.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}

		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       to,
			Value:    value,
			Data:     data,
		}), nil
	}

	tip, err := a.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip cap: %w", err)
	}

	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   a.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        to,
		Value:     value,
		Data:      data,
	}), nil
}

// KeyFromHex decodes secp256k1 private key from hex string with optional
// 0x prefix.
func KeyFromHex(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return key, nil
}

// AddressFromKey returns account address corresponding to the private key.
func AddressFromKey(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
