// Package nodelist contains RPC wrappers for the NodeList registry contract.
package nodelist

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

//go:embed nodelist.abi.json
var abiJSON string

// ABI is the interface descriptor of the deployed NodeList contract. It must
// be kept in sync with the on-chain version, otherwise calls fail to encode or
// decode.
var ABI = mustParseABI(abiJSON)

// ErrUnexpectedResult is returned when the contract returns values that don't
// match the expected method outputs.
var ErrUnexpectedResult = errors.New("unexpected contract result")

func mustParseABI(s string) abi.ABI {
	res, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Errorf("parse NodeList ABI: %w", err))
	}
	return res
}

// EpochInfo is a contract-specific epoch record returned by `getEpochInfo`.
type EpochInfo struct {
	ID        *big.Int
	N         *big.Int
	K         *big.Int
	T         *big.Int
	NodeList  []common.Address
	PrevEpoch *big.Int
	NextEpoch *big.Int
}

// NodeDetails is a contract-specific node record.
type NodeDetails struct {
	DeclaredIP         string
	Position           *big.Int
	PubKx              *big.Int
	PubKy              *big.Int
	TMP2PListenAddress string
	P2PListenAddress   string
}

// nodeListDetails mirrors NodeList.Details tuple field naming so that it can
// be filled by [abi.ConvertType].
type nodeListDetails struct {
	DeclaredIp         string
	Position           *big.Int
	PubKx              *big.Int
	PubKy              *big.Int
	TmP2PListenAddress string
	P2pListenAddress   string
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	Sender() common.Address

	MakeCall(ctx context.Context, contract common.Address, data []byte) (*types.Transaction, error)
	MakeUnsignedCall(ctx context.Context, contract common.Address, data []byte) (*types.Transaction, error)
	SendCall(ctx context.Context, contract common.Address, data []byte) (common.Hash, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash    common.Address
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	actor Actor
	hash  common.Address
}

// NewReader creates an instance of ContractReader using provided contract address and the given Invoker.
func NewReader(invoker Invoker, hash common.Address) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract address and the given Actor.
func New(actor Actor, hash common.Address) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash}
}

// Hash returns address of the contract.
func (c *ContractReader) Hash() common.Address {
	return c.hash
}

func (c *ContractReader) call(ctx context.Context, method string, params ...any) ([]any, error) {
	data, err := ABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("pack '%s' call: %w", method, err)
	}

	// call is done on behalf of the zero address, so msg.sender dependent
	// methods aren't expected here
	res, err := c.invoker.CallContract(ctx, ethereum.CallMsg{To: &c.hash, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call '%s': %w", method, err)
	}

	out, err := ABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %w", ErrUnexpectedResult, method, err)
	}

	return out, nil
}

// CurrentEpoch invokes `currentEpoch` method of contract.
func (c *ContractReader) CurrentEpoch(ctx context.Context) (*big.Int, error) {
	return unwrapBigInt(c.call(ctx, "currentEpoch"))
}

// GetEpochInfo invokes `getEpochInfo` method of contract.
func (c *ContractReader) GetEpochInfo(ctx context.Context, epoch *big.Int) (*EpochInfo, error) {
	out, err := c.call(ctx, "getEpochInfo", epoch)
	if err != nil {
		return nil, err
	}

	var res = new(EpochInfo)
	err = res.FromValues(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResult, err)
	}

	return res, nil
}

// GetPssStatus invokes `getPssStatus` method of contract.
func (c *ContractReader) GetPssStatus(ctx context.Context, oldEpoch *big.Int, newEpoch *big.Int) (*big.Int, error) {
	return unwrapBigInt(c.call(ctx, "getPssStatus", oldEpoch, newEpoch))
}

// PssStatus invokes `pssStatus` method of contract.
func (c *ContractReader) PssStatus(ctx context.Context, oldEpoch *big.Int, newEpoch *big.Int) (*big.Int, error) {
	return unwrapBigInt(c.call(ctx, "pssStatus", oldEpoch, newEpoch))
}

// IsWhitelisted invokes `isWhitelisted` method of contract.
func (c *ContractReader) IsWhitelisted(ctx context.Context, epoch *big.Int, nodeAddress common.Address) (bool, error) {
	return unwrapBool(c.call(ctx, "isWhitelisted", epoch, nodeAddress))
}

// Whitelist invokes `whitelist` method of contract.
func (c *ContractReader) Whitelist(ctx context.Context, epoch *big.Int, nodeAddress common.Address) (bool, error) {
	return unwrapBool(c.call(ctx, "whitelist", epoch, nodeAddress))
}

// NodeRegistered invokes `nodeRegistered` method of contract.
func (c *ContractReader) NodeRegistered(ctx context.Context, epoch *big.Int, nodeAddress common.Address) (bool, error) {
	return unwrapBool(c.call(ctx, "nodeRegistered", epoch, nodeAddress))
}

// GetNodes invokes `getNodes` method of contract.
func (c *ContractReader) GetNodes(ctx context.Context, epoch *big.Int) ([]common.Address, error) {
	out, err := c.call(ctx, "getNodes", epoch)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %d values", ErrUnexpectedResult, len(out))
	}
	res, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: not an address list", ErrUnexpectedResult)
	}
	return res, nil
}

// Owner invokes `owner` method of contract.
func (c *ContractReader) Owner(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("%w: %d values", ErrUnexpectedResult, len(out))
	}
	res, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: not an address", ErrUnexpectedResult)
	}
	return res, nil
}

// NodeDetails invokes `nodeDetails` method of contract. Unlike
// GetNodeDetails, it also returns public key coordinates of the node.
func (c *ContractReader) NodeDetails(ctx context.Context, nodeAddress common.Address) (*NodeDetails, error) {
	out, err := c.call(ctx, "nodeDetails", nodeAddress)
	if err != nil {
		return nil, err
	}

	var res = new(NodeDetails)
	err = res.FromValues(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResult, err)
	}

	return res, nil
}

// GetNodeDetails invokes `getNodeDetails` method of contract. Public key
// coordinates are not returned by this method, so they are left nil.
func (c *ContractReader) GetNodeDetails(ctx context.Context, nodeAddress common.Address) (*NodeDetails, error) {
	out, err := c.call(ctx, "getNodeDetails", nodeAddress)
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("%w: wrong number of values %d", ErrUnexpectedResult, len(out))
	}

	var (
		res = new(NodeDetails)
		ok  bool
	)
	if res.DeclaredIP, ok = out[0].(string); !ok {
		return nil, fmt.Errorf("%w: field DeclaredIP", ErrUnexpectedResult)
	}
	if res.Position, ok = out[1].(*big.Int); !ok {
		return nil, fmt.Errorf("%w: field Position", ErrUnexpectedResult)
	}
	if res.TMP2PListenAddress, ok = out[2].(string); !ok {
		return nil, fmt.Errorf("%w: field TMP2PListenAddress", ErrUnexpectedResult)
	}
	if res.P2PListenAddress, ok = out[3].(string); !ok {
		return nil, fmt.Errorf("%w: field P2PListenAddress", ErrUnexpectedResult)
	}

	return res, nil
}

// GetCurrentEpochDetails invokes `getCurrentEpochDetails` method of contract.
func (c *ContractReader) GetCurrentEpochDetails(ctx context.Context) (res []NodeDetails, err error) {
	out, err := c.call(ctx, "getCurrentEpochDetails")
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %d values", ErrUnexpectedResult, len(out))
	}

	defer func() {
		// abi.ConvertType panics on type mismatch
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrUnexpectedResult, r)
		}
	}()

	details := *abi.ConvertType(out[0], new([]nodeListDetails)).(*[]nodeListDetails)

	res = make([]NodeDetails, 0, len(details))
	for i := range details {
		res = append(res, NodeDetails{
			DeclaredIP:         details[i].DeclaredIp,
			Position:           details[i].Position,
			PubKx:              details[i].PubKx,
			PubKy:              details[i].PubKy,
			TMP2PListenAddress: details[i].TmP2PListenAddress,
			P2PListenAddress:   details[i].P2pListenAddress,
		})
	}

	return res, nil
}

func (c *Contract) pack(method string, params ...any) ([]byte, error) {
	data, err := ABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("pack '%s' call: %w", method, err)
	}
	return data, nil
}

// SetCurrentEpoch creates a transaction invoking `setCurrentEpoch` method of the contract.
// This transaction is signed and immediately sent to the network.
// The value returned is its hash.
func (c *Contract) SetCurrentEpoch(ctx context.Context, newEpoch *big.Int) (common.Hash, error) {
	data, err := c.pack("setCurrentEpoch", newEpoch)
	if err != nil {
		return common.Hash{}, err
	}
	return c.actor.SendCall(ctx, c.hash, data)
}

// SetCurrentEpochTransaction creates a transaction invoking `setCurrentEpoch` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) SetCurrentEpochTransaction(ctx context.Context, newEpoch *big.Int) (*types.Transaction, error) {
	data, err := c.pack("setCurrentEpoch", newEpoch)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeCall(ctx, c.hash, data)
}

// SetCurrentEpochUnsigned creates a transaction invoking `setCurrentEpoch` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
func (c *Contract) SetCurrentEpochUnsigned(ctx context.Context, newEpoch *big.Int) (*types.Transaction, error) {
	data, err := c.pack("setCurrentEpoch", newEpoch)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeUnsignedCall(ctx, c.hash, data)
}

// UpdatePssStatus creates a transaction invoking `updatePssStatus` method of the contract.
// This transaction is signed and immediately sent to the network.
// The value returned is its hash.
func (c *Contract) UpdatePssStatus(ctx context.Context, oldEpoch *big.Int, newEpoch *big.Int, status *big.Int) (common.Hash, error) {
	data, err := c.pack("updatePssStatus", oldEpoch, newEpoch, status)
	if err != nil {
		return common.Hash{}, err
	}
	return c.actor.SendCall(ctx, c.hash, data)
}

// UpdatePssStatusTransaction creates a transaction invoking `updatePssStatus` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) UpdatePssStatusTransaction(ctx context.Context, oldEpoch *big.Int, newEpoch *big.Int, status *big.Int) (*types.Transaction, error) {
	data, err := c.pack("updatePssStatus", oldEpoch, newEpoch, status)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeCall(ctx, c.hash, data)
}

// UpdatePssStatusUnsigned creates a transaction invoking `updatePssStatus` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
func (c *Contract) UpdatePssStatusUnsigned(ctx context.Context, oldEpoch *big.Int, newEpoch *big.Int, status *big.Int) (*types.Transaction, error) {
	data, err := c.pack("updatePssStatus", oldEpoch, newEpoch, status)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeUnsignedCall(ctx, c.hash, data)
}

// UpdateEpoch creates a transaction invoking `updateEpoch` method of the contract.
// This transaction is signed and immediately sent to the network.
// The value returned is its hash.
func (c *Contract) UpdateEpoch(ctx context.Context, info EpochInfo) (common.Hash, error) {
	data, err := c.packUpdateEpoch(info)
	if err != nil {
		return common.Hash{}, err
	}
	return c.actor.SendCall(ctx, c.hash, data)
}

// UpdateEpochTransaction creates a transaction invoking `updateEpoch` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) UpdateEpochTransaction(ctx context.Context, info EpochInfo) (*types.Transaction, error) {
	data, err := c.packUpdateEpoch(info)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeCall(ctx, c.hash, data)
}

// UpdateEpochUnsigned creates a transaction invoking `updateEpoch` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
func (c *Contract) UpdateEpochUnsigned(ctx context.Context, info EpochInfo) (*types.Transaction, error) {
	data, err := c.packUpdateEpoch(info)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeUnsignedCall(ctx, c.hash, data)
}

func (c *Contract) packUpdateEpoch(info EpochInfo) ([]byte, error) {
	nodeList := info.NodeList
	if nodeList == nil {
		nodeList = []common.Address{}
	}
	return c.pack("updateEpoch", info.ID, info.N, info.K, info.T, nodeList, info.PrevEpoch, info.NextEpoch)
}

// UpdateWhitelist creates a transaction invoking `updateWhitelist` method of the contract.
// This transaction is signed and immediately sent to the network.
// The value returned is its hash.
func (c *Contract) UpdateWhitelist(ctx context.Context, epoch *big.Int, nodeAddress common.Address, allowed bool) (common.Hash, error) {
	data, err := c.pack("updateWhitelist", epoch, nodeAddress, allowed)
	if err != nil {
		return common.Hash{}, err
	}
	return c.actor.SendCall(ctx, c.hash, data)
}

// UpdateWhitelistTransaction creates a transaction invoking `updateWhitelist` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) UpdateWhitelistTransaction(ctx context.Context, epoch *big.Int, nodeAddress common.Address, allowed bool) (*types.Transaction, error) {
	data, err := c.pack("updateWhitelist", epoch, nodeAddress, allowed)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeCall(ctx, c.hash, data)
}

// UpdateWhitelistUnsigned creates a transaction invoking `updateWhitelist` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
func (c *Contract) UpdateWhitelistUnsigned(ctx context.Context, epoch *big.Int, nodeAddress common.Address, allowed bool) (*types.Transaction, error) {
	data, err := c.pack("updateWhitelist", epoch, nodeAddress, allowed)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeUnsignedCall(ctx, c.hash, data)
}

// FromValues retrieves fields of EpochInfo from the values unpacked from
// `getEpochInfo` result or returns an error if it's not possible to do to so.
func (res *EpochInfo) FromValues(vals []any) error {
	if len(vals) != 7 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err   error
	)
	index++
	res.ID, err = bigIntField(vals[index], "ID")
	if err != nil {
		return err
	}

	index++
	res.N, err = bigIntField(vals[index], "N")
	if err != nil {
		return err
	}

	index++
	res.K, err = bigIntField(vals[index], "K")
	if err != nil {
		return err
	}

	index++
	res.T, err = bigIntField(vals[index], "T")
	if err != nil {
		return err
	}

	index++
	var ok bool
	res.NodeList, ok = vals[index].([]common.Address)
	if !ok {
		return errors.New("field NodeList: not an address list")
	}

	index++
	res.PrevEpoch, err = bigIntField(vals[index], "PrevEpoch")
	if err != nil {
		return err
	}

	index++
	res.NextEpoch, err = bigIntField(vals[index], "NextEpoch")
	if err != nil {
		return err
	}

	return nil
}

// FromValues retrieves fields of NodeDetails from the values unpacked from
// `nodeDetails` result or returns an error if it's not possible to do to so.
func (res *NodeDetails) FromValues(vals []any) error {
	if len(vals) != 6 {
		return errors.New("wrong number of structure elements")
	}

	var (
		ok  bool
		err error
	)
	res.DeclaredIP, ok = vals[0].(string)
	if !ok {
		return errors.New("field DeclaredIP: not a string")
	}

	res.Position, err = bigIntField(vals[1], "Position")
	if err != nil {
		return err
	}

	res.PubKx, err = bigIntField(vals[2], "PubKx")
	if err != nil {
		return err
	}

	res.PubKy, err = bigIntField(vals[3], "PubKy")
	if err != nil {
		return err
	}

	res.TMP2PListenAddress, ok = vals[4].(string)
	if !ok {
		return errors.New("field TMP2PListenAddress: not a string")
	}

	res.P2PListenAddress, ok = vals[5].(string)
	if !ok {
		return errors.New("field P2PListenAddress: not a string")
	}

	return nil
}

func bigIntField(v any, name string) (*big.Int, error) {
	res, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("field %s: not an integer", name)
	}
	return res, nil
}

func unwrapBigInt(out []any, err error) (*big.Int, error) {
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %d values", ErrUnexpectedResult, len(out))
	}
	res, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: not an integer", ErrUnexpectedResult)
	}
	return res, nil
}

func unwrapBool(out []any, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("%w: %d values", ErrUnexpectedResult, len(out))
	}
	res, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%w: not a boolean", ErrUnexpectedResult)
	}
	return res, nil
}
