/*
Package admin implements administrative operations over the NodeList contract.

Each operation requested by [Options] is executed by [Dispatcher.Run] as a
single read call or as a single transaction signed, sent and waited for.
Operations are independent of each other and always run sequentially in the
fixed order:

 1. PSS status change
 2. PSS status request
 3. current epoch change
 4. current epoch request
 5. epoch info request
 6. epoch info replacement (asks for confirmation)
 7. node whitelisting
 8. whitelist check
 9. epoch node list request
 10. node details request
 11. current epoch nodes details request
 12. contract owner request
 13. owner balance request
 14. arbitrary balance request
 15. address derivation from private key
 16. native currency transfer

The first error aborts the remaining operations. Operations with missing
companion arguments are skipped with a message.
*/
package admin

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/arcana-network/nodelistctl/rpc/actor"
	"github.com/arcana-network/nodelistctl/rpc/nodelist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ErrMissingOwnerKey is returned for operations requiring contract owner's
// signature when the owner key is not configured.
var ErrMissingOwnerKey = errors.New("contract owner key is not configured")

// Options groups requested operations and their arguments. Nil and empty
// values mean absence of the corresponding operation or argument.
type Options struct {
	// old epoch, new epoch, status
	PssStatusChange []uint64
	// old epoch, new epoch
	PssStatus []uint64

	EpochChange *uint64
	GetEpoch    bool

	EpochInfo *uint64

	SetEpochInfo *uint64
	N, K, T      *uint64

	Whitelist     string
	IsWhitelisted string
	TargetEpoch   *uint64

	Nodes               *uint64
	NodeDetails         string
	CurrentEpochDetails bool
	Owner               bool

	Balance        bool
	BalanceOf      string
	AddressFromKey string

	// private key of the sender
	SendValue string
	To        string
	// in ether
	Amount string
}

// Blockchain groups blockchain functions used for read operations.
type Blockchain interface {
	nodelist.Invoker

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Actor sends transactions on behalf of a single account.
type Actor interface {
	nodelist.Actor

	SendValue(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
	Wait(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ActorFactory creates Actor signing transactions with the given key.
type ActorFactory func(ctx context.Context, key *ecdsa.PrivateKey) (Actor, error)

// Prm groups Dispatcher parameters.
type Prm struct {
	// Writes progress into the log.
	Logger *zap.Logger

	Blockchain Blockchain
	NewActor   ActorFactory

	// NodeList contract address.
	Contract common.Address

	// Contract owner key, optional for read operations.
	OwnerKey *ecdsa.PrivateKey

	// Results and prompts are written here.
	Out io.Writer
	// Confirmations are read from here.
	In io.Reader
}

// Dispatcher executes requested operations.
type Dispatcher struct {
	log      *zap.Logger
	chain    Blockchain
	newActor ActorFactory
	contract common.Address
	ownerKey *ecdsa.PrivateKey
	out      io.Writer
	in       *bufio.Reader

	reader *nodelist.ContractReader
	owner  Actor
}

type operation struct {
	name      string
	requested bool
	exec      func(context.Context, Options) error
}

// New creates Dispatcher from the given parameters.
func New(prm Prm) *Dispatcher {
	log := prm.Logger
	if log == nil {
		log = zap.NewNop()
	}

	in := prm.In
	if in == nil {
		in = strings.NewReader("")
	}

	return &Dispatcher{
		log:      log,
		chain:    prm.Blockchain,
		newActor: prm.NewActor,
		contract: prm.Contract,
		ownerKey: prm.OwnerKey,
		out:      prm.Out,
		in:       bufio.NewReader(in),
		reader:   nodelist.NewReader(prm.Blockchain, prm.Contract),
	}
}

func (d *Dispatcher) operations(o Options) []operation {
	return []operation{
		{"change PSS status", o.PssStatusChange != nil, d.changePssStatus},
		{"get PSS status", o.PssStatus != nil, d.getPssStatus},
		{"change current epoch", o.EpochChange != nil, d.changeEpoch},
		{"get current epoch", o.GetEpoch, d.getEpoch},
		{"get epoch info", o.EpochInfo != nil, d.getEpochInfo},
		{"set epoch info", o.SetEpochInfo != nil, d.setEpochInfo},
		{"whitelist node", o.Whitelist != "", d.whitelist},
		{"check whitelist", o.IsWhitelisted != "", d.isWhitelisted},
		{"get epoch nodes", o.Nodes != nil, d.getNodes},
		{"get node details", o.NodeDetails != "", d.getNodeDetails},
		{"get current epoch details", o.CurrentEpochDetails, d.getCurrentEpochDetails},
		{"get contract owner", o.Owner, d.getOwner},
		{"get owner balance", o.Balance, d.ownerBalance},
		{"get balance", o.BalanceOf != "", d.balanceOf},
		{"derive address", o.AddressFromKey != "", d.addressFromKey},
		{"send value", o.SendValue != "", d.sendValue},
	}
}

// Run executes all operations requested by o.
func (d *Dispatcher) Run(ctx context.Context, o Options) error {
	var done int

	for _, op := range d.operations(o) {
		if !op.requested {
			continue
		}

		d.log.Debug("executing operation", zap.String("operation", op.name))

		err := op.exec(ctx, o)
		if err != nil {
			return fmt.Errorf("%s: %w", op.name, err)
		}

		done++
	}

	if done == 0 {
		d.log.Info("no operations requested")
	}

	return nil
}

// ownerActor lazily creates Actor signing with the owner key.
func (d *Dispatcher) ownerActor(ctx context.Context) (Actor, error) {
	if d.owner != nil {
		return d.owner, nil
	}
	if d.ownerKey == nil {
		return nil, ErrMissingOwnerKey
	}

	a, err := d.newActor(ctx, d.ownerKey)
	if err != nil {
		return nil, fmt.Errorf("init owner transaction sender: %w", err)
	}

	d.owner = a
	return a, nil
}

func (d *Dispatcher) ownerContract(ctx context.Context) (*nodelist.Contract, Actor, error) {
	a, err := d.ownerActor(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nodelist.New(a, d.contract), a, nil
}

// await waits for the transaction to be included in a block and reports the
// block number.
func (d *Dispatcher) await(ctx context.Context, a Actor, txHash common.Hash) (*types.Receipt, error) {
	d.log.Info("transaction sent, waiting for receipt...",
		zap.Stringer("tx", txHash), zap.Stringer("from", a.Sender()))

	r, err := a.Wait(ctx, txHash)
	if r != nil {
		fmt.Fprintln(d.out, "include in", r.BlockNumber)
		d.logEvents(r)
	}
	if err != nil {
		return r, err
	}

	d.log.Info("transaction successfully included",
		zap.Stringer("tx", txHash), zap.Stringer("block", r.BlockNumber), zap.Uint64("gas used", r.GasUsed))

	return r, nil
}

func (d *Dispatcher) logEvents(r *types.Receipt) {
	epochChanged, err := nodelist.EpochChangedEventsFromReceipt(r)
	if err != nil {
		d.log.Warn("failed to decode EpochChanged events", zap.Error(err))
	}
	for _, e := range epochChanged {
		d.log.Info("epoch changed", zap.Stringer("old", e.OldEpoch), zap.Stringer("new", e.NewEpoch))
	}

	nodeListed, err := nodelist.NodeListedEventsFromReceipt(r)
	if err != nil {
		d.log.Warn("failed to decode NodeListed events", zap.Error(err))
	}
	for _, e := range nodeListed {
		d.log.Info("node listed", zap.Stringer("node", e.PublicKey),
			zap.Stringer("epoch", e.Epoch), zap.Stringer("position", e.Position))
	}

	ownershipTransferred, err := nodelist.OwnershipTransferredEventsFromReceipt(r)
	if err != nil {
		d.log.Warn("failed to decode OwnershipTransferred events", zap.Error(err))
	}
	for _, e := range ownershipTransferred {
		d.log.Info("contract ownership transferred",
			zap.Stringer("previous", e.PreviousOwner), zap.Stringer("new", e.NewOwner))
	}
}

// diag reports an operation skipped because of missing arguments.
func (d *Dispatcher) diag(format string, args ...any) {
	fmt.Fprintf(d.out, format+"\n", args...)
}

// confirm asks the question and reports whether the answer is exactly "y" or
// "yes". Any read error is treated as refusal.
func (d *Dispatcher) confirm(question string) bool {
	fmt.Fprintf(d.out, "%s [y/N]: ", question)

	line, err := d.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		d.log.Warn("failed to read confirmation", zap.Error(err))
		return false
	}

	switch strings.TrimSpace(line) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address '%s'", s)
	}
	return common.HexToAddress(s), nil
}

func bigUint(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// ensure the real actor fits
var _ Actor = (*actor.Actor)(nil)
