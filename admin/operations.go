package admin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/arcana-network/nodelistctl/rpc/actor"
	"github.com/arcana-network/nodelistctl/rpc/nodelist"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func (d *Dispatcher) changePssStatus(ctx context.Context, o Options) error {
	if len(o.PssStatusChange) < 3 {
		d.diag("PSS status change requires old epoch, new epoch and status")
		return nil
	}

	c, a, err := d.ownerContract(ctx)
	if err != nil {
		return err
	}

	oldEpoch, newEpoch, status := o.PssStatusChange[0], o.PssStatusChange[1], o.PssStatusChange[2]

	d.log.Info("changing PSS status...",
		zap.Uint64("old epoch", oldEpoch), zap.Uint64("new epoch", newEpoch), zap.Uint64("status", status))

	txHash, err := c.UpdatePssStatus(ctx, bigUint(oldEpoch), bigUint(newEpoch), bigUint(status))
	if err != nil {
		return err
	}

	_, err = d.await(ctx, a, txHash)
	return err
}

func (d *Dispatcher) getPssStatus(ctx context.Context, o Options) error {
	if len(o.PssStatus) < 2 {
		d.diag("PSS status request requires old and new epochs")
		return nil
	}

	status, err := d.reader.PssStatus(ctx, bigUint(o.PssStatus[0]), bigUint(o.PssStatus[1]))
	if err != nil {
		return err
	}

	fmt.Fprintln(d.out, status)
	return nil
}

func (d *Dispatcher) changeEpoch(ctx context.Context, o Options) error {
	if *o.EpochChange == 0 {
		return errors.New("epoch must be positive")
	}

	c, a, err := d.ownerContract(ctx)
	if err != nil {
		return err
	}

	d.log.Info("changing current epoch...", zap.Uint64("epoch", *o.EpochChange))

	txHash, err := c.SetCurrentEpoch(ctx, bigUint(*o.EpochChange))
	if err != nil {
		return err
	}

	_, err = d.await(ctx, a, txHash)
	return err
}

func (d *Dispatcher) getEpoch(ctx context.Context, _ Options) error {
	epoch, err := d.reader.CurrentEpoch(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(d.out, epoch)
	return nil
}

func (d *Dispatcher) getEpochInfo(ctx context.Context, o Options) error {
	info, err := d.reader.GetEpochInfo(ctx, bigUint(*o.EpochInfo))
	if err != nil {
		return err
	}

	d.printEpochInfo(info)
	return nil
}

func (d *Dispatcher) printEpochInfo(info *nodelist.EpochInfo) {
	nodes := make([]string, len(info.NodeList))
	for i := range info.NodeList {
		nodes[i] = info.NodeList[i].Hex()
	}

	fmt.Fprintln(d.out, "id:", info.ID)
	fmt.Fprintln(d.out, "n:", info.N)
	fmt.Fprintln(d.out, "k:", info.K)
	fmt.Fprintln(d.out, "t:", info.T)
	fmt.Fprintf(d.out, "nodeList: [%s]\n", strings.Join(nodes, ", "))
	fmt.Fprintln(d.out, "prevEpoch:", info.PrevEpoch)
	fmt.Fprintln(d.out, "nextEpoch:", info.NextEpoch)
}

// setEpochInfo replaces epoch info and drops all nodes registered in the
// epoch, so it requires interactive confirmation.
func (d *Dispatcher) setEpochInfo(ctx context.Context, o Options) error {
	if o.N == nil || o.K == nil || o.T == nil {
		d.diag("epoch info replacement requires n, k and t")
		return nil
	}

	epoch := *o.SetEpochInfo
	if epoch == 0 {
		return errors.New("epoch must be positive to link the previous one")
	}
	if epoch == math.MaxUint64 {
		return fmt.Errorf("epoch must be less than %d to link the next one", uint64(math.MaxUint64))
	}

	if !d.confirm(fmt.Sprintf("Epoch %d info will be replaced with n=%d k=%d t=%d and its node list will be cleared. Continue?",
		epoch, *o.N, *o.K, *o.T)) {
		fmt.Fprintln(d.out, "aborted")
		return nil
	}

	c, a, err := d.ownerContract(ctx)
	if err != nil {
		return err
	}

	d.log.Info("replacing epoch info...", zap.Uint64("epoch", epoch),
		zap.Uint64("n", *o.N), zap.Uint64("k", *o.K), zap.Uint64("t", *o.T))

	txHash, err := c.UpdateEpoch(ctx, nodelist.EpochInfo{
		ID:        bigUint(epoch),
		N:         bigUint(*o.N),
		K:         bigUint(*o.K),
		T:         bigUint(*o.T),
		NodeList:  []common.Address{},
		PrevEpoch: bigUint(epoch - 1),
		NextEpoch: bigUint(epoch + 1),
	})
	if err != nil {
		return err
	}

	_, err = d.await(ctx, a, txHash)
	return err
}

// whitelist allows the node in the target epoch. There is no way to revoke
// the permission from here.
func (d *Dispatcher) whitelist(ctx context.Context, o Options) error {
	if o.TargetEpoch == nil {
		d.diag("whitelisting requires target epoch")
		return nil
	}

	node, err := parseAddress(o.Whitelist)
	if err != nil {
		return err
	}

	c, a, err := d.ownerContract(ctx)
	if err != nil {
		return err
	}

	d.log.Info("whitelisting node...", zap.Stringer("node", node), zap.Uint64("epoch", *o.TargetEpoch))

	txHash, err := c.UpdateWhitelist(ctx, bigUint(*o.TargetEpoch), node, true)
	if err != nil {
		return err
	}

	_, err = d.await(ctx, a, txHash)
	return err
}

func (d *Dispatcher) isWhitelisted(ctx context.Context, o Options) error {
	if o.TargetEpoch == nil {
		d.diag("whitelist check requires target epoch")
		return nil
	}

	node, err := parseAddress(o.IsWhitelisted)
	if err != nil {
		return err
	}

	ok, err := d.reader.IsWhitelisted(ctx, bigUint(*o.TargetEpoch), node)
	if err != nil {
		return err
	}

	fmt.Fprintln(d.out, ok)
	return nil
}

func (d *Dispatcher) getNodes(ctx context.Context, o Options) error {
	nodes, err := d.reader.GetNodes(ctx, bigUint(*o.Nodes))
	if err != nil {
		return err
	}

	for i := range nodes {
		fmt.Fprintln(d.out, nodes[i].Hex())
	}
	return nil
}

func (d *Dispatcher) getNodeDetails(ctx context.Context, o Options) error {
	node, err := parseAddress(o.NodeDetails)
	if err != nil {
		return err
	}

	details, err := d.reader.NodeDetails(ctx, node)
	if err != nil {
		return err
	}

	d.printNodeDetails(details)
	return nil
}

// getCurrentEpochDetails prints details of all nodes registered in the
// current epoch separated by empty lines.
func (d *Dispatcher) getCurrentEpochDetails(ctx context.Context, _ Options) error {
	nodes, err := d.reader.GetCurrentEpochDetails(ctx)
	if err != nil {
		return err
	}

	for i := range nodes {
		if i > 0 {
			fmt.Fprintln(d.out)
		}
		d.printNodeDetails(&nodes[i])
	}
	return nil
}

func (d *Dispatcher) printNodeDetails(details *nodelist.NodeDetails) {
	fmt.Fprintln(d.out, "declaredIp:", details.DeclaredIP)
	fmt.Fprintln(d.out, "position:", details.Position)
	fmt.Fprintln(d.out, "pubKx:", details.PubKx)
	fmt.Fprintln(d.out, "pubKy:", details.PubKy)
	fmt.Fprintln(d.out, "tmP2PListenAddress:", details.TMP2PListenAddress)
	fmt.Fprintln(d.out, "p2pListenAddress:", details.P2PListenAddress)
}

func (d *Dispatcher) getOwner(ctx context.Context, _ Options) error {
	owner, err := d.reader.Owner(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(d.out, owner.Hex())
	return nil
}

func (d *Dispatcher) ownerBalance(ctx context.Context, _ Options) error {
	if d.ownerKey == nil {
		return ErrMissingOwnerKey
	}

	return d.printBalance(ctx, actor.AddressFromKey(d.ownerKey))
}

func (d *Dispatcher) balanceOf(ctx context.Context, o Options) error {
	acc, err := parseAddress(o.BalanceOf)
	if err != nil {
		return err
	}

	return d.printBalance(ctx, acc)
}

func (d *Dispatcher) printBalance(ctx context.Context, acc common.Address) error {
	bal, err := d.chain.BalanceAt(ctx, acc, nil)
	if err != nil {
		return fmt.Errorf("get balance of %s: %w", acc, err)
	}

	fmt.Fprintln(d.out, FormatEther(bal))
	return nil
}

func (d *Dispatcher) addressFromKey(_ context.Context, o Options) error {
	key, err := actor.KeyFromHex(o.AddressFromKey)
	if err != nil {
		return err
	}

	fmt.Fprintln(d.out, actor.AddressFromKey(key).Hex())
	return nil
}

// sendValue transfers native currency from the account of the given key, not
// the owner one.
func (d *Dispatcher) sendValue(ctx context.Context, o Options) error {
	if o.To == "" || o.Amount == "" {
		d.diag("value transfer requires recipient and amount")
		return nil
	}

	to, err := parseAddress(o.To)
	if err != nil {
		return err
	}

	amount, err := ParseEther(o.Amount)
	if err != nil {
		return err
	}

	key, err := actor.KeyFromHex(o.SendValue)
	if err != nil {
		return err
	}

	a, err := d.newActor(ctx, key)
	if err != nil {
		return fmt.Errorf("init transaction sender: %w", err)
	}

	d.log.Info("sending value...", zap.Stringer("from", a.Sender()),
		zap.Stringer("to", to), zap.String("amount", FormatEther(amount)))

	txHash, err := a.SendValue(ctx, to, amount)
	if err != nil {
		return err
	}

	_, err = d.await(ctx, a, txHash)
	return err
}
