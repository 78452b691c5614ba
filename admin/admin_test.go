package admin_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/arcana-network/nodelistctl/admin"
	"github.com/arcana-network/nodelistctl/internal/chaintest"
	"github.com/arcana-network/nodelistctl/rpc/actor"
	"github.com/arcana-network/nodelistctl/rpc/nodelist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var (
	testContract = common.HexToAddress("0x7c20cB99e1F2CD1ECd1B425A51ff66D0f01E0Eda")
	testNode     = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

type testEnv struct {
	chain    *chaintest.Backend
	owner    *ecdsa.PrivateKey
	out      *bytes.Buffer
	actors   int
	dispatch *admin.Dispatcher
}

type envOpt func(*admin.Prm)

func withoutOwner() envOpt {
	return func(p *admin.Prm) { p.OwnerKey = nil }
}

func withInput(s string) envOpt {
	return func(p *admin.Prm) { p.In = strings.NewReader(s) }
}

func withLogger(l *zap.Logger) envOpt {
	return func(p *admin.Prm) { p.Logger = l }
}

func newTestEnv(t *testing.T, opts ...envOpt) *testEnv {
	owner, err := crypto.GenerateKey()
	require.NoError(t, err)

	e := &testEnv{
		chain: chaintest.NewBackend(421614),
		owner: owner,
		out:   new(bytes.Buffer),
	}

	prm := admin.Prm{
		Logger:     zaptest.NewLogger(t),
		Blockchain: e.chain,
		NewActor: func(ctx context.Context, key *ecdsa.PrivateKey) (admin.Actor, error) {
			e.actors++
			return actor.NewTuned(ctx, e.chain, key, actor.Options{PollInterval: time.Millisecond})
		},
		Contract: testContract,
		OwnerKey: owner,
		Out:      e.out,
	}
	for _, o := range opts {
		o(&prm)
	}

	e.dispatch = admin.New(prm)

	return e
}

func (e *testEnv) run(t *testing.T, o admin.Options) error {
	return e.dispatch.Run(context.Background(), o)
}

func (e *testEnv) lines() []string {
	return strings.Split(strings.TrimSuffix(e.out.String(), "\n"), "\n")
}

// sentCall decodes the only transaction sent and checks it's signed by the
// given key.
func (e *testEnv) sentCall(t *testing.T, key *ecdsa.PrivateKey) chaintest.Call {
	sent := e.chain.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, testContract, *sent[0].To())

	from, err := chaintest.Sender(sent[0])
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)

	call, err := chaintest.DecodeCall(sent[0].Data())
	require.NoError(t, err)

	return call
}

func u64(v uint64) *uint64 { return &v }

func TestDispatcher_Reads(t *testing.T) {
	t.Run("PSS status", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.Return("pssStatus", big.NewInt(2))

		require.NoError(t, e.run(t, admin.Options{PssStatus: []uint64{1, 2}}))
		require.Equal(t, []chaintest.Call{{Method: "pssStatus", Args: []any{big.NewInt(1), big.NewInt(2)}}}, e.chain.Calls())
		require.Equal(t, "2\n", e.out.String())
	})

	t.Run("current epoch", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.Return("currentEpoch", big.NewInt(7))

		require.NoError(t, e.run(t, admin.Options{GetEpoch: true}))
		require.Equal(t, "7\n", e.out.String())
	})

	t.Run("epoch info", func(t *testing.T) {
		e := newTestEnv(t)
		node2 := common.HexToAddress("0x00000000000000000000000000000000000000f2")
		e.chain.Return("getEpochInfo",
			big.NewInt(3), big.NewInt(4), big.NewInt(3), big.NewInt(1),
			[]common.Address{testNode, node2},
			big.NewInt(2), big.NewInt(4))

		require.NoError(t, e.run(t, admin.Options{EpochInfo: u64(3)}))
		require.Equal(t, []chaintest.Call{{Method: "getEpochInfo", Args: []any{big.NewInt(3)}}}, e.chain.Calls())
		require.Equal(t, []string{
			"id: 3",
			"n: 4",
			"k: 3",
			"t: 1",
			"nodeList: [" + testNode.Hex() + ", " + node2.Hex() + "]",
			"prevEpoch: 2",
			"nextEpoch: 4",
		}, e.lines())
	})

	t.Run("whitelist check", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.Return("isWhitelisted", true)

		require.NoError(t, e.run(t, admin.Options{IsWhitelisted: testNode.Hex(), TargetEpoch: u64(2)}))
		require.Equal(t, []chaintest.Call{{Method: "isWhitelisted", Args: []any{big.NewInt(2), testNode}}}, e.chain.Calls())
		require.Equal(t, "true\n", e.out.String())
	})

	t.Run("nodes", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.Return("getNodes", []common.Address{testNode})

		require.NoError(t, e.run(t, admin.Options{Nodes: u64(1)}))
		require.Equal(t, testNode.Hex()+"\n", e.out.String())
	})

	t.Run("node details", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.Return("nodeDetails", "10.0.0.1", big.NewInt(1), big.NewInt(11), big.NewInt(12),
			"/ip4/10.0.0.1/tcp/26656", "/ip4/10.0.0.1/tcp/1080")

		require.NoError(t, e.run(t, admin.Options{NodeDetails: testNode.Hex()}))
		require.Equal(t, []string{
			"declaredIp: 10.0.0.1",
			"position: 1",
			"pubKx: 11",
			"pubKy: 12",
			"tmP2PListenAddress: /ip4/10.0.0.1/tcp/26656",
			"p2pListenAddress: /ip4/10.0.0.1/tcp/1080",
		}, e.lines())
	})

	t.Run("current epoch details", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.Handle("getCurrentEpochDetails", func([]any) ([]any, error) {
			return []any{[]struct {
				DeclaredIp         string
				Position           *big.Int
				PubKx              *big.Int
				PubKy              *big.Int
				TmP2PListenAddress string
				P2pListenAddress   string
			}{
				{"10.0.0.1", big.NewInt(1), big.NewInt(11), big.NewInt(12), "tm1", "p2p1"},
				{"10.0.0.2", big.NewInt(2), big.NewInt(21), big.NewInt(22), "tm2", "p2p2"},
			}}, nil
		})

		require.NoError(t, e.run(t, admin.Options{CurrentEpochDetails: true}))
		require.Equal(t, []string{
			"declaredIp: 10.0.0.1",
			"position: 1",
			"pubKx: 11",
			"pubKy: 12",
			"tmP2PListenAddress: tm1",
			"p2pListenAddress: p2p1",
			"",
			"declaredIp: 10.0.0.2",
			"position: 2",
			"pubKx: 21",
			"pubKy: 22",
			"tmP2PListenAddress: tm2",
			"p2pListenAddress: p2p2",
		}, e.lines())
	})

	t.Run("owner", func(t *testing.T) {
		e := newTestEnv(t, withoutOwner())
		e.chain.Return("owner", testNode)

		require.NoError(t, e.run(t, admin.Options{Owner: true}))
		require.Equal(t, testNode.Hex()+"\n", e.out.String())
	})

	t.Run("balances", func(t *testing.T) {
		e := newTestEnv(t)
		oneEther := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
		e.chain.SetBalance(testNode, oneEther)
		e.chain.SetBalance(crypto.PubkeyToAddress(e.owner.PublicKey), big.NewInt(1_500_000_000_000_000))

		require.NoError(t, e.run(t, admin.Options{Balance: true, BalanceOf: testNode.Hex()}))
		require.Equal(t, []string{"0.0015", "1.0"}, e.lines())
	})

	t.Run("address from key", func(t *testing.T) {
		e := newTestEnv(t)
		key, err := crypto.GenerateKey()
		require.NoError(t, err)

		require.NoError(t, e.run(t, admin.Options{AddressFromKey: "0x" + common.Bytes2Hex(crypto.FromECDSA(key))}))
		require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex()+"\n", e.out.String())
	})

	t.Run("no transactions", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.Return("currentEpoch", big.NewInt(1))
		e.chain.Return("owner", testNode)

		require.NoError(t, e.run(t, admin.Options{GetEpoch: true, Owner: true}))
		require.Empty(t, e.chain.Sent())
		require.Zero(t, e.actors)
	})
}

func TestDispatcher_Writes(t *testing.T) {
	t.Run("PSS status change", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.SetBlockNumber(777)

		require.NoError(t, e.run(t, admin.Options{PssStatusChange: []uint64{1, 2, 3}}))

		call := e.sentCall(t, e.owner)
		require.Equal(t, "updatePssStatus", call.Method)
		require.Equal(t, []any{big.NewInt(1), big.NewInt(2), big.NewInt(3)}, call.Args)
		require.Equal(t, "include in 777\n", e.out.String())
	})

	t.Run("epoch change", func(t *testing.T) {
		e := newTestEnv(t)

		require.NoError(t, e.run(t, admin.Options{EpochChange: u64(5)}))

		call := e.sentCall(t, e.owner)
		require.Equal(t, "setCurrentEpoch", call.Method)
		require.Equal(t, []any{big.NewInt(5)}, call.Args)
		require.Equal(t, "include in 100\n", e.out.String())
	})

	t.Run("whitelist", func(t *testing.T) {
		e := newTestEnv(t)

		require.NoError(t, e.run(t, admin.Options{Whitelist: testNode.Hex(), TargetEpoch: u64(2)}))

		call := e.sentCall(t, e.owner)
		require.Equal(t, "updateWhitelist", call.Method)
		require.Equal(t, []any{big.NewInt(2), testNode, true}, call.Args)
	})

	t.Run("epoch info replacement", func(t *testing.T) {
		for _, answer := range []string{"y\n", "yes\n", "  yes  \n", "y"} {
			e := newTestEnv(t, withInput(answer))

			require.NoError(t, e.run(t, admin.Options{SetEpochInfo: u64(3), N: u64(5), K: u64(3), T: u64(1)}), answer)

			call := e.sentCall(t, e.owner)
			require.Equal(t, "updateEpoch", call.Method, answer)
			require.Equal(t, []any{
				big.NewInt(3), big.NewInt(5), big.NewInt(3), big.NewInt(1), []common.Address{}, big.NewInt(2), big.NewInt(4),
			}, call.Args, answer)
			require.True(t, strings.HasSuffix(e.out.String(), "[y/N]: include in 100\n"), answer)
		}
	})

	t.Run("send value", func(t *testing.T) {
		e := newTestEnv(t, withoutOwner())
		sender, err := crypto.GenerateKey()
		require.NoError(t, err)
		to := common.HexToAddress("0x00000000000000000000000000000000000000b1")

		require.NoError(t, e.run(t, admin.Options{
			SendValue: common.Bytes2Hex(crypto.FromECDSA(sender)),
			To:        to.Hex(),
			Amount:    "0.5",
		}))

		sent := e.chain.Sent()
		require.Len(t, sent, 1)
		require.Equal(t, to, *sent[0].To())
		require.Equal(t, "500000000000000000", sent[0].Value().String())

		from, err := chaintest.Sender(sent[0])
		require.NoError(t, err)
		require.Equal(t, crypto.PubkeyToAddress(sender.PublicKey), from)
		require.Equal(t, "include in 100\n", e.out.String())
	})

	t.Run("single owner actor", func(t *testing.T) {
		e := newTestEnv(t)

		require.NoError(t, e.run(t, admin.Options{
			PssStatusChange: []uint64{1, 2, 1},
			EpochChange:     u64(2),
			Whitelist:       testNode.Hex(),
			TargetEpoch:     u64(2),
		}))

		require.Equal(t, 1, e.actors)

		sent := e.chain.Sent()
		require.Len(t, sent, 3)
		for i, method := range []string{"updatePssStatus", "setCurrentEpoch", "updateWhitelist"} {
			call, err := chaintest.DecodeCall(sent[i].Data())
			require.NoError(t, err)
			require.Equal(t, method, call.Method)
			require.EqualValues(t, i, sent[i].Nonce())
		}
	})

	t.Run("failed transaction", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.FailTransactions()
		e.chain.Return("currentEpoch", big.NewInt(1))

		err := e.run(t, admin.Options{EpochChange: u64(5), GetEpoch: true})
		require.ErrorIs(t, err, actor.ErrTxFailed)
		require.Equal(t, "include in 100\n", e.out.String())
		require.Empty(t, e.chain.Calls())
	})

	t.Run("missing owner key", func(t *testing.T) {
		for _, o := range []admin.Options{
			{PssStatusChange: []uint64{1, 2, 3}},
			{EpochChange: u64(1)},
			{Whitelist: testNode.Hex(), TargetEpoch: u64(1)},
			{SetEpochInfo: u64(1), N: u64(1), K: u64(1), T: u64(0)},
			{Balance: true},
		} {
			e := newTestEnv(t, withoutOwner(), withInput("y\n"))

			require.ErrorIs(t, e.run(t, o), admin.ErrMissingOwnerKey)
			require.Empty(t, e.chain.Sent())
		}
	})

	t.Run("events", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		e := newTestEnv(t, withLogger(zap.New(core)))

		ev := nodelist.ABI.Events["EpochChanged"]
		data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(5))
		require.NoError(t, err)
		e.chain.SetLogs(func(*types.Transaction) []*types.Log {
			return []*types.Log{{Address: testContract, Topics: []common.Hash{ev.ID}, Data: data}}
		})

		require.NoError(t, e.run(t, admin.Options{EpochChange: u64(5)}))

		entries := logs.FilterMessage("epoch changed").All()
		require.Len(t, entries, 1)
		require.Equal(t, "5", entries[0].ContextMap()["new"])
	})
}

func TestDispatcher_Confirmation(t *testing.T) {
	for _, answer := range []string{"", "\n", "n\n", "no\n", "Y\n", "yes please\n", "nope\n", "y es\n"} {
		e := newTestEnv(t, withInput(answer))

		require.NoError(t, e.run(t, admin.Options{SetEpochInfo: u64(3), N: u64(5), K: u64(3), T: u64(1)}), answer)
		require.Empty(t, e.chain.Sent(), answer)
		require.Zero(t, e.actors, answer)
		require.True(t, strings.HasSuffix(e.out.String(), "[y/N]: aborted\n"), answer)
	}

	t.Run("zero epoch", func(t *testing.T) {
		e := newTestEnv(t, withInput("y\n"))

		require.Error(t, e.run(t, admin.Options{SetEpochInfo: u64(0), N: u64(5), K: u64(3), T: u64(1)}))
		require.Empty(t, e.chain.Sent())
	})

	t.Run("last epoch", func(t *testing.T) {
		e := newTestEnv(t, withInput("y\n"))

		require.Error(t, e.run(t, admin.Options{SetEpochInfo: u64(math.MaxUint64), N: u64(5), K: u64(3), T: u64(1)}))
		require.Empty(t, e.chain.Sent())
		require.Zero(t, e.actors)
		require.NotContains(t, e.out.String(), "[y/N]")
	})
}

func TestDispatcher_ZeroEpochChange(t *testing.T) {
	e := newTestEnv(t)

	require.Error(t, e.run(t, admin.Options{EpochChange: u64(0)}))
	require.Empty(t, e.chain.Sent())
	require.Zero(t, e.actors)
}

func TestDispatcher_MissingCompanions(t *testing.T) {
	for name, o := range map[string]admin.Options{
		"PSS status change":      {PssStatusChange: []uint64{1, 2}},
		"PSS status":             {PssStatus: []uint64{1}},
		"epoch info replacement": {SetEpochInfo: u64(3), N: u64(5), K: u64(3)},
		"whitelist":              {Whitelist: testNode.Hex()},
		"whitelist check":        {IsWhitelisted: testNode.Hex()},
		"send value recipient":   {SendValue: "01", Amount: "1"},
		"send value amount":      {SendValue: "01", To: testNode.Hex()},
	} {
		t.Run(name, func(t *testing.T) {
			e := newTestEnv(t, withInput("y\n"))

			require.NoError(t, e.run(t, o))
			require.Empty(t, e.chain.Sent())
			require.Empty(t, e.chain.Calls())
			require.Zero(t, e.actors)
			require.NotEmpty(t, e.out.String())
			require.NotContains(t, e.out.String(), "[y/N]")
		})
	}
}

func TestDispatcher_Order(t *testing.T) {
	e := newTestEnv(t)
	e.chain.Return("pssStatus", big.NewInt(1))
	e.chain.Return("currentEpoch", big.NewInt(2))
	e.chain.Return("isWhitelisted", false)
	e.chain.Return("owner", testNode)
	e.chain.Return("getCurrentEpochDetails", []struct {
		DeclaredIp         string
		Position           *big.Int
		PubKx              *big.Int
		PubKy              *big.Int
		TmP2PListenAddress string
		P2pListenAddress   string
	}{})

	require.NoError(t, e.run(t, admin.Options{
		Owner:               true,
		CurrentEpochDetails: true,
		IsWhitelisted:       testNode.Hex(),
		TargetEpoch:         u64(2),
		GetEpoch:            true,
		EpochChange:         u64(2),
		PssStatus:           []uint64{1, 2},
	}))

	var methods []string
	for _, c := range e.chain.Calls() {
		methods = append(methods, c.Method)
	}
	require.Equal(t, []string{"pssStatus", "currentEpoch", "isWhitelisted", "getCurrentEpochDetails", "owner"}, methods)
	require.Equal(t, []string{"1", "include in 100", "2", "false", testNode.Hex()}, e.lines())
}

func TestDispatcher_FirstErrorStops(t *testing.T) {
	e := newTestEnv(t)
	e.chain.Handle("currentEpoch", func([]any) ([]any, error) {
		return nil, errors.New("execution reverted")
	})
	e.chain.Return("owner", testNode)

	err := e.run(t, admin.Options{GetEpoch: true, Owner: true})
	require.ErrorContains(t, err, "get current epoch")
	require.ErrorContains(t, err, "execution reverted")
	require.Len(t, e.chain.Calls(), 1)
	require.Empty(t, e.out.String())

	t.Run("invalid address", func(t *testing.T) {
		e := newTestEnv(t)

		require.Error(t, e.run(t, admin.Options{BalanceOf: "0x123"}))
		require.Error(t, e.run(t, admin.Options{NodeDetails: "node"}))
		require.Error(t, e.run(t, admin.Options{AddressFromKey: "key"}))
		require.Empty(t, e.chain.Calls())
	})
}
