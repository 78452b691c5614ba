package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arcana-network/nodelistctl/admin"
	"github.com/arcana-network/nodelistctl/internal/config"
	"github.com/arcana-network/nodelistctl/internal/logging"
	"github.com/arcana-network/nodelistctl/rpc/actor"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "nodelistctl",
		Usage: "administer the NodeList contract",
		Description: "Executes every requested operation in a fixed order regardless of flag order.\n" +
			"Owner-signed operations need the owner key set via NODELIST_OWNER_KEY or configuration file.",
		Flags:           flags(),
		Action:          run,
		HideHelpCommand: true,
	}
}

func run(c *cli.Context) error {
	opts, err := readOptions(c)
	if err != nil {
		return err
	}

	v := config.New()
	if c.IsSet(flagRPC) {
		v.Set(config.KeyRPCEndpoint, c.String(flagRPC))
	}
	if c.IsSet(flagContract) {
		v.Set(config.KeyContractAddress, c.String(flagContract))
	}

	cfg, err := config.Read(v, c.String(flagConfig))
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log = log.With(zap.Stringer("invocation", uuid.New()))

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("RPC client dial: %w", err)
	}
	defer client.Close()

	log.Debug("connected to blockchain",
		zap.String("endpoint", cfg.RPCEndpoint), zap.Stringer("contract", cfg.Contract))

	d := admin.New(admin.Prm{
		Logger:     log,
		Blockchain: client,
		NewActor: func(ctx context.Context, key *ecdsa.PrivateKey) (admin.Actor, error) {
			a, err := actor.New(ctx, client, key)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
		Contract: cfg.Contract,
		OwnerKey: cfg.OwnerKey,
		Out:      c.App.Writer,
		In:       os.Stdin,
	})

	return d.Run(ctx, opts)
}
