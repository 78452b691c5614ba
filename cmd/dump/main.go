package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/arcana-network/nodelistctl/internal/config"
	"github.com/arcana-network/nodelistctl/internal/dump"
	"github.com/arcana-network/nodelistctl/internal/logging"
	"github.com/arcana-network/nodelistctl/rpc/nodelist"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	flagConfig   = "config"
	flagRPC      = "rpc"
	flagContract = "contract"
	flagLabel    = "label"
	flagDir      = "dir"
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
		Name:  "nodelist-dump",
		Usage: "dump NodeList contract epochs and nodes to the local directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
			},
			&cli.StringFlag{
				Name:  flagRPC,
				Usage: "JSON-RPC endpoint of the blockchain, overrides configuration",
			},
			&cli.StringFlag{
				Name:  flagContract,
				Usage: "NodeList contract address, overrides configuration",
			},
			&cli.StringFlag{
				Name:     flagLabel,
				Usage:    "Label of the blockchain environment (e.g. 'testnet')",
				Required: true,
			},
			&cli.StringFlag{
				Name:  flagDir,
				Usage: "Directory to put the dump into",
				Value: "testdata",
			},
		},
		Action:          run,
		HideHelpCommand: true,
	}
}

func run(c *cli.Context) error {
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

	rootDir := c.String(flagDir)

	err = os.MkdirAll(rootDir, 0700)
	if err != nil {
		return fmt.Errorf("create root dir: %w", err)
	}

	b, err := newRemoteBlockChain(ctx, cfg.RPCEndpoint, cfg.Contract)
	if err != nil {
		return fmt.Errorf("init remote blockchain: %w", err)
	}

	defer b.close()

	err = _dump(ctx, log, b.reader, b.currentBlock, rootDir, c.String(flagLabel))
	if err != nil {
		return err
	}

	log.Info("NodeList contract state is successfully dumped",
		zap.String("dir", rootDir), zap.Uint64("block", b.currentBlock))

	return nil
}

func _dump(ctx context.Context, log *zap.Logger, r *nodelist.ContractReader, block uint64, rootDir, label string) error {
	d, err := dump.NewCreator(rootDir, dump.ID{
		Label: label,
		Block: block,
	})
	if err != nil {
		return fmt.Errorf("init local dumper: %w", err)
	}

	err = overtakeContract(ctx, log, r, d)
	if err == nil {
		err = d.Flush()
		if err != nil {
			err = fmt.Errorf("flush dump: %w", err)
		}
	}
	if err != nil {
		if abortErr := d.Abort(); abortErr != nil {
			log.Warn("failed to clean up incomplete dump", zap.Error(abortErr))
		}
		return err
	}

	d.Close()

	return nil
}

// overtakeContract walks all epochs up to the current one and writes them
// along with their nodes into the dump. Epochs never set in the contract are
// skipped.
func overtakeContract(ctx context.Context, log *zap.Logger, from *nodelist.ContractReader, to *dump.Creator) error {
	current, err := from.CurrentEpoch(ctx)
	if err != nil {
		return fmt.Errorf("get current epoch: %w", err)
	}

	for epoch := big.NewInt(1); epoch.Cmp(current) <= 0; epoch = new(big.Int).Add(epoch, big.NewInt(1)) {
		info, err := from.GetEpochInfo(ctx, epoch)
		if err != nil {
			return fmt.Errorf("get info of epoch %s: %w", epoch, err)
		}

		if info.ID.Sign() == 0 {
			log.Debug("epoch is not set, skipping", zap.Stringer("epoch", epoch))
			continue
		}

		log.Info("processing epoch...", zap.Stringer("epoch", epoch), zap.Int("nodes", len(info.NodeList)))

		status, err := from.GetPssStatus(ctx, info.PrevEpoch, info.ID)
		if err != nil {
			return fmt.Errorf("get PSS status of epoch %s: %w", epoch, err)
		}

		to.AddEpoch(dump.Epoch{
			ID:        info.ID,
			N:         info.N,
			K:         info.K,
			T:         info.T,
			NodeList:  info.NodeList,
			PrevEpoch: info.PrevEpoch,
			NextEpoch: info.NextEpoch,
			PssStatus: status,
		})

		for _, node := range info.NodeList {
			details, err := from.NodeDetails(ctx, node)
			if err != nil {
				return fmt.Errorf("get details of node %s: %w", node, err)
			}

			err = to.AddNode(dump.Node{
				Epoch:              info.ID,
				Address:            node,
				DeclaredIP:         details.DeclaredIP,
				Position:           details.Position,
				PubKx:              details.PubKx,
				PubKy:              details.PubKy,
				TMP2PListenAddress: details.TMP2PListenAddress,
				P2PListenAddress:   details.P2PListenAddress,
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}
