package main

import (
	"fmt"

	"github.com/arcana-network/nodelistctl/admin"
	"github.com/urfave/cli/v2"
)

const (
	flagConfig   = "config"
	flagRPC      = "rpc"
	flagContract = "contract"

	flagPssStatusChange = "pss-status-change"
	flagPssStatus       = "pss-status"
	flagEpochChange     = "epoch-change"
	flagEpoch           = "epoch"
	flagEpochInfo       = "epoch-info"
	flagSetEpochInfo    = "set-epoch-info"
	flagN               = "n"
	flagK               = "k"
	flagT               = "t"
	flagWhitelist       = "whitelist"
	flagIsWhitelisted   = "is-whitelisted"
	flagTargetEpoch     = "target-epoch"
	flagNodes           = "nodes"
	flagNodeDetails     = "node-details"
	flagCurrentDetails  = "current-epoch-details"
	flagOwner           = "owner"
	flagBalance         = "balance"
	flagBalanceOf       = "balance-of"
	flagAddressFromKey  = "address-from-key"
	flagSendValue       = "send-value"
	flagTo              = "to"
	flagAmount          = "amount"
)

func flags() []cli.Flag {
	return []cli.Flag{
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
		&cli.Int64SliceFlag{
			Name:    flagPssStatusChange,
			Aliases: []string{"pc"},
			Usage:   "Change PSS status for epochs `OLD,NEW` to `STATUS` (e.g. 1,2,3)",
		},
		&cli.Int64SliceFlag{
			Name:    flagPssStatus,
			Aliases: []string{"p"},
			Usage:   "Get PSS status for epochs `OLD,NEW`",
		},
		&cli.Uint64Flag{
			Name:    flagEpochChange,
			Aliases: []string{"ec"},
			Usage:   "Change current epoch to `EPOCH`",
		},
		&cli.BoolFlag{
			Name:    flagEpoch,
			Aliases: []string{"e"},
			Usage:   "Get current epoch",
		},
		&cli.Uint64Flag{
			Name:    flagEpochInfo,
			Aliases: []string{"ei"},
			Usage:   "Get info of `EPOCH`",
		},
		&cli.Uint64Flag{
			Name:    flagSetEpochInfo,
			Aliases: []string{"sei"},
			Usage:   "Replace info of `EPOCH` with --n, --k and --t clearing its node list",
		},
		&cli.Uint64Flag{
			Name:  flagN,
			Usage: "Number of nodes for --set-epoch-info",
		},
		&cli.Uint64Flag{
			Name:  flagK,
			Usage: "Reconstruction threshold for --set-epoch-info",
		},
		&cli.Uint64Flag{
			Name:  flagT,
			Usage: "Maximum number of malicious nodes for --set-epoch-info",
		},
		&cli.StringFlag{
			Name:    flagWhitelist,
			Aliases: []string{"w"},
			Usage:   "Whitelist node `ADDRESS` in --target-epoch",
		},
		&cli.StringFlag{
			Name:    flagIsWhitelisted,
			Aliases: []string{"iw"},
			Usage:   "Check whether node `ADDRESS` is whitelisted in --target-epoch",
		},
		&cli.Uint64Flag{
			Name:    flagTargetEpoch,
			Aliases: []string{"te"},
			Usage:   "`EPOCH` for --whitelist and --is-whitelisted",
		},
		&cli.Uint64Flag{
			Name:  flagNodes,
			Usage: "List nodes registered in `EPOCH`",
		},
		&cli.StringFlag{
			Name:  flagNodeDetails,
			Usage: "Get details of node `ADDRESS`",
		},
		&cli.BoolFlag{
			Name:    flagCurrentDetails,
			Aliases: []string{"ced"},
			Usage:   "Get details of all nodes registered in the current epoch",
		},
		&cli.BoolFlag{
			Name:  flagOwner,
			Usage: "Get contract owner",
		},
		&cli.BoolFlag{
			Name:    flagBalance,
			Aliases: []string{"b"},
			Usage:   "Check balance of the owner",
		},
		&cli.StringFlag{
			Name:    flagBalanceOf,
			Aliases: []string{"bo"},
			Usage:   "Check balance of `ADDRESS`",
		},
		&cli.StringFlag{
			Name:    flagAddressFromKey,
			Aliases: []string{"ak"},
			Usage:   "Print address of the hex private `KEY`",
		},
		&cli.StringFlag{
			Name:    flagSendValue,
			Aliases: []string{"sv"},
			Usage:   "Send --amount to --to from the account of the hex private `KEY`",
		},
		&cli.StringFlag{
			Name:  flagTo,
			Usage: "Recipient `ADDRESS` for --send-value",
		},
		&cli.StringFlag{
			Name:  flagAmount,
			Usage: "Amount in ether for --send-value",
		},
	}
}

// readOptions converts parsed command line into admin.Options.
func readOptions(c *cli.Context) (admin.Options, error) {
	var (
		o   admin.Options
		err error
	)

	if c.IsSet(flagPssStatusChange) {
		o.PssStatusChange, err = nonNegative(flagPssStatusChange, c.Int64Slice(flagPssStatusChange))
		if err != nil {
			return o, err
		}
	}
	if c.IsSet(flagPssStatus) {
		o.PssStatus, err = nonNegative(flagPssStatus, c.Int64Slice(flagPssStatus))
		if err != nil {
			return o, err
		}
	}

	o.EpochChange = optUint64(c, flagEpochChange)
	o.GetEpoch = c.Bool(flagEpoch)
	o.EpochInfo = optUint64(c, flagEpochInfo)
	o.SetEpochInfo = optUint64(c, flagSetEpochInfo)
	o.N = optUint64(c, flagN)
	o.K = optUint64(c, flagK)
	o.T = optUint64(c, flagT)
	o.Whitelist = c.String(flagWhitelist)
	o.IsWhitelisted = c.String(flagIsWhitelisted)
	o.TargetEpoch = optUint64(c, flagTargetEpoch)
	o.Nodes = optUint64(c, flagNodes)
	o.NodeDetails = c.String(flagNodeDetails)
	o.CurrentEpochDetails = c.Bool(flagCurrentDetails)
	o.Owner = c.Bool(flagOwner)
	o.Balance = c.Bool(flagBalance)
	o.BalanceOf = c.String(flagBalanceOf)
	o.AddressFromKey = c.String(flagAddressFromKey)
	o.SendValue = c.String(flagSendValue)
	o.To = c.String(flagTo)
	o.Amount = c.String(flagAmount)

	return o, nil
}

func optUint64(c *cli.Context, name string) *uint64 {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Uint64(name)
	return &v
}

func nonNegative(name string, vals []int64) ([]uint64, error) {
	res := make([]uint64, len(vals))
	for i := range vals {
		if vals[i] < 0 {
			return nil, fmt.Errorf("--%s: negative value %d", name, vals[i])
		}
		res[i] = uint64(vals[i])
	}
	return res, nil
}
