package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/twinbase/twinbase-dlt/internal/cliutil"
	"github.com/twinbase/twinbase-dlt/pkg/config"
)

// Prints the account of the configured transaction signer and whether it is
// the minter recorded in contract-info.json.
func main() {
	if err := cliutil.LoadEnvFile(); err != nil {
		log.Fatalf("Application error: %v", err)
	}

	flags := cliutil.CommonFlags(30 * time.Second)
	flags = append(flags, cliutil.SignerFlags()...)

	app := &cli.App{
		Name:   "signer-address",
		Usage:  "Show the account used by the configured signer",
		Flags:  flags,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run(c *cli.Context) error {
	l, err := cliutil.NewLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	signerCfg := cliutil.ParseSignerConfig(c)
	if err := signerCfg.Validate(); err != nil {
		l.Sugar().Fatalw("Invalid signer configuration", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	contracts, err := cliutil.DialContracts(ctx, c.String("contract-info"), &signerCfg, config.TwinRegistryName, l)
	if err != nil {
		l.Sugar().Fatalw("Failed to create signer", "error", err)
	}
	defer contracts.Close()

	address := contracts.Signer.GetFromAddress()
	registry, err := contracts.Info.Get(config.TwinRegistryName)
	if err != nil {
		l.Sugar().Fatalw("Failed to read contract info", "error", err)
	}

	l.Sugar().Infow("Signer",
		"type", string(signerCfg.Type),
		"address", address.Hex(),
		"minter", registry.Minter,
		"isMinter", strings.EqualFold(registry.Minter, address.Hex()),
	)
	return nil
}
