package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/twinbase/twinbase-dlt/internal/cliutil"
	"github.com/twinbase/twinbase-dlt/pkg/config"
	"github.com/twinbase/twinbase-dlt/pkg/publisher"
)

func main() {
	if err := cliutil.LoadEnvFile(); err != nil {
		log.Fatalf("Application error: %v", err)
	}

	flags := cliutil.CommonFlags(10 * time.Minute)
	flags = append(flags,
		&cli.StringFlag{
			Name:    "docs-dir",
			Usage:   "Directory holding one folder per twin",
			Value:   config.DefaultDocsDir,
			EnvVars: []string{config.EnvDocsDir},
		},
		&cli.Uint64Flag{
			Name:    "gas",
			Usage:   "Gas limit of each postTwinHash transaction",
			Value:   config.DefaultGasProvided,
			EnvVars: []string{config.EnvDLTGasProvided},
		},
	)
	flags = append(flags, cliutil.SignerFlags()...)

	app := &cli.App{
		Name:  "twin-publisher",
		Usage: "Post changed twin document hashes to the TwinRegistry",
		Description: `Walks the twin folders under the docs directory. Twins whose hash
differs from the registry are salted, rewritten as index.json and
index.yaml, and posted with postTwinHash.`,
		Version: "1.0.0",
		Flags:   flags,
		Action:  runTwinPublisher,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func parsePublisherConfig(c *cli.Context) *config.PublisherConfig {
	return &config.PublisherConfig{
		ContractInfo: c.String("contract-info"),
		DocsDir:      c.String("docs-dir"),
		GasProvided:  c.Uint64("gas"),
		Timeout:      c.Duration("timeout"),
		Signer:       cliutil.ParseSignerConfig(c),
		Debug:        c.Bool("verbose"),
	}
}

func runTwinPublisher(c *cli.Context) error {
	l, err := cliutil.NewLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parsePublisherConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context, cfg.Timeout)
	defer cancel()

	contracts, err := cliutil.DialContracts(ctx, cfg.ContractInfo, &cfg.Signer, config.TwinRegistryName, l)
	if err != nil {
		return err
	}
	defer contracts.Close()

	registry, err := contracts.Info.Get(config.TwinRegistryName)
	if err != nil {
		return err
	}
	var minter common.Address
	if registry.Minter != "" {
		minter = common.HexToAddress(registry.Minter)
	}

	p, err := publisher.NewPublisher(contracts.Caller, publisher.Options{
		DocsDir:  cfg.DocsDir,
		GasLimit: cfg.GasProvided,
		Minter:   minter,
	}, l)
	if err != nil {
		return err
	}

	results, err := p.Run(ctx)
	for _, r := range results {
		l.Sugar().Infow("Twin",
			"id", r.ID,
			"outcome", string(r.Outcome),
			"hash", r.Hash.Hex(),
			"folder", r.Folder,
		)
	}
	return err
}
