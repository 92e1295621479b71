package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/twinbase/twinbase-dlt/internal/cliutil"
	"github.com/twinbase/twinbase-dlt/pkg/builder"
	"github.com/twinbase/twinbase-dlt/pkg/config"
	"github.com/twinbase/twinbase-dlt/pkg/persistence"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/archive"
	"github.com/twinbase/twinbase-dlt/pkg/treeFile"
)

func main() {
	if err := cliutil.LoadEnvFile(); err != nil {
		log.Fatalf("Application error: %v", err)
	}

	flags := cliutil.CommonFlags(5 * time.Minute)
	flags = append(flags,
		&cli.StringFlag{
			Name:    "tree-file",
			Usage:   "Where the tree dump is written",
			Value:   config.DefaultTreeFile,
			EnvVars: []string{config.EnvTreeFile},
		},
		&cli.StringFlag{
			Name:    "root-target",
			Usage: fmt.Sprintf("Contract receiving setRootHash: %s or %s. The verifier only proves twins against %s",
				config.TwinRegistryName, config.RootHashRegistryName, config.RootHashRegistryName),
			Value:   config.TwinRegistryName,
			EnvVars: []string{config.EnvRootTarget},
		},
		&cli.BoolFlag{
			Name:    "sort-leaves",
			Usage:   "Sort leaves by hash so the root ignores registry order",
			Value:   true,
			EnvVars: []string{config.EnvSortLeaves},
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Usage:   "Build and write the tree without submitting the root",
			EnvVars: []string{config.EnvDryRun},
		},
	)
	flags = append(flags, cliutil.SignerFlags()...)
	flags = append(flags, cliutil.ArchiveFlags()...)

	app := &cli.App{
		Name:  "tree-builder",
		Usage: "Build the twin merkle tree and submit its root",
		Description: `Reads every twin hash from the TwinRegistry contract, builds a
standard-v1 merkle tree over them, submits the root with setRootHash and
writes the tree dump next to the contract info.`,
		Version: "1.0.0",
		Flags:   flags,
		Action:  runTreeBuilder,
		Commands: []*cli.Command{
			{
				Name:  "builds",
				Usage: "Inspect and prune the build archive",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List archived builds, oldest first",
						Action: runListBuilds,
					},
					{
						Name:   "latest",
						Usage:  "Show the build whose root was last submitted",
						Action: runLatestBuild,
					},
					{
						Name:      "show",
						Usage:     "Show one build",
						ArgsUsage: "<build id>",
						Action:    runShowBuild,
					},
					{
						Name:  "prune",
						Usage: "Delete the oldest builds, never the latest",
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "keep",
								Usage: "Number of builds to keep",
								Value: 10,
							},
						},
						Action: runPruneBuilds,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func parseBuilderConfig(c *cli.Context) *config.BuilderConfig {
	return &config.BuilderConfig{
		ContractInfo: c.String("contract-info"),
		TreeFile:     c.String("tree-file"),
		RootTarget:   c.String("root-target"),
		SortLeaves:   c.Bool("sort-leaves"),
		DryRun:       c.Bool("dry-run"),
		Timeout:      c.Duration("timeout"),
		Signer:       cliutil.ParseSignerConfig(c),
		Archive:      cliutil.ParseArchiveConfig(c),
		Debug:        c.Bool("verbose"),
	}
}

func runTreeBuilder(c *cli.Context) error {
	l, err := cliutil.NewLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parseBuilderConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context, cfg.Timeout)
	defer cancel()

	var signerCfg *config.SignerConfig
	if !cfg.DryRun {
		signerCfg = &cfg.Signer
	}
	contracts, err := cliutil.DialContracts(ctx, cfg.ContractInfo, signerCfg, cfg.RootTarget, l)
	if err != nil {
		return err
	}
	defer contracts.Close()

	buildArchive, err := archive.Open(&cfg.Archive, l)
	if err != nil {
		return err
	}
	if buildArchive != nil {
		defer func() { _ = buildArchive.Close() }()
	}

	b, err := builder.NewBuilder(contracts.Caller, treeFile.NewFileWriter(cfg.TreeFile), buildArchive, builder.Options{
		RootTarget: cfg.RootTarget,
		SortLeaves: cfg.SortLeaves,
		DryRun:     cfg.DryRun,
	}, l)
	if err != nil {
		return err
	}

	result, err := b.Run(ctx)
	if err != nil {
		return err
	}

	fields := []interface{}{
		"root", result.Root.Hex(),
		"leaves", result.LeafCount,
		"treeFile", cfg.TreeFile,
	}
	if result.Receipt != nil {
		fields = append(fields, "txHash", result.Receipt.TxHash.Hex())
	}
	if result.BuildID != "" {
		fields = append(fields, "buildId", result.BuildID)
	}
	l.Sugar().Infow("Tree build complete", fields...)
	return nil
}

// buildSummary is the printed form of an archived build, without the dump
type buildSummary struct {
	ID             string `json:"id"`
	Root           string `json:"root"`
	TxHash         string `json:"txHash,omitempty"`
	TargetContract string `json:"targetContract,omitempty"`
	LeafCount      int    `json:"leafCount"`
	DryRun         bool   `json:"dryRun"`
	CreatedAt      string `json:"createdAt"`
}

func summarize(r *persistence.BuildRecord) buildSummary {
	s := buildSummary{
		ID:             r.ID.String(),
		Root:           r.Root.Hex(),
		TargetContract: r.TargetContract,
		LeafCount:      r.LeafCount,
		DryRun:         r.IsDryRun(),
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
	if !r.IsDryRun() {
		s.TxHash = r.TxHash.Hex()
	}
	return s
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// withArchive opens the persistent archive named by the app flags
func withArchive(c *cli.Context, fn func(a persistence.IBuildArchive) error) error {
	l, err := cliutil.NewLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := cliutil.ParseArchiveConfig(c)
	if !cfg.Persistent() {
		return fmt.Errorf("a persistent --archive-type is required, got %q", cfg.Type)
	}
	a, err := archive.Open(&cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}

func runListBuilds(c *cli.Context) error {
	return withArchive(c, func(a persistence.IBuildArchive) error {
		builds, err := a.ListBuilds()
		if err != nil {
			return err
		}
		summaries := make([]buildSummary, 0, len(builds))
		for _, b := range builds {
			summaries = append(summaries, summarize(b))
		}
		return printJSON(summaries)
	})
}

func runLatestBuild(c *cli.Context) error {
	return withArchive(c, func(a persistence.IBuildArchive) error {
		latest, err := a.GetLatestBuild()
		if err != nil {
			return err
		}
		if latest == nil {
			return fmt.Errorf("no submitted build in the archive")
		}
		return printJSON(summarize(latest))
	})
}

func runShowBuild(c *cli.Context) error {
	if !c.Args().Present() {
		return fmt.Errorf("build id is required")
	}
	return withArchive(c, func(a persistence.IBuildArchive) error {
		record, err := persistence.FindBuild(a, c.Args().First())
		if err != nil {
			return err
		}
		tree, err := record.Tree()
		if err != nil {
			return err
		}
		out, err := treeFile.Marshal(tree)
		if err != nil {
			return err
		}
		if err := printJSON(summarize(record)); err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	})
}

func runPruneBuilds(c *cli.Context) error {
	return withArchive(c, func(a persistence.IBuildArchive) error {
		deleted, err := persistence.PruneBuilds(a, c.Int("keep"))
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(deleted))
		for _, id := range deleted {
			ids = append(ids, id.String())
		}
		return printJSON(map[string]interface{}{"deleted": ids})
	})
}
