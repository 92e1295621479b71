package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/internal/cliutil"
	"github.com/twinbase/twinbase-dlt/pkg/config"
	"github.com/twinbase/twinbase-dlt/pkg/persistence"
	"github.com/twinbase/twinbase-dlt/pkg/persistence/archive"
	"github.com/twinbase/twinbase-dlt/pkg/server"
	"github.com/twinbase/twinbase-dlt/pkg/treeFile"
	"github.com/twinbase/twinbase-dlt/pkg/twin"
	"github.com/twinbase/twinbase-dlt/pkg/verifier"
)

var errValidationFailed = errors.New("twin validation failed")

func main() {
	if err := cliutil.LoadEnvFile(); err != nil {
		log.Fatalf("Application error: %v", err)
	}

	flags := cliutil.CommonFlags(30 * time.Second)
	flags = append(flags,
		&cli.StringFlag{
			Name:    "tree",
			Usage:   "Path or URL of tree.json",
			Value:   config.DefaultTreeFile,
			EnvVars: []string{config.EnvTreeSource},
		},
		&cli.StringFlag{
			Name:    "docs-dir",
			Usage:   "Static docs directory served at /",
			Value:   config.DefaultDocsDir,
			EnvVars: []string{config.EnvDocsDir},
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Value:   config.DefaultPort,
			Usage:   "HTTP server port",
			EnvVars: []string{config.EnvPort},
		},
		&cli.BoolFlag{
			Name:  "tree-from-archive",
			Usage: "Prove against the latest archived build instead of --tree",
		},
	)
	flags = append(flags, cliutil.ArchiveFlags()...)

	app := &cli.App{
		Name:    "twin-verifier",
		Usage:   "Verify twin documents against the registry and the merkle root",
		Version: "1.0.0",
		Flags:   flags,
		Commands: []*cli.Command{
			{
				Name:      "verify",
				Usage:     "Verify one twin document and print the report",
				ArgsUsage: "[document path or URL]",
				Action:    runVerify,
			},
			{
				Name:  "serve",
				Usage: "Serve the docs site and the verification API",
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:    "rate-limit",
						Usage:   "API requests per second, 0 for unlimited",
						Value:   10,
						EnvVars: []string{config.EnvRateLimit},
					},
					&cli.IntFlag{
						Name:    "rate-burst",
						Usage:   "API request burst size",
						Value:   20,
						EnvVars: []string{config.EnvRateBurst},
					},
					&cli.StringSliceFlag{
						Name:    "document-hosts",
						Usage:   "Hosts documentUrl may point at, empty for any",
						EnvVars: []string{config.EnvDocumentHosts},
					},
				},
				Action: runServe,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func parseVerifierConfig(c *cli.Context) *config.VerifierConfig {
	return &config.VerifierConfig{
		ContractInfo:      c.String("contract-info"),
		TreeSource:        c.String("tree"),
		DocsDir:           c.String("docs-dir"),
		Port:              c.Int("port"),
		Timeout:           c.Duration("timeout"),
		RequestsPerSecond: c.Float64("rate-limit"),
		Burst:             c.Int("rate-burst"),
		DocumentHosts:     c.StringSlice("document-hosts"),
		TreeFromArchive:   c.Bool("tree-from-archive"),
		Archive:           cliutil.ParseArchiveConfig(c),
		Debug:             c.Bool("verbose"),
	}
}

// service is a read-only verifier with the resources it holds open
type service struct {
	verifier  *verifier.Verifier
	contracts *cliutil.Contracts
	archive   persistence.IBuildArchive
}

func (s *service) Close() {
	s.contracts.Close()
	if s.archive != nil {
		_ = s.archive.Close()
	}
}

// newService wires a read-only verifier for cfg
func newService(ctx context.Context, cfg *config.VerifierConfig, l *zap.Logger) (*service, error) {
	contracts, err := cliutil.DialContracts(ctx, cfg.ContractInfo, nil, "", l)
	if err != nil {
		return nil, err
	}
	svc := &service{contracts: contracts}

	var trees treeFile.ITreeSource = treeFile.NewLocationSource(cfg.TreeSource)
	if cfg.TreeFromArchive {
		svc.archive, err = archive.Open(&cfg.Archive, l)
		if err != nil {
			svc.Close()
			return nil, err
		}
		trees = treeFile.NewArchiveSource(svc.archive, string(cfg.Archive.Type))
	}

	svc.verifier, err = verifier.NewVerifier(contracts.Caller, contracts.Caller, trees, l)
	if err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}

func runVerify(c *cli.Context) error {
	l, err := cliutil.NewLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parseVerifierConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	document := config.DefaultTwinDocument
	if c.Args().Present() {
		document = c.Args().First()
	}

	ctx, cancel := context.WithTimeout(c.Context, cfg.Timeout)
	defer cancel()

	svc, err := newService(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer svc.Close()

	validation, err := svc.verifier.ValidateTwin(ctx, twin.NewLocationLoader(document))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(validation, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	fmt.Println(string(out))

	if !validation.Success {
		return fmt.Errorf("%w: %s", errValidationFailed, document)
	}
	return nil
}

func runServe(c *cli.Context) error {
	l, err := cliutil.NewLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parseVerifierConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	svc, err := newService(dialCtx, cfg, l)
	cancel()
	if err != nil {
		return err
	}
	defer svc.Close()

	s := server.NewServer(svc.verifier, server.Config{
		Port:              cfg.Port,
		DocsDir:           cfg.DocsDir,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		DocumentHosts:     cfg.DocumentHosts,
	}, l)
	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Twin verifier running", "port", cfg.Port, "docsDir", cfg.DocsDir, "tree", cfg.TreeSource)
	l.Sugar().Infow("Available endpoints",
		"docs", "GET /",
		"validate", "POST /api/validate",
		"status", "GET /api/status",
		"reset", "POST /api/reset",
		"proof", "GET /api/proof?hash=")

	<-ctx.Done()
	l.Sugar().Info("Shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return s.Stop(shutdownCtx)
}
