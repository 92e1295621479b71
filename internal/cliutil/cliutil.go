// Package cliutil holds the flags and wiring shared by the twinbase binaries.
package cliutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/clients/chain"
	"github.com/twinbase/twinbase-dlt/pkg/config"
	"github.com/twinbase/twinbase-dlt/pkg/contractCaller/caller"
	"github.com/twinbase/twinbase-dlt/pkg/logger"
	"github.com/twinbase/twinbase-dlt/pkg/transactionSigner"
)

// LoadEnvFile loads .env from the working directory when present
func LoadEnvFile() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func CommonFlags(defaultTimeout time.Duration) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "contract-info",
			Usage:   "Path or URL of contract-info.json",
			Value:   config.DefaultContractInfoFile,
			EnvVars: []string{config.EnvContractInfo},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Deadline for the whole command",
			Value:   defaultTimeout,
			EnvVars: []string{config.EnvTimeout},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Usage:   "Enable verbose logging",
			EnvVars: []string{config.EnvVerbose},
		},
	}
}

func SignerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "signer-type",
			Usage:   fmt.Sprintf("Transaction signer: %s, %s or %s", config.SignerTypePrivateKey, config.SignerTypeWeb3Signer, config.SignerTypeAWSKMS),
			Value:   string(config.SignerTypePrivateKey),
			EnvVars: []string{config.EnvSignerType},
		},
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "Hex private key for the private-key signer",
			EnvVars: []string{config.EnvDLTPrivateKey},
		},
		&cli.StringFlag{
			Name:    "web3signer-url",
			Usage:   "Web3Signer endpoint",
			EnvVars: []string{config.EnvWeb3SignerUrl},
		},
		&cli.StringFlag{
			Name:    "web3signer-ca-cert",
			Usage:   "CA certificate (PEM) for the Web3Signer endpoint",
			EnvVars: []string{config.EnvWeb3SignerCACert},
		},
		&cli.StringFlag{
			Name:    "web3signer-cert",
			Usage:   "Client certificate (PEM) for Web3Signer mTLS",
			EnvVars: []string{config.EnvWeb3SignerCert},
		},
		&cli.StringFlag{
			Name:    "web3signer-key",
			Usage:   "Client key (PEM) for Web3Signer mTLS",
			EnvVars: []string{config.EnvWeb3SignerKey},
		},
		&cli.StringFlag{
			Name:    "signer-address",
			Usage:   "Account address held by the remote signer",
			EnvVars: []string{config.EnvSignerAddress},
		},
		&cli.StringFlag{
			Name:    "kms-key-id",
			Usage:   "AWS KMS key id for the aws-kms signer",
			EnvVars: []string{config.EnvAWSKMSKeyId},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region of the KMS key",
			EnvVars: []string{config.EnvAWSRegion},
		},
	}
}

func ArchiveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "archive-type",
			Usage:   "Build archive backend: none, badger, leveldb or redis",
			Value:   string(config.ArchiveTypeNone),
			EnvVars: []string{config.EnvArchiveType},
		},
		&cli.StringFlag{
			Name:    "archive-path",
			Usage:   "Directory of the badger or leveldb archive",
			EnvVars: []string{config.EnvArchivePath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis address for the redis archive",
			EnvVars: []string{config.EnvRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number",
			EnvVars: []string{config.EnvRedisDB},
		},
	}
}

func ParseSignerConfig(c *cli.Context) config.SignerConfig {
	sc := config.SignerConfig{
		Type:       config.SignerType(c.String("signer-type")),
		PrivateKey: c.String("private-key"),
	}
	switch sc.Type {
	case config.SignerTypeWeb3Signer:
		sc.RemoteSigner = &config.RemoteSignerConfig{
			Url:         c.String("web3signer-url"),
			CACert:      c.String("web3signer-ca-cert"),
			Cert:        c.String("web3signer-cert"),
			Key:         c.String("web3signer-key"),
			FromAddress: c.String("signer-address"),
		}
	case config.SignerTypeAWSKMS:
		sc.AWSKMS = &config.AWSKMSSignerConfig{
			KeyId:  c.String("kms-key-id"),
			Region: c.String("aws-region"),
		}
	}
	return sc
}

func ParseArchiveConfig(c *cli.Context) config.ArchiveConfig {
	return config.ArchiveConfig{
		Type:          config.ArchiveType(c.String("archive-type")),
		Path:          c.String("archive-path"),
		RedisAddress:  c.String("redis-address"),
		RedisPassword: c.String("redis-password"),
		RedisDB:       c.Int("redis-db"),
	}
}

// NewLogger builds the process logger from the verbose flag
func NewLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

// Contracts is the chain wiring of a command
type Contracts struct {
	Info   config.ContractInfoFile
	Pool   *chain.Pool
	Caller *caller.ContractCaller
	Signer transactionSigner.ITransactionSigner
}

func (c *Contracts) Close() {
	c.Pool.Close()
}

// DialContracts loads the contract info and builds a contract caller. When
// signerCfg is non-nil a signer is created against the node of signerContract.
func DialContracts(
	ctx context.Context,
	contractInfoLocation string,
	signerCfg *config.SignerConfig,
	signerContract string,
	l *zap.Logger,
) (*Contracts, error) {
	info, err := config.LoadContractInfo(ctx, contractInfoLocation)
	if err != nil {
		return nil, err
	}

	pool := chain.NewPool(l)
	out := &Contracts{Info: info, Pool: pool}

	if signerCfg != nil {
		target, err := info.Get(signerContract)
		if err != nil {
			pool.Close()
			return nil, err
		}
		backend, err := pool.Get(target.Node)
		if err != nil {
			pool.Close()
			return nil, err
		}
		signer, err := transactionSigner.NewTransactionSigner(ctx, signerCfg, backend, l)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create transaction signer: %w", err)
		}
		out.Signer = signer
		l.Sugar().Infow("Transaction signer ready",
			"type", string(signerCfg.Type),
			"address", signer.GetFromAddress().Hex(),
		)
	}

	cc, err := caller.NewContractCaller(info, pool, out.Signer, l)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create contract caller: %w", err)
	}
	out.Caller = cc
	return out, nil
}
