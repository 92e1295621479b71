package transactionSigner

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/internal/aws"
	"github.com/twinbase/twinbase-dlt/pkg/clients/chain"
	"github.com/twinbase/twinbase-dlt/pkg/clients/web3signer"
	"github.com/twinbase/twinbase-dlt/pkg/config"
)

var (
	ErrMissingPrivateKey = errors.New("signing key is not configured")
	ErrOutOfGas          = errors.New("transaction ran out of gas")
	ErrUnknownAccount    = errors.New("signer does not hold the account")
)

// ITransactionSigner provides methods for signing Ethereum transactions
type ITransactionSigner interface {
	// GetTransactOpts returns transaction options for building transactions
	// through a bound contract without sending them
	GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error)

	// SignAndSendTransaction signs a transaction if needed, sends it and waits
	// for a successful receipt
	SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

	// GetFromAddress returns the address that will be used for signing
	GetFromAddress() common.Address
}

// NewTransactionSigner builds the signer selected by cfg.Type
func NewTransactionSigner(ctx context.Context, cfg *config.SignerConfig, backend chain.Backend, logger *zap.Logger) (ITransactionSigner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no signer configuration", ErrMissingPrivateKey)
	}

	switch cfg.Type {
	case config.SignerTypePrivateKey, "":
		return NewPrivateKeySigner(cfg.PrivateKey, backend, logger)

	case config.SignerTypeWeb3Signer:
		if cfg.RemoteSigner == nil {
			return nil, fmt.Errorf("remote signer config is required for %s", cfg.Type)
		}
		if err := cfg.RemoteSigner.Validate(); err != nil {
			return nil, fmt.Errorf("invalid remote signer config: %w", err)
		}
		client, err := web3signer.NewWeb3SignerClientFromRemoteSignerConfig(cfg.RemoteSigner, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create web3signer client: %w", err)
		}
		return NewWeb3TransactionSigner(ctx, client, common.HexToAddress(cfg.RemoteSigner.FromAddress), backend, logger)

	case config.SignerTypeAWSKMS:
		if cfg.AWSKMS == nil {
			return nil, fmt.Errorf("aws kms config is required for %s", cfg.Type)
		}
		if err := cfg.AWSKMS.Validate(); err != nil {
			return nil, fmt.Errorf("invalid aws kms config: %w", err)
		}
		awsCfg, err := aws.LoadAWSConfig(ctx, cfg.AWSKMS.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		if identity, err := aws.GetCallerIdentity(ctx, awsCfg); err != nil {
			logger.Sugar().Warnw("Could not resolve AWS caller identity", "error", err)
		} else {
			logger.Sugar().Infow("Using AWS identity for KMS signing", "arn", identity.Arn)
		}
		return NewAWSKMSSigner(ctx, aws.NewKMSClient(awsCfg), cfg.AWSKMS.KeyId, backend, logger)
	}

	return nil, fmt.Errorf("unsupported signer type %q", cfg.Type)
}
