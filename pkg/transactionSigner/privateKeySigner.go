package transactionSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/clients/chain"
)

// PrivateKeySigner signs transactions with a locally held secp256k1 key
type PrivateKeySigner struct {
	backend     chain.Backend
	logger      *zap.Logger
	chainID     *big.Int
	privateKey  *ecdsa.PrivateKey
	fromAddress common.Address
}

// NewPrivateKeySigner parses a hex private key, with or without 0x prefix.
// An empty key fails with ErrMissingPrivateKey.
func NewPrivateKeySigner(privateKeyHex string, backend chain.Backend, logger *zap.Logger) (*PrivateKeySigner, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		return nil, ErrMissingPrivateKey
	}

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	chainID, err := backend.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	fromAddress := crypto.PubkeyToAddress(privateKey.PublicKey)
	logger.Sugar().Infow("Created private key signer",
		"address", fromAddress.Hex(),
		"chainId", chainID.String(),
	)

	return &PrivateKeySigner{
		backend:     backend,
		logger:      logger,
		chainID:     chainID,
		privateKey:  privateKey,
		fromAddress: fromAddress,
	}, nil
}

// GetTransactOpts returns keyed options that build and sign but do not send
func (pks *PrivateKeySigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(pks.privateKey, pks.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.NoSend = true
	return opts, nil
}

// SignAndSendTransaction sends tx, signing it first when it carries no signature
// from this signer's key.
func (pks *PrivateKeySigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	signer := types.LatestSignerForChainID(pks.chainID)

	if !signedBy(tx, signer, pks.fromAddress) {
		unsigned, err := rebuildTx(ctx, pks.backend, pks.chainID, pks.fromAddress, tx, pks.logger)
		if err != nil {
			return nil, err
		}
		tx, err = types.SignTx(unsigned, signer, pks.privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to sign transaction: %w", err)
		}
	}

	return sendAndWait(ctx, pks.backend, tx, pks.logger)
}

func (pks *PrivateKeySigner) GetFromAddress() common.Address {
	return pks.fromAddress
}

