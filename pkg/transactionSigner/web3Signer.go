package transactionSigner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/clients/chain"
	"github.com/twinbase/twinbase-dlt/pkg/clients/web3signer"
)

// Web3TransactionSigner implements ITransactionSigner using a Web3Signer service
type Web3TransactionSigner struct {
	backend          chain.Backend
	logger           *zap.Logger
	chainID          *big.Int
	web3SignerClient web3signer.IWeb3Signer
	fromAddress      common.Address
}

// NewWeb3TransactionSigner creates a new Web3TransactionSigner
func NewWeb3TransactionSigner(ctx context.Context, web3SignerClient web3signer.IWeb3Signer, fromAddress common.Address, backend chain.Backend, logger *zap.Logger) (*Web3TransactionSigner, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	accounts, err := web3SignerClient.EthAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list Web3Signer accounts: %w", err)
	}
	if !containsAccount(accounts, fromAddress) {
		return nil, fmt.Errorf("%w: %s not among %d Web3Signer accounts", ErrUnknownAccount, fromAddress.Hex(), len(accounts))
	}

	return &Web3TransactionSigner{
		backend:          backend,
		logger:           logger,
		chainID:          chainID,
		web3SignerClient: web3SignerClient,
		fromAddress:      fromAddress,
	}, nil
}

// GetTransactOpts returns options whose Signer passes the transaction through
// unsigned. Signing happens remotely in SignAndSendTransaction.
func (w3s *Web3TransactionSigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts := &bind.TransactOpts{
		From:    w3s.fromAddress,
		Context: ctx,
		NoSend:  true,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return tx, nil
		},
	}
	return opts, nil
}

// SignAndSendTransaction signs a transaction and sends it to the network
func (w3s *Web3TransactionSigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	fees, err := suggestFees(ctx, w3s.backend, w3s.chainID, w3s.logger)
	if err != nil {
		return nil, err
	}

	gasLimit, err := estimateGas(ctx, w3s.backend, w3s.fromAddress, tx, fees)
	if err != nil {
		return nil, err
	}

	// The incoming nonce may legitimately be 0, so always ask the network
	nonce, err := w3s.backend.PendingNonceAt(ctx, w3s.fromAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	txData := map[string]interface{}{
		"to":                   tx.To().Hex(),
		"value":                hexutil.EncodeBig(tx.Value()),
		"gas":                  hexutil.EncodeUint64(gasLimit),
		"maxPriorityFeePerGas": hexutil.EncodeBig(fees.gasTipCap),
		"maxFeePerGas":         hexutil.EncodeBig(fees.gasFeeCap),
		"nonce":                hexutil.EncodeUint64(nonce),
		"data":                 hexutil.Encode(tx.Data()),
		"type":                 "0x2", // EIP-1559 transaction type
		"chainId":              hexutil.EncodeUint64(w3s.chainID.Uint64()),
	}

	w3s.logger.Info("SignAndSendTransaction: signing transaction with Web3Signer",
		zap.String("to", tx.To().Hex()),
		zap.String("maxPriorityFeePerGas", fees.gasTipCap.String()),
		zap.String("maxFeePerGas", fees.gasFeeCap.String()),
		zap.String("baseFee", fees.baseFee.String()),
		zap.Uint64("gasLimit", gasLimit),
		zap.Uint64("nonce", nonce),
	)

	signedTxHex, err := w3s.web3SignerClient.EthSignTransaction(ctx, w3s.fromAddress.Hex(), txData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction with Web3Signer: %w", err)
	}

	signedTxBytes, err := hexutil.Decode(signedTxHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}

	var signedTx types.Transaction
	if err := signedTx.UnmarshalBinary(signedTxBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signed transaction: %w", err)
	}

	return sendAndWait(ctx, w3s.backend, &signedTx, w3s.logger)
}

// GetFromAddress returns the address that will be used for signing
func (w3s *Web3TransactionSigner) GetFromAddress() common.Address {
	return w3s.fromAddress
}


func containsAccount(accounts []string, addr common.Address) bool {
	for _, a := range accounts {
		if common.IsHexAddress(a) && common.HexToAddress(a) == addr {
			return true
		}
	}
	return false
}
