package transactionSigner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/clients/chain"
	"github.com/twinbase/twinbase-dlt/pkg/config"
)

// gas limit estimates get a 20% buffer
func addGasBuffer(gasLimit uint64) uint64 {
	return gasLimit + gasLimit/5
}

type feeParams struct {
	gasTipCap *big.Int
	gasFeeCap *big.Int
	baseFee   *big.Int
}

// suggestFees returns EIP-1559 fee parameters with a base fee multiplier
// that depends on the network.
func suggestFees(ctx context.Context, backend chain.Backend, chainID *big.Int, logger *zap.Logger) (*feeParams, error) {
	fallbackGasTipCap := big.NewInt(1000000) // 0.001 gwei for L2s and dev chains
	baseFeeMultiplier := int64(2)
	if config.IsEthereum(config.ChainId(chainID.Uint64())) {
		fallbackGasTipCap = big.NewInt(1500000000) // 1.5 gwei
		baseFeeMultiplier = 3
	}

	gasTipCap, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		logger.Sugar().Warnw("Cannot get gasTipCap, using fallback", "error", err)
		gasTipCap = fallbackGasTipCap
	}

	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block header: %w", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	gasFeeCap := new(big.Int).Add(
		new(big.Int).Mul(baseFee, big.NewInt(baseFeeMultiplier)),
		gasTipCap,
	)
	return &feeParams{gasTipCap: gasTipCap, gasFeeCap: gasFeeCap, baseFee: baseFee}, nil
}

func estimateGas(ctx context.Context, backend chain.Backend, from common.Address, tx *types.Transaction, fees *feeParams) (uint64, error) {
	if tx.Gas() > 0 {
		return tx.Gas(), nil
	}
	gasLimit, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        tx.To(),
		GasTipCap: fees.gasTipCap,
		GasFeeCap: fees.gasFeeCap,
		Value:     tx.Value(),
		Data:      tx.Data(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return addGasBuffer(gasLimit), nil
}

// sendAndWait broadcasts a signed transaction and waits until it is mined.
// A failed receipt that consumed the whole gas limit is reported as ErrOutOfGas.
func sendAndWait(ctx context.Context, backend chain.Backend, tx *types.Transaction, logger *zap.Logger) (*types.Receipt, error) {
	if err := backend.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	logger.Info("SignAndSendTransaction: transaction sent",
		zap.String("txHash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.Uint64("gasLimit", tx.Gas()),
	)

	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction receipt: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.Error("SignAndSendTransaction: transaction failed",
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.Uint64("status", receipt.Status),
			zap.Uint64("gasUsed", receipt.GasUsed),
		)
		if receipt.GasUsed == tx.Gas() {
			return receipt, fmt.Errorf("%w: used all %d gas provided in %s", ErrOutOfGas, tx.Gas(), receipt.TxHash.Hex())
		}
		return receipt, fmt.Errorf("transaction %s failed with status %d", receipt.TxHash.Hex(), receipt.Status)
	}

	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}
	logger.Info("SignAndSendTransaction: transaction succeeded",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Uint64("gasUsed", receipt.GasUsed),
		zap.Uint64("blockNumber", blockNumber),
	)
	return receipt, nil
}

// rebuildTx returns an unsigned EIP-1559 copy of tx with the current pending
// nonce and fee suggestions for from.
func rebuildTx(ctx context.Context, backend chain.Backend, chainID *big.Int, from common.Address, tx *types.Transaction, logger *zap.Logger) (*types.Transaction, error) {
	fees, err := suggestFees(ctx, backend, chainID, logger)
	if err != nil {
		return nil, err
	}
	gasLimit, err := estimateGas(ctx, backend, from, tx, fees)
	if err != nil {
		return nil, err
	}
	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: fees.gasTipCap,
		GasFeeCap: fees.gasFeeCap,
		Gas:       gasLimit,
		To:        tx.To(),
		Value:     tx.Value(),
		Data:      tx.Data(),
	}), nil
}

// signedBy reports whether tx carries a valid signature from addr
func signedBy(tx *types.Transaction, signer types.Signer, addr common.Address) bool {
	sender, err := types.Sender(signer, tx)
	return err == nil && sender == addr
}
