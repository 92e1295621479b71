package transactionSigner

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/clients/chain"
)

// KMSClient is the subset of the AWS KMS API used for signing
type KMSClient interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

var _ KMSClient = (*kms.Client)(nil)

// secp256k1 curve order, used for low-S canonicalization
var (
	secp256k1N, _  = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// AWSKMSSigner signs transactions with an ECC_SECG_P256K1 key held in AWS KMS
type AWSKMSSigner struct {
	backend     chain.Backend
	logger      *zap.Logger
	chainID     *big.Int
	kmsClient   KMSClient
	keyId       string
	publicKey   *ecdsa.PublicKey
	fromAddress common.Address
}

func NewAWSKMSSigner(ctx context.Context, kmsClient KMSClient, keyId string, backend chain.Backend, logger *zap.Logger) (*AWSKMSSigner, error) {
	pubKeyOut, err := kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyId)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyId)
	}

	publicKey, err := parseECDSAPublicKey(pubKeyOut.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", keyId)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	fromAddress := crypto.PubkeyToAddress(*publicKey)
	logger.Sugar().Infow("Created AWS KMS signer",
		"keyId", keyId,
		"address", fromAddress.Hex(),
		"chainId", chainID.String(),
	)

	return &AWSKMSSigner{
		backend:     backend,
		logger:      logger,
		chainID:     chainID,
		kmsClient:   kmsClient,
		keyId:       keyId,
		publicKey:   publicKey,
		fromAddress: fromAddress,
	}, nil
}

func (a *AWSKMSSigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{
		From:    a.fromAddress,
		Context: ctx,
		NoSend:  true,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != a.fromAddress {
				return nil, fmt.Errorf("not authorized to sign for %s", address.Hex())
			}
			return a.signTx(ctx, tx)
		},
	}, nil
}

func (a *AWSKMSSigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	signer := types.LatestSignerForChainID(a.chainID)

	if !signedBy(tx, signer, a.fromAddress) {
		unsigned, err := rebuildTx(ctx, a.backend, a.chainID, a.fromAddress, tx, a.logger)
		if err != nil {
			return nil, err
		}
		tx, err = a.signTx(ctx, unsigned)
		if err != nil {
			return nil, err
		}
	}

	return sendAndWait(ctx, a.backend, tx, a.logger)
}

func (a *AWSKMSSigner) signTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(a.chainID)
	digest := signer.Hash(tx)

	sig, err := a.signDigest(ctx, digest.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign transaction with key %s", a.keyId)
	}
	return tx.WithSignature(signer, sig)
}

// signDigest returns a 65 byte [R || S || V] signature with V in {0, 1}
func (a *AWSKMSSigner) signDigest(ctx context.Context, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("hash must be exactly 32 bytes, got %d", len(digest))
	}

	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyId),
		Message:          digest,
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmsTypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, err
	}

	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(signOutput.Signature, &sigAsn1); err != nil {
		return nil, fmt.Errorf("failed to parse KMS signature: %w", err)
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	s := new(big.Int).SetBytes(sigAsn1.S.Bytes)

	// Apply malleability protection (low-S canonicalization)
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	signature := make([]byte, 65)
	r.FillBytes(signature[0:32])
	s.FillBytes(signature[32:64])

	for recoveryId := byte(0); recoveryId < 2; recoveryId++ {
		signature[64] = recoveryId

		recovered, err := crypto.SigToPub(digest, signature)
		if err != nil {
			a.logger.Debug("Ecrecover failed",
				zap.Uint8("recoveryId", recoveryId),
				zap.Error(err))
			continue
		}
		if recovered.X.Cmp(a.publicKey.X) == 0 && recovered.Y.Cmp(a.publicKey.Y) == 0 {
			return signature, nil
		}
	}

	return nil, fmt.Errorf("could not determine valid recovery ID - signature recovery failed")
}

func (a *AWSKMSSigner) GetFromAddress() common.Address {
	return a.fromAddress
}


// parseECDSAPublicKey parses the DER-encoded public key from KMS
func parseECDSAPublicKey(derBytes []byte) (*ecdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}
