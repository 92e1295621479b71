// Package builder rebuilds the twin merkle tree from the on-chain registry,
// submits its root and persists the dump.
package builder

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/contractCaller"
	"github.com/twinbase/twinbase-dlt/pkg/contracts"
	"github.com/twinbase/twinbase-dlt/pkg/merkle"
	"github.com/twinbase/twinbase-dlt/pkg/persistence"
	"github.com/twinbase/twinbase-dlt/pkg/treeFile"
	"github.com/twinbase/twinbase-dlt/pkg/types"
)

// Options control a builder run
type Options struct {
	// RootTarget names the contract that receives setRootHash
	RootTarget string

	// SortLeaves orders leaves by hash so the root does not depend on
	// registry order
	SortLeaves bool

	// DryRun builds and persists the tree without submitting the root
	DryRun bool
}

// ProofVerifiable reports whether the verifier can prove twins against the
// submitted root. It only checks RootHashRegistry.verifyHash.
func (o Options) ProofVerifiable() bool {
	return o.RootTarget == contracts.RootHashRegistry
}

func DefaultOptions() Options {
	return Options{
		RootTarget: contracts.TwinRegistry,
		SortLeaves: true,
	}
}

// Result summarizes a completed run
type Result struct {
	Root      common.Hash
	LeafCount int
	Receipt   *ethereumTypes.Receipt
	BuildID   string
}

type Builder struct {
	caller  contractCaller.IContractCaller
	writer  treeFile.ITreeWriter
	archive persistence.IBuildArchive
	opts    Options
	logger  *zap.Logger
}

// NewBuilder wires a builder. archive may be nil.
func NewBuilder(
	caller contractCaller.IContractCaller,
	writer treeFile.ITreeWriter,
	archive persistence.IBuildArchive,
	opts Options,
	logger *zap.Logger,
) (*Builder, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("tree writer is required")
	}
	if opts.RootTarget == "" {
		opts.RootTarget = contracts.TwinRegistry
	}
	return &Builder{
		caller:  caller,
		writer:  writer,
		archive: archive,
		opts:    opts,
		logger:  logger,
	}, nil
}

// FetchLeaves reads every registered twin and returns one [hash] leaf per twin,
// in registry order.
func (b *Builder) FetchLeaves(ctx context.Context) ([][32]byte, error) {
	twins, err := b.caller.GetTwins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get twins: %w", err)
	}

	leaves := types.TwinHashes(twins)

	b.logger.Sugar().Infow("Fetched twin hashes", "count", len(leaves))
	return leaves, nil
}

// BuildTree builds the standard bytes32 tree over leaves
func (b *Builder) BuildTree(leaves [][32]byte) (*merkle.StandardTree, error) {
	tree, err := merkle.OfHashes(leaves, merkle.Options{SortLeaves: b.opts.SortLeaves})
	if err != nil {
		return nil, err
	}
	b.logger.Sugar().Infow("Built merkle tree",
		"root", tree.Root().Hex(),
		"leaves", tree.Len(),
		"sorted", b.opts.SortLeaves,
	)
	return tree, nil
}

// SubmitRoot sends setRootHash(root) to the target contract and waits for a
// successful receipt.
func (b *Builder) SubmitRoot(ctx context.Context, tree *merkle.StandardTree) (*ethereumTypes.Receipt, error) {
	receipt, err := b.caller.SetRootHash(ctx, b.opts.RootTarget, tree.Root())
	if err != nil {
		return receipt, fmt.Errorf("failed to set root hash on %s: %w", b.opts.RootTarget, err)
	}
	if receipt == nil || receipt.Status != ethereumTypes.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("setRootHash on %s was not successful", b.opts.RootTarget)
	}

	b.logger.Sugar().Infow("Root hash submitted",
		"contract", b.opts.RootTarget,
		"root", tree.Root().Hex(),
		"txHash", receipt.TxHash.Hex(),
		"gasUsed", receipt.GasUsed,
	)
	if !b.opts.ProofVerifiable() {
		b.logger.Sugar().Warnw("Root submitted to a contract the verifier does not read",
			"contract", b.opts.RootTarget,
			"verifierContract", contracts.RootHashRegistry,
		)
	}
	return receipt, nil
}

// PersistTree writes the dump to the tree file, replacing the previous build
func (b *Builder) PersistTree(tree *merkle.StandardTree) error {
	if err := b.writer.Write(tree); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Tree persisted", "location", b.writer.Location())
	return nil
}

// Run fetches, builds, submits and persists, then archives the build.
// A root that reached the chain but not the tree file is logged with its tx
// hash so the file can be regenerated.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	leaves, err := b.FetchLeaves(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch leaves: %w", err)
	}

	tree, err := b.BuildTree(leaves)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}

	result := &Result{Root: tree.Root(), LeafCount: tree.Len()}

	var txHash common.Hash
	if b.opts.DryRun {
		b.logger.Sugar().Infow("Dry run, skipping root submission", "root", tree.Root().Hex())
	} else {
		receipt, err := b.SubmitRoot(ctx, tree)
		if err != nil {
			return nil, fmt.Errorf("submit root: %w", err)
		}
		result.Receipt = receipt
		txHash = receipt.TxHash
	}

	if err := b.PersistTree(tree); err != nil {
		if !b.opts.DryRun {
			b.logger.Sugar().Errorw("Root hash is on-chain but the tree file was not written",
				"root", tree.Root().Hex(),
				"txHash", txHash.Hex(),
				"location", b.writer.Location(),
				"error", err,
			)
		}
		return result, fmt.Errorf("persist tree: %w", err)
	}

	if b.archive != nil {
		id, err := b.archiveBuild(tree, txHash)
		if err != nil {
			return result, fmt.Errorf("archive build: %w", err)
		}
		result.BuildID = id
	}

	return result, nil
}

func (b *Builder) archiveBuild(tree *merkle.StandardTree, txHash common.Hash) (string, error) {
	record, err := persistence.NewBuildRecord(tree, txHash, b.opts.RootTarget)
	if err != nil {
		return "", err
	}
	if err := b.archive.SaveBuild(record); err != nil {
		return "", err
	}
	// Dry runs never reach the chain, so they don't move the latest pointer
	if !record.IsDryRun() {
		if err := b.archive.SetLatestBuild(record.ID); err != nil {
			return "", err
		}
	}
	b.logger.Sugar().Infow("Build archived", "buildId", record.ID.String(), "dryRun", record.IsDryRun())
	return record.ID.String(), nil
}
