// Package verifier checks a twin document against the record registry and
// the merkle root held by the root hash registry.
package verifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/contracts"
	"github.com/twinbase/twinbase-dlt/pkg/merkle"
	"github.com/twinbase/twinbase-dlt/pkg/treeFile"
	"github.com/twinbase/twinbase-dlt/pkg/twin"
	"github.com/twinbase/twinbase-dlt/pkg/types"
	"github.com/twinbase/twinbase-dlt/pkg/util"
)

// TwinRegistryReader is the read side of the record registry
type TwinRegistryReader interface {
	GetTwin(ctx context.Context, id string) (*types.Twin, error)
	VerifyTwinHash(ctx context.Context, id string, hash [32]byte) (bool, error)
	GetTwins(ctx context.Context) ([]types.Twin, error)
}

// RootHashVerifier checks a merkle proof against the stored root
type RootHashVerifier interface {
	VerifyHash(ctx context.Context, proof [][32]byte, hash [32]byte) (bool, error)
	GetRootHash(ctx context.Context, contractName string) ([32]byte, error)
}

type Verifier struct {
	registry TwinRegistryReader
	roots    RootHashVerifier
	trees    treeFile.ITreeSource
	logger   *zap.Logger

	mu    sync.Mutex
	state State
	last  *Validation
}

func NewVerifier(
	registry TwinRegistryReader,
	roots RootHashVerifier,
	trees treeFile.ITreeSource,
	logger *zap.Logger,
) (*Verifier, error) {
	if registry == nil {
		return nil, fmt.Errorf("twin registry reader is required")
	}
	if roots == nil {
		return nil, fmt.Errorf("root hash verifier is required")
	}
	if trees == nil {
		return nil, fmt.Errorf("tree source is required")
	}
	return &Verifier{
		registry: registry,
		roots:    roots,
		trees:    trees,
		logger:   logger,
		state:    StateIdle,
	}, nil
}

// Verify queries the record registry for the document's twin. The three reads
// run concurrently and each result is reported on its own.
func (v *Verifier) Verify(ctx context.Context, raw []byte) (*RegistryReport, error) {
	doc, err := twin.Parse(raw)
	if err != nil {
		return nil, err
	}
	hash := doc.Hash()

	report := &RegistryReport{ID: doc.ID, Hash: hash}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		report.GetTwin.Value, report.GetTwin.Err = v.registry.GetTwin(ctx, doc.ID)
	}()
	go func() {
		defer wg.Done()
		report.VerifyTwinHash.Value, report.VerifyTwinHash.Err = v.registry.VerifyTwinHash(ctx, doc.ID, hash)
	}()
	go func() {
		defer wg.Done()
		report.GetTwins.Value, report.GetTwins.Err = v.registry.GetTwins(ctx)
	}()
	wg.Wait()

	v.logger.Sugar().Infow("Registry report",
		"id", doc.ID,
		"hash", hash.Hex(),
		"getTwinError", errString(report.GetTwin.Err),
		"verifyTwinHash", report.VerifyTwinHash.Value,
		"verifyTwinHashError", errString(report.VerifyTwinHash.Err),
		"twinCount", len(report.GetTwins.Value),
		"getTwinsError", errString(report.GetTwins.Err),
	)
	return report, nil
}

// GetMerkleProof loads the current tree and looks up the proof for hash
func (v *Verifier) GetMerkleProof(ctx context.Context, hash [32]byte) (*Proof, error) {
	tree, err := v.trees.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := &Proof{Hash: hash, Root: tree.Root()}
	index, found := findLeaf(tree, hash)
	if !found {
		return result, nil
	}

	siblings, err := tree.GetProof(index)
	if err != nil {
		return nil, err
	}
	result.Found = true
	result.Siblings = siblings
	return result, nil
}

func findLeaf(tree *merkle.StandardTree, hash [32]byte) (int, bool) {
	for i, value := range tree.Entries() {
		if len(value) == 0 {
			continue
		}
		leaf, err := util.ParseHash(value[0])
		if err != nil {
			continue
		}
		if leaf == hash {
			return i, true
		}
	}
	return 0, false
}

// VerifyMerkleTree proves the document's hash against the root hash registry.
// When the hash is not in the tree the contract is not called.
func (v *Verifier) VerifyMerkleTree(ctx context.Context, raw []byte) *MerkleReport {
	doc, err := twin.Parse(raw)
	if err != nil {
		return &MerkleReport{Err: err}
	}
	report := &MerkleReport{Hash: doc.Hash()}

	proof, err := v.GetMerkleProof(ctx, doc.Hash())
	if err != nil {
		report.Err = fmt.Errorf("failed to get merkle proof: %w", err)
		return report
	}
	report.Root = proof.Root
	if !proof.Found {
		v.logger.Sugar().Infow("Hash not found in tree", "hash", report.Hash.Hex(), "tree", v.trees.Location())
		v.checkRoot(ctx, report)
		return report
	}
	report.Found = true
	report.Proof = proof.Siblings

	siblings := make([][32]byte, len(proof.Siblings))
	for i, s := range proof.Siblings {
		siblings[i] = s
	}
	report.Verified.Value, report.Verified.Err = v.roots.VerifyHash(ctx, siblings, report.Hash)

	v.logger.Sugar().Infow("Merkle verification",
		"hash", report.Hash.Hex(),
		"proofLength", len(siblings),
		"verified", report.Verified.Value,
		"error", errString(report.Verified.Err),
	)
	if !report.Verified.OK() || !report.Verified.Value {
		v.checkRoot(ctx, report)
	}
	return report
}

// checkRoot reads the registry root after a failed merkle check so the report
// can tell a stale tree file apart from a changed document
func (v *Verifier) checkRoot(ctx context.Context, report *MerkleReport) {
	root, err := v.roots.GetRootHash(ctx, contracts.RootHashRegistry)
	report.OnChainRoot = &Result[common.Hash]{Value: root, Err: err}
	if report.Stale() {
		v.logger.Sugar().Warnw("Tree file root differs from the registry root",
			"tree", v.trees.Location(),
			"treeRoot", report.Root.Hex(),
			"registryRoot", report.OnChainRoot.Value.Hex(),
		)
	}
}

// ValidateTwin loads a document and runs the registry and merkle checks
// concurrently. Only one validation runs at a time; the result stays
// available from Status until Reset.
func (v *Verifier) ValidateTwin(ctx context.Context, loader twin.DocumentLoader) (*Validation, error) {
	if err := v.begin(); err != nil {
		return nil, err
	}

	validation := v.validate(ctx, loader)
	v.finish(validation)
	return validation, nil
}

func (v *Verifier) validate(ctx context.Context, loader twin.DocumentLoader) *Validation {
	raw, err := loader.Load(ctx)
	if err != nil {
		return &Validation{Error: err.Error()}
	}
	doc, err := twin.Parse(raw)
	if err != nil {
		return &Validation{Error: err.Error()}
	}

	validation := &Validation{ID: doc.ID, Hash: doc.Hash().Hex()}

	var wg sync.WaitGroup
	var registryErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		validation.Registry, registryErr = v.Verify(ctx, raw)
	}()
	go func() {
		defer wg.Done()
		validation.Merkle = v.VerifyMerkleTree(ctx, raw)
	}()
	wg.Wait()

	if registryErr != nil {
		validation.Error = registryErr.Error()
		return validation
	}
	validation.Success = validation.Registry.OK() && validation.Merkle.OK()
	return validation
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
