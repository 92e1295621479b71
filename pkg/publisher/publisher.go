// Package publisher posts changed twin document hashes to the twin registry.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/contractCaller"
	"github.com/twinbase/twinbase-dlt/pkg/transactionSigner"
	"github.com/twinbase/twinbase-dlt/pkg/twin"
)

// Folders under the docs root that never hold a twin
var excludedFolders = map[string]struct{}{
	"static":   {},
	"new-twin": {},
}

var (
	ErrNotMinter       = errors.New("signing account is not the registry minter")
	ErrMissingDocument = errors.New("twin folder has no index.json")
)

type Options struct {
	DocsDir string

	// GasLimit is set on every postTwinHash transaction
	GasLimit uint64

	// Minter, when set, must match the signing account
	Minter common.Address
}

// Outcome of one twin folder
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomePosted    Outcome = "posted"
)

type FolderResult struct {
	Folder  string
	ID      string
	Hash    common.Hash
	Outcome Outcome
	TxHash  common.Hash
}

type Publisher struct {
	caller  contractCaller.IContractCaller
	opts    Options
	newSalt func() (string, error)
	logger  *zap.Logger
}

func NewPublisher(caller contractCaller.IContractCaller, opts Options, logger *zap.Logger) (*Publisher, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is required")
	}
	if opts.DocsDir == "" {
		return nil, fmt.Errorf("docs directory is required")
	}
	if opts.GasLimit == 0 {
		return nil, fmt.Errorf("gas limit must be positive")
	}
	return &Publisher{
		caller:  caller,
		opts:    opts,
		newSalt: twin.NewSalt,
		logger:  logger,
	}, nil
}

// CheckMinter fails when a minter is configured and the signer is someone else
func (p *Publisher) CheckMinter() error {
	if p.opts.Minter == (common.Address{}) {
		return nil
	}
	from := p.caller.GetFromAddress()
	if from != p.opts.Minter {
		return fmt.Errorf("%w: signer %s, minter %s", ErrNotMinter, from.Hex(), p.opts.Minter.Hex())
	}
	return nil
}

// TwinFolders lists the twin folders under the docs root in name order
func (p *Publisher) TwinFolders() ([]string, error) {
	entries, err := os.ReadDir(p.opts.DocsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read docs directory: %w", err)
	}

	folders := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, skip := excludedFolders[entry.Name()]; skip {
			continue
		}
		folders = append(folders, filepath.Join(p.opts.DocsDir, entry.Name()))
	}
	sort.Strings(folders)
	return folders, nil
}

// RequiresUpdate reports whether the registry hash differs from the document.
// A twin unknown to the registry always requires an update.
func (p *Publisher) RequiresUpdate(ctx context.Context, doc *twin.Document) (bool, error) {
	onChain, err := p.caller.GetTwin(ctx, doc.ID)
	if errors.Is(err, contractCaller.ErrTwinNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get twin %s: %w", doc.ID, err)
	}
	return onChain.Hash != [32]byte(doc.Hash()), nil
}

// PublishFolder salts and posts the twin in folder when its hash changed
func (p *Publisher) PublishFolder(ctx context.Context, folder string) (*FolderResult, error) {
	path := filepath.Join(folder, twin.JSONFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingDocument, folder)
		}
		return nil, err
	}

	doc, err := twin.ParseFile(path)
	if err != nil {
		return nil, err
	}

	result := &FolderResult{Folder: folder, ID: doc.ID, Hash: doc.Hash()}

	update, err := p.RequiresUpdate(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !update {
		p.logger.Sugar().Infow("Twin hash is unchanged, skipping", "id", doc.ID, "folder", folder)
		result.Outcome = OutcomeUnchanged
		return result, nil
	}

	salt, err := p.newSalt()
	if err != nil {
		return nil, err
	}
	salted, err := doc.WithSalt(salt)
	if err != nil {
		return nil, fmt.Errorf("failed to salt twin %s: %w", doc.ID, err)
	}
	if err := salted.WriteFolder(folder); err != nil {
		return nil, err
	}
	result.Hash = salted.Hash()

	p.logger.Sugar().Infow("Posting twin hash",
		"id", salted.ID,
		"hash", result.Hash.Hex(),
		"folder", folder,
	)
	receipt, err := p.caller.PostTwinHash(ctx, salted.ID, result.Hash, p.opts.GasLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to post twin hash for %s: %w", salted.ID, err)
	}
	// Receipts that used every unit of gas are treated as failed even with status 1
	if receipt.GasUsed == p.opts.GasLimit {
		return nil, fmt.Errorf("%w: twin %s used all %d gas provided, increase the gas limit",
			transactionSigner.ErrOutOfGas, salted.ID, p.opts.GasLimit)
	}

	result.Outcome = OutcomePosted
	result.TxHash = receipt.TxHash
	return result, nil
}

// Run checks the minter and publishes every twin folder. It stops at the first
// failing folder and returns the results gathered so far.
func (p *Publisher) Run(ctx context.Context) ([]*FolderResult, error) {
	if err := p.CheckMinter(); err != nil {
		return nil, err
	}

	folders, err := p.TwinFolders()
	if err != nil {
		return nil, err
	}

	results := make([]*FolderResult, 0, len(folders))
	for _, folder := range folders {
		result, err := p.PublishFolder(ctx, folder)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	posted := 0
	for _, r := range results {
		if r.Outcome == OutcomePosted {
			posted++
		}
	}
	p.logger.Sugar().Infow("Publish complete", "folders", len(results), "posted", posted)
	return results, nil
}
