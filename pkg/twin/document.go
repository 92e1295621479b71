// Package twin reads, hashes and rewrites digital twin documents.
//
// A twin document is JSON text carrying a "dt-id" field. Its hash is keccak256
// over the exact bytes of the text, so any reformatting changes the hash.
package twin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"

	"github.com/twinbase/twinbase-dlt/pkg/types"
	"github.com/twinbase/twinbase-dlt/pkg/util"
)

const (
	IDField   = "dt-id"
	SaltField = "salt"

	JSONFileName = "index.json"
	YAMLFileName = "index.yaml"
)

var (
	ErrMissingID       = errors.New("twin document has no dt-id")
	ErrInvalidDocument = errors.New("twin document is not a JSON object")
)

// Document is a parsed twin document together with its raw text
type Document struct {
	ID  string
	Raw []byte
}

// Parse extracts the twin id from raw JSON text
func Parse(raw []byte) (*Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	idRaw, ok := fields[IDField]
	if !ok {
		return nil, ErrMissingID
	}
	var id string
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return nil, fmt.Errorf("%w: dt-id must be a string", ErrMissingID)
	}
	if id == "" {
		return nil, ErrMissingID
	}

	return &Document{ID: id, Raw: append([]byte(nil), raw...)}, nil
}

// ParseFile reads and parses a twin document from disk
func ParseFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read twin document %s: %w", path, err)
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse twin document %s: %w", path, err)
	}
	return doc, nil
}

// Hash is keccak256 of the raw document text
func (d *Document) Hash() common.Hash {
	return util.HashText(string(d.Raw))
}

// Twin returns the registry record this document corresponds to
func (d *Document) Twin() types.Twin {
	return types.Twin{Id: d.ID, Hash: d.Hash()}
}

// WithSalt returns a copy of the document with the salt field set, re-rendered
// as 4-space indented JSON with the original key order.
func (d *Document) WithSalt(salt string) (*Document, error) {
	node, err := parseNode(d.Raw)
	if err != nil {
		return nil, err
	}
	node.set(SaltField, salt)

	raw, err := renderJSON(node)
	if err != nil {
		return nil, err
	}
	return &Document{ID: d.ID, Raw: raw}, nil
}

// YAML renders the document as block-style YAML with the original key order
func (d *Document) YAML() ([]byte, error) {
	node, err := parseNode(d.Raw)
	if err != nil {
		return nil, err
	}
	return renderYAML(node)
}

// WriteFolder writes index.json and index.yaml for the document into dir
func (d *Document) WriteFolder(dir string) error {
	yamlDoc, err := d.YAML()
	if err != nil {
		return fmt.Errorf("failed to render yaml: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, JSONFileName), d.Raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", JSONFileName, err)
	}
	if err := os.WriteFile(filepath.Join(dir, YAMLFileName), yamlDoc, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", YAMLFileName, err)
	}
	return nil
}
