// Package treeFile reads and writes tree.json, the persisted dump of the
// latest merkle tree.
package treeFile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/twinbase/twinbase-dlt/pkg/merkle"
	"github.com/twinbase/twinbase-dlt/pkg/persistence"
	"github.com/twinbase/twinbase-dlt/pkg/util"
)

// ITreeWriter persists a tree dump
type ITreeWriter interface {
	Write(tree *merkle.StandardTree) error
	Location() string
}

// ITreeSource loads the most recently persisted tree
type ITreeSource interface {
	Load(ctx context.Context) (*merkle.StandardTree, error)
	Location() string
}

// Marshal renders the tree dump with 4-space indentation
func Marshal(tree *merkle.StandardTree) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(tree.Dump()); err != nil {
		return nil, fmt.Errorf("failed to encode tree dump: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// FileWriter overwrites a fixed path with every write
type FileWriter struct {
	path string
}

func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

func (w *FileWriter) Location() string {
	return w.path
}

// Write replaces the file atomically via a temp file in the same directory
func (w *FileWriter) Write(tree *merkle.StandardTree) error {
	if tree == nil {
		return fmt.Errorf("cannot write nil tree")
	}
	data, err := Marshal(tree)
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tree-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write tree dump: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", w.path, err)
	}
	return nil
}

// MaxTreeBytes bounds a tree.json read from a file or URL
const MaxTreeBytes = 64 << 20

// LocationSource reads tree.json from a file path or an http(s) URL on every Load
type LocationSource struct {
	location string
}

func NewLocationSource(location string) *LocationSource {
	return &LocationSource{location: location}
}

func (s *LocationSource) Location() string {
	return s.location
}

func (s *LocationSource) Load(ctx context.Context) (*merkle.StandardTree, error) {
	data, err := util.ReadLocation(ctx, s.location, MaxTreeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree from %s: %w", s.location, err)
	}
	tree, err := merkle.LoadJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load tree from %s: %w", s.location, err)
	}
	return tree, nil
}

// StaticSource always returns the same in-memory tree
type StaticSource struct {
	Tree *merkle.StandardTree
}

func (s *StaticSource) Location() string {
	return "memory"
}

func (s *StaticSource) Load(_ context.Context) (*merkle.StandardTree, error) {
	if s.Tree == nil {
		return nil, fmt.Errorf("no tree loaded")
	}
	return s.Tree, nil
}

// LatestBuildReader is the part of the build archive an ArchiveSource needs
type LatestBuildReader interface {
	GetLatestBuild() (*persistence.BuildRecord, error)
}

// ArchiveSource serves the tree of the latest archived build, the one whose
// root was last submitted on-chain
type ArchiveSource struct {
	archive LatestBuildReader
	name    string
}

func NewArchiveSource(archive LatestBuildReader, name string) *ArchiveSource {
	return &ArchiveSource{archive: archive, name: name}
}

func (s *ArchiveSource) Location() string {
	return "archive:" + s.name
}

func (s *ArchiveSource) Load(_ context.Context) (*merkle.StandardTree, error) {
	record, err := s.archive.GetLatestBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to read latest build: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("no build has been archived in %s", s.name)
	}
	tree, err := record.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree of build %s: %w", record.ID, err)
	}
	return tree, nil
}
