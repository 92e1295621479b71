package twin

import (
	"context"
	"fmt"

	"github.com/twinbase/twinbase-dlt/pkg/util"
)

// DocumentLoader fetches the raw text of a twin document
type DocumentLoader interface {
	Load(ctx context.Context) ([]byte, error)
}

// MaxDocumentBytes bounds a twin document read from a file or URL
const MaxDocumentBytes = 1 << 20

// LocationLoader reads a document from a file path or an http(s) URL
type LocationLoader struct {
	Location string
	MaxBytes int64
}

func NewLocationLoader(location string) *LocationLoader {
	return &LocationLoader{Location: location, MaxBytes: MaxDocumentBytes}
}

func (l *LocationLoader) Load(ctx context.Context) ([]byte, error) {
	maxBytes := l.MaxBytes
	if maxBytes <= 0 {
		maxBytes = MaxDocumentBytes
	}
	raw, err := util.ReadLocation(ctx, l.Location, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to load twin document from %s: %w", l.Location, err)
	}
	return raw, nil
}

// StaticLoader returns a document held in memory
type StaticLoader []byte

func (s StaticLoader) Load(_ context.Context) ([]byte, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	return []byte(s), nil
}
