package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// ErrTooLarge is returned when a location holds more than the caller's limit
var ErrTooLarge = errors.New("content exceeds size limit")

// IsURL reports whether location is an http or https URL
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// ReadLocation returns at most maxBytes of a local file or an http(s) resource.
// HTTP reads bypass caches so a freshly written file is always observed.
func ReadLocation(ctx context.Context, location string, maxBytes int64) ([]byte, error) {
	if !IsURL(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return readLimited(f, location, maxBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", location, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %d", location, res.StatusCode)
	}
	if res.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, location, res.ContentLength, maxBytes)
	}
	return readLimited(res.Body, location, maxBytes)
}

func readLimited(r io.Reader, location string, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrTooLarge, location, maxBytes)
	}
	return data, nil
}
