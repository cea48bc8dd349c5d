package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Stdin is the location that reads standard input
const Stdin = "-"

// Opener resolves a location to a readable stream
type Opener struct {
	Fetcher *Fetcher
	Stdin   io.Reader
}

// IsURL reports whether location is an http(s) URL
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open returns the content of location and a display name for it.
// Locations are "-" for stdin, http(s) URLs, or local file paths.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, string, error) {
	switch {
	case location == Stdin:
		in := o.Stdin
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), "stdin", nil

	case IsURL(location):
		if o.Fetcher == nil {
			return nil, "", fmt.Errorf("remote input not supported: %s", location)
		}
		result, err := o.Fetcher.FetchWithRetry(ctx, location)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s: %w", location, err)
		}
		return io.NopCloser(bytes.NewReader(result.Data)), result.SampleName, nil

	default:
		f, err := os.Open(location)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", location, err)
		}
		return f, filepath.Base(location), nil
	}
}
