package processor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/woozymasta/elevprofile/internal/document"

	"github.com/rs/zerolog/log"
)

// maxDocumentSize bounds downloaded route documents.
const maxDocumentSize = 32 << 20

// IsURL reports whether source is fetched over HTTP.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// LoadDocument parses the route document at source, an http(s) URL or a local path.
func LoadDocument(ctx context.Context, client *http.Client, source string) (*document.Document, error) {
	if !IsURL(source) {
		return document.ParseFile(source)
	}
	return fetchDocument(ctx, client, source)
}

// fetchDocument downloads and parses a route document.
func fetchDocument(ctx context.Context, client *http.Client, url string) (*document.Document, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	// Explicitly ignore close error as it's a read-only operation
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("url", url).
		Int("bytes", len(data)).
		Msg("Route document downloaded")

	return document.Parse(data)
}
