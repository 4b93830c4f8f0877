// Package fetcher talks to the Wikimedia APIs: the MediaWiki action API for
// article links and the REST pageviews API for view counts.
package fetcher

import (
	"context"
)

// Fetcher retrieves the body of a GET request.
type Fetcher interface {
	// Get returns the decoded response body of a successful request.
	// Failures are *types.FetchError.
	Get(ctx context.Context, rawURL string) ([]byte, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
