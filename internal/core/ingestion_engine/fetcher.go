package ingestion_engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kbforge/kbforge/internal/core"
)

// HTTPFetcher downloads pages and file URLs with a shared client that follows
// redirects. It performs no retries; the queue's redelivery is the retry path.
type HTTPFetcher struct {
	client *http.Client
}

var _ core.ContentFetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// FetchURL performs a GET and returns the body and the response content type.
// A non-2xx status is surfaced as an error, never silently skipped.
func (f *HTTPFetcher) FetchURL(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body of %s: %w", url, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
