package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

const UserAgent = "osm-strassenraumkarte-generator"

// OverpassRepository sends Overpass QL queries and hands back the raw response
// body for streaming. All categories share one limiter so a run never exceeds
// the configured request rate against the public endpoint.
type OverpassRepository struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewOverpassRepository(endpoint string, timeout time.Duration, limiter *rate.Limiter) *OverpassRepository {
	return &OverpassRepository{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
	}
}

// Fetch posts the query and returns the response body. The caller must close it.
func (r *OverpassRepository) Fetch(ctx context.Context, query string) (io.ReadCloser, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass query failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: %s", model.ErrQueryStatus, resp.Status, strings.TrimSpace(string(snippet)))
	}

	return resp.Body, nil
}
