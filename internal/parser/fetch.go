package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Fetcher retrieves raw documents over HTTP. It only moves bytes; Parse does the rest.
type Fetcher struct {
	client *resty.Client
	logger *zap.Logger
}

// NewFetcher creates a new instance of Fetcher
func NewFetcher(timeout time.Duration, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: resty.New().SetTimeout(timeout),
		logger: logger,
	}
}

// Fetch downloads the document at url and guesses its syntax
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, Hint, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", HintUnknown, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.IsError() {
		return "", HintUnknown, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	return string(resp.Body()), guessHint(url, resp.Header().Get("Content-Type")), nil
}

// Discover tries the usual documentation locations below baseURL and returns
// the first document that downloads successfully
func (f *Fetcher) Discover(ctx context.Context, baseURL string) (string, Hint, error) {
	base := strings.TrimRight(baseURL, "/")
	candidates := []string{
		base,
		base + "/openapi.json",
		base + "/openapi.yaml",
		base + "/swagger/v1/swagger.json",
		base + "/swagger.json",
		base + "/v1/swagger.json",
		base + "/api/swagger.json",
		base + "/api/v1/swagger.json",
		base + "/v3/api-docs",
	}

	var lastErr error
	for _, url := range candidates {
		f.logger.Debug("trying to fetch OpenAPI documentation", zap.String("url", url))
		raw, hint, err := f.Fetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if _, err := Parse(raw, hint); err != nil {
			lastErr = err
			continue
		}
		f.logger.Info("fetched OpenAPI documentation", zap.String("url", url))
		return raw, hint, nil
	}
	return "", HintUnknown, fmt.Errorf("failed to fetch OpenAPI documentation from any known URL, last error: %w", lastErr)
}

func guessHint(url, contentType string) Hint {
	contentType = strings.ToLower(contentType)
	path := strings.ToLower(strings.SplitN(url, "?", 2)[0])
	switch {
	case strings.Contains(contentType, "yaml"), strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return HintYAML
	case strings.Contains(contentType, "json"), strings.HasSuffix(path, ".json"):
		return HintJSON
	}
	return HintUnknown
}
