package executor

import (
	"context"
	"strings"
	"time"

	"api-testgen/internal/types"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPConfig configures the HTTP target
type HTTPConfig struct {
	BaseURL    string
	AuthType   string // bearer, api_key, or empty
	Token      string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	Headers    map[string]string
}

// HTTPTarget sends test requests to a live API
type HTTPTarget struct {
	client *resty.Client
}

// NewHTTPTarget creates a resty backed target. Retries apply to transport errors only.
func NewHTTPTarget(config HTTPConfig, logger *zap.Logger) *HTTPTarget {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(config.RetryWait).
		SetLogger(logger.Sugar())

	switch strings.ToLower(config.AuthType) {
	case "bearer":
		client.SetAuthToken(config.Token)
	case "api_key", "apikey":
		client.SetHeader("X-API-Key", config.Token)
	}
	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	return &HTTPTarget{client: client}
}

// Invoke performs one request
func (t *HTTPTarget) Invoke(ctx context.Context, req types.TestRequest) (*Response, error) {
	r := t.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetQueryParams(req.Query)
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Headers:    resp.Header(),
	}, nil
}
