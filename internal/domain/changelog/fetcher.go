package changelog

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher retrieves the two documents compared by a check.
type Fetcher interface {
	// Page GETs the public changelog page.
	Page(ctx context.Context, pageURL string) (string, error)
	// RenderReadme POSTs readmeURL to the readme validator and returns the
	// rendered HTML.
	RenderReadme(ctx context.Context, validatorURL, readmeURL string) (string, error)
}

// FetcherOptions tunes the HTTP client.
type FetcherOptions struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	UserAgent          string
}

// HTTPFetcher is the resty-backed Fetcher.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher 创建 HTTP 抓取器
func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	client := resty.New().
		SetHeader("User-Agent", userAgent(opts.UserAgent)).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // opt-in via changelog.insecure_skip_verify
	}
	return &HTTPFetcher{client: client}
}

func userAgent(ua string) string {
	if ua == "" {
		return "wpguard-changelog-checker/1.0"
	}
	return ua
}

func (f *HTTPFetcher) Page(ctx context.Context, pageURL string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("%w: GET %s returned %d", ErrUnexpectedStatus, pageURL, resp.StatusCode())
	}
	return resp.String(), nil
}

func (f *HTTPFetcher) RenderReadme(ctx context.Context, validatorURL, readmeURL string) (string, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"url":        "1",
			"readme_url": readmeURL,
		}).
		Post(validatorURL)
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("%w: POST %s returned %d", ErrUnexpectedStatus, validatorURL, resp.StatusCode())
	}
	return resp.String(), nil
}
