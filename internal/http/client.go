// Package http builds the HTTP transport used by the roster API gateway:
// proxy modes, HTTP/2, and the retryablehttp wrapper with a transport-only retry policy.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"

	"github.com/schoolroster/roster-client/internal/config"
	"github.com/schoolroster/roster-client/internal/logging"
)

// NewRetryableClient creates the client used for every backend call.
//
// The returned client retries only transport failures on idempotent requests,
// at most cfg.MaxRetries times (0 disables retries). HTTP statuses are never
// retried: the gateway classifies them and callers decide what to do.
func NewRetryableClient(cfg *config.Config, logger *logging.Logger) (*retryablehttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	if tr, ok := baseClient.Transport.(*nethttp.Transport); ok {
		configureHTTP2(tr, cfg)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = baseClient
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.CheckRetry = RetryPolicy
	retryClient.Backoff = JitterBackoff
	retryClient.Logger = NewRetryLogger(logger)
	// Hand the last response/error back untouched instead of "giving up after N attempts"
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return retryClient, nil
}

// configureHTTP2 enables HTTP/2 unless a proxy is active or DISABLE_HTTP2=true.
// Proxies often have issues with HTTP/2 multiplexing.
func configureHTTP2(tr *nethttp.Transport, cfg *config.Config) {
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || proxyActive(cfg) {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}
}

func proxyActive(cfg *config.Config) bool {
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return cfg.ProxyHost != ""
	}
}
