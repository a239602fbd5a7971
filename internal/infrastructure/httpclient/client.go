package httpclient

import (
	"net"
	"net/http"
	"time"
)

const (
	maxRequestTimeout = 30 * time.Second
	dialTimeout       = 5 * time.Second
	minIdleTimeout    = 30 * time.Second
)

// Config sizes the HTTP client that talks to the prediction service.
type Config struct {
	// RequestTimeout bounds one submit or status call. The relay's poll
	// budget still applies through the request context.
	RequestTimeout time.Duration
	DialTimeout    time.Duration
	// IdleTimeout keeps a polling relay's connection open between polls.
	IdleTimeout time.Duration

	MaxConnsPerHost     int
	MaxIdleConnsPerHost int
}

// ForRelay derives client settings from the relay parameters: at most
// maxConcurrent jobs, each issuing one request every pollInterval for up to
// pollTimeout.
func ForRelay(pollInterval, pollTimeout time.Duration, maxConcurrent int) Config {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	cfg := Config{
		RequestTimeout:      min(pollTimeout, maxRequestTimeout),
		IdleTimeout:         max(4*pollInterval, minIdleTimeout),
		MaxConnsPerHost:     maxConcurrent,
		MaxIdleConnsPerHost: maxConcurrent,
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = maxRequestTimeout
	}
	cfg.DialTimeout = min(dialTimeout, cfg.RequestTimeout)
	return cfg
}

// New builds a client whose transport never waits longer than the request
// timeout for any single phase of a call.
func New(cfg Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.IdleTimeout,
	}

	tr := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DialContext:       dialer.DialContext,
		ForceAttemptHTTP2: true,

		MaxIdleConns:        cfg.MaxIdleConnsPerHost,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleTimeout,

		TLSHandshakeTimeout:   cfg.DialTimeout,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	}

	return &http.Client{
		Transport: tr,
		Timeout:   cfg.RequestTimeout,
	}
}
