// Package client wraps the local data terminal's REST API: listing
// endpoints, bulk history endpoints and the spot proxy derivation built on
// top of them. All responses arrive in a JSON envelope
// {"response": [...], "error": optional}; an error field means failure
// regardless of HTTP status.
package client

import (
	"net/http"

	"golang.org/x/time/rate"

	"thetaflow/audit"
	appconfig "thetaflow/config"
	"thetaflow/logger"
)

const userAgent = "thetaflow"

// Client talks to the terminal. Each worker owns its own Client so no state
// is shared across workers.
type Client struct {
	baseURL string
	http    *http.Client
	retry   appconfig.RetryConfig
	limiter *rate.Limiter
	retries *audit.RetryLog
	stats   *audit.RequestStats
	log     *logger.Log
}

// New builds a Client from configuration, opening the audit sinks.
func New(cfg *appconfig.Config) (*Client, error) {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Terminal.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Terminal.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Terminal.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Terminal.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	httpClient := &http.Client{
		Transport: userAgentTransport{agent: userAgent, base: transport},
		Timeout:   cfg.Terminal.Timeout,
	}

	limit := rate.Inf
	burst := 1
	if cfg.Terminal.RateLimit.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Terminal.RateLimit.RequestsPerSecond)
		burst = cfg.Terminal.RateLimit.BurstSize
		if burst < 1 {
			burst = 1
		}
	}

	retries, err := audit.NewRetryLog(cfg.Audit.RetryLog)
	if err != nil {
		return nil, err
	}
	stats, err := audit.NewRequestStats(cfg.Audit.StatsLog)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: cfg.Terminal.BaseURL,
		http:    httpClient,
		retry:   cfg.Terminal.Retry,
		limiter: rate.NewLimiter(limit, burst),
		retries: retries,
		stats:   stats,
		log:     log,
	}

	log.WithComponent("client").WithFields(logger.Fields{
		"base_url":       cfg.Terminal.BaseURL,
		"timeout":        cfg.Terminal.Timeout,
		"max_idle_conns": cfg.Terminal.ConnectionPool.MaxIdleConns,
	}).Info("terminal client initialized")

	return c, nil
}

// Close releases the transport's idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
