// Package liveness keeps the hostnames that answer over HTTP or HTTPS.
package liveness

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/httpclient"
	"github.com/yajur-khanna/asm-tool/internal/logger"
)

var defaultSchemes = []string{"http://", "https://"}

type Checker struct {
	client  *http.Client
	cfg     config.LivenessConfig
	schemes []string
	logger  *logger.Logger
}

func New(cfg config.LivenessConfig, httpCfg config.HTTPConfig, log *logger.Logger) *Checker {
	return NewWithClient(httpclient.NewProbeClient(httpCfg, cfg.HostTimeout), cfg, log)
}

func NewWithClient(client *http.Client, cfg config.LivenessConfig, log *logger.Logger) *Checker {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Checker{
		client:  client,
		cfg:     cfg,
		schemes: defaultSchemes,
		logger:  log.WithComponent("liveness"),
	}
}

// FilterLive probes every host, HTTP first then HTTPS, and returns the ones that
// answered with a status below 400. Input order is kept. When the probe budget runs
// out the hosts confirmed so far are returned without an error; cancellation of ctx
// itself is still reported.
func (c *Checker) FilterLive(ctx context.Context, hosts []string) ([]string, error) {
	alive := make([]bool, len(hosts))

	pctx := ctx
	if budget := c.cfg.Budget(len(hosts)); budget > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(pctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, host := range hosts {
		g.Go(func() error {
			alive[i] = c.probe(gctx, host)
			return nil
		})
	}
	_ = g.Wait()

	live := make([]string, 0, len(hosts))
	for i, ok := range alive {
		if ok {
			live = append(live, hosts[i])
		}
	}
	if err := ctx.Err(); err != nil {
		return live, err
	}
	if pctx.Err() != nil {
		c.logger.Warnw("Probe budget exhausted, keeping partial results",
			"hosts", len(hosts),
			"live", len(live),
			"budget", c.cfg.Budget(len(hosts)).String(),
		)
	}
	return live, nil
}

func (c *Checker) probe(ctx context.Context, host string) bool {
	for _, scheme := range c.schemes {
		if ctx.Err() != nil {
			return false
		}
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, scheme+host, nil)
		if err != nil {
			continue
		}
		resp, err := c.client.Do(req)
		if err != nil {
			c.logger.Debugw("Probe failed", "url", scheme+host, "error", err.Error())
			continue
		}
		httpclient.CloseBody(resp)

		if resp.StatusCode < http.StatusBadRequest {
			c.logger.Debugw("Host is live",
				"url", scheme+host,
				"status", resp.StatusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return true
		}
	}
	return false
}
