// Package headers audits the security headers served on a domain's homepage.
package headers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/httpclient"
	"github.com/yajur-khanna/asm-tool/internal/logger"
)

type Auditor struct {
	client *http.Client
	logger *logger.Logger
}

func New(cfg config.HeadersConfig, httpCfg config.HTTPConfig, log *logger.Logger) *Auditor {
	return NewWithClient(httpclient.NewProbeClient(httpCfg, cfg.Timeout), log)
}

func NewWithClient(client *http.Client, log *logger.Logger) *Auditor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Auditor{client: client, logger: log.WithComponent("headers")}
}

// Audit fetches https://{domain}.
func (a *Auditor) Audit(ctx context.Context, domain string) (findings.Headers, error) {
	return a.AuditURL(ctx, "https://"+domain)
}

// AuditURL records each security header of the final response, nil when absent.
// Any status code counts; only transport failures are errors.
func (a *Auditor) AuditURL(ctx context.Context, url string) (findings.Headers, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", url, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	httpclient.CloseBody(resp)

	out := make(findings.Headers, len(findings.SecurityHeaders))
	missing := 0
	for _, name := range findings.SecurityHeaders {
		values := resp.Header.Values(name)
		if len(values) == 0 {
			out[name] = nil
			missing++
			continue
		}
		v := values[0]
		out[name] = &v
	}

	a.logger.Debugw("Headers audited",
		"url", url,
		"status", resp.StatusCode,
		"missing", missing,
	)
	return out, nil
}
