package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/report"
	"github.com/yajur-khanna/asm-tool/internal/summary"
)

type SubdomainEnumerator interface {
	Enumerate(ctx context.Context, domain string) ([]string, error)
}

type LivenessChecker interface {
	FilterLive(ctx context.Context, hosts []string) ([]string, error)
}

type DNSResolver interface {
	Lookup(ctx context.Context, domain string) (findings.DNSRecords, error)
}

type WhoisClient interface {
	Lookup(ctx context.Context, domain string) (findings.Whois, error)
}

type PortScanner interface {
	Scan(ctx context.Context, domain string) ([]findings.OpenPort, error)
}

// TechDetector fingerprints a URL rather than a domain.
type TechDetector interface {
	Detect(ctx context.Context, url string) ([]string, error)
}

type TLSAuditor interface {
	Audit(ctx context.Context, domain string) (findings.TLSReport, error)
}

type HeaderAuditor interface {
	Audit(ctx context.Context, domain string) (findings.Headers, error)
}

type BreachChecker interface {
	Lookup(ctx context.Context, account string) ([]findings.Breach, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, f findings.Findings) summary.Summary
}

type ReportWriter interface {
	Write(domain string, r report.Report) (string, error)
}

// Collaborators are the external dependencies of the driver. All are required.
type Collaborators struct {
	Subdomains SubdomainEnumerator
	Liveness   LivenessChecker
	DNS        DNSResolver
	Whois      WhoisClient
	Ports      PortScanner
	Tech       TechDetector
	TLS        TLSAuditor
	Headers    HeaderAuditor
	Breach     BreachChecker
	Summary    Summarizer
	Writer     ReportWriter
}

func (c Collaborators) validate() error {
	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}
	check("subdomains", c.Subdomains != nil)
	check("liveness", c.Liveness != nil)
	check("dns", c.DNS != nil)
	check("whois", c.Whois != nil)
	check("ports", c.Ports != nil)
	check("tech", c.Tech != nil)
	check("tls", c.TLS != nil)
	check("headers", c.Headers != nil)
	check("breach", c.Breach != nil)
	check("summary", c.Summary != nil)
	check("writer", c.Writer != nil)

	if len(missing) > 0 {
		return fmt.Errorf("missing pipeline collaborators: %s", strings.Join(missing, ", "))
	}
	return nil
}
