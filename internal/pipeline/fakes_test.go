package pipeline

import (
	"context"
	"sync"

	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/report"
	"github.com/yajur-khanna/asm-tool/internal/summary"
)

type enumFunc func(ctx context.Context, domain string) ([]string, error)

func (f enumFunc) Enumerate(ctx context.Context, domain string) ([]string, error) {
	return f(ctx, domain)
}

type liveFunc func(ctx context.Context, hosts []string) ([]string, error)

func (f liveFunc) FilterLive(ctx context.Context, hosts []string) ([]string, error) {
	return f(ctx, hosts)
}

type dnsFunc func(ctx context.Context, domain string) (findings.DNSRecords, error)

func (f dnsFunc) Lookup(ctx context.Context, domain string) (findings.DNSRecords, error) {
	return f(ctx, domain)
}

type whoisFunc func(ctx context.Context, domain string) (findings.Whois, error)

func (f whoisFunc) Lookup(ctx context.Context, domain string) (findings.Whois, error) {
	return f(ctx, domain)
}

type portsFunc func(ctx context.Context, domain string) ([]findings.OpenPort, error)

func (f portsFunc) Scan(ctx context.Context, domain string) ([]findings.OpenPort, error) {
	return f(ctx, domain)
}

type techFunc func(ctx context.Context, url string) ([]string, error)

func (f techFunc) Detect(ctx context.Context, url string) ([]string, error) {
	return f(ctx, url)
}

type tlsFunc func(ctx context.Context, domain string) (findings.TLSReport, error)

func (f tlsFunc) Audit(ctx context.Context, domain string) (findings.TLSReport, error) {
	return f(ctx, domain)
}

type headersFunc func(ctx context.Context, domain string) (findings.Headers, error)

func (f headersFunc) Audit(ctx context.Context, domain string) (findings.Headers, error) {
	return f(ctx, domain)
}

type breachFunc func(ctx context.Context, account string) ([]findings.Breach, error)

func (f breachFunc) Lookup(ctx context.Context, account string) ([]findings.Breach, error) {
	return f(ctx, account)
}

type summarizeFunc func(ctx context.Context, f findings.Findings) summary.Summary

func (f summarizeFunc) Summarize(ctx context.Context, fs findings.Findings) summary.Summary {
	return f(ctx, fs)
}

// memoryWriter keeps reports in memory, keyed by domain.
type memoryWriter struct {
	mu      sync.Mutex
	reports map[string]report.Report
	fail    map[string]error
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{
		reports: make(map[string]report.Report),
		fail:    make(map[string]error),
	}
}

func (w *memoryWriter) Write(domain string, r report.Report) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err, ok := w.fail[domain]; ok {
		return "", err
	}
	w.reports[domain] = r
	return "mem://" + domain, nil
}

func (w *memoryWriter) get(domain string) (report.Report, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.reports[domain]
	return r, ok
}

// recorder collects transitions from concurrent domains.
type recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recorder) Observe(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *recorder) statesOf(domain string) []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, t := range r.transitions {
		if t.Domain == domain {
			out = append(out, t.To)
		}
	}
	return out
}

func strPtr(s string) *string { return &s }

// populated returns collaborators that all succeed with fixed data.
func populated(w *memoryWriter) Collaborators {
	return Collaborators{
		Subdomains: enumFunc(func(_ context.Context, domain string) ([]string, error) {
			return []string{"www." + domain, "api." + domain, "dev." + domain}, nil
		}),
		Liveness: liveFunc(func(_ context.Context, hosts []string) ([]string, error) {
			if len(hosts) < 2 {
				return hosts, nil
			}
			return hosts[:2], nil
		}),
		DNS: dnsFunc(func(context.Context, string) (findings.DNSRecords, error) {
			return findings.DNSRecords{"A": {"93.184.216.34"}}, nil
		}),
		Whois: whoisFunc(func(context.Context, string) (findings.Whois, error) {
			return findings.Whois{Registrar: "Example Registrar"}, nil
		}),
		Ports: portsFunc(func(context.Context, string) ([]findings.OpenPort, error) {
			ports := make([]findings.OpenPort, 0, 5)
			for _, p := range []int{22, 25, 80, 443, 8080} {
				ports = append(ports, findings.OpenPort{Port: p, State: "open"})
			}
			return ports, nil
		}),
		Tech: techFunc(func(context.Context, string) ([]string, error) {
			return []string{"Nginx", "React", "jQuery"}, nil
		}),
		TLS: tlsFunc(func(context.Context, string) (findings.TLSReport, error) {
			return findings.TLSReport{"protocols": map[string]any{"TLS1.3": true}}, nil
		}),
		Headers: headersFunc(func(context.Context, string) (findings.Headers, error) {
			return findings.Headers{"X-Frame-Options": strPtr("DENY")}, nil
		}),
		Breach: breachFunc(func(context.Context, string) ([]findings.Breach, error) {
			return nil, nil
		}),
		Summary: summarizeFunc(func(context.Context, findings.Findings) summary.Summary {
			return summary.Empty()
		}),
		Writer: w,
	}
}

// unavailable returns collaborators whose stages all fail.
func unavailable(w *memoryWriter, err error) Collaborators {
	return Collaborators{
		Subdomains: enumFunc(func(context.Context, string) ([]string, error) { return nil, err }),
		Liveness:   liveFunc(func(context.Context, []string) ([]string, error) { return nil, err }),
		DNS:        dnsFunc(func(context.Context, string) (findings.DNSRecords, error) { return nil, err }),
		Whois:      whoisFunc(func(context.Context, string) (findings.Whois, error) { return findings.Whois{}, err }),
		Ports:      portsFunc(func(context.Context, string) ([]findings.OpenPort, error) { return nil, err }),
		Tech:       techFunc(func(context.Context, string) ([]string, error) { return nil, err }),
		TLS:        tlsFunc(func(context.Context, string) (findings.TLSReport, error) { return nil, err }),
		Headers:    headersFunc(func(context.Context, string) (findings.Headers, error) { return nil, err }),
		Breach:     breachFunc(func(context.Context, string) ([]findings.Breach, error) { return nil, err }),
		Summary: summarizeFunc(func(context.Context, findings.Findings) summary.Summary {
			return summary.Empty()
		}),
		Writer: w,
	}
}
