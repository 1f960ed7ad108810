// Package dnsrecords resolves the A, AAAA, MX, TXT and NS records of a domain.
package dnsrecords

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/logger"
)

var recordTypes = map[string]uint16{
	"A":    dns.TypeA,
	"AAAA": dns.TypeAAAA,
	"MX":   dns.TypeMX,
	"TXT":  dns.TypeTXT,
	"NS":   dns.TypeNS,
}

// ErrNoResolver means no configured resolver answered any query.
var ErrNoResolver = errors.New("no DNS resolver reachable")

type Resolver struct {
	resolvers []string
	client    *dns.Client
	logger    *logger.Logger
}

func New(cfg config.DNSConfig, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	resolvers := make([]string, 0, len(cfg.Resolvers))
	for _, r := range cfg.Resolvers {
		if _, _, err := net.SplitHostPort(r); err != nil {
			r = net.JoinHostPort(r, "53")
		}
		resolvers = append(resolvers, r)
	}
	return &Resolver{
		resolvers: resolvers,
		client:    &dns.Client{Timeout: cfg.QueryTimeout},
		logger:    log.WithComponent("dns"),
	}
}

// Lookup queries every record type. A type that fails or has no answer maps to an empty
// slice. An error is returned only when no resolver answered at all.
func (r *Resolver) Lookup(ctx context.Context, domain string) (findings.DNSRecords, error) {
	records := findings.EmptyDNSRecords()
	answered := false

	for _, name := range findings.DNSRecordTypes {
		values, err := r.query(ctx, domain, recordTypes[name])
		if err != nil {
			r.logger.Debugw("DNS query failed", "domain", domain, "type", name, "error", err.Error())
			continue
		}
		answered = true
		records[name] = values
	}

	if err := ctx.Err(); err != nil {
		return records, err
	}
	if !answered {
		return records, fmt.Errorf("%s: %w", domain, ErrNoResolver)
	}
	return records, nil
}

// query asks each resolver in turn until one responds. Any response code counts as an
// answer; only NOERROR carries values.
func (r *Resolver) query(ctx context.Context, domain string, qtype uint16) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), qtype)
	m.RecursionDesired = true

	var lastErr error = ErrNoResolver
	for _, resolver := range r.resolvers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, _, err := r.client.ExchangeContext(ctx, m, resolver)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			return []string{}, nil
		}
		return format(resp.Answer, qtype), nil
	}
	return nil, lastErr
}

func format(answers []dns.RR, qtype uint16) []string {
	values := []string{}
	for _, rr := range answers {
		if rr.Header().Rrtype != qtype {
			continue
		}
		switch v := rr.(type) {
		case *dns.A:
			values = append(values, v.A.String())
		case *dns.AAAA:
			values = append(values, v.AAAA.String())
		case *dns.MX:
			values = append(values, fmt.Sprintf("%d %s", v.Preference, v.Mx))
		case *dns.TXT:
			values = append(values, `"`+strings.Join(v.Txt, `" "`)+`"`)
		case *dns.NS:
			values = append(values, v.Ns)
		}
	}
	return values
}
