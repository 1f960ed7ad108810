// Package whois looks up registration data for a domain.
package whois

import (
	"context"
	"errors"
	"fmt"
	"strings"

	likewhois "github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/logger"
)

// ErrUnparseable means neither the structured nor the line parser found any field.
var ErrUnparseable = errors.New("whois response has no recognisable fields")

type queryFunc func(ctx context.Context, domain string) (string, error)

type Client struct {
	query  queryFunc
	logger *logger.Logger
}

func New(cfg config.WhoisConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	wc := likewhois.NewClient()
	if cfg.Timeout > 0 {
		wc.SetTimeout(cfg.Timeout)
	}
	return &Client{
		query: func(ctx context.Context, domain string) (string, error) {
			return wc.Whois(domain)
		},
		logger: log.WithComponent("whois"),
	}
}

// Lookup returns the registration summary. A registry reporting the domain as
// unregistered yields the zero Whois and no error.
func (c *Client) Lookup(ctx context.Context, domain string) (findings.Whois, error) {
	raw, err := c.query(ctx, domain)
	if err != nil {
		return findings.Whois{}, fmt.Errorf("whois lookup failed: %w", err)
	}
	return c.Parse(domain, raw)
}

// Parse tries the structured parser first and falls back to line matching.
func (c *Client) Parse(domain, raw string) (findings.Whois, error) {
	parsed, err := whoisparser.Parse(raw)
	if err == nil {
		return fromParsed(parsed), nil
	}
	if errors.Is(err, whoisparser.ErrNotFoundDomain) {
		c.logger.Debugw("Domain not registered", "domain", domain)
		return findings.Whois{}, nil
	}

	c.logger.Debugw("Structured whois parse failed, using line parser",
		"domain", domain,
		"error", err.Error(),
	)
	w := parseManual(raw)
	if w.Registrar == "" && w.CreationDate == "" && w.ExpirationDate == "" && len(w.NameServers) == 0 {
		return findings.Whois{}, ErrUnparseable
	}
	return w, nil
}

func fromParsed(p whoisparser.WhoisInfo) findings.Whois {
	var w findings.Whois
	if p.Registrar != nil {
		w.Registrar = p.Registrar.Name
	}
	if p.Domain != nil {
		w.CreationDate = p.Domain.CreatedDate
		w.ExpirationDate = p.Domain.ExpirationDate
		w.NameServers = normaliseNameServers(p.Domain.NameServers)
	}
	return w
}

func parseManual(raw string) findings.Whois {
	var w findings.Whois
	var nameServers []string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch {
		case key == "registrar" || key == "registrar name" || key == "sponsoring registrar":
			if w.Registrar == "" {
				w.Registrar = value
			}
		case key == "creation date" || key == "created" || key == "registered on" || key == "registration time":
			if w.CreationDate == "" {
				w.CreationDate = value
			}
		case strings.Contains(key, "expir"):
			if w.ExpirationDate == "" {
				w.ExpirationDate = value
			}
		case key == "name server" || key == "nserver" || key == "name servers":
			nameServers = append(nameServers, strings.Fields(value)[0])
		}
	}

	w.NameServers = normaliseNameServers(nameServers)
	return w
}

func normaliseNameServers(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, ns := range in {
		ns = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(ns)), ".")
		if ns == "" {
			continue
		}
		if _, ok := seen[ns]; ok {
			continue
		}
		seen[ns] = struct{}{}
		out = append(out, ns)
	}
	return out
}
