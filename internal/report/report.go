// Package report assembles the per-domain report document and persists it.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/summary"
)

// Format is the on-disk encoding of a report.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Report is the persisted document. Field order is the key order on disk.
type Report struct {
	Domain          string              `json:"domain" yaml:"domain"`
	RiskScore       int                 `json:"risk_score" yaml:"risk_score"`
	RiskSummary     string              `json:"risk_summary" yaml:"risk_summary"`
	Recommendations []string            `json:"recommendations" yaml:"recommendations"`
	Subdomains      []string            `json:"subdomains" yaml:"subdomains"`
	LiveSubdomains  []string            `json:"live_subdomains" yaml:"live_subdomains"`
	DNSRecords      findings.DNSRecords `json:"dns_records" yaml:"dns_records"`
	Whois           findings.Whois      `json:"whois" yaml:"whois"`
	OpenPorts       []findings.OpenPort `json:"open_ports" yaml:"open_ports"`
	Technologies    []string            `json:"technologies" yaml:"technologies"`
	SSLAnalysis     findings.TLSReport  `json:"ssl_analysis" yaml:"ssl_analysis"`
	Headers         findings.Headers    `json:"headers" yaml:"headers"`
	Breaches        []findings.Breach   `json:"breaches" yaml:"breaches"`
}

// Keys lists the top-level keys of every report, in order.
var Keys = []string{
	"domain", "risk_score", "risk_summary", "recommendations",
	"subdomains", "live_subdomains", "dns_records", "whois", "open_ports",
	"technologies", "ssl_analysis", "headers", "breaches",
}

// Assemble composes the report. Nil containers become empty ones so nothing encodes as null.
func Assemble(domain string, score int, s summary.Summary, f findings.Findings) Report {
	r := Report{
		Domain:          domain,
		RiskScore:       score,
		RiskSummary:     s.Narrative,
		Recommendations: orEmpty(s.Recommendations),
		Subdomains:      orEmpty(f.Subdomains),
		LiveSubdomains:  orEmpty(f.LiveSubdomains),
		DNSRecords:      f.DNSRecords,
		Whois:           f.Whois,
		OpenPorts:       orEmpty(f.OpenPorts),
		Technologies:    orEmpty(f.Technologies),
		SSLAnalysis:     f.SSLAnalysis,
		Headers:         f.Headers,
		Breaches:        orEmpty(f.Breaches),
	}
	if r.DNSRecords == nil {
		r.DNSRecords = findings.EmptyDNSRecords()
	}
	if r.SSLAnalysis == nil {
		r.SSLAnalysis = findings.EmptyTLSReport()
	}
	if r.Headers == nil {
		r.Headers = findings.EmptyHeaders()
	}
	return r
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// Encode renders the report with two-space indentation.
func Encode(r Report, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// Decode parses a report previously produced by Encode.
func Decode(data []byte, format Format) (Report, error) {
	var r Report
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &r)
	case FormatYAML:
		err = yaml.Unmarshal(data, &r)
	default:
		err = fmt.Errorf("unknown report format %q", format)
	}
	return r, err
}
