// Package input loads and validates the target domain list.
package input

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/gocarina/gocsv"
	"golang.org/x/net/publicsuffix"
)

// DomainColumn is the CSV header holding target domains.
const DomainColumn = "domain"

var (
	ErrNoDomainColumn = errors.New("input has no " + DomainColumn + " column")
	ErrInvalidDomain  = errors.New("invalid domain")
	ErrNotRegistrable = errors.New("domain is a public suffix or has no registrable part")
)

var labelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Rejected is an input value that did not validate.
type Rejected struct {
	Value  string
	Reason error
}

// LoadCSV reads domains from the domain column of a CSV file.
func LoadCSV(path string) ([]string, []Rejected, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses CSV with a header row. Domains keep input order; invalid and
// duplicate rows are dropped.
func ReadCSV(r io.Reader) ([]string, []Rejected, error) {
	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(rows) == 0 {
		return []string{}, nil, nil
	}

	column := ""
	for key := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(key, "\ufeff")), DomainColumn) {
			column = key
			break
		}
	}
	if column == "" {
		return nil, nil, ErrNoDomainColumn
	}

	raw := make([]string, 0, len(rows))
	for _, row := range rows {
		raw = append(raw, row[column])
	}
	domains, rejected := Prepare(raw)
	return domains, rejected, nil
}

// Prepare normalises and validates raw values, skipping blanks and duplicates.
// The first occurrence of a domain wins.
func Prepare(raw []string) ([]string, []Rejected) {
	seen := make(map[string]struct{}, len(raw))
	domains := make([]string, 0, len(raw))
	var rejected []Rejected

	for _, value := range raw {
		if strings.TrimSpace(value) == "" {
			continue
		}
		d, err := Normalise(value)
		if err != nil {
			rejected = append(rejected, Rejected{Value: value, Reason: err})
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	return domains, rejected
}

// Normalise lower-cases a value, strips scheme, port, path and trailing dot, and
// validates the remaining hostname.
func Normalise(value string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(value))

	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidDomain, value)
		}
		host = u.Host
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")

	if err := Validate(host); err != nil {
		return "", err
	}
	return host, nil
}

// Validate checks an already normalised hostname.
func Validate(host string) error {
	if len(host) == 0 || len(host) > 253 {
		return fmt.Errorf("%w: %q has invalid length", ErrInvalidDomain, host)
	}
	if net.ParseIP(host) != nil {
		return fmt.Errorf("%w: %q is an IP address", ErrInvalidDomain, host)
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return fmt.Errorf("%w: %q needs at least two labels", ErrInvalidDomain, host)
	}
	for _, label := range labels {
		if !labelPattern.MatchString(label) {
			return fmt.Errorf("%w: %q has invalid label %q", ErrInvalidDomain, host, label)
		}
	}

	if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
		return fmt.Errorf("%w: %q", ErrNotRegistrable, host)
	}
	return nil
}
