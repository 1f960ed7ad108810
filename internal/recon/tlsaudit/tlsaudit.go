// Package tlsaudit probes the TLS configuration of a domain: accepted protocol
// versions, the negotiated cipher, the leaf certificate and its OCSP status.
package tlsaudit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/httpclient"
	"github.com/yajur-khanna/asm-tool/internal/logger"
)

type protocol struct {
	name    string
	version uint16
}

// protocols lists the versions probed, oldest first. SSLv3 is not implemented by
// crypto/tls and is not probed.
var protocols = []protocol{
	{"TLS1.0", tls.VersionTLS10},
	{"TLS1.1", tls.VersionTLS11},
	{"TLS1.2", tls.VersionTLS12},
	{"TLS1.3", tls.VersionTLS13},
}

type Auditor struct {
	port             int
	handshakeTimeout time.Duration
	checkRevocation  bool
	ocspClient       *http.Client
	roots            *x509.CertPool
	now              func() time.Time
	logger           *logger.Logger
}

func New(cfg config.TLSConfig, httpCfg config.HTTPConfig, log *logger.Logger) *Auditor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Auditor{
		port:             cfg.Port,
		handshakeTimeout: cfg.HandshakeTimeout,
		checkRevocation:  cfg.CheckRevocation,
		ocspClient:       httpclient.NewAPIClient(httpCfg, cfg.HandshakeTimeout),
		now:              time.Now,
		logger:           log.WithComponent("tlsaudit"),
	}
}

// Audit returns an opaque report. It fails only when no protocol version completes
// a handshake.
func (a *Auditor) Audit(ctx context.Context, domain string) (findings.TLSReport, error) {
	target := net.JoinHostPort(domain, strconv.Itoa(a.port))

	supported := make(map[string]any, len(protocols))
	var best *tls.ConnectionState
	var lastErr error

	for _, p := range protocols {
		state, err := a.handshake(ctx, target, domain, p.version)
		if err != nil {
			supported[p.name] = false
			lastErr = err
			a.logger.Debugw("TLS version handshake failed", "target", target, "version", p.name, "error", err.Error())
			continue
		}
		supported[p.name] = true
		best = state
	}

	if best == nil {
		return nil, fmt.Errorf("failed to establish TLS connection to %s: %w", target, lastErr)
	}

	report := findings.TLSReport{
		"target":    target,
		"protocols": supported,
		"negotiated": map[string]any{
			"version":      tls.VersionName(best.Version),
			"cipher_suite": tls.CipherSuiteName(best.CipherSuite),
		},
	}

	if len(best.PeerCertificates) > 0 {
		report["certificate"] = a.certificateReport(domain, best.PeerCertificates)
		if a.checkRevocation {
			report["revocation"] = a.revocationReport(ctx, best)
		}
	}
	return report, nil
}

func (a *Auditor) handshake(ctx context.Context, target, serverName string, version uint16) (*tls.ConnectionState, error) {
	dialer := &net.Dialer{Timeout: a.handshakeTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	cfg := &tls.Config{
		MinVersion: version,
		MaxVersion: version,
		// verified in certificateReport
		InsecureSkipVerify: true, //nolint:gosec
	}
	if net.ParseIP(serverName) == nil {
		cfg.ServerName = serverName
	}

	conn := tls.Client(raw, cfg)
	if a.handshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(a.handshakeTimeout))
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	state := conn.ConnectionState()
	return &state, nil
}

func (a *Auditor) certificateReport(domain string, chain []*x509.Certificate) map[string]any {
	leaf := chain[0]
	now := a.now()

	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		intermediates.AddCert(c)
	}
	_, verifyErr := leaf.Verify(x509.VerifyOptions{
		DNSName:       domain,
		Roots:         a.roots,
		Intermediates: intermediates,
		CurrentTime:   now,
	})

	sans := append([]string{}, leaf.DNSNames...)
	for _, ip := range leaf.IPAddresses {
		sans = append(sans, ip.String())
	}

	report := map[string]any{
		"subject":             leaf.Subject.String(),
		"issuer":              leaf.Issuer.String(),
		"serial":              leaf.SerialNumber.String(),
		"not_before":          leaf.NotBefore.UTC().Format(time.RFC3339),
		"not_after":           leaf.NotAfter.UTC().Format(time.RFC3339),
		"days_remaining":      int(leaf.NotAfter.Sub(now).Hours() / 24),
		"expired":             now.After(leaf.NotAfter),
		"signature_algorithm": leaf.SignatureAlgorithm.String(),
		"sans":                sans,
		"hostname_valid":      leaf.VerifyHostname(domain) == nil,
		"chain_length":        len(chain),
		"trusted":             verifyErr == nil,
	}
	if verifyErr != nil {
		report["verify_error"] = verifyErr.Error()
	}
	return report
}
