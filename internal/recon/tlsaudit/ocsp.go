package tlsaudit

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/yajur-khanna/asm-tool/internal/httpclient"
)

const maxOCSPResponse = 64 << 10

// revocationReport prefers a stapled OCSP response and otherwise asks the first
// responder named in the leaf certificate.
func (a *Auditor) revocationReport(ctx context.Context, state *tls.ConnectionState) map[string]any {
	leaf := state.PeerCertificates[0]
	report := map[string]any{"checked": false}

	if len(state.PeerCertificates) < 2 {
		report["status"] = "unknown"
		report["reason"] = "issuer certificate not presented"
		return report
	}
	issuer := state.PeerCertificates[1]

	if len(state.OCSPResponse) > 0 {
		resp, err := ocsp.ParseResponseForCert(state.OCSPResponse, leaf, issuer)
		if err == nil {
			return describe(resp, "stapled", "")
		}
		a.logger.Debugw("Stapled OCSP response unusable", "error", err.Error())
	}

	if len(leaf.OCSPServer) == 0 {
		report["status"] = "unknown"
		report["reason"] = "certificate names no OCSP responder"
		return report
	}

	responder := leaf.OCSPServer[0]
	resp, err := a.queryOCSP(ctx, responder, leaf, issuer)
	if err != nil {
		report["status"] = "unknown"
		report["responder"] = responder
		report["error"] = err.Error()
		return report
	}
	return describe(resp, "responder", responder)
}

func (a *Auditor) queryOCSP(ctx context.Context, responder string, leaf, issuer *x509.Certificate) (*ocsp.Response, error) {
	der, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build OCSP request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responder, bytes.NewReader(der))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := httpclient.DoWithContext(ctx, a.ocspClient, req)
	if err != nil {
		return nil, err
	}
	defer httpclient.CloseBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCSP responder returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponse))
	if err != nil {
		return nil, err
	}
	return ocsp.ParseResponseForCert(body, leaf, issuer)
}

func describe(resp *ocsp.Response, source, responder string) map[string]any {
	status := "unknown"
	switch resp.Status {
	case ocsp.Good:
		status = "good"
	case ocsp.Revoked:
		status = "revoked"
	}

	report := map[string]any{
		"checked":     true,
		"source":      source,
		"status":      status,
		"this_update": resp.ThisUpdate.UTC().Format(time.RFC3339),
	}
	if responder != "" {
		report["responder"] = responder
	}
	if !resp.NextUpdate.IsZero() {
		report["next_update"] = resp.NextUpdate.UTC().Format(time.RFC3339)
	}
	if resp.Status == ocsp.Revoked {
		report["revoked_at"] = resp.RevokedAt.UTC().Format(time.RFC3339)
	}
	return report
}
