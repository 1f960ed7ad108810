package headers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/httpclient"
)

func testAuditor() *Auditor {
	return NewWithClient(httpclient.NewProbeClient(config.HTTPConfig{UserAgent: "test"}, 2*time.Second), nil)
}

func TestAuditURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("x-content-type-options", "nosniff")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	got, err := testAuditor().AuditURL(context.Background(), srv.URL)
	require.NoError(t, err)

	require.Len(t, got, len(findings.SecurityHeaders))
	assert.Equal(t, "max-age=63072000; includeSubDomains", *got["Strict-Transport-Security"])
	assert.Equal(t, "DENY", *got["X-Frame-Options"])
	assert.Equal(t, "nosniff", *got["X-Content-Type-Options"])
	assert.Nil(t, got["Content-Security-Policy"])
	assert.Nil(t, got["Referrer-Policy"])
}

func TestAuditFollowsRedirects(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Referrer-Policy", "no-referrer")
	}))
	defer final.Close()

	start := httptest.NewServer(http.RedirectHandler(final.URL, http.StatusMovedPermanently))
	defer start.Close()

	got, err := testAuditor().AuditURL(context.Background(), start.URL)
	require.NoError(t, err)
	require.NotNil(t, got["Referrer-Policy"])
	assert.Equal(t, "no-referrer", *got["Referrer-Policy"])
}

func TestAuditUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testAuditor().AuditURL(context.Background(), url)
	assert.Error(t, err)
}
