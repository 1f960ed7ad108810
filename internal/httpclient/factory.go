// Package httpclient builds the HTTP clients shared by the HTTP-based recon stages.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/yajur-khanna/asm-tool/internal/config"
)

// SecureClientConfig configures the secure HTTP client
type SecureClientConfig struct {
	Timeout         time.Duration
	BlockPrivate    bool // refuse loopback, link-local and private destinations
	FollowRedirects bool
	MaxRedirects    int
	UserAgent       string
	// Proxy selects a proxy per request. Nil means http.ProxyFromEnvironment.
	Proxy func(*http.Request) (*url.URL, error)
}

// DefaultConfig returns a secure default configuration
func DefaultConfig() SecureClientConfig {
	return SecureClientConfig{
		Timeout:         30 * time.Second,
		BlockPrivate:    true,
		FollowRedirects: true,
		MaxRedirects:    10,
	}
}

// NewSecureClient creates an HTTP client with a hard timeout, optional private-address
// blocking (applied on dial and on every redirect) and a fixed User-Agent.
func NewSecureClient(cfg SecureClientConfig) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.Timeout}

	proxy := cfg.Proxy
	if proxy == nil {
		proxy = http.ProxyFromEnvironment
	}
	// Proxy addresses are operator-chosen and may be local. The request target is
	// checked in its place since the proxy, not this client, dials it.
	var proxies sync.Map

	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			u, err := proxy(req)
			if err != nil || u == nil {
				return u, err
			}
			if cfg.BlockPrivate {
				if err := validateURL(req.Context(), req.URL.String()); err != nil {
					return nil, fmt.Errorf("private address blocked: %w", err)
				}
			}
			proxies.Store(proxyAddr(u), struct{}{})
			return u, nil
		},
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if _, viaProxy := proxies.Load(addr); cfg.BlockPrivate && !viaProxy {
				if err := validateAddress(ctx, addr); err != nil {
					return nil, fmt.Errorf("private address blocked: %w", err)
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" {
		rt = &userAgentTransport{next: transport, userAgent: cfg.UserAgent}
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: rt,
	}

	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if cfg.MaxRedirects > 0 {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			if cfg.BlockPrivate {
				if err := validateURL(req.Context(), req.URL.String()); err != nil {
					return fmt.Errorf("private address blocked on redirect: %w", err)
				}
			}
			return nil
		}
	}

	return client
}

// NewProbeClient creates the client used by the liveness, header and technology stages.
// Redirects are followed so a plain-HTTP host that forwards to HTTPS is still considered live.
func NewProbeClient(cfg config.HTTPConfig, timeout time.Duration) *http.Client {
	return NewSecureClient(SecureClientConfig{
		Timeout:         timeout,
		BlockPrivate:    cfg.BlockPrivate,
		FollowRedirects: true,
		MaxRedirects:    10,
		UserAgent:       cfg.UserAgent,
	})
}

// NewAPIClient creates a client for third-party JSON APIs: no redirects, no address filtering.
func NewAPIClient(cfg config.HTTPConfig, timeout time.Duration) *http.Client {
	return NewSecureClient(SecureClientConfig{
		Timeout:         timeout,
		BlockPrivate:    false,
		FollowRedirects: false,
		UserAgent:       cfg.UserAgent,
	})
}

// proxyAddr returns the host:port the transport dials for a proxy URL.
func proxyAddr(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "socks5", "socks5h":
			port = "1080"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(clone)
}

// validateAddress checks if an address points to a private IP
func validateAddress(ctx context.Context, addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("blocked private IP: %s", ip)
		}
		return nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", host, err)
	}

	for _, a := range addrs {
		if isPrivateIP(a.IP) {
			return fmt.Errorf("blocked private IP: %s (%s)", a.IP, host)
		}
	}

	return nil
}

func validateURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("URL %q has no host", rawURL)
	}
	return validateAddress(ctx, u.Hostname())
}

// isPrivateIP checks if an IP address is private, loopback, link-local or unspecified
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() ||
		ip.IsUnspecified()
}

// DoWithContext performs an HTTP request bound to ctx and reports cancellation distinctly.
func DoWithContext(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, err
	}

	return resp, nil
}

// CloseBody drains and closes a response body so the connection can be reused.
//
// Usage:
//
//	defer httpclient.CloseBody(resp)
func CloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if err := resp.Body.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close HTTP response body: %v\n", err)
	}
}
