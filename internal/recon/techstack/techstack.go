// Package techstack fingerprints the technologies served at a URL.
package techstack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	wappalyzer "github.com/projectdiscovery/wappalyzergo"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/httpclient"
	"github.com/yajur-khanna/asm-tool/internal/logger"
)

const (
	maxBodySize    = 4 << 20
	maxFaviconSize = 1 << 20
)

type Detector struct {
	client   *http.Client
	favicon  bool
	favicons map[int32]string
	logger   *logger.Logger

	once    sync.Once
	wapp    *wappalyzer.Wappalyze
	wappErr error
}

func New(cfg config.TechConfig, httpCfg config.HTTPConfig, log *logger.Logger) *Detector {
	return NewWithClient(httpclient.NewProbeClient(httpCfg, cfg.Timeout), cfg.Favicon, log)
}

func NewWithClient(client *http.Client, favicon bool, log *logger.Logger) *Detector {
	if log == nil {
		log = logger.NewNop()
	}
	return &Detector{
		client:   client,
		favicon:  favicon,
		favicons: knownFavicons,
		logger:   log.WithComponent("techstack"),
	}
}

// fingerprinter loads the wappalyzer signatures once per Detector.
func (d *Detector) fingerprinter() (*wappalyzer.Wappalyze, error) {
	d.once.Do(func() {
		d.wapp, d.wappErr = wappalyzer.New()
	})
	return d.wapp, d.wappErr
}

// Detect fetches the page and merges three signals: wappalyzer signatures, the HTML
// generator meta tag and the favicon hash. Names are returned sorted without versions.
func (d *Detector) Detect(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", pageURL, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	httpclient.CloseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}

	techs := make(map[string]struct{})

	if wapp, err := d.fingerprinter(); err != nil {
		d.logger.Warnw("Wappalyzer signatures unavailable", "error", err.Error())
	} else {
		for name := range wapp.Fingerprint(resp.Header, body) {
			techs[stripVersion(name)] = struct{}{}
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		if gen := Generator(doc); gen != "" {
			techs[gen] = struct{}{}
		}
		if d.favicon {
			base := pageURL
			if resp.Request != nil && resp.Request.URL != nil {
				base = resp.Request.URL.String()
			}
			if name := d.faviconTechnology(ctx, base, doc); name != "" {
				techs[name] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(techs))
	for name := range techs {
		if name != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// stripVersion turns wappalyzer's "Name:1.2.3" into "Name".
func stripVersion(name string) string {
	if i := strings.Index(name, ":"); i > 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// Generator returns the product named in <meta name="generator">, without trailing
// version tokens.
func Generator(doc *goquery.Document) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(s.AttrOr("name", ""), "generator") {
			content = strings.TrimSpace(s.AttrOr("content", ""))
			return false
		}
		return true
	})

	var words []string
	for _, w := range strings.Fields(content) {
		if r := []rune(w)[0]; unicode.IsDigit(r) || (r == 'v' && len(w) > 1 && unicode.IsDigit([]rune(w)[1])) {
			break
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

// FaviconURL returns the icon declared in the page, or /favicon.ico.
func FaviconURL(base string, doc *goquery.Document) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	href := "/favicon.ico"
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "icon" {
				if h := strings.TrimSpace(s.AttrOr("href", "")); h != "" {
					href = h
					return false
				}
			}
		}
		return true
	})
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

func (d *Detector) faviconTechnology(ctx context.Context, base string, doc *goquery.Document) string {
	iconURL := FaviconURL(base, doc)
	if iconURL == "" || strings.HasPrefix(iconURL, "data:") {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return ""
	}
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Debugw("Favicon fetch failed", "url", iconURL, "error", err.Error())
		return ""
	}
	defer httpclient.CloseBody(resp)
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFaviconSize))
	if err != nil || len(data) == 0 {
		return ""
	}

	hash := FaviconHash(data)
	name := d.favicons[hash]
	d.logger.Debugw("Favicon hashed", "url", iconURL, "mmh3", hash, "match", name)
	return name
}
