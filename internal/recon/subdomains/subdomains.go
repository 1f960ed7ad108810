// Package subdomains enumerates subdomains with amass, falling back to subfinder.
package subdomains

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/input"
	"github.com/yajur-khanna/asm-tool/internal/logger"
	"github.com/yajur-khanna/asm-tool/internal/recon/amassgraph"
	"github.com/yajur-khanna/asm-tool/internal/stage"
)

// runner executes a binary and returns its stdout.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

type tool struct {
	name string
	path string
	args func(domain string) []string
}

type Enumerator struct {
	tools    []tool
	lookPath func(string) (string, error)
	run      runner
	logger   *logger.Logger
}

func New(cfg config.SubdomainsConfig, log *logger.Logger) *Enumerator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Enumerator{
		tools: []tool{
			{
				name: "amass",
				path: cfg.AmassPath,
				args: func(d string) []string { return []string{"enum", "-d", d, "-o", "-"} },
			},
			{
				name: "subfinder",
				path: cfg.SubfinderPath,
				args: func(d string) []string { return []string{"-d", d, "-silent"} },
			},
		},
		lookPath: exec.LookPath,
		run:      runCommand,
		logger:   log.WithComponent("subdomains"),
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Enumerate runs the first installed tool. ErrToolUnavailable is returned when none is
// on PATH; a tool that is installed but fails is not retried with the next one.
func (e *Enumerator) Enumerate(ctx context.Context, domain string) ([]string, error) {
	for _, t := range e.tools {
		if t.path == "" {
			continue
		}
		bin, err := e.lookPath(t.path)
		if err != nil {
			e.logger.Debugw("Enumeration tool not found", "tool", t.name, "path", t.path)
			continue
		}

		e.logger.Debugw("Running enumeration tool", "tool", t.name, "domain", domain)
		out, err := e.run(ctx, bin, t.args(domain)...)
		if err != nil {
			return nil, err
		}
		return ParseOutput(domain, out), nil
	}
	return nil, fmt.Errorf("no subdomain enumeration tool on PATH: %w", stage.ErrToolUnavailable)
}

// ParseOutput extracts hostnames under domain from tool output. Plain lines and amass
// relationship lines are both accepted; order of first appearance is kept.
func ParseOutput(domain string, out []byte) []string {
	domain = strings.ToLower(domain)
	seen := make(map[string]struct{})
	hosts := []string{}

	add := func(name string) {
		name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
		if !inScope(name, domain) {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		hosts = append(hosts, name)
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if t, ok := amassgraph.ParseLine(line); ok {
			if t.SubjectType == "FQDN" {
				add(t.Subject)
			}
			if t.ObjectType == "FQDN" {
				add(t.Object)
			}
			continue
		}
		add(line)
	}
	return hosts
}

func inScope(name, domain string) bool {
	if name != domain && !strings.HasSuffix(name, "."+domain) {
		return false
	}
	return input.Validate(name) == nil
}

// IsToolMissing reports whether err means no enumeration tool was installed.
func IsToolMissing(err error) bool {
	return errors.Is(err, stage.ErrToolUnavailable)
}
