// Package portscan runs a fast nmap service scan against a domain.
package portscan

import (
	"context"
	"fmt"
	"os/exec"
	"sort"

	"github.com/Ullaakut/nmap/v3"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/logger"
	"github.com/yajur-khanna/asm-tool/internal/stage"
)

type runFunc func(ctx context.Context, opts ...nmap.Option) (*nmap.Run, []string, error)

type Scanner struct {
	cfg      config.NmapConfig
	lookPath func(string) (string, error)
	run      runFunc
	logger   *logger.Logger
}

func New(cfg config.NmapConfig, log *logger.Logger) *Scanner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scanner{
		cfg:      cfg,
		lookPath: exec.LookPath,
		run:      runNmap,
		logger:   log.WithComponent("portscan"),
	}
}

func runNmap(ctx context.Context, opts ...nmap.Option) (*nmap.Run, []string, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create nmap scanner: %w", err)
	}
	result, warnings, err := scanner.Run()
	var w []string
	if warnings != nil {
		w = *warnings
	}
	if err != nil {
		return nil, w, fmt.Errorf("run nmap: %w", err)
	}
	return result, w, nil
}

// Options builds the scanner options for a domain: -sV -T<timing> -F by default.
func (s *Scanner) Options(binary, domain string) []nmap.Option {
	opts := []nmap.Option{
		nmap.WithBinaryPath(binary),
		nmap.WithTargets(domain),
		nmap.WithTimingTemplate(nmap.Timing(s.cfg.Timing)),
	}
	if s.cfg.ServiceInfo {
		opts = append(opts, nmap.WithServiceInfo())
	}
	if s.cfg.FastMode {
		opts = append(opts, nmap.WithFastMode())
	}
	return opts
}

func (s *Scanner) Scan(ctx context.Context, domain string) ([]findings.OpenPort, error) {
	binary, err := s.lookPath(s.cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("nmap not found at %q: %w", s.cfg.BinaryPath, stage.ErrToolUnavailable)
	}

	result, warnings, err := s.run(ctx, s.Options(binary, domain)...)
	if len(warnings) > 0 {
		s.logger.Debugw("Nmap scan produced warnings", "domain", domain, "warnings", warnings)
	}
	if err != nil {
		return nil, err
	}

	ports := PortsFromRun(result)
	s.logger.Debugw("Nmap scan complete",
		"domain", domain,
		"hosts", len(result.Hosts),
		"ports", len(ports),
	)
	return ports, nil
}

// PortsFromRun flattens every reported port of every host, ordered by port number.
// A port seen on several addresses of the same domain is reported once.
func PortsFromRun(result *nmap.Run) []findings.OpenPort {
	ports := []findings.OpenPort{}
	if result == nil {
		return ports
	}

	seen := make(map[string]struct{})
	for _, h := range result.Hosts {
		for _, p := range h.Ports {
			key := fmt.Sprintf("%s/%d", p.Protocol, p.ID)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			ports = append(ports, findings.OpenPort{
				Port:    int(p.ID),
				State:   p.State.State,
				Service: p.Service.Name,
				Version: p.Service.Version,
			})
		}
	}

	sort.SliceStable(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })
	return ports
}
