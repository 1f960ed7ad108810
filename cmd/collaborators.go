package cmd

import (
	"errors"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/httpclient"
	"github.com/yajur-khanna/asm-tool/internal/logger"
	"github.com/yajur-khanna/asm-tool/internal/pipeline"
	"github.com/yajur-khanna/asm-tool/internal/recon/breach"
	"github.com/yajur-khanna/asm-tool/internal/recon/dnsrecords"
	"github.com/yajur-khanna/asm-tool/internal/recon/headers"
	"github.com/yajur-khanna/asm-tool/internal/recon/liveness"
	"github.com/yajur-khanna/asm-tool/internal/recon/portscan"
	"github.com/yajur-khanna/asm-tool/internal/recon/subdomains"
	"github.com/yajur-khanna/asm-tool/internal/recon/techstack"
	"github.com/yajur-khanna/asm-tool/internal/recon/tlsaudit"
	"github.com/yajur-khanna/asm-tool/internal/recon/whois"
	"github.com/yajur-khanna/asm-tool/internal/report"
	"github.com/yajur-khanna/asm-tool/internal/summary"
)

// buildCollaborators wires the production implementation of every pipeline dependency.
func buildCollaborators(cfg *config.Config, log *logger.Logger) (pipeline.Collaborators, error) {
	var completer summary.Completer
	oc, err := summary.NewOpenAICompleter(cfg.Summary,
		httpclient.NewAPIClient(cfg.HTTP, cfg.Summary.Timeout), log)
	switch {
	case err == nil:
		completer = oc
	case errors.Is(err, summary.ErrDisabled):
		log.Infow("Risk summaries disabled",
			"hint", "set OPENAI_API_KEY or summary.api_key to enable",
		)
	default:
		return pipeline.Collaborators{}, err
	}

	if cfg.Breach.APIKey == "" {
		log.Infow("Breach lookup has no API key, stage will be unavailable",
			"hint", "set HAVEIBEENPWNED_API_KEY or breach.api_key",
		)
	}

	return pipeline.Collaborators{
		Subdomains: subdomains.New(cfg.Subdomains, log),
		Liveness:   liveness.New(cfg.Liveness, cfg.HTTP, log),
		DNS:        dnsrecords.New(cfg.DNS, log),
		Whois:      whois.New(cfg.Whois, log),
		Ports:      portscan.New(cfg.Nmap, log),
		Tech:       techstack.New(cfg.Tech, cfg.HTTP, log),
		TLS:        tlsaudit.New(cfg.TLS, cfg.HTTP, log),
		Headers:    headers.New(cfg.Headers, cfg.HTTP, log),
		Breach:     breach.New(cfg.Breach, cfg.HTTP, log),
		Summary:    summary.NewGenerator(completer, cfg.Summary, log),
		Writer:     report.NewWriter(cfg.Report, log),
	}, nil
}
