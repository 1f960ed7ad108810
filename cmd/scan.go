package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yajur-khanna/asm-tool/internal/input"
	"github.com/yajur-khanna/asm-tool/internal/pipeline"
	"github.com/yajur-khanna/asm-tool/internal/progress"
)

var errNoDomains = errors.New("no valid domains to scan")

var scanCmd = &cobra.Command{
	Use:   "scan [domain...]",
	Short: "Run reconnaissance against one or more domains",
	Long: `Run every reconnaissance stage against each domain, score the findings and
write one report per domain.

Domains come from the arguments or, when none are given, from the "domain"
column of the input CSV (--input, INPUT_CSV, default input.csv).

Examples:
  asm scan example.com example.org
  asm scan --input targets.csv --concurrency 4 --format yaml`,
	RunE: runScan,
}

var quiet bool

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("input", "input.csv", "CSV file with a domain column")
	scanCmd.Flags().Int("concurrency", 1, "number of domains processed at once")
	scanCmd.Flags().String("report-dir", "reports", "directory for report files")
	scanCmd.Flags().String("format", "json", "report format (json, yaml)")
	scanCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	bindFlag(scanCmd, "input", "input.csv")
	bindFlag(scanCmd, "concurrency", "pipeline.concurrency")
	bindFlag(scanCmd, "report-dir", "report.dir")
	bindFlag(scanCmd, "format", "report.format")
}

func runScan(cmd *cobra.Command, args []string) error {
	domains, err := loadDomains(args)
	if err != nil {
		return err
	}

	collaborators, err := buildCollaborators(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize collaborators: %w", err)
	}

	tracker := progress.New(!quiet, len(domains))
	driver, err := pipeline.NewDriver(cfg, collaborators,
		pipeline.WithLogger(log),
		pipeline.WithTelemetry(rec),
		pipeline.WithObserver(tracker),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := driver.Run(ctx, domains)
	tracker.Complete(summary)

	if !summary.Succeeded() {
		return fmt.Errorf("%d of %d domain(s) did not complete", summary.Total()-summary.DoneCount(), summary.Total())
	}
	return nil
}

// loadDomains prefers positional arguments over the CSV file.
func loadDomains(args []string) ([]string, error) {
	var (
		domains  []string
		rejected []input.Rejected
		source   string
	)

	if len(args) > 0 {
		source = "arguments"
		domains, rejected = input.Prepare(args)
	} else {
		source = cfg.Input.CSV
		var err error
		domains, rejected, err = input.LoadCSV(cfg.Input.CSV)
		if err != nil {
			return nil, err
		}
	}

	for _, r := range rejected {
		log.Warnw("Skipping invalid domain",
			"value", r.Value,
			"reason", r.Reason.Error(),
		)
	}

	if len(domains) == 0 {
		return nil, errNoDomains
	}

	log.Infow("Loaded domains",
		"source", source,
		"count", len(domains),
		"rejected", len(rejected),
	)
	return domains, nil
}
