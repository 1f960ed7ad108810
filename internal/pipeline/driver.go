// Package pipeline drives each domain through enumeration, aggregation, scoring and
// persistence, and runs domains on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/logger"
	"github.com/yajur-khanna/asm-tool/internal/report"
	"github.com/yajur-khanna/asm-tool/internal/risk"
	"github.com/yajur-khanna/asm-tool/internal/stage"
	"github.com/yajur-khanna/asm-tool/internal/telemetry"
)

type Driver struct {
	cfg       *config.Config
	c         Collaborators
	runner    *stage.Runner
	logger    *logger.Logger
	telemetry telemetry.Recorder
	observer  Observer
}

type Option func(*Driver)

func WithLogger(log *logger.Logger) Option {
	return func(d *Driver) {
		if log != nil {
			d.logger = log
		}
	}
}

func WithTelemetry(rec telemetry.Recorder) Option {
	return func(d *Driver) {
		if rec != nil {
			d.telemetry = rec
		}
	}
}

func WithObserver(o Observer) Option {
	return func(d *Driver) {
		if o != nil {
			d.observer = o
		}
	}
}

func NewDriver(cfg *config.Config, c Collaborators, opts ...Option) (*Driver, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: nil config")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:       cfg,
		c:         c,
		logger:    logger.NewNop(),
		telemetry: telemetry.Noop(),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithComponent("pipeline")
	d.runner = stage.NewRunner(d.logger, d.telemetry)

	return d, nil
}

// Run processes every domain and returns their outcomes in input order. A failed domain
// never stops its siblings. Once ctx is cancelled no further domain is started.
func (d *Driver) Run(ctx context.Context, domains []string) RunSummary {
	runID := uuid.NewString()
	log := d.logger.WithRunID(runID)

	summary := RunSummary{
		RunID:    runID,
		Started:  time.Now().UTC(),
		Outcomes: make([]Outcome, len(domains)),
		errs:     NewErrorAggregator(),
	}

	concurrency := d.cfg.Pipeline.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	log.Infow("Starting run",
		"domains", len(domains),
		"concurrency", concurrency,
	)

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, domain := range domains {
		if ctx.Err() != nil {
			summary.Outcomes[i] = skipped(domain, ctx.Err())
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				summary.Outcomes[i] = skipped(domain, ctx.Err())
				return nil
			}
			summary.Outcomes[i] = d.process(ctx, log, domain)
			return nil
		})
	}
	_ = g.Wait()

	summary.Finished = time.Now().UTC()

	for _, o := range summary.Outcomes {
		if o.State == StateFailed {
			summary.errs.Add(o.Err)
		}
	}

	log.Infow("Run finished",
		"done", summary.DoneCount(),
		"failed", summary.FailedCount(),
		"skipped", summary.SkippedCount(),
		"result", summary.errs.Summary(len(domains)),
		"duration_ms", summary.Finished.Sub(summary.Started).Milliseconds(),
	)

	return summary
}

func skipped(domain string, err error) Outcome {
	return Outcome{Domain: domain, State: StatePending, Err: err}
}

// domainRun tracks the state of one domain and reports each change.
type domainRun struct {
	domain   string
	state    State
	observer Observer
}

func (r *domainRun) advance(to State, err error) {
	if !r.state.CanTransition(to) {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s for %s", r.state, to, r.domain))
	}
	from := r.state
	r.state = to
	r.observer.Observe(Transition{
		Domain: r.domain,
		From:   from,
		To:     to,
		Err:    err,
		At:     time.Now().UTC(),
	})
}

// ProcessDomain runs the whole lifecycle for a single domain.
func (d *Driver) ProcessDomain(ctx context.Context, domain string) Outcome {
	return d.process(ctx, d.logger, domain)
}

func (d *Driver) process(ctx context.Context, log *logger.Logger, domain string) (out Outcome) {
	start := time.Now()
	log = log.WithDomain(domain)
	ctx = logger.WithLogger(ctx, log)

	ctx, span := log.StartOperation(ctx, "pipeline.process_domain", "domain", domain)

	run := &domainRun{domain: domain, state: StatePending, observer: d.observer}
	out = Outcome{Domain: domain, State: StatePending}

	fail := func(err error) Outcome {
		out.Err = &DomainError{Domain: domain, State: run.state, Err: err}
		run.advance(StateFailed, out.Err)
		out.State = StateFailed
		return out
	}

	defer func() {
		out.Duration = time.Since(start)
		d.telemetry.RecordDomain(ctx, out.State.String(), out.Duration)
		log.FinishOperation(ctx, span, "pipeline.process_domain", start, out.Err,
			"state", out.State.String(),
			"score", out.Score,
		)
	}()

	run.advance(StateEnumerating, nil)
	outputs := d.enumerate(ctx, domain)

	run.advance(StateAggregating, nil)
	f, err := findings.Aggregate(domain, outputs)
	if err != nil {
		log.Errorw("Findings incomplete", "error", err.Error())
		return fail(err)
	}
	out.StageStatus = f.StageStatus
	if unavailable := f.Unavailable(); len(unavailable) > 0 {
		log.Infow("Some stages were unavailable", "stages", unavailable)
	}

	run.advance(StateScoring, nil)
	out.Score = risk.Score(f)
	log.Debugw("Risk score computed", "breakdown", risk.Explain(f))
	d.telemetry.RecordScore(ctx, out.Score)
	sum := d.c.Summary.Summarize(ctx, f)

	run.advance(StatePersisting, nil)
	path, err := d.c.Writer.Write(domain, report.Assemble(domain, out.Score, sum, f))
	if err != nil {
		log.Errorw("Report persistence failed", "error", err.Error())
		return fail(err)
	}
	out.ReportPath = path

	run.advance(StateDone, nil)
	out.State = StateDone
	log.Infow("Domain processed",
		"score", out.Score,
		"report", path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// enumerate runs the nine stages. Subdomains then liveness form one chained task; the
// rest start immediately. Every task writes its own slot and never returns an error.
func (d *Driver) enumerate(ctx context.Context, domain string) findings.Outputs {
	var (
		out findings.Outputs
		g   errgroup.Group
		cfg = d.cfg
		c   = d.c
	)

	g.Go(func() error {
		subs := stage.Run(ctx, d.runner, stage.Spec[[]string]{
			Name: "subdomains", Domain: domain, Timeout: cfg.Subdomains.Timeout,
			Empty: findings.EmptyStrings, Count: count[string],
		}, func(ctx context.Context) ([]string, error) {
			return c.Subdomains.Enumerate(ctx, domain)
		})
		out.Subdomains = &subs

		// The checker keeps partial results at Budget; the stage deadline sits one host
		// timeout later so it only fires for a checker that ignores its own.
		hosts := subs.Value()
		live := stage.Run(ctx, d.runner, stage.Spec[[]string]{
			Name: "liveness", Domain: domain, Timeout: livenessTimeout(cfg.Liveness, len(hosts)),
			Empty: findings.EmptyStrings, Count: count[string],
		}, func(ctx context.Context) ([]string, error) {
			return c.Liveness.FilterLive(ctx, hosts)
		})
		out.LiveSubdomains = &live
		return nil
	})

	g.Go(func() error {
		r := stage.Run(ctx, d.runner, stage.Spec[findings.DNSRecords]{
			Name: "dns", Domain: domain, Timeout: cfg.DNS.Timeout,
			Empty: findings.EmptyDNSRecords, Count: dnsCount,
		}, func(ctx context.Context) (findings.DNSRecords, error) {
			return c.DNS.Lookup(ctx, domain)
		})
		out.DNSRecords = &r
		return nil
	})

	g.Go(func() error {
		r := stage.Run(ctx, d.runner, stage.Spec[findings.Whois]{
			Name: "whois", Domain: domain, Timeout: cfg.Whois.Timeout,
			Empty: findings.EmptyWhois,
		}, func(ctx context.Context) (findings.Whois, error) {
			return c.Whois.Lookup(ctx, domain)
		})
		out.Whois = &r
		return nil
	})

	g.Go(func() error {
		r := stage.Run(ctx, d.runner, stage.Spec[[]findings.OpenPort]{
			Name: "ports", Domain: domain, Timeout: cfg.Nmap.Timeout,
			Empty: findings.EmptyOpenPorts, Count: count[findings.OpenPort],
		}, func(ctx context.Context) ([]findings.OpenPort, error) {
			return c.Ports.Scan(ctx, domain)
		})
		out.OpenPorts = &r
		return nil
	})

	g.Go(func() error {
		r := stage.Run(ctx, d.runner, stage.Spec[[]string]{
			Name: "technologies", Domain: domain, Timeout: cfg.Tech.Timeout,
			Empty: findings.EmptyStrings, Count: count[string],
		}, func(ctx context.Context) ([]string, error) {
			return c.Tech.Detect(ctx, "https://"+domain)
		})
		out.Technologies = &r
		return nil
	})

	g.Go(func() error {
		r := stage.Run(ctx, d.runner, stage.Spec[findings.TLSReport]{
			Name: "tls", Domain: domain, Timeout: cfg.TLS.Timeout,
			Empty: findings.EmptyTLSReport,
		}, func(ctx context.Context) (findings.TLSReport, error) {
			return c.TLS.Audit(ctx, domain)
		})
		out.SSLAnalysis = &r
		return nil
	})

	g.Go(func() error {
		r := stage.Run(ctx, d.runner, stage.Spec[findings.Headers]{
			Name: "headers", Domain: domain, Timeout: cfg.Headers.Timeout,
			Empty: findings.EmptyHeaders, Count: headerCount,
		}, func(ctx context.Context) (findings.Headers, error) {
			return c.Headers.Audit(ctx, domain)
		})
		out.Headers = &r
		return nil
	})

	g.Go(func() error {
		r := stage.Run(ctx, d.runner, stage.Spec[[]findings.Breach]{
			Name: "breaches", Domain: domain, Timeout: cfg.Breach.Timeout,
			Empty: findings.EmptyBreaches, Count: count[findings.Breach],
		}, func(ctx context.Context) ([]findings.Breach, error) {
			return c.Breach.Lookup(ctx, domain)
		})
		out.Breaches = &r
		return nil
	})

	_ = g.Wait()
	return out
}

func count[T any](s []T) int { return len(s) }

func dnsCount(r findings.DNSRecords) int {
	n := 0
	for _, values := range r {
		n += len(values)
	}
	return n
}

// headerCount counts headers that were present.
func headerCount(h findings.Headers) int {
	n := 0
	for _, v := range h {
		if v != nil {
			n++
		}
	}
	return n
}

func livenessTimeout(cfg config.LivenessConfig, hosts int) time.Duration {
	budget := cfg.Budget(hosts)
	if budget == 0 {
		return 0
	}
	return budget + cfg.HostTimeout
}
