// Package summary asks a text-generation service for a short risk narrative and a
// prioritised remediation list. Every failure degrades to an empty Summary.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/logger"
)

// Delimiter marks the start of the recommendations section in a response.
const Delimiter = "Recommendations:"

const promptTemplate = "You are a security analyst. Given the following findings from an attack surface scan, " +
	"provide a concise risk summary (1-2 sentences) and three prioritized remediation steps.\n\n" +
	"Findings: %s\n\nSummary and Recommendations:"

var (
	ErrDisabled         = errors.New("summary generation disabled: no API key configured")
	ErrNoChoices        = errors.New("no completion choices returned")
	ErrEmptyResponse    = errors.New("empty completion response")
	ErrMissingDelimiter = errors.New("response has no " + Delimiter + " section")
)

// Policy decides what a response without the delimiter becomes.
type Policy string

const (
	// PolicyNarrative keeps the whole response as the narrative with no recommendations.
	PolicyNarrative Policy = "narrative"
	// PolicyEmpty discards the response.
	PolicyEmpty Policy = "empty"
)

// Summary is the generated narrative and remediation list.
type Summary struct {
	Narrative       string   `json:"risk_summary" yaml:"risk_summary"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// Empty is the Summary used whenever generation is unavailable.
func Empty() Summary {
	return Summary{Recommendations: []string{}}
}

// Completer turns a prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Generator struct {
	completer Completer
	timeout   time.Duration
	policy    Policy
	logger    *logger.Logger
}

// NewGenerator wraps a completer. A nil completer yields a generator that always
// returns Empty.
func NewGenerator(c Completer, cfg config.SummaryConfig, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.NewNop()
	}
	policy := Policy(cfg.MissingDelimiter)
	if policy != PolicyEmpty {
		policy = PolicyNarrative
	}
	return &Generator{
		completer: c,
		timeout:   cfg.Timeout,
		policy:    policy,
		logger:    log.WithComponent("summary"),
	}
}

// Summarize never fails. Errors are logged at warning level and replaced by Empty.
func (g *Generator) Summarize(ctx context.Context, f findings.Findings) Summary {
	log := g.logger.WithDomain(f.Domain).WithContext(ctx)
	start := time.Now()

	s, err := g.summarize(ctx, f)
	if err != nil {
		log.Warnw("Summary unavailable",
			"error", err.Error(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return Empty()
	}

	log.Infow("Summary generated",
		"recommendations", len(s.Recommendations),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s
}

func (g *Generator) summarize(ctx context.Context, f findings.Findings) (Summary, error) {
	if g.completer == nil {
		return Summary{}, ErrDisabled
	}

	prompt, err := BuildPrompt(f)
	if err != nil {
		return Summary{}, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := g.complete(ctx, prompt)
	if err != nil {
		return Summary{}, err
	}
	return Parse(text, g.policy)
}

// complete returns as soon as ctx ends, even if the completer ignores it.
func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		var r reply
		defer func() {
			if rec := recover(); rec != nil {
				r = reply{err: fmt.Errorf("completer panicked: %v", rec)}
			}
			done <- r
		}()
		r.text, r.err = g.completer.Complete(ctx, prompt)
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("summary generation: %w", ctx.Err())
	}
}

// BuildPrompt embeds the JSON form of the findings in the analyst prompt.
func BuildPrompt(f findings.Findings) (string, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to encode findings: %w", err)
	}
	return fmt.Sprintf(promptTemplate, raw), nil
}

var (
	// A star only counts as a bullet when followed by whitespace, so **bold** survives.
	bulletMarker   = regexp.MustCompile(`^(?:[-•]+|\*\s)\s*`)
	numberedMarker = regexp.MustCompile(`^\d+[.)]\s*`)
)

// Parse splits a response on the first Delimiter. The text before it is the narrative;
// each non-empty line after it, minus its list marker, is one recommendation.
func Parse(response string, policy Policy) (Summary, error) {
	text := strings.TrimSpace(response)
	if text == "" {
		return Empty(), ErrEmptyResponse
	}

	idx := strings.Index(text, Delimiter)
	if idx < 0 {
		if policy == PolicyEmpty {
			return Empty(), ErrMissingDelimiter
		}
		return Summary{Narrative: text, Recommendations: []string{}}, nil
	}

	s := Summary{
		Narrative:       strings.TrimSpace(text[:idx]),
		Recommendations: []string{},
	}
	for _, line := range strings.Split(text[idx+len(Delimiter):], "\n") {
		if rec := stripMarker(line); rec != "" {
			s.Recommendations = append(s.Recommendations, rec)
		}
	}
	return s, nil
}

func stripMarker(line string) string {
	line = strings.TrimSpace(line)
	line = bulletMarker.ReplaceAllString(line, "")
	line = numberedMarker.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}
