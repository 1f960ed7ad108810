package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/logger"
)

type fakeCompleter struct {
	text   string
	err    error
	delay  time.Duration
	prompt string
	calls  int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.text, f.err
}

func testFindings() findings.Findings {
	return findings.Findings{
		Domain:         "example.com",
		Subdomains:     []string{"www.example.com"},
		LiveSubdomains: []string{"www.example.com"},
		Technologies:   []string{"Nginx"},
	}
}

func testConfig() config.SummaryConfig {
	cfg := config.Default().Summary
	cfg.Timeout = time.Second
	return cfg
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		policy   Policy
		want     Summary
		wantErr  error
	}{
		{
			name:     "dash list keeps label",
			response: "Summary: Exposed admin panel.\n\nRecommendations:\n- Patch nginx\n- Enable HSTS\n- Close port 8080\n",
			policy:   PolicyNarrative,
			want: Summary{
				Narrative:       "Summary: Exposed admin panel.",
				Recommendations: []string{"Patch nginx", "Enable HSTS", "Close port 8080"},
			},
		},
		{
			name:     "numbered list",
			response: "Moderate exposure.\nRecommendations:\n1. Rotate credentials\n2) Add CSP\n\n3. Remove banner",
			policy:   PolicyNarrative,
			want: Summary{
				Narrative:       "Moderate exposure.",
				Recommendations: []string{"Rotate credentials", "Add CSP", "Remove banner"},
			},
		},
		{
			name:     "bullets and stars",
			response: "Low.\nRecommendations:\n* One\n• Two",
			policy:   PolicyNarrative,
			want:     Summary{Narrative: "Low.", Recommendations: []string{"One", "Two"}},
		},
		{
			name:     "bold text is not a bullet",
			response: "High.\nRecommendations:\n**Enable HSTS** on all hosts\n- **Rotate keys**\n* *Audit* logs",
			policy:   PolicyNarrative,
			want: Summary{Narrative: "High.", Recommendations: []string{
				"**Enable HSTS** on all hosts",
				"**Rotate keys**",
				"*Audit* logs",
			}},
		},
		{
			name:     "splits on first delimiter only",
			response: "Risky.\nRecommendations:\n- Follow Recommendations: from vendor",
			policy:   PolicyNarrative,
			want:     Summary{Narrative: "Risky.", Recommendations: []string{"Follow Recommendations: from vendor"}},
		},
		{
			name:     "delimiter with nothing after",
			response: "Fine.\nRecommendations:",
			policy:   PolicyNarrative,
			want:     Summary{Narrative: "Fine.", Recommendations: []string{}},
		},
		{
			name:     "missing delimiter keeps narrative",
			response: "  The domain exposes many services.  ",
			policy:   PolicyNarrative,
			want:     Summary{Narrative: "The domain exposes many services.", Recommendations: []string{}},
		},
		{
			name:     "missing delimiter under empty policy",
			response: "The domain exposes many services.",
			policy:   PolicyEmpty,
			want:     Empty(),
			wantErr:  ErrMissingDelimiter,
		},
		{
			name:     "blank response",
			response: " \n\t",
			policy:   PolicyNarrative,
			want:     Empty(),
			wantErr:  ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.response, tt.policy)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(testFindings())
	require.NoError(t, err)

	assert.Contains(t, prompt, "You are a security analyst.")
	assert.Contains(t, prompt, `"live_subdomains":["www.example.com"]`)
	assert.Contains(t, prompt, `"technologies":["Nginx"]`)
	assert.NotContains(t, prompt, "StageStatus")
	assert.True(t, len(prompt) > len(Delimiter))
	assert.Contains(t, prompt, "Summary and Recommendations:")
}

func TestSummarize(t *testing.T) {
	c := &fakeCompleter{text: "High exposure.\nRecommendations:\n- Close ports"}
	g := NewGenerator(c, testConfig(), logger.NewNop())

	got := g.Summarize(context.Background(), testFindings())

	assert.Equal(t, "High exposure.", got.Narrative)
	assert.Equal(t, []string{"Close ports"}, got.Recommendations)
	assert.Equal(t, 1, c.calls)
	assert.Contains(t, c.prompt, "example.com")
}

func TestSummarizeDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name      string
		completer Completer
		cfg       func(*config.SummaryConfig)
	}{
		{name: "disabled", completer: nil},
		{name: "completer error", completer: &fakeCompleter{err: errors.New("quota exceeded")}},
		{name: "no choices", completer: &fakeCompleter{err: ErrNoChoices}},
		{name: "empty text", completer: &fakeCompleter{text: ""}},
		{
			name:      "timeout",
			completer: &fakeCompleter{text: "late\nRecommendations:\n- x", delay: 200 * time.Millisecond},
			cfg:       func(c *config.SummaryConfig) { c.Timeout = 20 * time.Millisecond },
		},
		{
			name:      "missing delimiter with empty policy",
			completer: &fakeCompleter{text: "just prose"},
			cfg:       func(c *config.SummaryConfig) { c.MissingDelimiter = string(PolicyEmpty) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			g := NewGenerator(tt.completer, cfg, nil)

			got := g.Summarize(context.Background(), testFindings())

			assert.Equal(t, Empty(), got)
			assert.NotNil(t, got.Recommendations)
		})
	}
}

func TestSummarizeHonoursParentCancellation(t *testing.T) {
	c := &fakeCompleter{text: "x\nRecommendations:\n- y", delay: 200 * time.Millisecond}
	g := NewGenerator(c, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	got := g.Summarize(ctx, testFindings())

	assert.Equal(t, Empty(), got)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}
