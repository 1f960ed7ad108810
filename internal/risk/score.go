// Package risk maps a findings record to a bounded integer risk score.
package risk

import "github.com/yajur-khanna/asm-tool/internal/findings"

// Ceilings applied to each count before weighting.
const (
	MaxLiveSubdomains = 50
	MaxOpenPorts      = 100
	MaxTechnologies   = 20
	MaxBreaches       = 10
)

// Weights in hundredths: 0.20, 0.30, 0.25, 0.25. Keeping them integral makes the
// truncation below exact.
const (
	weightLive     = 20
	weightPorts    = 30
	weightTech     = 25
	weightBreaches = 25

	// maxWeighted is 47.5 expressed in hundredths.
	maxWeighted = weightLive*MaxLiveSubdomains +
		weightPorts*MaxOpenPorts +
		weightTech*MaxTechnologies +
		weightBreaches*MaxBreaches
)

// Counts are the four inputs of the score.
type Counts struct {
	LiveSubdomains int `json:"live_subdomains"`
	OpenPorts      int `json:"open_ports"`
	Technologies   int `json:"technologies"`
	Breaches       int `json:"breaches"`
}

// CountsOf extracts the score inputs from a findings record.
func CountsOf(f findings.Findings) Counts {
	return Counts{
		LiveSubdomains: len(f.LiveSubdomains),
		OpenPorts:      len(f.OpenPorts),
		Technologies:   len(f.Technologies),
		Breaches:       len(f.Breaches),
	}
}

// Capped returns the counts clipped to their ceilings. Negative counts become zero.
func (c Counts) Capped() Counts {
	return Counts{
		LiveSubdomains: clamp(c.LiveSubdomains, 0, MaxLiveSubdomains),
		OpenPorts:      clamp(c.OpenPorts, 0, MaxOpenPorts),
		Technologies:   clamp(c.Technologies, 0, MaxTechnologies),
		Breaches:       clamp(c.Breaches, 0, MaxBreaches),
	}
}

// Score returns the risk score of a findings record, in [0,100].
func Score(f findings.Findings) int {
	return FromCounts(CountsOf(f))
}

// FromCounts computes floor(weighted/47.5*100) over capped counts, clamped to [0,100].
func FromCounts(c Counts) int {
	capped := c.Capped()
	weighted := weightLive*capped.LiveSubdomains +
		weightPorts*capped.OpenPorts +
		weightTech*capped.Technologies +
		weightBreaches*capped.Breaches

	return clamp(weighted*100/maxWeighted, 0, 100)
}

// Breakdown describes how a score was reached. Used for debug logging.
type Breakdown struct {
	Counts  Counts             `json:"counts"`
	Capped  Counts             `json:"capped"`
	Weights map[string]float64 `json:"weighted"`
	Score   int                `json:"score"`
}

func Explain(f findings.Findings) Breakdown {
	counts := CountsOf(f)
	capped := counts.Capped()
	return Breakdown{
		Counts: counts,
		Capped: capped,
		Weights: map[string]float64{
			"live_subdomains": float64(weightLive*capped.LiveSubdomains) / 100,
			"open_ports":      float64(weightPorts*capped.OpenPorts) / 100,
			"technologies":    float64(weightTech*capped.Technologies) / 100,
			"breaches":        float64(weightBreaches*capped.Breaches) / 100,
		},
		Score: FromCounts(counts),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
