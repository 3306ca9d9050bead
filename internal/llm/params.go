package llm

import (
	"strings"

	"github.com/togpt/togpt/internal/preferences"
)

// MaxOutputTokens caps every tier.
const MaxOutputTokens = 800

// DefaultStopSequences ends generation at a run of blank lines.
var DefaultStopSequences = []string{"\n\n\n"}

// GenerationParams are the sampling settings sent with each request.
type GenerationParams struct {
	Temperature     float32
	TopK            int32
	TopP            float32
	MaxOutputTokens int32
	CandidateCount  int32
	StopSequences   []string
}

var speedTiers = map[string]GenerationParams{
	preferences.SpeedFast:     {Temperature: 0.7, TopK: 10, TopP: 0.8, MaxOutputTokens: 250},
	preferences.SpeedBalanced: {Temperature: 0.8, TopK: 20, TopP: 0.9, MaxOutputTokens: 500},
	preferences.SpeedThorough: {Temperature: 0.9, TopK: 40, TopP: 0.95, MaxOutputTokens: 800},
}

// ParamsFor returns the generation parameters for a response speed.
// Unknown speeds use the balanced tier.
func ParamsFor(speed string) GenerationParams {
	p, ok := speedTiers[speed]
	if !ok {
		p = speedTiers[preferences.SpeedBalanced]
	}
	p.MaxOutputTokens = min(p.MaxOutputTokens, MaxOutputTokens)
	p.CandidateCount = 1
	p.StopSequences = append([]string(nil), DefaultStopSequences...)
	return p
}

// applyStopSequences truncates text at the first stop sequence. Backends
// that cannot take stop sequences natively still honor them this way.
func applyStopSequences(text string, stops []string) string {
	cut := len(text)
	for _, s := range stops {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && i < cut {
			cut = i
		}
	}
	return text[:cut]
}
