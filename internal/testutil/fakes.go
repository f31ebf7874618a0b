package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

// Generator is a scripted ai.Generator. Responses are returned in order; the
// last one repeats once the script is exhausted.
type Generator struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Prompts   []string
}

func (g *Generator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Prompts = append(g.Prompts, prompt)
	if g.Err != nil {
		return "", g.Err
	}
	if len(g.Responses) == 0 {
		return "", nil
	}
	i := len(g.Prompts) - 1
	if i >= len(g.Responses) {
		i = len(g.Responses) - 1
	}
	return g.Responses[i], nil
}

// Calls returns how many prompts were sent.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Prompts)
}

// Source builds an enabled SourceConfig whose payload is the JSON of payload.
func Source(name string, kind model.SourceKind, payload any) model.SourceConfig {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return model.SourceConfig{Name: name, Kind: kind, Enabled: true, Payload: raw}
}

// Partials builds n distinct candidates named "<prefix> <i>".
func Partials(prefix string, n int) []model.PartialRecord {
	out := make([]model.PartialRecord, n)
	for i := range out {
		out[i] = model.PartialRecord{
			Name:         prefix + " Scholarship " + string(rune('A'+i)),
			Organization: prefix + " Foundation",
			Deadline:     "2027-03-01",
			Amount:       "$1,000",
		}
	}
	return out
}
