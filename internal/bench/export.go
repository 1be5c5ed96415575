package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Export is the serialized form of a completed (or partial) run.
type Export struct {
	ExportedAt time.Time         `json:"exported_at"`
	Scenarios  []Scenario        `json:"scenarios"`
	Results    map[string]Result `json:"results"`
	Aggregates Aggregates        `json:"aggregates"`
}

// Export writes the scenario list, full result map and recomputed
// aggregates as indented JSON.
func (r *Runner) Export(w io.Writer) error {
	r.mu.Lock()
	scenarios := make([]Scenario, len(r.scenarios))
	copy(scenarios, r.scenarios)
	results := make(map[string]Result, len(r.results))
	for k, v := range r.results {
		results[k] = v
	}
	r.mu.Unlock()

	exp := Export{
		ExportedAt: time.Now().UTC(),
		Scenarios:  scenarios,
		Results:    results,
		Aggregates: aggregate(results),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exp); err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	return nil
}

// ReadExport parses a previously exported run.
func ReadExport(rd io.Reader) (*Export, error) {
	var exp Export
	if err := json.NewDecoder(rd).Decode(&exp); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return &exp, nil
}
