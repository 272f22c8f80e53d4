// Package findings models accessibility audit findings and turns them into
// a remediation goal for the agent.
package findings

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Severity ranks the user impact of a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeveritySerious  Severity = "serious"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeveritySerious:  1,
	SeverityModerate: 2,
	SeverityMinor:    3,
}

// Finding is one accessibility problem reported by an audit.
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity,omitempty"`
	WCAG     string   `json:"wcag,omitempty"` // success criterion, e.g. "1.1.1"
	Path     string   `json:"path"`
	Selector string   `json:"selector,omitempty"`
	Snippet  string   `json:"snippet,omitempty"`
	Message  string   `json:"message"`
}

// Load decodes a JSON array of findings and classifies any finding whose
// severity or WCAG criterion the audit left blank.
func Load(r io.Reader) ([]Finding, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var items []Finding
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding findings: %w", err)
	}
	for i := range items {
		if items[i].RuleID == "" {
			return nil, fmt.Errorf("finding %d: rule_id is required", i)
		}
		if items[i].Path == "" {
			return nil, fmt.Errorf("finding %d (%s): path is required", i, items[i].RuleID)
		}
		Classify(&items[i])
	}
	return items, nil
}

// LoadFile loads findings from a JSON file.
func LoadFile(path string) ([]Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening findings file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// SortBySeverity orders findings most severe first, then by path for a
// stable reading order.
func SortBySeverity(items []Finding) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := severityRank[items[i].Severity], severityRank[items[j].Severity]
		if ri != rj {
			return ri < rj
		}
		return items[i].Path < items[j].Path
	})
}

// ComposeGoal renders findings as the remediation goal handed to the agent,
// grouped by file, most severe first.
func ComposeGoal(items []Finding) string {
	if len(items) == 0 {
		return "No accessibility findings were reported. Verify the project and call complete."
	}

	sorted := make([]Finding, len(items))
	copy(sorted, items)
	SortBySeverity(sorted)

	byPath := make(map[string][]Finding)
	var order []string
	for _, f := range sorted {
		if _, seen := byPath[f.Path]; !seen {
			order = append(order, f.Path)
		}
		byPath[f.Path] = append(byPath[f.Path], f)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Fix the following %d accessibility finding(s) in the workspace.\n", len(items))
	sb.WriteString("Address every finding with the smallest possible edit, then call complete.\n")
	for _, path := range order {
		fmt.Fprintf(&sb, "\n## %s\n", path)
		for _, f := range byPath[path] {
			fmt.Fprintf(&sb, "- [%s] %s: %s", f.Severity, f.RuleID, f.Message)
			if f.WCAG != "" {
				fmt.Fprintf(&sb, " (WCAG %s)", f.WCAG)
			}
			sb.WriteString("\n")
			if f.Selector != "" {
				fmt.Fprintf(&sb, "  selector: %s\n", f.Selector)
			}
			if f.Snippet != "" {
				fmt.Fprintf(&sb, "  snippet: %s\n", f.Snippet)
			}
		}
	}
	return sb.String()
}

// CountBySeverity tallies findings per severity.
func CountBySeverity(items []Finding) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range items {
		counts[f.Severity]++
	}
	return counts
}
