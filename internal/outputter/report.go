package outputter

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"certmap/internal/domain"
	"certmap/internal/engine"
	"certmap/internal/logging"
)

// SeverityIcon maps a risk name to its console marker.
func SeverityIcon(name domain.RiskName) string {
	switch name {
	case domain.RiskCritical:
		return "🟥"
	case domain.RiskHigh:
		return "🟧"
	case domain.RiskMedium:
		return "🟨"
	case domain.RiskLow:
		return "🟦"
	default:
		return "⬜"
	}
}

// DisplayFindings renders the run grouped per technique, highest risk first
// within each group.
func DisplayFindings(result *engine.Result) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("  ESCALATION PATH FINDINGS")
	fmt.Println("═══════════════════════════════════════════════════════════")

	total := 0
	for _, technique := range domain.AllTechniques {
		findings := result.ByTechnique[technique]
		if len(findings) == 0 {
			continue
		}
		total += len(findings)
		fmt.Printf("\n▶ %s: %d finding(s)\n", technique, len(findings))
		for _, f := range findings {
			fmt.Printf("  %s [%s:%d] %s\n", SeverityIcon(f.RiskName), f.RiskName, f.RiskValue, f.Name)
			fmt.Printf("     Issue: %s\n", f.Issue)
			if len(f.EnabledOn) > 0 {
				fmt.Printf("     Enabled on: %s\n", strings.Join(f.EnabledOn, ", "))
			}
			for _, line := range f.RiskScoring {
				fmt.Printf("       · %s\n", line)
			}
		}
	}

	if total == 0 {
		fmt.Println("\n✅ No escalation paths detected.")
	}

	for technique, err := range result.Failures {
		fmt.Printf("\n⚠️  %s did not complete: %v\n", technique, err)
	}
	fmt.Println()
	displaySummary(result)
}

func displaySummary(result *engine.Result) {
	counts := make(map[domain.RiskName]int)
	for _, f := range result.Findings {
		counts[f.RiskName]++
	}
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Summary: %d finding(s)", len(result.Findings))
	for _, name := range []domain.RiskName{domain.RiskCritical, domain.RiskHigh, domain.RiskMedium, domain.RiskLow, domain.RiskInformational} {
		if counts[name] > 0 {
			fmt.Printf("  %s %d %s", SeverityIcon(name), counts[name], name)
		}
	}
	fmt.Println()
	fmt.Println("───────────────────────────────────────────────────────────")
}

// report is the JSON report envelope.
type report struct {
	Forest      string                      `json:"forest,omitempty"`
	Findings    []domain.Finding            `json:"findings"`
	Failures    map[domain.Technique]string `json:"failures,omitempty"`
	Counts      map[domain.RiskName]int     `json:"counts"`
	Metrics     *logging.Metrics            `json:"metrics,omitempty"`
	ByTechnique map[domain.Technique]int    `json:"by_technique"`
}

// GenerateReport writes the machine-readable run report.
func GenerateReport(result *engine.Result, forest, path string) error {
	r := report{
		Forest:      forest,
		Findings:    result.Findings,
		Counts:      make(map[domain.RiskName]int),
		ByTechnique: make(map[domain.Technique]int),
		Metrics:     logging.GetMetrics(),
	}
	for _, f := range result.Findings {
		r.Counts[f.RiskName]++
		r.ByTechnique[f.Technique]++
	}
	if len(result.Failures) > 0 {
		r.Failures = make(map[domain.Technique]string, len(result.Failures))
		for t, err := range result.Failures {
			r.Failures[t] = err.Error()
		}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logging.LogInfo("Report written", map[string]interface{}{"object": path, "findings": len(result.Findings)})
	return nil
}
