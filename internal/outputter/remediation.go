package outputter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"certmap/internal/domain"
	"certmap/internal/logging"
)

// WriteRemediationScripts emits one fix script and one revert script from
// the findings' guidance text. Generation only: nothing here executes.
func WriteRemediationScripts(findings []domain.Finding, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create scripts directory: %w", err)
	}

	stamp := time.Now().Format("2006-01-02 15:04:05")
	fix := buildScript("Remediation", stamp, findings, func(f domain.Finding) string { return f.Fix })
	revert := buildScript("Revert", stamp, findings, func(f domain.Finding) string { return f.Revert })

	fixPath := filepath.Join(dir, "fix-escalation-paths.ps1")
	revertPath := filepath.Join(dir, "revert-escalation-paths.ps1")
	if err := os.WriteFile(fixPath, []byte(fix), 0o644); err != nil {
		return fmt.Errorf("failed to write fix script: %w", err)
	}
	if err := os.WriteFile(revertPath, []byte(revert), 0o644); err != nil {
		return fmt.Errorf("failed to write revert script: %w", err)
	}
	logging.LogInfo("Remediation scripts written", map[string]interface{}{
		"object": dir, "findings": len(findings),
	})
	return nil
}

func buildScript(kind, stamp string, findings []domain.Finding, text func(domain.Finding) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s script generated %s\n", kind, stamp)
	b.WriteString("# Review every step before running. Steps are independent; comment out any you do not want.\n")
	for _, f := range findings {
		body := text(f)
		if body == "" {
			continue
		}
		fmt.Fprintf(&b, "\n# [%s] %s (%s, risk %s)\n", f.Technique, f.Name, f.DistinguishedName, f.RiskName)
		fmt.Fprintf(&b, "# Issue: %s\n", f.Issue)
		fmt.Fprintf(&b, "%s\n", body)
	}
	return b.String()
}
