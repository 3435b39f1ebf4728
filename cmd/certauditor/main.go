package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"certmap/internal/collector"
	"certmap/internal/config"
	"certmap/internal/domain"
	"certmap/internal/engine"
	"certmap/internal/logging"
	"certmap/internal/outputter"
	"certmap/internal/principal"
)

type options struct {
	forest         string
	ldapURL        string
	snapshot       string
	caState        string
	sets           string
	techniques     []string
	mode           string
	output         string
	scriptsDir     string
	probeEndpoints bool
	debug          bool
}

func main() {
	var opts options

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "certauditor",
		Short: "Cert Auditor - AD CS escalation path scanner",
		Long:  "Analyzes a certificate services deployment and reports known privilege escalation paths with risk scores and remediation guidance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCertAuditor(ctx, opts)
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&opts.forest, "forest", "", "Forest to audit (default: the bound forest)")
	rootCmd.Flags().StringVar(&opts.ldapURL, "ldap-url", "", "Directory URL, e.g. ldaps://dc01.corp.example.com (or LDAP_URL env var)")
	rootCmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "Audit an offline JSON snapshot instead of a live directory")
	rootCmd.Flags().StringVar(&opts.caState, "ca-state", "", "YAML file with per-CA registry flags and endpoints")
	rootCmd.Flags().StringVar(&opts.sets, "sets", "", "YAML file overriding the default safe/unsafe/dangerous sets")
	rootCmd.Flags().StringSliceVar(&opts.techniques, "techniques", nil, "Techniques to run (default: all)")
	rootCmd.Flags().StringVar(&opts.mode, "mode", "report", "report or remediate")
	rootCmd.Flags().StringVar(&opts.output, "output", "", "Write a JSON report to this path")
	rootCmd.Flags().StringVar(&opts.scriptsDir, "scripts-dir", "", "Write fix/revert scripts to this directory")
	rootCmd.Flags().BoolVar(&opts.probeEndpoints, "probe-endpoints", false, "Probe CA hosts for web enrollment endpoints (live runs only)")
	rootCmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging (verbose output)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCertAuditor(ctx context.Context, opts options) error {
	// Optional .env for directory credentials; production should use real
	// environment variables.
	_ = godotenv.Load()

	logging.SetLogLevel(logging.LogLevelWarn)
	if opts.debug {
		logging.SetLogLevel(logging.LogLevelDebug)
	}

	mode := config.ModeReport
	switch opts.mode {
	case "report":
	case "remediate":
		mode = config.ModeRemediate
	default:
		return fmt.Errorf("unknown mode %q (want report or remediate)", opts.mode)
	}

	// Fail fast on configuration before touching the directory.
	cfg, err := config.Load(opts.sets, mode)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		provider collector.Provider
		resolver principal.Resolver
		forest   = opts.forest
	)
	if opts.snapshot != "" {
		snap, err := collector.LoadSnapshot(opts.snapshot)
		if err != nil {
			return err
		}
		provider, resolver = snap, snap
		if forest == "" {
			forest = snap.Forest
		}
	} else {
		url := opts.ldapURL
		if url == "" {
			url = os.Getenv("LDAP_URL")
		}
		if url == "" {
			return fmt.Errorf("no directory configured: pass --ldap-url, set LDAP_URL, or use --snapshot")
		}
		conn, err := collector.Connect(url, os.Getenv("LDAP_USERNAME"), os.Getenv("LDAP_PASSWORD"))
		if err != nil {
			return err
		}
		defer conn.Close()
		provider, resolver = conn, conn
		if forest == "" {
			forest = conn.Forest()
		}
		fmt.Printf("🔑 Bound forest: %s\n", forest)
	}

	graph, err := provider.LoadPKIObjectGraph(ctx, forest)
	if err != nil {
		return fmt.Errorf("failed to load PKI object graph: %w", err)
	}
	logging.LogInfo("Graph loaded", map[string]interface{}{"forest": forest, "objects": len(graph)})

	if opts.caState != "" {
		states, err := collector.LoadCAState(opts.caState)
		if err != nil {
			return err
		}
		collector.ApplyCAState(graph, states)
	} else if opts.snapshot == "" && opts.probeEndpoints {
		probeCAEndpoints(ctx, graph)
	}

	techniques, err := parseTechniques(opts.techniques)
	if err != nil {
		return err
	}

	eng := engine.New(cfg, resolver)
	result, err := eng.Run(ctx, graph, techniques)
	if err != nil {
		return fmt.Errorf("engine run failed: %w", err)
	}

	outputter.DisplayFindings(result)
	logging.GetMetrics().Finalize()

	if opts.output != "" {
		if err := outputter.GenerateReport(result, forest, opts.output); err != nil {
			return err
		}
	}
	if opts.scriptsDir != "" {
		if err := outputter.WriteRemediationScripts(result.Findings, opts.scriptsDir); err != nil {
			return err
		}
	}
	return nil
}

func probeCAEndpoints(ctx context.Context, graph []domain.DirectoryObject) {
	for i := range graph {
		if graph[i].ObjectClass != domain.ClassEnrollmentService || graph[i].CAHostname == "" {
			continue
		}
		graph[i].EnrollmentEndpoints = collector.ProbeEnrollmentEndpoints(ctx, graph[i].CAHostname)
	}
}

func parseTechniques(names []string) ([]domain.Technique, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[string]domain.Technique, len(domain.AllTechniques))
	for _, t := range domain.AllTechniques {
		known[strings.ToLower(string(t))] = t
	}
	var out []domain.Technique
	for _, name := range names {
		t, ok := known[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown technique %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}
