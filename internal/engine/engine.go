// Package engine runs the detector catalogue over one immutable graph
// snapshot and scores every finding. One Engine value is one run scope.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"certmap/internal/config"
	"certmap/internal/detect"
	"certmap/internal/domain"
	"certmap/internal/logging"
	"certmap/internal/principal"
	"certmap/internal/risk"
)

// Hook customizes a finding after detection and before scoring. Used by the
// remediation mode to let the reporting layer adjust ESC1/ESC4 guidance.
type Hook func(f *domain.Finding)

// Result aggregates one engine run.
type Result struct {
	Findings    []domain.Finding
	ByTechnique map[domain.Technique][]domain.Finding
	// Failures holds per-technique detector failures; the run continues and
	// the remaining techniques still complete.
	Failures map[domain.Technique]error
}

// Engine orchestrates detection and scoring for one run.
type Engine struct {
	cfg       *config.Config
	catalogue *detect.Catalogue
	scorer    *risk.Scorer
	hook      Hook
}

// New builds an engine over one run configuration and identity resolver.
func New(cfg *config.Config, resolver principal.Resolver) *Engine {
	classifier := principal.NewClassifier(cfg, resolver)
	catalogue := detect.NewCatalogue(cfg, classifier)
	return &Engine{
		cfg:       cfg,
		catalogue: catalogue,
		scorer:    risk.NewScorer(cfg, catalogue),
	}
}

// SetCustomizationHook registers the pre-scoring customization hook. Only
// applied to ESC1 and ESC4 findings, and only in remediation mode.
func (e *Engine) SetCustomizationHook(h Hook) {
	e.hook = h
}

// Run executes the requested techniques (all of them when techniques is
// empty) against the graph. Detectors run in parallel; a panicking detector
// is isolated into Result.Failures rather than aborting the run. Output
// ordering is deterministic: report order across techniques, emission order
// within one.
func (e *Engine) Run(ctx context.Context, graph []domain.DirectoryObject, techniques []domain.Technique) (*Result, error) {
	if len(techniques) == 0 {
		techniques = domain.AllTechniques
	}
	for _, t := range techniques {
		if _, ok := e.catalogue.Detector(t); !ok {
			return nil, fmt.Errorf("unknown technique %q", t)
		}
	}

	result := &Result{
		ByTechnique: make(map[domain.Technique][]domain.Finding, len(techniques)),
		Failures:    make(map[domain.Technique]error),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, technique := range techniques {
		technique := technique
		detector, _ := e.catalogue.Detector(technique)
		g.Go(func() error {
			start := time.Now()
			findings, err := runDetector(gctx, technique, detector, graph)
			logging.GetMetrics().RecordTechnique(string(technique), time.Since(start), len(graph), len(findings), err)
			logging.LogTechniqueRun(string(technique), err == nil, len(graph), len(findings), err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures[technique] = err
				return nil
			}
			result.ByTechnique[technique] = findings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Score serially in report order so memo warm-up and traces are
	// reproducible run to run.
	for _, technique := range domain.AllTechniques {
		findings := result.ByTechnique[technique]
		for i := range findings {
			f := &findings[i]
			if e.hook != nil && e.cfg.Mode == config.ModeRemediate &&
				(f.Technique == domain.TechniqueESC1 || f.Technique == domain.TechniqueESC4) {
				e.hook(f)
			}
			e.scorer.Apply(ctx, f, graph)
		}
		result.Findings = append(result.Findings, findings...)
	}
	return result, nil
}

// runDetector isolates one detector invocation, converting a panic into an
// error for the partial-result report.
func runDetector(ctx context.Context, technique domain.Technique, detector detect.Detector, graph []domain.DirectoryObject) (findings []domain.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = fmt.Errorf("detector %s panicked: %v", technique, r)
		}
	}()
	return detector(ctx, graph), nil
}
