package risk

import (
	"context"
	"fmt"
	"strings"

	"certmap/internal/domain"
)

// correlationCap bounds the total bonus any one finding can gain from
// correlated techniques.
const correlationCap = 2

// correlationMode selects which principal classes contribute to a bonus.
type correlationMode int

const (
	// modeFull: +2 per unsafe, admin-equivalent or managed-service-account
	// principal, +1 per plain group.
	modeFull correlationMode = iota
	// modeAmbient: +2 per unsafe principal, +1 per plain group. Used in the
	// reverse direction where a safe principal is not itself the risk.
	modeAmbient
)

// applyCorrelation adds the cross-technique bonus for the finding, if any.
//
// Forward: ESC2 and ESC3 condition 1 templates become authentication
// material when an ESC3 condition 2 or enabled ESC15 template coexists.
// Reverse: ESC3 condition 2 findings, and ESC15 findings on the default
// User/Machine templates, escalate when an ESC2 or ESC3 condition 1 template
// is enabled. Disabled template findings escalate when ESC5 control of an
// enrollment service proves an attacker could re-enable the template.
func (s *Scorer) applyCorrelation(ctx context.Context, f *domain.Finding, graph []domain.DirectoryObject, add func(int, string)) {
	switch f.Technique {
	case domain.TechniqueESC2, domain.TechniqueESC3C1:
		s.correlate(ctx, f, graph, add, correlation{
			techniques:  []domain.Technique{domain.TechniqueESC3C2, domain.TechniqueESC15},
			enabledOnly: true,
			mode:        modeFull,
		})
	case domain.TechniqueESC3C2:
		s.correlate(ctx, f, graph, add, correlation{
			techniques:  []domain.Technique{domain.TechniqueESC2, domain.TechniqueESC3C1},
			enabledOnly: true,
			mode:        modeAmbient,
		})
	case domain.TechniqueESC15:
		if f.Name == "User" || f.Name == "Machine" {
			s.correlate(ctx, f, graph, add, correlation{
				techniques:  []domain.Technique{domain.TechniqueESC2, domain.TechniqueESC3C1},
				enabledOnly: true,
				mode:        modeAmbient,
			})
		}
	}

	// A disabled template stays exploitable when its enrollment service can
	// be taken over and the template re-published.
	switch f.Technique {
	case domain.TechniqueESC1, domain.TechniqueESC2, domain.TechniqueESC3C1, domain.TechniqueESC3C2, domain.TechniqueESC4:
		if !f.Enabled {
			s.correlate(ctx, f, graph, add, correlation{
				techniques:   []domain.Technique{domain.TechniqueESC5},
				subjectClass: domain.ClassEnrollmentService,
				mode:         modeFull,
			})
		}
	}
}

type correlation struct {
	techniques   []domain.Technique
	enabledOnly  bool
	subjectClass domain.ObjectClass // restrict correlated findings to this subject class, if set
	mode         correlationMode
}

// correlate re-invokes the correlated detectors (memoized), accumulates
// per-principal contributions once per distinct subject name, and applies
// the capped total. Repeated ACEs for the same principal on the same
// template must not double-count.
func (s *Scorer) correlate(ctx context.Context, f *domain.Finding, graph []domain.DirectoryObject, add func(int, string), c correlation) {
	seen := make(map[string]map[string]bool) // subject name -> principal -> counted
	total := 0
	var detail []string

	for _, technique := range c.techniques {
		for _, other := range s.invoke(ctx, technique, graph) {
			if c.enabledOnly && !other.Enabled {
				continue
			}
			if c.subjectClass != "" && other.Subject.ObjectClass != c.subjectClass {
				continue
			}
			key := other.PrincipalSID
			if key == "" {
				key = other.IdentityReference
			}
			if seen[other.Name] == nil {
				seen[other.Name] = make(map[string]bool)
			}
			if seen[other.Name][key] {
				continue
			}
			seen[other.Name][key] = true

			n := s.contribution(ctx, other.PrincipalSID, c.mode)
			if n == 0 {
				continue
			}
			total += n
			detail = append(detail, fmt.Sprintf("%s on %q grants %q: +%d", technique, other.Name, other.IdentityReference, n))
		}
	}

	if total == 0 {
		return
	}
	if total > correlationCap {
		total = correlationCap
	}
	add(total, fmt.Sprintf("Correlated techniques also apply (%s)", strings.Join(detail, "; ")))
}

// contribution classifies one correlated principal. Unresolvable principals
// contribute nothing.
func (s *Scorer) contribution(ctx context.Context, sid string, mode correlationMode) int {
	cls, ok := s.classify(ctx, sid)
	if !ok {
		return 0
	}
	switch mode {
	case modeFull:
		if cls.IsUnsafe || cls.IsSafe || (cls.Resolved && cls.IsManagedServiceAccount()) {
			return 2
		}
	case modeAmbient:
		if cls.IsUnsafe {
			return 2
		}
	}
	if cls.Resolved && cls.IsGroup() {
		return 1
	}
	return 0
}

// invoke returns the memoized output of a detector for this run's graph.
func (s *Scorer) invoke(ctx context.Context, technique domain.Technique, graph []domain.DirectoryObject) []domain.Finding {
	s.mu.Lock()
	cached, ok := s.detectMemo[technique]
	s.mu.Unlock()
	if ok {
		return cached
	}

	detector, ok := s.catalogue.Detector(technique)
	if !ok {
		return nil
	}
	findings := detector(ctx, graph)

	s.mu.Lock()
	s.detectMemo[technique] = findings
	s.mu.Unlock()
	return findings
}
