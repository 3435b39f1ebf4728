// Package risk scores findings. The scorer re-enters the detector catalogue
// read-only to answer whether a correlated technique also applies, with the
// correlated detector output memoized per technique within one run.
package risk

import (
	"context"
	"fmt"
	"sync"

	"certmap/internal/config"
	"certmap/internal/detect"
	"certmap/internal/domain"
	"certmap/internal/principal"
)

// Scorer computes the risk value, categorical name and scoring trace for one
// finding. A Scorer is scoped to a single engine run; the memo tables are
// never reused across graphs.
type Scorer struct {
	cfg       *config.Config
	catalogue *detect.Catalogue

	mu         sync.Mutex
	detectMemo map[domain.Technique][]domain.Finding
	classMemo  map[string]principal.Classification
}

// NewScorer builds a scorer over one run's catalogue and configuration.
func NewScorer(cfg *config.Config, catalogue *detect.Catalogue) *Scorer {
	return &Scorer{
		cfg:        cfg,
		catalogue:  catalogue,
		detectMemo: make(map[domain.Technique][]domain.Finding),
		classMemo:  make(map[string]principal.Classification),
	}
}

// Severity buckets a risk value into its categorical name.
func Severity(value int) domain.RiskName {
	switch {
	case value <= 1:
		return domain.RiskInformational
	case value == 2:
		return domain.RiskLow
	case value == 3:
		return domain.RiskMedium
	case value == 4:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// caLevel techniques are scored from CA state, not from a principal.
func caLevel(t domain.Technique) bool {
	switch t {
	case domain.TechniqueAuditingGap, domain.TechniqueESC6, domain.TechniqueESC8, domain.TechniqueESC11:
		return true
	}
	return false
}

// Apply scores the finding and writes RiskValue, RiskName and RiskScoring in
// place. This is the only place those fields are ever set.
func (s *Scorer) Apply(ctx context.Context, f *domain.Finding, graph []domain.DirectoryObject) {
	value, name, trace := s.Score(ctx, f, graph)
	f.RiskValue = value
	f.RiskName = name
	f.RiskScoring = trace
}

// Score computes the risk contributions for one finding in documented
// evaluation order, appending every contribution to the returned trace.
func (s *Scorer) Score(ctx context.Context, f *domain.Finding, graph []domain.DirectoryObject) (int, domain.RiskName, []string) {
	var value int
	var trace []string
	add := func(delta int, label string) {
		value += delta
		trace = append(trace, fmt.Sprintf("%s: %+d", label, delta))
	}

	if caLevel(f.Technique) {
		add(3, "CA configuration weakness")
		// ESC8 findings score the endpoint they describe; the other CA
		// techniques escalate when the CA exposes any cleartext endpoint.
		cleartext := hasHTTPEndpoint(f.Subject)
		if f.Technique == domain.TechniqueESC8 {
			cleartext = domain.EnrollmentEndpoint{URL: f.Endpoint}.IsHTTP()
		}
		if cleartext {
			add(2, "Cleartext HTTP enrollment endpoint")
		}
		return value, Severity(value), trace
	}

	// Template enabled state. ESC5 subjects are not templates and carry no
	// enabled state.
	if f.Technique != domain.TechniqueESC5 {
		if f.Enabled {
			add(1, "Template enabled")
		} else {
			add(-2, "Template disabled")
		}
	}

	if f.Technique == domain.TechniqueESC1 || f.Technique == domain.TechniqueESC4 {
		add(1, "Immediately exploitable technique")
	}

	cls, resolved := s.classify(ctx, f.PrincipalSID)
	switch {
	case !resolved:
		trace = append(trace, fmt.Sprintf("Principal %q could not be resolved, treated as neutral: +0", f.IdentityReference))
	case cls.IsUnsafe:
		add(2, fmt.Sprintf("Large or ambient principal %s", f.PrincipalSID))
	case cls.Resolved && cls.IsGroup():
		add(1, fmt.Sprintf("Group principal %s", f.PrincipalSID))
	case !cls.Resolved:
		trace = append(trace, fmt.Sprintf("Object class of %s unavailable, no group contribution: +0", f.PrincipalSID))
	}

	// ESC3 condition 2: the enrollment agent co-signature makes the identity
	// being authenticated as part of the risk.
	if f.Technique == domain.TechniqueESC3C2 && resolved {
		switch {
		case cls.IsSafe:
			add(2, "Admin-equivalent principal can be impersonated")
		case cls.Resolved && cls.IsManagedServiceAccount():
			add(1, "Managed service account principal")
		default:
			add(1, "Standard principal")
		}
	}

	s.applyCorrelation(ctx, f, graph, add)

	if f.Technique == domain.TechniqueESC5 {
		s.applyObjectClassBonus(f, add)
	}

	return value, Severity(value), trace
}

// applyObjectClassBonus weights ESC5 findings by what the controlled object
// is worth to an attacker.
func (s *Scorer) applyObjectClassBonus(f *domain.Finding, add func(int, string)) {
	switch {
	case f.Subject.ObjectClass == domain.ClassCertAuthority && f.Subject.Name == "NTAuthCertificates":
		add(2, "NTAuthCertificates object")
	case f.Subject.ObjectClass == domain.ClassCertAuthority,
		f.Subject.ObjectClass == domain.ClassEnrollmentService,
		f.Subject.ObjectClass == domain.ClassCAHostComputer:
		add(2, "Certification authority object")
	case f.Subject.ObjectClass == domain.ClassEnterpriseOID:
		add(1, "Enterprise OID object")
	case f.Subject.ObjectClass == domain.ClassContainer:
		add(1, "PKI container object")
	}
}

// classify wraps the run classifier with a per-run cache. The second return
// is false when there is no SID to classify.
func (s *Scorer) classify(ctx context.Context, sid string) (principal.Classification, bool) {
	if sid == "" {
		return principal.Classification{}, false
	}
	s.mu.Lock()
	cached, ok := s.classMemo[sid]
	s.mu.Unlock()
	if ok {
		return cached, true
	}
	cls := s.catalogue.Classifier().Classify(ctx, sid)
	s.mu.Lock()
	s.classMemo[sid] = cls
	s.mu.Unlock()
	return cls, true
}

func hasHTTPEndpoint(obj *domain.DirectoryObject) bool {
	for _, ep := range obj.EnrollmentEndpoints {
		if ep.IsHTTP() {
			return true
		}
	}
	return false
}
