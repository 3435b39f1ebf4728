// Package detect implements one stateless detector per escalation path
// technique. Detectors are pure over the object graph and the run
// configuration: running the same detector twice against the same graph
// yields identical findings in identical order.
package detect

import (
	"context"

	"certmap/internal/config"
	"certmap/internal/domain"
	"certmap/internal/principal"
)

// Detector evaluates one technique over the full object graph.
type Detector func(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding

// Catalogue binds every detector to one run's configuration and classifier.
// The engine and the risk scorer's correlation step share a single catalogue.
type Catalogue struct {
	cfg        *config.Config
	classifier *principal.Classifier
}

// NewCatalogue builds the detector catalogue for one run.
func NewCatalogue(cfg *config.Config, classifier *principal.Classifier) *Catalogue {
	return &Catalogue{cfg: cfg, classifier: classifier}
}

// Detector returns the detector registered for a technique.
func (c *Catalogue) Detector(t domain.Technique) (Detector, bool) {
	switch t {
	case domain.TechniqueAuditingGap:
		return c.DetectAuditingGap, true
	case domain.TechniqueESC1:
		return c.DetectESC1, true
	case domain.TechniqueESC2:
		return c.DetectESC2, true
	case domain.TechniqueESC3C1:
		return c.DetectESC3Condition1, true
	case domain.TechniqueESC3C2:
		return c.DetectESC3Condition2, true
	case domain.TechniqueESC4:
		return c.DetectESC4, true
	case domain.TechniqueESC5:
		return c.DetectESC5, true
	case domain.TechniqueESC6:
		return c.DetectESC6, true
	case domain.TechniqueESC8:
		return c.DetectESC8, true
	case domain.TechniqueESC11:
		return c.DetectESC11, true
	case domain.TechniqueESC13:
		return c.DetectESC13, true
	case domain.TechniqueESC15:
		return c.DetectESC15, true
	}
	return nil, false
}

// Classifier exposes the run classifier for the scorer.
func (c *Catalogue) Classifier() *principal.Classifier {
	return c.classifier
}

// enrollmentRights are the rights that let a principal request a certificate
// from a template.
var enrollmentRights = []string{"ExtendedRight", "GenericAll"}

// enrollmentFindings emits one finding per (vulnerable template, enrollment
// ACE held by a non-safe principal). The template filter encodes the
// per-technique configuration predicate; rights restricts which ACE rights
// trigger (ESC13 uses ExtendedRight only).
func (c *Catalogue) enrollmentFindings(
	ctx context.Context,
	graph []domain.DirectoryObject,
	technique domain.Technique,
	rights []string,
	vulnerable func(t *domain.DirectoryObject) bool,
) []domain.Finding {
	var findings []domain.Finding
	for _, tmpl := range domain.FindTemplates(graph) {
		if !vulnerable(tmpl) {
			continue
		}
		for _, ace := range tmpl.AccessEntries {
			if ace.AccessControlType != domain.AccessAllow {
				continue
			}
			matched := matchRights(ace, rights)
			if len(matched) == 0 {
				continue
			}
			sid, err := c.classifier.Resolve(ctx, ace.IdentityReference)
			if err != nil {
				// Unresolvable principals cannot be proven safe; keep the
				// finding and let the scorer record the degraded lookup.
				sid = ""
			}
			if sid != "" && c.cfg.IsSafeUser(sid) {
				continue
			}
			f := domain.NewFinding(technique, tmpl)
			f.IdentityReference = ace.IdentityReference
			f.PrincipalSID = sid
			f.Rights = matched
			f.Issue, f.Fix, f.Revert, _ = domain.Render(technique, domain.KindACE, domain.NarrativeArgs{
				Principal:         ace.IdentityReference,
				Rights:            matched,
				Name:              tmpl.Name,
				DistinguishedName: tmpl.DistinguishedName,
			})
			findings = append(findings, f)
		}
	}
	return findings
}

// matchRights returns the ACE rights present in wanted, preserving ACE order.
func matchRights(ace domain.AccessControlEntry, wanted []string) []string {
	var matched []string
	for _, r := range ace.Rights {
		for _, w := range wanted {
			if r == w {
				matched = append(matched, r)
				break
			}
		}
	}
	return matched
}
