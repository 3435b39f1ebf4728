package detect

import (
	"context"

	"certmap/internal/domain"
)

// DetectAuditingGap finds CAs that do not audit all seven event categories.
// CAs with no audit enrichment are skipped rather than guessed at.
func (c *Catalogue) DetectAuditingGap(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	var findings []domain.Finding
	for _, ca := range domain.FindByClass(graph, domain.ClassEnrollmentService) {
		if ca.AuditFilter == nil || *ca.AuditFilter == domain.FullAuditFilter {
			continue
		}
		f := domain.NewFinding(domain.TechniqueAuditingGap, ca)
		f.Issue, f.Fix, f.Revert, _ = domain.Render(domain.TechniqueAuditingGap, domain.KindCA, domain.NarrativeArgs{
			CAFullName:  ca.CAFullName(),
			AuditFilter: *ca.AuditFilter,
		})
		findings = append(findings, f)
	}
	return findings
}

// DetectESC6 finds CAs with the EDITF_ATTRIBUTESUBJECTALTNAME2 flag set,
// which honors requester-supplied SANs on every template.
func (c *Catalogue) DetectESC6(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	var findings []domain.Finding
	for _, ca := range domain.FindByClass(graph, domain.ClassEnrollmentService) {
		if ca.SANFlag == nil || *ca.SANFlag == "No" {
			continue
		}
		f := domain.NewFinding(domain.TechniqueESC6, ca)
		f.Issue, f.Fix, f.Revert, _ = domain.Render(domain.TechniqueESC6, domain.KindCA, domain.NarrativeArgs{
			CAFullName: ca.CAFullName(),
		})
		findings = append(findings, f)
	}
	return findings
}

// DetectESC8 finds web enrollment endpoints, one finding per endpoint. HTTPS
// endpoints stay findings with downgraded narrative text.
func (c *Catalogue) DetectESC8(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	var findings []domain.Finding
	for i := range graph {
		obj := &graph[i]
		for _, ep := range obj.EnrollmentEndpoints {
			f := domain.NewFinding(domain.TechniqueESC8, obj)
			f.Endpoint = ep.URL
			f.Issue, f.Fix, f.Revert, _ = domain.Render(domain.TechniqueESC8, domain.KindEndpoint, domain.NarrativeArgs{
				CAFullName:  obj.CAFullName(),
				EndpointURL: ep.URL,
			})
			findings = append(findings, f)
		}
	}
	return findings
}

// DetectESC11 finds CAs that accept unencrypted RPC enrollment requests
// (IF_ENFORCEENCRYPTICERTREQUEST not enforced).
func (c *Catalogue) DetectESC11(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	var findings []domain.Finding
	for _, ca := range domain.FindByClass(graph, domain.ClassEnrollmentService) {
		if ca.InterfaceFlag == nil || *ca.InterfaceFlag == "Yes" {
			continue
		}
		f := domain.NewFinding(domain.TechniqueESC11, ca)
		f.Issue, f.Fix, f.Revert, _ = domain.Render(domain.TechniqueESC11, domain.KindCA, domain.NarrativeArgs{
			CAFullName: ca.CAFullName(),
		})
		findings = append(findings, f)
	}
	return findings
}
