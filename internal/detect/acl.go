package detect

import (
	"context"

	"certmap/internal/domain"
)

// DetectESC4 finds certificate templates whose owner or DACL hands control
// to a non-safe principal, letting them reconfigure the template into an
// ESC1 condition.
func (c *Catalogue) DetectESC4(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	var findings []domain.Finding
	for _, tmpl := range domain.FindTemplates(graph) {
		findings = append(findings, c.controlFindings(ctx, domain.TechniqueESC4, tmpl)...)
	}
	return findings
}

// DetectESC5 runs the same control checks as ESC4 against every non-template
// PKI object: CA host computers, containers, OID objects, CA and
// NTAuthCertificates objects.
func (c *Catalogue) DetectESC5(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	var findings []domain.Finding
	for i := range graph {
		obj := &graph[i]
		if obj.IsTemplate() {
			continue
		}
		findings = append(findings, c.controlFindings(ctx, domain.TechniqueESC5, obj)...)
	}
	return findings
}

// controlFindings emits the owner finding and the dangerous-ACE findings for
// one object. An owner that cannot be resolved to a classifiable principal
// skips the owner check rather than raising.
func (c *Catalogue) controlFindings(ctx context.Context, technique domain.Technique, obj *domain.DirectoryObject) []domain.Finding {
	var findings []domain.Finding

	if obj.Owner != "" {
		ownerSID, err := c.classifier.Resolve(ctx, obj.Owner)
		if err == nil && !c.cfg.IsSafeOwner(ownerSID) {
			f := domain.NewFinding(technique, obj)
			f.IdentityReference = obj.Owner
			f.PrincipalSID = ownerSID
			f.Rights = []string{"Owner"}
			f.Issue, f.Fix, f.Revert, _ = domain.Render(technique, domain.KindOwner, domain.NarrativeArgs{
				Owner:             obj.Owner,
				Name:              obj.Name,
				DistinguishedName: obj.DistinguishedName,
			})
			findings = append(findings, f)
		}
	}

	for _, ace := range obj.AccessEntries {
		if ace.AccessControlType != domain.AccessAllow {
			continue
		}
		if c.cfg.IsSafeObjectType(ace.ObjectType) {
			continue
		}
		matched := c.matchDangerousRights(ace)
		if len(matched) == 0 {
			continue
		}
		sid, err := c.classifier.Resolve(ctx, ace.IdentityReference)
		if err != nil {
			sid = ""
		}
		if sid != "" && c.cfg.IsSafeUser(sid) {
			continue
		}
		f := domain.NewFinding(technique, obj)
		f.IdentityReference = ace.IdentityReference
		f.PrincipalSID = sid
		f.Rights = matched
		f.Issue, f.Fix, f.Revert, _ = domain.Render(technique, domain.KindACE, domain.NarrativeArgs{
			Principal:         ace.IdentityReference,
			Rights:            matched,
			Name:              obj.Name,
			DistinguishedName: obj.DistinguishedName,
		})
		findings = append(findings, f)
	}
	return findings
}

// matchDangerousRights returns the ACE rights matching the configured
// dangerous rights set, preserving ACE order.
func (c *Catalogue) matchDangerousRights(ace domain.AccessControlEntry) []string {
	var matched []string
	for _, r := range ace.Rights {
		if c.cfg.IsDangerousRight(r) {
			matched = append(matched, r)
		}
	}
	return matched
}
