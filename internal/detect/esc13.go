package detect

import (
	"context"

	"certmap/internal/domain"
)

// esc13Rights: ESC13 triggers on enrollment permission alone.
var esc13Rights = []string{"ExtendedRight"}

// DetectESC13 finds client authentication templates whose issuance policy
// OID resolves to an enterprise OID object carrying a group link; issued
// certificates then confer that group's privileges. Fires only when the
// OID-to-group link is populated.
func (c *Catalogue) DetectESC13(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	linked := linkedPolicyOIDs(graph)
	if len(linked) == 0 {
		return nil
	}
	return c.enrollmentFindings(ctx, graph, domain.TechniqueESC13, esc13Rights, func(t *domain.DirectoryObject) bool {
		if !t.HasClientAuthEKU() {
			return false
		}
		for _, p := range t.CertificatePolicy {
			if linked[p] {
				return true
			}
		}
		return false
	})
}

// linkedPolicyOIDs indexes the issuance policy OIDs whose enterprise OID
// object has a populated msDS-OIDToGroupLink.
func linkedPolicyOIDs(graph []domain.DirectoryObject) map[string]bool {
	linked := make(map[string]bool)
	for _, o := range domain.FindByClass(graph, domain.ClassEnterpriseOID) {
		if o.OID != "" && o.OIDGroupLink != "" {
			linked[o.OID] = true
		}
	}
	return linked
}
