package detect

import (
	"context"

	"certmap/internal/domain"
)

// DetectESC1 finds enabled-for-abuse client authentication templates where
// the enrollee supplies the subject name and issuance needs no approval.
func (c *Catalogue) DetectESC1(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	return c.enrollmentFindings(ctx, graph, domain.TechniqueESC1, enrollmentRights, func(t *domain.DirectoryObject) bool {
		return t.HasClientAuthEKU() &&
			t.EnrolleeSuppliesSubject() &&
			!t.RequiresManagerApproval() &&
			t.RASignatureCount == 0
	})
}

// DetectESC2 finds templates usable for any purpose: an empty EKU set or the
// Any Purpose EKU, with no manager approval and no RA signatures.
func (c *Catalogue) DetectESC2(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	return c.enrollmentFindings(ctx, graph, domain.TechniqueESC2, enrollmentRights, func(t *domain.DirectoryObject) bool {
		return (len(t.EKUs) == 0 || t.HasEKU(domain.OIDAnyPurpose)) &&
			!t.RequiresManagerApproval() &&
			t.RASignatureCount == 0
	})
}

// DetectESC3Condition1 finds enrollment agent templates a non-safe principal
// can enroll in directly.
func (c *Catalogue) DetectESC3Condition1(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	return c.enrollmentFindings(ctx, graph, domain.TechniqueESC3C1, enrollmentRights, func(t *domain.DirectoryObject) bool {
		return t.HasEKU(domain.OIDEnrollmentAgent) &&
			!t.RequiresManagerApproval() &&
			t.RASignatureCount == 0
	})
}

// DetectESC3Condition2 finds client authentication templates that accept an
// enrollment agent co-signature, the second half of the ESC3 chain.
func (c *Catalogue) DetectESC3Condition2(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	return c.enrollmentFindings(ctx, graph, domain.TechniqueESC3C2, enrollmentRights, func(t *domain.DirectoryObject) bool {
		return t.HasClientAuthEKU() &&
			!t.RequiresManagerApproval() &&
			t.HasRAApplicationPolicy(domain.OIDEnrollmentAgent) &&
			t.RASignatureCount == 1
	})
}

// DetectESC15 finds enabled schema version 1 templates, which accept
// requester-supplied application policies on unpatched CAs.
func (c *Catalogue) DetectESC15(ctx context.Context, graph []domain.DirectoryObject) []domain.Finding {
	return c.enrollmentFindings(ctx, graph, domain.TechniqueESC15, enrollmentRights, func(t *domain.DirectoryObject) bool {
		return t.SchemaVersion == 1 && t.Enabled
	})
}
