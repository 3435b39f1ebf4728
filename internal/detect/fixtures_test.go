package detect

import (
	"testing"

	"certmap/internal/config"
	"certmap/internal/domain"
	"certmap/internal/mocks"
	"certmap/internal/principal"
)

const (
	sidDomainAdmins = "S-1-5-21-1111111111-2222222222-3333333333-512"
	sidAuthUsers    = "S-1-5-11"
	sidHelpdesk     = "S-1-5-21-1111111111-2222222222-3333333333-1104"
	sidUser         = "S-1-5-21-1111111111-2222222222-3333333333-1105"
)

func newTestCatalogue(t *testing.T) *Catalogue {
	t.Helper()
	cfg, err := config.Load("", config.ModeReport)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	resolver := &mocks.Resolver{
		Classes: map[string]string{
			sidDomainAdmins: "group",
			sidAuthUsers:    "group",
			sidHelpdesk:     "group",
			sidUser:         "user",
		},
	}
	return NewCatalogue(cfg, principal.NewClassifier(cfg, resolver))
}

func allowACE(sid string, rights ...string) domain.AccessControlEntry {
	return domain.AccessControlEntry{
		IdentityReference: sid,
		Rights:            rights,
		AccessControlType: domain.AccessAllow,
	}
}

// vulnerableESC1Template is the canonical ESC1 shape: client auth EKU,
// enrollee supplies subject, no approval, no RA signatures.
func vulnerableESC1Template(name string, aces ...domain.AccessControlEntry) domain.DirectoryObject {
	return domain.DirectoryObject{
		Forest:              "corp.example.com",
		Name:                name,
		DistinguishedName:   "CN=" + name + ",CN=Certificate Templates,CN=Public Key Services,CN=Services,CN=Configuration,DC=corp,DC=example,DC=com",
		ObjectClass:         domain.ClassCertificateTemplate,
		EKUs:                []string{domain.OIDClientAuthentication},
		CertificateNameFlag: domain.FlagEnrolleeSuppliesSubject,
		SchemaVersion:       2,
		Enabled:             true,
		EnabledOn:           []string{"CORP-CA01"},
		AccessEntries:       aces,
	}
}

func enrollmentService(name, hostname string, aces ...domain.AccessControlEntry) domain.DirectoryObject {
	return domain.DirectoryObject{
		Forest:            "corp.example.com",
		Name:              name,
		DistinguishedName: "CN=" + name + ",CN=Enrollment Services,CN=Public Key Services,CN=Services,CN=Configuration,DC=corp,DC=example,DC=com",
		ObjectClass:       domain.ClassEnrollmentService,
		CAHostname:        hostname,
		AccessEntries:     aces,
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
