package risk

import (
	"testing"

	"certmap/internal/config"
	"certmap/internal/detect"
	"certmap/internal/domain"
	"certmap/internal/mocks"
	"certmap/internal/principal"
)

const (
	sidDomainAdmins = "S-1-5-21-1111111111-2222222222-3333333333-512"
	sidAuthUsers    = "S-1-5-11"
	sidEveryone     = "S-1-1-0"
	sidHelpdesk     = "S-1-5-21-1111111111-2222222222-3333333333-1104"
	sidUser         = "S-1-5-21-1111111111-2222222222-3333333333-1105"
	sidSvcAccount   = "S-1-5-21-1111111111-2222222222-3333333333-1106"
)

func newTestScorer(t *testing.T) (*Scorer, *mocks.Resolver) {
	t.Helper()
	cfg, err := config.Load("", config.ModeReport)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	resolver := &mocks.Resolver{
		Classes: map[string]string{
			sidDomainAdmins: "group",
			sidAuthUsers:    "group",
			sidEveryone:     "group",
			sidHelpdesk:     "group",
			sidUser:         "user",
			sidSvcAccount:   "msDS-GroupManagedServiceAccount",
		},
	}
	catalogue := detect.NewCatalogue(cfg, principal.NewClassifier(cfg, resolver))
	return NewScorer(cfg, catalogue), resolver
}

func allowACE(sid string, rights ...string) domain.AccessControlEntry {
	return domain.AccessControlEntry{
		IdentityReference: sid,
		Rights:            rights,
		AccessControlType: domain.AccessAllow,
	}
}

func template(name string, enabled bool, aces ...domain.AccessControlEntry) domain.DirectoryObject {
	obj := domain.DirectoryObject{
		Forest:              "corp.example.com",
		Name:                name,
		DistinguishedName:   "CN=" + name + ",CN=Certificate Templates,CN=Public Key Services,CN=Services,CN=Configuration,DC=corp,DC=example,DC=com",
		ObjectClass:         domain.ClassCertificateTemplate,
		EKUs:                []string{domain.OIDClientAuthentication},
		CertificateNameFlag: domain.FlagEnrolleeSuppliesSubject,
		SchemaVersion:       2,
		Enabled:             enabled,
		AccessEntries:       aces,
	}
	if enabled {
		obj.EnabledOn = []string{"CORP-CA01"}
	}
	return obj
}

func enrollmentService(name string, aces ...domain.AccessControlEntry) domain.DirectoryObject {
	return domain.DirectoryObject{
		Forest:            "corp.example.com",
		Name:              name,
		DistinguishedName: "CN=" + name + ",CN=Enrollment Services,CN=Public Key Services,CN=Services,CN=Configuration,DC=corp,DC=example,DC=com",
		ObjectClass:       domain.ClassEnrollmentService,
		CAHostname:        "ca01.corp.example.com",
		AccessEntries:     aces,
	}
}

// finding builds a scorable principal-based finding bound to its subject.
func finding(technique domain.Technique, subject *domain.DirectoryObject, sid string) domain.Finding {
	f := domain.NewFinding(technique, subject)
	f.IdentityReference = sid
	f.PrincipalSID = sid
	f.Rights = []string{"ExtendedRight"}
	return f
}
