package domain

import "strings"

// EnrollmentEndpoint is one web enrollment URL discovered on a CA
type EnrollmentEndpoint struct {
	URL  string `json:"url"`
	Auth string `json:"auth,omitempty"` // NTLM, Negotiate
}

// IsHTTP reports whether the endpoint uses cleartext HTTP.
func (e EnrollmentEndpoint) IsHTTP() bool {
	return strings.HasPrefix(strings.ToLower(e.URL), "http://")
}

// AccessControlEntry is one entry from an object's DACL.
// IdentityReference is the raw reference as stored in the directory; it may
// be a SID string or a NETBIOS\name form and must be resolved before
// classification.
type AccessControlEntry struct {
	IdentityReference string            `json:"identity_reference"`
	Rights            []string          `json:"rights"` // GenericAll, WriteDacl, WriteOwner, WriteProperty, ExtendedRight, Enroll, ...
	AccessControlType AccessControlType `json:"access_control_type"`
	ObjectType        string            `json:"object_type,omitempty"` // scoping GUID, e.g. the Enroll/AutoEnroll control access rights
}

// HasRight reports whether the ACE carries the named right.
func (a AccessControlEntry) HasRight(right string) bool {
	for _, r := range a.Rights {
		if strings.EqualFold(r, right) {
			return true
		}
	}
	return false
}

// DirectoryObject is one PKI-relevant directory entry, already enriched by
// the collector (CA flags, endpoints, per-template enabled state). The graph
// handed to the engine is immutable for the duration of a run.
type DirectoryObject struct {
	Forest            string               `json:"forest"`
	Name              string               `json:"name"`
	DistinguishedName string               `json:"distinguished_name"`
	ObjectClass       ObjectClass          `json:"object_class"`
	Owner             string               `json:"owner,omitempty"` // SID
	AccessEntries     []AccessControlEntry `json:"access_entries,omitempty"`

	// Template attributes (ClassCertificateTemplate only)
	EKUs                 []string `json:"ekus,omitempty"` // pKIExtendedKeyUsage
	CertificateNameFlag  int      `json:"certificate_name_flag,omitempty"`
	EnrollmentFlag       int      `json:"enrollment_flag,omitempty"`
	RASignatureCount     int      `json:"ra_signature_count,omitempty"`
	RAApplicationPolicy  []string `json:"ra_application_policy,omitempty"`
	CertificatePolicy    []string `json:"certificate_policy,omitempty"`
	SchemaVersion        int      `json:"schema_version,omitempty"`
	Enabled              bool     `json:"enabled"`
	EnabledOn            []string `json:"enabled_on,omitempty"` // CA names publishing this template

	// CA attributes (ClassEnrollmentService only); nil pointers mean the
	// enrichment data was unavailable for this CA
	CAHostname          string               `json:"ca_hostname,omitempty"`         // dNSHostName of the CA host
	PublishedTemplates  []string             `json:"published_templates,omitempty"` // certificateTemplates attribute
	AuditFilter         *int                 `json:"audit_filter,omitempty"`
	SANFlag             *string              `json:"san_flag,omitempty"`       // "Yes" when EDITF_ATTRIBUTESUBJECTALTNAME2 is set
	InterfaceFlag       *string              `json:"interface_flag,omitempty"` // "Yes" when IF_ENFORCEENCRYPTICERTREQUEST is set
	EnrollmentEndpoints []EnrollmentEndpoint `json:"enrollment_endpoints,omitempty"`

	// OID object attributes (ClassEnterpriseOID only)
	OID          string `json:"oid,omitempty"`
	OIDGroupLink string `json:"oid_group_link,omitempty"` // msDS-OIDToGroupLink target DN
}

// IsTemplate reports whether the object is a certificate template.
func (o *DirectoryObject) IsTemplate() bool {
	return o.ObjectClass == ClassCertificateTemplate
}

// CAFullName returns the host\CA config string certutil expects.
func (o *DirectoryObject) CAFullName() string {
	if o.CAHostname == "" {
		return o.Name
	}
	return o.CAHostname + `\` + o.Name
}

// HasEKU reports whether the template carries any of the given EKU OIDs.
func (o *DirectoryObject) HasEKU(oids ...string) bool {
	for _, eku := range o.EKUs {
		for _, oid := range oids {
			if eku == oid {
				return true
			}
		}
	}
	return false
}

// HasClientAuthEKU reports whether the template allows authentication use.
func (o *DirectoryObject) HasClientAuthEKU() bool {
	return o.HasEKU(OIDClientAuthentication, OIDPKINITAuthentication, OIDSmartCardLogon, OIDAnyPurpose)
}

// RequiresManagerApproval reports whether issuance pends for approval.
func (o *DirectoryObject) RequiresManagerApproval() bool {
	return o.EnrollmentFlag&FlagPendAllRequests != 0
}

// EnrolleeSuppliesSubject reports whether requesters control the subject.
func (o *DirectoryObject) EnrolleeSuppliesSubject() bool {
	return o.CertificateNameFlag&FlagEnrolleeSuppliesSubject != 0
}

// HasRAApplicationPolicy reports whether msPKI-RA-Application-Policies
// contains the given OID.
func (o *DirectoryObject) HasRAApplicationPolicy(oid string) bool {
	for _, p := range o.RAApplicationPolicy {
		if p == oid {
			return true
		}
	}
	return false
}

// FindByClass returns the graph objects of the given class, in graph order.
func FindByClass(graph []DirectoryObject, class ObjectClass) []*DirectoryObject {
	var out []*DirectoryObject
	for i := range graph {
		if graph[i].ObjectClass == class {
			out = append(out, &graph[i])
		}
	}
	return out
}

// FindTemplates returns the certificate templates in the graph.
func FindTemplates(graph []DirectoryObject) []*DirectoryObject {
	return FindByClass(graph, ClassCertificateTemplate)
}
