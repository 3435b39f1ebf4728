// Package collector acquires the PKI object graph: live over LDAP, or from
// an offline snapshot file, plus the enrichment both paths share.
package collector

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"

	"certmap/internal/domain"
	"certmap/internal/logging"
	"certmap/internal/secdesc"
)

// Provider loads one forest's PKI object graph.
type Provider interface {
	LoadPKIObjectGraph(ctx context.Context, forest string) ([]domain.DirectoryObject, error)
}

// sdFlags requests owner and DACL (not SACL, which needs SeSecurityPrivilege)
// when reading nTSecurityDescriptor.
const (
	controlTypeSDFlags = "1.2.840.113556.1.4.801"
	sdFlagsOwnerDacl   = 0x01 | 0x04
)

// sdFlagsControl is the LDAP_SERVER_SD_FLAGS_OID request control.
type sdFlagsControl struct {
	flags int64
}

func (c *sdFlagsControl) GetControlType() string { return controlTypeSDFlags }

func (c *sdFlagsControl) String() string {
	return fmt.Sprintf("Control Type: SD Flags (%q) Flags: %d", controlTypeSDFlags, c.flags)
}

func (c *sdFlagsControl) Encode() *ber.Packet {
	packet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Control")
	packet.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, controlTypeSDFlags, "Control Type (SD Flags)"))
	packet.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, true, "Criticality"))

	inner := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "SD Flags")
	inner.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, c.flags, "Flags"))
	packet.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(inner.Bytes()), "Control Value (SD Flags)"))
	return packet
}

// LDAPCollector is the live directory data provider and identity resolver.
type LDAPCollector struct {
	conn      *ldap.Conn
	forest    string
	configNC  string
	defaultNC string
}

// Connect dials and binds the directory, then reads the naming contexts off
// the RootDSE. An empty username performs an unauthenticated bind.
func Connect(url, username, password string) (*LDAPCollector, error) {
	conn, err := ldap.DialURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	conn.SetTimeout(30 * time.Second)

	if username != "" {
		if err := conn.Bind(username, password); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bind failed for %s: %w", username, err)
		}
	} else if err := conn.UnauthenticatedBind(""); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unauthenticated bind failed: %w", err)
	}

	c := &LDAPCollector{conn: conn}
	if err := c.readRootDSE(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the directory connection.
func (c *LDAPCollector) Close() {
	c.conn.Close()
}

// Forest returns the forest root domain in DNS form.
func (c *LDAPCollector) Forest() string { return c.forest }

func (c *LDAPCollector) readRootDSE() error {
	req := ldap.NewSearchRequest("", ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=*)",
		[]string{"configurationNamingContext", "defaultNamingContext", "rootDomainNamingContext"}, nil)
	res, err := c.conn.Search(req)
	if err != nil {
		return fmt.Errorf("rootDSE read failed: %w", err)
	}
	if len(res.Entries) == 0 {
		return fmt.Errorf("rootDSE read returned no entry")
	}
	e := res.Entries[0]
	c.configNC = e.GetAttributeValue("configurationNamingContext")
	c.defaultNC = e.GetAttributeValue("defaultNamingContext")
	c.forest = dnToDNS(e.GetAttributeValue("rootDomainNamingContext"))
	if c.configNC == "" {
		return fmt.Errorf("rootDSE has no configurationNamingContext")
	}
	return nil
}

// dnToDNS turns DC=corp,DC=example,DC=com into corp.example.com.
func dnToDNS(dn string) string {
	var labels []string
	for _, part := range strings.Split(dn, ",") {
		if v, found := strings.CutPrefix(strings.TrimSpace(part), "DC="); found {
			labels = append(labels, v)
		}
	}
	return strings.Join(labels, ".")
}

func (c *LDAPCollector) pkiBase() string {
	return "CN=Public Key Services,CN=Services," + c.configNC
}

func (c *LDAPCollector) search(ctx context.Context, base, filter string, attrs []string) ([]*ldap.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	req := ldap.NewSearchRequest(base, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false, filter, attrs,
		[]ldap.Control{&sdFlagsControl{flags: sdFlagsOwnerDacl}})
	res, err := c.conn.SearchWithPaging(req, 500)
	logging.LogDirectoryQuery(base, filter, err == nil, time.Since(start), err)
	logging.GetMetrics().RecordQuery(base, err == nil, err)
	if err != nil {
		return nil, fmt.Errorf("search %q under %s failed: %w", filter, base, err)
	}
	return res.Entries, nil
}

var templateAttrs = []string{
	"cn", "distinguishedName", "pKIExtendedKeyUsage",
	"msPKI-Certificate-Name-Flag", "msPKI-Enrollment-Flag", "msPKI-RA-Signature",
	"msPKI-RA-Application-Policies", "msPKI-Certificate-Policy",
	"msPKI-Template-Schema-Version", "nTSecurityDescriptor",
}

// LoadPKIObjectGraph collects every PKI-relevant object under the Public Key
// Services container, plus the CA host computer objects, and applies the
// directory-derivable enrichment. CA registry state and endpoints are merged
// separately via ApplyCAState / ProbeEnrollmentEndpoints.
func (c *LDAPCollector) LoadPKIObjectGraph(ctx context.Context, forest string) ([]domain.DirectoryObject, error) {
	if forest == "" {
		forest = c.forest
	}
	var objects []domain.DirectoryObject

	templates, err := c.search(ctx, c.pkiBase(), "(objectClass=pKICertificateTemplate)", templateAttrs)
	if err != nil {
		return nil, err
	}
	for _, e := range templates {
		objects = append(objects, c.templateFromEntry(forest, e))
	}

	cas, err := c.search(ctx, c.pkiBase(), "(objectClass=pKIEnrollmentService)",
		[]string{"cn", "distinguishedName", "dNSHostName", "certificateTemplates", "nTSecurityDescriptor"})
	if err != nil {
		return nil, err
	}
	for _, e := range cas {
		obj := c.objectFromEntry(forest, e, domain.ClassEnrollmentService)
		obj.CAHostname = e.GetAttributeValue("dNSHostName")
		obj.PublishedTemplates = e.GetAttributeValues("certificateTemplates")
		objects = append(objects, obj)

		if host := c.caHostObject(ctx, forest, obj.CAHostname); host != nil {
			objects = append(objects, *host)
		}
	}

	oids, err := c.search(ctx, c.pkiBase(), "(objectClass=msPKI-Enterprise-Oid)",
		[]string{"cn", "distinguishedName", "msPKI-Cert-Template-OID", "msDS-OIDToGroupLink", "nTSecurityDescriptor"})
	if err != nil {
		return nil, err
	}
	for _, e := range oids {
		obj := c.objectFromEntry(forest, e, domain.ClassEnterpriseOID)
		obj.OID = e.GetAttributeValue("msPKI-Cert-Template-OID")
		obj.OIDGroupLink = e.GetAttributeValue("msDS-OIDToGroupLink")
		objects = append(objects, obj)
	}

	// NTAuthCertificates, the root/intermediate CA objects, and the PKI
	// containers themselves: ESC5 territory.
	others, err := c.search(ctx, c.pkiBase(), "(|(objectClass=certificationAuthority)(objectClass=container))",
		[]string{"cn", "distinguishedName", "objectClass", "nTSecurityDescriptor"})
	if err != nil {
		return nil, err
	}
	for _, e := range others {
		class := domain.ClassContainer
		for _, oc := range e.GetAttributeValues("objectClass") {
			if strings.EqualFold(oc, "certificationAuthority") {
				class = domain.ClassCertAuthority
			}
		}
		objects = append(objects, c.objectFromEntry(forest, e, class))
	}

	ComputeEnabled(objects)
	return objects, nil
}

// caHostObject fetches the computer object backing a CA host, when the
// dNSHostName resolves to one.
func (c *LDAPCollector) caHostObject(ctx context.Context, forest, hostname string) *domain.DirectoryObject {
	if hostname == "" {
		return nil
	}
	entries, err := c.search(ctx, c.defaultNC,
		fmt.Sprintf("(&(objectClass=computer)(dNSHostName=%s))", ldap.EscapeFilter(hostname)),
		[]string{"cn", "distinguishedName", "nTSecurityDescriptor"})
	if err != nil || len(entries) == 0 {
		return nil
	}
	obj := c.objectFromEntry(forest, entries[0], domain.ClassCAHostComputer)
	return &obj
}

func (c *LDAPCollector) objectFromEntry(forest string, e *ldap.Entry, class domain.ObjectClass) domain.DirectoryObject {
	obj := domain.DirectoryObject{
		Forest:            forest,
		Name:              e.GetAttributeValue("cn"),
		DistinguishedName: e.GetAttributeValue("distinguishedName"),
		ObjectClass:       class,
	}
	if obj.DistinguishedName == "" {
		obj.DistinguishedName = e.DN
	}
	if raw := e.GetRawAttributeValue("nTSecurityDescriptor"); len(raw) > 0 {
		owner, aces, err := secdesc.Parse(raw)
		if err != nil {
			logging.LogWarn("Security descriptor parse failed", map[string]interface{}{
				"object": obj.DistinguishedName,
				"error":  err.Error(),
			})
		} else {
			obj.Owner = owner
			obj.AccessEntries = aces
		}
	}
	return obj
}

func (c *LDAPCollector) templateFromEntry(forest string, e *ldap.Entry) domain.DirectoryObject {
	obj := c.objectFromEntry(forest, e, domain.ClassCertificateTemplate)
	obj.EKUs = e.GetAttributeValues("pKIExtendedKeyUsage")
	obj.CertificateNameFlag = atoiAttr(e, "msPKI-Certificate-Name-Flag")
	obj.EnrollmentFlag = atoiAttr(e, "msPKI-Enrollment-Flag")
	obj.RASignatureCount = atoiAttr(e, "msPKI-RA-Signature")
	obj.RAApplicationPolicy = parsePolicyOIDs(e.GetAttributeValues("msPKI-RA-Application-Policies"))
	obj.CertificatePolicy = e.GetAttributeValues("msPKI-Certificate-Policy")
	obj.SchemaVersion = atoiAttr(e, "msPKI-Template-Schema-Version")
	return obj
}

// atoiAttr reads an integer attribute, treating absent or malformed values
// as zero (the unset form the detectors test for).
func atoiAttr(e *ldap.Entry, attr string) int {
	v := e.GetAttributeValue(attr)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

var oidPattern = regexp.MustCompile(`^\d+(\.\d+)+$`)

// parsePolicyOIDs extracts OIDs from msPKI-RA-Application-Policies values,
// which on schema v3+ templates are backtick-delimited name/value chains
// rather than bare OIDs.
func parsePolicyOIDs(values []string) []string {
	var oids []string
	for _, v := range values {
		if !strings.Contains(v, "`") {
			if oidPattern.MatchString(v) {
				oids = append(oids, v)
			}
			continue
		}
		for _, token := range strings.Split(v, "`") {
			if oidPattern.MatchString(token) {
				oids = append(oids, token)
			}
		}
	}
	return oids
}

// ResolveSID translates a DOMAIN\name identity reference via the directory.
// SID-form references pass through.
func (c *LDAPCollector) ResolveSID(ctx context.Context, identityReference string) (string, error) {
	if strings.HasPrefix(identityReference, "S-1-") {
		return identityReference, nil
	}
	name := identityReference
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		name = name[i+1:]
	}
	entries, err := c.search(ctx, c.defaultNC,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(name)), []string{"objectSid"})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no account named %q", name)
	}
	sid, err := secdesc.ParseSID(entries[0].GetRawAttributeValue("objectSid"))
	if err != nil {
		return "", fmt.Errorf("bad objectSid on %q: %w", name, err)
	}
	return sid, nil
}

// ObjectClassOf looks up the most specific objectClass of a SID.
func (c *LDAPCollector) ObjectClassOf(ctx context.Context, sid string) (string, error) {
	entries, err := c.search(ctx, c.defaultNC,
		fmt.Sprintf("(objectSid=%s)", ldap.EscapeFilter(sid)), []string{"objectClass"})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no object with sid %q", sid)
	}
	classes := entries[0].GetAttributeValues("objectClass")
	if len(classes) == 0 {
		return "", fmt.Errorf("object %q has no objectClass", sid)
	}
	return classes[len(classes)-1], nil
}
