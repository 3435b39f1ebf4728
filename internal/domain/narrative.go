package domain

import (
	"fmt"
	"strings"
)

// NarrativeKind selects which narrative variant applies to a finding.
type NarrativeKind string

const (
	KindACE      NarrativeKind = "ace"      // a principal holds a dangerous right
	KindOwner    NarrativeKind = "owner"    // the object owner is not a safe principal
	KindCA       NarrativeKind = "ca"       // CA-level configuration state
	KindEndpoint NarrativeKind = "endpoint" // web enrollment endpoint exposure
)

// NarrativeArgs carries the values substituted into a narrative template.
type NarrativeArgs struct {
	Principal         string // resolved display form of the identity reference
	Rights            []string
	Name              string // subject object name
	DistinguishedName string
	Owner             string
	CAFullName        string // host\CA form used by certutil
	AuditFilter       int
	EndpointURL       string
}

// Narrative is one (technique, kind) entry of the narrative table. Issue,
// Fix and Revert are fmt templates rendered against NarrativeArgs by Render.
type Narrative struct {
	Issue  func(a NarrativeArgs) string
	Fix    func(a NarrativeArgs) string
	Revert func(a NarrativeArgs) string
}

type narrativeKey struct {
	Technique Technique
	Kind      NarrativeKind
}

const manualReview = "# No safe automated fix is available. Review this object manually."

// narrativeTable replaces per-call-site string branching: every technique
// resolves its Issue/Fix/Revert text through one lookup.
var narrativeTable = map[narrativeKey]Narrative{
	{TechniqueAuditingGap, KindCA}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("Auditing is not fully enabled on %s. Current value: %d", a.CAFullName, a.AuditFilter)
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("certutil -config '%s' -setreg CA\\AuditFilter %d; Invoke-Command -ComputerName '%s' -ScriptBlock { Restart-Service certsvc }",
				a.CAFullName, FullAuditFilter, caHost(a.CAFullName))
		},
		Revert: func(a NarrativeArgs) string {
			return fmt.Sprintf("certutil -config '%s' -setreg CA\\AuditFilter %d; Invoke-Command -ComputerName '%s' -ScriptBlock { Restart-Service certsvc }",
				a.CAFullName, a.AuditFilter, caHost(a.CAFullName))
		},
	},
	{TechniqueESC1, KindACE}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("%s can enroll in this Client Authentication template using a Subject Alternative Name of their choice, without Manager Approval", a.Principal)
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("Get-ADObject '%s' | Set-ADObject -Replace @{'msPKI-Certificate-Name-Flag' = 0}", a.DistinguishedName)
		},
		Revert: func(a NarrativeArgs) string {
			return fmt.Sprintf("Get-ADObject '%s' | Set-ADObject -Replace @{'msPKI-Certificate-Name-Flag' = %d}", a.DistinguishedName, FlagEnrolleeSuppliesSubject)
		},
	},
	{TechniqueESC2, KindACE}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("%s can request a certificate with no EKU restriction (SubCA/Any Purpose) from this template, without Manager Approval", a.Principal)
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("Get-ADObject '%s' | Set-ADObject -Replace @{'msPKI-Enrollment-Flag' = %d}", a.DistinguishedName, FlagPendAllRequests)
		},
		Revert: func(a NarrativeArgs) string {
			return fmt.Sprintf("Get-ADObject '%s' | Set-ADObject -Replace @{'msPKI-Enrollment-Flag' = 0}", a.DistinguishedName)
		},
	},
	{TechniqueESC3C1, KindACE}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("%s can enroll in this Enrollment Agent template, allowing them to request certificates on behalf of other principals", a.Principal)
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("Get-ADObject '%s' | Set-ADObject -Replace @{'msPKI-Enrollment-Flag' = %d}", a.DistinguishedName, FlagPendAllRequests)
		},
		Revert: func(a NarrativeArgs) string {
			return fmt.Sprintf("Get-ADObject '%s' | Set-ADObject -Replace @{'msPKI-Enrollment-Flag' = 0}", a.DistinguishedName)
		},
	},
	{TechniqueESC3C2, KindACE}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("%s can enroll in this Client Authentication template using an Enrollment Agent certificate, impersonating the named principal", a.Principal)
		},
		Fix: func(a NarrativeArgs) string {
			return "# Configure Enrollment Agent Restrictions on every CA: certsrv.msc > CA Properties > Enrollment Agents"
		},
		Revert: func(a NarrativeArgs) string { return manualReview },
	},
	{TechniqueESC4, KindACE}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("%s has %s rights on this template, allowing them to reconfigure it into an ESC1 condition", a.Principal, strings.Join(a.Rights, ", "))
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("$ACL = Get-Acl -Path 'AD:%s'; $ACL.Access | Where-Object { $_.IdentityReference -eq '%s' } | ForEach-Object { $ACL.RemoveAccessRule($_) | Out-Null }; Set-Acl -Path 'AD:%s' -AclObject $ACL",
				a.DistinguishedName, a.Principal, a.DistinguishedName)
		},
		Revert: func(a NarrativeArgs) string { return manualReview },
	},
	{TechniqueESC4, KindOwner}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("%s owns this template and can modify it into an ESC1 condition", a.Owner)
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("$Owner = New-Object System.Security.Principal.SecurityIdentifier('%s'); $ACL = Get-Acl -Path 'AD:%s'; $ACL.SetOwner($Owner); Set-Acl -Path 'AD:%s' -AclObject $ACL",
				"S-1-5-32-544", a.DistinguishedName, a.DistinguishedName)
		},
		Revert: func(a NarrativeArgs) string {
			return fmt.Sprintf("$Owner = New-Object System.Security.Principal.SecurityIdentifier('%s'); $ACL = Get-Acl -Path 'AD:%s'; $ACL.SetOwner($Owner); Set-Acl -Path 'AD:%s' -AclObject $ACL",
				a.Owner, a.DistinguishedName, a.DistinguishedName)
		},
	},
	{TechniqueESC5, KindACE}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("%s has %s rights on this PKI object, allowing takeover of the certificate services infrastructure", a.Principal, strings.Join(a.Rights, ", "))
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("$ACL = Get-Acl -Path 'AD:%s'; $ACL.Access | Where-Object { $_.IdentityReference -eq '%s' } | ForEach-Object { $ACL.RemoveAccessRule($_) | Out-Null }; Set-Acl -Path 'AD:%s' -AclObject $ACL",
				a.DistinguishedName, a.Principal, a.DistinguishedName)
		},
		Revert: func(a NarrativeArgs) string { return manualReview },
	},
	{TechniqueESC5, KindOwner}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("%s owns this PKI object and controls its security descriptor", a.Owner)
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("$Owner = New-Object System.Security.Principal.SecurityIdentifier('%s'); $ACL = Get-Acl -Path 'AD:%s'; $ACL.SetOwner($Owner); Set-Acl -Path 'AD:%s' -AclObject $ACL",
				"S-1-5-32-544", a.DistinguishedName, a.DistinguishedName)
		},
		Revert: func(a NarrativeArgs) string {
			return fmt.Sprintf("$Owner = New-Object System.Security.Principal.SecurityIdentifier('%s'); $ACL = Get-Acl -Path 'AD:%s'; $ACL.SetOwner($Owner); Set-Acl -Path 'AD:%s' -AclObject $ACL",
				a.Owner, a.DistinguishedName, a.DistinguishedName)
		},
	},
	{TechniqueESC6, KindCA}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("The EDITF_ATTRIBUTESUBJECTALTNAME2 flag is set on %s: any requester can specify a Subject Alternative Name on any template", a.CAFullName)
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("certutil -config '%s' -setreg policy\\EditFlags -EDITF_ATTRIBUTESUBJECTALTNAME2; Invoke-Command -ComputerName '%s' -ScriptBlock { Restart-Service certsvc }",
				a.CAFullName, caHost(a.CAFullName))
		},
		Revert: func(a NarrativeArgs) string {
			return fmt.Sprintf("certutil -config '%s' -setreg policy\\EditFlags +EDITF_ATTRIBUTESUBJECTALTNAME2; Invoke-Command -ComputerName '%s' -ScriptBlock { Restart-Service certsvc }",
				a.CAFullName, caHost(a.CAFullName))
		},
	},
	{TechniqueESC8, KindEndpoint}: {
		Issue: func(a NarrativeArgs) string {
			if strings.HasPrefix(strings.ToLower(a.EndpointURL), "https://") {
				return fmt.Sprintf("A web enrollment endpoint is available at %s. HTTPS endpoints remain relayable unless Extended Protection for Authentication is enforced", a.EndpointURL)
			}
			return fmt.Sprintf("An HTTP-based web enrollment endpoint is available at %s, allowing NTLM relay to certificate issuance", a.EndpointURL)
		},
		Fix: func(a NarrativeArgs) string {
			return "# Disable web enrollment or require HTTPS with Extended Protection for Authentication on the enrollment virtual directories"
		},
		Revert: func(a NarrativeArgs) string { return manualReview },
	},
	{TechniqueESC11, KindCA}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("The IF_ENFORCEENCRYPTICERTREQUEST flag is not set on %s: RPC enrollment requests are relayable", a.CAFullName)
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("certutil -config '%s' -setreg CA\\InterfaceFlags +IF_ENFORCEENCRYPTICERTREQUEST; Invoke-Command -ComputerName '%s' -ScriptBlock { Restart-Service certsvc }",
				a.CAFullName, caHost(a.CAFullName))
		},
		Revert: func(a NarrativeArgs) string {
			return fmt.Sprintf("certutil -config '%s' -setreg CA\\InterfaceFlags -IF_ENFORCEENCRYPTICERTREQUEST; Invoke-Command -ComputerName '%s' -ScriptBlock { Restart-Service certsvc }",
				a.CAFullName, caHost(a.CAFullName))
		},
	},
	{TechniqueESC13, KindACE}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("%s can enroll in this Client Authentication template, and its issuance policy is linked to a group: issued certificates grant that group's privileges", a.Principal)
		},
		Fix: func(a NarrativeArgs) string {
			return fmt.Sprintf("Get-ADObject '%s' | Set-ADObject -Clear 'msDS-OIDToGroupLink'", a.DistinguishedName)
		},
		Revert: func(a NarrativeArgs) string { return manualReview },
	},
	{TechniqueESC15, KindACE}: {
		Issue: func(a NarrativeArgs) string {
			return fmt.Sprintf("%s can enroll in this schema version 1 template and inject application policies into the request (CVE-2024-49019)", a.Principal)
		},
		Fix: func(a NarrativeArgs) string {
			return "# Patch all CAs against CVE-2024-49019, then migrate schema version 1 templates to version 2 or higher"
		},
		Revert: func(a NarrativeArgs) string { return manualReview },
	},
}

// Render resolves the narrative for a (technique, kind) pair. The second
// return is false when the table has no entry for the pair.
func Render(t Technique, k NarrativeKind, a NarrativeArgs) (issue, fix, revert string, ok bool) {
	n, ok := narrativeTable[narrativeKey{t, k}]
	if !ok {
		return "", "", "", false
	}
	return n.Issue(a), n.Fix(a), n.Revert(a), true
}

// caHost extracts the host portion of a host\CA config string.
func caHost(caFullName string) string {
	if i := strings.IndexByte(caFullName, '\\'); i > 0 {
		return caFullName[:i]
	}
	return caFullName
}
