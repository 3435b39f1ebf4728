package domain

// ObjectClass represents the directory class of a PKI-relevant object
type ObjectClass string

const (
	ClassCertificateTemplate ObjectClass = "pKICertificateTemplate"
	ClassEnrollmentService   ObjectClass = "pKIEnrollmentService"
	ClassEnterpriseOID       ObjectClass = "msPKI-Enterprise-Oid"
	ClassCAHostComputer      ObjectClass = "computer"
	ClassContainer           ObjectClass = "container"
	ClassCertAuthority       ObjectClass = "certificationAuthority"
)

// Technique represents a named AD CS escalation path
type Technique string

const (
	TechniqueAuditingGap Technique = "Auditing"
	TechniqueESC1        Technique = "ESC1"
	TechniqueESC2        Technique = "ESC2"
	TechniqueESC3C1      Technique = "ESC3"
	TechniqueESC3C2      Technique = "ESC3-Condition2"
	TechniqueESC4        Technique = "ESC4"
	TechniqueESC5        Technique = "ESC5"
	TechniqueESC6        Technique = "ESC6"
	TechniqueESC8        Technique = "ESC8"
	TechniqueESC11       Technique = "ESC11"
	TechniqueESC13       Technique = "ESC13"
	TechniqueESC15       Technique = "ESC15"
)

// AllTechniques lists every technique in the catalogue in report order
var AllTechniques = []Technique{
	TechniqueAuditingGap,
	TechniqueESC1,
	TechniqueESC2,
	TechniqueESC3C1,
	TechniqueESC3C2,
	TechniqueESC4,
	TechniqueESC5,
	TechniqueESC6,
	TechniqueESC8,
	TechniqueESC11,
	TechniqueESC13,
	TechniqueESC15,
}

// RiskName represents the categorical severity of a scored finding
type RiskName string

const (
	RiskInformational RiskName = "Informational"
	RiskLow           RiskName = "Low"
	RiskMedium        RiskName = "Medium"
	RiskHigh          RiskName = "High"
	RiskCritical      RiskName = "Critical"
)

// AccessControlType represents the allow/deny disposition of an ACE
type AccessControlType string

const (
	AccessAllow AccessControlType = "Allow"
	AccessDeny  AccessControlType = "Deny"
)

// LogLevel represents log levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// Well-known EKU and application policy OIDs used by the template detectors
const (
	OIDClientAuthentication = "1.3.6.1.5.5.7.3.2"
	OIDPKINITAuthentication = "1.3.6.1.5.2.3.4"
	OIDSmartCardLogon       = "1.3.6.1.4.1.311.20.2.2"
	OIDAnyPurpose           = "2.5.29.37.0"
	OIDEnrollmentAgent      = "1.3.6.1.4.1.311.20.2.1"
)

// Flag bits on msPKI-Certificate-Name-Flag / msPKI-Enrollment-Flag
const (
	// FlagEnrolleeSuppliesSubject: the requester supplies the subject name
	FlagEnrolleeSuppliesSubject = 0x1
	// FlagPendAllRequests: issuance requires certificate manager approval
	FlagPendAllRequests = 0x2
)

// FullAuditFilter is the AuditFilter registry value with all seven CA audit
// event categories enabled
const FullAuditFilter = 127
