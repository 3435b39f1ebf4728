package domain

import "github.com/google/uuid"

// Finding is one reported misconfiguration instance. Detectors construct
// findings; the risk scorer enriches RiskValue, RiskName and RiskScoring in
// place before the finding reaches the caller.
type Finding struct {
	ID        string           `json:"id"`
	Technique Technique        `json:"technique"`
	Subject   *DirectoryObject `json:"-"` // back-reference into the graph, never owned

	// Subject identity, denormalized for output
	Forest            string `json:"forest"`
	Name              string `json:"name"`
	DistinguishedName string `json:"distinguished_name"`

	// Principal-based findings
	IdentityReference string   `json:"identity_reference,omitempty"`
	PrincipalSID      string   `json:"principal_sid,omitempty"`
	Rights            []string `json:"rights,omitempty"`

	// Template findings
	Enabled   bool     `json:"enabled,omitempty"`
	EnabledOn []string `json:"enabled_on,omitempty"`

	// Endpoint findings (ESC8)
	Endpoint string `json:"endpoint,omitempty"`

	Issue  string `json:"issue"`
	Fix    string `json:"fix,omitempty"`
	Revert string `json:"revert,omitempty"`

	// Set once, by the scorer
	RiskValue   int      `json:"risk_value"`
	RiskName    RiskName `json:"risk_name"`
	RiskScoring []string `json:"risk_scoring,omitempty"`
}

// NewFinding builds a finding bound to its subject object, copying the
// subject identity fields and, for templates, the enabled state.
func NewFinding(technique Technique, subject *DirectoryObject) Finding {
	f := Finding{
		ID:                uuid.NewString(),
		Technique:         technique,
		Subject:           subject,
		Forest:            subject.Forest,
		Name:              subject.Name,
		DistinguishedName: subject.DistinguishedName,
	}
	if subject.IsTemplate() {
		f.Enabled = subject.Enabled
		f.EnabledOn = append([]string(nil), subject.EnabledOn...)
	}
	return f
}
