package collector

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"certmap/internal/domain"
)

// ComputeEnabled marks each template Enabled on the enrollment services that
// publish it, by intersecting the certificateTemplates attribute of every
// EnrollmentService with the template names.
func ComputeEnabled(objects []domain.DirectoryObject) {
	published := make(map[string][]string) // template name -> CA names
	for i := range objects {
		if objects[i].ObjectClass != domain.ClassEnrollmentService {
			continue
		}
		for _, name := range objects[i].PublishedTemplates {
			published[name] = append(published[name], objects[i].Name)
		}
	}
	for i := range objects {
		if !objects[i].IsTemplate() {
			continue
		}
		objects[i].EnabledOn = published[objects[i].Name]
		objects[i].Enabled = len(objects[i].EnabledOn) > 0
	}
}

// CAState is the per-CA host state a directory search cannot see: the
// certutil-visible registry flags and the discovered enrollment endpoints.
type CAState struct {
	AuditFilter         *int                        `yaml:"audit_filter"`
	SANFlag             *string                     `yaml:"san_flag"`
	InterfaceFlag       *string                     `yaml:"interface_flag"`
	EnrollmentEndpoints []domain.EnrollmentEndpoint `yaml:"enrollment_endpoints"`
}

// caStateFile maps CA name to its host state.
type caStateFile struct {
	CAs map[string]CAState `yaml:"cas"`
}

// LoadCAState reads a CA host state file produced out of band (certutil
// registry queries plus endpoint probes).
func LoadCAState(path string) (map[string]CAState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA state file: %w", err)
	}
	var f caStateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse CA state file: %w", err)
	}
	return f.CAs, nil
}

// ApplyCAState copies host state onto the matching EnrollmentService
// objects. CAs absent from the state map keep nil flags, and the detectors
// skip CA-state findings for them rather than guessing.
func ApplyCAState(objects []domain.DirectoryObject, states map[string]CAState) {
	for i := range objects {
		if objects[i].ObjectClass != domain.ClassEnrollmentService {
			continue
		}
		state, ok := states[objects[i].Name]
		if !ok {
			continue
		}
		objects[i].AuditFilter = state.AuditFilter
		objects[i].SANFlag = state.SANFlag
		objects[i].InterfaceFlag = state.InterfaceFlag
		objects[i].EnrollmentEndpoints = state.EnrollmentEndpoints
	}
}
