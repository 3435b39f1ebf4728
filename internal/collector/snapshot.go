package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"certmap/internal/domain"
)

// Snapshot is the offline exchange format: a pre-collected object graph plus
// the identity tables a live run would resolve against the directory.
type Snapshot struct {
	Forest  string                   `json:"forest"`
	Objects []domain.DirectoryObject `json:"objects"`
	// Identities maps raw identity references (DOMAIN\name) to SIDs.
	Identities map[string]string `json:"identities,omitempty"`
	// ObjectClasses maps SIDs to their directory object class.
	ObjectClasses map[string]string `json:"object_classes,omitempty"`
}

// LoadSnapshot reads a snapshot file and applies the same enrichment a live
// collection gets.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	for i := range s.Objects {
		if s.Objects[i].Forest == "" {
			s.Objects[i].Forest = s.Forest
		}
	}
	ComputeEnabled(s.Objects)
	return &s, nil
}

// LoadPKIObjectGraph implements the directory data provider over a snapshot.
func (s *Snapshot) LoadPKIObjectGraph(ctx context.Context, forest string) ([]domain.DirectoryObject, error) {
	if forest != "" && s.Forest != "" && !strings.EqualFold(forest, s.Forest) {
		return nil, fmt.Errorf("snapshot covers forest %q, not %q", s.Forest, forest)
	}
	return s.Objects, nil
}

// ResolveSID implements principal.Resolver from the snapshot identity table.
func (s *Snapshot) ResolveSID(ctx context.Context, identityReference string) (string, error) {
	if strings.HasPrefix(identityReference, "S-1-") {
		return identityReference, nil
	}
	if sid, ok := s.Identities[identityReference]; ok {
		return sid, nil
	}
	return "", fmt.Errorf("identity %q not present in snapshot", identityReference)
}

// ObjectClassOf implements principal.Resolver from the snapshot class table.
func (s *Snapshot) ObjectClassOf(ctx context.Context, sid string) (string, error) {
	if class, ok := s.ObjectClasses[sid]; ok {
		return class, nil
	}
	return "", fmt.Errorf("sid %q not present in snapshot", sid)
}
