// Package mocks provides in-memory implementations of the directory-facing
// interfaces for testing.
package mocks

import (
	"context"
	"fmt"
	"strings"

	"certmap/internal/domain"
)

// Resolver is an in-memory identity resolver. SIDs maps identity references
// to SIDs; Classes maps SIDs to object classes. Unlisted lookups fail, which
// is how tests exercise the degraded-classification paths.
type Resolver struct {
	SIDs    map[string]string
	Classes map[string]string

	// ResolveCalls counts ObjectClassOf invocations, for memoization tests.
	ResolveCalls int
}

// ResolveSID implements principal.Resolver.
func (r *Resolver) ResolveSID(ctx context.Context, identityReference string) (string, error) {
	if strings.HasPrefix(identityReference, "S-1-") {
		return identityReference, nil
	}
	if sid, ok := r.SIDs[identityReference]; ok {
		return sid, nil
	}
	return "", fmt.Errorf("mock: unknown identity %q", identityReference)
}

// ObjectClassOf implements principal.Resolver.
func (r *Resolver) ObjectClassOf(ctx context.Context, sid string) (string, error) {
	r.ResolveCalls++
	if class, ok := r.Classes[sid]; ok {
		return class, nil
	}
	return "", fmt.Errorf("mock: unknown sid %q", sid)
}

// Provider serves a fixed graph.
type Provider struct {
	Graph []domain.DirectoryObject
	Err   error
}

// LoadPKIObjectGraph implements collector.Provider.
func (p *Provider) LoadPKIObjectGraph(ctx context.Context, forest string) ([]domain.DirectoryObject, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Graph, nil
}
