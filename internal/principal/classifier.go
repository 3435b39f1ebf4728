// Package principal classifies SIDs against the configured safe/unsafe sets
// and the directory object class of the backing account.
package principal

import (
	"context"
	"strings"

	"certmap/internal/config"
	"certmap/internal/logging"
)

// Resolver translates raw identity references to SIDs and SIDs to directory
// object classes. Implemented by the collector for live runs and by
// internal/mocks for tests.
type Resolver interface {
	// ResolveSID translates an identity reference (SID string or
	// DOMAIN\name form) into a SID string.
	ResolveSID(ctx context.Context, identityReference string) (string, error)
	// ObjectClassOf looks up the directory object class of a SID
	// (user, group, computer, msDS-GroupManagedServiceAccount, ...).
	ObjectClassOf(ctx context.Context, sid string) (string, error)
}

// Classification is the result of classifying one SID.
type Classification struct {
	SID         string
	IsSafe      bool
	IsUnsafe    bool
	ObjectClass string
	// Resolved is false when the directory lookup failed; the scorer treats
	// such principals as neutral rather than failing the run.
	Resolved bool
}

// IsGroup reports whether the backing account is a group.
func (c Classification) IsGroup() bool {
	return strings.EqualFold(c.ObjectClass, "group")
}

// IsManagedServiceAccount reports whether the backing account is a standalone
// or group managed service account.
func (c Classification) IsManagedServiceAccount() bool {
	switch strings.ToLower(c.ObjectClass) {
	case "msds-managedserviceaccount", "msds-groupmanagedserviceaccount":
		return true
	}
	return false
}

// Classifier evaluates SIDs against one run's configured sets.
type Classifier struct {
	cfg      *config.Config
	resolver Resolver
}

// NewClassifier builds a classifier bound to a run configuration.
func NewClassifier(cfg *config.Config, resolver Resolver) *Classifier {
	return &Classifier{cfg: cfg, resolver: resolver}
}

// Resolve translates a raw identity reference into a SID. SID-form references
// pass through without a directory round-trip.
func (c *Classifier) Resolve(ctx context.Context, identityReference string) (string, error) {
	if strings.HasPrefix(identityReference, "S-1-") {
		return identityReference, nil
	}
	return c.resolver.ResolveSID(ctx, identityReference)
}

// Classify evaluates one SID. Safe/unsafe membership is a pure pattern match;
// the object class requires a single directory lookup, and lookup failure
// degrades to an unresolved classification instead of an error.
func (c *Classifier) Classify(ctx context.Context, sid string) Classification {
	cls := Classification{
		SID:      sid,
		IsSafe:   c.cfg.IsSafeUser(sid),
		IsUnsafe: c.cfg.IsUnsafeUser(sid),
	}

	objectClass, err := c.resolver.ObjectClassOf(ctx, sid)
	if err != nil {
		logging.LogDebug("Object class lookup failed, treating principal as neutral", map[string]interface{}{
			"object": sid,
			"error":  err.Error(),
		})
		return cls
	}
	cls.ObjectClass = objectClass
	cls.Resolved = true
	return cls
}
