package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certmap/internal/domain"
)

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func TestLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	content := []byte(`{
  "forest": "corp.example.com",
  "objects": [
    {
      "name": "CORP-CA01",
      "distinguished_name": "CN=CORP-CA01,CN=Enrollment Services,CN=Public Key Services,CN=Services,CN=Configuration,DC=corp,DC=example,DC=com",
      "object_class": "pKIEnrollmentService",
      "published_templates": ["WebServer"]
    },
    {
      "name": "WebServer",
      "distinguished_name": "CN=WebServer,CN=Certificate Templates,CN=Public Key Services,CN=Services,CN=Configuration,DC=corp,DC=example,DC=com",
      "object_class": "pKICertificateTemplate"
    },
    {
      "name": "Stale",
      "distinguished_name": "CN=Stale,CN=Certificate Templates,CN=Public Key Services,CN=Services,CN=Configuration,DC=corp,DC=example,DC=com",
      "object_class": "pKICertificateTemplate"
    }
  ],
  "identities": {"CORP\\Helpdesk": "S-1-5-21-1-2-3-1104"},
  "object_classes": {"S-1-5-21-1-2-3-1104": "group"}
}`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("forest is stamped onto objects", func(t *testing.T) {
		for _, obj := range snap.Objects {
			assert.Equal(t, "corp.example.com", obj.Forest, "object %s", obj.Name)
		}
	})

	t.Run("enabled state is computed on load", func(t *testing.T) {
		byName := make(map[string]domain.DirectoryObject)
		for _, obj := range snap.Objects {
			byName[obj.Name] = obj
		}
		assert.True(t, byName["WebServer"].Enabled)
		assert.Equal(t, []string{"CORP-CA01"}, byName["WebServer"].EnabledOn)
		assert.False(t, byName["Stale"].Enabled, "no CA publishes Stale")
	})

	t.Run("graph provider checks the forest", func(t *testing.T) {
		_, err := snap.LoadPKIObjectGraph(ctx, "CORP.EXAMPLE.COM")
		assert.NoError(t, err, "forest match should be case-insensitive")
		_, err = snap.LoadPKIObjectGraph(ctx, "other.example.com")
		assert.Error(t, err, "foreign forest accepted")
	})

	t.Run("identity resolution", func(t *testing.T) {
		sid, err := snap.ResolveSID(ctx, `CORP\Helpdesk`)
		require.NoError(t, err)
		assert.Equal(t, "S-1-5-21-1-2-3-1104", sid)

		sid, err = snap.ResolveSID(ctx, "S-1-5-11")
		require.NoError(t, err)
		assert.Equal(t, "S-1-5-11", sid, "SID references pass through")

		_, err = snap.ResolveSID(ctx, `CORP\Nobody`)
		assert.Error(t, err)

		class, err := snap.ObjectClassOf(ctx, "S-1-5-21-1-2-3-1104")
		require.NoError(t, err)
		assert.Equal(t, "group", class)
	})
}

func TestLoadSnapshotErrors(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err, "missing file")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o644))
	_, err = LoadSnapshot(path)
	assert.Error(t, err, "malformed json")
}

// =============================================================================
// ENRICHMENT TESTS
// =============================================================================

func TestComputeEnabled(t *testing.T) {
	objects := []domain.DirectoryObject{
		{Name: "CA-A", ObjectClass: domain.ClassEnrollmentService, PublishedTemplates: []string{"User", "WebServer"}},
		{Name: "CA-B", ObjectClass: domain.ClassEnrollmentService, PublishedTemplates: []string{"User"}},
		{Name: "User", ObjectClass: domain.ClassCertificateTemplate},
		{Name: "WebServer", ObjectClass: domain.ClassCertificateTemplate},
		{Name: "Stale", ObjectClass: domain.ClassCertificateTemplate},
	}
	ComputeEnabled(objects)

	assert.Equal(t, []string{"CA-A", "CA-B"}, objects[2].EnabledOn)
	assert.Equal(t, []string{"CA-A"}, objects[3].EnabledOn)
	assert.False(t, objects[4].Enabled)
	assert.Empty(t, objects[4].EnabledOn)
}

func TestLoadAndApplyCAState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca-state.yaml")
	content := []byte(`
cas:
  CORP-CA01:
    audit_filter: 96
    san_flag: "Yes"
    interface_flag: "No"
    enrollment_endpoints:
      - url: http://ca01.corp.example.com/certsrv/
        auth: NTLM
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	states, err := LoadCAState(path)
	require.NoError(t, err)

	objects := []domain.DirectoryObject{
		{Name: "CORP-CA01", ObjectClass: domain.ClassEnrollmentService},
		{Name: "CORP-CA02", ObjectClass: domain.ClassEnrollmentService},
		{Name: "CORP-CA01", ObjectClass: domain.ClassCertificateTemplate},
	}
	ApplyCAState(objects, states)

	ca := objects[0]
	require.NotNil(t, ca.AuditFilter)
	assert.Equal(t, 96, *ca.AuditFilter)
	require.NotNil(t, ca.SANFlag)
	assert.Equal(t, "Yes", *ca.SANFlag)
	require.NotNil(t, ca.InterfaceFlag)
	assert.Equal(t, "No", *ca.InterfaceFlag)
	require.Len(t, ca.EnrollmentEndpoints, 1)
	assert.Equal(t, "NTLM", ca.EnrollmentEndpoints[0].Auth)

	assert.Nil(t, objects[1].AuditFilter, "CA absent from the state file keeps nil flags")
	assert.Nil(t, objects[2].AuditFilter, "non-CA object with a matching name is untouched")
}

// =============================================================================
// LDAP HELPER TESTS
// =============================================================================

func TestDNToDNS(t *testing.T) {
	tests := []struct {
		dn   string
		want string
	}{
		{"DC=corp,DC=example,DC=com", "corp.example.com"},
		{"CN=Configuration,DC=corp,DC=example,DC=com", "corp.example.com"},
		{"DC=corp, DC=example, DC=com", "corp.example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dnToDNS(tt.dn), "dnToDNS(%q)", tt.dn)
	}
}

func TestParsePolicyOIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			"bare oid",
			[]string{"1.3.6.1.4.1.311.20.2.1"},
			[]string{"1.3.6.1.4.1.311.20.2.1"},
		},
		{
			"backtick chain",
			[]string{"msPKI-RA-Application-Policies`PZPWSTR`1.3.6.1.4.1.311.20.2.1`msPKI-Key-Usage`PZPWSTR`0"},
			[]string{"1.3.6.1.4.1.311.20.2.1"},
		},
		{
			"non-oid values dropped",
			[]string{"NotAnOID", "1.2"},
			[]string{"1.2"},
		},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePolicyOIDs(tt.in))
		})
	}
}
