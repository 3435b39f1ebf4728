package config

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// Load TESTS
// =============================================================================

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", ModeReport)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name  string
		check func(string) bool
		input string
		want  bool
	}{
		{"Domain Admins is a safe owner", cfg.IsSafeOwner, "S-1-5-21-1111111111-2222222222-3333333333-512", true},
		{"Enterprise Admins is a safe owner", cfg.IsSafeOwner, "S-1-5-21-1111111111-2222222222-3333333333-519", true},
		{"plain user is not a safe owner", cfg.IsSafeOwner, "S-1-5-21-1111111111-2222222222-3333333333-1105", false},
		{"SYSTEM is a safe user", cfg.IsSafeUser, "S-1-5-18", true},
		{"Authenticated Users is not a safe user", cfg.IsSafeUser, "S-1-5-11", false},
		{"Authenticated Users is unsafe", cfg.IsUnsafeUser, "S-1-5-11", true},
		{"Everyone is unsafe", cfg.IsUnsafeUser, "S-1-1-0", true},
		{"Domain Users is unsafe", cfg.IsUnsafeUser, "S-1-5-21-1111111111-2222222222-3333333333-513", true},
		{"plain group is not unsafe", cfg.IsUnsafeUser, "S-1-5-21-1111111111-2222222222-3333333333-1104", false},
		{"GenericAll is dangerous", cfg.IsDangerousRight, "GenericAll", true},
		{"WriteDacl is dangerous", cfg.IsDangerousRight, "WriteDacl", true},
		{"WriteOwner is dangerous", cfg.IsDangerousRight, "WriteOwner", true},
		{"WriteProperty is dangerous", cfg.IsDangerousRight, "WriteProperty", true},
		{"ExtendedRight alone is not dangerous", cfg.IsDangerousRight, "ExtendedRight", false},
		{"Enroll object type is safe", cfg.IsSafeObjectType, "0e10c968-78fb-11d2-90d4-00c04f79dc55", true},
		{"AutoEnroll object type is safe", cfg.IsSafeObjectType, "a05b8cc2-17bc-4802-a710-e7c15ab866a2", true},
		{"unknown object type is not safe", cfg.IsSafeObjectType, "deadbeef-0000-0000-0000-000000000000", false},
		{"empty object type is not safe", cfg.IsSafeObjectType, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.input); got != tt.want {
				t.Errorf("got %v, want %v for %q", got, tt.want, tt.input)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sets.yaml")
	content := []byte(`
safe_owners: ['-512$']
safe_users: ['-512$']
unsafe_users: ['S-1-1-0']
dangerous_rights: ['GenericAll']
safe_object_types: ['0e10c968-78fb-11d2-90d4-00c04f79dc55']
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, ModeRemediate)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode != ModeRemediate {
		t.Errorf("Mode = %v, want ModeRemediate", cfg.Mode)
	}
	if cfg.IsDangerousRight("WriteDacl") {
		t.Error("WriteDacl should not be dangerous under the override file")
	}
	if !cfg.IsDangerousRight("GenericAll") {
		t.Error("GenericAll should stay dangerous under the override file")
	}
}

// =============================================================================
// Validation TESTS
// =============================================================================

func TestLoadRejectsInvalidSets(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "empty set",
			content: `
safe_owners: []
safe_users: ['-512$']
unsafe_users: ['S-1-1-0']
dangerous_rights: ['GenericAll']
safe_object_types: ['abc']
`,
		},
		{
			name: "blank fragment",
			content: `
safe_owners: ['-512$', '  ']
safe_users: ['-512$']
unsafe_users: ['S-1-1-0']
dangerous_rights: ['GenericAll']
safe_object_types: ['abc']
`,
		},
		{
			name: "non-compiling fragment",
			content: `
safe_owners: ['-512$', '[']
safe_users: ['-512$']
unsafe_users: ['S-1-1-0']
dangerous_rights: ['GenericAll']
safe_object_types: ['abc']
`,
		},
		{
			name:    "not yaml",
			content: "{{{",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sets.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path, ModeReport); err == nil {
				t.Error("Load() succeeded, want configuration error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), ModeReport); err == nil {
		t.Error("Load() succeeded on a missing file, want error")
	}
}
