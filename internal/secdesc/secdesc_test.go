package secdesc

import (
	"encoding/binary"
	"reflect"
	"testing"

	"certmap/internal/domain"
)

// =============================================================================
// TEST HELPERS - binary descriptor builders
// =============================================================================

func sidBytes(subs ...uint32) []byte {
	b := make([]byte, 8+4*len(subs))
	b[0] = 1 // revision
	b[1] = byte(len(subs))
	b[7] = 5 // NT authority
	for i, sub := range subs {
		binary.LittleEndian.PutUint32(b[8+4*i:], sub)
	}
	return b
}

func aceBytes(aceType byte, mask uint32, sid []byte) []byte {
	size := 8 + len(sid)
	b := make([]byte, 0, size)
	b = append(b, aceType, 0)
	b = binary.LittleEndian.AppendUint16(b, uint16(size))
	b = binary.LittleEndian.AppendUint32(b, mask)
	return append(b, sid...)
}

func objectACEBytes(aceType byte, mask, flags uint32, guids [][]byte, sid []byte) []byte {
	size := 12 + len(sid)
	for _, g := range guids {
		size += len(g)
	}
	b := make([]byte, 0, size)
	b = append(b, aceType, 0)
	b = binary.LittleEndian.AppendUint16(b, uint16(size))
	b = binary.LittleEndian.AppendUint32(b, mask)
	b = binary.LittleEndian.AppendUint32(b, flags)
	for _, g := range guids {
		b = append(b, g...)
	}
	return append(b, sid...)
}

// sdBytes lays out header, DACL, then owner, with matching offsets.
func sdBytes(owner []byte, aces ...[]byte) []byte {
	daclSize := 0
	if len(aces) > 0 {
		daclSize = 8
		for _, a := range aces {
			daclSize += len(a)
		}
	}

	b := make([]byte, 20)
	b[0] = 1 // revision
	if owner != nil {
		binary.LittleEndian.PutUint32(b[4:8], uint32(20+daclSize))
	}
	if len(aces) > 0 {
		binary.LittleEndian.PutUint32(b[16:20], 20)
	}

	if len(aces) > 0 {
		dacl := make([]byte, 8)
		dacl[0] = 2 // ACL_REVISION_DS
		binary.LittleEndian.PutUint16(dacl[2:4], uint16(daclSize))
		binary.LittleEndian.PutUint16(dacl[4:6], uint16(len(aces)))
		b = append(b, dacl...)
		for _, a := range aces {
			b = append(b, a...)
		}
	}
	return append(b, owner...)
}

// enrollGUIDWire is 0e10c968-78fb-11d2-90d4-00c04f79dc55 in on-wire
// mixed-endian form.
var enrollGUIDWire = []byte{
	0x68, 0xc9, 0x10, 0x0e,
	0xfb, 0x78,
	0xd2, 0x11,
	0x90, 0xd4, 0x00, 0xc0, 0x4f, 0x79, 0xdc, 0x55,
}

// =============================================================================
// ParseSID TESTS
// =============================================================================

func TestParseSID(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"authenticated users", sidBytes(11), "S-1-5-11"},
		{"domain group", sidBytes(21, 1111111111, 2222222222, 3333333333, 512), "S-1-5-21-1111111111-2222222222-3333333333-512"},
		{"no sub-authorities", sidBytes(), "S-1-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSID(tt.in)
			if err != nil {
				t.Fatalf("ParseSID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseSID() = %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("world authority", func(t *testing.T) {
		b := sidBytes(0)
		b[7] = 1
		got, err := ParseSID(b)
		if err != nil || got != "S-1-1-0" {
			t.Errorf("ParseSID() = %s, %v; want S-1-1-0", got, err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := ParseSID([]byte{1, 1}); err == nil {
			t.Error("short sid accepted")
		}
		if _, err := ParseSID(sidBytes(11, 12)[:10]); err == nil {
			t.Error("truncated sub-authorities accepted")
		}
	})
}

// =============================================================================
// Parse TESTS
// =============================================================================

func TestParseOwnerAndACEs(t *testing.T) {
	owner := sidBytes(21, 1, 2, 3, 512)
	helpdesk := sidBytes(21, 1, 2, 3, 1104)

	sd := sdBytes(owner,
		aceBytes(aceTypeAccessAllowed, maskControlAccess, sidBytes(11)),
		aceBytes(aceTypeAccessAllowed, maskWriteDacl|maskWriteOwner, helpdesk),
		aceBytes(aceTypeAccessDenied, maskGenericAll, helpdesk),
	)

	gotOwner, aces, err := Parse(sd)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if gotOwner != "S-1-5-21-1-2-3-512" {
		t.Errorf("owner = %s, want S-1-5-21-1-2-3-512", gotOwner)
	}

	want := []domain.AccessControlEntry{
		{IdentityReference: "S-1-5-11", Rights: []string{"ExtendedRight"}, AccessControlType: domain.AccessAllow},
		{IdentityReference: "S-1-5-21-1-2-3-1104", Rights: []string{"WriteDacl", "WriteOwner"}, AccessControlType: domain.AccessAllow},
		{IdentityReference: "S-1-5-21-1-2-3-1104", Rights: []string{"GenericAll"}, AccessControlType: domain.AccessDeny},
	}
	if !reflect.DeepEqual(aces, want) {
		t.Errorf("aces = %+v\nwant %+v", aces, want)
	}
}

func TestParseMaskMapping(t *testing.T) {
	tests := []struct {
		name string
		mask uint32
		want []string
	}{
		{"generic all bit", maskGenericAll, []string{"GenericAll"}},
		{"expanded full control", maskFullControl, []string{"GenericAll"}},
		{"write property", maskWriteProperty, []string{"WriteProperty"}},
		{"control access", maskControlAccess, []string{"ExtendedRight"}},
		{"delete", maskDelete, []string{"Delete"}},
		{"combined", maskWriteDacl | maskWriteProperty | maskControlAccess, []string{"WriteDacl", "WriteProperty", "ExtendedRight"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sd := sdBytes(nil, aceBytes(aceTypeAccessAllowed, tt.mask, sidBytes(11)))
			_, aces, err := Parse(sd)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(aces) != 1 {
				t.Fatalf("got %d aces, want 1", len(aces))
			}
			if !reflect.DeepEqual(aces[0].Rights, tt.want) {
				t.Errorf("Rights = %v, want %v", aces[0].Rights, tt.want)
			}
		})
	}

	t.Run("read-only mask is dropped", func(t *testing.T) {
		sd := sdBytes(nil, aceBytes(aceTypeAccessAllowed, 0x00000004, sidBytes(11)))
		_, aces, err := Parse(sd)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(aces) != 0 {
			t.Errorf("got %d aces, want 0", len(aces))
		}
	})
}

func TestParseObjectACE(t *testing.T) {
	t.Run("object type guid is decoded", func(t *testing.T) {
		sd := sdBytes(nil, objectACEBytes(
			aceTypeAccessAllowedObject, maskControlAccess, aceObjectTypePresent,
			[][]byte{enrollGUIDWire}, sidBytes(11)))
		_, aces, err := Parse(sd)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(aces) != 1 {
			t.Fatalf("got %d aces, want 1", len(aces))
		}
		if aces[0].ObjectType != "0e10c968-78fb-11d2-90d4-00c04f79dc55" {
			t.Errorf("ObjectType = %s, want the enroll right guid", aces[0].ObjectType)
		}
	})

	t.Run("inherited object type is skipped", func(t *testing.T) {
		sd := sdBytes(nil, objectACEBytes(
			aceTypeAccessAllowedObject, maskControlAccess,
			aceObjectTypePresent|aceInheritedObjectTypePresent,
			[][]byte{enrollGUIDWire, enrollGUIDWire}, sidBytes(11)))
		_, aces, err := Parse(sd)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(aces) != 1 || aces[0].IdentityReference != "S-1-5-11" {
			t.Fatalf("aces = %+v, want one entry for S-1-5-11", aces)
		}
	})

	t.Run("no guids when flags are clear", func(t *testing.T) {
		sd := sdBytes(nil, objectACEBytes(
			aceTypeAccessDeniedObject, maskGenericAll, 0, nil, sidBytes(11)))
		_, aces, err := Parse(sd)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(aces) != 1 || aces[0].AccessControlType != domain.AccessDeny || aces[0].ObjectType != "" {
			t.Fatalf("aces = %+v, want one deny entry with no object type", aces)
		}
	})
}

func TestParseEdgeCases(t *testing.T) {
	t.Run("no owner and no dacl", func(t *testing.T) {
		owner, aces, err := Parse(make([]byte, 20))
		if err != nil || owner != "" || len(aces) != 0 {
			t.Errorf("Parse(empty) = %q, %v, %v; want empty", owner, aces, err)
		}
	})

	t.Run("unknown ace type is skipped", func(t *testing.T) {
		// 0x11 is SYSTEM_MANDATORY_LABEL_ACE_TYPE.
		sd := sdBytes(nil,
			aceBytes(0x11, maskGenericAll, sidBytes(11)),
			aceBytes(aceTypeAccessAllowed, maskControlAccess, sidBytes(11)),
		)
		_, aces, err := Parse(sd)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(aces) != 1 || aces[0].Rights[0] != "ExtendedRight" {
			t.Errorf("aces = %+v, want only the allow entry", aces)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, _, err := Parse([]byte{1, 2, 3}); err == nil {
			t.Error("short descriptor accepted")
		}

		sd := sdBytes(nil, aceBytes(aceTypeAccessAllowed, maskControlAccess, sidBytes(11)))
		binary.LittleEndian.PutUint32(sd[4:8], uint32(len(sd)+10))
		if _, _, err := Parse(sd); err == nil {
			t.Error("out-of-range owner offset accepted")
		}

		sd = sdBytes(nil, aceBytes(aceTypeAccessAllowed, maskControlAccess, sidBytes(11)))
		// Corrupt the first ACE size past the end of the DACL.
		binary.LittleEndian.PutUint16(sd[20+8+2:], 0xFFFF)
		if _, _, err := Parse(sd); err == nil {
			t.Error("oversized ace accepted")
		}
	})
}
