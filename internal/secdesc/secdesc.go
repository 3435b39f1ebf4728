// Package secdesc parses self-relative NT security descriptors as returned
// in the nTSecurityDescriptor attribute, extracting the owner SID and the
// ordered DACL entries in the named-rights form the detectors consume.
package secdesc

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"certmap/internal/domain"
)

// ACE type bytes we understand; everything else is skipped.
const (
	aceTypeAccessAllowed       = 0x00
	aceTypeAccessDenied        = 0x01
	aceTypeAccessAllowedObject = 0x05
	aceTypeAccessDeniedObject  = 0x06
)

// Object ACE presence flags.
const (
	aceObjectTypePresent          = 0x1
	aceInheritedObjectTypePresent = 0x2
)

// Directory service access mask bits.
const (
	maskWriteProperty = 0x00000020
	maskControlAccess = 0x00000100
	maskDelete        = 0x00010000
	maskWriteDacl     = 0x00040000
	maskWriteOwner    = 0x00080000
	maskGenericAll    = 0x10000000
	// maskFullControl is the expanded form servers store instead of
	// GENERIC_ALL on directory objects.
	maskFullControl = 0x000F01FF
)

// ParseSID renders a binary SID in S-1-... string form.
func ParseSID(b []byte) (string, error) {
	if len(b) < 8 {
		return "", fmt.Errorf("sid too short: %d bytes", len(b))
	}
	revision := b[0]
	subCount := int(b[1])
	if len(b) < 8+4*subCount {
		return "", fmt.Errorf("sid truncated: %d sub-authorities in %d bytes", subCount, len(b))
	}
	// 48-bit big-endian identifier authority
	authority := uint64(0)
	for _, by := range b[2:8] {
		authority = authority<<8 | uint64(by)
	}
	s := "S-" + strconv.Itoa(int(revision)) + "-" + strconv.FormatUint(authority, 10)
	for i := 0; i < subCount; i++ {
		sub := binary.LittleEndian.Uint32(b[8+4*i:])
		s += "-" + strconv.FormatUint(uint64(sub), 10)
	}
	return s, nil
}

// sidLength returns the byte length of the SID at the start of b.
func sidLength(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("sid header truncated")
	}
	n := 8 + 4*int(b[1])
	if len(b) < n {
		return 0, fmt.Errorf("sid truncated")
	}
	return n, nil
}

// guidString renders a mixed-endian on-wire GUID in canonical form.
func guidString(b []byte) string {
	var g uuid.UUID
	// data1..data3 are little-endian on the wire, the rest is verbatim
	binary.BigEndian.PutUint32(g[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(g[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(g[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(g[8:], b[8:16])
	return g.String()
}

// rightsFromMask expands an access mask into the named rights the detectors
// and the configured dangerous-rights set understand.
func rightsFromMask(mask uint32) []string {
	if mask&maskGenericAll != 0 || mask&maskFullControl == maskFullControl {
		return []string{"GenericAll"}
	}
	var rights []string
	if mask&maskWriteDacl != 0 {
		rights = append(rights, "WriteDacl")
	}
	if mask&maskWriteOwner != 0 {
		rights = append(rights, "WriteOwner")
	}
	if mask&maskWriteProperty != 0 {
		rights = append(rights, "WriteProperty")
	}
	if mask&maskControlAccess != 0 {
		rights = append(rights, "ExtendedRight")
	}
	if mask&maskDelete != 0 {
		rights = append(rights, "Delete")
	}
	return rights
}

// Parse decodes a self-relative security descriptor into the owner SID and
// the DACL entries in stored order. ACE types other than the four
// allow/deny variants are skipped, as are ACEs whose mask carries none of
// the named rights.
func Parse(b []byte) (owner string, aces []domain.AccessControlEntry, err error) {
	if len(b) < 20 {
		return "", nil, fmt.Errorf("security descriptor too short: %d bytes", len(b))
	}
	offsetOwner := binary.LittleEndian.Uint32(b[4:8])
	offsetDacl := binary.LittleEndian.Uint32(b[16:20])

	if offsetOwner != 0 {
		if int(offsetOwner) >= len(b) {
			return "", nil, fmt.Errorf("owner offset %d out of range", offsetOwner)
		}
		owner, err = ParseSID(b[offsetOwner:])
		if err != nil {
			return "", nil, fmt.Errorf("bad owner sid: %w", err)
		}
	}

	if offsetDacl == 0 {
		return owner, nil, nil
	}
	if int(offsetDacl)+8 > len(b) {
		return "", nil, fmt.Errorf("dacl offset %d out of range", offsetDacl)
	}
	dacl := b[offsetDacl:]
	aceCount := int(binary.LittleEndian.Uint16(dacl[4:6]))

	pos := 8
	for i := 0; i < aceCount; i++ {
		if pos+4 > len(dacl) {
			return "", nil, fmt.Errorf("ace %d header truncated", i)
		}
		aceType := dacl[pos]
		aceSize := int(binary.LittleEndian.Uint16(dacl[pos+2 : pos+4]))
		if aceSize < 4 || pos+aceSize > len(dacl) {
			return "", nil, fmt.Errorf("ace %d size %d out of range", i, aceSize)
		}
		body := dacl[pos+4 : pos+aceSize]
		pos += aceSize

		ace, ok, err := parseACE(aceType, body)
		if err != nil {
			return "", nil, fmt.Errorf("ace %d: %w", i, err)
		}
		if ok {
			aces = append(aces, ace)
		}
	}
	return owner, aces, nil
}

func parseACE(aceType byte, body []byte) (domain.AccessControlEntry, bool, error) {
	var ace domain.AccessControlEntry

	switch aceType {
	case aceTypeAccessAllowed, aceTypeAccessAllowedObject:
		ace.AccessControlType = domain.AccessAllow
	case aceTypeAccessDenied, aceTypeAccessDeniedObject:
		ace.AccessControlType = domain.AccessDeny
	default:
		return ace, false, nil
	}

	if len(body) < 4 {
		return ace, false, fmt.Errorf("mask truncated")
	}
	mask := binary.LittleEndian.Uint32(body[:4])
	rest := body[4:]

	if aceType == aceTypeAccessAllowedObject || aceType == aceTypeAccessDeniedObject {
		if len(rest) < 4 {
			return ace, false, fmt.Errorf("object flags truncated")
		}
		flags := binary.LittleEndian.Uint32(rest[:4])
		rest = rest[4:]
		if flags&aceObjectTypePresent != 0 {
			if len(rest) < 16 {
				return ace, false, fmt.Errorf("object type guid truncated")
			}
			ace.ObjectType = guidString(rest[:16])
			rest = rest[16:]
		}
		if flags&aceInheritedObjectTypePresent != 0 {
			if len(rest) < 16 {
				return ace, false, fmt.Errorf("inherited object type guid truncated")
			}
			rest = rest[16:]
		}
	}

	sid, err := ParseSID(rest)
	if err != nil {
		return ace, false, err
	}
	ace.IdentityReference = sid
	ace.Rights = rightsFromMask(mask)
	if len(ace.Rights) == 0 {
		return ace, false, nil
	}
	return ace, true, nil
}
