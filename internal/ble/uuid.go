package ble

import "strings"

// CanonicalUUID lowercases a UUID and, for a bare 32-digit hex string,
// inserts the dashes. Anything else is returned trimmed and lowercased.
func CanonicalUUID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 32 && !strings.Contains(s, "-") {
		return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
	}
	return s
}

// IsUUID reports whether s is a canonical (lowercase, dashed) 128-bit UUID.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
				return false
			}
		}
	}
	return true
}
