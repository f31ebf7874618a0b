// Package dedup decides whether a normalized scholarship is new or already
// known, and persists it accordingly.
package dedup

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// namespace scopes fingerprints so they never collide with other UUIDv5 users.
var namespace = uuid.MustParse("6f1c2a0e-5b7d-4c1e-9a3f-8e2d4b6c0a11")

// Fingerprint returns the stable identity of a scholarship: a UUIDv5 over the
// case-folded, whitespace-collapsed name, organization and deadline. Each
// field is length-prefixed so field boundaries cannot shift.
func Fingerprint(name, organization, deadline string) string {
	var key strings.Builder
	for _, f := range []string{canon(name), canon(organization), canon(deadline)} {
		key.WriteString(strconv.Itoa(len(f)))
		key.WriteByte(':')
		key.WriteString(f)
	}
	return uuid.NewSHA1(namespace, []byte(key.String())).String()
}

func canon(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
