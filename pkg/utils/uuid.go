package utils

import (
	"strings"

	"github.com/google/uuid"

	"github.com/cockroachdb/errors"
)

// UUIDStr .
func UUIDStr() (string, error) {
	var u, err = uuid.NewUUID()
	if err != nil {
		return "", errors.Wrap(err, "NewUUID error")
	}
	return u.String(), nil
}

// CheckUUID .
func CheckUUID(raw string) (err error) {
	_, err = uuid.Parse(raw)
	return
}

// RandHexID renders a random 128-bit value as plain hex. Request ids use it
// so ids never repeat across reconnects.
func RandHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NamedUUID returns a placeholder usable as an OVSDB named-uuid. The leading
// letter keeps it from parsing as a real uuid.
func NamedUUID() string {
	return "a" + RandHexID()
}
