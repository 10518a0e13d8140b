package tracker

import (
	"crypto/md5" //nolint:gosec // identifier, not a security primitive
	"encoding/hex"
)

// IDLength is the number of hex characters kept from the URL digest.
const IDLength = 12

// Fingerprint derives the application ID from the exact URL string. URLs are
// not normalized: a trailing slash or reordered query string yields a
// different ID.
func Fingerprint(url string) string {
	sum := md5.Sum([]byte(url)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:IDLength]
}
