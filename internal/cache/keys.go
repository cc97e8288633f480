package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key families, also used as metric labels.
const (
	FamilyUser = "user"
	FamilyScan = "scan"
	FamilyIdP  = "idp"
	FamilyFeed = "feed"
)

const (
	ScanKey     = "users:all"
	IdPUsersKey = "idp:users"
)

// UserKey is the per-email record key.
func UserKey(email string) string {
	return "users:email:" + email
}

// IdPGroupKey caches the member list of one IdP group.
func IdPGroupKey(groupID string) string {
	return "idp:group:" + groupID
}

// FeedKey hashes the link so arbitrary URLs make safe, bounded keys.
func FeedKey(link string) string {
	sum := sha256.Sum256([]byte(link))
	return "feed:" + hex.EncodeToString(sum[:])
}
