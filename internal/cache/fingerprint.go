package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Fingerprint derives the cache key for an upload from its filename and
// size in bytes. Deliberately coarse: two uploads with the same name and
// size share a transcript, which is the desired behavior for re-uploads
// of the same recording.
func Fingerprint(filename string, sizeBytes int64) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d", filename, sizeBytes)))
	return hex.EncodeToString(sum[:])[:16]
}
