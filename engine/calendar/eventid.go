package calendar

import (
	"crypto/sha256"
	"encoding/base32"
	"strconv"
	"strings"
)

const eventIDHashLength = 26

var eventIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// EventID derives the remote id of the event for subtask index under key.
// The result only uses the base32hex alphabet (0-9, a-v) so the calendar
// accepts it, and is stable for a given key and index.
func EventID(key string, index int) string {
	sum := sha256.Sum256([]byte(key + ":" + strconv.Itoa(index)))
	encoded := strings.ToLower(eventIDEncoding.EncodeToString(sum[:]))
	return encoded[:eventIDHashLength] + strconv.FormatInt(int64(index), 32)
}
