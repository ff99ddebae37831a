package calendar

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var eventIDPattern = regexp.MustCompile(`^[0-9a-v]+$`)

func TestEventID(t *testing.T) {
	t.Run("Should be deterministic for the same key and index", func(t *testing.T) {
		assert.Equal(t, EventID("abc", 0), EventID("abc", 0))
	})

	t.Run("Should differ across indexes and keys", func(t *testing.T) {
		assert.NotEqual(t, EventID("abc", 0), EventID("abc", 1))
		assert.NotEqual(t, EventID("abc", 0), EventID("abd", 0))
	})

	t.Run("Should only use the base32hex alphabet and append the index", func(t *testing.T) {
		for _, idx := range []int{0, 5, 31, 32, 100} {
			id := EventID("workflow-1", idx)
			assert.Regexp(t, eventIDPattern, id)
			assert.GreaterOrEqual(t, len(id), eventIDHashLength+1)
		}
		assert.Len(t, EventID("k", 3), 27)
		assert.Equal(t, "10", EventID("k", 32)[eventIDHashLength:])
	})
}
