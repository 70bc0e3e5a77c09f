package receiptno

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// tokenCounter disambiguates tokens generated within one millisecond.
var tokenCounter atomic.Uint64

// NewToken returns a sortable receipt identifier derived from the current
// time, safe against same-millisecond collisions within one process.
// Form: PREFIX-<millis base36>-<counter base36>, lexically ordered by time.
func NewToken(prefix string) string {
	millis := time.Now().UnixMilli()
	seq := tokenCounter.Add(1) % (36 * 36 * 36)
	return fmt.Sprintf("%s-%s-%s",
		prefix,
		pad(strings.ToUpper(formatBase36(millis)), 9),
		pad(strings.ToUpper(formatBase36(int64(seq))), 3),
	)
}

func formatBase36(v int64) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%36]
		v /= 36
	}
	return string(buf[i:])
}

func pad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
