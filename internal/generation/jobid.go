package generation

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

const jobIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewJobID generates a client-side job id of the form job_<ts36>_<rand6>.
// Uniqueness is probabilistic; collisions are not defended against beyond
// the generation scheme itself.
func NewJobID() string {
	var b strings.Builder
	b.WriteString("job_")
	b.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 36))
	b.WriteByte('_')

	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// Degrade to a time-derived suffix; the timestamp component still
		// separates concurrent retries within the same process.
		nano := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(nano >> (uint(i) * 8))
		}
	}
	for _, c := range buf {
		b.WriteByte(jobIDAlphabet[int(c)%len(jobIDAlphabet)])
	}
	return b.String()
}
