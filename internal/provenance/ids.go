package provenance

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	idMu       sync.Mutex
	idLastMS   int64
	idSequence int64
)

// NewMessageID returns a message id in the server's format: "msg_", twelve
// hex digits that sort by creation time, then a random suffix. The server
// keeps client-supplied ids as long as they sort after existing ones.
func NewMessageID() string {
	return newMessageID(time.Now())
}

func newMessageID(now time.Time) string {
	idMu.Lock()
	ms := now.UnixMilli()
	if ms != idLastMS {
		idLastMS = ms
		idSequence = 0
	}
	idSequence++
	value := (ms*0x1000 + idSequence) & 0xffffffffffff
	idMu.Unlock()

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("msg_%012x%s", value, suffix[:14])
}
