package audit

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewExecutionID mints an identifier like exec_20250401_120503_9f2c41ab.
// The timestamp prefix keeps ids sortable in logs; the random suffix keeps
// concurrent executions within the same second unique.
func NewExecutionID(now time.Time) string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// id minting never errors; nanoseconds stand in if the source fails
		return fmt.Sprintf("exec_%s_%09d", now.UTC().Format("20060102_150405"), now.Nanosecond())
	}
	return fmt.Sprintf("exec_%s_%s", now.UTC().Format("20060102_150405"), hex.EncodeToString(suffix))
}
