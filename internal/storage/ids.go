package storage

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID builds the short prefixed ids used across all record kinds,
// e.g. JOB-3F29A1C4, PROD-0B77E2D1.
func NewID(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
}

// NowISO is the timestamp format stored in record documents.
func NowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000")
}

// Today is the date-only form used for delivery and planning dates.
func Today() string {
	return time.Now().UTC().Format("2006-01-02")
}
