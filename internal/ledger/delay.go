package ledger

import (
	"fmt"
	"time"
)

// DelayRecord is one justified date shift on an order or an assembly task.
// A record is only ever appended, never edited, so the cumulative fields on
// the parent can always be recomputed from the list.
type DelayRecord struct {
	ID                    string `json:"id"`
	OriginalDate          string `json:"originalDate"`
	NewDate               string `json:"newDate"`
	DelayDays             int    `json:"delayDays"`
	Reason                string `json:"reason"`
	ResponsiblePersonID   string `json:"responsiblePersonId"`
	ResponsiblePersonName string `json:"responsiblePersonName"`
	Note                  string `json:"note,omitempty"`
	CreatedAt             string `json:"createdAt"`
}

// DelayDays returns newDate - originalDate in whole days. Dates are ISO
// strings, only the date part is compared.
func DelayDays(originalDate, newDate string) (int, error) {
	orig, err := parseDay(originalDate)
	if err != nil {
		return 0, fmt.Errorf("invalid original date %q: %w", originalDate, err)
	}
	next, err := parseDay(newDate)
	if err != nil {
		return 0, fmt.Errorf("invalid new date %q: %w", newDate, err)
	}
	return int(next.Sub(orig).Hours() / 24), nil
}

func parseDay(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}

// NewDelayRecord validates and builds a delay record. Recorded delays are
// always positive, a zero or backward shift is not a delay.
func NewDelayRecord(id, originalDate, newDate, reason, personID, personName, note, createdAt string) (DelayRecord, error) {
	days, err := DelayDays(originalDate, newDate)
	if err != nil {
		return DelayRecord{}, err
	}
	if days <= 0 {
		return DelayRecord{}, fmt.Errorf("new date must be after the original date")
	}
	if reason == "" {
		return DelayRecord{}, fmt.Errorf("delay reason is required")
	}
	if personID == "" {
		return DelayRecord{}, fmt.Errorf("responsible person is required for a delay")
	}
	return DelayRecord{
		ID:                    id,
		OriginalDate:          originalDate,
		NewDate:               newDate,
		DelayDays:             days,
		Reason:                reason,
		ResponsiblePersonID:   personID,
		ResponsiblePersonName: personName,
		Note:                  note,
		CreatedAt:             createdAt,
	}, nil
}

// TotalDelayDays sums the ledger. The stored totalDelayDays on the parent is
// only a denormalized cache of this value.
func TotalDelayDays(delays []DelayRecord) int {
	total := 0
	for _, d := range delays {
		total += d.DelayDays
	}
	return total
}

func IsDelayed(delays []DelayRecord) bool {
	return TotalDelayDays(delays) > 0
}
