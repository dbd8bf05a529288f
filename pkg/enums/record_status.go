package enums

import "fmt"

// RecordStatus is the lifecycle state of an entitlement record. A family with
// no record at all is simply not checked in; there is no explicit state for it.
type RecordStatus string

const (
	RecordStatusActive    RecordStatus = "active"
	RecordStatusExhausted RecordStatus = "exhausted"
	RecordStatusClosed    RecordStatus = "closed"
)

var validRecordStatuses = []RecordStatus{
	RecordStatusActive,
	RecordStatusExhausted,
	RecordStatusClosed,
}

// IsValid reports whether the value matches the canonical record status enum.
func (s RecordStatus) IsValid() bool {
	for _, candidate := range validRecordStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRecordStatus converts raw input into RecordStatus.
func ParseRecordStatus(value string) (RecordStatus, error) {
	for _, candidate := range validRecordStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid record status %q", value)
}
