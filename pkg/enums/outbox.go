package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateEntitlementRecord OutboxAggregateType = "entitlement_record"
	AggregateSession           OutboxAggregateType = "session"
	AggregateDirectory         OutboxAggregateType = "directory"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateEntitlementRecord,
	AggregateSession,
	AggregateDirectory,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventFamilyCheckedIn     OutboxEventType = "family_checked_in"
	EventPlatesServed        OutboxEventType = "plates_served"
	EventRecordAdjusted      OutboxEventType = "record_adjusted"
	EventRecordStatusChanged OutboxEventType = "record_status_changed"
	EventCheckInUndone       OutboxEventType = "check_in_undone"
	EventSessionReset        OutboxEventType = "session_reset"
	EventDirectorySynced     OutboxEventType = "directory_synced"
)

var validOutboxEventTypes = []OutboxEventType{
	EventFamilyCheckedIn,
	EventPlatesServed,
	EventRecordAdjusted,
	EventRecordStatusChanged,
	EventCheckInUndone,
	EventSessionReset,
	EventDirectorySynced,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
