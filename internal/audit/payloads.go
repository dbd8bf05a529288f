package audit

import (
	"encoding/json"

	"github.com/priyamehta/platetrack-backend/pkg/enums"
)

// Payload shapes are fixed per action kind so audit entries stay
// machine-checkable. Each snapshot is stored as the entry's before or after
// value; the action kind tells a reader which shape to decode.

// CheckInResult is the after value of a CHECK_IN entry.
type CheckInResult struct {
	Entitled    int `json:"entitled"`
	ExtraGuests int `json:"extra_guests"`
}

// ServeSnapshot is the before/after value of a SERVE entry.
type ServeSnapshot struct {
	Used int `json:"used"`
}

// RecordSnapshot is the before/after value of ADJUST, CLOSE, REOPEN and
// UNDO_CHECK_IN entries.
type RecordSnapshot struct {
	Entitled int                `json:"entitled"`
	Used     int                `json:"used"`
	Status   enums.RecordStatus `json:"status"`
}

// ResetSummary is the before value of a RESET entry: the aggregate statistics
// of the session being archived. Individual ledger rows do not survive a
// reset; this summary is all that remains of them.
type ResetSummary struct {
	SessionName       string `json:"session_name"`
	FamiliesCheckedIn int64  `json:"families_checked_in"`
	PlatesServed      int64  `json:"plates_served"`
	Capacity          int64  `json:"capacity"`
}

// SyncSummary is the after value of a SYNC entry.
type SyncSummary struct {
	Total       int `json:"total"`
	Synced      int `json:"synced"`
	Skipped     int `json:"skipped"`
	BatchErrors int `json:"batch_errors"`
}

// EncodePayload marshals a typed snapshot for storage in a jsonb column.
func EncodePayload(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
