package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event. Stations are identified by the
// self-reported actor name and an optional station id, not by account.
type ActorRef struct {
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	StationID *string `json:"stationId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
