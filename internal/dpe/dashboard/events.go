package dashboard

import "dpehub_backend/platform/events"

// Event names published by the dashboard.
const (
	EventMapFocusRequested = "dpe.map_focus_requested"
	EventStatusChanged     = "dpe.status_changed"
)

// MapFocusRequested asks the map widget to center on and highlight a record.
type MapFocusRequested struct {
	events.BaseEvent
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	RecordID  string  `json:"id"`
}

// EventName implements events.Event.
func (MapFocusRequested) EventName() string { return EventMapFocusRequested }

// StatusChanged is published on every fetch status transition.
type StatusChanged struct {
	events.BaseEvent
	Commune string `json:"commune"`
	Status  Status `json:"status"`
	Total   int    `json:"total"`
}

// EventName implements events.Event.
func (StatusChanged) EventName() string { return EventStatusChanged }
