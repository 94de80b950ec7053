package types

import "time"

// BasinRunMessage is the SQS payload that asks the forecast worker to run
// every eligible sensor of a river basin. JSON tags use snake_case to match
// the rest of the API surface.
type BasinRunMessage struct {
	RunID          string    `json:"run_id"`
	RiverBasinCode string    `json:"river_basin_code"`
	OnlyActive     *bool     `json:"only_active,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`

	// Observability
	TraceID string `json:"trace_id"`
}

// ActiveOnly reports whether the run is limited to active sensors. An
// absent only_active means true, as on the HTTP API.
func (m BasinRunMessage) ActiveOnly() bool {
	return m.OnlyActive == nil || *m.OnlyActive
}
