package model

import (
	"strings"
	"time"
)

// StatsTimeLayout is the timestamp format used on the stats wire protocol.
const StatsTimeLayout = "2006-01-02 15:04:05"

// StatsTime is a time.Time that (un)marshals using StatsTimeLayout.
type StatsTime struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t StatsTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(StatsTimeLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *StatsTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := time.Parse(StatsTimeLayout, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Hit is one recorded request to a public endpoint.
type Hit struct {
	App       string    `json:"app" validate:"required,max=32"`
	URI       string    `json:"uri" validate:"required,max=128"`
	IP        string    `json:"ip" validate:"required,max=45"`
	Timestamp StatsTime `json:"timestamp"`
}

// ViewStats is the aggregated hit count of one URI.
type ViewStats struct {
	App  string `json:"app" db:"app"`
	URI  string `json:"uri" db:"uri"`
	Hits int64  `json:"hits" db:"hits"`
}

// EventURI is the public URI of an event, used as the stats key.
func EventURI(eventID string) string {
	return "/events/" + eventID
}
