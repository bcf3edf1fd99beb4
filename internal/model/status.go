package model

import "encoding/json"

// Status represents the overall result of a crawl run.
type Status int

const (
	// StatusSucceeded means every page was fetched and the sitemap was written.
	StatusSucceeded Status = iota

	// StatusPartial means the sitemap was written but some pages could not
	// be fetched and were left out.
	StatusPartial

	// StatusFailed means the run stopped before a sitemap was written.
	StatusFailed
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "SUCCEEDED"
	case StatusPartial:
		return "PARTIAL"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status encoded by MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = ParseStatus(name)
	return nil
}

// ParseStatus converts a name produced by String back into a Status.
// Unknown names yield StatusFailed.
func ParseStatus(name string) Status {
	switch name {
	case "SUCCEEDED":
		return StatusSucceeded
	case "PARTIAL":
		return StatusPartial
	default:
		return StatusFailed
	}
}
