package model

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// AdvisorID is the opaque directory id of an advisor. The directory may hand it
// out as a JSON string or a JSON number; both decode to the same string form.
type AdvisorID string

// UnmarshalJSON accepts both string and numeric ids.
func (id *AdvisorID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("advisor id: %w", err)
		}
		*id = AdvisorID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("advisor id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("advisor id %s is not an integer", n)
	}
	*id = AdvisorID(n.String())
	return nil
}

// Advisor represents a scientific advisor as stored in the directory
type Advisor struct {
	ID            AdvisorID `json:"id"`
	Name          string    `json:"last_name"`
	ResearchField string    `json:"research_field"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	BachelorLimit int       `json:"bachelors_limit"`
	MasterLimit   int       `json:"masters_limit"`
	PhDLimit      int       `json:"phd_limit"`
	// OfficeHours maps a weekday key to a free-text hours description.
	OfficeHours map[string]string `json:"office_hours"`
	// Calendar maps a "YYYY-MM" month key to that month's record.
	Calendar map[string]MonthRecord `json:"calendar,omitempty"`
}

// MonthRecord is the raw, unfiltered availability data for one month.
type MonthRecord struct {
	AvailableDays []int               `json:"available_days"`
	BusySlots     map[string][]string `json:"busy_slots"` // "YYYY-MM-DD" -> slot labels
}

// Validate checks the fields every advisor record must have.
func (a Advisor) Validate() error {
	if a.ID == "" {
		return &DataError{Key: "id", Reason: fmt.Sprintf("advisor %q has no id", a.Name)}
	}
	if a.Name == "" {
		return &DataError{Key: string(a.ID), Reason: "advisor has no last_name"}
	}
	return nil
}
