package models

import (
	"fmt"
	"net/url"
	"time"

	"github.com/deal-scanner/internal/types"
)

// SavedSearch represents a user-configured, recurring marketplace query
// endpoint to be scanned. Owned exclusively by the search registry; mutated
// only through registry update operations.
type SavedSearch struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	URL            string                 `json:"url"`
	Platform       types.Platform         `json:"platform"`
	Enabled        bool                   `json:"enabled"`
	CadenceMinutes int                    `json:"cadenceMinutes"`
	Filters        map[string]interface{} `json:"filters,omitempty"` // opaque to the scheduler
	LastScanned    *time.Time             `json:"lastScanned,omitempty"`
	NextScan       *time.Time             `json:"nextScan,omitempty"`
	ResultsCount   int                    `json:"resultsCount"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// Cadence returns the scan interval as a duration
func (s *SavedSearch) Cadence() time.Duration {
	return time.Duration(s.CadenceMinutes) * time.Minute
}

// Validate checks that the search is well formed
func (s *SavedSearch) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("search name is required")
	}
	if s.URL == "" {
		return fmt.Errorf("search URL is required")
	}
	if u, err := url.Parse(s.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("search URL is not a valid absolute URL: %s", s.URL)
	}
	if !types.ValidPlatform(s.Platform) {
		return fmt.Errorf("unknown platform: %s", s.Platform)
	}
	if s.CadenceMinutes <= 0 {
		return fmt.Errorf("cadence must be a positive number of minutes, got %d", s.CadenceMinutes)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate registry state
func (s *SavedSearch) Clone() *SavedSearch {
	out := *s
	if s.Filters != nil {
		out.Filters = make(map[string]interface{}, len(s.Filters))
		for k, v := range s.Filters {
			out.Filters[k] = v
		}
	}
	if s.LastScanned != nil {
		t := *s.LastScanned
		out.LastScanned = &t
	}
	if s.NextScan != nil {
		t := *s.NextScan
		out.NextScan = &t
	}
	return &out
}
