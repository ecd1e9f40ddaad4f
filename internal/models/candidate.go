package models

import (
	"time"

	"github.com/deal-scanner/internal/types"
)

// Candidate is a raw discovered listing record returned by a scan, pending
// valuation. ID is assigned by the source marketplace and doubles as the
// dedup key in the result store.
type Candidate struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Price     float64        `json:"price"`
	URL       string         `json:"url,omitempty"`
	Platform  types.Platform `json:"platform"`
	FoundVia  string         `json:"foundVia"`
	SearchID  string         `json:"searchId"`
	ScannedAt time.Time      `json:"scannedAt"`
}
