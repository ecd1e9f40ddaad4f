package models

import (
	"time"

	"github.com/deal-scanner/internal/types"
)

// EventLogEntry is one record in the bounded scheduling/execution event log
type EventLogEntry struct {
	Type      types.EventType `json:"type"`
	SearchID  string          `json:"searchId"`
	Timestamp time.Time       `json:"timestamp"`
	Detail    string          `json:"detail,omitempty"`
}
