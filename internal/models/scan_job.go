package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/deal-scanner/internal/types"
)

// ScanJob is one scheduled or manually triggered execution attempt of a
// SavedSearch's scan. Jobs live only in the execution queue and are never
// persisted. State is advanced by the runner as the job moves through the
// tab life cycle.
type ScanJob struct {
	JobID      string         `json:"jobId"`
	SearchID   string         `json:"searchId"`
	State      types.JobState `json:"state"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
	Attempt    int            `json:"attempt"`
}

// NewScanJob creates a first-attempt job for a search
func NewScanJob(searchID string) *ScanJob {
	return &ScanJob{
		JobID:      uuid.New().String(),
		SearchID:   searchID,
		State:      types.JobCreated,
		EnqueuedAt: time.Now(),
		Attempt:    1,
	}
}
