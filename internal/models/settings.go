package models

import "fmt"

// AutomationSettings is the process-wide, persisted automation configuration.
// When Enabled flips false to true every enabled SavedSearch is re-registered
// with the scheduler; the reverse transition cancels all registrations.
type AutomationSettings struct {
	Enabled              bool `json:"enabled"`
	MaxTabsOpen          int  `json:"maxTabsOpen"`
	CloseTabsAfterScan   bool `json:"closeTabsAfterScan"`
	NotifyOnNewFinds     bool `json:"notifyOnNewFinds"`
	PauseDuringActiveUse bool `json:"pauseDuringActiveUse"`
	// RetryAttempts is the number of in-job retries after a failed scan
	// attempt. 0 means a failed job waits for the next periodic fire.
	RetryAttempts int `json:"retryAttempts"`
}

// DefaultAutomationSettings returns the settings used before the user has
// saved any, and when the durable store is unavailable at startup.
func DefaultAutomationSettings() AutomationSettings {
	return AutomationSettings{
		Enabled:              false,
		MaxTabsOpen:          3,
		CloseTabsAfterScan:   true,
		NotifyOnNewFinds:     true,
		PauseDuringActiveUse: true,
		RetryAttempts:        0,
	}
}

// Validate checks that the settings are well formed
func (s *AutomationSettings) Validate() error {
	if s.MaxTabsOpen < 1 {
		return fmt.Errorf("maxTabsOpen must be at least 1, got %d", s.MaxTabsOpen)
	}
	if s.RetryAttempts < 0 {
		return fmt.Errorf("retryAttempts cannot be negative, got %d", s.RetryAttempts)
	}
	return nil
}
