// Package types provides common type definitions for the deal scanner system.
package types

// Platform represents a supported marketplace
type Platform string

const (
	// PlatformEbay represents the eBay marketplace
	PlatformEbay Platform = "ebay"
	// PlatformMercari represents the Mercari marketplace
	PlatformMercari Platform = "mercari"
	// PlatformCraigslist represents the Craigslist marketplace
	PlatformCraigslist Platform = "craigslist"
)

// ValidPlatform reports whether p is a known marketplace
func ValidPlatform(p Platform) bool {
	switch p {
	case PlatformEbay, PlatformMercari, PlatformCraigslist:
		return true
	}
	return false
}

// IdleState represents the user's activity state relative to a threshold
type IdleState string

const (
	// StateActive means the user is currently using the host environment
	StateActive IdleState = "active"
	// StateIdle means the user has been inactive past the threshold
	StateIdle IdleState = "idle"
)

// ScanFailureReason classifies why a scan job failed
type ScanFailureReason string

const (
	// FailTabCreate means the automation tab could not be opened
	FailTabCreate ScanFailureReason = "tab_create"
	// FailLoadTimeout means the page did not finish loading in time
	FailLoadTimeout ScanFailureReason = "load_timeout"
	// FailInjection means the field extractor could not be injected
	FailInjection ScanFailureReason = "injection"
	// FailScanError means the extractor ran but reported failure
	FailScanError ScanFailureReason = "scan_error"
	// FailNoResponse means the scan command timed out without a response
	FailNoResponse ScanFailureReason = "no_response"
	// FailCircuitOpen means the platform's circuit breaker rejected the scan
	FailCircuitOpen ScanFailureReason = "circuit_open"
)

// EventType represents the kind of an event log entry
type EventType string

const (
	// EventScanStarted records a scan job entering the running state
	EventScanStarted EventType = "scan_started"
	// EventScanCompleted records a scan job finishing successfully
	EventScanCompleted EventType = "scan_completed"
	// EventScanFailed records a scan job terminating with a failure
	EventScanFailed EventType = "scan_failed"
)

// JobState represents a scan job's position in its life cycle
type JobState string

const (
	// JobCreated is the initial state before any tab exists
	JobCreated JobState = "created"
	// JobTabOpened means a background tab was opened at the search URL
	JobTabOpened JobState = "tab_opened"
	// JobLoaded means the page finished loading
	JobLoaded JobState = "loaded"
	// JobScriptInjected means the field extractor was injected
	JobScriptInjected JobState = "script_injected"
	// JobScanTriggered means the scan command was sent
	JobScanTriggered JobState = "scan_triggered"
	// JobCollecting means a response arrived and results are being collected
	JobCollecting JobState = "collecting"
	// JobCompleted is the terminal success state
	JobCompleted JobState = "completed"
	// JobFailed is the terminal failure state
	JobFailed JobState = "failed"
)

// Terminal reports whether s is a terminal job state
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
