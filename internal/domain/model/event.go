package model

import "time"

// EventKind names a progress event emitted during a scan.
type EventKind string

// Progress event kinds.
const (
	EventScanStarted     EventKind = "scan_started"
	EventCandidateFound  EventKind = "candidate_found"
	EventExtractFailed   EventKind = "extract_failed"
	EventOCRComplete     EventKind = "ocr_complete"
	EventRosterRejected  EventKind = "roster_rejected"
	EventRosterPending   EventKind = "roster_pending"
	EventRosterConfirmed EventKind = "roster_confirmed"
	EventScanStopped     EventKind = "scan_stopped"
)

// Event is a human-readable progress notification.
type Event struct {
	ScanID  string    `json:"scan_id"`
	Kind    EventKind `json:"kind"`
	Frame   int       `json:"frame,omitempty"`
	Team    string    `json:"team,omitempty"`
	Score   float64   `json:"score,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
