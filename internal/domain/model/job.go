package model

import "time"

// ScanRequest is a unit of work handed to the scan workers.
type ScanRequest struct {
	ID          string    `json:"id"`
	Prefix      string    `json:"prefix,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}
