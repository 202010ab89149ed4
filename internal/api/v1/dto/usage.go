package dto

import "time"

// UsageRequestDTO asks for the quota snapshot of the client described by the
// signals.
type UsageRequestDTO struct {
	Signals ClientSignalsDTO `json:"signals"`
}

// UsageResponseDTO reports current daily usage. It is display-only; the
// authoritative check happens when an analysis is requested.
type UsageResponseDTO struct {
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Total     int       `json:"total"`
	ResetAt   time.Time `json:"reset_at"`
}
