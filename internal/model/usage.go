package model

import "time"

// UsageRecord is one fingerprint's usage row for a single UTC calendar day.
// The store assigns both timestamps; the record is never deleted — it simply
// stops mattering once the day rolls over and a new day key takes effect.
type UsageRecord struct {
	Fingerprint string    `db:"fingerprint" json:"fingerprint"`
	DayKey      string    `db:"day_key" json:"day_key"`
	Count       int       `db:"count" json:"count"`
	FirstUsedAt time.Time `db:"first_used_at" json:"first_used_at"`
	LastUsedAt  time.Time `db:"last_used_at" json:"last_used_at"`
}

// UsageStatus is the quota snapshot reported back to the caller.
type UsageStatus struct {
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Total     int       `json:"total"`
	ResetAt   time.Time `json:"reset_at"`
}
