package models

import "time"

// StatusChange announces an accepted status change to other terminals.
// It is a hint to refresh, never a source of truth.
type StatusChange struct {
	ItemID       int64          `json:"item_id"`
	Mattress     string         `json:"mattress,omitempty"`
	Status       MattressStatus `json:"status"`
	FromStatus   MattressStatus `json:"from_status,omitempty"`
	Device       string         `json:"device"`
	SourceDevice string         `json:"source_device,omitempty"`
	SourceID     string         `json:"source_id,omitempty"`
	At           time.Time      `json:"at"`
}
