package models

import (
	"strings"
	"time"
)

// MattressStatus is the lifecycle state of a mattress
type MattressStatus string

const (
	StatusToLoad    MattressStatus = "1 - TO LOAD"
	StatusOnSpread  MattressStatus = "2 - ON SPREAD"
	StatusToCut     MattressStatus = "3 - TO CUT"
	StatusOnCut     MattressStatus = "4 - ON CUT"
	StatusCompleted MattressStatus = "5 - COMPLETED"
)

// Shift buckets used by the spreader queue
const (
	Shift1 = "1shift"
	Shift2 = "2shift"
)

// Device prefixes
const (
	SpreaderPrefix = "SP"
	CutterPrefix   = "CT"
)

// Item types that skip the cutting stage
const (
	ItemTypeASW = "ASW"
	ItemTypeASB = "ASB"
)

// Valid reports whether s is a known status
func (s MattressStatus) Valid() bool {
	switch s {
	case StatusToLoad, StatusOnSpread, StatusToCut, StatusOnCut, StatusCompleted:
		return true
	}
	return false
}

// IsActive reports whether s is an in-progress sub-state (one per device)
func (s MattressStatus) IsActive() bool {
	return s == StatusOnSpread || s == StatusOnCut
}

// SkipsCutting reports whether an item of this type goes straight from
// spreading to completed.
func SkipsCutting(itemType string) bool {
	t := strings.ToUpper(strings.TrimSpace(itemType))
	return t == ItemTypeASW || t == ItemTypeASB
}

// NextStatus returns the status a mattress moves to from "from".
// The second result is false when "from" is terminal or unknown.
func NextStatus(from MattressStatus, itemType string) (MattressStatus, bool) {
	switch from {
	case StatusToLoad:
		return StatusOnSpread, true
	case StatusOnSpread:
		if SkipsCutting(itemType) {
			return StatusCompleted, true
		}
		return StatusToCut, true
	case StatusToCut:
		return StatusOnCut, true
	case StatusOnCut:
		return StatusCompleted, true
	}
	return "", false
}

// CanTransition reports whether from -> to is a forward edge of the lifecycle
func CanTransition(from, to MattressStatus, itemType string) bool {
	next, ok := NextStatus(from, itemType)
	return ok && next == to
}

// Mattress is a unit of spreading/cutting work
type Mattress struct {
	ID            int64          `db:"id" json:"id"`
	Mattress      string         `db:"mattress" json:"mattress"`
	Status        MattressStatus `db:"status" json:"status"`
	Device        string         `db:"device" json:"device"`
	Position      int            `db:"position" json:"position"`
	Shift         string         `db:"shift" json:"shift"`
	Day           string         `db:"day" json:"day"`
	ItemType      string         `db:"item_type" json:"item_type"`
	Layers        int            `db:"layers" json:"layers"`
	LayersA       *int           `db:"layers_a" json:"layers_a"`
	OrderCommessa string         `db:"order_commessa" json:"order_commessa"`
	FabricCode    string         `db:"fabric_code" json:"fabric_code"`
	FabricColor   string         `db:"fabric_color" json:"fabric_color"`
	DyeLot        string         `db:"dye_lot" json:"bagno"`
	Marker        string         `db:"marker" json:"marker"`
	Destination   string         `db:"destination" json:"destination"`
	Operator      *string        `db:"operator" json:"operator"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// StatusLogEntry records one accepted transition
type StatusLogEntry struct {
	ID         int64          `db:"id" json:"id"`
	MattressID int64          `db:"mattress_id" json:"mattress_id"`
	FromStatus MattressStatus `db:"from_status" json:"from_status"`
	ToStatus   MattressStatus `db:"to_status" json:"to_status"`
	Operator   string         `db:"operator" json:"operator"`
	Device     string         `db:"device" json:"device"`
	ChangedAt  time.Time      `db:"changed_at" json:"changed_at"`
}

// MattressRequest is used for mattress creation
type MattressRequest struct {
	Mattress      string `json:"mattress"`
	Device        string `json:"device"`
	Position      int    `json:"position"`
	Shift         string `json:"shift"`
	Day           string `json:"day"`
	ItemType      string `json:"item_type"`
	Layers        int    `json:"layers"`
	OrderCommessa string `json:"order_commessa"`
	FabricCode    string `json:"fabric_code"`
	FabricColor   string `json:"fabric_color"`
	DyeLot        string `json:"bagno"`
	Marker        string `json:"marker"`
	Destination   string `json:"destination"`
}

// StatusUpdateRequest is the body of PUT /mattress/update_status/{id}
type StatusUpdateRequest struct {
	Status                MattressStatus  `json:"status"`
	Operator              string          `json:"operator"`
	Device                string          `json:"device"`
	ExpectedCurrentStatus *MattressStatus `json:"expected_current_status,omitempty"`
}

// LayersUpdateRequest is the body of PUT /mattress/update_layers_a/{id}
type LayersUpdateRequest struct {
	LayersA int `json:"layers_a"`
}

// FinishSpreadingRequest writes the status and the actual layers together
type FinishSpreadingRequest struct {
	StatusUpdateRequest
	LayersA int `json:"layers_a"`
}
