package models

import "time"

// OperatorType distinguishes the floor role of an operator
type OperatorType string

const (
	OperatorSpreader OperatorType = "spreader"
	OperatorCutter   OperatorType = "cutter"
)

// Operator is a person working a shared device terminal.
// Operators are not users: many operators share one device login.
type Operator struct {
	ID        int64        `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Type      OperatorType `db:"type" json:"type"`
	Active    bool         `db:"active" json:"active"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// OperatorRequest is used for operator creation
type OperatorRequest struct {
	Name string       `json:"name"`
	Type OperatorType `json:"type"`
}

// Valid reports whether t is a known operator type
func (t OperatorType) Valid() bool {
	return t == OperatorSpreader || t == OperatorCutter
}
