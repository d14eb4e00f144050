package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cutroom/floor-service/internal/config"
)

func TestNewTestDBMigrates(t *testing.T) {
	database := NewTestDB(t)

	var count int
	err := database.DB.Get(&count, `SELECT COUNT(*) FROM mattresses`)
	if err != nil {
		t.Fatalf("querying migrated table: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty table, got %d rows", count)
	}

	if err := database.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestActiveDeviceIndexRejectsSecondActive(t *testing.T) {
	database := NewTestDB(t)
	now := time.Now().UTC()

	insert := database.DB.Rebind(`INSERT INTO mattresses (mattress, status, device, day, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)

	if _, err := database.DB.Exec(insert, "M1", "2 - ON SPREAD", "SP1", "2026-10-17", now, now); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	_, err := database.DB.Exec(insert, "M2", "2 - ON SPREAD", "SP1", "2026-10-17", now, now)
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}

	// Waiting items on the same device are unconstrained
	if _, err := database.DB.Exec(insert, "M3", "1 - TO LOAD", "SP1", "2026-10-17", now, now); err != nil {
		t.Errorf("insert waiting item: %v", err)
	}
}

func TestIsUniqueViolationOtherErrors(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Error("nil is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Error("plain error is not a unique violation")
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	if _, err := New(config.Database{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
