package terminal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestOperatorManager(t *testing.T, now time.Time) (*OperatorManager, *StateFile) {
	t.Helper()
	state := NewStateFile(filepath.Join(t.TempDir(), "state.yaml"))
	m := NewOperatorManager(state, DefaultOperatorIdleTimeout, nil)
	m.now = func() time.Time { return now }
	return m, state
}

func TestOperatorSessionIdleExpiry(t *testing.T) {
	start := time.Date(2026, 3, 2, 6, 0, 0, 0, time.Local)

	tests := []struct {
		name    string
		elapsed time.Duration
		cleared bool
	}{
		{"within timeout", 3*time.Hour + 59*time.Minute, false},
		{"exactly at timeout", 4 * time.Hour, false},
		{"past timeout", 4*time.Hour + time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestOperatorManager(t, start)
			m.Select(3, "Spreader1", "tok")

			msg := m.Check(start.Add(tt.elapsed))
			_, selected := m.Selected()
			if selected == tt.cleared {
				t.Errorf("selected = %v after %v", selected, tt.elapsed)
			}
			if (msg != "") != tt.cleared {
				t.Errorf("unexpected warning %q", msg)
			}
		})
	}
}

func TestOperatorSessionTouchExtends(t *testing.T) {
	start := time.Date(2026, 3, 2, 6, 0, 0, 0, time.Local)
	m, _ := newTestOperatorManager(t, start)
	m.Select(3, "Spreader1", "tok")

	m.Touch(start.Add(3 * time.Hour))
	if msg := m.Check(start.Add(6 * time.Hour)); msg != "" {
		t.Errorf("touched session should survive, got %q", msg)
	}
}

func TestOperatorSessionDayChange(t *testing.T) {
	start := time.Date(2026, 3, 2, 22, 0, 0, 0, time.Local)
	m, _ := newTestOperatorManager(t, start)
	m.Select(3, "Spreader1", "tok")

	if msg := m.Check(start.Add(3 * time.Hour)); msg == "" {
		t.Error("expected the selection to clear on a new day")
	}
}

func TestOperatorSessionRestore(t *testing.T) {
	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.Local)
	m, state := newTestOperatorManager(t, now)
	m.Select(3, "Spreader1", "tok")

	saved, err := state.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if saved.Operator.SelectedOperatorID != 3 {
		t.Fatalf("expected persisted operator 3, got %+v", saved.Operator)
	}

	other, _ := newTestOperatorManager(t, now)
	if !other.Restore(saved.Operator, "Spreader1", "tok") {
		t.Error("matching login should restore the operator")
	}
	if other.Restore(saved.Operator, "Spreader1", "new-token") {
		t.Error("a new token must not inherit the operator")
	}
	if _, ok := other.Selected(); ok {
		t.Error("failed restore should leave no operator selected")
	}
}

func TestOperatorManagerRunStops(t *testing.T) {
	m, _ := newTestOperatorManager(t, time.Now())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
