package terminal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultOperatorIdleTimeout clears an operator selection nobody used for this long
const DefaultOperatorIdleTimeout = 4 * time.Hour

const sessionDateFormat = "2006-01-02"

// OperatorSession binds the operator working a terminal to its login
type OperatorSession struct {
	SelectedOperatorID int64     `yaml:"selected_operator_id,omitempty"`
	BoundUsername      string    `yaml:"bound_username,omitempty"`
	BoundToken         string    `yaml:"bound_token,omitempty"`
	SessionDate        string    `yaml:"session_date,omitempty"`
	LastActivity       time.Time `yaml:"last_activity,omitempty"`
}

// Selected reports whether an operator is chosen
func (s OperatorSession) Selected() bool {
	return s.SelectedOperatorID != 0
}

// OperatorManager tracks which operator is at the terminal and expires the
// selection after inactivity or at day change.
type OperatorManager struct {
	mu      sync.Mutex
	current OperatorSession
	idle    time.Duration

	state *StateFile
	log   *EventLog

	// now is replaceable in tests
	now func() time.Time
}

// NewOperatorManager creates a manager persisting through state
func NewOperatorManager(state *StateFile, idle time.Duration, events *EventLog) *OperatorManager {
	if idle <= 0 {
		idle = DefaultOperatorIdleTimeout
	}
	return &OperatorManager{
		idle:  idle,
		state: state,
		log:   events,
		now:   time.Now,
	}
}

// Restore keeps a persisted selection only if it belongs to this login
func (m *OperatorManager) Restore(saved OperatorSession, username, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !saved.Selected() || saved.BoundUsername != username || saved.BoundToken != token {
		m.current = OperatorSession{}
		m.persistLocked()
		return false
	}
	m.current = saved
	return true
}

// Select makes id the active operator for the given login
func (m *OperatorManager) Select(id int64, username, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.current = OperatorSession{
		SelectedOperatorID: id,
		BoundUsername:      username,
		BoundToken:         token,
		SessionDate:        now.Format(sessionDateFormat),
		LastActivity:       now,
	}
	m.persistLocked()
}

// Selected returns the chosen operator id
func (m *OperatorManager) Selected() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.SelectedOperatorID, m.current.Selected()
}

// Session returns a copy of the current binding
func (m *OperatorManager) Session() OperatorSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Check clears a selection that has been idle longer than the timeout or
// that was made on another day. The returned message is empty when nothing
// was cleared.
func (m *OperatorManager) Check(now time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current.Selected() {
		return ""
	}

	var reason string
	switch {
	case now.Sub(m.current.LastActivity) > m.idle:
		reason = fmt.Sprintf("operator session expired after %s of inactivity, select the operator again", m.idle)
	case m.current.SessionDate != now.Format(sessionDateFormat):
		reason = "new working day, select the operator again"
	default:
		return ""
	}

	m.current = OperatorSession{}
	m.persistLocked()
	if m.log != nil {
		m.log.Warnf("%s", reason)
	}
	return reason
}

// Touch records operator activity
func (m *OperatorManager) Touch(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current.Selected() {
		return
	}
	m.current.LastActivity = now
	m.persistLocked()
}

// Clear drops the selection
func (m *OperatorManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = OperatorSession{}
	m.persistLocked()
}

// Run checks the selection every interval until ctx is done
func (m *OperatorManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(m.now())
		}
	}
}

func (m *OperatorManager) persistLocked() {
	if m.state == nil {
		return
	}
	current := m.current
	if err := m.state.Update(func(st *State) { st.Operator = current }); err != nil && m.log != nil {
		m.log.Errorf("failed to save operator session: %v", err)
	}
}
