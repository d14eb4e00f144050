package terminal

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cutroom/floor-service/internal/access"
	"github.com/cutroom/floor-service/internal/models"
)

func newTestConsole(t *testing.T, items ...models.Mattress) (*Console, *bytes.Buffer, *fakeServer) {
	t.Helper()

	server := newFakeServer(items...)
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	events := NewEventLog(20)
	client := NewAPIClient(ts.URL, 5*time.Second)
	state := NewStateFile("")
	session := NewSession(client, state, events)
	client.Token = session.Token
	if err := session.Login(context.Background(), "Spreader1", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	view, _ := NewView("Spreader1")
	poller := NewPoller("test", func(ctx context.Context) ([]models.Mattress, error) {
		return client.Kanban(ctx, "today")
	}, time.Hour, events)
	poller.Poll(context.Background())

	operators := NewOperatorManager(state, 0, events)
	names := NewOperatorCache(client, view.OperatorType())

	var out bytes.Buffer
	c := NewConsole(&out)
	c.View = view
	c.Session = session
	c.Poller = poller
	c.Operators = operators
	c.Names = names
	c.Log = events
	c.Machine = NewMachine(view, "Spreader1", "tab-1", access.NewRoutes(nil), MachineDeps{
		API:       client,
		Queue:     poller,
		Operators: operators,
		Names:     names,
		Log:       events,
	})
	return c, &out, server
}

func TestConsoleStartFlow(t *testing.T) {
	c, out, server := newTestConsole(t, mattress(1, "MAT-001", models.StatusToLoad, "SP1"))
	ctx := context.Background()

	c.Execute(ctx, "start 1")
	if !strings.Contains(out.String(), ErrNoOperator.Error()) {
		t.Fatalf("expected the operator prompt, got %q", out.String())
	}

	out.Reset()
	c.Execute(ctx, "operators")
	if !strings.Contains(out.String(), "Maria") {
		t.Errorf("expected operator list, got %q", out.String())
	}

	out.Reset()
	c.Execute(ctx, "operator 3")
	c.Execute(ctx, "start #1")
	if !strings.Contains(out.String(), "MAT-001 is now 2 - ON SPREAD") {
		t.Errorf("unexpected output %q", out.String())
	}
	if len(server.writes()) != 1 {
		t.Errorf("expected one write, got %d", len(server.writes()))
	}

	out.Reset()
	c.Execute(ctx, "finish 1 abc")
	if !strings.Contains(out.String(), ErrInvalidLayers.Error()) {
		t.Errorf("expected a layers error, got %q", out.String())
	}
}

func TestConsoleListAndStatus(t *testing.T) {
	second := mattress(2, "MAT-002", models.StatusToLoad, "SP1")
	second.Shift = models.Shift2
	c, out, _ := newTestConsole(t, mattress(1, "MAT-001", models.StatusToLoad, "SP1"), second)
	ctx := context.Background()

	c.Execute(ctx, "list")
	got := out.String()
	for _, want := range []string{"1st shift (1)", "2nd shift (1)", "MAT-001", "MAT-002"} {
		if !strings.Contains(got, want) {
			t.Errorf("list output missing %q:\n%s", want, got)
		}
	}

	out.Reset()
	c.Execute(ctx, "status")
	if !strings.Contains(out.String(), "operator: none selected") || !strings.Contains(out.String(), "device:   SP1") {
		t.Errorf("unexpected status output:\n%s", out.String())
	}
}

func TestConsoleQuitAndLogout(t *testing.T) {
	c, out, _ := newTestConsole(t)
	ctx := context.Background()

	if c.Execute(ctx, "bogus") {
		t.Error("unknown commands must not exit")
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("expected a hint, got %q", out.String())
	}
	if c.Execute(ctx, "") {
		t.Error("empty line must not exit")
	}
	if !c.Execute(ctx, "logout") {
		t.Error("logout should exit")
	}
	if c.Session.Snapshot().IsLoggedIn {
		t.Error("logout should clear the session")
	}
}

func TestConsoleRunStopsAtQuit(t *testing.T) {
	c, out, _ := newTestConsole(t)

	err := c.Run(context.Background(), strings.NewReader("help\nquit\nlist\n"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "commands:") {
		t.Errorf("expected help text, got %q", out.String())
	}
	if strings.Contains(out.String(), "1st shift") {
		t.Error("commands after quit must not run")
	}
}
