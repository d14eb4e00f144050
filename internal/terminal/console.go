package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cutroom/floor-service/internal/models"
)

const consoleHelp = `commands:
  list                    show the job queue
  operators               show active operators
  operator <id>           select the operator working this terminal
  start <id>              start a mattress
  finish <id> [layers]    finish a mattress (layers required when spreading)
  refresh                 reload the queue now
  status                  show session, operator and link state
  log                     show recent events
  logout                  log out and exit
  quit                    exit`

// Console is the line-oriented operator interface of a terminal
type Console struct {
	View      View
	Session   *Session
	Machine   *Machine
	Poller    *Poller
	Operators *OperatorManager
	Names     *OperatorCache
	Log       *EventLog

	// Link reports the broadcast link state; optional
	Link interface{ Status() LinkStatus }

	out io.Writer
}

// NewConsole creates a console writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Run reads commands from in until quit, logout, EOF or ctx is done
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprintf(c.out, "%s terminal ready, type help for commands\n", c.View.Device)
	for {
		fmt.Fprint(c.out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if quit := c.Execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// Execute runs one command line and reports whether the console should exit
func (c *Console) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	case "list", "ls":
		c.list()
	case "operators":
		c.listOperators(ctx)
	case "operator":
		c.selectOperator(ctx, args)
	case "start":
		c.start(ctx, args)
	case "finish":
		c.finish(ctx, args)
	case "refresh":
		c.refresh(ctx)
	case "status":
		c.status()
	case "log":
		for _, e := range c.Log.Entries() {
			fmt.Fprintln(c.out, e.String())
		}
	case "logout":
		c.Operators.Clear()
		if err := c.Session.Logout(ctx); err != nil {
			c.fail(err)
		}
		fmt.Fprintln(c.out, "logged out")
		return true
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q, type help\n", cmd)
	}
	return false
}

func (c *Console) list() {
	state := c.Poller.Snapshot()
	if state.LastError != nil {
		fmt.Fprintf(c.out, "! last refresh failed: %v (showing previous data)\n", state.LastError)
	}
	if state.Loading {
		fmt.Fprintln(c.out, "loading...")
		return
	}

	if c.View.Cutter {
		items := FilterCutterQueue(state.Items, c.View.Device, c.Machine.Routes)
		c.printItems(fmt.Sprintf("%s queue", c.View.Device), items)
		return
	}

	q := FilterSpreaderQueue(state.Items, c.View.Device)
	c.printItems("1st shift", q.Shift1)
	c.printItems("2nd shift", q.Shift2)
}

func (c *Console) printItems(title string, items []models.Mattress) {
	fmt.Fprintf(c.out, "%s (%d)\n", title, len(items))
	if len(items) == 0 {
		return
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tMATTRESS\tSTATUS\tDEVICE\tPOS\tLAYERS\tFABRIC\tBAGNO")
	for _, m := range items {
		layers := strconv.Itoa(m.Layers)
		if m.LayersA != nil {
			layers += "/" + strconv.Itoa(*m.LayersA)
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%d\t%s\t%s %s\t%s\n",
			m.ID, m.Mattress, m.Status, m.Device, m.Position, layers, m.FabricCode, m.FabricColor, m.DyeLot)
	}
	tw.Flush()
}

func (c *Console) listOperators(ctx context.Context) {
	if err := c.Names.Reload(ctx); err != nil {
		c.fail(fmt.Errorf("failed to load operators: %w", err))
		return
	}

	ops := c.Names.Values()
	ids := make([]int64, 0, len(ops))
	for id := range ops {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ops[ids[i]].Name < ops[ids[j]].Name })

	selected, _ := c.Operators.Selected()
	for _, id := range ids {
		mark := " "
		if id == selected {
			mark = "*"
		}
		fmt.Fprintf(c.out, "%s %d\t%s\n", mark, id, ops[id].Name)
	}
}

func (c *Console) selectOperator(ctx context.Context, args []string) {
	id, ok := c.parseID(args)
	if !ok {
		return
	}
	if err := c.Names.EnsureLoaded(ctx); err != nil {
		c.fail(fmt.Errorf("failed to load operators: %w", err))
		return
	}
	op, found := c.Names.Get(id)
	if !found {
		fmt.Fprintf(c.out, "no active operator with id %d\n", id)
		return
	}

	st := c.Session.Snapshot()
	username := ""
	if st.User != nil {
		username = st.User.Username
	}
	c.Operators.Select(id, username, st.Token)
	fmt.Fprintf(c.out, "operator %s selected\n", op.Name)
}

func (c *Console) start(ctx context.Context, args []string) {
	id, ok := c.parseID(args)
	if !ok {
		return
	}
	m, err := c.Machine.Start(ctx, id)
	if err != nil {
		c.fail(err)
		return
	}
	fmt.Fprintf(c.out, "%s is now %s\n", m.Mattress, m.Status)
}

func (c *Console) finish(ctx context.Context, args []string) {
	id, ok := c.parseID(args)
	if !ok {
		return
	}

	layers := 0
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			c.fail(ErrInvalidLayers)
			return
		}
		layers = n
	}

	m, err := c.Machine.Finish(ctx, id, layers)
	if err != nil {
		c.fail(err)
		return
	}
	fmt.Fprintf(c.out, "%s is now %s\n", m.Mattress, m.Status)
}

func (c *Console) refresh(ctx context.Context) {
	if err := c.Poller.Poll(ctx); err != nil {
		c.fail(err)
		return
	}
	fmt.Fprintln(c.out, "queue refreshed")
}

func (c *Console) status() {
	st := c.Session.Snapshot()
	if st.User != nil {
		fmt.Fprintf(c.out, "user:     %s (%s)\n", st.User.Username, st.User.Role)
	}
	fmt.Fprintf(c.out, "device:   %s\n", c.View.Device)

	op := c.Operators.Session()
	if op.Selected() {
		name := strconv.FormatInt(op.SelectedOperatorID, 10)
		if o, ok := c.Names.Get(op.SelectedOperatorID); ok {
			name = o.Name
		}
		fmt.Fprintf(c.out, "operator: %s (last activity %s)\n", name, op.LastActivity.Format(time.Kitchen))
	} else {
		fmt.Fprintln(c.out, "operator: none selected")
	}

	poll := c.Poller.Snapshot()
	if !poll.LastSuccess.IsZero() {
		fmt.Fprintf(c.out, "queue:    %d items, updated %s\n", len(poll.Items), poll.LastSuccess.Format(time.Kitchen))
	}
	if poll.LastError != nil {
		fmt.Fprintf(c.out, "queue:    last error %v\n", poll.LastError)
	}

	if c.Link != nil {
		link := c.Link.Status()
		switch {
		case link.Connected:
			fmt.Fprintln(c.out, "link:     connected")
		case link.Reconnecting:
			fmt.Fprintf(c.out, "link:     reconnecting (%s)\n", link.LastError)
		default:
			fmt.Fprintln(c.out, "link:     down")
		}
	}
}

func (c *Console) parseID(args []string) (int64, bool) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "an id is required")
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(c.out, "invalid id %q\n", args[0])
		return 0, false
	}
	return id, true
}

// fail prints err in operator terms; nothing propagates past the console
func (c *Console) fail(err error) {
	if IsUnauthorized(err) {
		fmt.Fprintln(c.out, "! session expired, log out and in again")
		return
	}
	fmt.Fprintf(c.out, "! %v\n", err)
}
