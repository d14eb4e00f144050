package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/cutroom/floor-service/internal/access"
	"github.com/cutroom/floor-service/internal/models"
	"github.com/cutroom/floor-service/internal/terminal"
)

func main() {
	defaultPath := os.Getenv("TERMINAL_CONFIG")
	if defaultPath == "" {
		defaultPath = "configs/terminal.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to the terminal configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := terminal.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Warning: Could not load config file: %v", err)
		log.Println("Using default configuration")
		cfg = terminal.Default()
		cfg.ConfigPath = *configPath
	}

	// A username without a device number is a configuration error
	view, err := terminal.NewView(cfg.Username)
	if err != nil {
		log.Fatalf("Cannot open a job view for %q: %v", cfg.Username, err)
	}
	log.Printf("Terminal %s starting (config %s, server %s)", view.Device, cfg.ConfigPath, cfg.ServerURL)

	events := terminal.NewEventLog(200)
	state := terminal.NewStateFile(cfg.StatePath)
	client := terminal.NewAPIClient(cfg.ServerURL, cfg.RequestTimeout)
	session := terminal.NewSession(client, state, events)
	client.Token = session.Token

	if err := session.Restore(); err != nil {
		log.Printf("Could not restore session: %v", err)
	}
	if st := session.Snapshot(); st.User != nil && st.User.Username != cfg.Username {
		session.Reset()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := authorize(ctx, session, view, cfg); err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	st := session.Snapshot()
	username := st.User.Username
	events.Infof("%s logged in on %s", username, view.Device)

	// Job queue
	fetch := func(ctx context.Context) ([]models.Mattress, error) {
		return client.Kanban(ctx, "today")
	}
	interval := cfg.KanbanInterval
	if view.Cutter {
		fetch = func(ctx context.Context) ([]models.Mattress, error) {
			return client.CutterQueue(ctx, view.Device)
		}
		interval = cfg.CutterInterval
	}
	poller := terminal.NewPoller(view.Device+" queue", fetch, interval, events)
	poller.Start(ctx)
	defer poller.Stop()

	// Operator session
	operators := terminal.NewOperatorManager(state, cfg.OperatorIdleTimeout, events)
	if saved, err := state.Load(); err == nil && operators.Restore(saved.Operator, username, st.Token) {
		operators.Check(time.Now())
	}
	go operators.Run(ctx, cfg.OperatorCheckInterval)

	names := terminal.NewOperatorCache(client, view.OperatorType())

	// Cross-terminal status hints
	sourceID := uuid.NewString()
	link := terminal.NewWSChannel(cfg, view.Device, session.Token, events)
	link.Start()
	defer link.Stop()

	go terminal.Watch(ctx, link, sourceID, time.Now, func(change models.StatusChange) {
		poller.Refresh()
	})

	machine := terminal.NewMachine(view, username, sourceID, access.NewRoutes(cfg.CutterRoutes), terminal.MachineDeps{
		API:       client,
		Queue:     poller,
		Operators: operators,
		Names:     names,
		Channel:   link,
		Log:       events,
	})

	console := terminal.NewConsole(os.Stdout)
	console.View = view
	console.Session = session
	console.Machine = machine
	console.Poller = poller
	console.Operators = operators
	console.Names = names
	console.Log = events
	console.Link = link

	if err := console.Run(ctx, os.Stdin); err != nil {
		log.Printf("Console stopped: %v", err)
	}
	stop()

	log.Println("Terminal exited properly")
}

// authorize logs in when needed and checks the role against the view
func authorize(ctx context.Context, session *terminal.Session, view terminal.View, cfg *terminal.Config) error {
	for attempt := 0; attempt < 2; attempt++ {
		decision := view.Authorize(session.Guard())
		switch decision.Kind {
		case access.Allow:
			return nil
		case access.RenderError:
			return errors.New(decision.Message)
		}

		if decision.Redirect != access.LoginPath {
			return fmt.Errorf("user %s may not open %s", cfg.Username, view.Path)
		}

		loginCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		err := session.Login(loginCtx, cfg.Username, cfg.Password)
		cancel()
		if err != nil {
			return err
		}
	}
	return errors.New("session rejected after login")
}
