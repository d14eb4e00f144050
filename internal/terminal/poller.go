package terminal

import (
	"context"
	"sync"
	"time"

	"github.com/cutroom/floor-service/internal/models"
)

// FetchFunc loads the full item list of a queue source
type FetchFunc func(ctx context.Context) ([]models.Mattress, error)

// PollState is a copy of the poller state at one instant
type PollState struct {
	Items       []models.Mattress
	Loading     bool
	Refreshing  bool
	LastError   error
	LastSuccess time.Time
}

// Poller keeps a queue source fresh: it fetches on start, on every tick and
// whenever Refresh is called. A failed fetch keeps the previous items.
type Poller struct {
	name     string
	fetch    FetchFunc
	interval time.Duration
	timeout  time.Duration
	log      *EventLog

	// pollMu serializes fetches from the loop and from direct Poll callers
	pollMu sync.Mutex

	mu          sync.Mutex
	items       []models.Mattress
	loaded      bool
	inFlight    bool
	patches     uint64
	lastError   error
	lastSuccess time.Time

	refresh  chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	startOne sync.Once
	stopOne  sync.Once

	// OnUpdate is called after every fetch attempt
	OnUpdate func(PollState)
}

// NewPoller creates a poller; Start begins polling
func NewPoller(name string, fetch FetchFunc, interval time.Duration, events *EventLog) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		name:     name,
		fetch:    fetch,
		interval: interval,
		timeout:  30 * time.Second,
		log:      events,
		refresh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the polling loop
func (p *Poller) Start(ctx context.Context) {
	p.startOne.Do(func() {
		go p.loop(ctx)
	})
}

// Stop ends the loop and waits for it to exit
func (p *Poller) Stop() {
	p.stopOne.Do(func() {
		close(p.done)
	})

	started := true
	p.startOne.Do(func() {
		started = false
	})
	if started {
		<-p.stopped
	}
}

// Refresh asks for a background fetch; requests made while one is pending coalesce
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current state
func (p *Poller) Snapshot() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) snapshotLocked() PollState {
	items := make([]models.Mattress, len(p.items))
	copy(items, p.items)
	return PollState{
		Items:       items,
		Loading:     p.inFlight && !p.loaded,
		Refreshing:  p.inFlight && p.loaded,
		LastError:   p.lastError,
		LastSuccess: p.lastSuccess,
	}
}

// Patch applies an optimistic change to the cached item with the given id
func (p *Poller) Patch(id int64, fn func(*models.Mattress)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.items {
		if p.items[i].ID == id {
			fn(&p.items[i])
			p.patches++
			return true
		}
	}
	return false
}

// Poll fetches once and updates the state. Calls never overlap. A result
// fetched while Patch changed the items is dropped and another fetch is queued.
func (p *Poller) Poll(ctx context.Context) error {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	p.mu.Lock()
	p.inFlight = true
	patches := p.patches
	p.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	items, err := p.fetch(fetchCtx)
	cancel()

	stale := false
	p.mu.Lock()
	p.inFlight = false
	switch {
	case err != nil:
		p.lastError = err
	case p.patches != patches:
		stale = true
		p.lastError = nil
	default:
		p.items = items
		p.loaded = true
		p.lastError = nil
		p.lastSuccess = time.Now()
	}
	state := p.snapshotLocked()
	p.mu.Unlock()

	if stale {
		p.Refresh()
	}

	if err != nil && p.log != nil {
		p.log.Warnf("%s refresh failed: %v", p.name, err)
	}
	if p.OnUpdate != nil {
		p.OnUpdate(state)
	}
	return err
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.stopped)

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		case <-p.refresh:
			p.Poll(ctx)
		}
	}
}
