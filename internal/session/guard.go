package session

import (
	"errors"
	"sync"
)

// ErrBusy is returned when a flow already has a request in flight.
var ErrBusy = errors.New("request already in flight")

type FlowKind string

const (
	FlowUpload   FlowKind = "upload"
	FlowChat     FlowKind = "chat"
	FlowPreview  FlowKind = "preview"
	FlowEdit     FlowKind = "edit"
	FlowDownload FlowKind = "download"
)

// Ticket identifies one request. It is stale once its flow has been
// superseded.
type Ticket struct {
	Flow FlowKind
	Gen  uint64
}

// Guard allows one in-flight request per flow and numbers requests so a
// response from a superseded request can be recognised and dropped.
type Guard struct {
	mu   sync.Mutex
	busy map[FlowKind]bool
	gen  map[FlowKind]uint64
}

func NewGuard() *Guard {
	return &Guard{
		busy: make(map[FlowKind]bool),
		gen:  make(map[FlowKind]uint64),
	}
}

// Begin claims flow. It fails with ErrBusy while a previous request for the
// same flow is still running.
func (g *Guard) Begin(flow FlowKind) (Ticket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy[flow] {
		return Ticket{}, ErrBusy
	}
	g.busy[flow] = true
	g.gen[flow]++
	return Ticket{Flow: flow, Gen: g.gen[flow]}, nil
}

// Current reports whether t is still the latest request for its flow.
func (g *Guard) Current(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen[t.Flow] == t.Gen
}

// End releases t. It returns false if t was superseded, in which case the
// response must be discarded.
func (g *Guard) End(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen[t.Flow] != t.Gen {
		return false
	}
	g.busy[t.Flow] = false
	return true
}

// Busy reports whether flow has a request in flight.
func (g *Guard) Busy(flow FlowKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy[flow]
}

// Reset supersedes every outstanding request, e.g. when a new template is
// uploaded over an existing session.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for flow := range g.gen {
		g.gen[flow]++
		g.busy[flow] = false
	}
}
