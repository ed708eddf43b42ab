// Package sse streams rule reloads and check results to connected clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/starford/synapse/internal/enforcer"
	"github.com/starford/synapse/internal/rulegraph"
)

// Event names on the wire.
const (
	EventReloaded = "rules.reloaded"
	EventChecked  = "check.completed"
	EventSummary  = "enforcement.summary"
)

// Reloaded is the payload of a rules.reloaded event.
type Reloaded struct {
	RuleFiles                int `json:"rule_files"`
	Rules                    int `json:"rules"`
	InheritanceRelationships int `json:"inheritance_relationships"`
	OverrideRelationships    int `json:"override_relationships"`
}

// Checked is the payload of a check.completed event.
type Checked struct {
	RunID        string   `json:"run_id,omitempty"`
	FilesChecked int      `json:"files_checked"`
	RulesApplied int      `json:"rules_applied"`
	Violations   int      `json:"violations"`
	ViolatedIDs  []string `json:"violated_rules"`
	Success      bool     `json:"success"`
}

// Summary aggregates everything published since the broker started. It is
// sent to every new client and, throttled, after each reload or check.
type Summary struct {
	RuleFiles    int `json:"rule_files"`
	Rules        int `json:"rules"`
	Reloads      int `json:"reloads"`
	Checks       int `json:"checks"`
	FailedChecks int `json:"failed_checks"`
	Violations   int `json:"violations"`
}

type update struct {
	reload *Reloaded
	check  *Checked
}

// Broker fans rule events out to SSE clients.
//
// One goroutine owns the client set, the summary and the throttle state;
// public methods talk to it over channels.
type Broker struct {
	interval time.Duration

	join    chan chan []byte
	leave   chan chan []byte
	updates chan update
	count   chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one summary per interval.
func NewBroker(interval time.Duration) *Broker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	b := &Broker{
		interval: interval,
		join:     make(chan chan []byte),
		leave:    make(chan chan []byte),
		updates:  make(chan update, 256),
		count:    make(chan chan int),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go b.run()
	return b
}

// frame renders one SSE message with a monotonically increasing id.
func frame(id uint64, name string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", id, name, payload))
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq      uint64
		summary  Summary
		lastSent time.Time
		pending  bool
		flush    <-chan time.Time
	)

	send := func(name string, data any) {
		seq++
		msg := frame(seq, name, data)
		if msg == nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}
	sendSummary := func() {
		lastSent = time.Now()
		pending = false
		flush = nil
		send(EventSummary, summary)
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.join:
			clients[ch] = struct{}{}
			seq++
			if msg := frame(seq, EventSummary, summary); msg != nil {
				ch <- msg
			}

		case ch := <-b.leave:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case u := <-b.updates:
			switch {
			case u.reload != nil:
				summary.Reloads++
				summary.RuleFiles = u.reload.RuleFiles
				summary.Rules = u.reload.Rules
				send(EventReloaded, u.reload)
			case u.check != nil:
				summary.Checks++
				summary.Violations += u.check.Violations
				if !u.check.Success {
					summary.FailedChecks++
				}
				send(EventChecked, u.check)
			}
			if wait := b.interval - time.Since(lastSent); wait <= 0 {
				sendSummary()
			} else if !pending {
				pending = true
				flush = time.After(wait)
			}

		case <-flush:
			sendSummary()

		case resp := <-b.count:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel first receives the
// current summary and is closed when the broker stops.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
		return <-resp
	case <-b.stopped:
		return 0
	}
}

func (b *Broker) push(u update) {
	if b.closed.Load() {
		return
	}
	select {
	case b.updates <- u:
	case <-b.stopped:
	}
}

// PublishReload announces a freshly loaded rule graph.
func (b *Broker) PublishReload(stats rulegraph.Stats) {
	b.push(update{reload: &Reloaded{
		RuleFiles:                stats.RuleFiles,
		Rules:                    stats.TotalRules,
		InheritanceRelationships: stats.InheritanceRelationships,
		OverrideRelationships:    stats.OverrideRelationships,
	}})
}

// PublishCheck announces a completed check run. Violated rule ids are
// deduplicated and sorted.
func (b *Broker) PublishCheck(res *enforcer.CheckResult) {
	if res == nil {
		return
	}
	seen := make(map[string]struct{})
	ids := []string{}
	for _, v := range res.Violations {
		if _, dup := seen[v.Rule.ID]; dup {
			continue
		}
		seen[v.Rule.ID] = struct{}{}
		ids = append(ids, v.Rule.ID)
	}
	sort.Strings(ids)
	b.push(update{check: &Checked{
		RunID:        res.RunID,
		FilesChecked: res.FilesChecked,
		RulesApplied: res.RulesApplied,
		Violations:   len(res.Violations),
		ViolatedIDs:  ids,
		Success:      res.Success,
	}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
