// Package stats is an injectable operation counter with an explicit
// lifecycle: reset at the start of a measurement window, read via snapshot.
// The collector consumes the same event stream as the audit trail, so it
// plugs in wherever an audit publisher does.
package stats

import (
	"context"
	"sync"
	"time"
)

// Collector tallies operations by action and outcome. Safe for concurrent
// use.
type Collector struct {
	mu             sync.RWMutex
	windowStart    time.Time
	actions        map[string]int
	authentication map[string]int
	liveness       map[string]int
	registrations  map[string]int
}

// Snapshot is a point-in-time copy of the collector's counters.
type Snapshot struct {
	WindowStart       time.Time      `json:"window_start"`
	TakenAt           time.Time      `json:"taken_at"`
	Actions           map[string]int `json:"actions"`
	AuthByDecision    map[string]int `json:"authentication_by_decision"`
	LivenessByVerdict map[string]int `json:"liveness_by_verdict"`
	RegByModality     map[string]int `json:"registrations_by_modality"`
}

func NewCollector() *Collector {
	c := &Collector{}
	c.resetLocked(time.Now())
	return c
}

// Emit consumes one audit event. Satisfies the audit publisher contract so
// the collector can ride the existing event fan-out.
func (c *Collector) Emit(_ context.Context, action string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actions[action]++
	switch action {
	case "authentication_attempt":
		if d, ok := fields["decision"].(string); ok {
			c.authentication[d]++
		}
	case "liveness_check":
		if v, ok := fields["verdict"].(string); ok {
			c.liveness[v]++
		}
	case "template_registered":
		if m, ok := fields["modality"].(string); ok {
			c.registrations[m]++
		}
	}
	return nil
}

// Snapshot copies the current counters without disturbing them.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		WindowStart:       c.windowStart,
		TakenAt:           time.Now(),
		Actions:           copyCounts(c.actions),
		AuthByDecision:    copyCounts(c.authentication),
		LivenessByVerdict: copyCounts(c.liveness),
		RegByModality:     copyCounts(c.registrations),
	}
}

// Reset zeroes every counter and starts a new measurement window.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(time.Now())
}

func (c *Collector) resetLocked(now time.Time) {
	c.windowStart = now
	c.actions = make(map[string]int)
	c.authentication = make(map[string]int)
	c.liveness = make(map[string]int)
	c.registrations = make(map[string]int)
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
