// Package diagnostics builds read-only health reports from the circuit
// breaker registry, for status surfaces and support dumps.
package diagnostics

import (
	"sort"
	"time"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/circuitbreaker"
)

// Report is a point-in-time summary of every known circuit breaker.
type Report struct {
	GeneratedAt time.Time                          `json:"generated_at"`
	Healthy     bool                               `json:"healthy"`
	Total       int                                `json:"total"`
	Open        []string                           `json:"open"`
	HalfOpen    []string                           `json:"half_open"`
	Breakers    map[string]circuitbreaker.Snapshot `json:"breakers"`
}

// Collector produces reports from a manager's breaker registry.
type Collector struct {
	manager *resilience.Manager
	now     func() time.Time
}

// NewCollector creates a Collector over the given manager.
func NewCollector(manager *resilience.Manager) *Collector {
	return &Collector{
		manager: manager,
		now:     time.Now,
	}
}

// Report snapshots every breaker. Collecting a report never mutates breaker
// state, so diagnostics polling cannot trigger open-to-half-open transitions.
func (c *Collector) Report() Report {
	snapshots := c.manager.Snapshots()

	report := Report{
		GeneratedAt: c.now().UTC(),
		Healthy:     true,
		Total:       len(snapshots),
		Breakers:    snapshots,
	}

	for name, snapshot := range snapshots {
		switch snapshot.State {
		case circuitbreaker.StateOpen:
			report.Open = append(report.Open, name)
			report.Healthy = false
		case circuitbreaker.StateHalfOpen:
			report.HalfOpen = append(report.HalfOpen, name)
			report.Healthy = false
		}
	}

	sort.Strings(report.Open)
	sort.Strings(report.HalfOpen)

	return report
}
