// Package health runs readiness probes for the pieces gestured depends on:
// the history database, the session bus and the HCI socket.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the component is unavailable but not required.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates a required component is unavailable.
	StatusUnhealthy Status = "unhealthy"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Second

// CheckResult represents the result of a health check.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Check performs one probe and returns a descriptive message on success.
type Check func(ctx context.Context) (string, error)

// Component is a named check. A failing Critical component makes the
// overall status unhealthy; any other failure only degrades it.
type Component struct {
	Name     string
	Critical bool
	Check    Check
	Timeout  time.Duration
}

// Checker runs registered components.
type Checker struct {
	mu         sync.Mutex
	components []*Component
}

// NewChecker creates a new Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Register adds a component.
func (c *Checker) Register(component *Component) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if component.Timeout == 0 {
		component.Timeout = DefaultTimeout
	}
	c.components = append(c.components, component)
}

// RegisterFunc registers a simple check with the default timeout.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(&Component{Name: name, Critical: critical, Check: check})
}

// Run runs every check concurrently and returns the results sorted by name.
func (c *Checker) Run(ctx context.Context) []CheckResult {
	c.mu.Lock()
	components := append([]*Component(nil), c.components...)
	c.mu.Unlock()

	results := make([]CheckResult, len(components))
	var wg sync.WaitGroup
	for i, comp := range components {
		i, comp := i, comp
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run(ctx, comp)
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

func run(ctx context.Context, comp *Component) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	type outcome struct {
		msg string
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("check panicked: %v", r)}
			}
		}()
		msg, err := comp.Check(checkCtx)
		done <- outcome{msg: msg, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-checkCtx.Done():
		out = outcome{err: fmt.Errorf("check timed out: %w", checkCtx.Err())}
	}

	res := CheckResult{Name: comp.Name, Status: StatusHealthy, Message: out.msg, Duration: time.Since(start)}
	if out.err != nil {
		res.Status = StatusDegraded
		if comp.Critical {
			res.Status = StatusUnhealthy
		}
		res.Error = out.err.Error()
	}
	return res
}

// Overall folds results into one status.
func Overall(results []CheckResult) Status {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
