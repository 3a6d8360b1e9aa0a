package llm

import (
	"sort"
	"sync"
	"time"

	"appforge/internal/faults"
	"appforge/internal/logging"
)

// ProviderStats tracks per-provider health for routing decisions.
type ProviderStats struct {
	Attempts            int
	Successes           int
	Failures            int
	ConsecutiveFailures int
	AvgLatency          time.Duration
	LastFailure         time.Time
}

// SuccessRate returns the rolling success ratio; providers with no history
// rank as fully healthy so new adapters get probed.
func (s ProviderStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 1.0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

// taskPriority maps each task type to a static provider preference order.
// Reasoning goes to the reasoning specialist, code to the fastest code
// model, UI/text to the text-quality model.
var taskPriority = map[TaskType][]string{
	TaskReasoning: {"anthropic", "gemini", "openai"},
	TaskCode:      {"openai", "anthropic", "gemini"},
	TaskUIText:    {"gemini", "anthropic", "openai"},
}

// Router picks the best available provider for a task type under a health
// policy with a consecutive-failure circuit breaker.
type Router struct {
	mu        sync.Mutex
	providers []Client
	stats     map[string]*ProviderStats

	failureThreshold int
	reprobeInterval  time.Duration
}

// NewRouter creates a router over the given adapters.
func NewRouter(providers []Client, failureThreshold int, reprobeInterval time.Duration) *Router {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if reprobeInterval <= 0 {
		reprobeInterval = 60 * time.Second
	}
	stats := make(map[string]*ProviderStats, len(providers))
	for _, p := range providers {
		stats[p.Name()] = &ProviderStats{}
	}
	return &Router{
		providers:        providers,
		stats:            stats,
		failureThreshold: failureThreshold,
		reprobeInterval:  reprobeInterval,
	}
}

// Select returns the best provider for the task, or a
// faults.ErrProviderUnavailable error when none qualifies. When needVision
// is set, only vision-capable adapters are considered; an image must never
// be silently dropped.
func (r *Router) Select(task TaskType, needVision bool) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.candidatesLocked(needVision, true)
	if len(candidates) == 0 {
		// Circuit-broken providers re-enter in priority order as a last
		// resort before reporting no provider at all.
		candidates = r.candidatesLocked(needVision, false)
	}
	if len(candidates) == 0 {
		if needVision {
			return nil, faults.Wrap(faults.ErrProviderUnavailable, "no vision-capable provider for task %s", task)
		}
		return nil, faults.Wrap(faults.ErrProviderUnavailable, "no provider for task %s", task)
	}

	priority := taskPriority[task]
	rank := func(name string) int {
		for i, n := range priority {
			if n == name {
				return i
			}
		}
		return len(priority)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := rank(candidates[i].Name()), rank(candidates[j].Name())
		if ri != rj {
			return ri < rj
		}
		si := r.stats[candidates[i].Name()]
		sj := r.stats[candidates[j].Name()]
		if si.SuccessRate() != sj.SuccessRate() {
			return si.SuccessRate() > sj.SuccessRate()
		}
		return si.AvgLatency < sj.AvgLatency
	})

	chosen := candidates[0]
	logging.Router("selected %s for task=%s vision=%v (rate=%.2f avg=%v)",
		chosen.Name(), task, needVision,
		r.stats[chosen.Name()].SuccessRate(), r.stats[chosen.Name()].AvgLatency)
	return chosen, nil
}

// candidatesLocked returns available providers, optionally excluding
// circuit-broken ones. A broken circuit re-closes after reprobeInterval.
func (r *Router) candidatesLocked(needVision, respectCircuit bool) []Client {
	var out []Client
	for _, p := range r.providers {
		if !p.Available() {
			continue
		}
		if needVision && !p.Meta().SupportsVision {
			continue
		}
		if respectCircuit {
			st := r.stats[p.Name()]
			if st.ConsecutiveFailures >= r.failureThreshold &&
				time.Since(st.LastFailure) < r.reprobeInterval {
				logging.RouterDebug("skipping %s: circuit open (%d consecutive failures)",
					p.Name(), st.ConsecutiveFailures)
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// Report records one invocation outcome for a provider.
func (r *Router) Report(name string, ok bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, exists := r.stats[name]
	if !exists {
		return
	}
	st.Attempts++
	if ok {
		st.Successes++
		st.ConsecutiveFailures = 0
	} else {
		st.Failures++
		st.ConsecutiveFailures++
		st.LastFailure = time.Now()
	}
	// Cumulative moving average keeps a single word of state per provider.
	n := time.Duration(st.Attempts)
	st.AvgLatency = st.AvgLatency + (latency-st.AvgLatency)/n

	logging.RouterDebug("report %s ok=%v latency=%v consecutive_failures=%d",
		name, ok, latency, st.ConsecutiveFailures)
}

// ResetHealth clears circuit state for every provider (external health reset).
func (r *Router) ResetHealth() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.stats {
		st.ConsecutiveFailures = 0
		st.LastFailure = time.Time{}
	}
	logging.Router("health reset for all providers")
}

// Stats returns a copy of the per-provider statistics.
func (r *Router) Stats() map[string]ProviderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ProviderStats, len(r.stats))
	for name, st := range r.stats {
		out[name] = *st
	}
	return out
}
