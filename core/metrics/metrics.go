// Package metrics holds the backend-neutral instrumentation types used by the
// owner loop. Concrete implementations live in adapters (see adapters/prometheus).
package metrics

// Timer measures one operation. ObserveDuration records the time elapsed
// since the timer was started.
type Timer interface {
	ObserveDuration()
}
