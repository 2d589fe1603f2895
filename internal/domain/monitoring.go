package domain

// Monitoring defines an interface for collecting metrics about timer and work executions.
//
// Implementations of this interface can persist metrics in various ways, such as:
// - In-memory storage for simple debugging and development purposes.
// - Real-time logging for operational monitoring.
// - External systems like Prometheus.
type Monitoring interface {
	// SaveMetrics stores metrics derived from a finished execution.
	//
	// It is called from worker goroutines and must be safe for concurrent use.
	// It must not block for long: it runs on the execution path.
	//
	// Parameters:
	//   - dto: StateDTO describing the execution outcome.
	SaveMetrics(dto StateDTO)
}
