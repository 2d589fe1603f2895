package monitoring

import (
	"sync"

	"github.com/osmike/cadence/internal/domain"
)

// Monitoring provides an in-memory, thread-safe implementation of the domain.Monitoring interface.
//
// It keeps the last execution of every timer and work item in a concurrent-safe map (`sync.Map`)
// and counts executions per status. This basic implementation is suitable for debugging, testing,
// and simple runtime analytics. For production scenarios use Prometheus or a custom implementation.
type Monitoring struct {
	data   *sync.Map // Last StateDTO keyed by timer or item ID.
	counts *sync.Map // *counter keyed by ExecStatus.
}

type counter struct {
	mu sync.Mutex
	n  int64
}

// New creates and initializes a new Monitoring instance.
//
// Returns:
//   - Pointer to an initialized Monitoring instance ready for metric storage and retrieval.
func New() *Monitoring {
	return &Monitoring{
		data:   &sync.Map{},
		counts: &sync.Map{},
	}
}

// SaveMetrics stores the execution described by dto.
//
// Metrics are indexed by the timer or item identifier, so a repeating timer
// keeps only its latest execution.
//
// Parameters:
//   - dto: domain.StateDTO containing execution details.
func (m *Monitoring) SaveMetrics(dto domain.StateDTO) {
	m.data.Store(dto.ID, dto)
	c, _ := m.counts.LoadOrStore(dto.Status, &counter{})
	cnt := c.(*counter)
	cnt.mu.Lock()
	cnt.n++
	cnt.mu.Unlock()
}

// GetMetrics retrieves the last stored execution of every timer and item.
//
// Returns:
//   - A map keyed by ID with the latest domain.StateDTO of each.
func (m *Monitoring) GetMetrics() map[string]domain.StateDTO {
	result := make(map[string]domain.StateDTO)
	m.data.Range(func(key, value any) bool {
		result[key.(string)] = value.(domain.StateDTO)
		return true
	})
	return result
}

// Get returns the last execution stored for id.
func (m *Monitoring) Get(id string) (domain.StateDTO, bool) {
	v, ok := m.data.Load(id)
	if !ok {
		return domain.StateDTO{}, false
	}
	return v.(domain.StateDTO), true
}

// Count returns how many executions ended with status.
func (m *Monitoring) Count(status domain.ExecStatus) int64 {
	c, ok := m.counts.Load(status)
	if !ok {
		return 0
	}
	cnt := c.(*counter)
	cnt.mu.Lock()
	defer cnt.mu.Unlock()
	return cnt.n
}
