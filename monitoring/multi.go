package monitoring

import "github.com/osmike/cadence/internal/domain"

// Multi fans every execution out to several monitorings, in order.
type Multi []domain.Monitoring

// SaveMetrics forwards dto to every non-nil monitoring.
func (m Multi) SaveMetrics(dto domain.StateDTO) {
	for _, mon := range m {
		if mon != nil {
			mon.SaveMetrics(dto)
		}
	}
}
