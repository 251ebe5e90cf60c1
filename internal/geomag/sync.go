package geomag

import (
	"sync"
	"time"

	"github.com/star/droidsat/internal/metrics"
)

// SyncModel serialises evaluations of a shared Model.
type SyncModel struct {
	mu    sync.Mutex
	model *Model
}

// NewSyncModel wraps m for concurrent use.
func NewSyncModel(m *Model) *SyncModel {
	return &SyncModel{model: m}
}

// FieldAt evaluates the field under the lock.
func (s *SyncModel) FieldAt(lat, lon, year, altKm float64) Field {
	start := time.Now()
	s.mu.Lock()
	f := s.model.FieldAt(lat, lon, year, altKm)
	s.mu.Unlock()
	metrics.RecordGeomagEvaluation(time.Since(start))
	return f
}

// Declination evaluates at the reference year and sea level.
func (s *SyncModel) Declination(lat, lon float64) float64 {
	return s.FieldAt(lat, lon, s.model.ReferenceYear(), 0).Declination
}

// Model returns the wrapped model for read-only metadata access.
func (s *SyncModel) Model() *Model {
	return s.model
}
