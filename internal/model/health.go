package model

// HealthStatus summarizes registry availability.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthReport is a point-in-time availability summary of the catalog.
type HealthReport struct {
	Status          HealthStatus      `json:"status"`
	Models          map[string]string `json:"models"`
	TotalModels     int               `json:"total_models"`
	AvailableModels int               `json:"available_models"`
}

// Health computes the availability summary: unhealthy when no model is
// available, degraded when fewer than half are.
func (r *Registry) Health() HealthReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := HealthReport{
		Models:      make(map[string]string, len(r.models)),
		TotalModels: len(r.models),
	}
	for id, m := range r.models {
		if m.Available {
			report.Models[id] = "available"
			report.AvailableModels++
		} else {
			report.Models[id] = "unavailable"
		}
	}

	switch {
	case report.AvailableModels == 0:
		report.Status = HealthUnhealthy
	case float64(report.AvailableModels) < float64(report.TotalModels)*0.5:
		report.Status = HealthDegraded
	default:
		report.Status = HealthHealthy
	}
	return report
}
