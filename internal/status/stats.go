package status

import "pillnow/pkg/models"

// ComputeStats agrega as métricas de adesão de um idoso sobre o conjunto
// de doses dele. Taxas em percentual sobre o total de doses já resolvidas
// (Pending fica de fora do denominador).
func ComputeStats(elderID int64, schedules []models.DoseSchedule) models.AdherenceStats {
	stats := models.AdherenceStats{
		ElderID:        elderID,
		TotalSchedules: len(schedules),
	}

	for i := range schedules {
		s := &schedules[i]

		switch s.Status {
		case models.StatusTaken:
			stats.Taken++
		case models.StatusDone:
			stats.Done++
		case models.StatusMissed:
			stats.Missed++
		case models.StatusPending:
			stats.Pending++
		}

		if s.AdherenceData.TakenLate {
			stats.LateDoses++
		}
	}

	resolved := stats.Taken + stats.Done + stats.Missed
	if resolved > 0 {
		stats.AdherenceRate = float64(stats.Taken+stats.Done) / float64(resolved) * 100
		stats.MissedRate = float64(stats.Missed) / float64(resolved) * 100
		stats.LateRate = float64(stats.LateDoses) / float64(resolved) * 100
	}

	return stats
}
