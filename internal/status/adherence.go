package status

import (
	"fmt"
	"time"

	"pillnow/pkg/models"
)

// DefaultAdherenceToleranceMinutes é a janela padrão para considerar
// uma dose tomada "no horário"
const DefaultAdherenceToleranceMinutes = 15

// AdherenceResult é o resultado puro do cálculo de adesão
type AdherenceResult struct {
	TakenOnTime   bool
	TakenLate     bool
	LateByMinutes float64
}

// ComputeAdherence compara o instante agendado com o instante observado.
// Diferença absoluta ≤ tolerância ⇒ no horário; caso contrário atrasada,
// com LateByMinutes em minutos fracionários (sem arredondar).
// Função pura; quem chama anexa o resultado em adherenceData.
func ComputeAdherence(scheduled, observed time.Time, toleranceMinutes int) AdherenceResult {
	if toleranceMinutes <= 0 {
		toleranceMinutes = DefaultAdherenceToleranceMinutes
	}

	diff := observed.Sub(scheduled)
	if diff < 0 {
		diff = -diff
	}
	diffMinutes := diff.Minutes()

	if diffMinutes <= float64(toleranceMinutes) {
		return AdherenceResult{TakenOnTime: true}
	}

	return AdherenceResult{
		TakenLate:     true,
		LateByMinutes: diffMinutes,
	}
}

// ScheduledInstant monta o instante agendado a partir de (date, time).
// O par é interpretado no fuso local, como o resto do sistema.
func ScheduledInstant(s *models.DoseSchedule) (time.Time, error) {
	dateStr := s.Date.Format("2006-01-02")
	instant, err := time.ParseInLocation("2006-01-02 15:04", dateStr+" "+s.Time, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule date/time %q %q: %w", dateStr, s.Time, err)
	}
	return instant, nil
}
