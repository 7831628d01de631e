package status

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pillnow/internal/events"
	"pillnow/internal/store"
	"pillnow/pkg/models"
)

var (
	// ErrInvalidStatus indica um status fora do conjunto Pending/Taken/Done/Missed
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition indica transição manual rejeitada no modo estrito
	ErrInvalidTransition = errors.New("invalid status transition")
)

const (
	notesAutoDone   = "Automatically marked as done"
	notesAutoMissed = "Automatically marked as missed (more than 1 hour late)"
	notesOutgoing   = "Status changed automatically"

	missedReasonExpired = "not_taken_within_grace_period"
)

// número de faixas de lock; memória constante independente de quantos
// schedules já transicionaram
const lockStripes = 64

// Engine é dona da máquina de estados das doses: aplica transições,
// anexa histórico, calcula adesão e publica eventos no bus.
// Caminhos automático (sweep) e manual (API) passam pelo mesmo código.
type Engine struct {
	store            store.ScheduleStore
	bus              *events.Bus
	graceMinutes     int
	toleranceMinutes int
	strict           bool

	// locks em faixas por scheduleId: duas escritas simultâneas no mesmo
	// registro não podem intercalar o read-modify-write do histórico
	locks [lockStripes]sync.Mutex
}

// Options configura a engine; zeros assumem os padrões do sistema
type Options struct {
	GracePeriodMinutes        int
	AdherenceToleranceMinutes int
	StrictStatusTransitions   bool
}

func NewEngine(st store.ScheduleStore, bus *events.Bus, opts Options) *Engine {
	if opts.GracePeriodMinutes <= 0 {
		opts.GracePeriodMinutes = 60
	}
	if opts.AdherenceToleranceMinutes <= 0 {
		opts.AdherenceToleranceMinutes = DefaultAdherenceToleranceMinutes
	}

	return &Engine{
		store:            st,
		bus:              bus,
		graceMinutes:     opts.GracePeriodMinutes,
		toleranceMinutes: opts.AdherenceToleranceMinutes,
		strict:           opts.StrictStatusTransitions,
	}
}

func (e *Engine) scheduleLock(id int64) *sync.Mutex {
	return &e.locks[uint64(id)%lockStripes]
}

// ApplyTransition aplica uma transição sobre o registro dado:
// registra o status de saída no histórico, grava o novo status,
// persiste e só então publica o evento.
func (e *Engine) ApplyTransition(ctx context.Context, s *models.DoseSchedule, newStatus models.Status, reason, notes, source string) error {
	mu := e.scheduleLock(s.ScheduleID)
	mu.Lock()
	defer mu.Unlock()

	return e.applyLocked(ctx, s, newStatus, reason, notes, source)
}

func (e *Engine) applyLocked(ctx context.Context, s *models.DoseSchedule, newStatus models.Status, reason, notes, source string) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	now := time.Now()
	previous := s.Status

	// registra o status de saída antes de sobrescrever
	if previous != "" {
		s.StatusHistory = append(s.StatusHistory, models.StatusHistoryEntry{
			Status:    previous,
			Timestamp: now,
			Reason:    models.ReasonSystem,
			Notes:     notesOutgoing,
		})
	}

	s.Status = newStatus
	s.LastStatusUpdate = &now

	s.StatusHistory = append(s.StatusHistory, models.StatusHistoryEntry{
		Status:    newStatus,
		Timestamp: now,
		Reason:    reason,
		Notes:     notes,
	})

	// adesão: Taken/Done anexam o instante observado; Missed registra o motivo
	switch newStatus {
	case models.StatusTaken, models.StatusDone:
		if scheduled, err := ScheduledInstant(s); err == nil {
			result := ComputeAdherence(scheduled, now, e.toleranceMinutes)
			s.AdherenceData.TakenOnTime = result.TakenOnTime
			s.AdherenceData.TakenLate = result.TakenLate
			s.AdherenceData.LateByMinutes = result.LateByMinutes
		}
	case models.StatusMissed:
		if reason == models.ReasonAutomatic {
			s.AdherenceData.MissedReason = missedReasonExpired
		} else if notes != "" {
			s.AdherenceData.MissedReason = notes
		} else {
			s.AdherenceData.MissedReason = models.ReasonManual
		}
	case models.StatusPending:
		// correção manual de volta para Pending não apaga a adesão já calculada
	}

	if err := e.store.Save(ctx, s); err != nil {
		return fmt.Errorf("failed to persist transition: %w", err)
	}

	e.bus.Publish(models.StatusUpdateEvent{
		ScheduleID:     s.ScheduleID,
		UserID:         s.User,
		MedicationID:   s.Medication,
		ContainerID:    s.Container,
		PreviousStatus: previous,
		NewStatus:      newStatus,
		UpdatedAt:      now.UTC().Format(time.RFC3339),
		Source:         source,
	})

	return nil
}

// Sweep é a varredura automática: envelhece doses Pending cujo horário
// passou. Mais de um período de graça ⇒ Missed direto, sem passar por Done.
// Um registro ruim nunca aborta o lote.
func (e *Engine) Sweep(ctx context.Context) (done, missed int, err error) {
	pending, err := e.store.FindPending(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load pending schedules: %w", err)
	}

	now := time.Now()
	grace := time.Duration(e.graceMinutes) * time.Minute

	for i := range pending {
		id := pending[i].ScheduleID

		newStatus, applied, serr := e.sweepOne(ctx, id, now, grace)
		if serr != nil {
			log.Printf("⚠️ Sweep: schedule %d não processado: %v", id, serr)
			continue
		}
		if !applied {
			continue
		}

		if newStatus == models.StatusDone {
			done++
		} else {
			missed++
		}
	}

	if done > 0 || missed > 0 {
		log.Printf("✅ Sweep concluído: %d Done, %d Missed", done, missed)
	}

	return done, missed, nil
}

// sweepOne relê o registro sob o lock do schedule e só envelhece doses
// que ainda estão Pending: o snapshot do FindPending pode estar velho e
// uma transição manual comitada nesse meio tempo não pode ser perdida.
func (e *Engine) sweepOne(ctx context.Context, id int64, now time.Time, grace time.Duration) (models.Status, bool, error) {
	mu := e.scheduleLock(id)
	mu.Lock()
	defer mu.Unlock()

	s, err := e.store.Get(ctx, id)
	if err != nil {
		return "", false, err
	}
	if s.Status != models.StatusPending {
		return "", false, nil
	}

	scheduled, err := ScheduledInstant(s)
	if err != nil {
		return "", false, err
	}
	if now.Before(scheduled) {
		return "", false, nil
	}

	newStatus := models.StatusDone
	notes := notesAutoDone
	if now.After(scheduled.Add(grace)) {
		newStatus = models.StatusMissed
		notes = notesAutoMissed
	}

	if err := e.applyLocked(ctx, s, newStatus, models.ReasonAutomatic, notes, models.SourceAutomatic); err != nil {
		return "", false, err
	}

	return newStatus, true, nil
}

// UpdateScheduleStatus é o caminho manual da API. Relê o registro
// persistido sob o lock do schedule antes de aplicar a transição.
func (e *Engine) UpdateScheduleStatus(ctx context.Context, scheduleID int64, newStatus models.Status, notes string) (*models.DoseSchedule, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	mu := e.scheduleLock(scheduleID)
	mu.Lock()
	defer mu.Unlock()

	s, err := e.store.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	// Modo estrito: só doses Pending aceitam transição manual.
	// Modo permissivo (padrão): qualquer alvo válido, inclusive correções.
	if e.strict && s.Status != models.StatusPending && s.Status != "" {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, newStatus)
	}

	if err := e.applyLocked(ctx, s, newStatus, models.ReasonManual, notes, models.SourceManual); err != nil {
		return nil, err
	}

	log.Printf("📝 Schedule %d atualizado manualmente para %s", scheduleID, newStatus)
	return s, nil
}

// UpdateScheduleFields altera campos de agendamento (medicação, container,
// data, hora) sob o lock do schedule, sempre sobre uma releitura do registro
// persistido: uma transição que comitou depois da leitura do chamador não
// pode ser revertida pelo upsert. Status, histórico e adesão não passam
// por aqui; para isso existe UpdateScheduleStatus.
func (e *Engine) UpdateScheduleFields(ctx context.Context, scheduleID int64, apply func(*models.DoseSchedule)) (*models.DoseSchedule, error) {
	mu := e.scheduleLock(scheduleID)
	mu.Lock()
	defer mu.Unlock()

	s, err := e.store.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	apply(s)

	if err := e.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to persist schedule update: %w", err)
	}

	return s, nil
}

// StatusHistory retorna o registro para leitura do histórico
func (e *Engine) StatusHistory(ctx context.Context, scheduleID int64) (*models.DoseSchedule, error) {
	return e.store.Get(ctx, scheduleID)
}

// SchedulesForNotification é o detector de janela de notificação:
// doses Pending sem alerta cujo horário cai estritamente entre agora
// e agora + leadMinutes. Só leitura; não muta estado.
func (e *Engine) SchedulesForNotification(ctx context.Context, leadMinutes int) ([]models.UpcomingDose, error) {
	if leadMinutes <= 0 {
		leadMinutes = 15
	}

	candidates, err := e.store.FindPendingUnalerted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules for notification: %w", err)
	}

	now := time.Now()
	windowEnd := now.Add(time.Duration(leadMinutes) * time.Minute)

	var upcoming []models.UpcomingDose
	for i := range candidates {
		s := &candidates[i]

		scheduled, perr := ScheduledInstant(s)
		if perr != nil {
			log.Printf("⚠️ Notification finder: data/hora inválida no schedule %d: %v", s.ScheduleID, perr)
			continue
		}

		if now.Before(scheduled) && windowEnd.After(scheduled) {
			upcoming = append(upcoming, models.UpcomingDose{
				ScheduleID:         s.ScheduleID,
				UserID:             s.User,
				MedicationID:       s.Medication,
				ContainerID:        s.Container,
				ScheduledTime:      scheduled,
				TimeUntilScheduled: int(scheduled.Sub(now).Minutes()),
			})
		}
	}

	return upcoming, nil
}

// MarkAlertSent seta alertSent=true. Não é transição de status:
// não passa por ApplyTransition, não anexa histórico, não emite evento.
func (e *Engine) MarkAlertSent(ctx context.Context, scheduleID int64) error {
	if err := e.store.MarkAlertSent(ctx, scheduleID); err != nil {
		return err
	}
	log.Printf("🔔 Alerta marcado como enviado para schedule %d", scheduleID)
	return nil
}

// MarkCaregiverNotified registra no adherenceData que o cuidador foi
// avisado; também não passa pela máquina de estados.
func (e *Engine) MarkCaregiverNotified(ctx context.Context, scheduleID int64) error {
	return e.store.MarkCaregiverNotified(ctx, scheduleID)
}
