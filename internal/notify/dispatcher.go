package notify

import (
	"context"
	"errors"
	"log"

	"pillnow/internal/events"
	"pillnow/internal/push"
	"pillnow/internal/status"
	"pillnow/internal/store"
	"pillnow/pkg/models"
)

// PushSender é o canal de push outbound (FCM em produção, stub em teste)
type PushSender interface {
	SendDoseReminder(deviceToken string, scheduleID int64, minutesUntil int) error
	SendMissedDoseAlert(deviceToken, elderName string, scheduleID int64) (*push.AlertResult, error)
	SendDoseConfirmation(deviceToken, elderName string, scheduleID int64) error
}

// EmailSender é o fallback por email
type EmailSender interface {
	SendDoseReminder(elderEmail, elderName string, minutesUntil int) error
	SendMissedDoseAlert(caregiverEmail, caregiverName, elderName string, scheduleID int64) error
}

// Dispatcher roda no próprio timer (5 minutos): pergunta à engine quais
// doses entraram na janela de antecedência, dispara o lembrete e marca
// alertSent. Também assina o bus para alertar cuidadores em doses Missed
// e confirmar doses Taken.
//
// O dispatcher e o sweep rodam em timers independentes sobre o mesmo
// conjunto de registros. Uma dose pode sair de Pending no sweep logo
// depois de selecionada aqui; o lembrete é consultivo, então essa corrida
// é aceita e não há lock entre os dois loops.
type Dispatcher struct {
	engine      *status.Engine
	users       store.UserStore
	connections store.ConnectionStore
	pushSvc     PushSender
	emailSvc    EmailSender
	leadMinutes int
}

func NewDispatcher(engine *status.Engine, users store.UserStore, connections store.ConnectionStore, pushSvc PushSender, emailSvc EmailSender, leadMinutes int) *Dispatcher {
	if leadMinutes <= 0 {
		leadMinutes = 15
	}
	return &Dispatcher{
		engine:      engine,
		users:       users,
		connections: connections,
		pushSvc:     pushSvc,
		emailSvc:    emailSvc,
		leadMinutes: leadMinutes,
	}
}

// Run é um tick do dispatcher: encontra doses na janela, notifica e
// marca o alerta como enviado. Erros são logados e não param o lote.
func (d *Dispatcher) Run(ctx context.Context) error {
	upcoming, err := d.engine.SchedulesForNotification(ctx, d.leadMinutes)
	if err != nil {
		return err
	}

	if len(upcoming) == 0 {
		return nil
	}

	log.Printf("🔔 %d dose(s) na janela de notificação", len(upcoming))

	for _, dose := range upcoming {
		d.sendReminder(ctx, dose)

		if err := d.engine.MarkAlertSent(ctx, dose.ScheduleID); err != nil {
			log.Printf("❌ Erro ao marcar alerta enviado (schedule %d): %v", dose.ScheduleID, err)
		}
	}

	return nil
}

func (d *Dispatcher) sendReminder(ctx context.Context, dose models.UpcomingDose) {
	elder, err := d.users.GetUser(ctx, dose.UserID)
	if err != nil {
		log.Printf("⚠️ Destinatário do lembrete não encontrado (user %d): %v", dose.UserID, err)
		return
	}

	sent := false

	if d.pushSvc != nil && elder.DeviceToken != "" {
		if err := d.pushSvc.SendDoseReminder(elder.DeviceToken, dose.ScheduleID, dose.TimeUntilScheduled); err != nil {
			log.Printf("❌ Erro ao enviar push de lembrete (schedule %d): %v", dose.ScheduleID, err)
		} else {
			sent = true
		}
	}

	if !sent && d.emailSvc != nil && elder.Email != "" {
		if err := d.emailSvc.SendDoseReminder(elder.Email, elder.Name, dose.TimeUntilScheduled); err != nil {
			log.Printf("❌ Erro ao enviar email de lembrete (schedule %d): %v", dose.ScheduleID, err)
		} else {
			sent = true
		}
	}

	if !sent {
		log.Printf("⚠️ Nenhum canal disponível para o lembrete do schedule %d", dose.ScheduleID)
	}
}

// WatchTransitions assina o bus: doses Missed alertam os cuidadores
// vinculados, doses Taken confirmam para eles que o remédio foi tomado.
// Retorna quando o contexto é cancelado ou o bus fecha.
func (d *Dispatcher) WatchTransitions(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			switch event.NewStatus {
			case models.StatusMissed:
				d.alertCaregivers(ctx, event)
			case models.StatusTaken:
				d.confirmCaregivers(ctx, event)
			}
		}
	}
}

func (d *Dispatcher) alertCaregivers(ctx context.Context, event models.StatusUpdateEvent) {
	links, err := d.connections.ActiveByElder(ctx, event.UserID)
	if err != nil {
		log.Printf("❌ Erro ao buscar vínculos do idoso %d: %v", event.UserID, err)
		return
	}

	elder, err := d.users.GetUser(ctx, event.UserID)
	if err != nil {
		log.Printf("⚠️ Idoso %d não encontrado para alerta de dose perdida: %v", event.UserID, err)
		return
	}

	notified := false

	for _, link := range links {
		if !link.Permissions.ReceiveAlerts {
			continue
		}

		caregiver, err := d.users.GetUser(ctx, link.Caregiver)
		if err != nil {
			log.Printf("⚠️ Cuidador %d não encontrado: %v", link.Caregiver, err)
			continue
		}

		sent := false

		if d.pushSvc != nil && caregiver.DeviceToken != "" {
			if _, err := d.pushSvc.SendMissedDoseAlert(caregiver.DeviceToken, elder.Name, event.ScheduleID); err != nil {
				log.Printf("❌ Erro ao enviar push para cuidador %d: %v", caregiver.ID, err)
			} else {
				sent = true
			}
		}

		if !sent && d.emailSvc != nil && caregiver.Email != "" {
			if err := d.emailSvc.SendMissedDoseAlert(caregiver.Email, caregiver.Name, elder.Name, event.ScheduleID); err != nil {
				log.Printf("❌ Erro ao enviar email para cuidador %d: %v", caregiver.ID, err)
			} else {
				sent = true
			}
		}

		if sent {
			notified = true
			log.Printf("📵 Cuidador %d notificado sobre dose perdida de %s", caregiver.ID, elder.Name)
		}
	}

	if notified {
		if err := d.engine.MarkCaregiverNotified(ctx, event.ScheduleID); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("❌ Erro ao registrar notificação do cuidador (schedule %d): %v", event.ScheduleID, err)
		}
	}
}

// confirmCaregivers avisa os cuidadores com receiveAlerts que a dose foi
// tomada. Confirmação é melhor-esforço: só push, sem fallback por email.
func (d *Dispatcher) confirmCaregivers(ctx context.Context, event models.StatusUpdateEvent) {
	if d.pushSvc == nil {
		return
	}

	links, err := d.connections.ActiveByElder(ctx, event.UserID)
	if err != nil {
		log.Printf("❌ Erro ao buscar vínculos do idoso %d: %v", event.UserID, err)
		return
	}

	elder, err := d.users.GetUser(ctx, event.UserID)
	if err != nil {
		log.Printf("⚠️ Idoso %d não encontrado para confirmação de dose: %v", event.UserID, err)
		return
	}

	for _, link := range links {
		if !link.Permissions.ReceiveAlerts {
			continue
		}

		caregiver, err := d.users.GetUser(ctx, link.Caregiver)
		if err != nil || caregiver.DeviceToken == "" {
			continue
		}

		if err := d.pushSvc.SendDoseConfirmation(caregiver.DeviceToken, elder.Name, event.ScheduleID); err != nil {
			log.Printf("❌ Erro ao confirmar dose para cuidador %d: %v", caregiver.ID, err)
		}
	}
}
