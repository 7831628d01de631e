package workers

import (
	"context"
	"log"
	"time"

	"pillnow/internal/status"
	"pillnow/internal/store"
	"pillnow/pkg/models"
)

// ReportMailer envia o relatório de adesão (email em produção, stub em teste)
type ReportMailer interface {
	SendAdherenceReport(caregiverEmail, caregiverName, elderName string, stats models.AdherenceStats) error
}

// AdherenceWorker agrega as métricas de adesão por idoso e envia um
// relatório periódico aos cuidadores com a permissão viewAdherence.
type AdherenceWorker struct {
	schedules   store.ScheduleStore
	connections store.ConnectionStore
	users       store.UserStore
	mailer      ReportMailer
	interval    time.Duration
}

// NewAdherenceWorker cria o worker de relatórios de adesão
func NewAdherenceWorker(schedules store.ScheduleStore, connections store.ConnectionStore, users store.UserStore, mailer ReportMailer, intervalHours int) *AdherenceWorker {
	if intervalHours <= 0 {
		intervalHours = 24
	}
	return &AdherenceWorker{
		schedules:   schedules,
		connections: connections,
		users:       users,
		mailer:      mailer,
		interval:    time.Duration(intervalHours) * time.Hour,
	}
}

func (aw *AdherenceWorker) Name() string {
	return "Adherence Reporter"
}

func (aw *AdherenceWorker) Interval() time.Duration {
	return aw.interval
}

func (aw *AdherenceWorker) Run(ctx context.Context) error {
	if aw.mailer == nil {
		return nil
	}

	all, err := aw.schedules.FindAll(ctx)
	if err != nil {
		return err
	}

	byElder := make(map[int64][]models.DoseSchedule)
	for _, s := range all {
		byElder[s.User] = append(byElder[s.User], s)
	}

	log.Printf("📊 Gerando relatório de adesão para %d idoso(s)...", len(byElder))

	sent := 0
	for elderID, schedules := range byElder {
		stats := status.ComputeStats(elderID, schedules)

		elder, err := aw.users.GetUser(ctx, elderID)
		if err != nil {
			log.Printf("⚠️ Idoso %d não encontrado para relatório: %v", elderID, err)
			continue
		}

		links, err := aw.connections.ActiveByElder(ctx, elderID)
		if err != nil {
			log.Printf("❌ Erro ao buscar vínculos do idoso %d: %v", elderID, err)
			continue
		}

		for _, link := range links {
			if !link.Permissions.ViewAdherence {
				continue
			}

			caregiver, err := aw.users.GetUser(ctx, link.Caregiver)
			if err != nil || caregiver.Email == "" {
				continue
			}

			if err := aw.mailer.SendAdherenceReport(caregiver.Email, caregiver.Name, elder.Name, stats); err != nil {
				log.Printf("❌ Erro ao enviar relatório para cuidador %d: %v", caregiver.ID, err)
				continue
			}
			sent++
		}
	}

	if sent > 0 {
		log.Printf("✅ Relatórios de adesão enviados: %d", sent)
	}

	return nil
}
