package email

import (
	"fmt"
	"log"

	"pillnow/pkg/models"
)

// SendDoseReminder envia email de lembrete de dose
func (s *EmailService) SendDoseReminder(elderEmail, elderName string, minutesUntil int) error {
	subject := fmt.Sprintf("💊 Lembrete de Medicação - %s", elderName)
	htmlBody := DoseReminderTemplate(elderName, minutesUntil)

	if err := s.SendEmail(elderEmail, subject, htmlBody); err != nil {
		log.Printf("❌ Erro ao enviar email de lembrete: %v", err)
		return err
	}

	log.Printf("📧 Email de lembrete enviado para: %s", elderEmail)
	return nil
}

// SendMissedDoseAlert envia email de dose perdida para o cuidador
func (s *EmailService) SendMissedDoseAlert(caregiverEmail, caregiverName, elderName string, scheduleID int64) error {
	subject := fmt.Sprintf("⚠️ Dose Não Tomada - %s", elderName)
	htmlBody := MissedDoseAlertTemplate(elderName, caregiverName, scheduleID)

	if err := s.SendEmail(caregiverEmail, subject, htmlBody); err != nil {
		log.Printf("❌ Erro ao enviar email de dose perdida: %v", err)
		return err
	}

	log.Printf("📧 Email de dose perdida enviado para: %s", caregiverEmail)
	return nil
}

// SendAdherenceReport envia o relatório periódico de adesão
func (s *EmailService) SendAdherenceReport(caregiverEmail, caregiverName, elderName string, stats models.AdherenceStats) error {
	subject := fmt.Sprintf("📊 Relatório de Adesão - %s", elderName)
	htmlBody := AdherenceReportTemplate(elderName, caregiverName, stats)

	if err := s.SendEmail(caregiverEmail, subject, htmlBody); err != nil {
		log.Printf("❌ Erro ao enviar relatório de adesão: %v", err)
		return err
	}

	log.Printf("📧 Relatório de adesão enviado para: %s", caregiverEmail)
	return nil
}
