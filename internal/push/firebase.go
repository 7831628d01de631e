package push

import (
	"context"
	"fmt"
	"log"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type FirebaseService struct {
	client *messaging.Client
	ctx    context.Context
}

type AlertResult struct {
	Success      bool
	MessageID    string
	Error        error
	SentAt       time.Time
	DeliveryType string // "push", "email"
}

// NewFirebaseService inicializa o cliente Firebase com suporte a FCM
func NewFirebaseService(credentialsPath string) (*FirebaseService, error) {
	ctx := context.Background()

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %w", err)
	}

	log.Println("✅ Firebase service initialized successfully")

	return &FirebaseService{
		client: client,
		ctx:    ctx,
	}, nil
}

// SendDoseReminder avisa o idoso que uma dose está chegando
func (s *FirebaseService) SendDoseReminder(deviceToken string, scheduleID int64, minutesUntil int) error {
	if deviceToken == "" {
		return fmt.Errorf("device token is empty")
	}

	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: "💊 Medication Reminder",
			Body:  fmt.Sprintf("Your medication is scheduled in %d minutes", minutesUntil),
		},
		Data: map[string]string{
			"type":       "dose_reminder",
			"scheduleId": fmt.Sprintf("%d", scheduleID),
			"priority":   "high",
			"timestamp":  fmt.Sprintf("%d", time.Now().Unix()),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:        "default",
				Priority:     messaging.PriorityHigh,
				ChannelID:    "pillnow_reminders",
				DefaultSound: true,
			},
		},
	}

	response, err := s.client.Send(s.ctx, message)
	if err != nil {
		return fmt.Errorf("error sending reminder push: %w", err)
	}

	log.Printf("📲 Lembrete de dose enviado (schedule %d): %s", scheduleID, response)
	return nil
}

// SendMissedDoseAlert notifica o cuidador quando o idoso perde uma dose
func (s *FirebaseService) SendMissedDoseAlert(deviceToken, elderName string, scheduleID int64) (*AlertResult, error) {
	if deviceToken == "" {
		err := fmt.Errorf("device token is empty")
		return &AlertResult{
			Success:      false,
			Error:        err,
			SentAt:       time.Now(),
			DeliveryType: "push",
		}, err
	}

	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: "⚠️ Missed Dose",
			Body:  fmt.Sprintf("%s missed a scheduled medication dose. Please check in.", elderName),
		},
		Data: map[string]string{
			"type":       "missed_dose_alert",
			"scheduleId": fmt.Sprintf("%d", scheduleID),
			"elder_name": elderName,
			"priority":   "high",
			"timestamp":  fmt.Sprintf("%d", time.Now().Unix()),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:        "alert",
				Priority:     messaging.PriorityHigh,
				ChannelID:    "pillnow_alerts",
				DefaultSound: true,
				Color:        "#FF0000",
			},
		},
	}

	response, err := s.client.Send(s.ctx, message)

	result := &AlertResult{
		Success:      err == nil,
		MessageID:    response,
		Error:        err,
		SentAt:       time.Now(),
		DeliveryType: "push",
	}

	if err != nil {
		log.Printf("❌ Erro ao enviar alerta de dose perdida: %v", err)
		return result, fmt.Errorf("error sending missed dose push: %w", err)
	}

	log.Printf("📵 Alerta de dose perdida enviado: %s", response)
	return result, nil
}

// SendDoseConfirmation confirma para o cuidador que a dose foi tomada
func (s *FirebaseService) SendDoseConfirmation(deviceToken, elderName string, scheduleID int64) error {
	if deviceToken == "" {
		return fmt.Errorf("device token is empty")
	}

	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: "✅ Dose Taken",
			Body:  fmt.Sprintf("%s took the scheduled medication", elderName),
		},
		Data: map[string]string{
			"type":       "dose_confirmed",
			"scheduleId": fmt.Sprintf("%d", scheduleID),
			"timestamp":  fmt.Sprintf("%d", time.Now().Unix()),
		},
		Android: &messaging.AndroidConfig{
			Priority: "normal",
			Notification: &messaging.AndroidNotification{
				Sound:        "default",
				ChannelID:    "pillnow_medications",
				DefaultSound: true,
				Color:        "#00FF00",
			},
		},
	}

	response, err := s.client.Send(s.ctx, message)
	if err != nil {
		return fmt.Errorf("error sending confirmation push: %w", err)
	}

	log.Printf("✅ Confirmação de dose enviada: %s", response)
	return nil
}

// ValidateToken verifica se um device token é válido
func (s *FirebaseService) ValidateToken(deviceToken string) bool {
	if deviceToken == "" {
		return false
	}

	// Mensagem silenciosa de teste
	message := &messaging.Message{
		Token: deviceToken,
		Data: map[string]string{
			"type": "token_validation",
		},
		Android: &messaging.AndroidConfig{
			Priority: "normal",
		},
	}

	if _, err := s.client.Send(s.ctx, message); err != nil {
		log.Printf("❌ ValidateToken failed for token %s...: %v", deviceToken[:10], err)
		return false
	}
	return true
}

// IsInvalidTokenError verifica se o erro do Firebase indica token inválido
func IsInvalidTokenError(err error) bool {
	return messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsSenderIDMismatch(err)
}
