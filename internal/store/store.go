package store

import (
	"context"
	"errors"

	"pillnow/pkg/models"
)

// ErrNotFound é retornado quando o registro não existe.
// Distinto de erro de autorização: a camada HTTP traduz um para 404
// e o outro para 403.
var ErrNotFound = errors.New("record not found")

// ScheduleStore é a única camada que toca armazenamento durável de doses.
type ScheduleStore interface {
	// Get retorna a dose pelo scheduleId ou ErrNotFound
	Get(ctx context.Context, id int64) (*models.DoseSchedule, error)

	// FindPending retorna todas as doses com status Pending
	FindPending(ctx context.Context) ([]models.DoseSchedule, error)

	// FindPendingUnalerted retorna doses Pending ainda sem alerta enviado
	FindPendingUnalerted(ctx context.Context) ([]models.DoseSchedule, error)

	// FindByUser retorna as doses de um usuário (idoso)
	FindByUser(ctx context.Context, userID int64) ([]models.DoseSchedule, error)

	// FindAll retorna todas as doses
	FindAll(ctx context.Context) ([]models.DoseSchedule, error)

	// Create atribui um scheduleId sequencial e persiste o registro.
	// A atribuição do id usa um incremento atômico único por entidade,
	// seguro sob criadores concorrentes.
	Create(ctx context.Context, s *models.DoseSchedule) error

	// Save faz upsert por scheduleId. Histórico e adesão são gravados
	// atomicamente com o restante do registro.
	Save(ctx context.Context, s *models.DoseSchedule) error

	// Delete remove o registro inteiro ou retorna ErrNotFound
	Delete(ctx context.Context, id int64) error

	// MarkAlertSent seta alertSent=true sem tocar histórico nem status
	MarkAlertSent(ctx context.Context, id int64) error

	// MarkCaregiverNotified registra que o cuidador foi avisado,
	// sem passar pela máquina de estados
	MarkCaregiverNotified(ctx context.Context, id int64) error
}

// ConnectionStore consulta vínculos cuidador-idoso (mantidos fora deste núcleo)
type ConnectionStore interface {
	// ActiveLink retorna o vínculo ativo entre cuidador e idoso, ou ErrNotFound
	ActiveLink(ctx context.Context, caregiverID, elderID int64) (*models.CaregiverConnection, error)

	// ActiveByElder retorna todos os vínculos ativos de um idoso
	ActiveByElder(ctx context.Context, elderID int64) ([]models.CaregiverConnection, error)
}

// UserStore resolve destinatários de notificação
type UserStore interface {
	// GetUser retorna o usuário pelo id ou ErrNotFound
	GetUser(ctx context.Context, id int64) (*models.User, error)
}
