package access

import (
	"context"
	"errors"

	"pillnow/internal/store"
	"pillnow/pkg/models"
)

// Operation distingue leitura de mutação nas regras de acesso
type Operation int

const (
	OpRead Operation = iota
	OpWrite
)

// CanAccess decide se o ator pode ler/mutar uma dose específica.
// Regras por papel:
//   - admin: sempre
//   - idoso: apenas as próprias doses (schedule.User)
//   - cuidador: apenas doses que ele mesmo criou (schedule.CreatedBy)
//
// Predicado puro; a propriedade é sempre avaliada contra o registro
// persistido, nunca contra campos vindos do cliente.
func CanAccess(actor models.Actor, s *models.DoseSchedule, op Operation) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleElder:
		return s.User == actor.UserID
	case models.RoleCaregiver:
		return s.CreatedBy == actor.UserID
	}
	return false
}

// Guard agrega os predicados de acesso que dependem de consulta
// (vínculos cuidador-idoso). As regras puras ficam em CanAccess.
type Guard struct {
	connections store.ConnectionStore
}

func NewGuard(connections store.ConnectionStore) *Guard {
	return &Guard{connections: connections}
}

// CanListElderSchedules é a regra de listagem, separada de CanAccess
// de propósito: para listar "doses do meu idoso" um cuidador precisa de
// um vínculo ativo com o idoso alvo, checado uma vez por requisição.
func (g *Guard) CanListElderSchedules(ctx context.Context, actor models.Actor, elderID int64) (bool, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleElder:
		return actor.UserID == elderID, nil
	case models.RoleCaregiver:
		_, err := g.connections.ActiveLink(ctx, actor.UserID, elderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}
	return false, nil
}
