package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"pillnow/internal/access"
	"pillnow/internal/middleware"
	"pillnow/internal/status"
	"pillnow/internal/store"
	"pillnow/pkg/models"

	"github.com/gorilla/mux"
)

// Handler agrupa as rotas de agendamento de doses
type Handler struct {
	schedules   store.ScheduleStore
	connections store.ConnectionStore
	engine      *status.Engine
	guard       *access.Guard
	leadMinutes int
}

func NewHandler(schedules store.ScheduleStore, connections store.ConnectionStore, engine *status.Engine, guard *access.Guard, leadMinutes int) *Handler {
	if leadMinutes <= 0 {
		leadMinutes = 15
	}
	return &Handler{
		schedules:   schedules,
		connections: connections,
		engine:      engine,
		guard:       guard,
		leadMinutes: leadMinutes,
	}
}

// RegisterRoutes liga as rotas no subrouter /api (já autenticado)
func (h *Handler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/schedules", h.CreateSchedule).Methods("POST")
	api.HandleFunc("/schedules", h.ListSchedules).Methods("GET")

	// rotas fixas antes da rota com {id}
	api.HandleFunc("/schedules/status/update", h.UpdateStatus).Methods("POST")
	api.HandleFunc("/schedules/status/history/{scheduleId:[0-9]+}", h.StatusHistory).Methods("GET")
	api.HandleFunc("/schedules/notifications/pending", h.PendingNotifications).Methods("GET")
	api.HandleFunc("/schedules/notifications/mark-sent", h.MarkAlertSent).Methods("POST")

	api.HandleFunc("/schedules/{id:[0-9]+}", h.GetSchedule).Methods("GET")
	api.HandleFunc("/schedules/{id:[0-9]+}", h.UpdateSchedule).Methods("PUT")
	api.HandleFunc("/schedules/{id:[0-9]+}", h.DeleteSchedule).Methods("DELETE")

	api.HandleFunc("/monitor/adherence/{elderId:[0-9]+}", h.AdherenceReport).Methods("GET")
}

type createScheduleRequest struct {
	User       int64  `json:"user"`
	Medication int64  `json:"medication"`
	Container  string `json:"container"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

// CreateSchedule cria uma dose agendada.
// Idoso só cria para si; cuidador precisa de vínculo ativo com o idoso alvo.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.User == 0 || req.Medication == 0 || req.Date == "" || req.Time == "" {
		respondError(w, http.StatusBadRequest, "user, medication, date and time are required")
		return
	}

	if !validTimeOfDay(req.Time) {
		respondError(w, http.StatusBadRequest, "time must be in HH:MM format")
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
		return
	}

	switch actor.Role {
	case models.RoleAdmin:
		// pode criar para qualquer idoso
	case models.RoleElder:
		if req.User != actor.UserID {
			respondError(w, http.StatusForbidden, "Access denied")
			return
		}
	case models.RoleCaregiver:
		link, err := h.connections.ActiveLink(r.Context(), actor.UserID, req.User)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusForbidden, "Access denied")
				return
			}
			respondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !link.Permissions.ManageMedications {
			respondError(w, http.StatusForbidden, "Access denied")
			return
		}
	default:
		respondError(w, http.StatusForbidden, "Access denied")
		return
	}

	s := &models.DoseSchedule{
		User:       req.User,
		CreatedBy:  actor.UserID,
		Medication: req.Medication,
		Container:  req.Container,
		Date:       date,
		Time:       req.Time,
		Status:     models.StatusPending,
	}

	if err := h.schedules.Create(r.Context(), s); err != nil {
		log.Printf("❌ Erro ao criar schedule: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("💊 Schedule %d criado para usuário %d", s.ScheduleID, s.User)
	respondData(w, http.StatusCreated, s)
}

// ListSchedules lista doses por idoso. Sem elderId: idoso vê as próprias,
// admin vê todas.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	elderParam := r.URL.Query().Get("elderId")

	if elderParam == "" {
		switch actor.Role {
		case models.RoleElder:
			elderParam = strconv.FormatInt(actor.UserID, 10)
		case models.RoleAdmin:
			all, err := h.schedules.FindAll(r.Context())
			if err != nil {
				respondError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			respondData(w, http.StatusOK, all)
			return
		default:
			respondError(w, http.StatusBadRequest, "elderId is required")
			return
		}
	}

	elderID, err := strconv.ParseInt(elderParam, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "elderId must be numeric")
		return
	}

	allowed, err := h.guard.CanListElderSchedules(r.Context(), actor, elderID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "Access denied")
		return
	}

	schedules, err := h.schedules.FindByUser(r.Context(), elderID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondData(w, http.StatusOK, schedules)
}

// GetSchedule retorna uma dose. A autorização é sempre avaliada contra o
// registro persistido; 404 só depois de confirmar que não existe.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	_, s, done := h.resolveSchedule(w, r, access.OpRead)
	if done {
		return
	}
	respondData(w, http.StatusOK, s)
}

type updateScheduleRequest struct {
	Medication *int64  `json:"medication"`
	Container  *string `json:"container"`
	Date       *string `json:"date"`
	Time       *string `json:"time"`
}

// UpdateSchedule altera campos de agendamento (não o status; para isso
// existe a rota de transição). A gravação roda sob o lock do schedule,
// sobre uma releitura, para não reverter uma transição concorrente.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	_, s, done := h.resolveSchedule(w, r, access.OpWrite)
	if done {
		return
	}

	var req updateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Time != nil && !validTimeOfDay(*req.Time) {
		respondError(w, http.StatusBadRequest, "time must be in HH:MM format")
		return
	}

	var date time.Time
	if req.Date != nil {
		parsed, err := parseDate(*req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
			return
		}
		date = parsed
	}

	updated, err := h.engine.UpdateScheduleFields(r.Context(), s.ScheduleID, func(cur *models.DoseSchedule) {
		if req.Time != nil {
			cur.Time = *req.Time
		}
		if req.Date != nil {
			cur.Date = date
		}
		if req.Medication != nil {
			cur.Medication = *req.Medication
		}
		if req.Container != nil {
			cur.Container = *req.Container
		}
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Schedule not found")
			return
		}
		log.Printf("❌ Erro ao atualizar schedule %d: %v", s.ScheduleID, err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondData(w, http.StatusOK, updated)
}

// DeleteSchedule remove a dose
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	_, s, done := h.resolveSchedule(w, r, access.OpWrite)
	if done {
		return
	}

	if err := h.schedules.Delete(r.Context(), s.ScheduleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Schedule not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("🗑️ Schedule %d removido", s.ScheduleID)
	respondData(w, http.StatusOK, map[string]int64{"scheduleId": s.ScheduleID})
}

type updateStatusRequest struct {
	ScheduleID int64         `json:"scheduleId"`
	Status     models.Status `json:"status"`
	Notes      string        `json:"notes"`
}

// UpdateStatus é o caminho manual de transição de status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ScheduleID == 0 {
		respondError(w, http.StatusBadRequest, "scheduleId is required")
		return
	}

	if !req.Status.IsValid() {
		respondError(w, http.StatusBadRequest, "Invalid status value")
		return
	}

	s, err := h.schedules.Get(r.Context(), req.ScheduleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Schedule not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !access.CanAccess(actor, s, access.OpWrite) {
		respondError(w, http.StatusForbidden, "Access denied")
		return
	}

	updated, err := h.engine.UpdateScheduleStatus(r.Context(), req.ScheduleID, req.Status, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrInvalidStatus), errors.Is(err, status.ErrInvalidTransition):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "Schedule not found")
		default:
			log.Printf("❌ Erro na transição manual do schedule %d: %v", req.ScheduleID, err)
			respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondData(w, http.StatusOK, updated)
}

// StatusHistory devolve o histórico completo de transições da dose
func (h *Handler) StatusHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["scheduleId"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "scheduleId must be numeric")
		return
	}

	s, err := h.engine.StatusHistory(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Schedule not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !access.CanAccess(actor, s, access.OpRead) {
		respondError(w, http.StatusForbidden, "Access denied")
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"scheduleId":    s.ScheduleID,
		"status":        s.Status,
		"statusHistory": s.StatusHistory,
	})
}

// PendingNotifications lista doses dentro da janela de notificação,
// recortadas pelo papel: admin vê tudo, idoso as próprias, cuidador as
// que ele mesmo criou.
func (h *Handler) PendingNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	upcoming, err := h.engine.SchedulesForNotification(r.Context(), h.leadMinutes)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if actor.Role != models.RoleAdmin {
		filtered := make([]models.UpcomingDose, 0, len(upcoming))
		for _, dose := range upcoming {
			switch actor.Role {
			case models.RoleElder:
				if dose.UserID == actor.UserID {
					filtered = append(filtered, dose)
				}
			case models.RoleCaregiver:
				s, err := h.schedules.Get(r.Context(), dose.ScheduleID)
				if err != nil {
					continue
				}
				if s.CreatedBy == actor.UserID {
					filtered = append(filtered, dose)
				}
			}
		}
		upcoming = filtered
	}

	respondData(w, http.StatusOK, upcoming)
}

type markSentRequest struct {
	ScheduleID int64 `json:"scheduleId"`
}

// MarkAlertSent marca o alerta como enviado (admin). Não mexe em status,
// histórico nem eventos.
func (h *Handler) MarkAlertSent(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	if actor.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "Access denied")
		return
	}

	var req markSentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScheduleID == 0 {
		respondError(w, http.StatusBadRequest, "scheduleId is required")
		return
	}

	if err := h.engine.MarkAlertSent(r.Context(), req.ScheduleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Schedule not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{"scheduleId": req.ScheduleID, "alertSent": true})
}

// AdherenceReport agrega as métricas de adesão do idoso.
// Cuidador precisa de vínculo ativo com a permissão viewAdherence.
func (h *Handler) AdherenceReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	elderID, err := strconv.ParseInt(mux.Vars(r)["elderId"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "elderId must be numeric")
		return
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleElder:
		if actor.UserID != elderID {
			respondError(w, http.StatusForbidden, "Access denied")
			return
		}
	case models.RoleCaregiver:
		link, err := h.connections.ActiveLink(r.Context(), actor.UserID, elderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusForbidden, "Access denied")
				return
			}
			respondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !link.Permissions.ViewAdherence {
			respondError(w, http.StatusForbidden, "Access denied")
			return
		}
	default:
		respondError(w, http.StatusForbidden, "Access denied")
		return
	}

	schedules, err := h.schedules.FindByUser(r.Context(), elderID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondData(w, http.StatusOK, status.ComputeStats(elderID, schedules))
}

// resolveSchedule busca o registro e aplica CanAccess. Retorna done=true
// quando a resposta já foi escrita.
func (h *Handler) resolveSchedule(w http.ResponseWriter, r *http.Request, op access.Operation) (models.Actor, *models.DoseSchedule, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "No token provided")
		return models.Actor{}, nil, true
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "id must be numeric")
		return actor, nil, true
	}

	s, err := h.schedules.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Schedule not found")
			return actor, nil, true
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return actor, nil, true
	}

	if !access.CanAccess(actor, s, op) {
		respondError(w, http.StatusForbidden, "Access denied")
		return actor, nil, true
	}

	return actor, s, false
}
