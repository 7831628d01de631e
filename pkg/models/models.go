package models

import "time"

// Status de uma dose agendada
type Status string

const (
	StatusPending Status = "Pending"
	StatusTaken   Status = "Taken"
	StatusDone    Status = "Done"
	StatusMissed  Status = "Missed"
)

// IsValid verifica se o status pertence ao conjunto conhecido
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusTaken, StatusDone, StatusMissed:
		return true
	}
	return false
}

// Motivos registrados no histórico de status
const (
	ReasonAutomatic = "automatic"
	ReasonManual    = "manual"
	ReasonSystem    = "system"
)

// Origem de um evento de transição
const (
	SourceAutomatic = "automatic"
	SourceManual    = "manual"
)

// Role do usuário autenticado
type Role int

const (
	RoleAdmin     Role = 1
	RoleElder     Role = 2
	RoleCaregiver Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleElder:
		return "elder"
	case RoleCaregiver:
		return "caregiver"
	}
	return "unknown"
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleElder, RoleCaregiver:
		return true
	}
	return false
}

// Actor é o usuário autenticado que executa uma operação
type Actor struct {
	UserID int64 `json:"userId"`
	Role   Role  `json:"role"`
}

// StatusHistoryEntry é uma entrada do histórico (append-only)
type StatusHistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Notes     string    `json:"notes"`
}

// AdherenceData guarda o resultado do cálculo de adesão
type AdherenceData struct {
	TakenOnTime         bool       `json:"takenOnTime"`
	TakenLate           bool       `json:"takenLate"`
	LateByMinutes       float64    `json:"lateByMinutes"`
	MissedReason        string     `json:"missedReason,omitempty"`
	CaregiverNotified   bool       `json:"caregiverNotified"`
	CaregiverNotifiedAt *time.Time `json:"caregiverNotifiedAt,omitempty"`
}

// DoseSchedule é a entidade central: uma dose de medicamento agendada
// para um usuário em uma data/hora específica
type DoseSchedule struct {
	ScheduleID       int64                `json:"scheduleId"`
	User             int64                `json:"user"`
	CreatedBy        int64                `json:"createdBy"`
	Medication       int64                `json:"medication"`
	Container        string               `json:"container"`
	Date             time.Time            `json:"date"`
	Time             string               `json:"time"` // "HH:MM"
	Status           Status               `json:"status"`
	AlertSent        bool                 `json:"alertSent"`
	StatusHistory    []StatusHistoryEntry `json:"statusHistory"`
	LastStatusUpdate *time.Time           `json:"lastStatusUpdate,omitempty"`
	AdherenceData    AdherenceData        `json:"adherenceData"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// StatusUpdateEvent é o payload publicado no bus a cada transição
type StatusUpdateEvent struct {
	ScheduleID     int64  `json:"scheduleId"`
	UserID         int64  `json:"userId"`
	MedicationID   int64  `json:"medicationId"`
	ContainerID    string `json:"containerId"`
	PreviousStatus Status `json:"previousStatus"`
	NewStatus      Status `json:"newStatus"`
	UpdatedAt      string `json:"updatedAt"` // ISO-8601
	Source         string `json:"source"`
}

// UpcomingDose é uma dose dentro da janela de notificação
type UpcomingDose struct {
	ScheduleID         int64     `json:"scheduleId"`
	UserID             int64     `json:"userId"`
	MedicationID       int64     `json:"medicationId"`
	ContainerID        string    `json:"containerId"`
	ScheduledTime      time.Time `json:"scheduledTime"`
	TimeUntilScheduled int       `json:"timeUntilScheduled"` // minutos
}

// ConnectionPermissions são as permissões de um vínculo cuidador-idoso
type ConnectionPermissions struct {
	ViewMedications   bool `json:"viewMedications"`
	ManageMedications bool `json:"manageMedications"`
	ViewAdherence     bool `json:"viewAdherence"`
	ReceiveAlerts     bool `json:"receiveAlerts"`
	ManageDevice      bool `json:"manageDevice"`
}

// Estados possíveis de um vínculo cuidador-idoso
const (
	ConnectionActive    = "active"
	ConnectionInactive  = "inactive"
	ConnectionPending   = "pending"
	ConnectionSuspended = "suspended"
)

// CaregiverConnection é o vínculo cuidador-idoso-dispositivo.
// Gerenciado fora deste núcleo; aqui é apenas consultado.
type CaregiverConnection struct {
	ConnectionID string                `json:"connectionId"`
	Caregiver    int64                 `json:"caregiver"`
	Elder        int64                 `json:"elder"`
	Device       string                `json:"device"`
	Relationship string                `json:"relationship"`
	Status       string                `json:"status"`
	Permissions  ConnectionPermissions `json:"permissions"`
}

// User é o registro mínimo necessário para entrega de notificações.
// O CRUD completo de usuários vive fora deste núcleo.
type User struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Role        Role   `json:"role"`
	DeviceToken string `json:"deviceToken"`
	Active      bool   `json:"active"`
}

// AdherenceStats agrega métricas de adesão de um idoso
type AdherenceStats struct {
	ElderID        int64   `json:"elderId"`
	TotalSchedules int     `json:"totalSchedules"`
	Taken          int     `json:"taken"`
	Done           int     `json:"done"`
	Missed         int     `json:"missed"`
	Pending        int     `json:"pending"`
	LateDoses      int     `json:"lateDoses"`
	AdherenceRate  float64 `json:"adherenceRate"`
	MissedRate     float64 `json:"missedRate"`
	LateRate       float64 `json:"lateRate"`
}
