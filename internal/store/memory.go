package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"pillnow/pkg/models"
)

// MemoryStore implementa os três stores em memória. Usado nos testes e
// em desenvolvimento local sem Postgres. Os registros são serializados
// na escrita e desserializados na leitura para reproduzir o round-trip
// do banco (JSONB), preservando ordem do histórico e campos de adesão.
type MemoryStore struct {
	mu          sync.Mutex
	schedules   map[int64][]byte
	connections []models.CaregiverConnection
	users       map[int64]models.User
	counters    map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedules: make(map[int64][]byte),
		users:     make(map[int64]models.User),
		counters:  make(map[string]int64),
	}
}

// NextSequence incrementa e retorna o contador da entidade.
// Incremento único sob o lock do store; nunca read-then-write do cliente.
func (m *MemoryStore) NextSequence(entity string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[entity]++
	return m.counters[entity]
}

func (m *MemoryStore) Get(ctx context.Context, id int64) (*models.DoseSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeSchedule(raw)
}

func (m *MemoryStore) FindPending(ctx context.Context) ([]models.DoseSchedule, error) {
	return m.findByFilter(func(s *models.DoseSchedule) bool {
		return s.Status == models.StatusPending
	})
}

func (m *MemoryStore) FindPendingUnalerted(ctx context.Context) ([]models.DoseSchedule, error) {
	return m.findByFilter(func(s *models.DoseSchedule) bool {
		return s.Status == models.StatusPending && !s.AlertSent
	})
}

func (m *MemoryStore) FindByUser(ctx context.Context, userID int64) ([]models.DoseSchedule, error) {
	return m.findByFilter(func(s *models.DoseSchedule) bool {
		return s.User == userID
	})
}

func (m *MemoryStore) FindAll(ctx context.Context) ([]models.DoseSchedule, error) {
	return m.findByFilter(func(s *models.DoseSchedule) bool { return true })
}

func (m *MemoryStore) findByFilter(keep func(*models.DoseSchedule) bool) ([]models.DoseSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.DoseSchedule
	for _, raw := range m.schedules {
		s, err := decodeSchedule(raw)
		if err != nil {
			return nil, err
		}
		if keep(s) {
			out = append(out, *s)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ScheduleID < out[j].ScheduleID })
	return out, nil
}

func (m *MemoryStore) Create(ctx context.Context, s *models.DoseSchedule) error {
	s.ScheduleID = m.NextSequence("scheduleId")

	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Container == "" {
		s.Container = "default"
	}

	return m.put(s)
}

func (m *MemoryStore) Save(ctx context.Context, s *models.DoseSchedule) error {
	s.UpdatedAt = time.Now()
	return m.put(s)
}

func (m *MemoryStore) put(s *models.DoseSchedule) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ScheduleID] = raw
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *MemoryStore) MarkAlertSent(ctx context.Context, id int64) error {
	return m.patch(id, func(s *models.DoseSchedule) {
		s.AlertSent = true
	})
}

func (m *MemoryStore) MarkCaregiverNotified(ctx context.Context, id int64) error {
	return m.patch(id, func(s *models.DoseSchedule) {
		now := time.Now()
		s.AdherenceData.CaregiverNotified = true
		s.AdherenceData.CaregiverNotifiedAt = &now
	})
}

func (m *MemoryStore) patch(id int64, apply func(*models.DoseSchedule)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.schedules[id]
	if !ok {
		return ErrNotFound
	}

	s, err := decodeSchedule(raw)
	if err != nil {
		return err
	}

	apply(s)
	s.UpdatedAt = time.Now()

	updated, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.schedules[id] = updated
	return nil
}

func (m *MemoryStore) ActiveLink(ctx context.Context, caregiverID, elderID int64) (*models.CaregiverConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.connections {
		c := m.connections[i]
		if c.Caregiver == caregiverID && c.Elder == elderID && c.Status == models.ConnectionActive {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ActiveByElder(ctx context.Context, elderID int64) ([]models.CaregiverConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.CaregiverConnection
	for _, c := range m.connections {
		if c.Elder == elderID && c.Status == models.ConnectionActive {
			out = append(out, c)
		}
	}
	return out, nil
}

// AddConnection registra um vínculo (apoio a testes e seed local)
func (m *MemoryStore) AddConnection(c models.CaregiverConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections = append(m.connections, c)
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// AddUser registra um usuário (apoio a testes e seed local)
func (m *MemoryStore) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func decodeSchedule(raw []byte) (*models.DoseSchedule, error) {
	var s models.DoseSchedule
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
