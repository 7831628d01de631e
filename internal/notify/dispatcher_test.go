package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"pillnow/internal/events"
	"pillnow/internal/push"
	"pillnow/internal/status"
	"pillnow/internal/store"
	"pillnow/pkg/models"
)

type fakePusher struct {
	mu            sync.Mutex
	reminders     []int64
	alerts        []int64
	confirmations []int64
	failPush      bool
}

func (f *fakePusher) SendDoseReminder(deviceToken string, scheduleID int64, minutesUntil int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPush {
		return context.DeadlineExceeded
	}
	f.reminders = append(f.reminders, scheduleID)
	return nil
}

func (f *fakePusher) SendMissedDoseAlert(deviceToken, elderName string, scheduleID int64) (*push.AlertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPush {
		return nil, context.DeadlineExceeded
	}
	f.alerts = append(f.alerts, scheduleID)
	return &push.AlertResult{Success: true, SentAt: time.Now(), DeliveryType: "push"}, nil
}

func (f *fakePusher) SendDoseConfirmation(deviceToken, elderName string, scheduleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPush {
		return context.DeadlineExceeded
	}
	f.confirmations = append(f.confirmations, scheduleID)
	return nil
}

func (f *fakePusher) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func (f *fakePusher) confirmationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.confirmations)
}

type fakeMailer struct {
	mu        sync.Mutex
	reminders []string
	alerts    []string
}

func (f *fakeMailer) SendDoseReminder(elderEmail, elderName string, minutesUntil int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, elderEmail)
	return nil
}

func (f *fakeMailer) SendMissedDoseAlert(caregiverEmail, caregiverName, elderName string, scheduleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, caregiverEmail)
	return nil
}

func seedDoseAt(t *testing.T, mem *store.MemoryStore, userID int64, at time.Time) *models.DoseSchedule {
	t.Helper()
	s := &models.DoseSchedule{
		User:       userID,
		CreatedBy:  userID,
		Medication: 1,
		Date:       time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.Local),
		Time:       at.Format("15:04"),
		Status:     models.StatusPending,
	}
	if err := mem.Create(context.Background(), s); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return s
}

func TestRunSendsReminderAndMarksAlert(t *testing.T) {
	mem := store.NewMemoryStore()
	bus := events.NewBus()
	defer bus.Close()

	mem.AddUser(models.User{ID: 7, Name: "Dona Maria", Email: "maria@example.com", Role: models.RoleElder, DeviceToken: "tok-7"})

	engine := status.NewEngine(mem, bus, status.Options{})
	s := seedDoseAt(t, mem, 7, time.Now().Add(10*time.Minute))

	pusher := &fakePusher{}
	d := NewDispatcher(engine, mem, mem, pusher, nil, 15)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(pusher.reminders) != 1 || pusher.reminders[0] != s.ScheduleID {
		t.Errorf("expected reminder for schedule %d, got %v", s.ScheduleID, pusher.reminders)
	}

	got, _ := mem.Get(context.Background(), s.ScheduleID)
	if !got.AlertSent {
		t.Error("expected alertSent=true after dispatch")
	}

	// segundo tick não renotifica
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(pusher.reminders) != 1 {
		t.Errorf("dose must be notified once, got %d reminders", len(pusher.reminders))
	}
}

func TestRunFallsBackToEmail(t *testing.T) {
	mem := store.NewMemoryStore()
	bus := events.NewBus()
	defer bus.Close()

	mem.AddUser(models.User{ID: 7, Name: "Dona Maria", Email: "maria@example.com", Role: models.RoleElder, DeviceToken: "tok-7"})

	engine := status.NewEngine(mem, bus, status.Options{})
	seedDoseAt(t, mem, 7, time.Now().Add(10*time.Minute))

	pusher := &fakePusher{failPush: true}
	mailer := &fakeMailer{}
	d := NewDispatcher(engine, mem, mem, pusher, mailer, 15)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(mailer.reminders) != 1 || mailer.reminders[0] != "maria@example.com" {
		t.Errorf("expected email fallback, got %v", mailer.reminders)
	}
}

func TestWatchMissedDosesAlertsCaregivers(t *testing.T) {
	mem := store.NewMemoryStore()
	bus := events.NewBus()
	defer bus.Close()

	mem.AddUser(models.User{ID: 7, Name: "Dona Maria", Role: models.RoleElder})
	mem.AddUser(models.User{ID: 3, Name: "Carlos", Email: "carlos@example.com", Role: models.RoleCaregiver, DeviceToken: "tok-3"})
	mem.AddUser(models.User{ID: 4, Name: "Ana", Email: "ana@example.com", Role: models.RoleCaregiver, DeviceToken: "tok-4"})

	// só Carlos recebe alertas
	mem.AddConnection(models.CaregiverConnection{
		ConnectionID: "c1", Caregiver: 3, Elder: 7, Status: models.ConnectionActive,
		Permissions: models.ConnectionPermissions{ReceiveAlerts: true},
	})
	mem.AddConnection(models.CaregiverConnection{
		ConnectionID: "c2", Caregiver: 4, Elder: 7, Status: models.ConnectionActive,
	})

	engine := status.NewEngine(mem, bus, status.Options{})
	s := seedDoseAt(t, mem, 7, time.Now().Add(-2*time.Hour))

	pusher := &fakePusher{}
	d := NewDispatcher(engine, mem, mem, pusher, nil, 15)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.WatchTransitions(ctx, bus)

	// dá tempo da goroutine assinar antes do sweep publicar
	deadline := time.Now().Add(time.Second)
	for bus.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if _, _, err := engine.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for pusher.alertCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if pusher.alertCount() != 1 {
		t.Fatalf("expected exactly 1 caregiver alert, got %d", pusher.alertCount())
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := mem.Get(context.Background(), s.ScheduleID)
		if got.AdherenceData.CaregiverNotified {
			if got.AdherenceData.CaregiverNotifiedAt == nil {
				t.Error("expected caregiverNotifiedAt to be set")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("caregiverNotified was never recorded")
}

func TestWatchIgnoresNonMissedTransitions(t *testing.T) {
	mem := store.NewMemoryStore()
	bus := events.NewBus()
	defer bus.Close()

	mem.AddUser(models.User{ID: 7, Name: "Dona Maria", Role: models.RoleElder})
	mem.AddUser(models.User{ID: 3, Name: "Carlos", DeviceToken: "tok-3", Role: models.RoleCaregiver})
	mem.AddConnection(models.CaregiverConnection{
		ConnectionID: "c1", Caregiver: 3, Elder: 7, Status: models.ConnectionActive,
		Permissions: models.ConnectionPermissions{ReceiveAlerts: true},
	})

	engine := status.NewEngine(mem, bus, status.Options{})
	seedDoseAt(t, mem, 7, time.Now().Add(-30*time.Minute)) // vira Done, não Missed

	pusher := &fakePusher{}
	d := NewDispatcher(engine, mem, mem, pusher, nil, 15)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.WatchTransitions(ctx, bus)

	deadline := time.Now().Add(time.Second)
	for bus.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if _, _, err := engine.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if pusher.alertCount() != 0 {
		t.Errorf("Done transition must not alert caregivers, got %d alerts", pusher.alertCount())
	}
	if pusher.confirmationCount() != 0 {
		t.Errorf("automatic Done must not confirm to caregivers, got %d confirmations", pusher.confirmationCount())
	}
}

func TestWatchConfirmsTakenDoses(t *testing.T) {
	mem := store.NewMemoryStore()
	bus := events.NewBus()
	defer bus.Close()

	mem.AddUser(models.User{ID: 7, Name: "Dona Maria", Role: models.RoleElder})
	mem.AddUser(models.User{ID: 3, Name: "Carlos", DeviceToken: "tok-3", Role: models.RoleCaregiver})
	mem.AddConnection(models.CaregiverConnection{
		ConnectionID: "c1", Caregiver: 3, Elder: 7, Status: models.ConnectionActive,
		Permissions: models.ConnectionPermissions{ReceiveAlerts: true},
	})

	engine := status.NewEngine(mem, bus, status.Options{})
	s := seedDoseAt(t, mem, 7, time.Now().Add(5*time.Minute))

	pusher := &fakePusher{}
	d := NewDispatcher(engine, mem, mem, pusher, nil, 15)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.WatchTransitions(ctx, bus)

	deadline := time.Now().Add(time.Second)
	for bus.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := engine.UpdateScheduleStatus(context.Background(), s.ScheduleID, models.StatusTaken, "tomei agora"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for pusher.confirmationCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if pusher.confirmationCount() != 1 {
		t.Fatalf("expected 1 caregiver confirmation, got %d", pusher.confirmationCount())
	}
	if pusher.alertCount() != 0 {
		t.Errorf("Taken transition must not raise a missed-dose alert, got %d", pusher.alertCount())
	}
}
