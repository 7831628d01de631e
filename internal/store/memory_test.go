package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"pillnow/pkg/models"
)

func TestNextSequenceConcurrent(t *testing.T) {
	mem := NewMemoryStore()

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	results := make(chan int64, goroutines*perGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				results <- mem.NextSequence("scheduleId")
			}
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for id := range results {
		if seen[id] {
			t.Fatalf("duplicate sequence value: %d", id)
		}
		seen[id] = true
	}

	if len(seen) != goroutines*perGoroutine {
		t.Errorf("expected %d unique ids, got %d", goroutines*perGoroutine, len(seen))
	}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		s := &models.DoseSchedule{User: 7, Medication: 1, Date: time.Now(), Time: "08:00"}
		if err := mem.Create(ctx, s); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if s.ScheduleID != want {
			t.Errorf("expected scheduleId %d, got %d", want, s.ScheduleID)
		}
		if s.Container != "default" {
			t.Errorf("expected default container, got %q", s.Container)
		}
	}
}

func TestRoundTripPreservesHistoryAndAdherence(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s := &models.DoseSchedule{
		User:       7,
		CreatedBy:  3,
		Medication: 2,
		Date:       now,
		Time:       "08:00",
		Status:     models.StatusTaken,
		StatusHistory: []models.StatusHistoryEntry{
			{Status: models.StatusPending, Timestamp: now.Add(-time.Hour), Reason: models.ReasonSystem, Notes: "Status changed automatically"},
			{Status: models.StatusTaken, Timestamp: now, Reason: models.ReasonManual, Notes: "ok"},
		},
		AdherenceData: models.AdherenceData{
			TakenLate:     true,
			LateByMinutes: 17.5,
		},
	}
	if err := mem.Create(ctx, s); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := mem.Get(ctx, s.ScheduleID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if len(got.StatusHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(got.StatusHistory))
	}
	if got.StatusHistory[0].Status != models.StatusPending || got.StatusHistory[1].Status != models.StatusTaken {
		t.Errorf("history order not preserved: %+v", got.StatusHistory)
	}
	if got.StatusHistory[1].Notes != "ok" {
		t.Errorf("notes not preserved: %q", got.StatusHistory[1].Notes)
	}
	if !got.AdherenceData.TakenLate || got.AdherenceData.LateByMinutes != 17.5 {
		t.Errorf("adherence not preserved: %+v", got.AdherenceData)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	s := &models.DoseSchedule{User: 7, Medication: 1, Date: time.Now(), Time: "08:00", Status: models.StatusPending}
	if err := mem.Create(ctx, s); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, _ := mem.Get(ctx, s.ScheduleID)
	first.Status = models.StatusMissed
	first.StatusHistory = append(first.StatusHistory, models.StatusHistoryEntry{Status: models.StatusMissed})

	second, _ := mem.Get(ctx, s.ScheduleID)
	if second.Status != models.StatusPending {
		t.Errorf("mutation leaked into store: %s", second.Status)
	}
	if len(second.StatusHistory) != 0 {
		t.Errorf("history mutation leaked into store: %d entries", len(second.StatusHistory))
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	if _, err := mem.Get(ctx, 42); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mem.Delete(ctx, 42); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mem.MarkAlertSent(ctx, 42); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	s := &models.DoseSchedule{User: 7, Medication: 1, Date: time.Now(), Time: "08:00"}
	if err := mem.Create(ctx, s); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := mem.Delete(ctx, s.ScheduleID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := mem.Get(ctx, s.ScheduleID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMarkCaregiverNotified(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	s := &models.DoseSchedule{User: 7, Medication: 1, Date: time.Now(), Time: "08:00", Status: models.StatusMissed}
	if err := mem.Create(ctx, s); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := mem.MarkCaregiverNotified(ctx, s.ScheduleID); err != nil {
		t.Fatalf("markCaregiverNotified failed: %v", err)
	}

	got, _ := mem.Get(ctx, s.ScheduleID)
	if !got.AdherenceData.CaregiverNotified {
		t.Error("expected caregiverNotified=true")
	}
	if got.AdherenceData.CaregiverNotifiedAt == nil {
		t.Error("expected caregiverNotifiedAt to be set")
	}
}

func TestActiveConnectionFilters(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	mem.AddConnection(models.CaregiverConnection{ConnectionID: "a", Caregiver: 3, Elder: 7, Status: models.ConnectionActive})
	mem.AddConnection(models.CaregiverConnection{ConnectionID: "b", Caregiver: 4, Elder: 7, Status: models.ConnectionPending})
	mem.AddConnection(models.CaregiverConnection{ConnectionID: "c", Caregiver: 5, Elder: 8, Status: models.ConnectionActive})

	if _, err := mem.ActiveLink(ctx, 3, 7); err != nil {
		t.Errorf("expected active link, got %v", err)
	}
	if _, err := mem.ActiveLink(ctx, 4, 7); err != ErrNotFound {
		t.Errorf("pending link must not count as active, got %v", err)
	}

	links, err := mem.ActiveByElder(ctx, 7)
	if err != nil {
		t.Fatalf("activeByElder failed: %v", err)
	}
	if len(links) != 1 || links[0].Caregiver != 3 {
		t.Errorf("unexpected links: %+v", links)
	}
}
