package status

import (
	"math"
	"testing"
	"time"

	"pillnow/pkg/models"
)

func TestComputeAdherenceOnTime(t *testing.T) {
	scheduled := time.Date(2026, 3, 10, 8, 0, 0, 0, time.Local)

	cases := []struct {
		name     string
		observed time.Time
	}{
		{"exact", scheduled},
		{"late within tolerance", scheduled.Add(10 * time.Minute)},
		{"early within tolerance", scheduled.Add(-10 * time.Minute)},
		{"exactly at tolerance", scheduled.Add(15 * time.Minute)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := ComputeAdherence(scheduled, tc.observed, 15)
			if !result.TakenOnTime {
				t.Errorf("expected TakenOnTime=true, got %+v", result)
			}
			if result.TakenLate {
				t.Errorf("expected TakenLate=false, got %+v", result)
			}
			if result.LateByMinutes != 0 {
				t.Errorf("expected LateByMinutes=0, got %f", result.LateByMinutes)
			}
		})
	}
}

func TestComputeAdherenceLate(t *testing.T) {
	scheduled := time.Date(2026, 3, 10, 8, 0, 0, 0, time.Local)
	observed := scheduled.Add(15*time.Minute + 36*time.Second) // 15.6 minutos

	result := ComputeAdherence(scheduled, observed, 15)

	if result.TakenOnTime {
		t.Fatalf("expected TakenOnTime=false, got %+v", result)
	}
	if !result.TakenLate {
		t.Fatalf("expected TakenLate=true, got %+v", result)
	}
	if math.Abs(result.LateByMinutes-15.6) > 0.001 {
		t.Errorf("expected LateByMinutes≈15.6, got %f", result.LateByMinutes)
	}
}

func TestComputeAdherenceEarlyOutsideTolerance(t *testing.T) {
	scheduled := time.Date(2026, 3, 10, 8, 0, 0, 0, time.Local)
	observed := scheduled.Add(-30 * time.Minute)

	result := ComputeAdherence(scheduled, observed, 15)

	if !result.TakenLate {
		t.Fatalf("expected TakenLate=true for 30min early, got %+v", result)
	}
	if math.Abs(result.LateByMinutes-30) > 0.001 {
		t.Errorf("expected LateByMinutes=30, got %f", result.LateByMinutes)
	}
}

func TestComputeAdherenceDefaultTolerance(t *testing.T) {
	scheduled := time.Date(2026, 3, 10, 8, 0, 0, 0, time.Local)

	result := ComputeAdherence(scheduled, scheduled.Add(14*time.Minute), 0)
	if !result.TakenOnTime {
		t.Errorf("expected default tolerance of 15 minutes, got %+v", result)
	}
}

func TestScheduledInstant(t *testing.T) {
	s := &models.DoseSchedule{
		Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local),
		Time: "08:30",
	}

	instant, err := ScheduledInstant(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 10, 8, 30, 0, 0, time.Local)
	if !instant.Equal(want) {
		t.Errorf("expected %v, got %v", want, instant)
	}
}

func TestScheduledInstantInvalidTime(t *testing.T) {
	s := &models.DoseSchedule{
		Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local),
		Time: "25:99",
	}

	if _, err := ScheduledInstant(s); err == nil {
		t.Fatal("expected error for invalid time, got nil")
	}
}
