package schedule

import (
	"testing"
	"time"
)

// Wednesday 2026-09-02; storage weekday 2.
var testDay = time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

func clinicWindows() []Window {
	return []Window{
		{DoctorID: 1, DayOfWeek: 2, Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 12}},
		{DoctorID: 1, DayOfWeek: 2, Start: TimeOfDay{Hour: 14}, End: TimeOfDay{Hour: 17}},
	}
}

func TestComputeSlotsFullDay(t *testing.T) {
	slots := ComputeSlots(clinicWindows(), nil, testDay, "", DefaultSlotMinutes)

	// 9-12 and 14-17 at 30 minutes each is 6 + 6 slots.
	if len(slots) != 12 {
		t.Fatalf("slots = %d, want 12", len(slots))
	}
	if got := slots[0].Start.Format("15:04"); got != "09:00" {
		t.Errorf("first slot = %s", got)
	}
	if got := slots[len(slots)-1].Start.Format("15:04"); got != "16:30" {
		t.Errorf("last slot = %s", got)
	}
	for _, s := range slots {
		if s.End.Sub(s.Start) != 30*time.Minute {
			t.Errorf("slot %v is not 30 minutes", s)
		}
	}
}

func TestComputeSlotsPartOfDay(t *testing.T) {
	tests := []struct {
		part  string
		count int
		first string
	}{
		{"morning", 6, "09:00"},
		{"afternoon", 6, "14:00"},
		{"evening", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.part, func(t *testing.T) {
			slots := ComputeSlots(clinicWindows(), nil, testDay, tt.part, DefaultSlotMinutes)
			if len(slots) != tt.count {
				t.Fatalf("slots = %d, want %d", len(slots), tt.count)
			}
			if tt.count > 0 && slots[0].Start.Format("15:04") != tt.first {
				t.Errorf("first = %s, want %s", slots[0].Start.Format("15:04"), tt.first)
			}
		})
	}
}

func TestComputeSlotsExcludesBusyBlocks(t *testing.T) {
	busy := []Slot{
		{
			Start: time.Date(2026, 9, 2, 9, 30, 0, 0, time.UTC),
			End:   time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			// Straddles two slot boundaries; both must drop.
			Start: time.Date(2026, 9, 2, 14, 45, 0, 0, time.UTC),
			End:   time.Date(2026, 9, 2, 15, 15, 0, 0, time.UTC),
		},
	}

	slots := ComputeSlots(clinicWindows(), busy, testDay, "", DefaultSlotMinutes)
	if len(slots) != 9 {
		t.Fatalf("slots = %d, want 9", len(slots))
	}
	for _, s := range slots {
		if s.Start.Format("15:04") == "09:30" {
			t.Error("busy 09:30 slot still offered")
		}
		if s.Start.Format("15:04") == "14:30" || s.Start.Format("15:04") == "15:00" {
			t.Errorf("slot overlapping busy block still offered: %s", s.Start.Format("15:04"))
		}
	}
}

func TestComputeSlotsIgnoresOtherWeekdays(t *testing.T) {
	saturday := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	slots := ComputeSlots(clinicWindows(), nil, saturday, "", DefaultSlotMinutes)
	if len(slots) != 0 {
		t.Errorf("weekend should have no slots, got %d", len(slots))
	}
}

func TestComputeSlotsWindowShorterThanSlot(t *testing.T) {
	windows := []Window{
		{DayOfWeek: 2, Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 9, Minute: 20}},
	}
	if slots := ComputeSlots(windows, nil, testDay, "", DefaultSlotMinutes); len(slots) != 0 {
		t.Errorf("window too short for a slot, got %d", len(slots))
	}
}

func TestNormalizePartOfDay(t *testing.T) {
	for _, ok := range []string{"", "morning", " Afternoon ", "EVENING"} {
		if _, err := NormalizePartOfDay(ok); err != nil {
			t.Errorf("NormalizePartOfDay(%q): %v", ok, err)
		}
	}
	if _, err := NormalizePartOfDay("midnight"); err == nil {
		t.Error("expected error for unknown part of day")
	}
}

func TestStorageWeekday(t *testing.T) {
	// Monday maps to 0, Sunday to 6.
	if got := storageWeekday(time.Monday); got != 0 {
		t.Errorf("monday = %d", got)
	}
	if got := storageWeekday(time.Sunday); got != 6 {
		t.Errorf("sunday = %d", got)
	}
	if got := storageWeekday(testDay.Weekday()); got != 2 {
		t.Errorf("wednesday = %d", got)
	}
}
