// Package tools implements the business backends the agents call:
// availability lookup, booking management, and customer records. These are
// deterministic in-memory implementations seeded per process, standing in
// for the real scheduling system behind the same interfaces.
package tools

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// TimeSlot is one offerable appointment window.
type TimeSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// AvailabilityService answers "when can a technician come out". The
// schedule is generated from a fixed seed so conversations replay
// identically across runs.
type AvailabilityService struct {
	mu       sync.Mutex
	schedule map[string][]TimeSlot // keyed by "date|service"
	rng      *rand.Rand
	now      func() time.Time
}

var slotWindows = [][2]string{
	{"08:00", "10:00"},
	{"10:00", "12:00"},
	{"12:00", "14:00"},
	{"14:00", "16:00"},
	{"16:00", "18:00"},
}

func NewAvailabilityService(seed int64) *AvailabilityService {
	return &AvailabilityService{
		schedule: make(map[string][]TimeSlot),
		rng:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
	}
}

// CheckDate returns the open slots for a service on one date. Sundays are
// closed and dates in the past or beyond the 14-day booking horizon return
// nothing.
func (a *AvailabilityService) CheckDate(service, date string) ([]TimeSlot, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	today := a.now().Truncate(24 * time.Hour)
	if day.Before(today) || day.After(today.AddDate(0, 0, 14)) {
		return nil, nil
	}
	if day.Weekday() == time.Sunday {
		return nil, nil
	}

	key := date + "|" + service
	if slots, ok := a.schedule[key]; ok {
		return slots, nil
	}

	// Each window is independently open with 60% probability; a day keeps
	// at least one slot so total unavailability stays a rare path.
	var slots []TimeSlot
	for _, w := range slotWindows {
		if a.rng.Float64() < 0.6 {
			slots = append(slots, TimeSlot{Date: date, StartTime: w[0], EndTime: w[1]})
		}
	}
	if len(slots) == 0 {
		w := slotWindows[a.rng.Intn(len(slotWindows))]
		slots = []TimeSlot{{Date: date, StartTime: w[0], EndTime: w[1]}}
	}

	a.schedule[key] = slots
	return slots, nil
}

// NearestSlots returns up to limit open slots on or after the given date,
// scanning forward through the booking horizon.
func (a *AvailabilityService) NearestSlots(service, fromDate string, limit int) ([]TimeSlot, error) {
	day, err := time.Parse("2006-01-02", fromDate)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", fromDate, err)
	}

	var out []TimeSlot
	for i := 0; i < 14 && len(out) < limit; i++ {
		date := day.AddDate(0, 0, i).Format("2006-01-02")
		slots, err := a.CheckDate(service, date)
		if err != nil {
			return nil, err
		}
		for _, s := range slots {
			if len(out) >= limit {
				break
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// Reserve takes a slot off the schedule so a confirmed booking cannot
// race another call.
func (a *AvailabilityService) Reserve(service, date, startTime string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := date + "|" + service
	slots := a.schedule[key]
	for i, s := range slots {
		if s.StartTime == startTime {
			a.schedule[key] = append(slots[:i], slots[i+1:]...)
			return true
		}
	}
	return false
}
