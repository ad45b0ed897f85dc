package tools

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Booking is one confirmed appointment.
type Booking struct {
	Reference     string    `json:"reference"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	ServiceType   string    `json:"service_type"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	Address       string    `json:"address"`
	Notes         string    `json:"notes,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// BookingRequest carries the confirmed slot values into booking creation.
type BookingRequest struct {
	CustomerName  string
	CustomerPhone string
	ServiceType   string
	Date          string
	StartTime     string
	Address       string
	Notes         string
}

// BookingService creates and manages appointments in memory.
type BookingService struct {
	mu           sync.Mutex
	bookings     map[string]*Booking
	availability *AvailabilityService
}

func NewBookingService(availability *AvailabilityService) *BookingService {
	return &BookingService{
		bookings:     make(map[string]*Booking),
		availability: availability,
	}
}

// Create makes a booking after reserving the slot. Callers must have the
// caller's confirmation of every detail before reaching this point.
func (b *BookingService) Create(req BookingRequest) (*Booking, error) {
	for field, v := range map[string]string{
		"customer_name":  req.CustomerName,
		"customer_phone": req.CustomerPhone,
		"service_type":   req.ServiceType,
		"date":           req.Date,
		"start_time":     req.StartTime,
		"address":        req.Address,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("booking request missing %s", field)
		}
	}

	if b.availability != nil && !b.availability.Reserve(req.ServiceType, req.Date, req.StartTime) {
		return nil, fmt.Errorf("slot %s %s no longer available", req.Date, req.StartTime)
	}

	booking := &Booking{
		Reference:     newReference(),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		ServiceType:   req.ServiceType,
		Date:          req.Date,
		StartTime:     req.StartTime,
		Address:       req.Address,
		Notes:         req.Notes,
		Status:        "confirmed",
		CreatedAt:     time.Now().UTC(),
	}

	b.mu.Lock()
	b.bookings[booking.Reference] = booking
	b.mu.Unlock()

	return booking, nil
}

// Get returns a booking by reference.
func (b *BookingService) Get(reference string) (*Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	booking, ok := b.bookings[strings.ToUpper(strings.TrimSpace(reference))]
	if !ok {
		return nil, fmt.Errorf("booking %s not found", reference)
	}
	cp := *booking
	return &cp, nil
}

// Cancel marks a booking cancelled.
func (b *BookingService) Cancel(reference string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	booking, ok := b.bookings[strings.ToUpper(strings.TrimSpace(reference))]
	if !ok {
		return fmt.Errorf("booking %s not found", reference)
	}
	booking.Status = "cancelled"
	return nil
}

// Reschedule moves a booking to a new date and time.
func (b *BookingService) Reschedule(reference, date, startTime string) (*Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	booking, ok := b.bookings[strings.ToUpper(strings.TrimSpace(reference))]
	if !ok {
		return nil, fmt.Errorf("booking %s not found", reference)
	}
	booking.Date = date
	booking.StartTime = startTime
	cp := *booking
	return &cp, nil
}

// Reset drops all bookings, used between test scenarios.
func (b *BookingService) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bookings = make(map[string]*Booking)
}

// newReference produces a short reference like BK-7F3A21 that a caller can
// read back over the phone.
func newReference() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "BK-" + id[:6]
}
