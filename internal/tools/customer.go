package tools

import (
	"strings"
	"sync"
	"time"
)

// Customer is one known caller record keyed by normalized phone number.
type Customer struct {
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	Address      string    `json:"address,omitempty"`
	PastBookings []string  `json:"past_bookings,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CustomerService is an in-memory CRM lookup. A recognized caller lets the
// agents skip re-collecting name and address.
type CustomerService struct {
	mu        sync.Mutex
	customers map[string]*Customer
}

func NewCustomerService() *CustomerService {
	return &CustomerService{customers: make(map[string]*Customer)}
}

// Lookup returns the customer for a phone number, or nil when unknown.
func (c *CustomerService) Lookup(phone string) *Customer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cust, ok := c.customers[normalizeKey(phone)]; ok {
		cp := *cust
		cp.PastBookings = append([]string(nil), cust.PastBookings...)
		return &cp
	}
	return nil
}

// Upsert creates or updates a customer record and appends a booking
// reference to their history when one is given.
func (c *CustomerService) Upsert(phone, name, address, bookingRef string) *Customer {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := normalizeKey(phone)
	cust, ok := c.customers[key]
	if !ok {
		cust = &Customer{Phone: key, CreatedAt: time.Now().UTC()}
		c.customers[key] = cust
	}
	if name != "" {
		cust.Name = name
	}
	if address != "" {
		cust.Address = address
	}
	if bookingRef != "" {
		cust.PastBookings = append(cust.PastBookings, bookingRef)
	}
	cp := *cust
	cp.PastBookings = append([]string(nil), cust.PastBookings...)
	return &cp
}

func normalizeKey(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
