package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	// A Monday.
	return time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
}

func testAvailability() *AvailabilityService {
	a := NewAvailabilityService(42)
	a.now = fixedNow
	return a
}

func TestCheckDateIsDeterministicPerSeed(t *testing.T) {
	a1 := testAvailability()
	a2 := testAvailability()

	s1, err := a1.CheckDate("plumbing", "2026-08-25")
	require.NoError(t, err)
	s2, err := a2.CheckDate("plumbing", "2026-08-25")
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
	assert.NotEmpty(t, s1)
}

func TestCheckDateOutsideHorizon(t *testing.T) {
	a := testAvailability()

	slots, err := a.CheckDate("plumbing", "2026-08-20")
	require.NoError(t, err)
	assert.Empty(t, slots, "past dates have no availability")

	slots, err = a.CheckDate("plumbing", "2026-10-01")
	require.NoError(t, err)
	assert.Empty(t, slots, "dates beyond the booking horizon have no availability")
}

func TestCheckDateSundayClosed(t *testing.T) {
	a := testAvailability()
	slots, err := a.CheckDate("plumbing", "2026-08-30")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestCheckDateInvalidFormat(t *testing.T) {
	a := testAvailability()
	_, err := a.CheckDate("plumbing", "next tuesday")
	assert.Error(t, err)
}

func TestNearestSlotsScansForward(t *testing.T) {
	a := testAvailability()
	slots, err := a.NearestSlots("electrical", "2026-08-24", 3)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	for i := 1; i < len(slots); i++ {
		assert.GreaterOrEqual(t, slots[i].Date, slots[i-1].Date)
	}
}

func TestReserveRemovesSlot(t *testing.T) {
	a := testAvailability()
	slots, err := a.CheckDate("hvac", "2026-08-26")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	target := slots[0]
	assert.True(t, a.Reserve("hvac", target.Date, target.StartTime))
	assert.False(t, a.Reserve("hvac", target.Date, target.StartTime), "double reserve must fail")

	after, err := a.CheckDate("hvac", "2026-08-26")
	require.NoError(t, err)
	assert.Len(t, after, len(slots)-1)
}

func validRequest(a *AvailabilityService, t *testing.T) BookingRequest {
	t.Helper()
	slots, err := a.CheckDate("plumbing", "2026-08-27")
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	return BookingRequest{
		CustomerName:  "Jane Smith",
		CustomerPhone: "0412345678",
		ServiceType:   "plumbing",
		Date:          slots[0].Date,
		StartTime:     slots[0].StartTime,
		Address:       "12 Harbour St, Sydney",
	}
}

func TestCreateBookingIssuesReference(t *testing.T) {
	a := testAvailability()
	b := NewBookingService(a)

	booking, err := b.Create(validRequest(a, t))
	require.NoError(t, err)
	assert.Regexp(t, `^BK-[0-9A-F]{6}$`, booking.Reference)
	assert.Equal(t, "confirmed", booking.Status)

	got, err := b.Get(booking.Reference)
	require.NoError(t, err)
	assert.Equal(t, booking.Reference, got.Reference)
}

func TestCreateBookingRejectsMissingFields(t *testing.T) {
	a := testAvailability()
	b := NewBookingService(a)

	req := validRequest(a, t)
	req.CustomerPhone = ""
	_, err := b.Create(req)
	assert.ErrorContains(t, err, "customer_phone")
}

func TestCreateBookingConsumesSlot(t *testing.T) {
	a := testAvailability()
	b := NewBookingService(a)

	req := validRequest(a, t)
	_, err := b.Create(req)
	require.NoError(t, err)

	_, err = b.Create(req)
	assert.ErrorContains(t, err, "no longer available")
}

func TestCancelAndReschedule(t *testing.T) {
	a := testAvailability()
	b := NewBookingService(a)

	booking, err := b.Create(validRequest(a, t))
	require.NoError(t, err)

	moved, err := b.Reschedule(booking.Reference, "2026-08-28", "10:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-28", moved.Date)

	require.NoError(t, b.Cancel(booking.Reference))
	got, err := b.Get(booking.Reference)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)

	assert.Error(t, b.Cancel("BK-NOPE99"))
}

func TestCustomerLookupAndUpsert(t *testing.T) {
	c := NewCustomerService()

	assert.Nil(t, c.Lookup("0412345678"))

	c.Upsert("0412 345 678", "Jane Smith", "12 Harbour St", "BK-AAAA11")
	got := c.Lookup("+61412345678")
	assert.Nil(t, got, "different numbers are different customers")

	got = c.Lookup("0412345678")
	require.NotNil(t, got)
	assert.Equal(t, "Jane Smith", got.Name)
	assert.Equal(t, []string{"BK-AAAA11"}, got.PastBookings)

	c.Upsert("0412345678", "", "", "BK-BBBB22")
	got = c.Lookup("0412-345-678")
	require.NotNil(t, got)
	assert.Len(t, got.PastBookings, 2)
	assert.Equal(t, "Jane Smith", got.Name, "empty fields must not clobber")
}
