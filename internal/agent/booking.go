package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/tools"
)

// BookingAgent walks the caller from service selection through slot
// collection, confirmation, availability, and booking creation.
type BookingAgent struct{}

func NewBooking() *BookingAgent { return &BookingAgent{} }

func (a *BookingAgent) Role() domain.AgentRole { return domain.RoleBooking }

func (a *BookingAgent) SystemPrompt(tc *TurnContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the booking specialist for %s, a home services company. ", tc.Business.Name)
	b.WriteString("You are speaking aloud on a phone call: one or two short sentences, ")
	b.WriteString("no lists, no formatting, never mention being an AI.\n\n")

	switch tc.State {
	case domain.StateServiceSelection:
		b.WriteString("Find out which service the caller needs and lock it in with select_service. ")
		b.WriteString("Available services: ")
		for i, s := range tc.Catalog.Services {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.Name)
		}
		b.WriteString(".")
	case domain.StateSlotFilling:
		b.WriteString("Collect the booking details one at a time with record_detail. ")
		if next := tc.Slots.NextEmpty(); next != nil {
			fmt.Fprintf(&b, "Next to collect: %s. %s. ", next.DisplayName, next.PromptHint)
		}
		if missing := tc.Slots.Missing(); len(missing) > 0 {
			fmt.Fprintf(&b, "Still missing: %s.", strings.Join(missing, ", "))
		}
	case domain.StateSlotConfirmation:
		fmt.Fprintf(&b, "Read the details back and ask the caller to confirm: %s. ", tc.Slots.Summary())
		b.WriteString("On a clear yes call confirm_details with confirmed true; if they change anything, use correct_detail first.")
	case domain.StateAvailabilityCheck:
		b.WriteString("Check open time slots with check_availability and offer them. ")
		b.WriteString("When the caller picks one, record it with record_detail on preferred_time.")
	case domain.StateBookingCreation:
		b.WriteString("All details are confirmed. Call create_booking now and relay the result.")
	case domain.StateConfirmation:
		fmt.Fprintf(&b, "The booking is made, reference %s. ", tc.BookingRef)
		b.WriteString("Confirm the reference with the caller and ask if there is anything else; if not, call end_call.")
	}

	return b.String()
}

func (a *BookingAgent) Tools() []ToolDef {
	return []ToolDef{
		{
			Spec: toolSpec("select_service",
				"Lock in the service the caller needs.",
				objectSchema(map[string]any{
					"service": strProp("The service requested, in the caller's words"),
				}, "service")),
			Handle: handleSelectService,
		},
		{
			Spec: toolSpec("record_detail",
				"Record one booking detail supplied by the caller.",
				objectSchema(map[string]any{
					"slot":  strProp("Which detail: customer_name, customer_phone, service_type, preferred_date, preferred_time, customer_address, or job_description"),
					"value": strProp("The caller's answer, verbatim"),
				}, "slot", "value")),
			Handle: handleRecordDetail,
		},
		{
			Spec: toolSpec("correct_detail",
				"Replace a previously recorded detail the caller wants changed.",
				objectSchema(map[string]any{
					"slot":  strProp("Which detail to change"),
					"value": strProp("The new value"),
				}, "slot", "value")),
			Handle: handleCorrectDetail,
		},
		{
			Spec: toolSpec("confirm_details",
				"Record the caller's answer to the confirmation read-back.",
				objectSchema(map[string]any{
					"confirmed": map[string]any{
						"type":        "boolean",
						"description": "True if the caller confirmed every detail",
					},
				}, "confirmed")),
			Handle: handleConfirmDetails,
		},
		{
			Spec: toolSpec("check_availability",
				"Look up open appointment slots for the selected service.",
				objectSchema(map[string]any{
					"date": strProp("Date to check, YYYY-MM-DD; defaults to the caller's preferred date"),
				})),
			Handle: handleCheckAvailability,
		},
		{
			Spec: toolSpec("create_booking",
				"Create the booking. Only valid once every detail is confirmed.",
				objectSchema(map[string]any{})),
			Handle: handleCreateBooking,
		},
		{
			Spec: toolSpec("escalate_to_human",
				"Hand the call to a human when the booking cannot proceed.",
				objectSchema(map[string]any{
					"reason": strProp("Why a human is needed"),
				}, "reason")),
			Handle: handleEscalate,
		},
		{
			Spec: toolSpec("end_call",
				"The caller has everything they need; wrap up the call.",
				objectSchema(map[string]any{})),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				return ToolResult{Output: "ending call", Event: domain.EventGoodbye}, nil
			},
		},
	}
}

func handleSelectService(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
	service := stringArg(args, "service")
	res, err := tc.Slots.Set("service_type", service)
	if err != nil {
		return ToolResult{}, err
	}
	if res.Rejected {
		return ToolResult{Output: fmt.Sprintf("%q is not a service we offer; ask again", service)}, nil
	}
	svc := tc.Catalog.ServiceByID(res.Value)
	out := fmt.Sprintf("service set to %s", res.Value)
	if svc != nil {
		out = fmt.Sprintf("service set to %s, typical price %s plus %s call-out fee",
			svc.Name, svc.PriceRange, svc.CallOutFee)
	}
	return ToolResult{Output: out, Event: domain.EventServiceConfirmed}, nil
}

func handleRecordDetail(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
	name := stringArg(args, "slot")
	value := stringArg(args, "value")

	res, err := tc.Slots.Set(name, value)
	if err != nil {
		return ToolResult{}, err
	}

	if res.Rejected {
		if res.RetriesExhausted {
			tc.SlotRetryExceeded = true
			tc.EscalationReason = fmt.Sprintf("could not collect a valid %s", name)
			return ToolResult{
				Output: fmt.Sprintf("%s failed validation too many times", name),
				Event:  domain.EventMaxRetries,
			}, nil
		}
		return ToolResult{Output: fmt.Sprintf("%q is not a valid %s; ask the caller again", value, name)}, nil
	}

	out := fmt.Sprintf("%s recorded as %s", name, res.Value)

	// Picking a time while availability options are on the table is the
	// caller selecting, and thereby confirming, their slot.
	if tc.State == domain.StateAvailabilityCheck && (name == "preferred_time" || name == "preferred_date") {
		tc.Slots.ConfirmAll()
		return ToolResult{Output: out, Event: domain.EventTimeSelected}, nil
	}

	if tc.Slots.AllValidated() {
		return ToolResult{Output: out + "; all details collected", Event: domain.EventAllSlotsFilled}, nil
	}
	if next := tc.Slots.NextEmpty(); next != nil {
		out += fmt.Sprintf("; next collect %s", next.Name)
	}
	return ToolResult{Output: out}, nil
}

func handleCorrectDetail(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
	name := stringArg(args, "slot")
	value := stringArg(args, "value")

	res, err := tc.Slots.Set(name, value)
	if err != nil {
		return ToolResult{}, err
	}
	if res.Rejected {
		return ToolResult{Output: fmt.Sprintf("%q is not a valid %s; ask the caller again", value, name)}, nil
	}
	return ToolResult{
		Output: fmt.Sprintf("%s corrected to %s", name, res.Value),
		Event:  domain.EventCallerCorrected,
	}, nil
}

func handleConfirmDetails(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
	confirmed, _ := args["confirmed"].(bool)
	if !confirmed {
		return ToolResult{
			Output: "caller wants changes; collect the correction",
			Event:  domain.EventCallerCorrected,
		}, nil
	}
	if !tc.Slots.AllValidated() {
		return ToolResult{Output: fmt.Sprintf(
			"cannot confirm yet, still missing: %s", strings.Join(tc.Slots.Missing(), ", "))}, nil
	}
	tc.Slots.ConfirmAll()
	return ToolResult{Output: "all details confirmed", Event: domain.EventCallerConfirmed}, nil
}

func handleCheckAvailability(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
	service := tc.Slots.Value("service_type")
	if service == "" {
		return ToolResult{Output: "select a service before checking availability"}, nil
	}
	date := stringArg(args, "date")
	if date == "" {
		date = tc.Slots.Value("preferred_date")
	}
	if date == "" {
		return ToolResult{Output: "ask the caller for a preferred date first"}, nil
	}

	slots, err := tc.Availability.CheckDate(service, date)
	if err != nil {
		return ToolResult{}, err
	}
	if len(slots) > 0 {
		var opts []string
		for _, s := range slots {
			opts = append(opts, fmt.Sprintf("%s-%s", s.StartTime, s.EndTime))
		}
		return ToolResult{Output: fmt.Sprintf("open on %s: %s", date, strings.Join(opts, ", "))}, nil
	}

	nearest, err := tc.Availability.NearestSlots(service, date, 3)
	if err != nil {
		return ToolResult{}, err
	}
	if len(nearest) == 0 {
		tc.EscalationReason = "no availability within the booking horizon"
		return ToolResult{
			Output: "no availability at all in the next two weeks",
			Event:  domain.EventNoAvailabilityAtAll,
		}, nil
	}

	var opts []string
	for _, s := range nearest {
		opts = append(opts, fmt.Sprintf("%s %s", s.Date, s.StartTime))
	}
	return ToolResult{
		Output: fmt.Sprintf("nothing on %s; nearest: %s", date, strings.Join(opts, ", ")),
		Event:  domain.EventNoAvailability,
	}, nil
}

func handleCreateBooking(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
	if !tc.Slots.AllConfirmed() {
		return ToolResult{}, fmt.Errorf("%w: missing %s",
			domain.ErrSlotsNotConfirmed, strings.Join(tc.Slots.Missing(), ", "))
	}

	booking, err := tc.Bookings.Create(bookingRequestFromSlots(tc))
	if err != nil {
		tc.EscalationReason = "booking creation failed: " + err.Error()
		return ToolResult{
			Output: "booking could not be created: " + err.Error(),
			Event:  domain.EventBookingFailed,
		}, nil
	}

	tc.BookingRef = booking.Reference
	tc.Customers.Upsert(booking.CustomerPhone, booking.CustomerName, booking.Address, booking.Reference)
	return ToolResult{
		Output: fmt.Sprintf("booking created, reference %s for %s on %s at %s",
			booking.Reference, booking.ServiceType, booking.Date, booking.StartTime),
		Event: domain.EventBookingSuccess,
	}, nil
}

func bookingRequestFromSlots(tc *TurnContext) tools.BookingRequest {
	return tools.BookingRequest{
		CustomerName:  tc.Slots.Value("customer_name"),
		CustomerPhone: tc.Slots.Value("customer_phone"),
		ServiceType:   tc.Slots.Value("service_type"),
		Date:          tc.Slots.Value("preferred_date"),
		StartTime:     tc.Slots.Value("preferred_time"),
		Address:       tc.Slots.Value("customer_address"),
		Notes:         tc.Slots.Value("job_description"),
	}
}

func handleEscalate(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
	tc.EscalationReason = stringArg(args, "reason")
	return ToolResult{Output: "escalating to human", Event: domain.EventEscalationForced}, nil
}
