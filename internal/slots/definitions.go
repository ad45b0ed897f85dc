// Package slots implements the slot-filling subsystem: a static catalog of
// slot definitions and a per-session manager driving each slot through
// UNCOLLECTED -> COLLECTED -> VALIDATED -> CONFIRMED.
package slots

import (
	"regexp"
	"strings"
	"time"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
)

// Validation thresholds
const (
	minNameLength   = 2
	minPhoneDigits  = 7
	maxPhoneDigits  = 15
	minAddressLength = 5
)

var nonDigits = regexp.MustCompile(`[^\d]`)

// Definition is the static schema for one slot. Definitions are loaded
// once and shared read-only across sessions.
type Definition struct {
	Name        string
	DisplayName string
	Required    bool
	Validate    func(string) bool
	Normalize   func(string) string
	PromptHint  string
	MaxAttempts int
	// ConfirmationRequired excludes informational slots from the
	// confirmation read-back.
	ConfirmationRequired bool
}

// Definitions builds the slot catalog for a booking. The service validator
// is bound to the business catalog so slot validation and scope checking
// share one source of truth.
func Definitions(cfg *config.GuardrailConfig, cat *catalog.Catalog) []Definition {
	return []Definition{
		{
			Name:                 "customer_name",
			DisplayName:          "name",
			Required:             true,
			PromptHint:           "Ask for their full name",
			Validate:             validName,
			Normalize:            titleCase,
			MaxAttempts:          cfg.MaxSlotRetries,
			ConfirmationRequired: true,
		},
		{
			Name:                 "customer_phone",
			DisplayName:          "phone number",
			Required:             true,
			PromptHint:           "Ask for a callback number",
			Validate:             validPhone,
			Normalize:            NormalizePhone,
			MaxAttempts:          cfg.MaxSlotRetries,
			ConfirmationRequired: true,
		},
		{
			Name:        "service_type",
			DisplayName: "type of service",
			Required:    true,
			PromptHint:  "Ask what service they need",
			Validate: func(v string) bool {
				return cat.MatchService(v) != ""
			},
			Normalize: func(v string) string {
				if id := cat.MatchService(v); id != "" {
					return id
				}
				return strings.ToLower(strings.TrimSpace(v))
			},
			MaxAttempts:          cfg.MaxSlotRetries,
			ConfirmationRequired: true,
		},
		{
			Name:                 "preferred_date",
			DisplayName:          "preferred date",
			Required:             true,
			PromptHint:           "Ask when they'd like the appointment",
			Validate:             validDate,
			Normalize:            strings.TrimSpace,
			MaxAttempts:          cfg.MaxSlotRetries,
			ConfirmationRequired: true,
		},
		{
			Name:                 "preferred_time",
			DisplayName:          "preferred time",
			Required:             true,
			PromptHint:           "Ask what time works best",
			Validate:             validTime,
			Normalize:            strings.TrimSpace,
			MaxAttempts:          cfg.MaxSlotRetries,
			ConfirmationRequired: true,
		},
		{
			Name:                 "customer_address",
			DisplayName:          "service address",
			Required:             true,
			PromptHint:           "Ask for the address where the service is needed",
			Validate:             validAddress,
			Normalize:            strings.TrimSpace,
			MaxAttempts:          cfg.MaxSlotRetries,
			ConfirmationRequired: true,
		},
		{
			Name:        "job_description",
			DisplayName: "job description",
			Required:    false,
			PromptHint:  "Ask them to briefly describe the issue",
			Normalize:   strings.TrimSpace,
			MaxAttempts: cfg.MaxSlotRetries,
		},
	}
}

func validName(v string) bool {
	return len(strings.TrimSpace(v)) >= minNameLength
}

func validPhone(v string) bool {
	digits := nonDigits.ReplaceAllString(v, "")
	return len(digits) >= minPhoneDigits && len(digits) <= maxPhoneDigits
}

func validDate(v string) bool {
	_, err := time.Parse("2006-01-02", strings.TrimSpace(v))
	return err == nil
}

func validTime(v string) bool {
	_, err := time.Parse("15:04", strings.TrimSpace(v))
	return err == nil
}

func validAddress(v string) bool {
	return len(strings.TrimSpace(v)) >= minAddressLength
}

// NormalizePhone strips everything except digits and a leading +.
func NormalizePhone(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "+") {
		return "+" + nonDigits.ReplaceAllString(v[1:], "")
	}
	return nonDigits.ReplaceAllString(v, "")
}

func titleCase(v string) string {
	words := strings.Fields(strings.TrimSpace(v))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
