// Package catalog holds the business-rule catalog: the services the
// business actually offers, the claims it may verifiably make, and the
// keyword lists the guardrails match against. The catalog is loaded once
// at process start and is read-only afterwards; no business value lives
// in control logic.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Service struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	PriceRange         string `json:"price_range"`
	CallOutFee         string `json:"call_out_fee"`
	TypicalDuration    string `json:"typical_duration"`
	EmergencyAvailable bool   `json:"emergency_available"`
}

type Catalog struct {
	Services             []Service         `json:"services"`
	Aliases              map[string]string `json:"aliases"`
	OutOfScopeTopics     []string          `json:"out_of_scope_topics"`
	ForbiddenClaims      []string          `json:"forbidden_claims"`
	VerifiedClaims       []string          `json:"verified_claims"`
	PersonaBreakPhrases  []string          `json:"persona_break_phrases"`
	FormattingViolations []string          `json:"formatting_violations"`
	EmergencyKeywords    []string          `json:"emergency_keywords"`
	FrustrationKeywords  []string          `json:"frustration_keywords"`
}

// Load reads a catalog from a JSON file, or returns the built-in default
// when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Services) == 0 {
		return nil, fmt.Errorf("catalog %s declares no services", path)
	}
	return &c, nil
}

// ValidServiceTerms returns every recognized service term: catalog IDs
// plus alias keys. This is the single source of truth for service
// validation across the slot manager and the scope guardrail.
func (c *Catalog) ValidServiceTerms() []string {
	terms := make([]string, 0, len(c.Services)+len(c.Aliases))
	for _, s := range c.Services {
		terms = append(terms, s.ID)
	}
	for alias := range c.Aliases {
		terms = append(terms, alias)
	}
	return terms
}

// MatchService resolves a caller phrase to a service ID, or "" when the
// phrase matches nothing in the catalog.
func (c *Catalog) MatchService(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return ""
	}
	for alias, id := range c.Aliases {
		if strings.Contains(normalized, alias) {
			return id
		}
	}
	for _, s := range c.Services {
		if strings.Contains(normalized, s.ID) || strings.Contains(s.ID, normalized) {
			return s.ID
		}
	}
	return ""
}

// ServiceByID returns the service with the given ID, or nil.
func (c *Catalog) ServiceByID(id string) *Service {
	normalized := strings.ToLower(strings.TrimSpace(id))
	for i := range c.Services {
		if c.Services[i].ID == normalized {
			return &c.Services[i]
		}
	}
	return nil
}

// IsVerifiedClaim reports whether a claim phrase appears in the catalog's
// verified claims list.
func (c *Catalog) IsVerifiedClaim(claim string) bool {
	for _, v := range c.VerifiedClaims {
		if strings.EqualFold(v, claim) {
			return true
		}
	}
	return false
}

// Default returns the built-in home-services catalog used when no
// external catalog file is configured.
func Default() *Catalog {
	return &Catalog{
		Services: []Service{
			{
				ID:                 "plumbing",
				Name:               "Plumbing Service",
				Description:        "All plumbing repairs, installations, and maintenance including taps, toilets, pipes, and hot water systems.",
				PriceRange:         "$120 - $350",
				CallOutFee:         "$89",
				TypicalDuration:    "1-3 hours",
				EmergencyAvailable: true,
			},
			{
				ID:                 "electrical",
				Name:               "Electrical Service",
				Description:        "Electrical repairs, installations, safety inspections, switchboard upgrades, and lighting.",
				PriceRange:         "$150 - $400",
				CallOutFee:         "$99",
				TypicalDuration:    "1-4 hours",
				EmergencyAvailable: true,
			},
			{
				ID:                 "hvac",
				Name:               "HVAC Service",
				Description:        "Heating, ventilation, and air conditioning installation, repair, and maintenance.",
				PriceRange:         "$150 - $500",
				CallOutFee:         "$99",
				TypicalDuration:    "1-4 hours",
				EmergencyAvailable: false,
			},
			{
				ID:                 "general handyman",
				Name:               "General Handyman",
				Description:        "General repairs, furniture assembly, painting, door and window repairs.",
				PriceRange:         "$80 - $250",
				CallOutFee:         "$69",
				TypicalDuration:    "1-2 hours",
				EmergencyAvailable: false,
			},
			{
				ID:                 "drain cleaning",
				Name:               "Drain Cleaning",
				Description:        "Blocked drains, CCTV drain inspection, and high-pressure jet cleaning.",
				PriceRange:         "$150 - $400",
				CallOutFee:         "$89",
				TypicalDuration:    "1-2 hours",
				EmergencyAvailable: true,
			},
			{
				ID:                 "emergency repair",
				Name:               "Emergency Repair",
				Description:        "24/7 emergency service for burst pipes, gas leaks, electrical faults, and flooding.",
				PriceRange:         "$250 - $600",
				CallOutFee:         "$149",
				TypicalDuration:    "1-4 hours",
				EmergencyAvailable: true,
			},
		},
		Aliases: map[string]string{
			"plumber": "plumbing", "pipe": "plumbing", "pipes": "plumbing",
			"toilet": "plumbing", "tap": "plumbing", "hot water": "plumbing",
			"water heater": "plumbing",
			"electrician": "electrical", "wiring": "electrical",
			"power": "electrical", "lights": "electrical", "switchboard": "electrical",
			"heating": "hvac", "cooling": "hvac", "air conditioning": "hvac",
			"aircon": "hvac",
			"handyman": "general handyman", "painting": "general handyman",
			"drain": "drain cleaning", "blocked drain": "drain cleaning",
			"clogged": "drain cleaning",
			"urgent": "emergency repair", "burst pipe": "emergency repair",
			"gas leak": "emergency repair", "flooding": "emergency repair",
		},
		OutOfScopeTopics: []string{
			"medical advice", "legal advice", "financial advice",
			"competitor", "political", "religious",
			"investment", "cryptocurrency", "dating",
		},
		ForbiddenClaims: []string{
			"guarantee", "warranty", "we guarantee",
			"years of experience", "award-winning",
			"best in the city", "cheapest", "lowest price",
			"fully insured", "fully licensed",
		},
		PersonaBreakPhrases: []string{
			"as an ai", "as a language model", "i'm just a computer",
			"i don't have feelings", "i'm not sure if",
			"i think maybe", "i cannot", "i'm unable to",
		},
		FormattingViolations: []string{"- ", "* ", "1. ", "## ", "**", "```"},
		EmergencyKeywords: []string{
			"gas leak", "flooding", "flood", "fire", "sparking",
			"electrocution", "burst pipe", "no hot water emergency",
			"carbon monoxide", "smell gas", "water everywhere",
		},
		FrustrationKeywords: []string{
			"manager", "supervisor", "speak to a person",
			"real person", "human", "unacceptable",
			"lawsuit", "ridiculous", "useless",
			"worst service", "i already told you",
		},
	}
}
