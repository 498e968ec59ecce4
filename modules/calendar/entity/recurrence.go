package entity

import (
	"classroom-api/core/constants"
	"fmt"
	"slices"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "DAILY"
	FrequencyWeekly Frequency = "WEEKLY"
)

var weekdayCodes = []string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// RecurrenceRule bounds a series either by Occurrence or by Until, never both.
type RecurrenceRule struct {
	Frequency  Frequency  `json:"frequency"`
	OnDays     []string   `json:"on_days"`
	Occurrence *int       `json:"occurrence,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
}

type RuleError struct {
	Field  string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid recurrence %s: %s", e.Field, e.Reason)
}

func IsWeekdayCode(code string) bool {
	return slices.Contains(weekdayCodes, code)
}

// Normalize upper-cases and de-duplicates OnDays in week order.
func (r *RecurrenceRule) Normalize() {
	r.Frequency = Frequency(strings.ToUpper(string(r.Frequency)))

	seen := make(map[string]bool, len(r.OnDays))
	for _, d := range r.OnDays {
		seen[strings.ToUpper(strings.TrimSpace(d))] = true
	}
	days := make([]string, 0, len(seen))
	for _, code := range weekdayCodes {
		if seen[code] {
			days = append(days, code)
			delete(seen, code)
		}
	}
	for code := range seen {
		days = append(days, code)
	}
	r.OnDays = days
}

// Validate checks the rule against the class end time and the current time.
func (r *RecurrenceRule) Validate(now, classEnd time.Time) error {
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly:
	case "":
		return &RuleError{Field: "frequency", Reason: "is required"}
	default:
		return &RuleError{Field: "frequency", Reason: "must be DAILY or WEEKLY"}
	}

	if len(r.OnDays) == 0 {
		return &RuleError{Field: "on_days", Reason: "is required with frequency"}
	}
	for _, d := range r.OnDays {
		if !IsWeekdayCode(d) {
			return &RuleError{Field: "on_days", Reason: fmt.Sprintf("%q is not one of SU,MO,TU,WE,TH,FR,SA", d)}
		}
	}

	if r.Occurrence == nil && r.Until == nil {
		return &RuleError{Field: "occurrence", Reason: "either occurrence or until is required"}
	}
	if r.Occurrence != nil && r.Until != nil {
		return &RuleError{Field: "until", Reason: "cannot be combined with occurrence"}
	}

	if r.Occurrence != nil {
		if *r.Occurrence <= 0 || *r.Occurrence > constants.MaxOccurrences {
			return &RuleError{Field: "occurrence", Reason: fmt.Sprintf("must be between 1 and %d", constants.MaxOccurrences)}
		}
	}

	if r.Until != nil {
		if !r.Until.After(classEnd) {
			return &RuleError{Field: "until", Reason: "must be after the class end time"}
		}
		limit := now.AddDate(0, 0, 7*constants.MaxUntilWeeksAhead)
		if r.Until.After(limit) {
			return &RuleError{Field: "until", Reason: fmt.Sprintf("must be within %d weeks", constants.MaxUntilWeeksAhead)}
		}
	}
	return nil
}
