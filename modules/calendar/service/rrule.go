package service

import (
	"classroom-api/modules/calendar/entity"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

var weekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

func toROption(rule *entity.RecurrenceRule) (rrule.ROption, error) {
	var opt rrule.ROption

	switch rule.Frequency {
	case entity.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case entity.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	default:
		return opt, fmt.Errorf("unsupported frequency %q", rule.Frequency)
	}

	for _, code := range rule.OnDays {
		wd, ok := weekdays[code]
		if !ok {
			return opt, fmt.Errorf("unsupported weekday %q", code)
		}
		opt.Byweekday = append(opt.Byweekday, wd)
	}

	if rule.Occurrence != nil {
		opt.Count = *rule.Occurrence
	}
	if rule.Until != nil {
		opt.Until = rule.Until.UTC()
	}
	return opt, nil
}

// BuildRRule renders the rule as the single RRULE line sent with the root event.
func BuildRRule(rule *entity.RecurrenceRule) (string, error) {
	opt, err := toROption(rule)
	if err != nil {
		return "", err
	}
	return "RRULE:" + opt.RRuleString(), nil
}

// ExpectedOccurrences computes the start times a rule produces from start.
func ExpectedOccurrences(rule *entity.RecurrenceRule, start time.Time) ([]time.Time, error) {
	opt, err := toROption(rule)
	if err != nil {
		return nil, err
	}
	opt.Dtstart = start

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, err
	}
	return r.All(), nil
}
