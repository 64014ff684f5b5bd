package recurring

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"plancal/internal/civil"
	appLog "plancal/internal/log"
	"plancal/internal/model"
)

const defaultMaxOccurrencesPerRule = 5000

// ExpandConfig controls which days rules are expanded over.
type ExpandConfig struct {
	// From / To are the inclusive day range occurrences are generated for.
	From civil.Date
	To   civil.Date

	// MaxOccurrencesPerRule caps a single rule. Zero means
	// defaultMaxOccurrencesPerRule.
	MaxOccurrencesPerRule int
}

// ExpandResult lists generated occurrences and the rules that could not be
// fully expanded.
type ExpandResult struct {
	Occurrences []model.RecurringOccurrence

	// TruncatedRules holds ids of rules that hit MaxOccurrencesPerRule.
	TruncatedRules []int64

	// InvalidRules holds ids of rules whose RRULE or start date could not
	// be read. They contribute no occurrences.
	InvalidRules []int64
}

// Expand turns recurring allocation rules into one RecurringOccurrence per
// matching day in [cfg.From, cfg.To]. Rules are expanded in input order and
// each rule's occurrences come out in date order. Dates listed in a rule's
// ExDates are left out.
//
// Recurrence is evaluated on calendar days only; the rule's StartTime and
// EndTime are copied to every occurrence as written.
func Expand(rules []model.RecurringAllocation, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.To.Before(cfg.From) {
		return result, errors.New("recurring: To is before From")
	}
	if cfg.MaxOccurrencesPerRule <= 0 {
		cfg.MaxOccurrencesPerRule = defaultMaxOccurrencesPerRule
	}

	for _, rule := range rules {
		days, err := ruleDays(rule, cfg.From, cfg.To)
		if err != nil {
			appLog.Error("recurring: skipping rule", err, "rule_id", rule.ID, "rrule", rule.RRule)
			result.InvalidRules = append(result.InvalidRules, rule.ID)
			continue
		}
		if len(days) > cfg.MaxOccurrencesPerRule {
			days = days[:cfg.MaxOccurrencesPerRule]
			result.TruncatedRules = append(result.TruncatedRules, rule.ID)
			appLog.Warn("recurring: truncated occurrences for rule", "rule_id", rule.ID, "cap", cfg.MaxOccurrencesPerRule)
		}
		for _, d := range days {
			result.Occurrences = append(result.Occurrences, model.RecurringOccurrence{
				RecurringAllocationID: rule.ID,
				Title:                 rule.Title,
				OccurrenceDate:        d.String(),
				StartTime:             rule.StartTime,
				EndTime:               rule.EndTime,
				AllocatedHours:        rule.AllocatedHours,
			})
		}
	}

	return result, nil
}

// ruleDays evaluates one rule in UTC at noon so that daylight-saving
// transitions can never move an occurrence onto a neighbouring day.
func ruleDays(rule model.RecurringAllocation, from, to civil.Date) ([]civil.Date, error) {
	start, err := civil.ParseDate(rule.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}

	r, err := rrule.StrToRRule(strings.TrimPrefix(strings.TrimSpace(rule.RRule), "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("parse rrule: %w", err)
	}
	noon := civil.NewClock(12, 0)
	r.DTStart(start.At(noon, time.UTC))

	var set rrule.Set
	set.RRule(r)
	for _, raw := range rule.ExDates {
		ex, err := civil.ParseDate(raw)
		if err != nil {
			appLog.Debug("recurring: ignoring unreadable exdate", "rule_id", rule.ID, "exdate", raw)
			continue
		}
		set.ExDate(ex.At(noon, time.UTC))
	}

	hits := set.Between(from.In(time.UTC), to.AddDays(1).In(time.UTC), true)
	out := make([]civil.Date, 0, len(hits))
	for _, t := range hits {
		// Sub-daily rules hit a day more than once; one occurrence per day.
		d := civil.DateOf(t)
		if n := len(out); n > 0 && out[n-1] == d {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
