package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// parseTime accepts RFC3339 timestamps and bare YYYY-MM-DD dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DateTime is a request time field that also takes a date without a time of day.
type DateTime struct {
	time.Time
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := parseTime(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD or RFC3339: %w", err)
	}
	d.Time = t
	return nil
}

// TimePtr returns nil for an absent field.
func (d *DateTime) TimePtr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
