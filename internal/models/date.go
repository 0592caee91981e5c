package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day, always held at UTC midnight.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in t's own location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return NewDate(t.UTC()), nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Before reports whether d is an earlier calendar date than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}
