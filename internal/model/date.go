package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day without time of day or zone. It is stored as
// YYYY-MM-DD so range queries compare correctly on every driver.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalises out-of-range values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateLayout)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	return d.Time().Compare(other.Time())
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// DaysIn reports how many days the given month has.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner. SQLite hands back text or a parsed time
// depending on the declared column type; Postgres returns time.Time.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v.UTC())
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *Date) scanText(raw string) error {
	if len(raw) > len(dateLayout) {
		raw = raw[:len(dateLayout)]
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GormDataType maps the column to a DATE on every dialect.
func (Date) GormDataType() string {
	return "date"
}
