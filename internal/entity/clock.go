package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	storedTimeLayout = "15:04:05"
)

// Date is a calendar date without time of day, stored as a MySQL DATE.
type Date struct {
	time.Time
}

// ParseDate accepts only YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	}
	return fmt.Errorf("entity: cannot scan %T into Date", src)
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ClockTime is a wall-clock time with minute precision and no zone, stored as a MySQL TIME.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime accepts 24-hour HH:MM.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return ClockTime{}, err
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String renders HH:MM:SS, matching what the database hands back.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:00", c.Hour, c.Minute)
}

// Before orders clock times within a day.
func (c ClockTime) Before(o ClockTime) bool {
	if c.Hour != o.Hour {
		return c.Hour < o.Hour
	}
	return c.Minute < o.Minute
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return c.scanString(s)
}

func (c ClockTime) Value() (driver.Value, error) {
	return c.String(), nil
}

func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		c.Hour, c.Minute = v.Hour(), v.Minute()
		return nil
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	}
	return fmt.Errorf("entity: cannot scan %T into ClockTime", src)
}

func (c *ClockTime) scanString(s string) error {
	layout := storedTimeLayout
	if len(s) == len(TimeLayout) {
		layout = TimeLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return err
	}
	c.Hour, c.Minute = t.Hour(), t.Minute()
	return nil
}
