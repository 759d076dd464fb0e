package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidCategory = errors.New("invalid category")

// Category is one of the three 3-3-3 columns a task lives in.
type Category string

const (
	CategoryDeepWork    Category = "deep_work"
	CategoryShortTask   Category = "short_task"
	CategoryMaintenance Category = "maintenance"
)

// Categories lists the columns in display order.
var Categories = []Category{CategoryDeepWork, CategoryShortTask, CategoryMaintenance}

func ParseCategory(raw string) (Category, error) {
	value := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !value.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
	return value, nil
}

func (c Category) Valid() bool {
	switch c {
	case CategoryDeepWork, CategoryShortTask, CategoryMaintenance:
		return true
	}
	return false
}

func (c Category) Label() string {
	switch c {
	case CategoryDeepWork:
		return "Deep work"
	case CategoryShortTask:
		return "Short tasks"
	case CategoryMaintenance:
		return "Maintenance"
	}
	return string(c)
}

// Value implements driver.Valuer.
func (c Category) Value() (driver.Value, error) {
	return string(c), nil
}

// Scan implements sql.Scanner so nullable *Category columns round-trip.
func (c *Category) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = ""
	case string:
		*c = Category(v)
	case []byte:
		*c = Category(v)
	default:
		return fmt.Errorf("scan category: unsupported type %T", src)
	}
	return nil
}
